package codec

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whennemuth/deltasync/internal/model"
	deltaerrors "github.com/whennemuth/deltasync/pkg/errors"
)

func TestWriteAllReadAll_RoundTrip(t *testing.T) {
	records := []model.Record{
		{Fields: []model.Field{{Name: "id", Value: "1"}, {Name: "name", Value: "Ada"}}, Hash: "abc"},
		{Fields: []model.Field{{Name: "id", Value: "2"}}, ValidationMessages: map[string]string{"name": "required"}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAll(&buf, nil, records))

	out, err := ReadAll(&buf)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "abc", out[0].Hash)
	id, ok := out[0].Get("id")
	require.True(t, ok)
	assert.Equal(t, "1", id)

	assert.Equal(t, "required", out[1].ValidationMessages["name"])
	assert.Empty(t, out[1].Hash)
}

func TestReader_SkipsEmptyLines(t *testing.T) {
	r := NewReader(strings.NewReader("\n\n{\"fieldValues\":[{\"id\":\"1\"}]}\n\n"))
	rec, err := r.Next()
	require.NoError(t, err)
	id, _ := rec.Get("id")
	assert.Equal(t, "1", id)
}

func TestReader_MalformedLineFailsWithParseError(t *testing.T) {
	r := NewReader(strings.NewReader("not json\n"))
	_, err := r.Next()
	require.Error(t, err)
	assert.True(t, deltaerrors.As(err, deltaerrors.KindParse))
}

func TestWriter_EmptyValidationMessagesOmitted(t *testing.T) {
	rec := model.Record{Fields: []model.Field{{Name: "id", Value: "1"}}, ValidationMessages: map[string]string{}}

	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf, nil).Write(rec))
	assert.NotContains(t, buf.String(), "validationMessages")
}

type countingDrainer struct {
	fullCalls  int
	drainCalls int
	full       bool
}

func (d *countingDrainer) Full() bool {
	d.fullCalls++
	return d.full
}

func (d *countingDrainer) WaitForDrain() {
	d.drainCalls++
	d.full = false
}

func TestWriter_HonorsBackpressure(t *testing.T) {
	drainer := &countingDrainer{full: true}
	var buf bytes.Buffer
	w := NewWriter(&buf, drainer)

	require.NoError(t, w.Write(model.Record{Fields: []model.Field{{Name: "id", Value: "1"}}}))
	assert.Equal(t, 1, drainer.fullCalls)
	assert.Equal(t, 1, drainer.drainCalls)
}
