// Package codec implements the newline-delimited JSON stream codec (C6):
// one record per line, O(1 + largest record) peak memory, with
// backpressure-aware writing.
package codec

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/whennemuth/deltasync/internal/model"
	deltaerrors "github.com/whennemuth/deltasync/pkg/errors"
)

// wireRecord is the on-disk shape of one record line: {"fieldValues":[{name:value},...],"hash":"..."}.
// Empty validationMessages maps are omitted entirely, not written as {}.
type wireRecord struct {
	FieldValues        []map[string]any  `json:"fieldValues"`
	Hash               string            `json:"hash,omitempty"`
	ValidationMessages map[string]string `json:"validationMessages,omitempty"`
}

func toWire(r model.Record) wireRecord {
	w := wireRecord{Hash: r.Hash}
	for _, f := range r.Fields {
		w.FieldValues = append(w.FieldValues, map[string]any{f.Name: f.Value})
	}
	if len(r.ValidationMessages) > 0 {
		w.ValidationMessages = r.ValidationMessages
	}
	return w
}

func fromWire(w wireRecord) model.Record {
	r := model.Record{Hash: w.Hash, ValidationMessages: w.ValidationMessages}
	for _, entry := range w.FieldValues {
		for name, value := range entry {
			r.Fields = append(r.Fields, model.Field{Name: name, Value: value})
		}
	}
	return r
}

// Reader streams records one per non-empty line from an underlying
// io.Reader. A malformed line fails the whole read with a ParseError
// naming the offending line's prefix.
type Reader struct {
	scanner *bufio.Scanner
	lineNum int
}

// NewReader wraps r for line-at-a-time NDJSON decoding.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	return &Reader{scanner: scanner}
}

// Next returns the next record, or io.EOF when the stream is exhausted.
// Empty lines are skipped without incrementing the visible record count.
func (r *Reader) Next() (model.Record, error) {
	for r.scanner.Scan() {
		r.lineNum++
		line := r.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var w wireRecord
		if err := json.Unmarshal(line, &w); err != nil {
			return model.Record{}, deltaerrors.Parse(fmt.Sprintf("line %d: %s", r.lineNum, prefix(line, 64)), err)
		}
		return fromWire(w), nil
	}
	if err := r.scanner.Err(); err != nil {
		return model.Record{}, deltaerrors.IO("ndjson read", err)
	}
	return model.Record{}, io.EOF
}

// ReadAll drains the reader into a slice. Intended for small baselines
// (filesystem/object-bucket backends, bounded by spec.md §5's ~200k
// record guidance) where streaming into SetDiff's in-memory sets is
// acceptable.
func ReadAll(r io.Reader) ([]model.Record, error) {
	reader := NewReader(r)
	var out []model.Record
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

func prefix(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}

// Drainer reports whether a downstream sink has signaled backpressure and
// lets the writer wait for a drain signal, per spec.md §4.6. Simple
// implementations (plain files, in-memory buffers) return false/no-op;
// it exists for sinks such as a bounded channel or a rate-limited network
// writer.
type Drainer interface {
	Full() bool
	WaitForDrain()
}

// noopDrainer never reports backpressure.
type noopDrainer struct{}

func (noopDrainer) Full() bool    { return false }
func (noopDrainer) WaitForDrain() {}

// Writer serializes records one per line, honoring an optional Drainer's
// backpressure signal after each write.
type Writer struct {
	w       io.Writer
	drainer Drainer
}

// NewWriter wraps w for line-at-a-time NDJSON encoding. If drainer is
// nil, a no-op drainer is used (no backpressure).
func NewWriter(w io.Writer, drainer Drainer) *Writer {
	if drainer == nil {
		drainer = noopDrainer{}
	}
	return &Writer{w: w, drainer: drainer}
}

// Write serializes one record as a single line.
func (wr *Writer) Write(r model.Record) error {
	data, err := json.Marshal(toWire(r))
	if err != nil {
		return deltaerrors.Parse("encode record", err)
	}
	data = append(data, '\n')
	if _, err := wr.w.Write(data); err != nil {
		return deltaerrors.IO("ndjson write", err)
	}

	if wr.drainer.Full() {
		wr.drainer.WaitForDrain()
	}
	return nil
}

// WriteAll writes every record in records, in order.
func WriteAll(w io.Writer, drainer Drainer, records []model.Record) error {
	writer := NewWriter(w, drainer)
	for _, r := range records {
		if err := writer.Write(r); err != nil {
			return err
		}
	}
	return nil
}
