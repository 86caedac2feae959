package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeIdentifier(t *testing.T) {
	cases := map[string]string{
		"acme-corp":    "acme_corp",
		"client.42":    "client_42",
		"already_fine": "already_fine",
		"":             "",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeIdentifier(in))
	}
}

func TestTableNames(t *testing.T) {
	current, previous := TableNames("acme-corp")
	assert.Equal(t, "client_acme_corp_current", current)
	assert.Equal(t, "client_acme_corp_previous", previous)
}
