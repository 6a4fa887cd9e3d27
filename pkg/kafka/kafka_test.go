package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON(t *testing.T) {
	type event struct {
		Type  string `json:"type"`
		Query string `json:"query"`
	}
	got, err := DecodeJSON[event]([]byte(`{"type":"search","query":"plato"}`))
	require.NoError(t, err)
	assert.Equal(t, event{Type: "search", Query: "plato"}, got)

	_, err = DecodeJSON[event]([]byte(`{not json`))
	assert.Error(t, err)
}
