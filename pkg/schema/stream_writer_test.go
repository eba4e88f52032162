package schema

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jsonpool "github.com/vizydrop/gallery/pkg/json"
)

func TestStreamWriterEmitsJSONArray(t *testing.T) {
	s := Schema{
		{Name: "id", ResponseLoc: "id", Kind: KindID},
		{Name: "name", ResponseLoc: "name", Kind: KindText},
	}

	var buf bytes.Buffer
	w, err := NewStreamWriter(&buf, s, "test", "items")
	require.NoError(t, err)

	require.NoError(t, w.Write(map[string]interface{}{"id": "1", "name": "first"}))
	require.NoError(t, w.Write(map[string]interface{}{"id": "2", "name": "second"}))
	require.NoError(t, w.Close())

	assert.Equal(t, int64(2), w.Count())

	var decoded []map[string]string
	require.NoError(t, jsonpool.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "first", decoded[0]["name"])
	assert.Equal(t, "2", decoded[1]["id"])
}

func TestStreamWriterEmptyArray(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewStreamWriter(&buf, Schema{}, "test", "items")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, "[]", buf.String())
}

func TestStreamWriterNormalizationFailureStops(t *testing.T) {
	s := Schema{
		{Name: "count", ResponseLoc: "count", Kind: KindNumber},
	}

	var buf bytes.Buffer
	w, err := NewStreamWriter(&buf, s, "test", "items")
	require.NoError(t, err)

	assert.Error(t, w.Write(map[string]interface{}{"count": "garbage"}))
}
