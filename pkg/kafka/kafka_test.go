package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	KBVersion string `json:"kb_version"`
	Docs      int    `json:"docs"`
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg, err := encode(Event{Key: "2025.06", Value: published{KBVersion: "2025.06", Docs: 60}})
	require.NoError(t, err)
	assert.Equal(t, []byte("2025.06"), msg.Key)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "content-type", msg.Headers[0].Key)

	got, err := DecodeJSON[published](msg.Value)
	require.NoError(t, err)
	assert.Equal(t, published{KBVersion: "2025.06", Docs: 60}, got)
}

func TestEncodeRejectsUnmarshalable(t *testing.T) {
	_, err := encode(Event{Key: "k", Value: make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshaling event value")
}

func TestDecodeJSONError(t *testing.T) {
	_, err := DecodeJSON[published]([]byte("{"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding kafka message")
}
