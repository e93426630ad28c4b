package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	s, err := encode("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", s)

	s, err = encode([]byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, "raw", s)

	s, err = encode(map[string]int{"criticas": 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"criticas":2}`, s)

	_, err = encode(make(chan int))
	assert.Error(t, err)
}

func TestKeyPrefix(t *testing.T) {
	r := NewRedisClient(nil, "backoffice:")
	assert.Equal(t, "backoffice:alert:dedup:x", r.key("alert:dedup:x"))
}
