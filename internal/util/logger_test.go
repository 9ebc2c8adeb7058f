package util

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestZerologWriter_StripsPrefix(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := zerologWriter{logger: zerolog.New(&buf), level: zerolog.WarnLevel}
	n, err := w.Write([]byte("2025/01/01 10:00:00 http: TLS handshake error\n"))

	assert.NoError(t, err)
	assert.Equal(t, 46, n)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"message":"TLS handshake error"`)
}

func TestPointer(t *testing.T) {
	t.Parallel()

	p := Pointer(42)
	assert.Equal(t, 42, *p)
	*p = 7
	assert.NotEqual(t, Pointer(42), p)
}
