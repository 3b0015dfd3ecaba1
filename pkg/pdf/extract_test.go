package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSniff(t *testing.T) {
	testCases := []struct {
		name     string
		content  []byte
		declared string
		want     string
	}{
		{"pdf magic wins over declared type", []byte("%PDF-1.7 ..."), "text/plain", "application/pdf"},
		{"declared pdf without magic", []byte("not really"), "application/pdf", "application/pdf"},
		{"text with charset parameter", []byte("hello"), "text/plain; charset=utf-8", "text/plain"},
		{"json passes through", []byte(`{"a":1}`), "application/json", "application/json"},
		{"undeclared utf8 treated as text", []byte("plain words"), "", "text/plain"},
		{"binary stays as declared", []byte{0xff, 0xfe, 0x00, 0x01}, "application/octet-stream", "application/octet-stream"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Sniff(tc.content, tc.declared))
		})
	}
}

func TestExtract(t *testing.T) {
	t.Run("text content passes through", func(t *testing.T) {
		text, err := Extract([]byte("Revenue: $100."), "text/plain")
		require.NoError(t, err)
		assert.Equal(t, "Revenue: $100.", text)
	})

	t.Run("unsupported content is rejected", func(t *testing.T) {
		_, err := Extract([]byte{0xff, 0xd8, 0xff, 0x00}, "image/jpeg")
		assert.ErrorIs(t, err, ErrUnsupportedType)
	})

	t.Run("corrupt pdf yields an error", func(t *testing.T) {
		_, err := Extract([]byte("%PDF-1.7 garbage"), "application/pdf")
		assert.Error(t, err)
	})
}
