package encoding_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babyresell/babyresell/internal/encoding"
)

func readAll(t *testing.T, in []byte) string {
	t.Helper()

	r, err := encoding.NewUTF8Reader(bytes.NewReader(in))
	require.NoError(t, err)

	got, err := io.ReadAll(r)
	require.NoError(t, err)

	return string(got)
}

func TestNewUTF8Reader_UTF8Passthrough(t *testing.T) {
	input := "title,price\nCarrinho de bebé,45.00\nBerço,120,00\n"
	assert.Equal(t, input, readAll(t, []byte(input)))
}

func TestNewUTF8Reader_Windows1252(t *testing.T) {
	// "Berço;Preço\n" with ç encoded as 0xE7.
	in := []byte{'B', 'e', 'r', 0xE7, 'o', ';', 'P', 'r', 'e', 0xE7, 'o', '\n'}
	assert.Equal(t, "Berço;Preço\n", readAll(t, in))
}

func TestNewUTF8Reader_UTF8BOM(t *testing.T) {
	in := append([]byte{0xEF, 0xBB, 0xBF}, []byte("title,price\n")...)
	assert.Equal(t, "title,price\n", readAll(t, in))
}

func TestNewUTF8Reader_UTF16LE(t *testing.T) {
	// BOM + "hi\n" in UTF-16LE.
	in := []byte{0xFF, 0xFE, 'h', 0x00, 'i', 0x00, '\n', 0x00}
	assert.Equal(t, "hi\n", readAll(t, in))
}

func TestNewUTF8Reader_LongInput(t *testing.T) {
	// Longer than the sniff window; everything must still come through.
	input := strings.Repeat("Stroller,10.00\n", 1000)
	assert.Equal(t, input, readAll(t, []byte(input)))
}

func TestNewUTF8Reader_Empty(t *testing.T) {
	assert.Equal(t, "", readAll(t, nil))
}
