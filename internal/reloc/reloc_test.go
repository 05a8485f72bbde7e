package reloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeDelta_RoundTrip(t *testing.T) {
	entries := []Entry{
		{Offset: 0x10, Width: Long},
		{Offset: 0x14, Width: Word},
		{Offset: 0x100, Width: Long},
	}

	encoded, err := EncodeDelta(entries)
	require.NoError(t, err)

	decoded, err := DecodeDelta(encoded)
	require.NoError(t, err)
	assert.Equal(t, entries, decoded)
}

func TestEncodeDelta_EscapesLargeGap(t *testing.T) {
	entries := []Entry{
		{Offset: 0, Width: Word},
		{Offset: 0x20000, Width: Long}, // delta exceeds 16 bits
	}

	encoded, err := EncodeDelta(entries)
	require.NoError(t, err)
	// first offset (4) + escape marker (2) + escaped delta (4) + 2 width tags
	assert.Len(t, encoded, 4+1+2+4+1)

	decoded, err := DecodeDelta(encoded)
	require.NoError(t, err)
	assert.Equal(t, entries, decoded)
}

func TestEncodeDelta_RejectsNonMonotonic(t *testing.T) {
	entries := []Entry{
		{Offset: 0x10, Width: Word},
		{Offset: 0x08, Width: Word},
	}
	_, err := EncodeDelta(entries)
	require.Error(t, err)
}

func TestDecodeDelta_EmptyInput(t *testing.T) {
	decoded, err := DecodeDelta(nil)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestDecodeDelta_TruncatedFirstOffset(t *testing.T) {
	_, err := DecodeDelta([]byte{0x00, 0x01})
	require.Error(t, err)
}
