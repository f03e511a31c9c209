package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pkakelas/poda/internal/types"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte{0xab, 0xcd, 0x01}, 100) // 300 bytes, spans several rows at k=4
	n, k := 10, 4

	chunks, err := Encode(data, n, k)
	require.NoError(t, err)
	require.Len(t, chunks, n)

	byIndex := make(map[int][]byte, n)
	for _, c := range chunks {
		byIndex[int(c.Index)] = c.Data
	}

	got, err := Decode(byIndex, n, k, len(data))
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestDecodeAnyKSubsetReconstructs(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog, repeated for padding")
	n, k := 12, 5

	chunks, err := Encode(data, n, k)
	require.NoError(t, err)

	subsets := [][]int{
		{0, 1, 2, 3, 4},   // all systematic
		{7, 8, 9, 10, 11}, // all parity
		{0, 3, 6, 9, 11},  // mixed
	}
	for _, subset := range subsets {
		byIndex := make(map[int][]byte, k)
		for _, idx := range subset {
			byIndex[idx] = chunks[idx].Data
		}
		got, err := Decode(byIndex, n, k, len(data))
		require.NoError(t, err)
		require.Equal(t, data, got)
	}
}

func TestDecodeInsufficientChunks(t *testing.T) {
	data := []byte("short")
	n, k := 6, 4
	chunks, err := Encode(data, n, k)
	require.NoError(t, err)

	byIndex := map[int][]byte{0: chunks[0].Data, 1: chunks[1].Data}
	_, err = Decode(byIndex, n, k, len(data))
	require.Error(t, err)
	require.Equal(t, types.InsufficientChunks, types.KindOf(err))
}

func TestDecodeCorruptChunkRetries(t *testing.T) {
	data := bytes.Repeat([]byte{0x42}, 64)
	n, k := 8, 4
	chunks, err := Encode(data, n, k)
	require.NoError(t, err)

	byIndex := make(map[int][]byte, 5)
	for i := 0; i < 5; i++ {
		byIndex[i] = chunks[i].Data
	}
	// Corrupt one systematic chunk; with a 5th (parity) chunk present the
	// decoder should retry with a different k-subset and still succeed.
	corrupted := make([]byte, len(byIndex[0]))
	copy(corrupted, byIndex[0])
	corrupted[0] ^= 0xff
	byIndex[0] = corrupted

	got, err := Decode(byIndex, n, k, len(data))
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestEncodeRejectsInvalidNK(t *testing.T) {
	_, err := Encode([]byte("x"), 4, 4)
	require.Error(t, err)
	require.Equal(t, types.InvalidInput, types.KindOf(err))
}
