package field

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBytesToElementsRoundTrip(t *testing.T) {
	data := []byte("a short message that does not fill a full row")
	n := NumRows(len(data), 4) * 4
	elements, err := BytesToElements(data, n)
	require.NoError(t, err)
	require.Len(t, elements, n)

	back := ElementsToBytes(elements, len(data))
	require.Equal(t, data, back)
}

func TestFromCanonicalBytesRejectsNonCanonical(t *testing.T) {
	// The field modulus's top byte is 0x73; an all-0xff encoding is well
	// above the modulus and must be rejected.
	var overflow [Size]byte
	for i := range overflow {
		overflow[i] = 0xff
	}
	_, err := FromCanonicalBytes(overflow[:])
	require.ErrorIs(t, err, ErrNonCanonical)
}

func TestFromCanonicalBytesAcceptsZero(t *testing.T) {
	var zero [Size]byte
	e, err := FromCanonicalBytes(zero[:])
	require.NoError(t, err)
	require.True(t, e.IsZero())
}

func TestNumRows(t *testing.T) {
	require.Equal(t, 1, NumRows(0, 4))
	require.Equal(t, 1, NumRows(1, 4))
	require.Equal(t, 1, NumRows(4*32, 4))
	require.Equal(t, 2, NumRows(4*32+1, 4))
}
