// Package field implements the one canonical byte<->field-element encoding
// shared by the erasure codec, the Merkle leaf hash, and the KZG polynomial:
// a chunk symbol is always a BLS12-381 scalar-field element, serialized as
// a big-endian 32-byte array.
package field

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// Size is the canonical byte width of one field element.
const Size = fr.Bytes

// ErrNonCanonical is returned when a 32-byte value is not the canonical
// (already-reduced) encoding of a scalar-field element.
var ErrNonCanonical = errors.New("field: non-canonical encoding")

// FromCanonicalBytes decodes exactly Size bytes into a field element,
// rejecting any encoding that is not already reduced mod the field order.
func FromCanonicalBytes(b []byte) (fr.Element, error) {
	var e fr.Element
	if len(b) != Size {
		return e, fmt.Errorf("field: want %d bytes, got %d", Size, len(b))
	}
	e.SetBytes(b)
	back := e.Bytes()
	for i := range back {
		if back[i] != b[i] {
			return fr.Element{}, ErrNonCanonical
		}
	}
	return e, nil
}

// ToCanonicalBytes serializes a field element to its canonical 32-byte
// big-endian encoding.
func ToCanonicalBytes(e fr.Element) []byte {
	b := e.Bytes()
	return b[:]
}

// BytesToElements splits data into numElements field elements of Size bytes
// each, zero-padding the tail, the way Bytes2Field splits a byte slice into
// fixed-width circuit inputs -- except the elements here are raw scalar
// bytes, not circuit variables, since no SNARK is involved.
func BytesToElements(data []byte, numElements int) ([]fr.Element, error) {
	elements := make([]fr.Element, numElements)
	buf := make([]byte, Size)
	for i := 0; i < numElements; i++ {
		for j := range buf {
			buf[j] = 0
		}
		start := i * Size
		if start < len(data) {
			end := start + Size
			if end > len(data) {
				end = len(data)
			}
			copy(buf, data[start:end])
		}
		// A raw data byte-window is always < the field modulus (2^256ish
		// field with top bits reserved), so SetBytes here never silently
		// reduces; no canonical check needed on the encode direction.
		elements[i].SetBytes(buf)
	}
	return elements, nil
}

// ElementsToBytes concatenates the canonical encoding of each element and
// truncates to originalSize, the inverse of BytesToElements/Field2Bytes.
func ElementsToBytes(elements []fr.Element, originalSize int) []byte {
	out := make([]byte, 0, len(elements)*Size)
	for _, e := range elements {
		b := e.Bytes()
		out = append(out, b[:]...)
	}
	if originalSize >= 0 && originalSize < len(out) {
		out = out[:originalSize]
	}
	return out
}

// ElementsPerRow returns how many Size-byte field elements are needed to
// hold k systematic symbols worth of row capacity. The codec does not call
// it; it sizes rows with NumRows and k directly.
func ElementsPerRow(k int) int { return k }

// NumRows returns how many rows of k elements are needed to cover dataLen
// bytes, at least 1 so that empty-after-padding blobs still get one row.
func NumRows(dataLen, k int) int {
	rowBytes := k * Size
	rows := (dataLen + rowBytes - 1) / rowBytes
	if rows < 1 {
		rows = 1
	}
	return rows
}
