// Package codec implements a systematic Reed-Solomon (n, k) erasure code:
// encode/decode operate over rows of k BLS12-381 scalar-field elements
// (internal/field), interpolated and evaluated with Lagrange's formula over
// the prime scalar field so the same symbol encoding feeds the Merkle tree
// and the KZG commitment.
package codec

import (
	"sort"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/pkakelas/poda/internal/field"
	"github.com/pkakelas/poda/internal/types"
)

// maxCorruptRetries bounds the k-subset fan-out when a provided chunk
// disagrees with the interpolated polynomial, capping retries before
// returning failure.
const maxCorruptRetries = 8

// EvaluationPoints returns the n fixed, distinct evaluation points used for
// a code of this size: the field elements 1..n. Index i maps to point i+1,
// reserving 0 as the "no point" sentinel.
func EvaluationPoints(n int) []fr.Element {
	points := make([]fr.Element, n)
	for i := 0; i < n; i++ {
		points[i].SetUint64(uint64(i + 1))
	}
	return points
}

// SystematicIndices returns the k lowest chunk indices, the ones that hold
// the blob's data directly for a systematic code.
func SystematicIndices(k int) []int {
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// Encode splits data into n chunks of a systematic (n, k) code: chunks
// 0..k-1 are the zero-padded input row-major in k-element rows; chunks
// k..n-1 are the row-wise Reed-Solomon parity evaluated at points k+1..n.
func Encode(data []byte, n, k int) ([]types.Chunk, error) {
	if k <= 0 || n <= k {
		return nil, types.Wrap("codec.Encode", types.InvalidInput, nil)
	}
	rows := field.NumRows(len(data), k)
	elements, err := field.BytesToElements(data, rows*k)
	if err != nil {
		return nil, types.Wrap("codec.Encode", types.InvalidInput, err)
	}
	points := EvaluationPoints(n)

	chunkElems := make([][]fr.Element, n)
	for i := 0; i < n; i++ {
		chunkElems[i] = make([]fr.Element, rows)
	}

	for r := 0; r < rows; r++ {
		rowVals := elements[r*k : (r+1)*k]
		for i := 0; i < n; i++ {
			if i < k {
				chunkElems[i][r] = rowVals[i]
				continue
			}
			chunkElems[i][r] = evalLagrange(points[:k], rowVals, points[i])
		}
	}

	chunks := make([]types.Chunk, n)
	for i := 0; i < n; i++ {
		chunks[i] = types.Chunk{
			Index: uint16(i),
			Data:  field.ElementsToBytes(chunkElems[i], -1),
		}
	}
	return chunks, nil
}

// Decode reconstructs the original blob from at least k received chunks.
// The polynomial interpolated from a k-subset must agree with every other
// supplied chunk; Decode tries up to maxCorruptRetries subsets in index
// order and returns CorruptChunk if none passes. Each subset is checked
// against the full supplied set, so a single corrupted chunk makes every
// attempt fail: corruption is detected, not corrected.
func Decode(chunks map[int][]byte, n, k, originalSize int) ([]byte, error) {
	if len(chunks) < k {
		return nil, types.Wrap("codec.Decode", types.InsufficientChunks, nil)
	}
	indices := make([]int, 0, len(chunks))
	for i := range chunks {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	var rows int
	for _, i := range indices {
		rows = len(chunks[i]) / field.Size
		break
	}
	points := EvaluationPoints(n)

	attempts := len(indices) - k + 1
	if attempts > maxCorruptRetries {
		attempts = maxCorruptRetries
	}
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		primary := indices[attempt : attempt+k]
		data, ok, err := decodeWithSubset(chunks, primary, indices, points, rows, k, originalSize)
		if err != nil {
			return nil, err
		}
		if ok {
			return data, nil
		}
		lastErr = types.Wrap("codec.Decode", types.CorruptChunk, nil)
	}
	return nil, lastErr
}

// decodeWithSubset interpolates every row from the primary index set, then
// cross-checks every other supplied chunk against the resulting
// polynomial. ok is false (no error) when the cross-check fails, signaling
// the caller should retry with a different subset.
func decodeWithSubset(chunks map[int][]byte, primary, all []int, points []fr.Element, rows, k, originalSize int) ([]byte, bool, error) {
	xs := make([]fr.Element, k)
	rowElements := make([][]fr.Element, rows)
	for r := 0; r < rows; r++ {
		ys := make([]fr.Element, k)
		for j, idx := range primary {
			xs[j] = points[idx]
			elems, err := field.BytesToElements(chunks[idx][r*field.Size:(r+1)*field.Size], 1)
			if err != nil {
				return nil, false, types.Wrap("codec.Decode", types.CorruptChunk, err)
			}
			ys[j] = elems[0]
		}
		row := make([]fr.Element, k)
		for j := 0; j < k; j++ {
			row[j] = evalLagrange(xs, ys, points[j])
		}
		rowElements[r] = row
	}

	for _, idx := range all {
		isPrimary := false
		for _, p := range primary {
			if p == idx {
				isPrimary = true
				break
			}
		}
		if isPrimary {
			continue
		}
		for r := 0; r < rows; r++ {
			xs2 := make([]fr.Element, k)
			for j := 0; j < k; j++ {
				xs2[j] = points[j]
			}
			got := evalLagrange(xs2, rowElements[r], points[idx])
			want, err := field.BytesToElements(chunks[idx][r*field.Size:(r+1)*field.Size], 1)
			if err != nil {
				return nil, false, types.Wrap("codec.Decode", types.CorruptChunk, err)
			}
			if !got.Equal(&want[0]) {
				return nil, false, nil
			}
		}
	}

	flat := make([]fr.Element, 0, rows*k)
	for r := 0; r < rows; r++ {
		flat = append(flat, rowElements[r]...)
	}
	return field.ElementsToBytes(flat, originalSize), true, nil
}

// evalLagrange evaluates, at target, the unique polynomial of degree
// < len(xs) through the points (xs[i], ys[i]).
func evalLagrange(xs, ys []fr.Element, target fr.Element) fr.Element {
	var result fr.Element
	for j := range xs {
		if xs[j].Equal(&target) {
			return ys[j]
		}
	}
	for j := range xs {
		var term fr.Element
		term.Set(&ys[j])
		for m := range xs {
			if m == j {
				continue
			}
			var num, den, frac fr.Element
			num.Sub(&target, &xs[m])
			den.Sub(&xs[j], &xs[m])
			frac.Inverse(&den)
			frac.Mul(&frac, &num)
			term.Mul(&term, &frac)
		}
		result.Add(&result, &term)
	}
	return result
}
