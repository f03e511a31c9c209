// Package kzgcommit wraps github.com/crate-crypto/go-eth-kzg's blob API to
// provide commit/open/verify operations, loading the real Ethereum ceremony
// trusted setup once per process since every component that touches a
// commitment -- Dispenser on ingest, Provider on PUT -- needs the same SRS
// loaded exactly once.
package kzgcommit

import (
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	goethkzg "github.com/crate-crypto/go-eth-kzg"

	"github.com/pkakelas/poda/internal/field"
	"github.com/pkakelas/poda/internal/types"
)

// fieldElementsPerBlob is go-eth-kzg's fixed blob width; the library has no
// exported constant for it (only CellsPerExtBlob), so it is named here
// explicitly.
const fieldElementsPerBlob = 4096

var (
	ctx     *goethkzg.Context
	initErr error
	once    sync.Once
)

// Init performs the one-time, thread-safe trusted-setup load. It is safe
// to call from multiple goroutines; only the first call does the work. A
// setup-load failure is fatal and must not be retried silently, so Init's
// error is cached and returned to every caller.
func Init() error {
	once.Do(func() {
		ctx, initErr = goethkzg.NewContext4096Secure()
	})
	if initErr != nil {
		return types.Wrap("kzgcommit.Init", types.SetupLoadFailure, initErr)
	}
	return nil
}

// Commit computes the KZG commitment for up to 4096 field elements,
// zero-padding shorter inputs out to the library's fixed blob width.
func Commit(elements [][]byte) (types.KZGCommitment, error) {
	var out types.KZGCommitment
	if err := Init(); err != nil {
		return out, err
	}
	blob, err := toBlob(elements)
	if err != nil {
		return out, err
	}
	comm, err := ctx.BlobToKZGCommitment(blob, 0)
	if err != nil {
		return out, types.Wrap("kzgcommit.Commit", types.BadProof, err)
	}
	return types.KZGCommitment(comm), nil
}

// Open computes a KZG opening proof that the committed polynomial
// evaluates to y at z, where z is the field element elementIndex+1
// (matching internal/codec's 1-based evaluation-point convention).
func Open(elements [][]byte, elementIndex int) (y [32]byte, proof types.KZGProof, err error) {
	if err = Init(); err != nil {
		return
	}
	blob, err := toBlob(elements)
	if err != nil {
		return
	}
	var z goethkzg.Scalar
	copy(z[:], evaluationPointBytes(elementIndex))

	p, claim, cerr := ctx.ComputeKZGProof(blob, z, 0)
	if cerr != nil {
		err = types.Wrap("kzgcommit.Open", types.BadProof, cerr)
		return
	}
	return [32]byte(claim), types.KZGProof(p), nil
}

// Verify checks a KZG opening proof against a commitment.
func Verify(commitment types.KZGCommitment, elementIndex int, y [32]byte, proof types.KZGProof) error {
	if err := Init(); err != nil {
		return err
	}
	var z goethkzg.Scalar
	copy(z[:], evaluationPointBytes(elementIndex))

	if err := ctx.VerifyKZGProof(goethkzg.KZGCommitment(commitment), z, goethkzg.Scalar(y), goethkzg.KZGProof(proof)); err != nil {
		return types.Wrap("kzgcommit.Verify", types.BadProof, err)
	}
	return nil
}

// evaluationPointBytes returns the canonical 32-byte encoding of field
// element (elementIndex+1), matching internal/codec's 1-based evaluation
// point convention.
func evaluationPointBytes(elementIndex int) []byte {
	var e fr.Element
	e.SetUint64(uint64(elementIndex + 1))
	return field.ToCanonicalBytes(e)
}

func toBlob(elements [][]byte) (*goethkzg.Blob, error) {
	if len(elements) > fieldElementsPerBlob {
		return nil, types.Wrap("kzgcommit", types.InvalidInput, nil)
	}
	var blob goethkzg.Blob
	for i, e := range elements {
		if len(e) != field.Size {
			return nil, types.Wrap("kzgcommit", types.InvalidInput, nil)
		}
		copy(blob[i*field.Size:(i+1)*field.Size], e)
	}
	return &blob, nil
}
