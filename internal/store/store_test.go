package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pkakelas/poda/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	var root types.Root
	root[0] = 0xaa

	rec := Record{
		Data:  []byte("chunk payload"),
		Proof: types.MerkleProof{Siblings: [][32]byte{{1, 2, 3}, {4, 5, 6}}, Index: 7},
	}
	require.NoError(t, s.Put(root, 7, rec))

	got, err := s.Get(root, 7)
	require.NoError(t, err)
	require.Equal(t, rec.Data, got.Data)
	require.Equal(t, rec.Proof.Siblings, got.Proof.Siblings)
}

func TestPutIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	var root types.Root
	rec := Record{Data: []byte("x"), Proof: types.MerkleProof{Index: 0}}
	require.NoError(t, s.Put(root, 0, rec))
	require.NoError(t, s.Put(root, 0, rec)) // identical re-PUT is a no-op
}

func TestPutRejectsConflictingContent(t *testing.T) {
	s := openTestStore(t)
	var root types.Root
	require.NoError(t, s.Put(root, 0, Record{Data: []byte("a"), Proof: types.MerkleProof{Index: 0}}))
	err := s.Put(root, 0, Record{Data: []byte("b"), Proof: types.MerkleProof{Index: 0}})
	require.Error(t, err)
	require.Equal(t, types.InvalidInput, types.KindOf(err))
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := openTestStore(t)
	var root types.Root
	_, err := s.Get(root, 0)
	require.Error(t, err)
	require.Equal(t, types.NotFound, types.KindOf(err))
}
