package merkle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildTestTree(t *testing.T, numLeaves int) (*Tree, [][32]byte) {
	t.Helper()
	leaves := make([][32]byte, numLeaves)
	for i := range leaves {
		leaves[i] = LeafHash(uint16(i), []byte{byte(i), byte(i * 7)})
	}
	tree, err := Build(leaves)
	require.NoError(t, err)
	return tree, leaves
}

func TestProveVerifyRoundTrip(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 8, 9, 17} {
		tree, leaves := buildTestTree(t, n)
		root := tree.Root()
		for i := 0; i < n; i++ {
			proof, err := tree.Prove(uint16(i))
			require.NoError(t, err)
			require.True(t, Verify(proof, root, leaves[i]), "leaf %d in tree of %d", i, n)
		}
	}
}

func TestVerifyRejectsWrongLeaf(t *testing.T) {
	tree, leaves := buildTestTree(t, 6)
	root := tree.Root()
	proof, err := tree.Prove(2)
	require.NoError(t, err)
	require.False(t, Verify(proof, root, leaves[3]))
}

func TestVerifyRejectsTamperedProof(t *testing.T) {
	tree, leaves := buildTestTree(t, 6)
	root := tree.Root()
	proof, err := tree.Prove(2)
	require.NoError(t, err)
	proof.Siblings[0][0] ^= 0xff
	require.False(t, Verify(proof, root, leaves[2]))
}

func TestLeafHashIncludesIndex(t *testing.T) {
	data := []byte("same bytes, different index")
	require.NotEqual(t, LeafHash(0, data), LeafHash(1, data))
}

func TestBuildRejectsEmpty(t *testing.T) {
	_, err := Build(nil)
	require.Error(t, err)
}
