// Package merkle implements a binary Merkle tree over chunk leaves:
// duplicate-on-odd-level padding, Keccak256 hashing, and sibling-path
// proofs, hashed the way the Contract hashes on-chain.
package merkle

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/pkakelas/poda/internal/types"
)

// LeafHash returns H(uint16(index) ++ H(chunk)), matching the Solidity
// preimage abi.encodePacked(uint16, bytes32) would produce.
func LeafHash(index uint16, chunk []byte) [32]byte {
	chunkHash := crypto.Keccak256(chunk)
	buf := make([]byte, 2+32)
	binary.BigEndian.PutUint16(buf[:2], index)
	copy(buf[2:], chunkHash)
	return [32]byte(crypto.Keccak256(buf))
}

func hashPair(left, right [32]byte) [32]byte {
	buf := make([]byte, 64)
	copy(buf[:32], left[:])
	copy(buf[32:], right[:])
	return [32]byte(crypto.Keccak256(buf))
}

// Tree is a binary Merkle tree built bottom-up, one level at a time, with
// the last node of an odd-length level duplicated rather than the level
// padded out to a power of two.
type Tree struct {
	levels [][][32]byte // levels[0] = leaves, levels[len-1] = [root]
}

// Build constructs a Tree over the given leaf hashes. It is an error to
// build a tree with no leaves.
func Build(leaves [][32]byte) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, types.Wrap("merkle.Build", types.InvalidInput, nil)
	}
	levels := make([][][32]byte, 0, 1)
	cur := make([][32]byte, len(leaves))
	copy(cur, leaves)
	levels = append(levels, cur)

	for len(cur) > 1 {
		if len(cur)%2 == 1 {
			cur = append(cur, cur[len(cur)-1])
		}
		next := make([][32]byte, len(cur)/2)
		for i := 0; i < len(next); i++ {
			next[i] = hashPair(cur[2*i], cur[2*i+1])
		}
		levels = append(levels, next)
		cur = next
	}
	return &Tree{levels: levels}, nil
}

// Root returns the tree's root hash.
func (t *Tree) Root() [32]byte {
	top := t.levels[len(t.levels)-1]
	return top[0]
}

// Prove returns the sibling path from leaf index to the root.
func (t *Tree) Prove(index uint16) (types.MerkleProof, error) {
	leaves := t.levels[0]
	if int(index) >= len(leaves) {
		return types.MerkleProof{}, types.Wrap("merkle.Prove", types.InvalidInput, nil)
	}
	proof := types.MerkleProof{Index: index}
	pos := int(index)
	for lvl := 0; lvl < len(t.levels)-1; lvl++ {
		level := t.levels[lvl]
		levelLen := len(level)
		// The padded sibling is real at build time (duplicated last node),
		// so the same duplication rule is reapplied here for odd levels.
		var sibling [32]byte
		if pos^1 < levelLen {
			sibling = level[pos^1]
		} else {
			sibling = level[pos]
		}
		proof.Siblings = append(proof.Siblings, sibling)
		pos /= 2
	}
	return proof, nil
}

// Verify reconstructs the root bottom-up from leaf and proof and compares
// it against root.
func Verify(proof types.MerkleProof, root [32]byte, leaf [32]byte) bool {
	cur := leaf
	pos := int(proof.Index)
	for _, sibling := range proof.Siblings {
		if pos%2 == 0 {
			cur = hashPair(cur, sibling)
		} else {
			cur = hashPair(sibling, cur)
		}
		pos /= 2
	}
	return cur == root
}
