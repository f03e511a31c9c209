package dispenser

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pkakelas/poda/internal/types"
)

func deterministicRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func TestAssignChunksCoversAllChunks(t *testing.T) {
	providers := []types.Provider{
		{Address: "a", Stake: 10, Active: true},
		{Address: "b", Stake: 20, Active: true},
		{Address: "c", Stake: 5, Active: true},
	}
	assignment := AssignChunks(providers, 24, deterministicRand(1))
	require.Len(t, assignment, 24)
	for i := 0; i < 24; i++ {
		addr, ok := assignment[i]
		require.True(t, ok, "chunk %d unassigned", i)
		require.Contains(t, []string{"a", "b", "c"}, addr)
	}
}

func TestAssignChunksFewerProvidersThanChunksStillCoversEveryone(t *testing.T) {
	providers := []types.Provider{
		{Address: "only-one", Stake: 1, Active: true},
	}
	assignment := AssignChunks(providers, 10, deterministicRand(2))
	require.Len(t, assignment, 10)
	for i := 0; i < 10; i++ {
		require.Equal(t, "only-one", assignment[i])
	}
}

// TestAssignChunksStakeWeightedConvergence checks that, over many
// independent assignment runs, higher-stake providers receive
// proportionally more chunks. Each run assigns a single chunk, so every run
// is one stake-weighted draw; with n equal to the provider count each
// provider would get exactly one chunk per run regardless of stake.
func TestAssignChunksStakeWeightedConvergence(t *testing.T) {
	providers := []types.Provider{
		{Address: "heavy", Stake: 90, Active: true},
		{Address: "light", Stake: 10, Active: true},
	}
	counts := map[string]int{}
	const runs = 500
	for i := 0; i < runs; i++ {
		assignment := AssignChunks(providers, 1, deterministicRand(uint64(i)+1000))
		for _, addr := range assignment {
			counts[addr]++
		}
	}
	total := counts["heavy"] + counts["light"]
	require.Greater(t, total, 0)
	heavyShare := float64(counts["heavy"]) / float64(total)
	require.Greater(t, heavyShare, 0.6, "heavy-stake provider should receive a majority share")
}

func TestAssignChunksEmptyProvidersReturnsEmpty(t *testing.T) {
	assignment := AssignChunks(nil, 5, deterministicRand(3))
	require.Empty(t, assignment)
}
