package dispenser

import (
	"crypto/rand"
	"math/rand/v2"

	"github.com/pkakelas/poda/internal/types"
)

// NewSecureRand builds a math/rand/v2 source seeded from crypto/rand, used
// by both chunk placement and the Challenger's sampler so neither is
// predictable from a process-start-time seed.
func NewSecureRand() *rand.Rand {
	var seed [32]byte
	if _, err := rand.Read(seedSlice(&seed)); err != nil {
		// crypto/rand failing is effectively unrecoverable; panic is
		// consistent with how a failed trusted-setup load is fatal.
		panic("dispenser: crypto/rand unavailable: " + err.Error())
	}
	return rand.New(rand.NewChaCha8(seed))
}

func seedSlice(seed *[32]byte) []byte { return seed[:] }

// AssignChunks implements the stake-weighted placement policy documented
// in DESIGN.md (Open Question decision 2): providers are drawn weighted by
// stake, without replacement, in rounds -- a round assigns at most one
// chunk per provider, and the provider pool is replenished to its full
// eligible set at the start of each new round. This generalizes the two
// cases of having at least n eligible providers versus fewer than n into a
// single algorithm: when there are enough providers, everything happens in
// one round; when there are not, later rounds wrap with replacement exactly
// once every provider has its fair share from the current round.
func AssignChunks(providers []types.Provider, n int, rng *rand.Rand) map[int]string {
	assignment := make(map[int]string, n)
	if len(providers) == 0 {
		return assignment
	}

	pool := make([]types.Provider, len(providers))
	copy(pool, providers)

	for chunk := 0; chunk < n; chunk++ {
		if len(pool) == 0 {
			pool = make([]types.Provider, len(providers))
			copy(pool, providers)
		}
		idx := weightedPick(pool, rng)
		assignment[chunk] = pool[idx].Address
		pool = append(pool[:idx], pool[idx+1:]...)
	}
	return assignment
}

// weightedPick draws one index from pool with probability proportional to
// stake. Providers with zero stake are never selected unless every
// provider has zero stake, in which case the draw is uniform.
func weightedPick(pool []types.Provider, rng *rand.Rand) int {
	var total uint64
	for _, p := range pool {
		total += p.Stake
	}
	if total == 0 {
		return int(rng.Uint64N(uint64(len(pool))))
	}
	target := rng.Uint64N(total)
	var cum uint64
	for i, p := range pool {
		cum += p.Stake
		if target < cum {
			return i
		}
	}
	return len(pool) - 1
}
