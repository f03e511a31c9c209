package challenger

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/pkakelas/poda/internal/dispenser"
	"github.com/pkakelas/poda/internal/types"
)

// runSampler issues at most one challenge per tick, throttled to avoid
// on-chain spam, the same ticker-loop shape as internal/provider's
// background tasks.
func (c *Challenger) runSampler() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.SampleInterval)
	defer ticker.Stop()

	rng := dispenser.NewSecureRand()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sampleOnce(rng)
		}
	}
}

func (c *Challenger) sampleOnce(rng *rand.Rand) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RPCTimeout)
	defer cancel()

	root, ok := c.pickRecoverableCommitment(ctx, rng)
	if !ok {
		return
	}

	chunkMap, err := c.chain.GetCommitmentChunkMap(ctx, root)
	if err != nil {
		log.WithError(err).WithField("root", root.String()).Warn("failed to enumerate chunk map")
		return
	}
	providers, err := c.chain.GetProviders(ctx, true)
	if err != nil {
		log.WithError(err).Warn("failed to list providers")
		return
	}

	type candidate struct {
		provider string
		index    uint16
	}
	var candidates []candidate
	issuedByProvider := make(map[string]uint32, len(providers))
	for _, p := range providers {
		issuedByProvider[p.Address] = p.ChallengesIssued
	}
	for provider, indices := range chunkMap {
		for _, idx := range indices {
			candidates = append(candidates, candidate{provider: provider, index: idx})
		}
	}
	if len(candidates) == 0 {
		return
	}

	// Bias toward underchallenged providers: weight each candidate inversely
	// to its provider's challenges_issued count.
	weights := make([]uint64, len(candidates))
	var total uint64
	for i, cd := range candidates {
		w := (uint64(1) << 20) / uint64(1+issuedByProvider[cd.provider])
		if w == 0 {
			w = 1
		}
		weights[i] = w
		total += w
	}
	target := rng.Uint64N(total)
	var cum uint64
	chosen := candidates[len(candidates)-1]
	for i, w := range weights {
		cum += w
		if target < cum {
			chosen = candidates[i]
			break
		}
	}

	if _, err := c.chain.IssueChunkChallenge(ctx, root, chosen.index, chosen.provider); err != nil {
		// The Fake ignores an "already active" challenge; the real client
		// returns that revert as an error. Either way an error is only
		// logged and the next tick samples again.
		log.WithError(err).WithField("root", root.String()).WithField("provider", chosen.provider).
			Warn("issueChunkChallenge failed")
	}
}

// pickRecoverableCommitment draws a uniformly random commitment from
// getCommitmentList and checks recoverability, retrying a bounded number of
// times rather than scanning the whole list.
func (c *Challenger) pickRecoverableCommitment(ctx context.Context, rng *rand.Rand) (types.Root, bool) {
	var zero types.Root
	roots, err := c.chain.GetCommitmentList(ctx)
	if err != nil || len(roots) == 0 {
		return zero, false
	}
	const maxAttempts = 8
	for attempt := 0; attempt < maxAttempts; attempt++ {
		root := roots[rng.IntN(len(roots))]
		recoverable, err := c.chain.IsCommitmentRecoverable(ctx, root)
		if err != nil {
			continue
		}
		if recoverable {
			return root, true
		}
	}
	return zero, false
}
