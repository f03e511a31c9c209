package provider

import (
	"context"
	"time"

	"github.com/pkakelas/poda/internal/types"
)

// runAttestationBatcher flushes queued chunk attestations on an interval,
// capped at Config.AttestationBatchSize per on-chain call. Duplicate
// attestations are filtered by the Contract itself; this loop just keeps
// batches within the cap.
func (p *Provider) runAttestationBatcher() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.AttestationFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			p.flushAttestations()
			return
		case <-ticker.C:
			p.flushAttestations()
		}
	}
}

func (p *Provider) flushAttestations() {
	p.mu.Lock()
	batch := p.pending
	p.pending = make(map[types.Root][]uint16)
	p.mu.Unlock()

	for root, indices := range batch {
		for start := 0; start < len(indices); start += p.cfg.AttestationBatchSize {
			end := start + p.cfg.AttestationBatchSize
			if end > len(indices) {
				end = len(indices)
			}
			ctx, cancel := context.WithTimeout(context.Background(), p.cfg.RPCTimeout)
			err := p.chain.SubmitChunkAttestations(ctx, root, indices[start:end])
			cancel()
			if err != nil {
				log.WithError(err).WithField("root", root.String()).Warn("attestation batch failed")
			}
		}
	}
}

// runChallengeResponder polls getProviderActiveChallenges on
// Config.ChallengePollInterval (default 20s) and responds to every open
// challenge before it expires, never fabricating data for a chunk the
// provider does not hold.
func (p *Provider) runChallengeResponder() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.ChallengePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.respondToActiveChallenges()
		}
	}
}

func (p *Provider) respondToActiveChallenges() {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.RPCTimeout)
	challenges, err := p.chain.GetProviderActiveChallenges(ctx, p.cfg.Address)
	cancel()
	if err != nil {
		log.WithError(err).Warn("failed to list active challenges")
		return
	}

	for _, ch := range challenges {
		rec, err := p.store.Get(ch.Root, ch.Index)
		if err != nil {
			// Storage is missing the chunk: do not respond with
			// fabricated data. The challenge expires and slashes.
			log.WithField("root", ch.Root.String()).WithField("index", ch.Index).
				Warn("missing chunk for active challenge, letting it expire")
			continue
		}
		cctx, ccancel := context.WithTimeout(context.Background(), p.cfg.RPCTimeout)
		err = p.chain.RespondToChunkChallenge(cctx, ch.Root, ch.Index, rec.Data, rec.Proof.Siblings)
		ccancel()
		if err != nil {
			log.WithError(err).WithField("root", ch.Root.String()).WithField("index", ch.Index).
				Warn("challenge response failed")
		}
	}
}
