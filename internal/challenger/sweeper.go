package challenger

import (
	"context"
	"time"
)

// runSweeper claims the slashing bounty on expired challenges, on its own
// slower cadence separate from the sampler.
func (c *Challenger) runSweeper() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweepOnce()
		}
	}
}

func (c *Challenger) sweepOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RPCTimeout)
	defer cancel()

	providers, err := c.chain.GetProviders(ctx, false)
	if err != nil {
		log.WithError(err).Warn("failed to list providers for sweep")
		return
	}
	for _, p := range providers {
		expired, err := c.chain.GetProviderExpiredChallenges(ctx, p.Address)
		if err != nil {
			log.WithError(err).WithField("provider", p.Address).Warn("failed to list expired challenges")
			continue
		}
		for _, ch := range expired {
			cctx, cancel := context.WithTimeout(context.Background(), c.cfg.RPCTimeout)
			err := c.chain.SlashExpiredChallenge(cctx, ch.Root, ch.Index, ch.Provider)
			cancel()
			if err != nil {
				log.WithError(err).WithField("root", ch.Root.String()).WithField("provider", ch.Provider).
					Warn("slashExpiredChallenge failed")
			}
		}
	}
}
