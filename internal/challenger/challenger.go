package challenger

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/pkakelas/poda/internal/chain"
)

var log = logrus.WithField("component", "challenger")

// Challenger runs the chunk-sampling and expiry-sweep loops against a
// Contract client, the same Start/Stop lifecycle shape as
// internal/provider.Provider.
type Challenger struct {
	cfg   Config
	chain chain.Client

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// New constructs a Challenger against the given Contract client.
func New(cfg Config, client chain.Client) (*Challenger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Challenger{cfg: cfg, chain: client, stop: make(chan struct{})}, nil
}

// Start launches the sampler and sweeper goroutines.
func (c *Challenger) Start() {
	c.wg.Add(2)
	go c.runSampler()
	go c.runSweeper()
}

// Stop signals both loops to exit and waits for them to finish.
func (c *Challenger) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	c.wg.Wait()
}
