package dispenser

import (
	"github.com/sirupsen/logrus"

	"github.com/pkakelas/poda/internal/chain"
)

var log = logrus.WithField("component", "dispenser")

// Dispenser owns the ingest and retrieval pipelines and exposes them over
// HTTP (Handler).
type Dispenser struct {
	cfg      Config
	chain    chain.Client
	provider *providerClient
}

// New constructs a Dispenser against the given Contract client.
func New(cfg Config, client chain.Client) (*Dispenser, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Dispenser{cfg: cfg, chain: client, provider: newProviderClient()}, nil
}
