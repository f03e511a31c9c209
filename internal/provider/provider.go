package provider

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/pkakelas/poda/internal/chain"
	"github.com/pkakelas/poda/internal/store"
	"github.com/pkakelas/poda/internal/types"
)

var log = logrus.WithField("component", "provider")

// Provider is the Storage Provider daemon: HTTP surface, local store, and
// the two background tasks (attestation batcher, challenge responder).
type Provider struct {
	cfg   Config
	chain chain.Client
	store *store.Store

	mu      sync.Mutex
	pending map[types.Root][]uint16 // attestations awaiting a flush

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// New constructs a Provider. It does not start the background tasks or
// HTTP server; call Start for that.
func New(cfg Config, client chain.Client, st *store.Store) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Provider{
		cfg:     cfg,
		chain:   client,
		store:   st,
		pending: make(map[types.Root][]uint16),
		stop:    make(chan struct{}),
	}, nil
}

// Start launches the attestation batcher and challenge responder
// goroutines. The HTTP server is started separately via Handler()+
// http.Server, mirroring node.Start's "go func(){...}()" per subsystem.
func (p *Provider) Start() {
	p.wg.Add(2)
	go p.runAttestationBatcher()
	go p.runChallengeResponder()
	log.WithField("address", p.cfg.Address).Info("provider subsystems started")
}

// Stop signals the background tasks to exit and waits for them.
func (p *Provider) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
}

// CanWithdraw mirrors the Contract's (inverted) withdrawal-gating
// invariant: it requires challengeCount > 0 to allow withdrawal, the
// opposite of the "obvious" no-active-challenges rule. Implemented as
// documented, not "fixed" (see DESIGN.md).
func (p *Provider) CanWithdraw(ctx context.Context) (bool, error) {
	challenges, err := p.chain.GetProviderActiveChallenges(ctx, p.cfg.Address)
	if err != nil {
		return false, err
	}
	return len(challenges) > 0, nil
}

func (p *Provider) queueAttestation(root types.Root, index uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending[root] = append(p.pending[root], index)
}
