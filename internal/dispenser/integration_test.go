package dispenser

import (
	"context"
	"crypto/rand"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pkakelas/poda/internal/chain"
	"github.com/pkakelas/poda/internal/provider"
	"github.com/pkakelas/poda/internal/store"
	"github.com/pkakelas/poda/internal/types"
)

// harness wires up a Fake chain plus numProviders real Storage Provider
// instances behind httptest servers, the full off-chain stack minus a real
// RPC endpoint.
type harness struct {
	fake      *chain.Fake
	providers []*provider.Provider
	servers   []*httptest.Server
}

func newHarness(t *testing.T, numProviders int) *harness {
	t.Helper()
	fake := chain.NewFake()
	h := &harness{fake: fake}

	for i := 0; i < numProviders; i++ {
		identity := providerIdentity(i)
		st, err := store.Open(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { _ = st.Close() })

		cfg := provider.DefaultConfig()
		cfg.Address = identity
		cfg.AttestationFlushInterval = 5 * time.Millisecond
		cfg.ChallengePollInterval = 20 * time.Millisecond

		p, err := provider.New(cfg, fake.AsCaller(identity), st)
		require.NoError(t, err)
		p.Start()
		t.Cleanup(p.Stop)

		srv := httptest.NewServer(p.Handler())
		t.Cleanup(srv.Close)

		fake.RegisterFakeProvider(types.Provider{
			Address: identity,
			URL:     srv.URL,
			Stake:   uint64(10 + i),
			Active:  true,
		})

		h.providers = append(h.providers, p)
		h.servers = append(h.servers, srv)
	}
	return h
}

func providerIdentity(i int) string {
	return "provider-" + string(rune('a'+i))
}

func randomBlob(t *testing.T, size int) []byte {
	t.Helper()
	b := make([]byte, size)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func TestIngestThenRetrieveRoundTrip(t *testing.T) {
	h := newHarness(t, 6)
	cfg := DefaultConfig()
	cfg.N, cfg.K = 6, 4
	d, err := New(cfg, h.fake)
	require.NoError(t, err)

	blob := randomBlob(t, 5000)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	root, err := d.Ingest(ctx, blob)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		recoverable, err := h.fake.IsCommitmentRecoverable(ctx, root)
		return err == nil && recoverable
	}, 2*time.Second, 10*time.Millisecond, "commitment should become recoverable once attestations flush")

	got, err := d.Retrieve(ctx, root)
	require.NoError(t, err)
	require.Equal(t, blob, got)
}

func TestIngestDuplicateCommitmentIsRejected(t *testing.T) {
	h := newHarness(t, 6)
	cfg := DefaultConfig()
	cfg.N, cfg.K = 6, 4
	d, err := New(cfg, h.fake)
	require.NoError(t, err)

	// Same content always produces the same commitment for a systematic
	// code with a fixed (n, k), so submitting it twice must hit
	// DuplicateCommitment on the second SubmitCommitment call.
	blob := randomBlob(t, 1000)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = d.Ingest(ctx, blob)
	require.NoError(t, err)

	_, err = d.Ingest(ctx, blob)
	require.Error(t, err)
	require.Equal(t, types.DuplicateCommitment, types.KindOf(err))
}

func TestRetrieveUnknownCommitmentIsNotRecoverable(t *testing.T) {
	h := newHarness(t, 2)
	cfg := DefaultConfig()
	cfg.N, cfg.K = 2, 1
	d, err := New(cfg, h.fake)
	require.NoError(t, err)

	var root types.Root
	root[0] = 0x99

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = d.Retrieve(ctx, root)
	require.Error(t, err)
	require.Equal(t, types.NotRecoverable, types.KindOf(err))
}

func TestIngestFewerProvidersThanNStillSucceedsWhenAboveK(t *testing.T) {
	h := newHarness(t, 3) // fewer than n, assignment wraps with replacement
	cfg := DefaultConfig()
	cfg.N, cfg.K = 6, 3
	d, err := New(cfg, h.fake)
	require.NoError(t, err)

	blob := randomBlob(t, 2000)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	root, err := d.Ingest(ctx, blob)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		recoverable, err := h.fake.IsCommitmentRecoverable(ctx, root)
		return err == nil && recoverable
	}, 2*time.Second, 10*time.Millisecond)

	got, err := d.Retrieve(ctx, root)
	require.NoError(t, err)
	require.Equal(t, blob, got)
}
