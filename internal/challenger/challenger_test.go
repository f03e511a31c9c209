package challenger

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pkakelas/poda/internal/chain"
	"github.com/pkakelas/poda/internal/types"
)

func seedCommitment(t *testing.T, fake *chain.Fake, root types.Root, n, k uint16) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, fake.SubmitCommitment(ctx, root, 1000, n, k, types.KZGCommitment{}))
	require.NoError(t, fake.AttestAs("provider-a", root, []uint16{0, 1}))
	require.NoError(t, fake.AttestAs("provider-b", root, []uint16{2}))
}

func TestSampleOnceIssuesAChallenge(t *testing.T) {
	fake := chain.NewFake()
	fake.RegisterFakeProvider(types.Provider{Address: "provider-a", URL: "http://a", Active: true})
	fake.RegisterFakeProvider(types.Provider{Address: "provider-b", URL: "http://b", Active: true})

	var root types.Root
	root[0] = 0x01
	seedCommitment(t, fake, root, 3, 3)

	cfg := DefaultConfig()
	c, err := New(cfg, fake)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(1, 2))
	c.sampleOnce(rng)

	ctx := context.Background()
	a, err := fake.GetProviderActiveChallenges(ctx, "provider-a")
	require.NoError(t, err)
	b, err := fake.GetProviderActiveChallenges(ctx, "provider-b")
	require.NoError(t, err)
	require.Equal(t, 1, len(a)+len(b), "exactly one challenge should have been issued")
}

func TestSweepOnceSlashesExpiredChallenges(t *testing.T) {
	fake := chain.NewFake()
	fake.RegisterFakeProvider(types.Provider{Address: "provider-a", URL: "http://a", Active: true, Stake: 5})

	var root types.Root
	root[0] = 0x02
	seedCommitment(t, fake, root, 2, 2)

	ctx := context.Background()
	_, err := fake.IssueChunkChallenge(ctx, root, 0, "provider-a")
	require.NoError(t, err)

	chain.AdvanceClock(int64((time.Hour + time.Minute).Seconds()))

	cfg := DefaultConfig()
	c, err := New(cfg, fake)
	require.NoError(t, err)
	c.sweepOnce()

	remaining, err := fake.GetProviderActiveChallenges(ctx, "provider-a")
	require.NoError(t, err)
	require.Empty(t, remaining)
}
