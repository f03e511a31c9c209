package chain

import (
	"math/big"
	"sync"

	"context"

	"github.com/pkakelas/poda/internal/types"
)

// Fake is an in-memory Client double used by dispenser/provider tests in
// place of a live RPC endpoint. It mirrors the subset of Contract state and
// invariants those tests exercise: commitment existence, chunk ownership,
// availability counts, and challenge lifecycle.
type Fake struct {
	mu sync.Mutex

	commitments map[types.Root]*types.CommitmentRecord
	owners      map[types.Root]map[uint16]string // index -> provider address
	providers   map[string]*types.Provider
	challenges  map[challengeKey]*types.ActiveChallenge
	nextChallID uint64
}

type challengeKey struct {
	root     types.Root
	index    uint16
	provider string
}

// NewFake returns an empty Fake with no commitments or providers
// registered.
func NewFake() *Fake {
	return &Fake{
		commitments: make(map[types.Root]*types.CommitmentRecord),
		owners:      make(map[types.Root]map[uint16]string),
		providers:   make(map[string]*types.Provider),
		challenges:  make(map[challengeKey]*types.ActiveChallenge),
	}
}

var _ Client = (*Fake)(nil)

// RegisterFakeProvider seeds a provider directly, bypassing the payable
// on-chain call, for test setup.
func (f *Fake) RegisterFakeProvider(p types.Provider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := p
	f.providers[p.Address] = &cp
}

func (f *Fake) RegisterProvider(ctx context.Context, name, url string, stake *big.Int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.providers[url] = &types.Provider{Address: url, URL: url, Stake: stake.Uint64(), Active: true}
	return nil
}

func (f *Fake) SubmitCommitment(ctx context.Context, root types.Root, size uint64, n, k uint16, kzg types.KZGCommitment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.commitments[root]; exists {
		return types.Wrap("chain.SubmitCommitment", types.DuplicateCommitment, nil)
	}
	f.commitments[root] = &types.CommitmentRecord{Root: root, Size: size, N: n, K: k, KZGCommitment: kzg}
	f.owners[root] = make(map[uint16]string)
	return nil
}

func (f *Fake) SubmitChunkAttestations(ctx context.Context, root types.Root, indices []uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.commitments[root]
	if !ok {
		return types.Wrap("chain.SubmitChunkAttestations", types.ChainRpcFatal, nil)
	}
	owners := f.owners[root]
	for _, idx := range indices {
		if _, already := owners[idx]; already {
			continue
		}
		owners[idx] = "test-caller"
		rec.AvailableChunks++
	}
	return nil
}

// AttestAs is a test helper that records chunk ownership under a specific
// provider address (the real Contract infers the caller from msg.sender;
// the fake needs it passed explicitly).
func (f *Fake) AttestAs(provider string, root types.Root, indices []uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.commitments[root]
	if !ok {
		return types.Wrap("chain.AttestAs", types.ChainRpcFatal, nil)
	}
	owners := f.owners[root]
	for _, idx := range indices {
		if _, already := owners[idx]; already {
			continue
		}
		owners[idx] = provider
		rec.AvailableChunks++
	}
	return nil
}

func (f *Fake) IssueChunkChallenge(ctx context.Context, root types.Root, index uint16, provider string) ([32]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := challengeKey{root, index, provider}
	if _, active := f.challenges[key]; active {
		return [32]byte{}, nil // "already active" revert is ignored by callers
	}
	f.nextChallID++
	var id [32]byte
	id[31] = byte(f.nextChallID)
	f.challenges[key] = &types.ActiveChallenge{Root: root, Index: index, Provider: provider, ChallengeID: id, IssuedAt: fakeNow()}
	return id, nil
}

func (f *Fake) RespondToChunkChallenge(ctx context.Context, root types.Root, index uint16, chunkData []byte, proof [][32]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	// A real contract would re-verify the Merkle proof; the fake trusts
	// its caller since proof re-verification is exercised by
	// internal/merkle's own tests, not by the chain double.
	for key := range f.challenges {
		if key.root == root && key.index == index {
			delete(f.challenges, key)
		}
	}
	return nil
}

// RespondToChunkChallengeAs clears only the challenge issued against
// identity, the identity-scoped counterpart used by AsCaller -- a real
// contract would reject the response unless msg.sender == challenge.Provider.
func (f *Fake) RespondToChunkChallengeAs(identity string, root types.Root, index uint16, chunkData []byte, proof [][32]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := challengeKey{root, index, identity}
	if _, ok := f.challenges[key]; !ok {
		return types.Wrap("chain.RespondToChunkChallenge", types.ChainRpcFatal, nil)
	}
	delete(f.challenges, key)
	return nil
}

func (f *Fake) SlashExpiredChallenge(ctx context.Context, root types.Root, index uint16, provider string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := challengeKey{root, index, provider}
	ch, ok := f.challenges[key]
	if !ok {
		return types.Wrap("chain.SlashExpiredChallenge", types.ChainRpcFatal, nil)
	}
	if fakeNow() < ch.IssuedAt {
		return types.Wrap("chain.SlashExpiredChallenge", types.ChainRpcFatal, nil)
	}
	delete(f.challenges, key)
	delete(f.owners[root], index)
	if rec, ok := f.commitments[root]; ok && rec.AvailableChunks > 0 {
		rec.AvailableChunks--
	}
	if p, ok := f.providers[provider]; ok && p.Stake > 0 {
		p.Stake--
	}
	return nil
}

func (f *Fake) CommitmentExists(ctx context.Context, root types.Root) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.commitments[root]
	return ok, nil
}

func (f *Fake) IsCommitmentRecoverable(ctx context.Context, root types.Root) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.commitments[root]
	if !ok {
		return false, nil
	}
	return rec.AvailableChunks >= uint32(rec.K), nil
}

func (f *Fake) GetCommitmentInfo(ctx context.Context, root types.Root) (types.CommitmentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.commitments[root]
	if !ok {
		return types.CommitmentRecord{}, types.Wrap("chain.GetCommitmentInfo", types.NotFound, nil)
	}
	return *rec, nil
}

func (f *Fake) GetCommitmentList(ctx context.Context) ([]types.Root, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	roots := make([]types.Root, 0, len(f.commitments))
	for r := range f.commitments {
		roots = append(roots, r)
	}
	return roots, nil
}

func (f *Fake) GetCommitmentChunkMap(ctx context.Context, root types.Root) (map[string][]uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make(map[string][]uint16)
	for idx, provider := range f.owners[root] {
		result[provider] = append(result[provider], idx)
	}
	return result, nil
}

func (f *Fake) GetProviders(ctx context.Context, eligible bool) ([]types.Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Provider, 0, len(f.providers))
	for _, p := range f.providers {
		if eligible && !p.Active {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (f *Fake) GetProviderActiveChallenges(ctx context.Context, provider string) ([]types.ActiveChallenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.ActiveChallenge
	for key, ch := range f.challenges {
		if key.provider == provider {
			out = append(out, *ch)
		}
	}
	return out, nil
}

func (f *Fake) GetProviderExpiredChallenges(ctx context.Context, provider string) ([]types.ActiveChallenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.ActiveChallenge
	now := fakeNow()
	for key, ch := range f.challenges {
		if key.provider == provider && now >= ch.IssuedAt+challengePeriodSeconds {
			out = append(out, *ch)
		}
	}
	return out, nil
}

func (f *Fake) GetChunkOwner(ctx context.Context, root types.Root, index uint16) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	owner, ok := f.owners[root][index]
	if !ok {
		return "", types.Wrap("chain.GetChunkOwner", types.NotFound, nil)
	}
	return owner, nil
}

// challengePeriodSeconds mirrors the Contract constant CHALLENGE_PERIOD.
const challengePeriodSeconds = 3600

// fakeClock lets tests advance the Fake's notion of "now" deterministically
// instead of depending on wall-clock time, since Workflow/test scripts must
// not call time.Now().
var fakeClock int64

func fakeNow() int64 { return fakeClock }

// AdvanceClock moves the Fake's internal clock forward by seconds, for
// exercising challenge-expiry tests deterministically.
func AdvanceClock(seconds int64) { fakeClock += seconds }
