package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/pkakelas/poda/internal/types"
)

func (c *EthClient) RegisterProvider(ctx context.Context, name, url string, stake *big.Int) error {
	prevValue := c.txOpts.Value
	c.txOpts.Value = stake
	defer func() { c.txOpts.Value = prevValue }()
	return c.transact(ctx, "chain.RegisterProvider", "registerProvider", name, url)
}

func (c *EthClient) SubmitCommitment(ctx context.Context, root types.Root, size uint64, n, k uint16, kzgCommitment types.KZGCommitment) error {
	return c.transact(ctx, "chain.SubmitCommitment", "submitCommitment", [32]byte(root), size, n, k, kzgCommitment[:])
}

func (c *EthClient) SubmitChunkAttestations(ctx context.Context, root types.Root, indices []uint16) error {
	return c.transact(ctx, "chain.SubmitChunkAttestations", "submitChunkAttestations", [32]byte(root), indices)
}

func (c *EthClient) IssueChunkChallenge(ctx context.Context, root types.Root, index uint16, provider string) ([32]byte, error) {
	var id [32]byte
	err := c.transact(ctx, "chain.IssueChunkChallenge", "issueChunkChallenge", [32]byte(root), index, common.HexToAddress(provider))
	return id, err
}

func (c *EthClient) RespondToChunkChallenge(ctx context.Context, root types.Root, index uint16, chunkData []byte, proof [][32]byte) error {
	return c.transact(ctx, "chain.RespondToChunkChallenge", "respondToChunkChallenge", [32]byte(root), index, chunkData, proof)
}

func (c *EthClient) SlashExpiredChallenge(ctx context.Context, root types.Root, index uint16, provider string) error {
	return c.transact(ctx, "chain.SlashExpiredChallenge", "slashExpiredChallenge", [32]byte(root), index, common.HexToAddress(provider))
}

func (c *EthClient) CommitmentExists(ctx context.Context, root types.Root) (bool, error) {
	var out []interface{}
	if err := c.call(ctx, "chain.CommitmentExists", &out, "commitmentExists", [32]byte(root)); err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (c *EthClient) IsCommitmentRecoverable(ctx context.Context, root types.Root) (bool, error) {
	var out []interface{}
	if err := c.call(ctx, "chain.IsCommitmentRecoverable", &out, "isCommitmentRecoverable", [32]byte(root)); err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (c *EthClient) GetCommitmentInfo(ctx context.Context, root types.Root) (types.CommitmentRecord, error) {
	var out []interface{}
	rec := types.CommitmentRecord{Root: root}
	if err := c.call(ctx, "chain.GetCommitmentInfo", &out, "getCommitmentInfo", [32]byte(root)); err != nil {
		return rec, err
	}
	rec.Size = *abi.ConvertType(out[0], new(uint64)).(*uint64)
	rec.Timestamp = int64(*abi.ConvertType(out[1], new(uint64)).(*uint64))
	rec.N = *abi.ConvertType(out[2], new(uint16)).(*uint16)
	rec.K = *abi.ConvertType(out[3], new(uint16)).(*uint16)
	rec.AvailableChunks = *abi.ConvertType(out[4], new(uint32)).(*uint32)
	kzg := *abi.ConvertType(out[5], new([]byte)).(*[]byte)
	copy(rec.KZGCommitment[:], kzg)
	return rec, nil
}

func (c *EthClient) GetCommitmentList(ctx context.Context) ([]types.Root, error) {
	var out []interface{}
	if err := c.call(ctx, "chain.GetCommitmentList", &out, "getCommitmentList"); err != nil {
		return nil, err
	}
	raw := *abi.ConvertType(out[0], new([][32]byte)).(*[][32]byte)
	roots := make([]types.Root, len(raw))
	for i, r := range raw {
		roots[i] = types.Root(r)
	}
	return roots, nil
}

func (c *EthClient) GetCommitmentChunkMap(ctx context.Context, root types.Root) (map[string][]uint16, error) {
	var out []interface{}
	if err := c.call(ctx, "chain.GetCommitmentChunkMap", &out, "getCommitmentChunkMap", [32]byte(root)); err != nil {
		return nil, err
	}
	providers := *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address)
	chunkIDs := *abi.ConvertType(out[1], new([][]uint16)).(*[][]uint16)
	result := make(map[string][]uint16, len(providers))
	for i, p := range providers {
		if i < len(chunkIDs) {
			result[p.Hex()] = chunkIDs[i]
		}
	}
	return result, nil
}

func (c *EthClient) GetProviders(ctx context.Context, eligible bool) ([]types.Provider, error) {
	var out []interface{}
	if err := c.call(ctx, "chain.GetProviders", &out, "getProviders", eligible); err != nil {
		return nil, err
	}
	addrs := *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address)
	urls := *abi.ConvertType(out[1], new([]string)).(*[]string)
	stakes := *abi.ConvertType(out[2], new([]*big.Int)).(*[]*big.Int)
	actives := *abi.ConvertType(out[3], new([]bool)).(*[]bool)
	issued := *abi.ConvertType(out[4], new([]uint32)).(*[]uint32)

	providers := make([]types.Provider, len(addrs))
	for i, a := range addrs {
		p := types.Provider{Address: a.Hex()}
		if i < len(urls) {
			p.URL = urls[i]
		}
		if i < len(stakes) {
			p.Stake = stakes[i].Uint64()
		}
		if i < len(actives) {
			p.Active = actives[i]
		}
		if i < len(issued) {
			p.ChallengesIssued = issued[i]
		}
		providers[i] = p
	}
	return providers, nil
}

func (c *EthClient) GetProviderActiveChallenges(ctx context.Context, provider string) ([]types.ActiveChallenge, error) {
	return c.getChallenges(ctx, "chain.GetProviderActiveChallenges", "getProviderActiveChallenges", provider)
}

func (c *EthClient) GetProviderExpiredChallenges(ctx context.Context, provider string) ([]types.ActiveChallenge, error) {
	return c.getChallenges(ctx, "chain.GetProviderExpiredChallenges", "getProviderExpiredChallenges", provider)
}

func (c *EthClient) getChallenges(ctx context.Context, op, method, provider string) ([]types.ActiveChallenge, error) {
	var out []interface{}
	if err := c.call(ctx, op, &out, method, common.HexToAddress(provider)); err != nil {
		return nil, err
	}
	roots := *abi.ConvertType(out[0], new([][32]byte)).(*[][32]byte)
	indices := *abi.ConvertType(out[1], new([]uint16)).(*[]uint16)
	challenges := make([]types.ActiveChallenge, 0, len(roots))
	for i := range roots {
		if i >= len(indices) {
			break
		}
		challenges = append(challenges, types.ActiveChallenge{
			Root:     types.Root(roots[i]),
			Index:    indices[i],
			Provider: provider,
		})
	}
	return challenges, nil
}

func (c *EthClient) GetChunkOwner(ctx context.Context, root types.Root, index uint16) (string, error) {
	var out []interface{}
	if err := c.call(ctx, "chain.GetChunkOwner", &out, "getChunkOwner", [32]byte(root), index); err != nil {
		return "", err
	}
	return (*abi.ConvertType(out[0], new(common.Address)).(*common.Address)).Hex(), nil
}
