// Package chain is the typed RPC client over the Contract ABI, wrapping
// go-ethereum's ethclient and accounts/abi/bind the way any Go client of a
// deployed EVM contract does. The ABI JSON is embedded via go:embed since
// the contract source itself lives elsewhere but its shape is needed for
// typed calls.
package chain

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	podatypes "github.com/pkakelas/poda/internal/types"
)

//go:embed contract.abi.json
var contractABIJSON []byte

var log = logrus.WithField("component", "chain")

// Client is the RPC surface every off-chain component calls. It is an
// interface so dispenser/provider/challenger tests can supply an in-memory
// fake instead of a live RPC endpoint.
type Client interface {
	RegisterProvider(ctx context.Context, name, url string, stake *big.Int) error
	SubmitCommitment(ctx context.Context, root podatypes.Root, size uint64, n, k uint16, kzgCommitment podatypes.KZGCommitment) error
	SubmitChunkAttestations(ctx context.Context, root podatypes.Root, indices []uint16) error
	IssueChunkChallenge(ctx context.Context, root podatypes.Root, index uint16, provider string) ([32]byte, error)
	RespondToChunkChallenge(ctx context.Context, root podatypes.Root, index uint16, chunkData []byte, proof [][32]byte) error
	SlashExpiredChallenge(ctx context.Context, root podatypes.Root, index uint16, provider string) error

	CommitmentExists(ctx context.Context, root podatypes.Root) (bool, error)
	IsCommitmentRecoverable(ctx context.Context, root podatypes.Root) (bool, error)
	GetCommitmentInfo(ctx context.Context, root podatypes.Root) (podatypes.CommitmentRecord, error)
	GetCommitmentList(ctx context.Context) ([]podatypes.Root, error)
	GetCommitmentChunkMap(ctx context.Context, root podatypes.Root) (map[string][]uint16, error)
	GetProviders(ctx context.Context, eligible bool) ([]podatypes.Provider, error)
	GetProviderActiveChallenges(ctx context.Context, provider string) ([]podatypes.ActiveChallenge, error)
	GetProviderExpiredChallenges(ctx context.Context, provider string) ([]podatypes.ActiveChallenge, error)
	GetChunkOwner(ctx context.Context, root podatypes.Root, index uint16) (string, error)
}

// EthClient is the real Client backed by a JSON-RPC endpoint, grounded on
// go-ethereum's ethclient.Client + accounts/abi/bind.BoundContract for
// typed calls.
type EthClient struct {
	backend  bind.ContractBackend
	contract *bind.BoundContract
	address  common.Address
	txOpts   *bind.TransactOpts
	retry    RetryPolicy
}

// RetryPolicy bounds the exponential backoff applied to transient RPC
// failures.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy applies a conservative 5-attempt bound.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: 200 * time.Millisecond}
}

// Dial connects to rpcURL and binds the contract at address, using txOpts
// for signing outbound transactions.
func Dial(ctx context.Context, rpcURL string, address common.Address, txOpts *bind.TransactOpts) (*EthClient, error) {
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, podatypes.Wrap("chain.Dial", podatypes.ChainRpcFatal, err)
	}
	parsed, err := abi.JSON(bytes.NewReader(contractABIJSON))
	if err != nil {
		return nil, podatypes.Wrap("chain.Dial", podatypes.SetupLoadFailure, err)
	}
	return &EthClient{
		backend:  ec,
		contract: bind.NewBoundContract(address, parsed, ec, ec, ec),
		address:  address,
		txOpts:   txOpts,
		retry:    DefaultRetryPolicy(),
	}, nil
}

// withRetry retries fn on ChainRpcTransient errors with exponential
// backoff, bounded by the client's RetryPolicy.
func (c *EthClient) withRetry(ctx context.Context, op string, fn func() error) error {
	delay := c.retry.BaseDelay
	var lastErr error
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if podatypes.KindOf(err) != podatypes.ChainRpcTransient {
			return err
		}
		log.WithField("op", op).WithField("attempt", attempt).WithError(err).Warn("retrying transient chain RPC error")
		select {
		case <-ctx.Done():
			return podatypes.Wrap(op, podatypes.Timeout, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
	return lastErr
}

// transact submits a transaction, waits for its receipt, and classifies
// a revert as ChainRpcFatal rather than something retry-worthy.
func (c *EthClient) transact(ctx context.Context, op, method string, args ...interface{}) error {
	return c.withRetry(ctx, op, func() error {
		tx, err := c.contract.Transact(c.txOpts, method, args...)
		if err != nil {
			return podatypes.Wrap(op, podatypes.ChainRpcTransient, err)
		}
		receipt, err := bind.WaitMined(ctx, c.backend.(bind.DeployBackend), tx)
		if err != nil {
			return podatypes.Wrap(op, podatypes.ChainRpcTransient, err)
		}
		if receipt.Status != types.ReceiptStatusSuccessful {
			return podatypes.Wrap(op, podatypes.ChainRpcFatal, fmt.Errorf("transaction reverted"))
		}
		return nil
	})
}

func (c *EthClient) call(ctx context.Context, op string, out *[]interface{}, method string, args ...interface{}) error {
	return c.withRetry(ctx, op, func() error {
		opts := &bind.CallOpts{Context: ctx}
		if err := c.contract.Call(opts, out, method, args...); err != nil {
			return podatypes.Wrap(op, podatypes.ChainRpcTransient, err)
		}
		return nil
	})
}
