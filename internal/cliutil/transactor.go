// Package cliutil holds the small pieces of signer/wallet plumbing shared
// by the three cmd/ entry points, factored out so each main.go stays thin.
package cliutil

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
)

// BindTransactor builds signing options for an EIP-155 transaction from a
// raw private key, the idiomatic go-ethereum way to turn a key into a
// bind.TransactOpts for accounts/abi/bind.BoundContract calls.
func BindTransactor(key *ecdsa.PrivateKey, chainID int64) (*bind.TransactOpts, error) {
	return bind.NewKeyedTransactorWithChainID(key, big.NewInt(chainID))
}
