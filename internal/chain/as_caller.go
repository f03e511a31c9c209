package chain

import (
	"context"

	"github.com/pkakelas/poda/internal/types"
)

// asCaller binds a Fake to one identity, the same way an EthClient is bound
// to one signer key via its TransactOpts -- msg.sender on a real chain is
// implicit in who signed the transaction, and the Fake needs an explicit
// stand-in for that since it has no transaction-signing layer.
type asCaller struct {
	*Fake
	identity string
}

// AsCaller returns a Client view of f bound to identity, so that calls
// which are msg.sender-scoped on a real contract (submitChunkAttestations,
// respondToChunkChallenge) are attributed to identity instead of a shared
// placeholder caller.
func (f *Fake) AsCaller(identity string) Client {
	return &asCaller{Fake: f, identity: identity}
}

func (c *asCaller) SubmitChunkAttestations(ctx context.Context, root types.Root, indices []uint16) error {
	return c.Fake.AttestAs(c.identity, root, indices)
}

func (c *asCaller) RespondToChunkChallenge(ctx context.Context, root types.Root, index uint16, chunkData []byte, proof [][32]byte) error {
	return c.Fake.RespondToChunkChallengeAs(c.identity, root, index, chunkData, proof)
}
