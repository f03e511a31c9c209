package dispenser

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pkakelas/poda/internal/codec"
	"github.com/pkakelas/poda/internal/field"
	"github.com/pkakelas/poda/internal/kzgcommit"
	"github.com/pkakelas/poda/internal/merkle"
	"github.com/pkakelas/poda/internal/types"
)

// Ingest runs the full ingest pipeline: encode, commit, submit on-chain,
// assign, and distribute. It returns the commitment root after every
// chunk's distribution has finished, successfully or not, and fails with
// InsufficientPlacement if fewer than k chunks were acknowledged; it does
// not return early as soon as k acknowledgements have arrived.
func (d *Dispenser) Ingest(ctx context.Context, blob []byte) (types.Root, error) {
	var root types.Root
	if len(blob) < d.cfg.MinBlobSize {
		return root, types.Wrap("dispenser.Ingest", types.InvalidInput, nil)
	}

	n, k := int(d.cfg.N), int(d.cfg.K)
	chunks, err := codec.Encode(blob, n, k)
	if err != nil {
		return root, err
	}

	kzgElements := make([][]byte, n)
	for i, c := range chunks {
		kzgElements[i] = c.Data[:field.Size] // row 0 representative element, see DESIGN.md
	}
	kzgComm, err := kzgcommit.Commit(kzgElements)
	if err != nil {
		return root, err
	}

	leaves := make([][32]byte, n)
	for i, c := range chunks {
		leaves[i] = merkle.LeafHash(c.Index, c.Data)
	}
	tree, err := merkle.Build(leaves)
	if err != nil {
		return root, err
	}
	root = tree.Root()

	if err := d.chain.SubmitCommitment(ctx, root, uint64(len(blob)), uint16(n), uint16(k), kzgComm); err != nil {
		return root, err
	}

	providers, err := d.chain.GetProviders(ctx, true)
	if err != nil {
		return root, err
	}
	if len(providers) == 0 {
		return root, types.Wrap("dispenser.Ingest", types.InsufficientPlacement, nil)
	}
	assignment := AssignChunks(providers, n, NewSecureRand())

	acked, err := d.distribute(ctx, root, chunks, tree, kzgComm, kzgElements, assignment, providers)
	if err != nil {
		return root, err
	}
	if acked < k {
		return root, types.Wrap("dispenser.Ingest", types.InsufficientPlacement, nil)
	}
	return root, nil
}

func providerURL(providers []types.Provider, address string) string {
	for _, p := range providers {
		if p.Address == address {
			return p.URL
		}
	}
	return ""
}

// distribute fans chunks out to their assigned providers with bounded
// concurrency, retrying transient failures a bounded number of times before
// reassigning to the next eligible candidate.
func (d *Dispenser) distribute(ctx context.Context, root types.Root, chunks []types.Chunk, tree *merkle.Tree, kzgComm types.KZGCommitment, kzgElements [][]byte, assignment map[int]string, providers []types.Provider) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.MaxConcurrentTransfers)

	var mu sync.Mutex
	acked := 0

	for i, chunk := range chunks {
		i, chunk := i, chunk
		address := assignment[i]
		url := providerURL(providers, address)
		if url == "" {
			continue
		}
		// The assigned provider is tried first; the other eligible
		// providers, in list order, are the fallback candidates.
		targets := []string{url}
		for _, p := range providers {
			if p.URL != "" && p.URL != url {
				targets = append(targets, p.URL)
			}
		}
		g.Go(func() error {
			proof, err := tree.Prove(chunk.Index)
			if err != nil {
				return nil
			}
			_, opening, err := kzgcommit.Open(kzgElements, i)
			chunkKZG := kzgComm
			if err != nil {
				log.WithError(err).WithField("index", i).Warn("kzg open failed, distributing without kzg fields")
				chunkKZG = types.KZGCommitment{} // blank so the provider skips KZG verification
			}
			var lastErr error
			for _, target := range targets {
				for attempt := 0; attempt <= d.cfg.DistributionRetries; attempt++ {
					cctx, cancel := context.WithTimeout(gctx, d.cfg.RPCTimeout)
					lastErr = d.provider.PutChunk(cctx, target, root, chunk, proof, chunkKZG, opening)
					cancel()
					if lastErr == nil {
						mu.Lock()
						acked++
						mu.Unlock()
						return nil
					}
				}
			}
			log.WithError(lastErr).WithField("provider", address).WithField("index", i).
				Warn("chunk distribution failed on every candidate provider")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return acked, types.Wrap("dispenser.distribute", types.ChainRpcTransient, err)
	}
	return acked, nil
}
