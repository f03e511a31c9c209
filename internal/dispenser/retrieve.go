package dispenser

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pkakelas/poda/internal/codec"
	"github.com/pkakelas/poda/internal/merkle"
	"github.com/pkakelas/poda/internal/types"
)

// Retrieve runs the retrieval pipeline: check recoverability, fetch chunks
// from providers with bounded parallelism preferring larger holders, verify
// each against the Merkle root, and decode once k valid chunks are
// collected. It honors ctx's deadline directly rather than a second timer.
func (d *Dispenser) Retrieve(ctx context.Context, root types.Root) ([]byte, error) {
	recoverable, err := d.chain.IsCommitmentRecoverable(ctx, root)
	if err != nil {
		return nil, err
	}
	if !recoverable {
		return nil, types.Wrap("dispenser.Retrieve", types.NotRecoverable, nil)
	}

	info, err := d.chain.GetCommitmentInfo(ctx, root)
	if err != nil {
		return nil, err
	}
	chunkMap, err := d.chain.GetCommitmentChunkMap(ctx, root)
	if err != nil {
		return nil, err
	}
	providers, err := d.chain.GetProviders(ctx, true)
	if err != nil {
		return nil, err
	}

	type holder struct {
		address string
		indices []uint16
	}
	holders := make([]holder, 0, len(chunkMap))
	for addr, indices := range chunkMap {
		holders = append(holders, holder{address: addr, indices: indices})
	}
	sort.Slice(holders, func(i, j int) bool { return len(holders[i].indices) > len(holders[j].indices) })

	collected := make(map[int][]byte)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.MaxConcurrentTransfers)

	for _, h := range holders {
		h := h
		url := providerURL(providers, h.address)
		if url == "" {
			continue
		}
		g.Go(func() error {
			mu.Lock()
			alreadyEnough := len(collected) >= int(info.K)
			mu.Unlock()
			if alreadyEnough {
				return nil
			}
			cctx, cancel := context.WithTimeout(gctx, d.cfg.RPCTimeout)
			fetched, err := d.provider.GetChunks(cctx, url, root, h.indices)
			cancel()
			if err != nil {
				return nil // single-provider failures are not fatal to retrieval
			}
			for _, c := range fetched {
				leaf := merkle.LeafHash(c.Index, c.ChunkBytes)
				proof := types.MerkleProof{Siblings: c.MerkleProof, Index: c.Index}
				if !merkle.Verify(proof, root, leaf) {
					continue
				}
				mu.Lock()
				collected[int(c.Index)] = c.ChunkBytes
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, types.Wrap("dispenser.Retrieve", types.Timeout, err)
	}

	if ctx.Err() != nil {
		return nil, types.Wrap("dispenser.Retrieve", types.Timeout, ctx.Err())
	}

	data, err := codec.Decode(collected, int(info.N), int(info.K), int(info.Size))
	if err != nil {
		return nil, err
	}
	return data, nil
}
