package dispenser

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkakelas/poda/internal/types"
)

// providerClient is the Dispenser's outbound HTTP client to a Storage
// Provider's PUT/GET surface. Every call carries a context deadline.
type providerClient struct {
	http *http.Client
}

func newProviderClient() *providerClient {
	return &providerClient{http: &http.Client{}}
}

type putChunkBody struct {
	Root          string   `json:"root"`
	Index         uint16   `json:"index"`
	ChunkBytes    string   `json:"chunk_bytes"`
	MerkleProof   []string `json:"merkle_proof"`
	KZGCommitment string   `json:"kzg_commitment,omitempty"`
	KZGOpening    string   `json:"kzg_opening,omitempty"`
}

// PutChunk distributes one chunk to a provider. The provider derives the
// KZG evaluation value from the chunk bytes it receives, so only the
// commitment and opening proof travel over the wire.
func (c *providerClient) PutChunk(ctx context.Context, baseURL string, root types.Root, chunk types.Chunk, proof types.MerkleProof, kzg types.KZGCommitment, opening types.KZGProof) error {
	siblings := make([]string, len(proof.Siblings))
	for i, s := range proof.Siblings {
		siblings[i] = hex.EncodeToString(s[:])
	}
	body := putChunkBody{
		Root:        root.String(),
		Index:       chunk.Index,
		ChunkBytes:  hex.EncodeToString(chunk.Data),
		MerkleProof: siblings,
	}
	var zeroKZG types.KZGCommitment
	if kzg != zeroKZG {
		body.KZGCommitment = hex.EncodeToString(kzg[:])
		body.KZGOpening = hex.EncodeToString(opening[:])
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return types.Wrap("dispenser.PutChunk", types.InvalidInput, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, baseURL+"/chunk", bytes.NewReader(payload))
	if err != nil {
		return types.Wrap("dispenser.PutChunk", types.InvalidInput, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return types.Wrap("dispenser.PutChunk", types.Timeout, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return types.Wrap("dispenser.PutChunk", types.BadProof, fmt.Errorf("provider returned status %d", resp.StatusCode))
	}
	return nil
}

type fetchedChunk struct {
	Index       uint16
	ChunkBytes  []byte
	MerkleProof [][32]byte
}

type batchGetResponse struct {
	Chunks []struct {
		Index       uint16   `json:"index"`
		ChunkBytes  string   `json:"chunk_bytes"`
		MerkleProof []string `json:"merkle_proof"`
	} `json:"chunks"`
}

// GetChunks fetches a batch of chunks from one provider.
func (c *providerClient) GetChunks(ctx context.Context, baseURL string, root types.Root, indices []uint16) ([]fetchedChunk, error) {
	payload, err := json.Marshal(map[string]interface{}{"root": root.String(), "indices": indices})
	if err != nil {
		return nil, types.Wrap("dispenser.GetChunks", types.InvalidInput, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chunks", bytes.NewReader(payload))
	if err != nil {
		return nil, types.Wrap("dispenser.GetChunks", types.InvalidInput, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, types.Wrap("dispenser.GetChunks", types.Timeout, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, types.Wrap("dispenser.GetChunks", types.ChainRpcFatal, fmt.Errorf("provider returned status %d", resp.StatusCode))
	}
	var parsed batchGetResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, types.Wrap("dispenser.GetChunks", types.BadProof, err)
	}
	out := make([]fetchedChunk, 0, len(parsed.Chunks))
	for _, ch := range parsed.Chunks {
		data, err := hex.DecodeString(ch.ChunkBytes)
		if err != nil {
			continue
		}
		proof := make([][32]byte, len(ch.MerkleProof))
		ok := true
		for i, h := range ch.MerkleProof {
			b, err := hex.DecodeString(h)
			if err != nil || len(b) != 32 {
				ok = false
				break
			}
			copy(proof[i][:], b)
		}
		if !ok {
			continue
		}
		out = append(out, fetchedChunk{Index: ch.Index, ChunkBytes: data, MerkleProof: proof})
	}
	return out, nil
}
