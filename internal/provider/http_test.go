package provider

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pkakelas/poda/internal/chain"
	"github.com/pkakelas/poda/internal/field"
	"github.com/pkakelas/poda/internal/kzgcommit"
	"github.com/pkakelas/poda/internal/merkle"
	"github.com/pkakelas/poda/internal/store"
	"github.com/pkakelas/poda/internal/types"
)

func newTestProvider(t *testing.T) (*Provider, *httptest.Server) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := DefaultConfig()
	cfg.Address = "test-provider"
	p, err := New(cfg, chain.NewFake(), st)
	require.NoError(t, err)

	srv := httptest.NewServer(p.Handler())
	t.Cleanup(srv.Close)
	return p, srv
}

func TestPutThenGetChunkByteIdentical(t *testing.T) {
	_, srv := newTestProvider(t)

	chunkData := []byte("hello chunk bytes")
	leaves := [][32]byte{
		merkle.LeafHash(0, chunkData),
		merkle.LeafHash(1, []byte("other chunk")),
	}
	tree, err := merkle.Build(leaves)
	require.NoError(t, err)
	root := tree.Root()
	proof, err := tree.Prove(0)
	require.NoError(t, err)

	siblings := make([]string, len(proof.Siblings))
	for i, s := range proof.Siblings {
		siblings[i] = hex.EncodeToString(s[:])
	}

	body := map[string]interface{}{
		"root":         hex.EncodeToString(root[:]),
		"index":        0,
		"chunk_bytes":  hex.EncodeToString(chunkData),
		"merkle_proof": siblings,
	}
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/chunk", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	getResp, err := http.Get(srv.URL + "/chunk/" + hex.EncodeToString(root[:]) + "/0")
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	var parsed map[string]interface{}
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&parsed))
	gotBytes, err := hex.DecodeString(parsed["chunk_bytes"].(string))
	require.NoError(t, err)
	require.Equal(t, chunkData, gotBytes)
}

func TestPutChunkRejectsBadMerkleProof(t *testing.T) {
	_, srv := newTestProvider(t)

	var root types.Root
	body := map[string]interface{}{
		"root":         hex.EncodeToString(root[:]),
		"index":        0,
		"chunk_bytes":  hex.EncodeToString([]byte("x")),
		"merkle_proof": []string{},
	}
	payload, _ := json.Marshal(body)
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/chunk", bytes.NewReader(payload))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

// TestPutChunkKZGBindsToReceivedBytes checks that the KZG check is derived
// from the chunk bytes the provider actually received, not from whatever
// commitment/opening pair the caller happens to attach: a valid proof for
// one chunk's content must not validate a PUT that swaps in different
// content, even though that different content carries its own valid Merkle
// proof against its own root.
func TestPutChunkKZGBindsToReceivedBytes(t *testing.T) {
	_, srv := newTestProvider(t)

	genuine := make([]byte, field.Size)
	genuine[0] = 0x01
	swapped := make([]byte, field.Size)
	swapped[0] = 0x02

	kzgElements := [][]byte{genuine}
	comm, err := kzgcommit.Commit(kzgElements)
	require.NoError(t, err)
	_, opening, err := kzgcommit.Open(kzgElements, 0)
	require.NoError(t, err)

	leaves := [][32]byte{merkle.LeafHash(0, swapped)}
	tree, err := merkle.Build(leaves)
	require.NoError(t, err)
	root := tree.Root()
	proof, err := tree.Prove(0)
	require.NoError(t, err)
	siblings := make([]string, len(proof.Siblings))
	for i, s := range proof.Siblings {
		siblings[i] = hex.EncodeToString(s[:])
	}

	body := map[string]interface{}{
		"root":           hex.EncodeToString(root[:]),
		"index":          0,
		"chunk_bytes":    hex.EncodeToString(swapped),
		"merkle_proof":   siblings,
		"kzg_commitment": hex.EncodeToString(comm[:]),
		"kzg_opening":    hex.EncodeToString(opening[:]),
	}
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/chunk", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	_, srv := newTestProvider(t)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
