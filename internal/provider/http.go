package provider

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkakelas/poda/internal/field"
	"github.com/pkakelas/poda/internal/kzgcommit"
	"github.com/pkakelas/poda/internal/merkle"
	"github.com/pkakelas/poda/internal/store"
	"github.com/pkakelas/poda/internal/types"
)

// putChunkRequest is the PUT /chunk wire body.
type putChunkRequest struct {
	Root          string   `json:"root"`
	Index         uint16   `json:"index"`
	ChunkBytes    string   `json:"chunk_bytes"` // hex
	MerkleProof   []string `json:"merkle_proof"` // hex, 32 bytes each
	KZGCommitment string   `json:"kzg_commitment"` // hex, 48 bytes
	KZGOpening    string   `json:"kzg_opening"` // hex, 48 bytes
}

// Handler returns the provider's HTTP surface: PUT /chunk, GET
// /chunk/{root}/{index}, POST /chunks, GET /health. Built on net/http's
// stdlib ServeMux without a router library.
func (p *Provider) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /chunk", p.handlePutChunk)
	mux.HandleFunc("GET /chunk/{root}/{index}", p.handleGetChunk)
	mux.HandleFunc("POST /chunks", p.handleBatchGet)
	mux.HandleFunc("GET /health", p.handleHealth)
	return mux
}

func (p *Provider) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (p *Provider) handlePutChunk(w http.ResponseWriter, r *http.Request) {
	var req putChunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, types.Wrap("provider.PUT", types.InvalidInput, err))
		return
	}

	root, err := types.RootFromHex(req.Root)
	if err != nil {
		writeError(w, types.Wrap("provider.PUT", types.InvalidInput, err))
		return
	}
	chunkBytes, err := hex.DecodeString(strip0x(req.ChunkBytes))
	if err != nil {
		writeError(w, types.Wrap("provider.PUT", types.InvalidInput, err))
		return
	}
	siblings, err := decodeSiblings(req.MerkleProof)
	if err != nil {
		writeError(w, types.Wrap("provider.PUT", types.InvalidInput, err))
		return
	}
	proof := types.MerkleProof{Siblings: siblings, Index: req.Index}

	leaf := merkle.LeafHash(req.Index, chunkBytes)
	if !merkle.Verify(proof, root, leaf) {
		writeError(w, types.Wrap("provider.PUT", types.BadProof, errors.New("merkle proof failed")))
		return
	}

	if req.KZGCommitment != "" {
		var comm types.KZGCommitment
		var opening types.KZGProof
		cb, err1 := hex.DecodeString(strip0x(req.KZGCommitment))
		ob, err2 := hex.DecodeString(strip0x(req.KZGOpening))
		if err1 != nil || err2 != nil || len(cb) != len(comm) || len(ob) != len(opening) {
			writeError(w, types.Wrap("provider.PUT", types.InvalidInput, errors.New("malformed kzg fields")))
			return
		}
		if len(chunkBytes) < field.Size {
			writeError(w, types.Wrap("provider.PUT", types.InvalidInput, errors.New("chunk too short for kzg verification")))
			return
		}
		copy(comm[:], cb)
		copy(opening[:], ob)
		// y is derived from the chunk bytes this handler actually received,
		// not trusted from the wire, so the check binds the proof to the
		// chunk's own content instead of any caller-supplied triple.
		elem, err := field.FromCanonicalBytes(chunkBytes[:field.Size])
		if err != nil {
			writeError(w, types.Wrap("provider.PUT", types.BadProof, err))
			return
		}
		var y [32]byte
		copy(y[:], field.ToCanonicalBytes(elem))
		if err := kzgcommit.Verify(comm, int(req.Index), y, opening); err != nil {
			writeError(w, types.Wrap("provider.PUT", types.BadProof, err))
			return
		}
	}

	if err := p.store.Put(root, req.Index, store.Record{Data: chunkBytes, Proof: proof}); err != nil {
		writeError(w, err)
		return
	}

	p.queueAttestation(root, req.Index)
	writeJSON(w, http.StatusOK, map[string]string{"status": "stored"})
}

func (p *Provider) handleGetChunk(w http.ResponseWriter, r *http.Request) {
	root, err := types.RootFromHex(r.PathValue("root"))
	if err != nil {
		writeError(w, types.Wrap("provider.GET", types.InvalidInput, err))
		return
	}
	idx64, err := strconv.ParseUint(r.PathValue("index"), 10, 16)
	if err != nil {
		writeError(w, types.Wrap("provider.GET", types.InvalidInput, err))
		return
	}
	rec, err := p.store.Get(root, uint16(idx64))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recordResponse(uint16(idx64), rec))
}

type batchGetRequest struct {
	Root    string   `json:"root"`
	Indices []uint16 `json:"indices"`
}

func (p *Provider) handleBatchGet(w http.ResponseWriter, r *http.Request) {
	var req batchGetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, types.Wrap("provider.BatchGet", types.InvalidInput, err))
		return
	}
	root, err := types.RootFromHex(req.Root)
	if err != nil {
		writeError(w, types.Wrap("provider.BatchGet", types.InvalidInput, err))
		return
	}
	results := make([]map[string]interface{}, 0, len(req.Indices))
	for _, idx := range req.Indices {
		rec, err := p.store.Get(root, idx)
		if err != nil {
			continue
		}
		results = append(results, recordResponse(idx, rec))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"chunks": results})
}

func recordResponse(index uint16, rec store.Record) map[string]interface{} {
	siblings := make([]string, len(rec.Proof.Siblings))
	for i, s := range rec.Proof.Siblings {
		siblings[i] = hex.EncodeToString(s[:])
	}
	return map[string]interface{}{
		"index":        index,
		"chunk_bytes":  hex.EncodeToString(rec.Data),
		"merkle_proof": siblings,
	}
}

func decodeSiblings(hexList []string) ([][32]byte, error) {
	out := make([][32]byte, len(hexList))
	for i, h := range hexList {
		b, err := hex.DecodeString(strip0x(h))
		if err != nil || len(b) != 32 {
			return nil, errors.New("malformed merkle proof sibling")
		}
		copy(out[i][:], b)
	}
	return out, nil
}

func strip0x(s string) string {
	return strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	kind := types.KindOf(err)
	log.WithError(err).WithField("kind", kind.String()).Warn("request failed")
	writeJSON(w, types.HTTPStatus(kind), map[string]string{"error": err.Error()})
}
