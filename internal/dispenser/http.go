package dispenser

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/pkakelas/poda/internal/types"
)

type submitRequest struct {
	Data string `json:"data"` // hex
}

type submitResponse struct {
	Commitment string `json:"commitment"`
}

type retrieveRequest struct {
	Commitment string `json:"commitment"`
}

type retrieveResponse struct {
	Data string `json:"data"` // hex
}

// Handler returns the Dispenser's HTTP surface: POST /submit, POST
// /retrieve, GET /commitment/{root}, GET /health.
func (d *Dispenser) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /submit", d.handleSubmit)
	mux.HandleFunc("POST /retrieve", d.handleRetrieve)
	mux.HandleFunc("GET /commitment/{root}", d.handleCommitmentInfo)
	mux.HandleFunc("GET /health", d.handleHealth)
	return mux
}

func (d *Dispenser) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (d *Dispenser) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, types.Wrap("dispenser.Submit", types.InvalidInput, err))
		return
	}
	blob, err := hex.DecodeString(strip0x(req.Data))
	if err != nil {
		writeError(w, types.Wrap("dispenser.Submit", types.InvalidInput, err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), d.cfg.RPCTimeout*4)
	defer cancel()
	root, err := d.Ingest(ctx, blob)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{Commitment: root.String()})
}

func (d *Dispenser) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, types.Wrap("dispenser.Retrieve", types.InvalidInput, err))
		return
	}
	root, err := types.RootFromHex(req.Commitment)
	if err != nil {
		writeError(w, types.Wrap("dispenser.Retrieve", types.InvalidInput, err))
		return
	}

	data, err := d.Retrieve(r.Context(), root)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, retrieveResponse{Data: hex.EncodeToString(data)})
}

func (d *Dispenser) handleCommitmentInfo(w http.ResponseWriter, r *http.Request) {
	root, err := types.RootFromHex(r.PathValue("root"))
	if err != nil {
		writeError(w, types.Wrap("dispenser.CommitmentInfo", types.InvalidInput, err))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), d.cfg.RPCTimeout)
	defer cancel()

	rec, err := d.chain.GetCommitmentInfo(ctx, root)
	if err != nil {
		writeError(w, err)
		return
	}
	recoverable, err := d.chain.IsCommitmentRecoverable(ctx, root)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.CommitmentInfo{
		Size:            rec.Size,
		N:               rec.N,
		K:               rec.K,
		AvailableChunks: rec.AvailableChunks,
		Recoverable:     recoverable,
	})
}

func strip0x(s string) string {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return s[2:]
	}
	return s
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
