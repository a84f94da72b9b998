// Package httpapi exposes the settlement engine over REST.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/NovaBridge-Network/settlement_layer/internal/app/domain/settlement"
	"github.com/NovaBridge-Network/settlement_layer/internal/app/metrics"
	settlementsvc "github.com/NovaBridge-Network/settlement_layer/internal/app/services/settlement"
	svcerrors "github.com/NovaBridge-Network/settlement_layer/internal/errors"
)

type handler struct {
	engine *settlementsvc.Service
}

// NewHandler returns a router exposing the settlement REST API. Every route
// is instrumented with the standard HTTP metrics.
func NewHandler(engine *settlementsvc.Service) http.Handler {
	h := &handler{engine: engine}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/settlements", h.initiate).Methods(http.MethodPost)
	r.HandleFunc("/settlements", h.list).Methods(http.MethodGet)
	r.HandleFunc("/settlements/{id}", h.get).Methods(http.MethodGet)
	r.HandleFunc("/settlements/{id}/process", h.process).Methods(http.MethodPost)
	r.HandleFunc("/settlements/{id}/retry", h.retry).Methods(http.MethodPost)
	r.HandleFunc("/settlements/{id}/compensate", h.compensate).Methods(http.MethodPost)

	return metrics.InstrumentHandler(r)
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) initiate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SourceChain    string  `json:"source_chain"`
		DestChain      string  `json:"dest_chain"`
		Amount         float64 `json:"amount"`
		UserID         string  `json:"user_id"`
		IdempotencyKey string  `json:"idempotency_key"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, svcerrors.Validation("invalid request body: %v", err))
		return
	}
	// The header wins over the body field when both are present.
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		payload.IdempotencyKey = key
	}

	rec, err := h.engine.Initiate(r.Context(), payload.SourceChain, payload.DestChain,
		payload.Amount, payload.UserID, payload.IdempotencyKey)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	recs, err := h.engine.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.engine.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handler) process(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.engine.Process)
}

func (h *handler) retry(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.engine.Retry)
}

func (h *handler) compensate(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.engine.Compensate)
}

// act runs one of the engine's lock-guarded operations and reports whether
// this request performed the work. A false result with no error means the
// settlement was busy: 409, safe for the client to retry.
func (h *handler) act(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (bool, error)) {
	id := mux.Vars(r)["id"]
	done, err := op(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	rec, err := h.engine.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if !done {
		status = http.StatusConflict
	}
	writeJSON(w, status, actResponse{Done: done, Settlement: rec})
}

type actResponse struct {
	Done       bool                  `json:"done"`
	Settlement settlement.Settlement `json:"settlement"`
}

func decodeJSON(body io.ReadCloser, dst any) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(svcerrors.HTTPStatus(err))
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
