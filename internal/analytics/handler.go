package analytics

import (
	"encoding/json"
	"net/http"
)

// Handler serves the aggregate stats endpoint.
type Handler struct {
	aggregator *Aggregator
}

// NewHandler creates a Handler.
func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{aggregator: aggregator}
}

// Routes registers the stats endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/stats", h.stats)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(h.aggregator.Snapshot())
}
