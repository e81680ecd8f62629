package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httputil"
	"net/url"

	apperrors "github.com/docforge/rag-pipeline/pkg/errors"
	"github.com/docforge/rag-pipeline/pkg/logger"
	"github.com/docforge/rag-pipeline/pkg/rpc"
)

// ProcessorClient is the RPC surface the gateway uses to reach the
// processor's admin listener.
type ProcessorClient interface {
	Call(method string, params any, result any) error
}

// Handler routes gateway traffic: uploads and document reads proxy to the
// ingestion service, queries proxy to retrieval, and reprocess/status go
// over the processor RPC.
type Handler struct {
	ingestionProxy *httputil.ReverseProxy
	retrievalProxy *httputil.ReverseProxy
	processor      ProcessorClient
}

// NewHandler builds the gateway handler. processor may be nil, disabling
// the admin endpoints.
func NewHandler(ingestionURL, retrievalURL string, processor ProcessorClient) (*Handler, error) {
	ingestion, err := url.Parse(ingestionURL)
	if err != nil {
		return nil, err
	}
	retrieval, err := url.Parse(retrievalURL)
	if err != nil {
		return nil, err
	}
	return &Handler{
		ingestionProxy: newProxy(ingestion),
		retrievalProxy: newProxy(retrieval),
		processor:      processor,
	}, nil
}

func newProxy(target *url.URL) *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.FromContext(r.Context()).Error("upstream unavailable",
			"target", target.Host, "error", err)
		writeError(w, apperrors.New(apperrors.ErrInternal, http.StatusBadGateway, "upstream unavailable"))
	}
	return proxy
}

// Routes registers the gateway surface on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.Handle("POST /api/v1/documents", h.ingestionProxy)
	mux.Handle("GET /api/v1/documents", h.ingestionProxy)
	mux.Handle("GET /api/v1/documents/{id}", h.ingestionProxy)
	mux.Handle("POST /api/v1/query", h.retrievalProxy)
	mux.Handle("POST /api/v1/cache/invalidate", h.retrievalProxy)
	mux.HandleFunc("POST /api/v1/documents/{id}/reprocess", h.reprocess)
	mux.HandleFunc("GET /api/v1/documents/{id}/status", h.status)
}

func (h *Handler) reprocess(w http.ResponseWriter, r *http.Request) {
	if h.processor == nil {
		writeError(w, apperrors.New(apperrors.ErrInternal, 503, "processor admin surface not configured"))
		return
	}
	var resp rpc.ReprocessResponse
	err := h.processor.Call("Pipeline.Reprocess",
		&rpc.ReprocessRequest{DocumentID: r.PathValue("id")}, &resp)
	if err != nil {
		writeError(w, apperrors.Newf(apperrors.ErrInternal, 502, "reprocess failed: %v", err))
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	if h.processor == nil {
		writeError(w, apperrors.New(apperrors.ErrInternal, 503, "processor admin surface not configured"))
		return
	}
	var resp rpc.StatusResponse
	err := h.processor.Call("Pipeline.Status",
		&rpc.StatusRequest{DocumentID: r.PathValue("id")}, &resp)
	if err != nil {
		writeError(w, apperrors.Newf(apperrors.ErrInternal, 502, "status lookup failed: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": err.Error()})
}
