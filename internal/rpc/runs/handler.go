package runs

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/observability"
	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/rpc"
)

// Handler starts runs and streams their events as NDJSON.
type Handler struct {
	runner  Runner
	metrics *observability.Metrics
}

// NewHandler constructs a handler instance.
func NewHandler(runner Runner, metrics *observability.Metrics) *Handler {
	return &Handler{runner: runner, metrics: metrics}
}

// ServeHTTP handles POST /api/run with an NDJSON stream of RunEvent. An empty
// body runs the saved request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.metrics.RecordTransportError("ndjson", "method_not_allowed")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rpc.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.metrics.RecordTransportError("ndjson", "decode")
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	events, err := h.runner.Start(r.Context(), req)
	if err != nil {
		status := http.StatusBadRequest
		reason := "invalid_run"
		if errors.Is(err, ErrBusy) {
			status = http.StatusConflict
			reason = "busy"
		}
		h.metrics.RecordTransportError("ndjson", reason)
		http.Error(w, err.Error(), status)
		return
	}

	h.metrics.IncActiveRuns("ndjson")
	defer h.metrics.DecActiveRuns("ndjson")

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	writer := bufio.NewWriter(w)
	enc := json.NewEncoder(writer)
	for ev := range events {
		if err := enc.Encode(ev); err != nil {
			h.metrics.RecordTransportError("ndjson", "encode")
			break
		}
		if err := writer.Flush(); err != nil {
			break
		}
		flusher.Flush()
	}
}
