package service

import (
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
)

type healthzHandler struct {
	log log.Logger
}

func (h *healthzHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.log.Debug("Received health check request", "path", r.URL.Path)
	w.Write([]byte("OK")) //nolint:errcheck
}

// StatusFunc returns the JSON-encodable state of the last run, or nil when
// no run finished yet.
type StatusFunc func() any

type statusHandler struct {
	log    log.Logger
	status StatusFunc
}

func (h *statusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var status any
	if h.status != nil {
		status = h.status()
	}
	w.Header().Set("Content-Type", "application/json")
	if status == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		status = map[string]string{"status": "pending"}
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		h.log.Error("Failed to write status", "err", err)
	}
}
