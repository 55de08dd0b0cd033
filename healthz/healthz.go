// Package healthz provides the liveness/readiness handler for the debug mux.
package healthz

import (
	"net/http"
	"sync/atomic"
)

type Handler struct {
	ready atomic.Bool
}

func New() *Handler {
	h := &Handler{}
	h.ready.Store(true)
	return h
}

// SetReady flips the readiness state, e.g. while the store client is still
// being set up.
func (h *Handler) SetReady(ready bool) {
	h.ready.Store(ready)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Load() {
		http.Error(w, "503 Not Ready", http.StatusServiceUnavailable)
		return
	}
	w.Write([]byte("200 OK"))
}
