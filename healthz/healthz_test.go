package healthz

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func statusOf(t *testing.T, h *Handler) int {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/readyz", nil))
	return w.Code
}

func TestReadinessFlips(t *testing.T) {
	h := New()
	if got := statusOf(t, h); got != http.StatusOK {
		t.Errorf("Fresh handler status = %d, want %d", got, http.StatusOK)
	}

	h.SetReady(false)
	if got := statusOf(t, h); got != http.StatusServiceUnavailable {
		t.Errorf("Not-ready status = %d, want %d", got, http.StatusServiceUnavailable)
	}

	h.SetReady(true)
	if got := statusOf(t, h); got != http.StatusOK {
		t.Errorf("Re-ready status = %d, want %d", got, http.StatusOK)
	}
}
