package systemd

import (
	"errors"
	"log/slog"
	"net/http"

	"dashstat/internal/httpserver"
)

type handler struct {
	checker *Checker
	logger  *slog.Logger
}

// NewHandler exposes the checker over HTTP:
//
//	GET /status/systemd/{service}  one unit; 200 active, 503 inactive, 404 unknown
//	GET /status/systemd            every unit; 200 when all are active
//	GET /status/health             liveness plus the allow-list
//
// A non-empty token is checked on these routes; other paths are plain 404.
func NewHandler(checker *Checker, token string, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{checker: checker, logger: logger}

	mux := http.NewServeMux()
	guard := func(fn http.HandlerFunc) http.Handler {
		return httpserver.RequireToken(token, fn)
	}
	mux.Handle("GET /status/systemd/{service}", guard(h.handleService))
	mux.Handle("GET /status/systemd", guard(h.handleAll))
	mux.Handle("GET /status/health", guard(h.handleHealth))
	return mux
}

func (h *handler) handleService(w http.ResponseWriter, r *http.Request) {
	service := r.PathValue("service")
	state, err := h.checker.Check(r.Context(), service)
	switch {
	case errors.Is(err, ErrUnknownService):
		httpserver.WriteError(w, http.StatusNotFound, "Unknown service")
		return
	case err != nil:
		h.logger.Warn("systemctl query failed", "service", service, "unit", state.Unit, "error", err)
		httpserver.WriteJSON(w, http.StatusInternalServerError, state)
		return
	}

	code := http.StatusOK
	if !state.Active {
		code = http.StatusServiceUnavailable
	}
	httpserver.WriteJSON(w, code, state)
}

func (h *handler) handleAll(w http.ResponseWriter, r *http.Request) {
	states := h.checker.CheckAll(r.Context())
	code := http.StatusOK
	for _, state := range states {
		if !state.Active {
			code = http.StatusServiceUnavailable
			break
		}
	}
	httpserver.WriteJSON(w, code, states)
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"services": h.checker.Names(),
	})
}
