package weather

import (
	"errors"
	"net/http"
	"strconv"

	"dashstat/internal/httpserver"
)

// NewHandler serves the forecast as JSON. Responses may be framed by the
// dashboard, so X-Frame-Options is relaxed on every route.
func NewHandler(svc *Service) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /forecast", func(w http.ResponseWriter, r *http.Request) {
		days := 0
		if raw := r.URL.Query().Get("days"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				httpserver.WriteError(w, http.StatusBadRequest, "days must be a non-negative integer")
				return
			}
			days = n
		}

		report, err := svc.Forecast(r.Context(), days)
		if errors.Is(err, ErrNoData) {
			httpserver.WriteError(w, http.StatusBadGateway, err.Error())
			return
		}
		if err != nil {
			httpserver.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		httpserver.WriteJSON(w, http.StatusOK, report)
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	return allowFraming(mux)
}

func allowFraming(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "ALLOWALL")
		next.ServeHTTP(w, r)
	})
}
