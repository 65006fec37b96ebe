package mailstatus

import (
	"net/http"

	"dashstat/internal/httpserver"
)

// NewHandler serves the store's current payload on "/" and "/status". Every
// other path is 404. Requests made before the first publish wait for it.
// A non-empty token is required on the two status routes only, so unknown
// paths stay 404.
func NewHandler(store *Store, token string) http.Handler {
	status := httpserver.RequireToken(token, statusHandler(store))

	mux := http.NewServeMux()
	mux.Handle("GET /{$}", status)
	mux.Handle("GET /status", status)
	return mux
}

func statusHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := store.Wait(r.Context())
		if err != nil {
			httpserver.WriteError(w, http.StatusServiceUnavailable, "status not ready")
			return
		}
		httpserver.WriteBody(w, http.StatusOK, snap.Body)
	}
}
