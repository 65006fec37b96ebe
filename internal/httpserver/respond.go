package httpserver

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"dashstat/internal/jsonx"
)

// TokenHeader carries the shared secret when a token is configured.
const TokenHeader = "X-Status-Token"

// WriteBody writes a pre-encoded JSON body with an explicit Content-Length.
func WriteBody(w http.ResponseWriter, code int, body []byte) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func WriteJSON(w http.ResponseWriter, code int, v any) {
	body, err := jsonx.Marshal(v)
	if err != nil {
		http.Error(w, "encode response", http.StatusInternalServerError)
		return
	}
	WriteBody(w, code, body)
}

func WriteError(w http.ResponseWriter, code int, description string) {
	WriteJSON(w, code, map[string]string{"error": description})
}

// RequireToken rejects requests whose TokenHeader does not match token.
// An empty token disables the check.
func RequireToken(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	want := []byte(token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get(TokenHeader))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			WriteError(w, http.StatusUnauthorized, "Missing or invalid status token")
			return
		}
		next.ServeHTTP(w, r)
	})
}
