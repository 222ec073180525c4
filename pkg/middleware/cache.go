package middleware

import "net/http"

// NoStore marks responses as private and uncacheable. Session-scoped API
// answers must never be served from a shared cache.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "private, no-store")
		w.Header().Add("Vary", "Authorization")
		w.Header().Add("Vary", "Cookie")
		next.ServeHTTP(w, r)
	})
}
