package middleware

import "net/http"

// BodyLimit returns middleware that caps request body size at maxBytes.
// Oversized bodies surface as an error from the handler's read, which
// http.MaxBytesReader turns into a 413 on write.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
