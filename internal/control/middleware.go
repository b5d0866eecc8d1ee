package control

import "net/http"

// securityHeaders strips version-revealing response headers and
// applies a generic Server header, matching the teacher's
// SecurityHeadersMiddleware in spirit. The headers are set and removed
// once, before the wrapped handler runs, with no ResponseWriter
// wrapper; a header the handler itself sets afterwards is not removed.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "agentcore")
		w.Header().Del("X-Powered-By")
		next.ServeHTTP(w, r)
	})
}
