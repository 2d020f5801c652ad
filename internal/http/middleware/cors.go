package middleware

import (
	"net/http"
	"strings"
)

// OriginPolicy is an allowlist of browser origins. "*" admits any origin.
type OriginPolicy struct {
	allowAny bool
	allow    map[string]struct{}
}

func NewOriginPolicy(allowedOrigins []string) *OriginPolicy {
	p := &OriginPolicy{allow: map[string]struct{}{}}
	for _, origin := range allowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch origin {
		case "":
		case "*":
			p.allowAny = true
		default:
			p.allow[origin] = struct{}{}
		}
	}
	return p
}

// Allowed reports whether origin is listed. An empty origin never is.
func (p *OriginPolicy) Allowed(origin string) bool {
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	if p == nil || origin == "" {
		return false
	}
	if p.allowAny {
		return true
	}
	_, ok := p.allow[origin]
	return ok
}

// CORS provides a simple allowlist-based CORS middleware.
// If allowedOrigins contains "*", any Origin is echoed back.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := NewOriginPolicy(allowedOrigins)

	const (
		allowedHeaders = "Content-Type, X-Request-ID"
		allowedMethods = "GET, POST, PUT, DELETE, OPTIONS"
		exposedHeaders = "Content-Disposition, X-Request-ID"
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if policy.Allowed(origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Headers", allowedHeaders)
				h.Set("Access-Control-Allow-Methods", allowedMethods)
				h.Set("Access-Control-Expose-Headers", exposedHeaders)
				h.Set("Access-Control-Max-Age", "600")
			}

			if r.Method == http.MethodOptions && origin != "" && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
