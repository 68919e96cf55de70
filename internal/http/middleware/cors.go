package middleware

import (
	"net/http"
	"strings"
)

const (
	corsAllowedHeaders = "Authorization, Content-Type, X-Request-ID"
	corsAllowedMethods = "GET, POST, PATCH, OPTIONS"
)

// OriginPolicy is the browser origin allowlist shared by the CORS middleware
// and the live dashboard websocket upgrade. "*" allows any origin.
type OriginPolicy struct {
	allowAny bool
	allow    map[string]struct{}
}

// NewOriginPolicy normalizes the configured origins. Blank entries are
// ignored and a trailing slash or letter case does not matter.
func NewOriginPolicy(origins []string) OriginPolicy {
	p := OriginPolicy{allow: make(map[string]struct{}, len(origins))}
	for _, origin := range origins {
		origin = normalizeOrigin(origin)
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

// Configured reports whether any origin was listed.
func (p OriginPolicy) Configured() bool {
	return p.allowAny || len(p.allow) > 0
}

// Allows reports whether a browser at origin may call the API.
func (p OriginPolicy) Allows(origin string) bool {
	origin = normalizeOrigin(origin)
	if origin == "" {
		return false
	}
	if p.allowAny {
		return true
	}
	_, ok := p.allow[origin]
	return ok
}

// CheckOrigin is a websocket.Upgrader origin check. Requests without an
// Origin header are not from browsers and pass. It returns nil for an empty
// policy so the upgrader keeps its same-host default.
func (p OriginPolicy) CheckOrigin() func(*http.Request) bool {
	if !p.Configured() {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return strings.TrimSpace(origin) == "" || p.Allows(origin)
	}
}

func normalizeOrigin(origin string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
}

// CORS answers preflights and tags responses for origins the policy allows.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := NewOriginPolicy(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin != "" {
				w.Header().Add("Vary", "Origin")
			}
			if policy.Allows(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Headers", corsAllowedHeaders)
				w.Header().Set("Access-Control-Allow-Methods", corsAllowedMethods)
				w.Header().Set("Access-Control-Max-Age", "600")
			}

			if r.Method == http.MethodOptions && origin != "" && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
