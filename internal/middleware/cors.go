// Package middleware provides HTTP middleware for the coaching API.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/fitcoach/internal/identity"
)

// CORSOptions configures CORS.
type CORSOptions struct {
	AllowedOrigins []string
	// ExtraHeaders are allowed in addition to Content-Type and the session header.
	ExtraHeaders []string
	// MaxAge lets browsers cache preflight results. Zero omits the header.
	MaxAge time.Duration
}

var baseHeaders = []string{"Content-Type", identity.SessionHeaderName}

// CORS returns middleware that handles CORS headers.
func CORS(opts CORSOptions) func(http.Handler) http.Handler {
	headers := strings.Join(append(append([]string(nil), baseHeaders...), opts.ExtraHeaders...), ", ")
	maxAge := ""
	if opts.MaxAge > 0 {
		maxAge = strconv.Itoa(int(opts.MaxAge / time.Second))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			w.Header().Add("Vary", "Origin")

			wildcard, explicit := matchOrigin(opts.AllowedOrigins, origin)
			if origin != "" && (wildcard || explicit) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", headers)
				w.Header().Set("Access-Control-Expose-Headers", "X-Request-Id")
				if maxAge != "" {
					w.Header().Set("Access-Control-Max-Age", maxAge)
				}
				// Credentials only for explicitly listed origins; echoing
				// credentials to a wildcard match enables CSRF.
				if explicit {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func matchOrigin(allowed []string, origin string) (wildcard, explicit bool) {
	for _, o := range allowed {
		switch {
		case o == "*":
			wildcard = true
		case strings.EqualFold(o, origin):
			explicit = true
		}
	}
	return wildcard, explicit
}
