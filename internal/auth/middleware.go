// Package auth guards the SSE endpoint of the MCP server.
package auth

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sha1n/mathfuse/internal/config"
	"github.com/sha1n/mathfuse/internal/telemetry"
)

// excludedPaths bypass authentication
var excludedPaths = map[string]bool{
	"/health": true,
}

func isExcludedPath(path string) bool {
	return excludedPaths[path]
}

// NewMiddleware creates the authentication middleware for settings.
// Rejected requests are counted on metrics, which may be nil.
func NewMiddleware(settings config.AuthSettings, metrics *telemetry.Metrics) (func(http.Handler) http.Handler, error) {
	g := &guard{metrics: metrics, logger: slog.Default().With("component", "auth")}

	switch settings.Type {
	case config.AuthTypeNone, "":
		return func(next http.Handler) http.Handler {
			return next
		}, nil
	case config.AuthTypeBasic:
		if settings.Basic.Username == "" || settings.Basic.Password == "" {
			return nil, fmt.Errorf("basic auth requires non-empty username and password")
		}
		return g.wrap(config.AuthTypeBasic, basicAuth(settings.Basic)), nil
	case config.AuthTypeAPIKey:
		if len(settings.APIKeys) == 0 {
			return nil, fmt.Errorf("apikey auth requires at least one API key")
		}
		return g.wrap(config.AuthTypeAPIKey, apiKeyAuth(settings.APIKeys)), nil
	default:
		return nil, fmt.Errorf("unknown auth type: %s", settings.Type)
	}
}

// check reports whether a request carries valid credentials.
type check func(r *http.Request) bool

type guard struct {
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

func (g *guard) wrap(scheme string, ok check) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isExcludedPath(r.URL.Path) || ok(r) {
				next.ServeHTTP(w, r)
				return
			}
			g.metrics.AuthRejected(scheme)
			g.logger.Warn("Rejected request", "scheme", scheme, "path", r.URL.Path, "remote", r.RemoteAddr)
			if scheme == config.AuthTypeBasic {
				w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			}
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		})
	}
}

func basicAuth(settings config.BasicAuthSettings) check {
	return func(r *http.Request) bool {
		user, pass, ok := r.BasicAuth()
		userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(settings.Username)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(settings.Password)) == 1
		return ok && userMatch && passMatch
	}
}

// apiKeyAuth accepts the key in X-API-Key or as a bearer token.
func apiKeyAuth(apiKeys []string) check {
	return func(r *http.Request) bool {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			if bearer, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); found {
				key = strings.TrimSpace(bearer)
			}
		}
		if key == "" {
			return false
		}

		valid := false
		for _, validKey := range apiKeys {
			if subtle.ConstantTimeCompare([]byte(key), []byte(validKey)) == 1 {
				valid = true
			}
		}
		return valid
	}
}
