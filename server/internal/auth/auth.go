package auth

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/obsidianstack/licensewatch/server/internal/config"
)

// Checker validates API keys presented by callers.
type Checker struct {
	header string
	key    string
}

// NewChecker builds a Checker from cfg. The key is read from the environment
// once, at construction.
func NewChecker(cfg config.AuthConfig) *Checker {
	c := &Checker{header: strings.ToLower(cfg.EffectiveHeader())}
	if cfg.Mode == "apikey" {
		c.key = cfg.Key()
		if c.key == "" {
			slog.Warn("auth: apikey mode configured but key is empty, auth disabled", "key_env", cfg.KeyEnv)
		}
	}
	return c
}

// Enabled reports whether calls are checked at all.
func (c *Checker) Enabled() bool { return c.key != "" }

// Valid reports whether presented matches the configured key.
func (c *Checker) Valid(presented string) bool {
	if !c.Enabled() {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(c.key)) == 1
}

// Middleware rejects HTTP requests without a valid key with 401. Paths in
// exempt are served without a check.
func (c *Checker) Middleware(next http.Handler, exempt ...string) http.Handler {
	if !c.Enabled() {
		return next
	}
	skip := make(map[string]bool, len(exempt))
	for _, p := range exempt {
		skip[p] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if skip[r.URL.Path] || c.Valid(r.Header.Get(c.header)) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid api key"}` + "\n")) //nolint:errcheck
	})
}

// UnaryInterceptor returns a gRPC interceptor enforcing the key on every
// unary call. A missing or wrong key yields codes.Unauthenticated.
func (c *Checker) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if !c.Enabled() {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}
		vals := md.Get(c.header)
		if len(vals) == 0 || !c.Valid(vals[0]) {
			return nil, status.Error(codes.Unauthenticated, "invalid api key")
		}
		return handler(ctx, req)
	}
}
