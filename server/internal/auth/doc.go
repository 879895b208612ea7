// Package auth guards the REST API and the gRPC probe with a shared API key.
//
// A Checker is built from config.AuthConfig. Middleware wraps an http.Handler
// and UnaryInterceptor wraps gRPC unary calls; both read the key from the
// configured header (metadata key for gRPC).
//
// When mode != "apikey" or the key resolves empty, every call passes through,
// which keeps local development usable with auth disabled.
package auth
