// Package types defines the Go types shared by the evaluator, the monitoring
// fetchers, the state store and the HTTP surfaces: cluster identities, legacy
// alert records, UI messages and per-instance alert state.
package types
