// Package store holds alert instance state between evaluation cycles.
//
// Store is the in-memory authority, keyed by alert instance id. A Backend
// optionally persists every Replace so state survives restarts: a JSON
// file or a PostgreSQL table.
package store
