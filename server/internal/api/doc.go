// Package api implements the HTTP REST API for licensewatch.
//
// New(store, runner, actions) returns an http.Handler that serves:
//
//	GET  /api/v1/health                 cluster and firing counts, last cycle outcome
//	GET  /api/v1/alerts                 every cluster's alert state with hints
//	GET  /api/v1/alerts/{clusterUuid}   one cluster; 404 if never evaluated
//	POST /api/v1/alerts/_execute        run an evaluation cycle now
//	GET  /api/v1/alert-type             the alert type definition
//	GET  /api/v1/actions                recently scheduled actions
//
// All endpoints respond with Content-Type: application/json and return 405
// for unsupported methods. JSON types are defined in types.go.
package api
