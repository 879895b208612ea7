// Package config loads the service configuration from the `monitoring:`
// section of config.yaml.
//
// Config fields:
//   - HTTPPort     : REST API, websocket hub and /metrics (default 8080)
//   - GRPCPort     : grpc.health.v1 probe (default 9090, 0 disables)
//   - UI           : monitoring UI flags; show_license_expiration gates the alert
//   - Elasticsearch: monitoring cluster the fetchers search
//   - Exporter     : optional elasticsearch_exporter cluster source
//   - Alerts       : interval, throttle, date format and connectors
//   - State        : memory | file | postgres persistence
//
// Load(path) applies defaults before unmarshalling, then validates.
// Watch(ctx, path, fn) reloads the file on change.
package config
