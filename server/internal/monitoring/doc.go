// Package monitoring fetches what the license expiration alert evaluates:
// the clusters reporting to the monitoring cluster, and the legacy license
// expiration records written by the monitoring watches.
//
// Client queries Elasticsearch directly. ExporterClusters is an alternative
// cluster source that reads an elasticsearch_exporter /metrics endpoint.
package monitoring
