package main

import (
	"context"
	"fmt"

	"github.com/obsidianstack/licensewatch/server/internal/alerts"
	"github.com/obsidianstack/licensewatch/server/internal/config"
	"github.com/obsidianstack/licensewatch/server/internal/monitoring"
	"github.com/obsidianstack/licensewatch/server/internal/store"
)

// evaluatorOptions maps the config onto the evaluator's options.
func evaluatorOptions(m config.MonitoringConfig) alerts.Options {
	return alerts.Options{
		ShowLicenseExpiration: m.UI.ShowLicenseExpiration,
		CCSEnabled:            m.UI.CCS.Enabled,
		MetricbeatIndex:       m.UI.Metricbeat.Index,
		KibanaURL:             m.KibanaURL,
		AbsoluteLinks:         m.Alerts.AbsoluteLinks,
		FormatDate:            alerts.DateFormatter(m.Alerts.DateFormat, m.Alerts.Location()),
	}
}

// fetchers returns the cluster and legacy record sources. Clusters come from
// the exporter when one is configured, otherwise from the monitoring indices.
func fetchers(m config.MonitoringConfig) (alerts.ClusterFetcher, alerts.LegacyAlertFetcher) {
	es := monitoring.New(m.Elasticsearch, m.UI)
	if m.Exporter.Endpoint != "" {
		return monitoring.NewExporterClusters(m.Exporter), es
	}
	return es, es
}

// primeThrottle treats every restored firing instance as notified at its last
// persisted update, so a restart does not re-send every firing action at once.
func primeThrottle(d *alerts.Dispatcher, st *store.Store) int {
	n := 0
	for _, e := range st.List() {
		if !e.State.Firing() {
			continue
		}
		d.Prime(e.InstanceID, alerts.ActionGroupDefault, alerts.StateFiring, e.UpdatedAt)
		n++
	}
	return n
}

// openStore builds the state store for the configured backend and restores
// persisted state into it.
func openStore(ctx context.Context, sc config.StateConfig) (*store.Store, error) {
	var backend store.Backend
	switch sc.Backend {
	case "file":
		backend = store.NewFileBackend(sc.Path)
	case "postgres":
		pg, err := store.NewPostgresBackend(ctx, sc.DSN())
		if err != nil {
			return nil, err
		}
		backend = pg
	}

	st := store.New(backend)
	if err := st.Restore(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, fmt.Errorf("restore state: %w", err)
	}
	return st, nil
}
