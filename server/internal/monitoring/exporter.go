package monitoring

import (
	"context"
	"fmt"
	"io"
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/obsidianstack/licensewatch/pkg/types"
	"github.com/obsidianstack/licensewatch/server/internal/config"
)

// clusterInfoMetric is exported once per cluster by elasticsearch_exporter.
const clusterInfoMetric = "elasticsearch_clusterinfo_version_info"

// ExporterClusters lists clusters from an elasticsearch_exporter endpoint.
// It satisfies the same FetchClusters contract as Client.
type ExporterClusters struct {
	endpoint string
	doer     Doer
}

// NewExporterClusters builds a cluster source for cfg.
func NewExporterClusters(cfg config.ExporterConfig) *ExporterClusters {
	return NewExporterClustersWithDoer(cfg.Endpoint, newHTTPClient(cfg.Auth, cfg.TLS, defaultTimeout))
}

// NewExporterClustersWithDoer builds a cluster source that scrapes through d.
func NewExporterClustersWithDoer(endpoint string, d Doer) *ExporterClusters {
	if d == nil {
		d = &http.Client{Timeout: defaultTimeout}
	}
	return &ExporterClusters{endpoint: endpoint, doer: d}
}

// FetchClusters scrapes the endpoint and returns one cluster per cluster_uuid label.
func (e *ExporterClusters) FetchClusters(ctx context.Context) ([]types.Cluster, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("monitoring: exporter: build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := e.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("monitoring: exporter: http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("monitoring: exporter: unexpected status %d", resp.StatusCode)
	}

	mfs, err := parseMetrics(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("monitoring: exporter: %w", err)
	}
	return clustersFromFamily(mfs[clusterInfoMetric]), nil
}

// parseMetrics decodes a Prometheus text exposition from r into metric families.
// A partial result with a non-fatal parse warning is still returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

func clustersFromFamily(mf *dto.MetricFamily) []types.Cluster {
	if mf == nil {
		return nil
	}
	var (
		out  []types.Cluster
		seen = make(map[string]bool)
	)
	for _, m := range mf.GetMetric() {
		var uuid, name string
		for _, lp := range m.GetLabel() {
			switch lp.GetName() {
			case "cluster_uuid":
				uuid = lp.GetValue()
			case "cluster":
				name = lp.GetValue()
			}
		}
		if uuid == "" || seen[uuid] {
			continue
		}
		seen[uuid] = true
		out = append(out, types.Cluster{ClusterUUID: uuid, ClusterName: name})
	}
	return out
}
