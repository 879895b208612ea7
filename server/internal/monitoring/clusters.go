package monitoring

import (
	"context"
	"fmt"

	"github.com/buger/jsonparser"

	"github.com/obsidianstack/licensewatch/pkg/types"
)

// clusterLookback bounds how old a cluster_stats document may be for its
// cluster to still count as reporting.
const clusterLookback = "now-2m"

// FetchClusters returns every cluster that reported cluster_stats recently,
// one entry per cluster uuid.
func (c *Client) FetchClusters(ctx context.Context) ([]types.Cluster, error) {
	index := indexPattern(c.ccs, esIndexPattern, c.metricbeatIndex)
	query := map[string]interface{}{
		"size": 1000,
		"_source": []string{
			"cluster_uuid",
			"cluster_name",
			"cluster_settings.cluster.metadata.display_name",
		},
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{
					map[string]interface{}{"term": map[string]string{"type": "cluster_stats"}},
					map[string]interface{}{"range": map[string]interface{}{
						"timestamp": map[string]string{"gte": clusterLookback},
					}},
				},
			},
		},
		"collapse": map[string]string{"field": "cluster_uuid"},
	}

	body, err := c.search(ctx, index, query)
	if err != nil {
		return nil, fmt.Errorf("monitoring: fetch clusters: %w", err)
	}
	clusters, err := decodeClusters(body)
	if err != nil {
		return nil, fmt.Errorf("monitoring: fetch clusters: %w", err)
	}
	return clusters, nil
}

// decodeClusters reads hits.hits[]._source into clusters.
func decodeClusters(body []byte) ([]types.Cluster, error) {
	hits, dt, _, err := jsonparser.Get(body, "hits", "hits")
	if err == jsonparser.KeyPathNotFoundError {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("decode hits: %w", err)
	}
	if dt != jsonparser.Array {
		return nil, fmt.Errorf("decode hits: hits.hits is %s, want array", dt)
	}

	var (
		out  []types.Cluster
		seen = make(map[string]bool)
	)
	_, err = jsonparser.ArrayEach(hits, func(hit []byte, _ jsonparser.ValueType, _ int, _ error) {
		uuid, _ := jsonparser.GetString(hit, "_source", "cluster_uuid")
		if uuid == "" || seen[uuid] {
			return
		}
		seen[uuid] = true

		name, _ := jsonparser.GetString(hit, "_source", "cluster_settings", "cluster", "metadata", "display_name")
		if name == "" {
			name, _ = jsonparser.GetString(hit, "_source", "cluster_name")
		}
		index, _ := jsonparser.GetString(hit, "_index")

		out = append(out, types.Cluster{
			ClusterUUID: uuid,
			ClusterName: name,
			CCS:         ccsPrefix(index),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("decode hits: %w", err)
	}
	return out, nil
}
