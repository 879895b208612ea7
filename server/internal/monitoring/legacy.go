package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/buger/jsonparser"

	"github.com/obsidianstack/licensewatch/pkg/types"
)

// licenseWatch is the suffix of the legacy watch id; the full id is
// "<cluster_uuid>_xpack_license_expiration".
const licenseWatch = "xpack_license_expiration"

// FetchLegacyAlerts returns the newest license expiration record of each of
// clusters, newest first. Clusters without a record are simply absent.
func (c *Client) FetchLegacyAlerts(ctx context.Context, clusters []types.Cluster) ([]types.LegacyAlert, error) {
	if len(clusters) == 0 {
		return nil, nil
	}

	uuids := make([]string, 0, len(clusters))
	watches := make([]interface{}, 0, len(clusters))
	for _, cl := range clusters {
		uuids = append(uuids, cl.ClusterUUID)
		watches = append(watches, map[string]interface{}{
			"term": map[string]string{"metadata.watch": cl.ClusterUUID + "_" + licenseWatch},
		})
	}

	query := map[string]interface{}{
		"size": len(clusters),
		"sort": []interface{}{
			map[string]interface{}{"timestamp": map[string]string{"order": "desc", "unmapped_type": "long"}},
		},
		"_source": []string{"message", "resolved_timestamp", "metadata", "prefix", "timestamp"},
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"minimum_should_match": 1,
				"filter": []interface{}{
					map[string]interface{}{"terms": map[string]interface{}{"metadata.cluster_uuid": uuids}},
				},
				"should": watches,
			},
		},
		"collapse": map[string]string{"field": "metadata.cluster_uuid"},
	}

	body, err := c.search(ctx, indexPattern(c.ccs, alertsIndexPattern), query)
	if err != nil {
		return nil, fmt.Errorf("monitoring: fetch legacy alerts: %w", err)
	}
	alerts, err := decodeLegacyAlerts(body)
	if err != nil {
		return nil, fmt.Errorf("monitoring: fetch legacy alerts: %w", err)
	}
	return alerts, nil
}

// decodeLegacyAlerts turns hits.hits[]._source into legacy alerts. A record
// without metadata.time takes it from the document timestamp. Hits that do
// not decode are logged and skipped.
func decodeLegacyAlerts(body []byte) ([]types.LegacyAlert, error) {
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

	var out []types.LegacyAlert
	_, err = jsonparser.ArrayEach(hits, func(hit []byte, _ jsonparser.ValueType, _ int, _ error) {
		src, dt, _, err := jsonparser.Get(hit, "_source")
		if err != nil || dt != jsonparser.Object {
			return
		}

		var la types.LegacyAlert
		if err := json.Unmarshal(src, &la); err != nil {
			id, _ := jsonparser.GetString(hit, "_id")
			slog.Warn("monitoring: skipping undecodable legacy alert", "id", id, "err", err)
			return
		}
		if la.Metadata.Time == 0 {
			la.Metadata.Time = documentTime(src)
		}
		la.Raw = append(json.RawMessage(nil), src...)
		out = append(out, la)
	})
	if err != nil {
		return nil, fmt.Errorf("decode hits: %w", err)
	}
	return out, nil
}

// documentTime reads the top-level timestamp as epoch millis or RFC 3339.
func documentTime(src []byte) int64 {
	v, dt, _, err := jsonparser.Get(src, "timestamp")
	if err != nil {
		return 0
	}
	switch dt {
	case jsonparser.Number:
		n, err := jsonparser.ParseInt(v)
		if err == nil {
			return n
		}
	case jsonparser.String:
		s, err := jsonparser.ParseString(v)
		if err != nil {
			return 0
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}
