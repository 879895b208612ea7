package monitoring

import "strings"

// Index patterns of the legacy monitoring data.
const (
	esIndexPattern     = ".monitoring-es-*"
	alertsIndexPattern = ".monitoring-alerts-*"
)

// indexPattern joins patterns and, when cross-cluster search is enabled,
// prefixes each with "*:" ahead of the local form so remote clusters are
// searched as well.
func indexPattern(ccs bool, patterns ...string) string {
	var out []string
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if ccs {
			out = append(out, "*:"+p)
		}
		out = append(out, p)
	}
	return strings.Join(out, ",")
}

// ccsPrefix returns the remote cluster alias of a hit's _index, if any.
func ccsPrefix(index string) string {
	if i := strings.IndexByte(index, ':'); i > 0 {
		return index[:i]
	}
	return ""
}
