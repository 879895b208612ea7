// Package metrics exposes the service's own counters on /metrics in the
// Prometheus text format.
package metrics

import (
	"log/slog"
	"net/http"
	"sort"
	"sync"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/version"

	"github.com/obsidianstack/licensewatch/server/internal/alerts"
)

const namespace = "licensewatch_"

// Registry accumulates service metrics. It is safe for concurrent use.
type Registry struct {
	mu           sync.Mutex
	cycles       float64
	cycleErrors  float64
	skipped      float64
	firing       float64
	lastCycle    float64
	lastDuration float64
	actions      map[actionKey]float64
}

type actionKey struct {
	state   string
	outcome string // scheduled | throttled
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{actions: make(map[actionKey]float64)}
}

// ObserveCycle records one evaluation cycle.
func (r *Registry) ObserveCycle(rep alerts.CycleReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycles++
	if rep.Err != nil {
		r.cycleErrors++
	}
	if rep.Skipped {
		r.skipped++
	}
	if rep.Err == nil && !rep.Skipped {
		r.firing = float64(rep.FiringTotal)
	}
	r.lastCycle = float64(rep.StartedAt.UnixMilli()) / 1000
	r.lastDuration = rep.FinishedAt.Sub(rep.StartedAt).Seconds()
}

// SetFiring overrides the firing clusters gauge, e.g. after state restore.
func (r *Registry) SetFiring(n int) {
	r.mu.Lock()
	r.firing = float64(n)
	r.mu.Unlock()
}

// ObserveAction records a scheduled or throttled action.
func (r *Registry) ObserveAction(state string, throttled bool) {
	k := actionKey{state: state, outcome: "scheduled"}
	if throttled {
		k.outcome = "throttled"
	}
	r.mu.Lock()
	r.actions[k]++
	r.mu.Unlock()
}

// Families snapshots the registry as metric families, sorted by name.
func (r *Registry) Families() []*dto.MetricFamily {
	r.mu.Lock()
	defer r.mu.Unlock()

	fams := []*dto.MetricFamily{
		counter("cycles_total", "Evaluation cycles run.", r.cycles),
		counter("cycle_errors_total", "Evaluation cycles that failed.", r.cycleErrors),
		counter("cycles_skipped_total", "Evaluation cycles skipped because the alert is disabled.", r.skipped),
		gauge("firing_clusters", "Clusters whose license expiration alert is firing.", r.firing),
		gauge("last_cycle_timestamp_seconds", "Start time of the last evaluation cycle.", r.lastCycle),
		gauge("last_cycle_duration_seconds", "Duration of the last evaluation cycle.", r.lastDuration),
		buildInfo(),
	}
	if af := r.actionFamily(); len(af.Metric) > 0 {
		fams = append(fams, af)
	}
	sort.Slice(fams, func(i, j int) bool { return fams[i].GetName() < fams[j].GetName() })
	return fams
}

func (r *Registry) actionFamily() *dto.MetricFamily {
	keys := make([]actionKey, 0, len(r.actions))
	for k := range r.actions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].state != keys[j].state {
			return keys[i].state < keys[j].state
		}
		return keys[i].outcome < keys[j].outcome
	})

	mf := &dto.MetricFamily{
		Name: strPtr(namespace + "actions_total"),
		Help: strPtr("Actions handed to the dispatcher, by alert state and outcome."),
		Type: dto.MetricType_COUNTER.Enum(),
	}
	for _, k := range keys {
		mf.Metric = append(mf.Metric, &dto.Metric{
			Label:   []*dto.LabelPair{label("outcome", k.outcome), label("state", k.state)},
			Counter: &dto.Counter{Value: f64Ptr(r.actions[k])},
		})
	}
	return mf
}

// ServeHTTP writes all families in the text exposition format.
func (r *Registry) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))
	enc := expfmt.NewEncoder(w, format)
	for _, mf := range r.Families() {
		if err := enc.Encode(mf); err != nil {
			slog.Error("metrics: encode family", "name", mf.GetName(), "err", err)
			return
		}
	}
}

func buildInfo() *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: strPtr(namespace + "build_info"),
		Help: strPtr("Build information of the running binary."),
		Type: dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{
			Label: []*dto.LabelPair{
				label("goversion", version.GoVersion),
				label("revision", version.GetRevision()),
				label("version", version.Version),
			},
			Gauge: &dto.Gauge{Value: f64Ptr(1)},
		}},
	}
}

func counter(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   strPtr(namespace + name),
		Help:   strPtr(help),
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{{Counter: &dto.Counter{Value: f64Ptr(v)}}},
	}
}

func gauge(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   strPtr(namespace + name),
		Help:   strPtr(help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: f64Ptr(v)}}},
	}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: strPtr(name), Value: strPtr(value)}
}

func strPtr(s string) *string   { return &s }
func f64Ptr(v float64) *float64 { return &v }
