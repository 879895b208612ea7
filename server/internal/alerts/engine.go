package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/obsidianstack/licensewatch/pkg/types"
)

// ClusterFetcher returns the clusters known to the monitoring cluster.
type ClusterFetcher interface {
	FetchClusters(ctx context.Context) ([]types.Cluster, error)
}

// LegacyAlertFetcher returns the latest legacy license records for clusters.
type LegacyAlertFetcher interface {
	FetchLegacyAlerts(ctx context.Context, clusters []types.Cluster) ([]types.LegacyAlert, error)
}

// StateStore holds alert instance state between cycles.
type StateStore interface {
	Get(instanceID string) (types.InstanceState, bool)
	Replace(instanceID string, st types.InstanceState)

	// FiringCount returns how many instances are firing, including ones
	// the current cycle did not touch.
	FiringCount() int
}

// ActionScheduler accepts actions produced by a cycle.
type ActionScheduler interface {
	ScheduleActions(instanceID, group string, ac ActionContext)
}

// CycleReport summarises one Execute call.
type CycleReport struct {
	StartedAt    time.Time
	FinishedAt   time.Time
	Skipped      bool
	Clusters     int
	LegacyAlerts int
	Updated      int
	Firing       int // updated instances left firing
	Actions      int

	// FiringTotal is the store-wide firing count after the cycle.
	FiringTotal int
	Err          error
}

// EngineConfig wires an Engine to its collaborators.
type EngineConfig struct {
	Clusters ClusterFetcher
	Legacy   LegacyAlertFetcher
	States   StateStore
	Actions  ActionScheduler

	// Interval between cycles in Run. Defaults to one minute.
	Interval time.Duration
	Options  Options

	// Now is the evaluation clock. Defaults to time.Now.
	Now func() time.Time

	// OnCycle, if set, is called after every cycle.
	OnCycle func(CycleReport)
}

// Engine runs the license expiration alert against its collaborators.
// Cycles never overlap; Engine is safe for concurrent use.
type Engine struct {
	clusters ClusterFetcher
	legacy   LegacyAlertFetcher
	states   StateStore
	actions  ActionScheduler
	interval time.Duration
	now      func() time.Time
	onCycle  func(CycleReport)

	cycleMu sync.Mutex

	mu   sync.RWMutex
	opts Options
	last CycleReport
}

// NewEngine creates an Engine from cfg.
func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		clusters: cfg.Clusters,
		legacy:   cfg.Legacy,
		states:   cfg.States,
		actions:  cfg.Actions,
		interval: cfg.Interval,
		now:      cfg.Now,
		onCycle:  cfg.OnCycle,
		opts:     cfg.Options,
	}
	if e.interval <= 0 {
		e.interval = time.Minute
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// SetOptions replaces the evaluator options used by subsequent cycles.
func (e *Engine) SetOptions(opts Options) {
	e.mu.Lock()
	e.opts = opts
	e.mu.Unlock()
}

// Options returns the options currently in effect.
func (e *Engine) Options() Options {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.opts
}

// LastCycle returns the report of the most recent cycle.
func (e *Engine) LastCycle() CycleReport {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}

// Execute runs one evaluation cycle: fetch clusters and legacy records,
// evaluate them against prior state, replace state for every updated
// instance and schedule the resulting actions.
//
// Fetch errors abort the cycle before any state is touched and are returned.
func (e *Engine) Execute(ctx context.Context) (CycleReport, error) {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	opts := e.Options()
	rep := CycleReport{StartedAt: e.now()}
	defer func() {
		rep.FinishedAt = e.now()
		e.mu.Lock()
		e.last = rep
		e.mu.Unlock()
		if e.onCycle != nil {
			e.onCycle(rep)
		}
	}()

	if !opts.ShowLicenseExpiration {
		rep.Skipped = true
		slog.Debug("alerts: license expiration disabled, skipping cycle")
		return rep, nil
	}

	clusters, err := e.clusters.FetchClusters(ctx)
	if err != nil {
		rep.Err = fmt.Errorf("alerts: fetch clusters: %w", err)
		return rep, rep.Err
	}
	rep.Clusters = len(clusters)

	legacy, err := e.legacy.FetchLegacyAlerts(ctx, clusters)
	if err != nil {
		rep.Err = fmt.Errorf("alerts: fetch legacy alerts: %w", err)
		return rep, rep.Err
	}
	rep.LegacyAlerts = len(legacy)

	prior := make(map[string]types.InstanceState, len(clusters))
	for _, c := range clusters {
		id := InstanceID(c.ClusterUUID)
		if st, ok := e.states.Get(id); ok {
			prior[id] = st
		}
	}

	res := Evaluate(Input{
		Legacy:   legacy,
		Clusters: clusters,
		Prior:    prior,
		Now:      rep.StartedAt,
		Options:  opts,
	})

	for _, u := range res.Updates {
		e.states.Replace(u.InstanceID, u.State)
		rep.Updated++
		if u.State.Firing() {
			rep.Firing++
		}
		if u.Action != nil {
			e.actions.ScheduleActions(u.InstanceID, u.Action.Group, u.Action.Context)
			rep.Actions++
		}
	}

	rep.FiringTotal = e.states.FiringCount()

	slog.Debug("alerts: cycle complete",
		"clusters", rep.Clusters,
		"legacy_alerts", rep.LegacyAlerts,
		"updated", rep.Updated,
		"firing", rep.Firing,
		"firing_total", rep.FiringTotal,
		"actions", rep.Actions,
	)
	return rep, nil
}

// Run executes a cycle immediately and then every interval until ctx is
// cancelled. Cycle errors are logged; the loop keeps going.
func (e *Engine) Run(ctx context.Context) {
	t := time.NewTicker(e.interval)
	defer t.Stop()

	for {
		if _, err := e.Execute(ctx); err != nil {
			slog.Error("alerts: cycle failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
