package alerts

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/obsidianstack/licensewatch/server/internal/config"
)

const maxHistoryLen = 200

// Action is one scheduled action as recorded by the Dispatcher.
type Action struct {
	InstanceID  string        `json:"instance_id"`
	Group       string        `json:"group"`
	Context     ActionContext `json:"context"`
	ScheduledAt time.Time     `json:"scheduled_at"`
}

// Dispatcher implements ActionScheduler. It throttles repeated actions and
// delivers the rest asynchronously to the configured connectors.
//
// The throttle key is instance, group and state: a firing action is sent at
// most once per throttle window, and scheduling a different state resets the
// window so a resolution is never suppressed.
type Dispatcher struct {
	throttle time.Duration
	now      func() time.Time
	client   *http.Client

	// OnSchedule, if set, observes every ScheduleActions call.
	OnSchedule func(state string, throttled bool)

	mu         sync.Mutex
	connectors []config.ConnectorConfig
	last       map[string]time.Time // key: instance|group|state
	history    []Action
	wg         sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. A zero throttle uses DefaultThrottle.
func NewDispatcher(throttle time.Duration, connectors []config.ConnectorConfig) *Dispatcher {
	if throttle <= 0 {
		throttle = DefaultThrottle
	}
	return &Dispatcher{
		throttle:   throttle,
		now:        time.Now,
		client:     &http.Client{Timeout: 10 * time.Second},
		connectors: connectors,
		last:       make(map[string]time.Time),
	}
}

// SetConnectors swaps the delivery targets, e.g. after a config reload.
func (d *Dispatcher) SetConnectors(connectors []config.ConnectorConfig) {
	d.mu.Lock()
	d.connectors = connectors
	d.mu.Unlock()
}

// ScheduleActions implements ActionScheduler.
func (d *Dispatcher) ScheduleActions(instanceID, group string, ac ActionContext) {
	now := d.now()
	key := instanceID + "|" + group + "|" + ac.State

	d.mu.Lock()
	if at, ok := d.last[key]; ok && now.Sub(at) < d.throttle {
		d.mu.Unlock()
		slog.Debug("alerts: action throttled",
			"instance", instanceID, "state", ac.State, "last", at)
		d.observe(ac.State, true)
		return
	}
	for k := range d.last {
		if k != key && hasInstanceGroup(k, instanceID, group) {
			delete(d.last, k)
		}
	}
	d.last[key] = now

	a := Action{InstanceID: instanceID, Group: group, Context: ac, ScheduledAt: now}
	d.history = append(d.history, a)
	if len(d.history) > maxHistoryLen {
		d.history = d.history[len(d.history)-maxHistoryLen:]
	}
	connectors := d.connectors
	d.wg.Add(1)
	d.mu.Unlock()

	slog.Info("alerts: action scheduled",
		"instance", instanceID,
		"group", group,
		"state", ac.State,
		"cluster", ac.ClusterName,
	)
	d.observe(ac.State, false)

	go func() {
		defer d.wg.Done()
		d.deliver(connectors, &a)
	}()
}

// Prime marks an action as already scheduled at at, unless a newer schedule
// is known. It restores the throttle window after a restart.
func (d *Dispatcher) Prime(instanceID, group, state string, at time.Time) {
	key := instanceID + "|" + group + "|" + state
	d.mu.Lock()
	if prev, ok := d.last[key]; !ok || at.After(prev) {
		d.last[key] = at
	}
	d.mu.Unlock()
}

// Recent returns copies of the most recently scheduled actions, oldest first.
func (d *Dispatcher) Recent() []Action {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Action, len(d.history))
	copy(out, d.history)
	return out
}

// Wait blocks until every in-flight delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) observe(state string, throttled bool) {
	if d.OnSchedule != nil {
		d.OnSchedule(state, throttled)
	}
}

func hasInstanceGroup(key, instanceID, group string) bool {
	prefix := instanceID + "|" + group + "|"
	return len(key) > len(prefix) && key[:len(prefix)] == prefix
}
