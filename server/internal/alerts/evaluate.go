package alerts

import (
	"log/slog"
	"time"

	"github.com/obsidianstack/licensewatch/pkg/types"
)

// defaultDateLayout renders expiredDate when Options.FormatDate is nil.
const defaultDateLayout = "Jan 2, 2006 15:04:05"

// Options are the configuration flags the evaluator consumes.
type Options struct {
	ShowLicenseExpiration bool
	CCSEnabled            bool

	// MetricbeatIndex is carried for the fetchers; the evaluator ignores it.
	MetricbeatIndex string

	KibanaURL     string
	AbsoluteLinks bool

	// FormatDate renders the expiredDate action variable.
	FormatDate func(time.Time) string
}

func (o Options) formatDate(ms int64) string {
	f := o.FormatDate
	if f == nil {
		f = DateFormatter(defaultDateLayout, time.UTC)
	}
	return f(time.UnixMilli(ms))
}

// Input is everything one evaluation needs. Prior is keyed by instance id.
type Input struct {
	Legacy   []types.LegacyAlert
	Clusters []types.Cluster
	Prior    map[string]types.InstanceState
	Now      time.Time
	Options  Options
}

// ScheduledAction is an action to hand to the ActionScheduler.
type ScheduledAction struct {
	Group   string
	Context ActionContext
}

// InstanceUpdate is the new state of one alert instance, and the action to
// schedule for it, if any.
type InstanceUpdate struct {
	InstanceID string
	Cluster    types.Cluster
	State      types.InstanceState
	Action     *ScheduledAction
}

// Result of one evaluation. An empty Result means nothing is replaced and
// nothing is scheduled.
type Result struct {
	Updates []InstanceUpdate
}

// Actions returns the number of scheduled actions in r.
func (r Result) Actions() int {
	n := 0
	for _, u := range r.Updates {
		if u.Action != nil {
			n++
		}
	}
	return n
}

// Evaluate computes the next per-cluster state and actions from legacy alert
// records. It has no side effects: the clock arrives through in.Now and
// prior state through in.Prior.
//
// Records whose cluster is not in in.Clusters are skipped. When a cluster
// has several records, the first one wins; fetchers return them newest first.
func Evaluate(in Input) Result {
	if !in.Options.ShowLicenseExpiration || len(in.Legacy) == 0 {
		return Result{}
	}

	clusters := make(map[string]types.Cluster, len(in.Clusters))
	for _, c := range in.Clusters {
		clusters[c.ClusterUUID] = c
	}

	nowMS := in.Now.UnixMilli()
	seen := make(map[string]bool)
	var res Result

	for _, la := range in.Legacy {
		cluster, ok := clusters[la.Metadata.ClusterUUID]
		if !ok {
			slog.Debug("alerts: no cluster for legacy alert, skipping",
				"cluster_uuid", la.Metadata.ClusterUUID)
			continue
		}
		if seen[cluster.ClusterUUID] {
			continue
		}
		seen[cluster.ClusterUUID] = true

		id := InstanceID(cluster.ClusterUUID)
		prior, hadPrior := priorAlertState(in.Prior[id], cluster.ClusterUUID)
		expiredDate := in.Options.formatDate(la.Metadata.Time)

		var (
			ui     types.UIState
			action *ScheduledAction
		)
		if resolvedMS, resolved := la.Resolved(); resolved {
			ui = types.UIState{
				IsFiring:    false,
				Message:     resolvedMessage(),
				Severity:    MapLegacySeverity(la.Metadata.Severity),
				ResolvedMS:  resolvedMS,
				TriggeredMS: la.Metadata.Time,
			}
			if hadPrior {
				if prior.UI.Severity != "" {
					ui.Severity = prior.UI.Severity
				}
				if prior.UI.TriggeredMS != 0 {
					ui.TriggeredMS = prior.UI.TriggeredMS
				}
			}
			if hadPrior && prior.UI.IsFiring {
				action = &ScheduledAction{
					Group:   ActionGroupDefault,
					Context: resolvedAction(cluster, expiredDate),
				}
			}
		} else {
			ui = types.UIState{
				IsFiring:    true,
				Message:     firingMessage(la),
				Severity:    MapLegacySeverity(la.Metadata.Severity),
				ResolvedMS:  0,
				TriggeredMS: la.Metadata.Time,
			}
			action = &ScheduledAction{
				Group:   ActionGroupDefault,
				Context: firingAction(in.Options, cluster, expiredDate),
			}
		}
		ui.LastCheckedMS = nowMS

		res.Updates = append(res.Updates, InstanceUpdate{
			InstanceID: id,
			Cluster:    cluster,
			State: types.InstanceState{
				AlertStates: []types.AlertState{{
					Cluster: cluster,
					CCS:     cluster.CCS,
					UI:      ui,
				}},
			},
			Action: action,
		})
	}
	return res
}

// priorAlertState finds the cluster's entry in an instance's prior state.
func priorAlertState(st types.InstanceState, clusterUUID string) (types.AlertState, bool) {
	for _, as := range st.AlertStates {
		if as.Cluster.ClusterUUID == clusterUUID {
			return as, true
		}
	}
	return types.AlertState{}, false
}
