package api

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/obsidianstack/licensewatch/pkg/types"
)

// staleAfter is how long a state may go without being re-checked before it
// is flagged as stale.
const staleAfter = 3 * 24 * time.Hour

// DiagnosticHint is one human-readable insight about a cluster's license
// alert. The UI shows these as chips on the cluster card.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier (used for dedup/ordering).
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level  string `json:"level"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
	// Value is an optional number associated with the hint (e.g. days left).
	Value *float64 `json:"value,omitempty"`
}

var levelRank = map[string]int{"critical": 0, "warning": 1, "info": 2, "ok": 3}

// computeDiagnostics derives hints from one cluster's alert state.
// Hints are ordered critical first, then warnings, then info.
func computeDiagnostics(as types.AlertState, now time.Time) []DiagnosticHint {
	var hints []DiagnosticHint
	ui := as.UI

	if ui.IsFiring {
		hints = append(hints, expiryHint(ui.TriggeredMS, now))
	} else if ui.ResolvedMS > 0 {
		hints = append(hints, DiagnosticHint{
			Key:   "resolved",
			Level: "ok",
			Title: "License active",
			Detail: fmt.Sprintf(
				"The license expiration alert for %s resolved at %s. No action needed.",
				clusterLabel(as.Cluster), time.UnixMilli(ui.ResolvedMS).UTC().Format(time.RFC1123),
			),
		})
	}

	if ui.LastCheckedMS > 0 {
		age := now.Sub(time.UnixMilli(ui.LastCheckedMS))
		if age > staleAfter {
			days := math.Floor(age.Hours() / 24)
			hints = append(hints, DiagnosticHint{
				Key:   "stale",
				Level: "warning",
				Title: "State not refreshed",
				Detail: fmt.Sprintf(
					"This state was last checked %.0f days ago. The monitoring watches may have "+
						"stopped writing license records for this cluster, or the cluster no longer reports.",
					days,
				),
				Value: &days,
			})
		}
	}

	if as.CCS != "" {
		hints = append(hints, DiagnosticHint{
			Key:    "ccs",
			Level:  "info",
			Title:  "Remote cluster",
			Detail: fmt.Sprintf("This cluster is read through the cross-cluster search alias %q.", as.CCS),
		})
	}

	sort.SliceStable(hints, func(i, j int) bool {
		return levelRank[hints[i].Level] < levelRank[hints[j].Level]
	})
	return hints
}

// expiryHint grades a firing alert by the time left until expiresMS.
func expiryHint(expiresMS int64, now time.Time) DiagnosticHint {
	left := time.UnixMilli(expiresMS).Sub(now)
	days := math.Floor(left.Hours() / 24)

	h := DiagnosticHint{Key: "license_expiry", Value: &days}
	switch {
	case left <= 0:
		h.Level = "critical"
		h.Title = "License expired"
		h.Detail = "The license has expired. Security, monitoring and other paid features " +
			"are degraded until a new license is installed."
	case days < 7:
		h.Level = "critical"
		h.Title = fmt.Sprintf("Expires in %.0f days", days)
		h.Detail = "The license expires within a week. Install the renewed license now " +
			"to avoid losing paid features."
	case days < 30:
		h.Level = "warning"
		h.Title = fmt.Sprintf("Expires in %.0f days", days)
		h.Detail = "The license expires within a month. Start the renewal so the new " +
			"license can be installed ahead of time."
	default:
		h.Level = "info"
		h.Title = fmt.Sprintf("Expires in %.0f days", days)
		h.Detail = "The license is approaching expiration. Plan the renewal."
	}
	return h
}

func clusterLabel(c types.Cluster) string {
	if c.ClusterName != "" {
		return c.ClusterName
	}
	return c.ClusterUUID
}

func toAlertResponse(instanceID string, as types.AlertState, updatedAt, now time.Time) AlertResponse {
	hints := computeDiagnostics(as, now)
	if hints == nil {
		hints = []DiagnosticHint{}
	}
	return AlertResponse{
		InstanceID:  instanceID,
		Cluster:     as.Cluster,
		CCS:         as.CCS,
		UI:          as.UI,
		Diagnostics: hints,
		UpdatedAt:   updatedAt.UTC().Format(time.RFC3339),
	}
}
