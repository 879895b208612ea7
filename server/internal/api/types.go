package api

import (
	"github.com/obsidianstack/licensewatch/pkg/types"
	"github.com/obsidianstack/licensewatch/server/internal/alerts"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	// State is "ok", "firing", "error" or "unknown" (no cycle yet).
	State          string `json:"state"`
	ClusterCount   int    `json:"cluster_count"`
	InstanceCount  int    `json:"instance_count"`
	FiringCount    int    `json:"firing_count"`
	Skipped        bool   `json:"skipped"`
	LastCycleAt    string `json:"last_cycle_at,omitempty"` // RFC3339
	LastCycleError string `json:"last_cycle_error,omitempty"`
}

// AlertResponse is one cluster's alert state in GET /api/v1/alerts or
// GET /api/v1/alerts/{clusterUuid}.
type AlertResponse struct {
	InstanceID  string           `json:"instance_id"`
	Cluster     types.Cluster    `json:"cluster"`
	CCS         string           `json:"ccs,omitempty"`
	UI          types.UIState    `json:"ui"`
	Diagnostics []DiagnosticHint `json:"diagnostics"`
	UpdatedAt   string           `json:"updated_at"` // RFC3339
}

// AlertsResponse is the payload for GET /api/v1/alerts and the websocket feed.
type AlertsResponse struct {
	Alerts      []AlertResponse `json:"alerts"`
	FiringCount int             `json:"firing_count"`
	GeneratedAt string          `json:"generated_at"` // RFC3339
}

// ActionGroup names one action group of the alert type.
type ActionGroup struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AlertTypeResponse is the payload for GET /api/v1/alert-type.
type AlertTypeResponse struct {
	ID                   string                  `json:"id"`
	Name                 string                  `json:"name"`
	Throttle             string                  `json:"throttle"`
	ActionGroups         []ActionGroup           `json:"action_groups"`
	DefaultActionGroupID string                  `json:"default_action_group_id"`
	ActionVariables      []alerts.ActionVariable `json:"action_variables"`
}

// CycleResponse is the payload for POST /api/v1/alerts/_execute.
type CycleResponse struct {
	StartedAt    string `json:"started_at"`  // RFC3339
	FinishedAt   string `json:"finished_at"` // RFC3339
	Skipped      bool   `json:"skipped"`
	Clusters     int    `json:"clusters"`
	LegacyAlerts int    `json:"legacy_alerts"`
	Updated      int    `json:"updated"`
	Firing       int    `json:"firing"`
	Actions      int    `json:"actions"`
	Error        string `json:"error,omitempty"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
