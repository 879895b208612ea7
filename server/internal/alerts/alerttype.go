package alerts

import "time"

// Alert type definition.
const (
	AlertTypeID     = "monitoring_alert_license_expiration"
	AlertTypeLabel  = "License expiration"
	DefaultThrottle = 24 * time.Hour

	// ActionGroupDefault is the only action group this alert schedules into.
	ActionGroupDefault = "default"
)

// ActionVariable documents one field of ActionContext for connector templates.
type ActionVariable struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ActionVariables lists the variables available to actions, in display order.
var ActionVariables = []ActionVariable{
	{Name: "expiredDate", Description: "The date when the license expires."},
	{Name: "clusterName", Description: "The cluster to which the license belong."},
	{Name: "internalShortMessage", Description: "The short internal message generated by Elastic."},
	{Name: "internalFullMessage", Description: "The full internal message generated by Elastic."},
	{Name: "state", Description: "The current state of the alert."},
	{Name: "action", Description: "The recommended action for this alert."},
	{Name: "actionPlain", Description: "The recommended action for this alert, without any markdown."},
}

// ActionContext is the payload handed to connectors when an action is scheduled.
// Firing actions carry the action link fields; resolved actions leave them empty.
type ActionContext struct {
	InternalShortMessage string `json:"internalShortMessage"`
	InternalFullMessage  string `json:"internalFullMessage"`
	State                string `json:"state"`
	ClusterName          string `json:"clusterName"`
	ExpiredDate          string `json:"expiredDate"`
	Action               string `json:"action,omitempty"`
	ActionPlain          string `json:"actionPlain,omitempty"`
}

// Alert states carried in ActionContext.State.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// InstanceID returns the alert instance id owning a cluster's state.
func InstanceID(clusterUUID string) string {
	return AlertTypeID + ":" + clusterUUID
}
