package types

// Severity is the UI severity of an alert state.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

// UIState is what the UI needs to render one cluster's alert.
// All times are unix milliseconds; zero means "never".
type UIState struct {
	IsFiring      bool     `json:"isFiring"`
	Message       *Message `json:"message"`
	Severity      Severity `json:"severity"`
	ResolvedMS    int64    `json:"resolvedMS"`
	TriggeredMS   int64    `json:"triggeredMS"`
	LastCheckedMS int64    `json:"lastCheckedMS"`
}

// AlertState is the evaluated state of the alert for one cluster.
type AlertState struct {
	Cluster Cluster `json:"cluster"`
	CCS     string  `json:"ccs,omitempty"`
	UI      UIState `json:"ui"`
}

// InstanceState is persisted per alert instance between cycles.
// It is always replaced as a whole, never patched.
type InstanceState struct {
	AlertStates []AlertState `json:"alertStates"`
}

// Firing reports whether any alert state in the instance is firing.
func (s InstanceState) Firing() bool {
	for _, as := range s.AlertStates {
		if as.UI.IsFiring {
			return true
		}
	}
	return false
}
