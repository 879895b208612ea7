package types

import "encoding/json"

// LegacyAlert is one pre-computed alert record produced by the legacy
// monitoring watches. It is either firing or resolved.
type LegacyAlert struct {
	Prefix   string         `json:"prefix"`
	Message  string         `json:"message"`
	Metadata LegacyMetadata `json:"metadata"`

	// ResolvedTimestamp is where older watches put the resolution time.
	ResolvedTimestamp *int64 `json:"resolved_timestamp,omitempty"`

	// Raw is the source document the record was decoded from, if any.
	// Template paths are resolved against it.
	Raw json.RawMessage `json:"-"`
}

// LegacyMetadata carries the structured part of a legacy alert record.
type LegacyMetadata struct {
	Severity          int    `json:"severity"`
	ClusterUUID       string `json:"cluster_uuid"`
	Time              int64  `json:"time"`
	ResolvedTimestamp *int64 `json:"resolved_timestamp,omitempty"`
	LinkURL           string `json:"link,omitempty"`
}

// Resolved reports the resolution time in unix milliseconds and whether the
// record is resolved at all. The metadata field takes precedence.
func (a LegacyAlert) Resolved() (int64, bool) {
	if a.Metadata.ResolvedTimestamp != nil {
		return *a.Metadata.ResolvedTimestamp, true
	}
	if a.ResolvedTimestamp != nil {
		return *a.ResolvedTimestamp, true
	}
	return 0, false
}
