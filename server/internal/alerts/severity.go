package alerts

import "github.com/obsidianstack/licensewatch/pkg/types"

// MapLegacySeverity maps the legacy watch severity scale to a UI severity.
// Everything below 2000 is a warning; 2000 and above is danger.
func MapLegacySeverity(severity int) types.Severity {
	if severity/1000 <= 1 {
		return types.SeverityWarning
	}
	return types.SeverityDanger
}
