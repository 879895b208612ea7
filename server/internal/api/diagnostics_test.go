package api

import (
	"testing"
	"time"

	"github.com/obsidianstack/licensewatch/pkg/types"
)

var now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func firingAt(expires time.Time) types.AlertState {
	return types.AlertState{
		Cluster: types.Cluster{ClusterUUID: "abc", ClusterName: "prod"},
		UI: types.UIState{
			IsFiring:      true,
			TriggeredMS:   expires.UnixMilli(),
			LastCheckedMS: now.UnixMilli(),
		},
	}
}

func TestExpiryLevels(t *testing.T) {
	cases := []struct {
		name  string
		in    time.Duration
		level string
		title string
	}{
		{"expired", -time.Hour, "critical", "License expired"},
		{"days", 3 * 24 * time.Hour, "critical", "Expires in 3 days"},
		{"weeks", 20 * 24 * time.Hour, "warning", "Expires in 20 days"},
		{"months", 60 * 24 * time.Hour, "info", "Expires in 60 days"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hints := computeDiagnostics(firingAt(now.Add(tc.in)), now)
			if len(hints) != 1 {
				t.Fatalf("hints: got %d, want 1 (%+v)", len(hints), hints)
			}
			if hints[0].Level != tc.level || hints[0].Title != tc.title {
				t.Errorf("got %s/%q, want %s/%q", hints[0].Level, hints[0].Title, tc.level, tc.title)
			}
		})
	}
}

func TestResolvedHint(t *testing.T) {
	as := types.AlertState{
		Cluster: types.Cluster{ClusterUUID: "abc"},
		UI:      types.UIState{ResolvedMS: now.UnixMilli(), LastCheckedMS: now.UnixMilli()},
	}
	hints := computeDiagnostics(as, now)
	if len(hints) != 1 || hints[0].Key != "resolved" || hints[0].Level != "ok" {
		t.Errorf("hints = %+v", hints)
	}
}

func TestStaleAndCCSOrdering(t *testing.T) {
	as := firingAt(now.Add(60 * 24 * time.Hour))
	as.UI.LastCheckedMS = now.Add(-5 * 24 * time.Hour).UnixMilli()
	as.CCS = "remote1"

	hints := computeDiagnostics(as, now)
	var keys []string
	for _, h := range hints {
		keys = append(keys, h.Key)
	}
	want := []string{"stale", "license_expiry", "ccs"}
	if len(keys) != len(want) {
		t.Fatalf("keys: got %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys: got %v, want %v", keys, want)
			break
		}
	}
}
