package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	p := writeConfig(t, `monitoring: {}
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	m := cfg.Monitoring
	if m.HTTPPort != DefaultHTTPPort {
		t.Errorf("http_port: got %d, want %d", m.HTTPPort, DefaultHTTPPort)
	}
	if m.GRPCPort != DefaultGRPCPort {
		t.Errorf("grpc_port: got %d, want %d", m.GRPCPort, DefaultGRPCPort)
	}
	if !m.UI.ShowLicenseExpiration {
		t.Error("ui.show_license_expiration: got false, want true")
	}
	if m.UI.Metricbeat.Index != DefaultMetricbeatIdx {
		t.Errorf("ui.metricbeat.index: got %q, want %q", m.UI.Metricbeat.Index, DefaultMetricbeatIdx)
	}
	if m.Alerts.Interval != DefaultInterval {
		t.Errorf("alerts.interval: got %v, want %v", m.Alerts.Interval, DefaultInterval)
	}
	if m.Alerts.Throttle != DefaultThrottle {
		t.Errorf("alerts.throttle: got %v, want %v", m.Alerts.Throttle, DefaultThrottle)
	}
	if m.State.Backend != DefaultStateBackend {
		t.Errorf("state.backend: got %q, want %q", m.State.Backend, DefaultStateBackend)
	}
}

func TestLoad_Full(t *testing.T) {
	p := writeConfig(t, `monitoring:
  http_port: 9200
  grpc_port: 0
  kibana_url: http://kibana:5601
  ui:
    show_license_expiration: false
    ccs:
      enabled: true
    container:
      elasticsearch:
        enabled: true
    metricbeat:
      index: metricbeat-8*
  elasticsearch:
    hosts: [http://es1:9200, http://es2:9200]
    auth:
      mode: basic
      username: elastic
      password_env: ES_PASS
  alerts:
    interval: 30s
    throttle: 1h
    timezone: Europe/Paris
    absolute_links: true
    connectors:
      - type: slack
        url_env: SLACK_URL
      - type: sms
        account_sid: AC123
        token_env: TWILIO_TOKEN
        from: "+100"
        to: ["+200"]
  state:
    backend: file
    path: /tmp/state.json
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	m := cfg.Monitoring
	if m.UI.ShowLicenseExpiration {
		t.Error("ui.show_license_expiration: got true, want false")
	}
	if !m.UI.CCS.Enabled || !m.UI.Container.Elasticsearch.Enabled {
		t.Error("ui.ccs / ui.container flags not parsed")
	}
	if m.UI.Metricbeat.Index != "metricbeat-8*" {
		t.Errorf("metricbeat.index: got %q", m.UI.Metricbeat.Index)
	}
	if len(m.Elasticsearch.Hosts) != 2 {
		t.Errorf("elasticsearch.hosts: got %d, want 2", len(m.Elasticsearch.Hosts))
	}
	if m.Alerts.Interval != 30*time.Second || m.Alerts.Throttle != time.Hour {
		t.Errorf("alerts timing: got %v/%v", m.Alerts.Interval, m.Alerts.Throttle)
	}
	if m.Alerts.Location().String() != "Europe/Paris" {
		t.Errorf("Location: got %v", m.Alerts.Location())
	}
	if len(m.Alerts.Connectors) != 2 || m.Alerts.Connectors[1].To[0] != "+200" {
		t.Errorf("connectors: got %+v", m.Alerts.Connectors)
	}
	if m.State.Path != "/tmp/state.json" {
		t.Errorf("state.path: got %q", m.State.Path)
	}
}

func TestLoad_EnvResolution(t *testing.T) {
	t.Setenv("TEST_ES_PASS", "changeme")
	t.Setenv("TEST_HOOK", "http://hooks/x")
	p := writeConfig(t, `monitoring:
  elasticsearch:
    auth: {mode: basic, username: elastic, password_env: TEST_ES_PASS}
  alerts:
    connectors: [{type: http, url_env: TEST_HOOK}]
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Monitoring.Elasticsearch.Auth.Password(); got != "changeme" {
		t.Errorf("Password(): got %q, want changeme", got)
	}
	if got := cfg.Monitoring.Alerts.Connectors[0].URL(); got != "http://hooks/x" {
		t.Errorf("URL(): got %q", got)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"auth mode", "monitoring:\n  auth: {mode: oauth2}\n"},
		{"http port", "monitoring:\n  http_port: 70000\n"},
		{"interval", "monitoring:\n  alerts: {interval: 0s}\n"},
		{"timezone", "monitoring:\n  alerts: {timezone: Mars/Olympus}\n"},
		{"connector type", "monitoring:\n  alerts:\n    connectors: [{type: pager}]\n"},
		{"connector url", "monitoring:\n  alerts:\n    connectors: [{type: slack}]\n"},
		{"sms fields", "monitoring:\n  alerts:\n    connectors: [{type: sms, account_sid: AC1}]\n"},
		{"file backend", "monitoring:\n  state: {backend: file}\n"},
		{"postgres backend", "monitoring:\n  state: {backend: postgres}\n"},
		{"unknown backend", "monitoring:\n  state: {backend: redis}\n"},
		{"client auth", "monitoring:\n  elasticsearch:\n    auth: {mode: kerberos}\n"},
		{"no hosts", "monitoring:\n  elasticsearch:\n    hosts: []\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.yaml)); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestEffectiveHeader(t *testing.T) {
	if h := (AuthConfig{}).EffectiveHeader(); h != "x-api-key" {
		t.Errorf("default: got %q, want x-api-key", h)
	}
	if h := (AuthConfig{Header: "x-lw-key"}).EffectiveHeader(); h != "x-lw-key" {
		t.Errorf("custom: got %q, want x-lw-key", h)
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	p := writeConfig(t, "monitoring:\n  ui: {show_license_expiration: true}\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	go Watch(ctx, p, func(c *Config) { got <- c }) //nolint:errcheck

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(p, []byte("monitoring:\n  ui: {show_license_expiration: false}\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	// A truncating write can surface an intermediate empty file first, so
	// wait for the reload that carries the new value.
	deadline := time.After(3 * time.Second)
	for {
		select {
		case c := <-got:
			if !c.Monitoring.UI.ShowLicenseExpiration {
				return
			}
		case <-deadline:
			t.Fatal("no reload with show_license_expiration=false within 3s")
		}
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "..", "config.example.yaml"))
	if err != nil {
		t.Fatalf("Load example: %v", err)
	}
	m := cfg.Monitoring
	if m.State.Backend != "file" || m.State.Path == "" {
		t.Errorf("state: got %+v", m.State)
	}
	if len(m.Alerts.Connectors) != 2 {
		t.Fatalf("connectors: got %d, want 2", len(m.Alerts.Connectors))
	}
	if sms := m.Alerts.Connectors[1]; sms.Type != "sms" || len(sms.To) != 1 {
		t.Errorf("sms connector: got %+v", sms)
	}
	if m.Alerts.Throttle != 24*time.Hour {
		t.Errorf("throttle: got %v, want 24h", m.Alerts.Throttle)
	}
}
