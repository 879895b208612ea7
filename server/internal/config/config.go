package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the service configuration.
const (
	DefaultHTTPPort      = 8080
	DefaultGRPCPort      = 9090
	DefaultInterval      = time.Minute
	DefaultThrottle      = 24 * time.Hour
	DefaultDateFormat    = "Jan 2, 2006 15:04:05"
	DefaultTimezone      = "UTC"
	DefaultStateBackend  = "memory"
	DefaultMetricbeatIdx = "metricbeat-*"
)

// Config is the top-level configuration parsed from the `monitoring:` section
// of config.yaml.
type Config struct {
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// MonitoringConfig holds all service settings.
type MonitoringConfig struct {
	// HTTPPort serves the REST API, the websocket hub and /metrics (default 8080).
	HTTPPort int `yaml:"http_port"`

	// GRPCPort serves the grpc.health.v1 probe (default 9090). Zero disables it.
	GRPCPort int `yaml:"grpc_port"`

	// KibanaURL is the base URL used to build absolute action links.
	KibanaURL string `yaml:"kibana_url"`

	Auth          AuthConfig          `yaml:"auth"`
	UI            UIConfig            `yaml:"ui"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Exporter      ExporterConfig      `yaml:"exporter"`
	Alerts        AlertsConfig        `yaml:"alerts"`
	State         StateConfig         `yaml:"state"`
	Log           LogConfig           `yaml:"log"`
}

// UIConfig mirrors the monitoring UI flags consumed by the alert.
type UIConfig struct {
	// ShowLicenseExpiration gates the whole license expiration alert.
	ShowLicenseExpiration bool `yaml:"show_license_expiration"`

	CCS        CCSConfig        `yaml:"ccs"`
	Container  ContainerConfig  `yaml:"container"`
	Metricbeat MetricbeatConfig `yaml:"metricbeat"`
}

// CCSConfig toggles cross-cluster search index patterns.
type CCSConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ContainerConfig describes container-aware UI settings. Passed through only.
type ContainerConfig struct {
	Elasticsearch struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"elasticsearch"`
}

// MetricbeatConfig names the metricbeat index pattern searched alongside
// the legacy monitoring indices.
type MetricbeatConfig struct {
	Index string `yaml:"index"`
}

// ElasticsearchConfig points the fetchers at the monitoring cluster.
type ElasticsearchConfig struct {
	Hosts []string   `yaml:"hosts"`
	Auth  ClientAuth `yaml:"auth"`
	TLS   TLSConfig  `yaml:"tls"`

	// Timeout bounds every search request. Defaults to 10s.
	Timeout time.Duration `yaml:"timeout"`
}

// ExporterConfig optionally sources cluster identities from an
// elasticsearch_exporter /metrics endpoint instead of the monitoring indices.
type ExporterConfig struct {
	Endpoint string     `yaml:"endpoint"`
	Auth     ClientAuth `yaml:"auth"`
	TLS      TLSConfig  `yaml:"tls"`
}

// ClientAuth specifies how outgoing requests authenticate.
type ClientAuth struct {
	// Mode is one of: basic | apikey | bearer | none.
	Mode string `yaml:"mode"`

	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`

	// Header is the HTTP header carrying the key when Mode == "apikey".
	// Defaults to "Authorization" with the "ApiKey " scheme.
	Header string `yaml:"header"`
	KeyEnv string `yaml:"key_env"`

	TokenEnv string `yaml:"token_env"`
}

// Password returns the basic-auth password resolved from the environment.
func (a ClientAuth) Password() string { return env(a.PasswordEnv) }

// Key returns the API key resolved from the environment.
func (a ClientAuth) Key() string { return env(a.KeyEnv) }

// Token returns the bearer token resolved from the environment.
func (a ClientAuth) Token() string { return env(a.TokenEnv) }

// TLSConfig holds TLS dial options.
type TLSConfig struct {
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// AlertsConfig controls the evaluation loop and action delivery.
type AlertsConfig struct {
	// Interval between evaluation cycles (default 1m).
	Interval time.Duration `yaml:"interval"`

	// Throttle suppresses repeated actions of the same state (default 24h).
	Throttle time.Duration `yaml:"throttle"`

	// DateFormat is a Go time layout used for the expiredDate variable.
	DateFormat string `yaml:"date_format"`

	// Timezone is an IANA zone name used for the expiredDate variable.
	Timezone string `yaml:"timezone"`

	// AbsoluteLinks prefixes action links with KibanaURL.
	AbsoluteLinks bool `yaml:"absolute_links"`

	Connectors []ConnectorConfig `yaml:"connectors"`
}

// ConnectorConfig defines one action delivery target.
type ConnectorConfig struct {
	// Type is one of: slack | teams | http | sms.
	Type string `yaml:"type"`

	// URLEnv names the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`

	// SMS settings, used when Type == "sms".
	AccountSID string   `yaml:"account_sid"`
	TokenEnv   string   `yaml:"token_env"`
	From       string   `yaml:"from"`
	To         []string `yaml:"to"`
	BaseURL    string   `yaml:"base_url"`
}

// URL returns the webhook URL resolved from the environment.
func (c ConnectorConfig) URL() string { return env(c.URLEnv) }

// Token returns the SMS auth token resolved from the environment.
func (c ConnectorConfig) Token() string { return env(c.TokenEnv) }

// StateConfig selects where alert instance state is persisted.
type StateConfig struct {
	// Backend is one of: memory | file | postgres.
	Backend string `yaml:"backend"`

	// Path is the JSON file used by the file backend.
	Path string `yaml:"path"`

	// DSNEnv names the environment variable holding the postgres DSN.
	DSNEnv string `yaml:"dsn_env"`
}

// DSN returns the postgres connection string resolved from the environment.
func (s StateConfig) DSN() string { return env(s.DSNEnv) }

// AuthConfig controls authentication of incoming REST and gRPC calls.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv names the environment variable holding the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header / gRPC metadata key. Defaults to "x-api-key".
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string { return env(a.KeyEnv) }

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// LogConfig configures the process logger.
type LogConfig struct {
	Output   string `yaml:"output"` // stdout | stderr | file
	Format   string `yaml:"format"` // json | text
	Level    string `yaml:"level"`
	Filename string `yaml:"filename"`
}

// Load reads and parses the config file at path.
// Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Location returns the configured timezone, falling back to UTC.
func (a AlertsConfig) Location() *time.Location {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Monitoring: MonitoringConfig{
			HTTPPort: DefaultHTTPPort,
			GRPCPort: DefaultGRPCPort,
			UI: UIConfig{
				ShowLicenseExpiration: true,
				Metricbeat:            MetricbeatConfig{Index: DefaultMetricbeatIdx},
			},
			Elasticsearch: ElasticsearchConfig{
				Hosts:   []string{"http://localhost:9200"},
				Timeout: 10 * time.Second,
			},
			Alerts: AlertsConfig{
				Interval:   DefaultInterval,
				Throttle:   DefaultThrottle,
				DateFormat: DefaultDateFormat,
				Timezone:   DefaultTimezone,
			},
			State: StateConfig{Backend: DefaultStateBackend},
			Log:   LogConfig{Output: "stdout", Format: "json", Level: "info"},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	m := cfg.Monitoring
	if m.HTTPPort <= 0 || m.HTTPPort > 65535 {
		return fmt.Errorf("monitoring.http_port %d is out of range [1, 65535]", m.HTTPPort)
	}
	if m.GRPCPort < 0 || m.GRPCPort > 65535 {
		return fmt.Errorf("monitoring.grpc_port %d is out of range [0, 65535]", m.GRPCPort)
	}
	switch m.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("monitoring.auth.mode %q unknown: want apikey|none", m.Auth.Mode)
	}
	if len(m.Elasticsearch.Hosts) == 0 {
		return fmt.Errorf("monitoring.elasticsearch.hosts must not be empty")
	}
	for _, a := range []ClientAuth{m.Elasticsearch.Auth, m.Exporter.Auth} {
		switch a.Mode {
		case "basic", "apikey", "bearer", "none", "":
		default:
			return fmt.Errorf("client auth mode %q unknown: want basic|apikey|bearer|none", a.Mode)
		}
	}
	if m.Alerts.Interval <= 0 {
		return fmt.Errorf("monitoring.alerts.interval must be positive")
	}
	if m.Alerts.Throttle < 0 {
		return fmt.Errorf("monitoring.alerts.throttle must not be negative")
	}
	if _, err := time.LoadLocation(m.Alerts.Timezone); err != nil {
		return fmt.Errorf("monitoring.alerts.timezone %q: %w", m.Alerts.Timezone, err)
	}
	for i, c := range m.Alerts.Connectors {
		switch c.Type {
		case "slack", "teams", "http":
			if c.URLEnv == "" {
				return fmt.Errorf("monitoring.alerts.connectors[%d]: url_env is required for %s", i, c.Type)
			}
		case "sms":
			if c.AccountSID == "" || c.From == "" || len(c.To) == 0 {
				return fmt.Errorf("monitoring.alerts.connectors[%d]: sms needs account_sid, from and to", i)
			}
		default:
			return fmt.Errorf("monitoring.alerts.connectors[%d]: unknown type %q", i, c.Type)
		}
	}
	switch m.State.Backend {
	case "memory", "":
	case "file":
		if m.State.Path == "" {
			return fmt.Errorf("monitoring.state.path is required for the file backend")
		}
	case "postgres":
		if m.State.DSNEnv == "" {
			return fmt.Errorf("monitoring.state.dsn_env is required for the postgres backend")
		}
	default:
		return fmt.Errorf("monitoring.state.backend %q unknown: want memory|file|postgres", m.State.Backend)
	}
	return nil
}

func env(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
