package monitoring

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/obsidianstack/licensewatch/server/internal/config"
)

const defaultTimeout = 10 * time.Second

// Doer sends HTTP requests. *http.Client satisfies it; tests substitute their own.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client searches the monitoring cluster.
type Client struct {
	hosts           []string
	doer            Doer
	ccs             bool
	metricbeatIndex string
}

// New builds a Client for the configured monitoring cluster.
func New(es config.ElasticsearchConfig, ui config.UIConfig) *Client {
	timeout := es.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return NewWithDoer(es.Hosts, newHTTPClient(es.Auth, es.TLS, timeout), ui)
}

// NewWithDoer builds a Client that sends requests through d.
func NewWithDoer(hosts []string, d Doer, ui config.UIConfig) *Client {
	if d == nil {
		d = http.DefaultClient
	}
	return &Client{
		hosts:           hosts,
		doer:            d,
		ccs:             ui.CCS.Enabled,
		metricbeatIndex: ui.Metricbeat.Index,
	}
}

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.ClientAuth
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.auth.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		if t.auth.Header != "" {
			req.Header.Set(t.auth.Header, t.auth.Key())
		} else {
			req.Header.Set("Authorization", "ApiKey "+t.auth.Key())
		}
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.auth.Username, t.auth.Password())
	}
	return t.base.RoundTrip(req)
}

// newHTTPClient constructs an http.Client for the given auth and TLS settings.
func newHTTPClient(auth config.ClientAuth, tlsCfg config.TLSConfig, timeout time.Duration) *http.Client {
	transport := &authRoundTripper{
		base: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: tlsCfg.InsecureSkipVerify, //nolint:gosec // user-configured
			},
		},
		auth: auth,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// search posts body to <host>/<index>/_search and returns the raw response.
// Hosts are tried in order; the first one that answers 200 wins.
func (c *Client) search(ctx context.Context, index string, body interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	if len(c.hosts) == 0 {
		return nil, fmt.Errorf("no elasticsearch hosts configured")
	}

	var lastErr error
	for _, host := range c.hosts {
		url := strings.TrimRight(host, "/") + "/" + index + "/_search"
		out, err := c.post(ctx, url, payload)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("monitoring: search failed, trying next host", "host", host, "err", err)
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) post(ctx context.Context, url string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(data, 256))
	}
	return data, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return strings.TrimSpace(string(b))
}
