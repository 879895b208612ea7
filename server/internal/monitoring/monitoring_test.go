package monitoring

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/buger/jsonparser"
	"github.com/google/go-cmp/cmp"

	"github.com/obsidianstack/licensewatch/pkg/types"
	"github.com/obsidianstack/licensewatch/server/internal/config"
)

type request struct {
	path string
	body []byte
	auth string
}

// esServer answers every _search with resp and records what it was sent.
type esServer struct {
	*httptest.Server
	mu   sync.Mutex
	reqs []request
}

func newESServer(t *testing.T, status int, resp string) *esServer {
	s := &esServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.reqs = append(s.reqs, request{path: r.URL.Path, body: b, auth: r.Header.Get("Authorization")})
		s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, resp)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *esServer) last() request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reqs[len(s.reqs)-1]
}

const clusterHits = `{"hits":{"hits":[
  {"_index":".monitoring-es-7-2024.01.01","_source":{"cluster_uuid":"abc123","cluster_name":"prod"}},
  {"_index":"remote1:.monitoring-es-7-2024.01.01","_source":{"cluster_uuid":"def456","cluster_name":"raw",
    "cluster_settings":{"cluster":{"metadata":{"display_name":"Pretty Name"}}}}},
  {"_index":".monitoring-es-7-2024.01.01","_source":{"cluster_uuid":"abc123","cluster_name":"dup"}},
  {"_index":".monitoring-es-7-2024.01.01","_source":{"cluster_name":"no-uuid"}}
]}}`

func TestFetchClusters_DecodesHits(t *testing.T) {
	srv := newESServer(t, http.StatusOK, clusterHits)
	c := NewWithDoer([]string{srv.URL}, nil, config.UIConfig{})

	got, err := c.FetchClusters(context.Background())
	if err != nil {
		t.Fatalf("FetchClusters: %v", err)
	}
	want := []types.Cluster{
		{ClusterUUID: "abc123", ClusterName: "prod"},
		{ClusterUUID: "def456", ClusterName: "Pretty Name", CCS: "remote1"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("clusters mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchClusters_QueryShape(t *testing.T) {
	srv := newESServer(t, http.StatusOK, `{"hits":{"hits":[]}}`)
	ui := config.UIConfig{Metricbeat: config.MetricbeatConfig{Index: "metricbeat-*"}}
	c := NewWithDoer([]string{srv.URL + "/"}, nil, ui)

	if _, err := c.FetchClusters(context.Background()); err != nil {
		t.Fatalf("FetchClusters: %v", err)
	}
	req := srv.last()
	if req.path != "/.monitoring-es-*,metricbeat-*/_search" {
		t.Errorf("path = %q", req.path)
	}
	if v, _ := jsonparser.GetString(req.body, "collapse", "field"); v != "cluster_uuid" {
		t.Errorf("collapse field = %q, want cluster_uuid", v)
	}
	if v, _ := jsonparser.GetString(req.body, "query", "bool", "filter", "[0]", "term", "type"); v != "cluster_stats" {
		t.Errorf("type filter = %q, want cluster_stats", v)
	}
}

func TestFetchClusters_CCSPattern(t *testing.T) {
	srv := newESServer(t, http.StatusOK, `{"hits":{"hits":[]}}`)
	ui := config.UIConfig{CCS: config.CCSConfig{Enabled: true}}
	c := NewWithDoer([]string{srv.URL}, nil, ui)

	if _, err := c.FetchClusters(context.Background()); err != nil {
		t.Fatalf("FetchClusters: %v", err)
	}
	if got := srv.last().path; got != "/*:.monitoring-es-*,.monitoring-es-*/_search" {
		t.Errorf("path = %q", got)
	}
}

func TestFetchClusters_ErrorStatus(t *testing.T) {
	srv := newESServer(t, http.StatusInternalServerError, `{"error":"boom"}`)
	c := NewWithDoer([]string{srv.URL}, nil, config.UIConfig{})

	_, err := c.FetchClusters(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error %q should mention the status", err)
	}
}

func TestFetchClusters_FailsOverToNextHost(t *testing.T) {
	bad := newESServer(t, http.StatusServiceUnavailable, `{}`)
	good := newESServer(t, http.StatusOK, clusterHits)
	c := NewWithDoer([]string{bad.URL, good.URL}, nil, config.UIConfig{})

	got, err := c.FetchClusters(context.Background())
	if err != nil {
		t.Fatalf("FetchClusters: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("clusters = %d, want 2", len(got))
	}
}

type failingDoer struct{}

func (failingDoer) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func TestFetchClusters_TransportError(t *testing.T) {
	c := NewWithDoer([]string{"http://es:9200"}, failingDoer{}, config.UIConfig{})
	if _, err := c.FetchClusters(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

const legacyHits = `{"hits":{"hits":[
  {"_id":"1","_index":".monitoring-alerts-7","_source":{
    "prefix":"The license for this cluster expires in {{#relativeTime}}metadata.time{{/relativeTime}} at {{#absoluteTime}}metadata.time{{/absoluteTime}}.",
    "message":"Update your license.",
    "timestamp":"2024-01-01T00:00:00Z",
    "metadata":{"severity":1000,"cluster_uuid":"abc123","time":1}}},
  {"_id":"2","_index":".monitoring-alerts-7","_source":{
    "prefix":"p","message":"m","resolved_timestamp":5,"timestamp":1700000000000,
    "metadata":{"severity":2000,"cluster_uuid":"def456"}}}
]}}`

func TestFetchLegacyAlerts_DecodesHits(t *testing.T) {
	srv := newESServer(t, http.StatusOK, legacyHits)
	c := NewWithDoer([]string{srv.URL}, nil, config.UIConfig{})

	got, err := c.FetchLegacyAlerts(context.Background(), []types.Cluster{
		{ClusterUUID: "abc123"}, {ClusterUUID: "def456"},
	})
	if err != nil {
		t.Fatalf("FetchLegacyAlerts: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("alerts = %d, want 2", len(got))
	}

	if got[0].Metadata.ClusterUUID != "abc123" || got[0].Metadata.Time != 1 || got[0].Metadata.Severity != 1000 {
		t.Errorf("alert[0] metadata = %+v", got[0].Metadata)
	}
	if _, resolved := got[0].Resolved(); resolved {
		t.Error("alert[0] should be firing")
	}
	if len(got[0].Raw) == 0 {
		t.Error("alert[0] Raw not kept")
	}

	if got[1].Metadata.Time != 1700000000000 {
		t.Errorf("alert[1] time = %d, want the document timestamp", got[1].Metadata.Time)
	}
	if ts, resolved := got[1].Resolved(); !resolved || ts != 5 {
		t.Errorf("alert[1] Resolved() = %d, %v; want 5, true", ts, resolved)
	}
}

func TestFetchLegacyAlerts_QueryShape(t *testing.T) {
	srv := newESServer(t, http.StatusOK, `{"hits":{"hits":[]}}`)
	c := NewWithDoer([]string{srv.URL}, nil, config.UIConfig{CCS: config.CCSConfig{Enabled: true}})

	if _, err := c.FetchLegacyAlerts(context.Background(), []types.Cluster{{ClusterUUID: "abc123"}}); err != nil {
		t.Fatalf("FetchLegacyAlerts: %v", err)
	}
	req := srv.last()
	if req.path != "/*:.monitoring-alerts-*,.monitoring-alerts-*/_search" {
		t.Errorf("path = %q", req.path)
	}
	if v, _ := jsonparser.GetString(req.body, "query", "bool", "should", "[0]", "term", "metadata.watch"); v != "abc123_xpack_license_expiration" {
		t.Errorf("watch term = %q", v)
	}
	if v, _ := jsonparser.GetString(req.body, "sort", "[0]", "timestamp", "order"); v != "desc" {
		t.Errorf("sort order = %q, want desc", v)
	}
	if v, _ := jsonparser.GetString(req.body, "collapse", "field"); v != "metadata.cluster_uuid" {
		t.Errorf("collapse field = %q", v)
	}
}

func TestFetchLegacyAlerts_NoClustersSkipsSearch(t *testing.T) {
	c := NewWithDoer([]string{"http://es:9200"}, failingDoer{}, config.UIConfig{})
	got, err := c.FetchLegacyAlerts(context.Background(), nil)
	if err != nil || got != nil {
		t.Errorf("got %v, %v; want nil, nil", got, err)
	}
}

func TestAuthRoundTripper(t *testing.T) {
	t.Setenv("TEST_ES_PASSWORD", "changeme")
	t.Setenv("TEST_ES_KEY", "k1")
	t.Setenv("TEST_ES_TOKEN", "tok")

	cases := []struct {
		name string
		auth config.ClientAuth
		want string
	}{
		{"basic", config.ClientAuth{Mode: "basic", Username: "elastic", PasswordEnv: "TEST_ES_PASSWORD"}, "Basic ZWxhc3RpYzpjaGFuZ2VtZQ=="},
		{"apikey", config.ClientAuth{Mode: "apikey", KeyEnv: "TEST_ES_KEY"}, "ApiKey k1"},
		{"bearer", config.ClientAuth{Mode: "bearer", TokenEnv: "TEST_ES_TOKEN"}, "Bearer tok"},
		{"none", config.ClientAuth{Mode: "none"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newESServer(t, http.StatusOK, `{"hits":{"hits":[]}}`)
			c := NewWithDoer([]string{srv.URL}, newHTTPClient(tc.auth, config.TLSConfig{}, time.Second), config.UIConfig{})
			if _, err := c.FetchClusters(context.Background()); err != nil {
				t.Fatalf("FetchClusters: %v", err)
			}
			if got := srv.last().auth; got != tc.want {
				t.Errorf("Authorization = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestIndexPattern(t *testing.T) {
	cases := []struct {
		ccs      bool
		patterns []string
		want     string
	}{
		{false, []string{".monitoring-es-*"}, ".monitoring-es-*"},
		{false, []string{".monitoring-es-*", ""}, ".monitoring-es-*"},
		{true, []string{".monitoring-alerts-*"}, "*:.monitoring-alerts-*,.monitoring-alerts-*"},
		{true, []string{".monitoring-es-*", "metricbeat-*"}, "*:.monitoring-es-*,.monitoring-es-*,*:metricbeat-*,metricbeat-*"},
	}
	for _, c := range cases {
		if got := indexPattern(c.ccs, c.patterns...); got != c.want {
			t.Errorf("indexPattern(%v, %v) = %q, want %q", c.ccs, c.patterns, got, c.want)
		}
	}
}

const exporterMetrics = `# HELP elasticsearch_clusterinfo_version_info Constant metric with ES version information as labels
# TYPE elasticsearch_clusterinfo_version_info gauge
elasticsearch_clusterinfo_version_info{build_date="2024-01-01",build_hash="x",cluster="prod",cluster_uuid="abc123",version="8.12.0"} 1
elasticsearch_clusterinfo_version_info{build_date="2024-01-01",build_hash="x",cluster="staging",cluster_uuid="def456",version="8.12.0"} 1
# HELP elasticsearch_cluster_health_up Was the last scrape successful.
# TYPE elasticsearch_cluster_health_up gauge
elasticsearch_cluster_health_up 1
`

func TestExporterClusters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, exporterMetrics)
	}))
	defer srv.Close()

	got, err := NewExporterClustersWithDoer(srv.URL+"/metrics", nil).FetchClusters(context.Background())
	if err != nil {
		t.Fatalf("FetchClusters: %v", err)
	}
	want := []types.Cluster{
		{ClusterUUID: "abc123", ClusterName: "prod"},
		{ClusterUUID: "def456", ClusterName: "staging"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("clusters mismatch (-want +got):\n%s", diff)
	}
}

func TestExporterClusters_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := NewExporterClustersWithDoer(srv.URL, nil).FetchClusters(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
