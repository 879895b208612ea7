package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/obsidianstack/licensewatch/server/internal/alerts"
	"github.com/obsidianstack/licensewatch/server/internal/store"
)

// Runner runs evaluation cycles. *alerts.Engine satisfies it.
type Runner interface {
	Execute(ctx context.Context) (alerts.CycleReport, error)
	LastCycle() alerts.CycleReport
}

// ActionLister exposes recently scheduled actions. *alerts.Dispatcher satisfies it.
type ActionLister interface {
	Recent() []alerts.Action
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	store   *store.Store
	runner  Runner
	actions ActionLister
	mux     *http.ServeMux
	now     func() time.Time
}

// New creates a Handler and registers all routes. actions may be nil.
func New(st *store.Store, runner Runner, actions ActionLister) http.Handler {
	h := &Handler{
		store:   st,
		runner:  runner,
		actions: actions,
		mux:     http.NewServeMux(),
		now:     time.Now,
	}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)
	h.mux.HandleFunc("/api/v1/alerts/", h.alertSubtree) // {clusterUuid} or _execute
	h.mux.HandleFunc("/api/v1/alert-type", h.alertType)
	h.mux.HandleFunc("/api/v1/actions", h.recentActions)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	last := h.runner.LastCycle()
	resp := HealthResponse{
		ClusterCount:  last.Clusters,
		InstanceCount: h.store.Count(),
		FiringCount:   h.store.FiringCount(),
		Skipped:       last.Skipped,
	}
	switch {
	case last.StartedAt.IsZero():
		resp.State = "unknown"
	case last.Err != nil:
		resp.State = "error"
		resp.LastCycleError = last.Err.Error()
	case resp.FiringCount > 0:
		resp.State = "firing"
	default:
		resp.State = "ok"
	}
	if !last.StartedAt.IsZero() {
		resp.LastCycleAt = last.StartedAt.UTC().Format(time.RFC3339)
	}
	jsonResp(w, http.StatusOK, resp)
}

func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, BuildAlerts(h.store, h.now()))
}

func (h *Handler) alertSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/alerts/")
	switch rest {
	case "":
		h.listAlerts(w, r)
	case "_execute":
		h.execute(w, r)
	default:
		h.getAlert(w, r, rest)
	}
}

func (h *Handler) getAlert(w http.ResponseWriter, r *http.Request, clusterUUID string) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := alerts.InstanceID(clusterUUID)
	st, ok := h.store.Get(id)
	if !ok {
		jsonErr(w, http.StatusNotFound, "cluster not found")
		return
	}
	var updatedAt time.Time
	for _, e := range h.store.List() {
		if e.InstanceID == id {
			updatedAt = e.UpdatedAt
			break
		}
	}

	now := h.now()
	for _, as := range st.AlertStates {
		if as.Cluster.ClusterUUID == clusterUUID {
			jsonResp(w, http.StatusOK, toAlertResponse(id, as, updatedAt, now))
			return
		}
	}
	jsonErr(w, http.StatusNotFound, "cluster not found")
}

func (h *Handler) execute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rep, err := h.runner.Execute(r.Context())
	resp := toCycleResponse(rep)
	if err != nil {
		resp.Error = err.Error()
		jsonResp(w, http.StatusBadGateway, resp)
		return
	}
	jsonResp(w, http.StatusOK, resp)
}

func (h *Handler) alertType(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, AlertTypeResponse{
		ID:                   alerts.AlertTypeID,
		Name:                 alerts.AlertTypeLabel,
		Throttle:             "1d",
		ActionGroups:         []ActionGroup{{ID: alerts.ActionGroupDefault, Name: "Default"}},
		DefaultActionGroupID: alerts.ActionGroupDefault,
		ActionVariables:      alerts.ActionVariables,
	})
}

func (h *Handler) recentActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	out := []alerts.Action{}
	if h.actions != nil {
		if recent := h.actions.Recent(); len(recent) > 0 {
			out = recent
		}
	}
	jsonResp(w, http.StatusOK, out)
}

// --- helpers ----------------------------------------------------------------

// BuildAlerts flattens the store into the alerts payload, ordered by instance id.
func BuildAlerts(st *store.Store, now time.Time) AlertsResponse {
	entries := st.List()
	resp := AlertsResponse{
		Alerts:      make([]AlertResponse, 0, len(entries)),
		GeneratedAt: now.UTC().Format(time.RFC3339),
	}
	for _, e := range entries {
		for _, as := range e.State.AlertStates {
			resp.Alerts = append(resp.Alerts, toAlertResponse(e.InstanceID, as, e.UpdatedAt, now))
			if as.UI.IsFiring {
				resp.FiringCount++
			}
		}
	}
	return resp
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

func toCycleResponse(rep alerts.CycleReport) CycleResponse {
	return CycleResponse{
		StartedAt:    rep.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt:   rep.FinishedAt.UTC().Format(time.RFC3339),
		Skipped:      rep.Skipped,
		Clusters:     rep.Clusters,
		LegacyAlerts: rep.LegacyAlerts,
		Updated:      rep.Updated,
		Firing:       rep.Firing,
		Actions:      rep.Actions,
	}
}
