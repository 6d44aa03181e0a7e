// ABOUTME: HTTP status API: liveness, readiness, scheduler status and mirrored sets
// ABOUTME: /api routes require a bearer token when auth.jwt_secret is set

package agent

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/2389/coven-bdi/internal/auth"
	"github.com/2389/coven-bdi/internal/bdi"
	"github.com/2389/coven-bdi/internal/mirror"
	"github.com/2389/coven-bdi/internal/planlib"
	"github.com/2389/coven-bdi/internal/scheduler"
)

// StatusResponse is the JSON body of GET /api/status.
type StatusResponse struct {
	AgentID   string               `json:"agent_id"`
	Group     string               `json:"group"`
	Ready     bool                 `json:"ready"`
	Uptime    string               `json:"uptime"`
	Mirror    mirror.Stats         `json:"mirror"`
	Scheduler scheduler.Status     `json:"scheduler"`
	Running   string               `json:"running_plan,omitempty"`
	Searches  int                  `json:"active_searches"`
	Library   *planlib.WriterStats `json:"plan_library,omitempty"`
	Actions   []string             `json:"actions"`
	Peers     []string             `json:"peers"`
}

func (a *Agent) routes(verifier auth.TokenVerifier) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// Health endpoints - no auth required
	r.Get("/health", a.handleHealth)
	r.Get("/health/ready", a.handleReady)

	r.Route("/api", func(r chi.Router) {
		if verifier != nil {
			r.Use(auth.HTTPAuthMiddleware(verifier))
			a.logger.Info("HTTP auth middleware enabled")
		} else {
			a.logger.Warn("HTTP auth disabled - no jwt_secret configured")
		}
		r.Get("/status", a.handleStatus)
		r.Get("/beliefs", a.handleBeliefs)
		r.Get("/desires", a.handleDesires)
	})
	return r
}

// handleHealth returns 200 OK if the server is alive.
func (a *Agent) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK once both sets have been mirrored.
func (a *Agent) handleReady(w http.ResponseWriter, r *http.Request) {
	if !a.mirror.Synced() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("waiting for belief and desire snapshots"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Status returns a point-in-time view of the agent.
func (a *Agent) Status() StatusResponse {
	st := StatusResponse{
		AgentID:   a.cfg.Agent.ID,
		Group:     a.cfg.Agent.Group,
		Ready:     a.mirror.Synced(),
		Mirror:    a.mirror.Stats(),
		Scheduler: a.scheduler.Status(),
		Searches:  a.planner.Active(),
		Actions:   a.executor.Actions(),
		Peers:     a.peers.Peers(),
	}
	if !a.started.IsZero() {
		st.Uptime = time.Since(a.started).Truncate(time.Second).String()
	}
	if id, ok := a.executor.Running(); ok {
		st.Running = id
	}
	if a.writer != nil {
		ws := a.writer.Stats()
		st.Library = &ws
	}
	return st
}

func (a *Agent) handleStatus(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, a.Status())
}

func (a *Agent) handleBeliefs(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, bdi.BeliefSetSnapshot{
		AgentID: a.cfg.Agent.ID,
		Beliefs: a.mirror.Beliefs().List(),
	})
}

func (a *Agent) handleDesires(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, bdi.DesireSetSnapshot{
		AgentID: a.cfg.Agent.ID,
		Desires: a.mirror.Desires().ByPriority(),
	})
}

func (a *Agent) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("failed to encode response", "error", err)
	}
}
