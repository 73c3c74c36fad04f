// Package dashboard serves the HTTP status surface: an HTML panel, JSON
// status endpoints, Prometheus metrics, and a couple of admin triggers.
// All read paths work off state snapshots and store reads and never block
// on tracker internals.
package dashboard

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"time"

	"github.com/aatumaykin/doorman/internal/logger"
	"github.com/aatumaykin/doorman/internal/store"
	"github.com/aatumaykin/doorman/internal/tracker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
)

//go:embed index.html
var templatesFS embed.FS

// recentExpulsionsShown bounds the history slice on the HTML panel.
const recentExpulsionsShown = 20

// StoreReader is the read-only store surface the dashboard needs.
type StoreReader interface {
	ListMembers() ([]store.TrackedMember, error)
	RecentExpulsions(limit int) ([]store.ExpulsionRecord, error)
}

// SweepRunner triggers one sweep cycle. RunOnce returns false when a sweep
// is already in progress.
type SweepRunner interface {
	RunOnce(ctx context.Context) bool
}

// TransportSwitcher reconfigures the update transport at runtime.
type TransportSwitcher interface {
	Reconfigure(mode string) error
	TransportMode() string
}

// Config holds the dashboard server settings.
type Config struct {
	Addr             string
	TimeLimitSeconds int
}

// Server is the HTTP status server.
type Server struct {
	cfg       Config
	state     *tracker.State
	store     StoreReader
	sweeper   SweepRunner
	transport TransportSwitcher
	gatherer  prometheus.Gatherer
	logger    *logger.Logger

	tmpl   *template.Template
	server *http.Server
}

// roomGroup is one per-room entry in the stats response.
type roomGroup struct {
	ChatID  int64 `json:"chat_id"`
	Members int   `json:"members"`
}

// New creates the dashboard server. The sweeper and transport may be nil;
// the corresponding trigger endpoints then report 503.
func New(cfg Config, state *tracker.State, reader StoreReader, sweeper SweepRunner, transport TransportSwitcher, gatherer prometheus.Gatherer, log *logger.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		state:     state,
		store:     reader,
		sweeper:   sweeper,
		transport: transport,
		gatherer:  gatherer,
		logger:    log,
		tmpl:      template.Must(template.ParseFS(templatesFS, "index.html")),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /sweep", s.handleSweep)
	mux.HandleFunc("POST /transport", s.handleTransport)

	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Start begins serving in the background.
func (s *Server) Start() {
	go func() {
		s.logger.Info("dashboard server started",
			logger.Field{Key: "addr", Value: s.cfg.Addr})

		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("dashboard server failed", err)
		}
	}()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping dashboard server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the mux, used by tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

type pageData struct {
	Snapshot         tracker.Snapshot
	Groups           []roomGroup
	RecentExpulsions []store.ExpulsionRecord
	TimeLimitSeconds int
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Snapshot:         s.state.Snapshot(),
		Groups:           s.roomGroups(),
		TimeLimitSeconds: s.cfg.TimeLimitSeconds,
	}

	expulsions, err := s.store.RecentExpulsions(recentExpulsionsShown)
	if err != nil {
		s.logger.Warn("failed to read recent expulsions",
			logger.Field{Key: "error", Value: err})
	} else {
		data.RecentExpulsions = expulsions
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Execute(w, data); err != nil {
		s.logger.Error("failed to render status page", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.state.Snapshot()

	s.writeJSON(w, http.StatusOK, map[string]any{
		"bot_running":         snap.Running,
		"started_at":          snap.StartedAt,
		"last_check":          snap.LastSweepAt,
		"next_check":          snap.NextSweepAt,
		"members_count":       snap.MembersCount,
		"total_expelled":      snap.TotalExpelled,
		"sweep_count":         snap.SweepCount,
		"time_limit":          s.cfg.TimeLimitSeconds,
		"notifications_armed": snap.NotificationsArmed,
		"recent_errors":       snap.RecentErrors,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	members, err := s.store.ListMembers()
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": fmt.Sprintf("failed to read members: %v", err),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"total_members": len(members),
		"groups":        groupByRoom(members),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	if s.sweeper == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error": "sweeper is not running",
		})
		return
	}

	if !s.sweeper.RunOnce(r.Context()) {
		s.writeJSON(w, http.StatusConflict, map[string]any{
			"status": "sweep already in progress",
		})
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "sweep completed",
	})
}

func (s *Server) handleTransport(w http.ResponseWriter, r *http.Request) {
	if s.transport == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error": "transport switching is not available",
		})
		return
	}

	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "invalid request body",
		})
		return
	}

	if err := s.transport.Reconfigure(req.Mode); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": err.Error(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"mode":   s.transport.TransportMode(),
	})
}

func (s *Server) roomGroups() []roomGroup {
	members, err := s.store.ListMembers()
	if err != nil {
		s.logger.Warn("failed to read members",
			logger.Field{Key: "error", Value: err})
		return nil
	}
	return groupByRoom(members)
}

// groupByRoom buckets tracked members per room, sorted by chat id for a
// stable response.
func groupByRoom(members []store.TrackedMember) []roomGroup {
	counts := lo.CountValuesBy(members, func(m store.TrackedMember) int64 {
		return m.RoomID
	})

	groups := make([]roomGroup, 0, len(counts))
	for chatID, count := range counts {
		groups = append(groups, roomGroup{ChatID: chatID, Members: count})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ChatID < groups[j].ChatID })

	return groups
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", err)
	}
}
