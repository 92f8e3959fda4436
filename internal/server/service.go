// Package server provides the kaizen HTTP API.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fthabet1/Kaizen-sub000/internal/auth"
	"github.com/fthabet1/Kaizen-sub000/internal/config"
	"github.com/fthabet1/Kaizen-sub000/internal/db"
	"github.com/fthabet1/Kaizen-sub000/internal/server/sse"
	"github.com/fthabet1/Kaizen-sub000/internal/timer"
	"github.com/fthabet1/Kaizen-sub000/pkg/models"
)

// Service wires the stores, the timer manager and the router together.
type Service struct {
	config *config.Config

	store    *db.Store
	users    *db.UserStore
	projects *db.ProjectStore
	tasks    *db.TaskStore
	tags     *db.TagStore
	entries  *db.EntryStore
	stats    *db.StatsStore

	timer       *timer.Manager
	tokens      *auth.Tokens
	broadcaster *sse.Broadcaster

	router    chi.Router
	startTime time.Time
}

// timerEvent is what the SSE stream carries on every timer state change.
type timerEvent struct {
	Type  string             `json:"type"`
	State *models.TimerState `json:"state"`
}

// New builds the service on top of an opened store and a session cache.
func New(cfg *config.Config, store *db.Store, cache timer.SessionCache) *Service {
	entries := db.NewEntryStore(store)
	tasks := db.NewTaskStore(store)
	projects := db.NewProjectStore(store)

	svc := &Service{
		config:      cfg,
		store:       store,
		users:       db.NewUserStore(store),
		projects:    projects,
		tasks:       tasks,
		tags:        db.NewTagStore(store),
		entries:     entries,
		stats:       db.NewStatsStore(store),
		timer:       timer.NewManager(entries, tasks, projects, cache),
		tokens:      auth.NewTokens(cfg.JWTSecret, cfg.JWTExpiry),
		broadcaster: sse.NewBroadcaster(),
		router:      chi.NewRouter(),
		startTime:   time.Now(),
	}

	svc.timer.SetNotify(func(userID int64, state *models.TimerState) {
		svc.broadcaster.Broadcast(userID, timerEvent{Type: "timer", State: state})
	})

	svc.setupRoutes()
	return svc
}

// Router returns the HTTP handler.
func (s *Service) Router() http.Handler {
	return s.router
}

// Timer exposes the lifecycle manager, e.g. to the cache watcher.
func (s *Service) Timer() *timer.Manager {
	return s.timer
}

func (s *Service) setupRoutes() {
	r := s.router
	r.Use(requestID)
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)

	r.Post("/api/auth/register", s.handleRegister)
	r.Post("/api/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.tokens.Middleware(writeError))

		r.Post("/api/auth/logout", s.handleLogout)

		r.Route("/api/projects", func(r chi.Router) {
			r.Get("/", s.handleListProjects)
			r.Post("/", s.handleCreateProject)
			r.Get("/{id}", s.handleGetProject)
			r.Patch("/{id}", s.handleUpdateProject)
			r.Delete("/{id}", s.handleDeleteProject)
		})

		r.Route("/api/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Post("/", s.handleCreateTask)
			r.Get("/{id}", s.handleGetTask)
			r.Patch("/{id}", s.handleUpdateTask)
			r.Delete("/{id}", s.handleDeleteTask)
		})

		r.Route("/api/tags", func(r chi.Router) {
			r.Get("/", s.handleListTags)
			r.Post("/", s.handleCreateTag)
			r.Delete("/{id}", s.handleDeleteTag)
		})

		r.Route("/api/entries", func(r chi.Router) {
			r.Get("/", s.handleListEntries)
			r.Post("/", s.handleCreatePastEntry)
			r.Get("/{id}", s.handleGetEntry)
			r.Patch("/{id}", s.handleUpdateEntry)
			r.Delete("/{id}", s.handleDeleteEntry)
			r.Post("/{id}/tags/{tagID}", s.handleAssignTag)
			r.Get("/{id}/tags", s.handleEntryTags)
		})

		r.Route("/api/timer", func(r chi.Router) {
			r.Get("/", s.handleTimerCurrent)
			r.Post("/start", s.handleTimerStart)
			r.Post("/stop", s.handleTimerStop)
			r.Post("/discard", s.handleTimerDiscard)
			r.Patch("/start-time", s.handleTimerAdjustStart)
			r.Patch("/description", s.handleTimerDescription)
		})

		r.Route("/api/stats", func(r chi.Router) {
			r.Get("/summary", s.handleStatsSummary)
			r.Get("/daily", s.handleStatsDaily)
			r.Get("/projects", s.handleStatsProjects)
		})

		r.Get("/api/events", s.handleEvents)
	})
}

// handleHealth reports liveness plus store reachability.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.store.Ping(); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"uptime": time.Since(s.startTime).Truncate(time.Second).String(),
	})
}
