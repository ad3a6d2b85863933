// Package api exposes the safety gate and health checker over HTTP for
// operator tooling. This is an admin surface, not a public one.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"db-auditor/internal/config"
	"db-auditor/internal/db"
	"db-auditor/internal/discovery"
	"db-auditor/internal/health"
	"db-auditor/internal/ratelimit"
	"db-auditor/internal/safety"
	"db-auditor/internal/telemetry"
)

// SessionFactory opens a session for a project alias.
type SessionFactory func(project string) (*db.Session, error)

// Server wires HTTP handlers over the core.
type Server struct {
	cfg      config.Config
	sessions SessionFactory
	disc     *discovery.Discoverer
	checker  *health.Checker
	limiter  *ratelimit.ExecLimiter

	mu    sync.Mutex
	cache map[string]*db.Session
}

// New constructs the API server. limiter may be nil to disable throttling.
func New(cfg config.Config, sessions SessionFactory, disc *discovery.Discoverer, checker *health.Checker, limiter *ratelimit.ExecLimiter) *Server {
	return &Server{
		cfg:      cfg,
		sessions: sessions,
		disc:     disc,
		checker:  checker,
		limiter:  limiter,
		cache:    make(map[string]*db.Session),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/metrics", telemetry.Handler())

	r.Post("/sql/classify", s.handleClassify)
	r.Post("/sql/execute", s.handleExecute)
	r.Get("/projects/{project}/jobs", s.handleProjectJobs)
	r.Get("/projects/{project}/health", s.handleProjectHealth)
	r.Post("/health/check", s.handleCheckAll)
	return r
}

func (s *Server) session(project string) (*db.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.cache[project]; ok {
		return sess, nil
	}
	sess, err := s.sessions(project)
	if err != nil {
		return nil, err
	}
	s.cache[project] = sess
	return sess, nil
}

type classifyRequest struct {
	SQL string `json:"sql"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SQL == "" {
		http.Error(w, "sql is required", http.StatusBadRequest)
		return
	}
	tier := safety.Classify(req.SQL)
	writeJSON(w, http.StatusOK, map[string]string{"tier": tier.String()})
}

type executeRequest struct {
	Project          string `json:"project"`
	SQL              string `json:"sql"`
	Confirm          bool   `json:"confirm"`
	IKnowWhatImDoing bool   `json:"i_know_what_im_doing"`
	DryRun           bool   `json:"dry_run"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SQL == "" {
		http.Error(w, "sql is required", http.StatusBadRequest)
		return
	}
	if req.Project == "" {
		if len(s.cfg.KnownProjects) == 0 {
			http.Error(w, "project is required", http.StatusBadRequest)
			return
		}
		req.Project = s.cfg.KnownProjects[0]
	}

	tier := safety.Classify(req.SQL)
	if s.limiter != nil && tier > safety.Safe {
		allowed, err := s.limiter.Allow(r.Context(), tier.String())
		if err != nil {
			http.Error(w, "rate limit error", http.StatusInternalServerError)
			return
		}
		if !allowed {
			telemetry.RateLimitRejects.Inc()
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
	}

	sess, err := s.session(req.Project)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err = sess.Execute(r.Context(), req.SQL, db.ExecOptions{
		Confirm:          req.Confirm,
		IKnowWhatImDoing: req.IKnowWhatImDoing,
		DryRun:           req.DryRun,
	})
	var serr *safety.Error
	if errors.As(err, &serr) {
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error": serr.Message,
			"tier":  serr.Tier.String(),
		})
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tier": tier.String(), "dry_run": req.DryRun})
}

func (s *Server) handleProjectJobs(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	jobs := s.disc.CronJobs(r.Context(), project)
	writeJSON(w, http.StatusOK, map[string]any{"project": project, "jobs": jobs})
}

func (s *Server) handleProjectHealth(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	records := s.checker.CheckProjectJobs(r.Context(), project)
	writeJSON(w, http.StatusOK, map[string]any{"project": project, "jobs": records})
}

func (s *Server) handleCheckAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.checker.CheckAllAndAlert(r.Context()))
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
