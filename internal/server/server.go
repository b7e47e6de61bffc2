// Package server exposes the indexer facade as thin JSON routes. The
// handlers validate input and map error kinds to status codes; all
// graph logic lives behind the Service interface.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"castdex/internal/indexer"
	"castdex/internal/logging"
	"castdex/internal/model"
	"castdex/internal/rank"
)

// Service is the slice of the indexer the routes consume.
type Service interface {
	GetUser(ctx context.Context, fid, viewer uint64) (model.User, error)
	SearchUsers(ctx context.Context, query string, limit int) ([]model.User, error)
	GetFollowers(ctx context.Context, fid uint64, limit int, cursor string) ([]model.User, string, error)
	GetFollowing(ctx context.Context, fid uint64, limit int, cursor string) ([]model.User, string, error)
	TopInteractions(ctx context.Context, fid uint64, limit int, opts indexer.ScoreOptions) ([]rank.RankedInteractor, error)
	ReplyGuys(ctx context.Context, fid uint64, limit int) ([]rank.RankedInteractor, error)
	CacheStats() indexer.CacheStats
	RateLimitStats() map[string]indexer.BudgetStat
	PerformanceStats() indexer.PerfStats
	ClearCache()
	ResetStats()
}

// Server is the HTTP server over a Service.
type Server struct {
	svc        Service
	httpServer *http.Server
}

// New builds a server listening on addr.
func New(addr string, svc Service) *Server {
	s := &Server{svc: svc}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/user", s.handleUser)
	mux.HandleFunc("GET /api/user/search", s.handleSearch)
	mux.HandleFunc("GET /api/followers", s.handleFollowers)
	mux.HandleFunc("GET /api/following", s.handleFollowing)
	mux.HandleFunc("GET /api/top-friends", s.handleTopFriends)
	mux.HandleFunc("GET /api/reply-guys", s.handleReplyGuys)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("POST /api/cache/clear", s.handleClearCache)
	mux.HandleFunc("POST /api/stats/reset", s.handleResetStats)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      withLogging(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the route handler, for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins serving. Blocks until shutdown or listen error.
func (s *Server) Start() error {
	logging.Info("http_listen", map[string]any{"addr": s.httpServer.Addr})
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	fid, err := fidParam(r, "fid")
	if err != nil {
		writeError(w, err)
		return
	}
	viewer, _ := fidParam(r, "viewer")
	u, err := s.svc.GetUser(r.Context(), fid, viewer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.SearchUsers(r.Context(), r.URL.Query().Get("q"), intParam(r, "limit", 25))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) handleFollowers(w http.ResponseWriter, r *http.Request) {
	s.handlePaged(w, r, s.svc.GetFollowers)
}

func (s *Server) handleFollowing(w http.ResponseWriter, r *http.Request) {
	s.handlePaged(w, r, s.svc.GetFollowing)
}

func (s *Server) handlePaged(w http.ResponseWriter, r *http.Request, fn func(context.Context, uint64, int, string) ([]model.User, string, error)) {
	fid, err := fidParam(r, "fid")
	if err != nil {
		writeError(w, err)
		return
	}
	users, cursor, err := fn(r.Context(), fid, intParam(r, "limit", 25), r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users, "next": map[string]string{"cursor": cursor}})
}

func (s *Server) handleTopFriends(w http.ResponseWriter, r *http.Request) {
	fid, err := fidParam(r, "fid")
	if err != nil {
		writeError(w, err)
		return
	}
	ranked, err := s.svc.TopInteractions(r.Context(), fid, intParam(r, "limit", indexer.DefaultTopLimit), indexer.ScoreOptions{})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fid": fid, "friends": ranked})
}

func (s *Server) handleReplyGuys(w http.ResponseWriter, r *http.Request) {
	fid, err := fidParam(r, "fid")
	if err != nil {
		writeError(w, err)
		return
	}
	ranked, err := s.svc.ReplyGuys(r.Context(), fid, intParam(r, "limit", indexer.DefaultTopLimit))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fid": fid, "replyGuys": ranked})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"cache":       s.svc.CacheStats(),
		"rateLimits":  s.svc.RateLimitStats(),
		"performance": s.svc.PerformanceStats(),
	})
}

func (s *Server) handleClearCache(w http.ResponseWriter, _ *http.Request) {
	s.svc.ClearCache()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleResetStats(w http.ResponseWriter, _ *http.Request) {
	s.svc.ResetStats()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func fidParam(r *http.Request, name string) (uint64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	fid, err := strconv.ParseUint(v, 10, 64)
	if err != nil || fid == 0 {
		return 0, indexer.ErrInvalidInput
	}
	return fid, nil
}

func intParam(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the indexer error taxonomy onto status codes so the
// web client can decide between showing cached state and retrying.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case indexer.IsInvalidInput(err):
		status = http.StatusBadRequest
	case indexer.IsNotFound(err):
		status = http.StatusNotFound
	case indexer.IsRateLimited(err):
		status = http.StatusTooManyRequests
		if ra := indexer.RetryAfterHint(err); ra > 0 {
			secs := int(ra / time.Second)
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
		}
	case indexer.IsUnavailable(err):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.Info("http_request", map[string]any{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		})
	})
}
