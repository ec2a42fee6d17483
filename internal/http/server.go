// Package http exposes reallocation runs over a small JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/singleflight"

	applog "remanejo/internal/log"
	"remanejo/internal/middleware/ratelimit"
	"remanejo/internal/middleware/security"
	"remanejo/internal/realloc"
	"remanejo/internal/services"
	"remanejo/internal/sheets"
	"remanejo/internal/storage"
)

// RunService is what the handlers need from services.RunService.
type RunService interface {
	Execute(ctx context.Context, src sheets.BudgetSource, name string, cfg realloc.Config) (*services.RunOutcome, error)
	Get(id string) (*services.RunOutcome, bool)
	Lookup(ctx context.Context, id string) (*services.StoredRun, error)
	History(ctx context.Context, limit int) ([]storage.RunRecord, error)
}

var _ RunService = (*services.RunService)(nil)

type Server struct {
	http.Server
	runs    RunService
	rules   realloc.Config
	logger  *applog.Logger
	limiter *ratelimit.Limiter

	// identical concurrent uploads share one computation
	inflight singleflight.Group

	shutdownOnce sync.Once
}

// NewServer builds the router. rules are the defaults that form fields of
// an upload may override.
func NewServer(addr string, runs RunService, rules realloc.Config, logger *applog.Logger) *Server {
	if logger == nil {
		logger = applog.Discard()
	}
	s := &Server{
		Server: http.Server{
			Addr:           addr,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   60 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 1 << 16,
		},
		runs:    runs,
		rules:   rules,
		logger:  logger.WithComponent(applog.ComponentHTTP),
		limiter: ratelimit.NewLimiter(ratelimit.DefaultConfig()),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(applog.Middleware(s.logger, func(r *http.Request) string {
		return middleware.GetReqID(r.Context())
	}))
	r.Use(applog.AccessLog)
	r.Use(middleware.Recoverer)
	r.Use(security.Headers(security.DefaultHeadersConfig()))

	r.Get("/healthz", handleHealth)
	r.Route("/runs", func(r chi.Router) {
		r.With(s.limiter.Middleware(clientIP, s.onLimit)).Post("/", s.handleCreateRun)
		r.Get("/{id}", s.handleGetRun)
		r.Get("/{id}/workbook", s.handleWorkbook)
	})
	r.Get("/history", s.handleHistory)

	s.Handler = r
	return s
}

func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func clientIP(r *http.Request) string {
	// RealIP has already replaced RemoteAddr with the forwarded address
	return r.RemoteAddr
}

func (s *Server) onLimit(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded", applog.FieldClientIP, clientIP(r))
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
}
