package http

import (
	"context"
	"io"
	"io/fs"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/session"
	appweb "fintrack/web"
)

// ServiceName is reported by GET /api/.
const ServiceName = "fintrack"

// Service is what the handlers need from the transaction service.
type Service interface {
	List(ctx context.Context, f core.Filter) ([]core.Transaction, error)
	Get(ctx context.Context, id int64) (core.Transaction, error)
	Create(ctx context.Context, in core.Input) (core.Transaction, error)
	Update(ctx context.Context, id int64, in core.Input) (*core.Transaction, error)
	Delete(ctx context.Context, id int64) (int64, error)
	Stats(ctx context.Context, f core.Filter) (core.Stats, error)
	ExportCSV(ctx context.Context, f core.Filter, w io.Writer) error
	ExportXLSX(ctx context.Context, f core.Filter, w io.Writer) error
	Import(ctx context.Context, r io.Reader) (int, error)
	Ready(ctx context.Context) error
}

// Options tunes request limits.
type Options struct {
	ImportMaxBytes     int64
	RateLimitPerMinute int
}

type Server struct {
	http.Server

	svc      Service
	sessions *session.Store
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	logger   *log.Logger
	opts     Options
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
// The server owns the rate limiter; sessions are owned by the caller.
func NewServer(addr string, svc Service, sessions *session.Store, logger *log.Logger, opts Options) *Server {
	if opts.ImportMaxBytes <= 0 {
		opts.ImportMaxBytes = 10 << 20
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	detector := security.NewDetector()

	s := &Server{
		svc:      svc,
		sessions: sessions,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector: detector,
		tracer:   trace.NewMiddleware(logger, detector.ExtractClientIP),
		logger:   logger,
		opts:     opts,
		started:  time.Now(),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = s.apiFallback(mux)
	handler = detector.Middleware(handler)
	handler = recoverPanics(handler)
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mutation := func(h http.HandlerFunc) http.Handler {
		limit := s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit)
		return limit(s.sessions.Middleware(h))
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/{$}", s.handleAPIIndex)
	mux.HandleFunc("GET /api/csrf", s.handleCSRF)
	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.Handle("POST /api/transactions", mutation(s.handleCreateTransaction))
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.Handle("PUT /api/transactions/{id}", mutation(s.handleUpdateTransaction))
	mux.Handle("DELETE /api/transactions/{id}", mutation(s.handleDeleteTransaction))
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/export", s.handleExportCSV)
	mux.HandleFunc("GET /api/export.xlsx", s.handleExportXLSX)
	mux.Handle("POST /api/import", mutation(s.handleImport))

	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
		return
	}
	files := http.FileServer(http.FS(static))
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(http.StripPrefix("/static/", files)))
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFileFS(w, r, static, "index.html")
	})
}

// apiFallback turns the mux's plain-text 404 and 405 replies under /api into
// JSON. Everything else goes straight to the mux.
func (s *Server) apiFallback(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			mux.ServeHTTP(w, r)
			return
		}
		if _, pattern := mux.Handler(r); pattern != "" {
			mux.ServeHTTP(w, r)
			return
		}

		probe := &statusProbe{header: make(http.Header)}
		mux.ServeHTTP(probe, r)
		if probe.status == http.StatusMethodNotAllowed {
			MethodNotAllowedError(probe.header.Get("Allow")).Write(r.Context(), w)
			return
		}
		RouteNotFoundError(strings.TrimPrefix(r.URL.Path, "/api")).Write(r.Context(), w)
	})
}

// statusProbe records what the mux would have answered.
type statusProbe struct {
	header http.Header
	status int
}

func (p *statusProbe) Header() http.Header { return p.header }

func (p *statusProbe) Write(b []byte) (int, error) {
	if p.status == 0 {
		p.status = http.StatusOK
	}
	return len(b), nil
}

func (p *statusProbe) WriteHeader(code int) {
	if p.status == 0 {
		p.status = code
	}
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).Warn("Rate limit exceeded",
		log.FieldComponent, log.ComponentRateLimit,
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Too many requests").Write(r.Context(), w)
}

// recoverPanics logs a panicking handler and answers 500.
func recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Handler panic",
				"panic", rec,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				"stack", string(debug.Stack()))
			InternalServerError().Write(r.Context(), w)
		}()
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops background goroutines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
