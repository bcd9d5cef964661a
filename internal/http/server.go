package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"outlay/internal/auth"
	"outlay/internal/cache"
	"outlay/internal/core"
	"outlay/internal/middleware/ratelimit"
	"outlay/internal/middleware/security"
	"outlay/internal/middleware/trace"
)

// ExpenseAPI is the service surface the HTTP layer exposes. Every method
// takes the owner explicitly; the handlers never smuggle identity through
// context.
type ExpenseAPI interface {
	Create(ctx context.Context, owner string, e core.Expense) (core.Expense, error)
	Get(ctx context.Context, owner, id string) (core.Expense, error)
	List(ctx context.Context, owner string) ([]core.Expense, error)
	Update(ctx context.Context, owner, id string, e core.Expense) (core.Expense, error)
	Delete(ctx context.Context, owner, id string) error
	QuickStats(ctx context.Context, owner string, now time.Time) (core.StatsSummary, error)
}

// TokenVerifier authenticates an Authorization header.
type TokenVerifier interface {
	VerifyHeader(header string) (auth.Identity, error)
}

// Options tunes the server. Zero values fall back to defaults.
type Options struct {
	Addr              string
	StatsCacheTTL     time.Duration
	RequestsPerMinute int
}

type appMetrics struct {
	startedAt       time.Time
	expensesCreated int64
	cacheHits       int64
	cacheMisses     int64
}

// Server serves the expense API.
type Server struct {
	http.Server

	api      ExpenseAPI
	verifier TokenVerifier

	statsCache *cache.TTLCache[core.StatsSummary]
	limiter    *ratelimit.Limiter
	tracer     *trace.Middleware
	metrics    appMetrics

	shutdownOnce sync.Once
}

func NewServer(api ExpenseAPI, verifier TokenVerifier, opts Options) *Server {
	if opts.StatsCacheTTL <= 0 {
		opts.StatsCacheTTL = 30 * time.Second
	}

	s := &Server{
		api:        api,
		verifier:   verifier,
		statsCache: cache.New[core.StatsSummary](1000, opts.StatsCacheTTL),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RequestsPerMinute,
		}),
		tracer:  trace.NewMiddleware(clientIP),
		metrics: appMetrics{startedAt: time.Now()},
	}

	r := mux.NewRouter()
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(s.tracer.Middleware)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.Use(s.limiter.Middleware(clientIP))

	// quick-stats is registered before the {id} route so "quick-stats"
	// never resolves as an expense id.
	apiRouter.HandleFunc("/expenses/quick-stats", s.withAuth(s.handleQuickStats)).Methods(http.MethodGet)
	apiRouter.HandleFunc("/expenses", s.withAuth(s.handleCreateExpense)).Methods(http.MethodPost)
	apiRouter.HandleFunc("/expenses", s.withAuth(s.handleListExpenses)).Methods(http.MethodGet)
	apiRouter.HandleFunc("/expenses/{id}", s.withAuth(s.handleGetExpense)).Methods(http.MethodGet)
	apiRouter.HandleFunc("/expenses/{id}", s.withAuth(s.handleUpdateExpense)).Methods(http.MethodPut)
	apiRouter.HandleFunc("/expenses/{id}", s.withAuth(s.handleDeleteExpense)).Methods(http.MethodDelete)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// authedHandler is a handler with the caller identity resolved. Identity
// travels as a parameter, never through request context.
type authedHandler func(w http.ResponseWriter, r *http.Request, id auth.Identity)

func (s *Server) withAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := s.verifier.VerifyHeader(r.Header.Get("Authorization"))
		if err != nil {
			respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, id)
	}
}

// Shutdown stops the HTTP server and its background goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) cachedStats(ctx context.Context, owner string) (core.StatsSummary, error) {
	if stats, ok := s.statsCache.Get(owner); ok {
		atomic.AddInt64(&s.metrics.cacheHits, 1)
		return stats, nil
	}
	atomic.AddInt64(&s.metrics.cacheMisses, 1)

	stats, err := s.api.QuickStats(ctx, owner, time.Now())
	if err != nil {
		return core.StatsSummary{}, err
	}
	s.statsCache.Set(owner, stats)
	return stats, nil
}

// invalidateStats drops the owner's cached summary after any mutation.
func (s *Server) invalidateStats(owner string) {
	s.statsCache.Invalidate(owner)
}
