package http

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"budgetcal/internal/cache"
	"budgetcal/internal/forecast"
	"budgetcal/internal/log"
	"budgetcal/internal/middleware/ratelimit"
	"budgetcal/internal/middleware/security"
	"budgetcal/internal/middleware/trace"
	"budgetcal/internal/services"
)

// Pinger reports whether the data backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the application services the API exposes.
type Services struct {
	Forecasts *forecast.Service
	Calendar  *services.CalendarService
	Recurring *services.RecurringService
	Ledger    *services.LedgerService
	Store     Pinger
}

type Options struct {
	DefaultUserID      int64
	RateLimitPerMinute int
	CacheTTL           time.Duration
	Logger             *log.Logger
}

type appMetrics struct {
	uptime            time.Time
	forecastsCreated  int64
	recurringChanges  int64
	transactionsAdded int64
}

type Server struct {
	http.Server
	svc    Services
	opts   Options
	logger *log.Logger

	weeksCache   *cache.LRUCache[[]services.CalendarWeek]
	cacheManager *cache.Manager

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc Services, opts Options) *Server {
	if opts.DefaultUserID < 1 {
		opts.DefaultUserID = 1
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		svc:              svc,
		opts:             opts,
		logger:           logger.WithComponent(log.ComponentHTTP),
		weeksCache:       cache.NewLRUCache[[]services.CalendarWeek](200, opts.CacheTTL),
		cacheManager:     cache.NewManager(),
		securityDetector: security.NewDetector(),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}
	limits := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limits.RequestsPerMinute = opts.RateLimitPerMinute
	}
	s.rateLimiter = ratelimit.NewLimiter(limits)
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP)

	s.cacheManager.Register(s.weeksCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux := http.NewServeMux()
	s.routes(mux)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimited)(handler)
	handler = headers.Middleware(handler)
	handler = s.securityDetector.Middleware(handler)
	handler = log.Middleware(logger, trace.RequestID)(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /calendar/api/weeks", s.handleCalendarWeeks)
	mux.HandleFunc("GET /calendar/api/recurring", s.handleCalendarRecurring)
	mux.HandleFunc("GET /calendar/api/transaction/{id}", s.handleCalendarTransaction)

	mux.HandleFunc("GET /api/forecasts", s.handleListForecasts)
	mux.HandleFunc("POST /api/forecasts", s.handleCreateForecast)
	mux.HandleFunc("GET /api/forecasts/daily", s.handleDailyBalances)
	mux.HandleFunc("GET /api/forecasts/{id}", s.handleGetForecast)
	mux.HandleFunc("DELETE /api/forecasts/{id}", s.handleDeleteForecast)
	mux.HandleFunc("POST /api/forecasts/{id}/recalculate", s.handleRecalculateForecast)

	mux.HandleFunc("POST /api/recurring", s.handleCreateRecurring)
	mux.HandleFunc("PUT /api/recurring/{id}/amount", s.handleUpdateRecurringAmount)
	mux.HandleFunc("GET /api/recurring/{id}/history", s.handleRecurringHistory)
	mux.HandleFunc("DELETE /api/recurring/{id}", s.handleDeactivateRecurring)

	mux.HandleFunc("GET /api/accounts", s.handleListAccounts)
	mux.HandleFunc("POST /api/accounts", s.handleCreateAccount)
	mux.HandleFunc("PUT /api/accounts/{id}/balance", s.handleUpdateBalance)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)

	mux.HandleFunc("GET /api/budget/summary", s.handleBudgetSummary)
	mux.HandleFunc("GET /api/budget/upcoming", s.handleUpcoming)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	NewJSONResponse().
		Status(http.StatusTooManyRequests).
		Error("rate_limited", "Rate limit exceeded. Please try again later.").
		Write(w)
}

// Shutdown stops background routines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func userPrefix(userID int64) string {
	return "u" + strconv.FormatInt(userID, 10) + ":"
}

// invalidateUser drops every cached view of userID after a write.
func (s *Server) invalidateUser(ctx context.Context, userID int64) {
	n := s.weeksCache.DeletePrefix(userPrefix(userID))
	if n > 0 {
		s.logger.DebugContext(ctx, "Cache invalidated", log.FieldUserID, userID, "entries_removed", n)
	}
}

func (s *Server) countForecast()    { atomic.AddInt64(&s.appMetrics.forecastsCreated, 1) }
func (s *Server) countRecurring()   { atomic.AddInt64(&s.appMetrics.recurringChanges, 1) }
func (s *Server) countTransaction() { atomic.AddInt64(&s.appMetrics.transactionsAdded, 1) }
