package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"expenses/internal/cache"
	"expenses/internal/core"
	"expenses/internal/log"
	"expenses/internal/middleware/ratelimit"
	"expenses/internal/middleware/security"
	"expenses/internal/middleware/trace"
)

// Ledger is what the API layer needs from the ledger.
type Ledger interface {
	Record(ctx context.Context, in core.ExpenseInput) (core.RecordResult, error)
	ExpensesOn(ctx context.Context, d core.Date) ([]core.Expense, error)
	Ping(ctx context.Context) error
}

// Server wraps http.Server with the expense routes, the per-date read cache
// and the middleware chain.
type Server struct {
	http.Server
	ledger Ledger
	logger *log.Logger

	detector     *security.Detector
	tracer       *trace.Middleware
	rateLimiter  *ratelimit.Limiter
	cacheManager *cache.Manager
	dateCache    *cache.LRUCache[[]core.Expense]
	cacheReads   bool
	startedAt    time.Time
	recorded     atomic.Int64

	cacheSize       int
	cacheTTL        time.Duration
	rateLimit       int
	trustedProxies  []string
	shutdownOnce    sync.Once
	cleanupInterval time.Duration
}

type Option func(*Server)

func WithLogger(logger *log.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithCache sizes the per-date read cache. A ttl of zero keeps entries
// until they are evicted or invalidated by a write; a size of zero turns
// the cache off.
func WithCache(size int, ttl time.Duration) Option {
	return func(s *Server) {
		s.cacheSize = size
		s.cacheTTL = ttl
	}
}

// WithRateLimit limits POST requests per client per minute; zero disables it.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) {
		s.rateLimit = perMinute
	}
}

// WithTrustedProxies adds CIDRs whose X-Forwarded-For header is honoured.
func WithTrustedProxies(cidrs ...string) Option {
	return func(s *Server) {
		s.trustedProxies = append(s.trustedProxies, cidrs...)
	}
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, l Ledger, opts ...Option) *Server {
	s := &Server{
		ledger:          l,
		cacheSize:       256,
		cacheTTL:        5 * time.Minute,
		rateLimit:       60,
		cleanupInterval: time.Minute,
		startedAt:       time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(log.DefaultConfig())
	}
	s.logger = s.logger.WithComponent(log.ComponentHTTP)

	s.detector = security.NewDetector()
	for _, cidr := range s.trustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", log.FieldError, err.Error())
		}
	}

	s.cacheReads = s.cacheSize > 0
	s.dateCache = cache.NewLRUCache[[]core.Expense](s.cacheSize, s.cacheTTL)
	s.cacheManager = cache.NewManager(s.logger)
	s.cacheManager.Register(s.dateCache)
	s.cacheManager.StartCleanup(s.cleanupInterval)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /expenses/{date}", s.handleExpensesOn)
	mux.HandleFunc("/expenses", methodNotAllowed(http.MethodPost))
	mux.HandleFunc("/expenses/{date}", methodNotAllowed(http.MethodGet+", "+http.MethodHead))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("/", handleNotFound)

	var handler http.Handler = mux
	if s.rateLimit > 0 {
		s.rateLimiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: s.rateLimit})
		handler = s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited, http.MethodPost)(handler)
	}
	handler = s.withProbeDetection(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	s.tracer = trace.NewMiddleware(s.logger, s.detector.ExtractClientIP)
	handler = s.tracer.Middleware(handler)
	handler = log.Middleware(s.logger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// withProbeDetection logs requests that look like vulnerability scans. They
// are still routed normally and usually end in a 404.
func (s *Server) withProbeDetection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.IsSuspicious(r) {
			log.FromContext(r.Context()).WithComponent(log.ComponentSecurity).WarnContext(r.Context(), "Suspicious request",
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, s.detector.ExtractClientIP(r))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	TooManyRequestsError().Write(w)
}

// Shutdown stops background workers and then the HTTP server.
// It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		s.cacheManager.Stop()

		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Stats is a snapshot of the server's counters.
type Stats struct {
	Requests            int64
	ExpensesRecorded    int64
	AverageResponseTime time.Duration
	CacheEntries        int
	CacheHits           int64
	CacheMisses         int64
	RateLimited         int64
	SuspiciousRequests  int64
}

func (s *Server) Stats() Stats {
	m := s.tracer.GetMetrics()
	hits, misses := s.dateCache.Stats()
	st := Stats{
		Requests:            m.TotalRequests,
		ExpensesRecorded:    s.recorded.Load(),
		AverageResponseTime: m.AverageResponseTime,
		CacheEntries:        s.dateCache.Size(),
		CacheHits:           hits,
		CacheMisses:         misses,
		SuspiciousRequests:  s.detector.SuspiciousRequests(),
	}
	if s.rateLimiter != nil {
		st.RateLimited = s.rateLimiter.Rejected()
	}
	return st
}
