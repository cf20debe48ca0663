package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"mileage/internal/auth"
	"mileage/internal/cache"
	"mileage/internal/log"
	"mileage/internal/middleware/ratelimit"
	"mileage/internal/middleware/security"
	"mileage/internal/middleware/trace"
	"mileage/internal/session"
	"mileage/internal/settings"
	"mileage/internal/sheets"
	appweb "mileage/web"
)

const (
	defaultCacheCleanup = 10 * time.Minute
	staticMaxAge        = 3600
	readyTimeout        = 10 * time.Second
	submitTimeout       = 30 * time.Second
)

// Options carries the collaborators of the server. Settings, Sessions and
// Auth are required; a nil Submitter disables claim submission.
type Options struct {
	Settings  *settings.Store
	Sessions  *session.Store
	Auth      auth.Authenticator
	Submitter sheets.ClaimSubmitter
	Ready     func(ctx context.Context) error
	Logger    *log.Logger
	RateLimit ratelimit.Config

	// MaxMiles bounds the miles field of the entry form; it should match
	// the limit the session ledgers enforce.
	MaxMiles decimal.Decimal

	CacheCleanupInterval time.Duration
	Now                  func() time.Time
	NewReference         func() string
}

// Server serves the claims pages and their htmx partials.
type Server struct {
	http.Server
	templates *template.Template
	settings  *settings.Store
	sessions  *session.Store
	auth      auth.Authenticator
	submitter sheets.ClaimSubmitter
	ready     func(context.Context) error
	logger    *log.Logger
	events    *log.StructuredLogger
	now       func() time.Time
	newRef    func() string
	maxMiles  decimal.Decimal

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	cacheManager     *cache.Manager
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

type appMetrics struct {
	uptime             time.Time
	entriesCreated     atomic.Int64
	validationFailures atomic.Int64
	loginFailures      atomic.Int64
	ledgersCleared     atomic.Int64
	submissions        atomic.Int64
	submitFailures     atomic.Int64
	settingsSaveErrors atomic.Int64
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server. Call Shutdown to stop it and its background
// cleanup goroutines.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	httpLogger := logger.WithComponent(log.ComponentHTTP)

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newRef := opts.NewReference
	if newRef == nil {
		newRef = uuid.NewString
	}
	rl := opts.RateLimit
	if rl.Logger == nil {
		rl.Logger = logger
	}

	mux := http.NewServeMux()
	s := &Server{
		settings:         opts.Settings,
		sessions:         opts.Sessions,
		auth:             opts.Auth,
		submitter:        opts.Submitter,
		ready:            opts.Ready,
		logger:           httpLogger,
		events:           log.NewStructuredLogger(logger),
		now:              now,
		newRef:           newRef,
		maxMiles:         opts.MaxMiles,
		rateLimiter:      ratelimit.NewLimiter(rl),
		securityDetector: security.NewDetector(logger),
		cacheManager:     cache.NewManager(logger),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)

	s.cacheManager.Register(s.sessions.Cache())
	interval := opts.CacheCleanupInterval
	if interval <= 0 {
		interval = defaultCacheCleanup
	}
	s.cacheManager.StartCleanup(interval)

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		httpLogger.Error("Failed parsing templates",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeConfiguration)
		t = nil
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(staticMaxAge)(static))
	} else {
		httpLogger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)

	mux.HandleFunc("/", s.requireSession(s.handleIndex))
	mux.HandleFunc("/claims", s.requireSession(s.handleCreateClaim))
	mux.HandleFunc("/claims/clear", s.requireSession(s.handleClearClaims))
	mux.HandleFunc("/claims/submit", s.requireSession(s.handleSubmitClaims))
	mux.HandleFunc("/claims/export.json", s.requireSession(s.handleExportJSON))
	mux.HandleFunc("/claims/export.csv", s.requireSession(s.handleExportCSV))
	mux.HandleFunc("/settings", s.requireSession(s.handleSettings))

	// UI partials
	mux.HandleFunc("/ui/claims", s.requireSession(s.handleClaimsPartial))
	mux.HandleFunc("/ui/estimate", s.requireSession(s.handleEstimate))

	extractIP := s.securityDetector.ExtractClientIP
	var handler http.Handler = security.NoStore(mux)
	handler = s.rateLimiter.Middleware(extractIP, http.MethodPost)(handler)
	handler = s.securityDetector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
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

// sessionHandler is a handler that runs for a signed-in user.
type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session)

// requireSession sends visitors without a live session to the login page.
// htmx requests get an HX-Redirect so the whole page navigates.
func (s *Server) requireSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessions.Get(r)
		if !ok {
			if isHTMX(r) {
				NewHTMXResponse().
					Status(http.StatusUnauthorized).
					Redirect("/login").
					Write(w)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		ctx := log.NewContext(r.Context(), log.FromContext(r.Context()).With(
			log.FieldSessionID, sess.ID,
			log.FieldUser, sess.User))
		next(w, r.WithContext(ctx), sess)
	}
}

// maxMilesAttr returns the form's upper bound for miles, empty when unbounded.
func (s *Server) maxMilesAttr() string {
	if !s.maxMiles.IsPositive() {
		return ""
	}
	return s.maxMiles.String()
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
