package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"mileage/internal/auth"
	"mileage/internal/core"
	"mileage/internal/log"
	"mileage/internal/session"
	"mileage/internal/settings"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(health)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	// The app works without a submission backend, so its absence is only
	// reported.
	switch {
	case s.submitter == nil:
		checks["submit_backend"] = "not_configured"
	case s.ready == nil:
		checks["submit_backend"] = "ok"
	default:
		if err := s.ready(ctx); err != nil {
			checks["submit_backend"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["submit_backend"] = "ok"
		}
	}

	checks["sessions"] = map[string]interface{}{
		"active": s.sessions.Len(),
		"status": "ok",
	}
	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}

	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(response)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()
	m := s.appMetrics

	w.WriteHeader(http.StatusOK)

	// Prometheus text exposition format
	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_requests_failed_total HTTP requests answered with a 5xx status\n")
	fmt.Fprintf(w, "# TYPE http_requests_failed_total counter\n")
	fmt.Fprintf(w, "http_requests_failed_total %d\n\n", traceMetrics.FailedRequests)

	fmt.Fprintf(w, "# HELP claims_created_total Mileage entries added to a ledger\n")
	fmt.Fprintf(w, "# TYPE claims_created_total counter\n")
	fmt.Fprintf(w, "claims_created_total %d\n\n", m.entriesCreated.Load())

	fmt.Fprintf(w, "# HELP claims_rejected_total Mileage entries rejected by validation\n")
	fmt.Fprintf(w, "# TYPE claims_rejected_total counter\n")
	fmt.Fprintf(w, "claims_rejected_total %d\n\n", m.validationFailures.Load())

	fmt.Fprintf(w, "# HELP ledgers_cleared_total Clear-all operations\n")
	fmt.Fprintf(w, "# TYPE ledgers_cleared_total counter\n")
	fmt.Fprintf(w, "ledgers_cleared_total %d\n\n", m.ledgersCleared.Load())

	fmt.Fprintf(w, "# HELP submissions_total Claim batches handed to the finance backend\n")
	fmt.Fprintf(w, "# TYPE submissions_total counter\n")
	fmt.Fprintf(w, "submissions_total{result=\"ok\"} %d\n", m.submissions.Load())
	fmt.Fprintf(w, "submissions_total{result=\"error\"} %d\n\n", m.submitFailures.Load())

	fmt.Fprintf(w, "# HELP login_failures_total Rejected login attempts\n")
	fmt.Fprintf(w, "# TYPE login_failures_total counter\n")
	fmt.Fprintf(w, "login_failures_total %d\n\n", m.loginFailures.Load())

	fmt.Fprintf(w, "# HELP settings_save_errors_total Settings changes that could not be persisted\n")
	fmt.Fprintf(w, "# TYPE settings_save_errors_total counter\n")
	fmt.Fprintf(w, "settings_save_errors_total %d\n\n", m.settingsSaveErrors.Load())

	fmt.Fprintf(w, "# HELP active_sessions Currently live sessions\n")
	fmt.Fprintf(w, "# TYPE active_sessions gauge\n")
	fmt.Fprintf(w, "active_sessions %d\n\n", s.sessions.Len())

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rateLimitMetrics.TotalHits)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", rateLimitMetrics.ClientCount)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(m.uptime).Seconds())
}

type vehicleOption struct {
	Value    string
	Label    string
	Rate     string
	Selected bool
}

type indexData struct {
	User     string
	Business core.Business
	Today    string
	MaxMiles string
	Vehicles []vehicleOption
	Claims   claimsData
	Steps    []string
}

var helpSteps = []string{
	"Enter the date of your business journey",
	"Specify start and end locations",
	"Input total miles traveled",
	"Select your vehicle type",
	"Describe the business purpose",
	"Submit to add to your claims",
}

func vehicleOptions(doc settings.Document, f formatter, selected core.VehicleType) []vehicleOption {
	opts := make([]vehicleOption, 0, len(core.VehicleTypes()))
	for _, v := range core.VehicleTypes() {
		rate, _ := doc.Rates.For(v)
		opts = append(opts, vehicleOption{
			Value:    string(v),
			Label:    v.Label(),
			Rate:     f.Rate(rate),
			Selected: v == selected,
		})
	}
	return opts
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if r.URL.Path != "/" {
		NotFoundError("Page not found").Write(w)
		return
	}
	if rb := RequireMethod(r, http.MethodGet, http.MethodHead); rb != nil {
		rb.Write(w)
		return
	}

	doc := s.settings.Current()
	f := newFormatter(doc.Business.CurrencySymbol)
	data := indexData{
		User:     sess.User,
		Business: doc.Business,
		Today:    core.DateOf(s.now()).String(),
		MaxMiles: s.maxMilesAttr(),
		Vehicles: vehicleOptions(doc, f, core.Car),
		Claims:   s.claimsView(sess, f),
		Steps:    helpSteps,
	}
	s.render(w, r, http.StatusOK, "index.html", data)
}

type loginData struct {
	Company  string
	Username string
	Error    string
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if rb := RequireMethod(r, http.MethodGet, http.MethodPost); rb != nil {
		rb.Write(w)
		return
	}
	company := s.settings.Current().Business.CompanyName

	if r.Method == http.MethodGet {
		if _, ok := s.sessions.Get(r); ok {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		s.render(w, r, http.StatusOK, "login.html", loginData{Company: company})
		return
	}

	if rb := ParseFormOrFail(r); rb != nil {
		rb.Write(w)
		return
	}
	username := sanitizeInput(r.PostForm.Get("username"))
	pin := r.PostForm.Get("pin")

	id, err := s.auth.Authenticate(r.Context(), username, pin)
	if err != nil {
		s.appMetrics.loginFailures.Add(1)
		msg := "Incorrect credentials. Please try again."
		switch {
		case errors.Is(err, auth.ErrUnknownUser):
			msg = "Incorrect username. Please try again."
		case errors.Is(err, auth.ErrWrongPIN):
			msg = "Incorrect PIN. Please try again."
		}
		log.FromContext(r.Context()).WarnContext(r.Context(), "Login rejected",
			log.FieldOperation, log.OpLogin,
			log.FieldErrorType, log.ErrorTypeAuth,
			log.FieldError, err)
		s.render(w, r, http.StatusUnauthorized, "login.html", loginData{
			Company:  company,
			Username: username,
			Error:    msg,
		})
		return
	}

	// A fresh session id on every login.
	s.sessions.Destroy(w, r)
	s.sessions.Start(w, id.Username)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if rb := RequirePOST(r); rb != nil {
		rb.Write(w)
		return
	}
	s.sessions.Destroy(w, r)
	if isHTMX(r) {
		NewHTMXResponse().Redirect("/login").Write(w)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// render executes a template into a buffer first so a failing template
// never produces a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if s.templates == nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded",
			log.FieldPath, r.URL.Path,
			log.FieldComponent, log.ComponentTemplate,
			log.FieldErrorType, log.ErrorTypeConfiguration)
		InternalServerError("templates not loaded").Write(w)
		return
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err,
			log.FieldOperation, log.OpRender,
			"template", name)
		InternalServerError("Could not render page").Write(w)
		return
	}
	NewHTMXResponse().
		Status(status).
		Header("Content-Type", "text/html; charset=utf-8").
		Body(buf.Bytes()).
		Write(w)
}
