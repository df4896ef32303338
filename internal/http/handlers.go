package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"expenses/internal/core"
	"expenses/internal/log"
)

const readyTimeout = 2 * time.Second

type createdBody struct {
	ExpenseID int64 `json:"expense_id"`
}

// handleCreateExpense records one expense. Validation failures are 422,
// undecodable bodies 400 and store faults 500.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	in, err := DecodeExpenseInput(w, r)
	if err != nil {
		logger.InfoContext(ctx, "Rejected expense body",
			log.FieldOperation, log.OpParse,
			log.FieldError, err.Error())
		BadRequestError(err.Error()).Write(w)
		return
	}

	result, err := s.ledger.Record(ctx, in)
	if err != nil {
		log.NewStructuredLogger(logger).LogError(ctx, "Failed to record expense", err,
			log.ComponentHTTP, log.OpCreate, log.NewFields().WithErrorType(log.ErrorTypeDatabase))
		InternalServerError().Write(w)
		return
	}

	if msg, rejected := result.ErrorMessage(); rejected {
		UnprocessableEntityError(msg).Write(w)
		return
	}

	id, _ := result.ExpenseID()
	s.recorded.Add(1)
	// a recorded input always carries a valid date
	if d, err := core.ParseDate(*in.Date); err == nil {
		s.dateCache.Invalidate(d.String())
	}

	NewJSONResponse().Body(createdBody{ExpenseID: id}).Write(w)
}

// handleExpensesOn lists every expense recorded on the {date} path value.
func (s *Server) handleExpensesOn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	d, err := core.ParseDate(r.PathValue("date"))
	if err != nil {
		BadRequestError(fmt.Sprintf("invalid date %q: must be YYYY-MM-DD", r.PathValue("date"))).Write(w)
		return
	}

	key := d.String()
	if s.cacheReads {
		if items, ok := s.dateCache.Get(key); ok {
			NewJSONResponse().Body(items).Write(w)
			return
		}
	}

	// read before the store so a POST landing during the read keeps this
	// result out of the cache
	gen := s.dateCache.Generation()
	items, err := s.ledger.ExpensesOn(ctx, d)
	if err != nil {
		if errors.Is(err, core.ErrInvalidDate) {
			BadRequestError(err.Error()).Write(w)
			return
		}
		log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Failed to list expenses", err,
			log.ComponentHTTP, log.OpList, log.NewFields().WithErrorType(log.ErrorTypeDatabase))
		InternalServerError().Write(w)
		return
	}

	if s.cacheReads {
		s.dateCache.SetIfGeneration(key, items, gen)
	}
	NewJSONResponse().Body(items).Write(w)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports 503 until the store answers a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{
		"cache": map[string]any{
			"entries": s.dateCache.Size(),
			"status":  "ok",
		},
	}

	if err := s.ledger.Ping(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err.Error())
		checks["store"] = "failed: " + err.Error()
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	if s.rateLimiter != nil {
		checks["rate_limiter"] = map[string]any{
			"active_clients": s.rateLimiter.ActiveClients(),
			"status":         "ok",
		}
	}

	NewJSONResponse().Status(httpStatus).Body(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides counters in a Prometheus-like text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	st := s.Stats()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	writeMetric(w, "http_requests_total", "counter", "Total number of HTTP requests", st.Requests)
	writeMetric(w, "expenses_recorded_total", "counter", "Expenses recorded since start", st.ExpensesRecorded)
	writeMetric(w, "cache_hits_total", "counter", "Total cache hits", st.CacheHits)
	writeMetric(w, "cache_misses_total", "counter", "Total cache misses", st.CacheMisses)
	writeMetric(w, "cache_entries", "gauge", "Current cache entries", int64(st.CacheEntries))
	writeMetric(w, "rate_limit_hits_total", "counter", "Total rate limit hits", st.RateLimited)
	writeMetric(w, "suspicious_requests_total", "counter", "Total suspicious requests detected", st.SuspiciousRequests)
	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n# TYPE uptime_seconds gauge\nuptime_seconds %.0f\n", time.Since(s.startedAt).Seconds())
}

func writeMetric(w http.ResponseWriter, name, kind, help string, value int64) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %d\n\n", name, help, name, kind, name, value)
}

func methodNotAllowed(allowed string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		MethodNotAllowedError(allowed).Write(w)
	}
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	NotFoundError("not found").Write(w)
}
