// Package http exposes the ledger services as a JSON API.
package http

import (
	"context"
	"net/http"
	"time"

	"pfm/internal/core"
	"pfm/internal/log"
	"pfm/internal/middleware/ratelimit"
	"pfm/internal/middleware/security"
	"pfm/internal/middleware/trace"
	"pfm/internal/services"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the handlers' collaborators.
type Services struct {
	Users       *services.UserService
	Expenses    *services.ExpenseService
	Investments *services.InvestmentService
	Budgets     *services.BudgetService
}

type Options struct {
	Addr               string
	RateLimitPerMinute int
	TrustedProxies     []string
	Currency           string
	Logger             *log.Logger
	Clock              core.Clock
}

type Server struct {
	http.Server
	svc      Services
	resolver Resolver
	store    Pinger
	currency string
	clock    core.Clock
	logger   *log.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
}

// NewServer wires routes and middleware into a ready-to-run http.Server.
// It fails only on a malformed trusted proxy CIDR.
func NewServer(svc Services, resolver Resolver, store Pinger, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = core.SystemClock{}
	}
	s := &Server{
		svc:      svc,
		resolver: resolver,
		store:    store,
		currency: opts.Currency,
		clock:    clock,
		logger:   logger.WithComponent(log.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector: security.NewDetector(logger),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.chain(s.routes()),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	auth := func(h http.HandlerFunc) http.HandlerFunc { return requireUser(s.resolver, h) }

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/users/register", s.handleRegister)
	mux.HandleFunc("POST /api/users/login", s.handleLogin)
	mux.HandleFunc("GET /api/users/balance/sources", s.handleSources)
	mux.HandleFunc("GET /api/users/balance", auth(s.handleBalance))
	mux.HandleFunc("POST /api/users/balance/add", auth(s.handleTopUp))

	mux.HandleFunc("POST /api/expenses", auth(s.handleCreateExpense))
	mux.HandleFunc("GET /api/expenses", auth(s.handleListExpenses))
	mux.HandleFunc("GET /api/expenses/monthly", auth(s.handleMonthlyExpenses))
	mux.HandleFunc("GET /api/expenses/{id}", auth(s.handleGetExpense))
	mux.HandleFunc("PUT /api/expenses/{id}", auth(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /api/expenses/{id}", auth(s.handleDeleteExpense))

	mux.HandleFunc("POST /api/investments", auth(s.handleCreateInvestment))
	mux.HandleFunc("GET /api/investments", auth(s.handleListInvestments))
	mux.HandleFunc("GET /api/investments/{id}", auth(s.handleGetInvestment))
	mux.HandleFunc("PUT /api/investments/{id}", auth(s.handleUpdateInvestment))
	mux.HandleFunc("POST /api/investments/{id}/close", auth(s.handleCloseInvestment))
	mux.HandleFunc("DELETE /api/investments/{id}", auth(s.handleDeleteInvestment))

	mux.HandleFunc("POST /api/budgets", auth(s.handleCreateBudget))
	mux.HandleFunc("GET /api/budgets", auth(s.handleListBudgets))
	mux.HandleFunc("GET /api/budgets/active", auth(s.handleActiveBudget))
	mux.HandleFunc("GET /api/budgets/status", auth(s.handleBudgetStatus))
	mux.HandleFunc("GET /api/budgets/{id}", auth(s.handleGetBudget))
	mux.HandleFunc("PUT /api/budgets/{id}", auth(s.handleUpdateBudget))
	mux.HandleFunc("DELETE /api/budgets/{id}", auth(s.handleDeleteBudget))

	return mux
}

// chain applies, outermost first: logger, trace, probe detection, security
// headers and the write rate limit.
func (s *Server) chain(h http.Handler) http.Handler {
	h = s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded", log.FieldClientIP, s.detector.ExtractClientIP(r), log.FieldPath, r.URL.Path)
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded", Code: "rate_limited"})
	})(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)
	h = s.tracer.Middleware(h)
	return log.Middleware(s.logger)(h)
}

// Run serves until ctx is cancelled, then shuts down gracefully within
// shutdownTimeout. The rate limiter's cleanup loop lives as long as the server.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.Addr)
		errCh <- s.ListenAndServe()
	}()
	limiterCtx, stopLimiter := context.WithCancel(context.Background())
	defer stopLimiter()
	go s.limiter.Run(limiterCtx) //nolint:errcheck

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("HTTP server shutting down", log.FieldOperation, log.OpShutdown)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
