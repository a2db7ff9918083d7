package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

type debtStore interface {
	ListDebts(ctx context.Context, f DebtFilter) ([]Debt, error)
	GetDebt(ctx context.Context, id string) (Debt, error)
	CreateDebt(ctx context.Context, d Debt) (Debt, error)
	UpdateDebt(ctx context.Context, d Debt) (Debt, error)
	SetDebtActive(ctx context.Context, id string, active bool) error
	DeleteDebt(ctx context.Context, id string) error
	ListPayments(ctx context.Context, debtID string) ([]Payment, error)
	ListAllPayments(ctx context.Context) ([]PaymentWithDebt, error)
	AddPayment(ctx context.Context, p Payment) (Payment, error)
	UpdatePayment(ctx context.Context, p Payment) (Payment, error)
	DeletePayment(ctx context.Context, id string) error
}

type App struct {
	cfg   Config
	store debtStore
	cache planCache
	log   *zap.Logger
	now   func() time.Time

	rateLimiter      map[string][]time.Time
	rateLimiterSwept time.Time
	rateLimiterMu    sync.Mutex
}

func newApp(cfg Config, store debtStore, cache planCache, log *zap.Logger) *App {
	return &App{
		cfg:         cfg,
		store:       store,
		cache:       cache,
		log:         log,
		now:         time.Now,
		rateLimiter: make(map[string][]time.Time),
	}
}

// money formats an amount as $1,234.56.
func money(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	s := d.StringFixed(2)
	whole, frac := s[:len(s)-3], s[len(s)-2:]
	var result []byte
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(c))
	}
	return fmt.Sprintf("%s$%s.%s", sign, string(result), frac)
}

// cents rounds a calculator float for output.
func cents(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(2)
}

func (a *App) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(a.log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	limit := a.rateLimit(a.cfg.RateLimitMax, a.cfg.RateLimitWindow)

	r.Route("/debts", func(r chi.Router) {
		r.Get("/", a.handleDebtList)
		r.Post("/", a.handleDebtCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", a.handleDebtView)
			r.Put("/", a.handleDebtUpdate)
			r.Delete("/", a.handleDebtDelete)
			r.Patch("/active", a.handleDebtToggle)
			r.Get("/payments", a.handlePaymentList)
			r.Post("/payments", a.handlePaymentAdd)
			r.With(limit).Get("/projection", a.handleProjection)
		})
	})
	r.Get("/payments", a.handlePayments)
	r.Put("/payments/{id}", a.handlePaymentUpdate)
	r.Delete("/payments/{id}", a.handlePaymentDelete)

	r.Group(func(r chi.Router) {
		r.Use(limit)
		r.Get("/plan", a.handlePlan)
		r.Get("/plan/compare", a.handlePlanCompare)
	})

	return r
}

func (a *App) writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		a.log.Error("encode response", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	a.writeRaw(w, status, buf.Bytes())
}

func (a *App) writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (a *App) writeError(w http.ResponseWriter, status int, msg string) {
	a.writeJSON(w, status, map[string]string{"error": msg})
}

// storeError maps ErrNotFound to 404, ErrOverpayment to 400 and logs anything else as a 500.
func (a *App) storeError(w http.ResponseWriter, r *http.Request, err error, what string) {
	if errors.Is(err, ErrNotFound) {
		a.writeError(w, http.StatusNotFound, what+" not found")
		return
	}
	if errors.Is(err, ErrOverpayment) {
		a.writeError(w, http.StatusBadRequest, ErrOverpayment.Error())
		return
	}
	a.log.Error("store failure",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("resource", what),
		zap.Error(err),
	)
	a.writeError(w, http.StatusInternalServerError, "internal server error")
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// rateLimit is a per-client sliding window. Loopback clients are not limited.
func (a *App) rateLimit(maxAttempts int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			if key == "127.0.0.1" || key == "::1" || key == "localhost" {
				next.ServeHTTP(w, r)
				return
			}

			now := a.now()

			a.rateLimiterMu.Lock()
			// Forget clients idle for a whole window, at most once per window.
			if now.Sub(a.rateLimiterSwept) >= window {
				for k, attempts := range a.rateLimiter {
					if len(attempts) == 0 || now.Sub(attempts[len(attempts)-1]) >= window {
						delete(a.rateLimiter, k)
					}
				}
				a.rateLimiterSwept = now
			}
			valid := a.rateLimiter[key][:0]
			for _, t := range a.rateLimiter[key] {
				if now.Sub(t) < window {
					valid = append(valid, t)
				}
			}
			if len(valid) >= maxAttempts {
				a.rateLimiter[key] = valid
				a.rateLimiterMu.Unlock()
				a.log.Warn("rate limit exceeded", zap.String("client", key), zap.String("path", r.URL.Path))
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
				a.writeError(w, http.StatusTooManyRequests, "too many requests, try again later")
				return
			}
			a.rateLimiter[key] = append(valid, now)
			a.rateLimiterMu.Unlock()

			next.ServeHTTP(w, r)
		})
	}
}

func main() {
	cfg, envFileLoaded := loadConfig()

	logger, err := newLogger(cfg.Stage, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	if !envFileLoaded {
		logger.Debug("no .env file, using process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDB(cfg)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("connect database", zap.String("host", cfg.DBHost), zap.Error(err))
	}
	if err := migrate(ctx, db); err != nil {
		logger.Fatal("migrate database", zap.Error(err))
	}

	cache := newPlanCacheFromConfig(ctx, cfg, logger)
	defer cache.Close()

	app := newApp(cfg, NewStore(db), cache, logger)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           app.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	useTLS := cfg.TLSCertFile != "" && cfg.TLSKeyFile != ""
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.Bool("tls", useTLS),
			zap.String("stage", cfg.Stage),
		)
		if useTLS {
			errCh <- srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
		}
	}
}
