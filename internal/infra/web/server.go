package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-tier-entitlements/internal/domain/model"
	"telegram-tier-entitlements/internal/domain/ports/adapter"
	"telegram-tier-entitlements/internal/domain/ports/repository"
	"telegram-tier-entitlements/internal/infra/logging"
	"telegram-tier-entitlements/internal/infra/metrics"
)

// PurchaseService is the slice of the purchase engine the ops API needs.
type PurchaseService interface {
	Purchase(ctx context.Context, accountID int64, tierName string, amount int64, origin model.PaymentOrigin, yearly bool) (*model.PurchaseOutcome, error)
}

type SaleService interface {
	Sell(ctx context.Context, accountID int64, tier string) (int64, error)
}

type SweepService interface {
	Sweep(ctx context.Context, tierFilter []string) (model.SweepStats, error)
}

// Server hosts the operator API: inspection of the entitlement ledger and
// manual triggers for the flows the bot normally drives.
type Server struct {
	catalog     *model.Catalog
	purchaseUC  PurchaseService
	saleUC      SaleService
	sweepUC     SweepService
	ents        repository.EntitlementRepository
	wallet      adapter.Wallet
	deadLetters repository.NotificationLogRepository
	auth        *AuthManager
	apiKey      string
	log         *zerolog.Logger
}

func NewServer(
	catalog *model.Catalog,
	purchaseUC PurchaseService,
	saleUC SaleService,
	sweepUC SweepService,
	ents repository.EntitlementRepository,
	wallet adapter.Wallet,
	deadLetters repository.NotificationLogRepository,
	auth *AuthManager,
	apiKey string,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		catalog:     catalog,
		purchaseUC:  purchaseUC,
		saleUC:      saleUC,
		sweepUC:     sweepUC,
		ents:        ents,
		wallet:      wallet,
		deadLetters: deadLetters,
		auth:        auth,
		apiKey:      apiKey,
		log:         &l,
	}
}

// Routes assembles the router. Login and health are open; everything under
// /api/v1 besides login requires a minted session.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.traceMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/login", s.loginHandler())
		r.Post("/logout", s.logoutHandler())

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/tiers", tiersHandler(s.catalog))
			r.Get("/stats", statsHandler(s.ents))
			r.Get("/accounts/{accountID}", accountHandler(s.ents, s.wallet))
			r.Get("/deadletters", deadLettersHandler(s.deadLetters))

			r.Post("/sweep", sweepHandler(s.sweepUC))
			r.Post("/purchases", purchaseHandler(s.purchaseUC))
			r.Post("/sales", saleHandler(s.saleUC))
		})
	})
	return r
}

// traceMiddleware tags every request with a trace id so handler logs and
// downstream use-case logs correlate.
func (s *Server) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithTraceID(r.Context(), uuid.NewString())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authMiddleware admits only requests carrying a valid session token, by
// bearer header or cookie.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			metrics.IncAdminRequest(r.URL.Path, "unauthorized")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		metrics.IncAdminRequest(r.URL.Path, "ok")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("ops API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		var req struct {
			APIKey string `json:"api_key"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(s.apiKey)) != 1 {
			metrics.IncAdminRequest("/api/v1/login", "forbidden")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		token, err := s.auth.Mint(w)
		if err != nil {
			http.Error(w, "Failed to mint session", http.StatusInternalServerError)
			return
		}
		metrics.IncAdminRequest("/api/v1/login", "ok")
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

func (s *Server) logoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s.auth.Clear(w)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ListenAndServe blocks until ctx is cancelled, then drains with a short
// shutdown grace period.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info().Str("addr", addr).Msg("ops API listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func pathInt64(r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return v, err == nil && v > 0
}
