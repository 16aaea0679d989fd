package web

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"invoice-ocr-platform/internal/config"
	"invoice-ocr-platform/internal/domain"
	"invoice-ocr-platform/internal/domain/model"
	"invoice-ocr-platform/internal/domain/ports/repository"
	"invoice-ocr-platform/internal/infra/metrics"
	"invoice-ocr-platform/internal/infra/redis"
	"invoice-ocr-platform/internal/usecase"
)

type ctxKey string

const ctxTenant ctxKey = "tenant"

// Server is the HTTP surface: tenant-facing job and billing endpoints, the
// provider webhook and a small admin API.
type Server struct {
	jobUC     usecase.JobUseCase
	billingUC usecase.BillingUseCase
	tenants   repository.TenantRepository
	subs      repository.SubscriptionRepository
	limiter   *redis.RateLimiter
	auth      *AuthManager

	webhookSecret []byte
	adminPassword string
	rateWindow    time.Duration
	rateDefault   int

	httpServer *http.Server
	log        *zerolog.Logger
}

func NewServer(
	cfg *config.Config,
	jobUC usecase.JobUseCase,
	billingUC usecase.BillingUseCase,
	tenants repository.TenantRepository,
	subs repository.SubscriptionRepository,
	limiter *redis.RateLimiter,
	logger *zerolog.Logger,
) *Server {
	webLog := logger.With().Str("component", "web").Logger()
	return &Server{
		jobUC:         jobUC,
		billingUC:     billingUC,
		tenants:       tenants,
		subs:          subs,
		limiter:       limiter,
		auth:          NewAuthManager(cfg.Server.AdminJWTSecret, !cfg.Runtime.Dev, cfg.Server.SessionTTL),
		webhookSecret: []byte(cfg.Billing.WebhookSecret),
		adminPassword: cfg.Server.AdminPassword,
		rateWindow:    cfg.RateLimit.Window,
		rateDefault:   cfg.RateLimit.DefaultPerWindow,
		httpServer:    &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port)},
		log:           &webLog,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/webhook/payments/{provider}", s.handlePaymentWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.tenantAuth)
			r.With(s.rateLimit).Post("/jobs", s.handleSubmitJob)
			r.Get("/jobs/{id}", s.handleJobStatus)
			r.Get("/billing/balance", s.handleBalance)
			r.Get("/billing/ledger", s.handleLedger)
			r.Post("/payments", s.handleInitiatePayment)
		})

		r.Post("/admin/login", s.handleAdminLogin)
		r.Group(func(r chi.Router) {
			r.Use(s.adminAuth)
			r.Post("/admin/logout", s.handleAdminLogout)
			r.Get("/admin/tenants", s.handleListTenants)
			r.Post("/admin/tenants", s.handleCreateTenant)
		})
	})

	return r
}

func (s *Server) Start() error {
	s.httpServer.Handler = s.Router()
	metrics.MustRegister()
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// tenantAuth resolves the caller from the X-API-Key header and stashes the
// tenant in the request context.
func (s *Server) tenantAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			http.Error(w, "missing API key", http.StatusUnauthorized)
			return
		}
		tenant, err := s.tenants.FindByAPIKey(r.Context(), nil, key)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				http.Error(w, "invalid API key", http.StatusUnauthorized)
				return
			}
			http.Error(w, "authentication failed", http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxTenant, tenant)))
	})
}

func tenantFrom(r *http.Request) *model.Tenant {
	t, _ := r.Context().Value(ctxTenant).(*model.Tenant)
	return t
}

// rateLimit enforces the tenant's per-window submission quota. The counter
// lives in redis so the limit holds across replicas. The plan's limit wins;
// tenants without an active subscription get the configured default.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant := tenantFrom(r)
		if tenant == nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		limit := s.rateDefault
		if sub, err := s.subs.FindActiveWithPlan(r.Context(), nil, tenant.ID); err == nil && sub.Plan.RateLimitPerMin > 0 {
			limit = sub.Plan.RateLimitPerMin
		}

		ok, err := s.limiter.Allow(r.Context(), redis.TenantRequestKey(tenant.ID), limit, s.rateWindow)
		if err != nil {
			s.log.Error().Err(err).Str("tenant_id", tenant.ID).Msg("rate limiter unavailable")
			http.Error(w, "rate limiter unavailable", http.StatusServiceUnavailable)
			return
		}
		if !ok {
			metrics.IncRateLimitRejected()
			http.Error(w, domain.ErrRateLimitExceeded.Error(), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) adminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if s.adminPassword == "" ||
		subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.adminPassword)) != 1 {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		http.Error(w, "session error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleAdminLogout(w http.ResponseWriter, _ *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}
