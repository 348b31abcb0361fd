package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tenant-metrics/internal/auth"
	"tenant-metrics/internal/metrics"
	"tenant-metrics/internal/model"
	"tenant-metrics/internal/provision"
)

type Provisioner interface {
	Provision(ctx context.Context, req provision.Request) (*provision.Result, error)
	Deprovision(ctx context.Context, tenantID uuid.UUID) error
}

// ReportService produces the cross-tenant report; the aggregator or its cache.
type ReportService interface {
	Aggregate(ctx context.Context, tenantIDs []uuid.UUID, start, end time.Time) (*model.Report, error)
}

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type API struct {
	Provisioner Provisioner
	Reports     ReportService
	Health      HealthChecker
	Logger      *zap.Logger
	now         func() time.Time
}

func NewAPI(p Provisioner, reports ReportService, health HealthChecker, logger *zap.Logger) *API {
	return &API{
		Provisioner: p,
		Reports:     reports,
		Health:      health,
		Logger:      logger,
		now:         time.Now,
	}
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// Public
	r.Get("/healthz", a.Healthz)
	r.Handle("/metrics", metrics.Handler())

	// Super admin only
	r.Group(func(r chi.Router) {
		r.Use(auth.JWTAuthMiddleware)
		r.Use(auth.RequireSuperAdmin)

		r.Post("/tenants", a.CreateTenant)
		r.Delete("/tenants/{id}", a.DeleteTenant)
		r.Get("/admin/metrics", a.AdminMetrics)
	})

	return r
}
