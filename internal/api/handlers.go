package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tenant-metrics/internal/aggregator"
	"tenant-metrics/internal/model"
	"tenant-metrics/internal/provision"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// CreateTenant provisions a tenant, its registry entries and tables.
func (a *API) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req provision.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request body")
		return
	}

	res, err := a.Provisioner.Provision(r.Context(), req)
	switch {
	case errors.Is(err, provision.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, provision.ErrPrefixCollision):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		a.Logger.Error("Provisioning failed", zap.String("name", req.Name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	a.Logger.Info("API: provisioned tenant",
		zap.String("tenant_id", res.TenantID.String()),
		zap.String("prefix", res.TablePrefix),
	)
	writeJSON(w, http.StatusCreated, res)
}

// DeleteTenant removes a tenant with its tables and registry entries.
func (a *API) DeleteTenant(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tenant id")
		return
	}

	if err := a.Provisioner.Deprovision(r.Context(), id); err != nil {
		if errors.Is(err, model.ErrTenantNotFound) {
			writeError(w, http.StatusNotFound, "tenant not found")
			return
		}
		a.Logger.Error("Deprovisioning failed", zap.String("tenant_id", id.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	a.Logger.Info("API: deleted tenant", zap.String("tenant_id", id.String()))
	w.WriteHeader(http.StatusNoContent)
}

// AdminMetrics returns the cross-tenant report for ?start=&end= and optional
// repeated ?tenant= ids.
func (a *API) AdminMetrics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, end, err := aggregator.ParseRange(q.Get("start"), q.Get("end"), a.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var tenantIDs []uuid.UUID
	for _, raw := range q["tenant"] {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid tenant id "+raw)
			return
		}
		tenantIDs = append(tenantIDs, id)
	}

	report, err := a.Reports.Aggregate(r.Context(), tenantIDs, start, end)
	if err != nil {
		a.Logger.Error("Aggregation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "aggregation failed")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := a.Health.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
