package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"invoice-ocr-platform/internal/domain"
	"invoice-ocr-platform/internal/domain/model"
)

func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type jobResponse struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	InputPath   string     `json:"input_path"`
	OutputRef   string     `json:"output_ref,omitempty"`
	Error       string     `json:"error,omitempty"`
	Priority    int        `json:"priority"`
	RetryCount  int        `json:"retry_count"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
}

func toJobResponse(j *model.Job) jobResponse {
	resp := jobResponse{
		ID:         j.ID,
		Status:     string(j.Status),
		InputPath:  j.InputPath,
		Error:      j.Error,
		Priority:   j.Priority,
		RetryCount: j.RetryCount,
		CreatedAt:  j.CreatedAt,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
	}
	// output_ref only surfaces once the job has actually completed.
	if j.Status == model.JobStatusCompleted || j.Status == model.JobStatusReviewRequired {
		resp.OutputRef = j.OutputPath
	}
	if j.Status == model.JobStatusRetry {
		resp.NextRetryAt = j.NextRetryAt
	}
	return resp
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r)

	var req struct {
		InputPath string `json:"input_path"`
		Priority  int    `json:"priority"`
	}
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	job, err := s.jobUC.Admit(r.Context(), tenant.ID, req.InputPath, req.Priority)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, domain.ErrInsufficientCredits):
			http.Error(w, err.Error(), http.StatusPaymentRequired)
		case errors.Is(err, domain.ErrNoActiveSubscription), errors.Is(err, domain.ErrSubscriptionExpired):
			http.Error(w, err.Error(), http.StatusForbidden)
		default:
			s.log.Error().Err(err).Str("tenant_id", tenant.ID).Msg("job admission error")
			http.Error(w, "failed to submit job", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, toJobResponse(job))
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r)
	id := chi.URLParam(r, "id")

	job, err := s.jobUC.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidArgument) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "failed to get job", http.StatusInternalServerError)
		return
	}
	// Jobs are tenant-scoped; another tenant's job is indistinguishable from
	// a missing one.
	if job.TenantID != tenant.ID {
		http.NotFound(w, r)
		return
	}

	writeJSON(w, http.StatusOK, toJobResponse(job))
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r)

	credits, err := s.billingUC.Balance(r.Context(), tenant.ID)
	if err != nil {
		http.Error(w, "failed to get balance", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tenant_id": tenant.ID,
		"credits":   credits,
	})
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r)

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := s.billingUC.Ledger(r.Context(), tenant.ID, limit, offset)
	if err != nil {
		http.Error(w, "failed to list ledger", http.StatusInternalServerError)
		return
	}

	response := struct {
		Data   []*model.LedgerEntry `json:"data"`
		Limit  int                  `json:"limit"`
		Offset int                  `json:"offset"`
	}{
		Data:   entries,
		Limit:  limit,
		Offset: offset,
	}
	writeJSON(w, http.StatusOK, response)
}

// handleInitiatePayment records a pending transaction before the tenant is
// redirected to the provider, so the later webhook has a row to settle.
func (s *Server) handleInitiatePayment(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r)

	var req struct {
		Provider  string `json:"provider"`
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
	}
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.billingUC.RecordPendingPayment(r.Context(), tenant.ID, req.Provider, req.Reference, req.Amount, req.Currency); err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "failed to record payment", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleListTenants(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	tenants, err := s.tenants.List(r.Context(), nil, limit, offset)
	if err != nil {
		http.Error(w, "failed to list tenants", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Data   []*model.Tenant `json:"data"`
		Limit  int             `json:"limit"`
		Offset int             `json:"offset"`
	}{tenants, limit, offset})
}

func (s *Server) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         string `json:"name"`
		BillingEmail string `json:"billing_email"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	tenant := model.NewTenant(req.Name, req.BillingEmail)
	if err := s.tenants.Save(r.Context(), nil, tenant); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			http.Error(w, "tenant already exists", http.StatusConflict)
			return
		}
		http.Error(w, "failed to create tenant", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, tenant)
}
