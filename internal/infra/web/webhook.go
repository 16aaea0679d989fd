package web

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"invoice-ocr-platform/internal/domain"
	"invoice-ocr-platform/internal/infra/metrics"
	"invoice-ocr-platform/internal/usecase"
)

// maxWebhookBody caps the raw payload read into memory.
const maxWebhookBody = 1 << 20

// webhookPayload is the provider notification body. The signature covers the
// raw bytes, so decoding happens only after verification.
type webhookPayload struct {
	TenantID  string                 `json:"tenant_id"`
	Reference string                 `json:"reference"`
	Amount    int64                  `json:"amount"`
	Currency  string                 `json:"currency"`
	Status    string                 `json:"status"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// verifySignature checks the hex HMAC-SHA256 of body against the X-Signature
// header. Comparison is constant-time.
func verifySignature(secret []byte, body []byte, header string) error {
	if header == "" {
		return errors.New("missing signature")
	}
	header = strings.TrimPrefix(strings.TrimSpace(header), "sha256=")
	got, err := hex.DecodeString(header)
	if err != nil {
		return errors.New("malformed signature")
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return errors.New("signature mismatch")
	}
	return nil
}

func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		metrics.IncWebhookRejected("read_error")
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}

	// Nothing is mutated before the signature checks out.
	if err := verifySignature(s.webhookSecret, body, r.Header.Get("X-Signature")); err != nil {
		metrics.IncWebhookRejected("bad_signature")
		s.log.Warn().Err(err).Str("provider", provider).Msg("webhook rejected")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		metrics.IncWebhookRejected("bad_payload")
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	res, err := s.billingUC.Reconcile(r.Context(), usecase.PaymentNotice{
		TenantID:  payload.TenantID,
		Provider:  provider,
		Reference: payload.Reference,
		Amount:    payload.Amount,
		Currency:  payload.Currency,
		Status:    payload.Status,
		Raw:       payload.Metadata,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrConversionTooSmall) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.log.Error().Err(err).Str("provider", provider).Str("reference", payload.Reference).Msg("reconcile error")
		http.Error(w, "reconciliation failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"outcome":       string(res.Outcome),
		"credits_added": res.CreditsAdded,
	})
}
