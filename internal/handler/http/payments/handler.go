package payments_http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"payments-reconciler/internal/app/payments"
	"payments-reconciler/internal/domain"
)

type PaymentHandler struct {
	processor payments.PaymentProcessor
	logger    *zap.Logger
}

func NewPaymentHandler(p payments.PaymentProcessor, l *zap.Logger) *PaymentHandler {
	return &PaymentHandler{processor: p, logger: l}
}

type ClientTokenResponse struct {
	ClientToken string `json:"client_token,omitempty"`
	OK          bool   `json:"ok"`
}

type ResultResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type RefundRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

type StatusReportRequest struct {
	GatewayTransactionID   string `json:"gateway_transaction_id"`
	Status                 string `json:"status"`
	ProcessorResponseCode  string `json:"processor_response_code,omitempty"`
	ProcessorResponseText  string `json:"processor_response_text,omitempty"`
	GatewayRejectionReason string `json:"gateway_rejection_reason,omitempty"`
}

type TransactionResponse struct {
	ID                string `json:"id"`
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
	State             string `json:"state"`
	ExternalReference string `json:"external_reference,omitempty"`
	GatewayStatus     string `json:"gateway_status,omitempty"`
	FailCode          string `json:"fail_code,omitempty"`
	FailReason        string `json:"fail_reason,omitempty"`
	CanRefund         bool   `json:"can_refund"`
	CanVoid           bool   `json:"can_void"`
	UpdatedAt         string `json:"updated_at"`
}

func (h *PaymentHandler) ClientTokenHandler(w http.ResponseWriter, r *http.Request) {
	token, ok := h.processor.ClientToken(r.Context())
	h.writeJSON(w, http.StatusOK, ClientTokenResponse{ClientToken: token, OK: ok})
}

func (h *PaymentHandler) CustomerClientTokenHandler(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	customerID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || customerID <= 0 {
		h.logger.Warn("Invalid customer id", zap.String("customer_id", idStr))
		http.Error(w, "Invalid customer ID format", http.StatusBadRequest)
		return
	}

	token, ok := h.processor.ClientTokenForCustomer(r.Context(), customerID)
	h.writeJSON(w, http.StatusOK, ClientTokenResponse{ClientToken: token, OK: ok})
}

func (h *PaymentHandler) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := h.processor.GetTransaction(r.Context(), id)
	if err != nil {
		h.writeError(w, id, err)
		return
	}
	h.writeJSON(w, http.StatusOK, TransactionResponse{
		ID:                t.ID,
		Amount:            t.Amount.StringFixed(2),
		Currency:          t.Currency,
		State:             string(t.State),
		ExternalReference: t.ExternalReference,
		GatewayStatus:     string(t.Data.Status),
		FailCode:          string(t.Data.FailCode),
		FailReason:        t.Data.FailReason,
		CanRefund:         t.CanRefund(),
		CanVoid:           t.CanVoid(),
		UpdatedAt:         t.UpdatedAt.Format(http.TimeFormat),
	})
}

func (h *PaymentHandler) ExecuteTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := h.processor.ExecuteTransaction(r.Context(), id)
	h.writeResult(w, id, ok, err)
}

func (h *PaymentHandler) RefundTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("Invalid refund request body", zap.String("transaction_id", id), zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ok, err := h.processor.RefundTransaction(r.Context(), id, req.Amount)
	h.writeResult(w, id, ok, err)
}

func (h *PaymentHandler) VoidTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := h.processor.VoidTransaction(r.Context(), id)
	h.writeResult(w, id, ok, err)
}

func (h *PaymentHandler) StatusReportHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req StatusReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid status report body", zap.String("transaction_id", id), zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Status == "" {
		http.Error(w, "Status is required", http.StatusBadRequest)
		return
	}

	ok, err := h.processor.ApplyStatusReport(r.Context(), id, domain.StatusReport{
		GatewayTransactionID:   req.GatewayTransactionID,
		Status:                 domain.GatewayStatus(req.Status),
		ProcessorResponseCode:  req.ProcessorResponseCode,
		ProcessorResponseText:  req.ProcessorResponseText,
		GatewayRejectionReason: req.GatewayRejectionReason,
	})
	h.writeResult(w, id, ok, err)
}

func (h *PaymentHandler) SyncTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := h.processor.FetchTransactionStatus(r.Context(), id)
	h.writeResult(w, id, ok, err)
}

// writeResult reports soft failures (pre-check rejections) as 200 with
// ok=false. Conflicts and lock contention map to 409.
func (h *PaymentHandler) writeResult(w http.ResponseWriter, transactionID string, ok bool, err error) {
	if err == nil {
		h.writeJSON(w, http.StatusOK, ResultResponse{OK: ok})
		return
	}
	if domain.IsValidationError(err) {
		h.writeJSON(w, http.StatusOK, ResultResponse{OK: false, Error: err.Error()})
		return
	}
	h.writeError(w, transactionID, err)
}

func (h *PaymentHandler) writeError(w http.ResponseWriter, transactionID string, err error) {
	switch {
	case errors.Is(err, domain.ErrTransactionNotFound):
		h.logger.Warn("Transaction not found", zap.String("transaction_id", transactionID))
		h.writeJSON(w, http.StatusNotFound, ResultResponse{Error: "transaction not found"})
	case errors.Is(err, domain.ErrTransitionConflict), errors.Is(err, domain.ErrTransactionLocked),
		errors.Is(err, domain.ErrChargeInProgress):
		h.writeJSON(w, http.StatusConflict, ResultResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidAmount):
		h.writeJSON(w, http.StatusBadRequest, ResultResponse{Error: err.Error()})
	default:
		h.logger.Error("Request failed", zap.String("transaction_id", transactionID), zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, ResultResponse{Error: "internal server error"})
	}
}

func (h *PaymentHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}
