package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/obfin/openfinance/services"
	"github.com/obfin/openfinance/utils"
)

type VrpHandler struct {
	vrpService *services.VrpService
}

func CreateVrpHandler(vrpService *services.VrpService) *VrpHandler {
	return &VrpHandler{vrpService: vrpService}
}

type createVrpConsentRequest struct {
	DebtorAccount string          `json:"debtor_account"`
	PeriodLimit   decimal.Decimal `json:"period_limit"`
	Currency      string          `json:"currency"`
	ExpiresAt     time.Time       `json:"expires_at"`
}

func (h *VrpHandler) HandleCreateConsent(w http.ResponseWriter, r *http.Request) {
	idempotencyKey, ok := requireIdempotencyKey(w, r)
	if !ok {
		return
	}

	var req createVrpConsentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	result, err := h.vrpService.CreateConsent(r.Context(), services.CreateVrpConsentCommand{
		ParticipantID:  utils.GetParticipantID(r.Context()),
		IdempotencyKey: idempotencyKey,
		DebtorAccount:  req.DebtorAccount,
		PeriodLimit:    req.PeriodLimit,
		Currency:       req.Currency,
		ExpiresAt:      req.ExpiresAt,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	setIdempotencySignal(w, result.Replayed)
	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, result.Consent)
}

func (h *VrpHandler) HandleGetConsent(w http.ResponseWriter, r *http.Request) {
	consentID := mux.Vars(r)["consentId"]

	consent, signal, err := h.vrpService.GetConsent(r.Context(), consentID, utils.GetParticipantID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	setCacheSignal(w, signal)
	writeJSON(w, http.StatusOK, consent)
}

func (h *VrpHandler) HandleRevokeConsent(w http.ResponseWriter, r *http.Request) {
	consentID := mux.Vars(r)["consentId"]

	if err := h.vrpService.RevokeConsent(r.Context(), consentID, utils.GetParticipantID(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type submitVrpPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	PayeeIBAN string          `json:"payee_iban"`
	Reference string          `json:"reference"`
}

func (h *VrpHandler) HandleSubmitPayment(w http.ResponseWriter, r *http.Request) {
	idempotencyKey, ok := requireIdempotencyKey(w, r)
	if !ok {
		return
	}
	consentID, ok := requireConsentID(w, r)
	if !ok {
		return
	}

	var req submitVrpPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	result, err := h.vrpService.SubmitPayment(r.Context(), services.SubmitVrpPaymentCommand{
		ConsentID:      consentID,
		ParticipantID:  utils.GetParticipantID(r.Context()),
		IdempotencyKey: idempotencyKey,
		Amount:         req.Amount,
		Currency:       req.Currency,
		PayeeIBAN:      req.PayeeIBAN,
		Reference:      req.Reference,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	setIdempotencySignal(w, result.Replayed)
	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, result.Payment)
}

func (h *VrpHandler) HandleGetPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := mux.Vars(r)["paymentId"]

	payment, signal, err := h.vrpService.GetPayment(r.Context(), paymentID, utils.GetParticipantID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	setCacheSignal(w, signal)
	writeJSON(w, http.StatusOK, payment)
}
