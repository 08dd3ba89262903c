package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/obfin/openfinance/services"
	"github.com/obfin/openfinance/utils"
)

type InsuranceHandler struct {
	insuranceService *services.InsuranceService
}

func CreateInsuranceHandler(insuranceService *services.InsuranceService) *InsuranceHandler {
	return &InsuranceHandler{insuranceService: insuranceService}
}

type insuranceQuoteRequest struct {
	VehicleValue decimal.Decimal `json:"vehicle_value"`
	VehicleYear  int             `json:"vehicle_year"`
	DriverAge    int             `json:"driver_age"`
	ClaimFree    bool            `json:"claim_free"`
}

func (h *InsuranceHandler) HandleCreateQuote(w http.ResponseWriter, r *http.Request) {
	consentID, ok := requireConsentID(w, r)
	if !ok {
		return
	}

	var req insuranceQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	quote, err := h.insuranceService.CreateQuote(r.Context(), services.CreateInsuranceQuoteCommand{
		ConsentID:     consentID,
		ParticipantID: utils.GetParticipantID(r.Context()),
		VehicleValue:  req.VehicleValue,
		VehicleYear:   req.VehicleYear,
		DriverAge:     req.DriverAge,
		ClaimFree:     req.ClaimFree,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, quote)
}

func (h *InsuranceHandler) HandleAcceptQuote(w http.ResponseWriter, r *http.Request) {
	idempotencyKey, ok := requireIdempotencyKey(w, r)
	if !ok {
		return
	}
	quoteID := mux.Vars(r)["quoteId"]

	var req insuranceQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	result, err := h.insuranceService.AcceptQuote(r.Context(), services.AcceptInsuranceQuoteCommand{
		QuoteID:        quoteID,
		ParticipantID:  utils.GetParticipantID(r.Context()),
		IdempotencyKey: idempotencyKey,
		VehicleValue:   req.VehicleValue,
		VehicleYear:    req.VehicleYear,
		DriverAge:      req.DriverAge,
		ClaimFree:      req.ClaimFree,
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
	writeJSON(w, status, result.Policy)
}
