package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/obfin/openfinance/services"
	"github.com/obfin/openfinance/utils"
)

type FxHandler struct {
	fxService *services.FxService
}

func CreateFxHandler(fxService *services.FxService) *FxHandler {
	return &FxHandler{fxService: fxService}
}

type createFxQuoteRequest struct {
	SourceCurrency string          `json:"source_currency"`
	TargetCurrency string          `json:"target_currency"`
	SourceAmount   decimal.Decimal `json:"source_amount"`
}

func (h *FxHandler) HandleCreateQuote(w http.ResponseWriter, r *http.Request) {
	consentID, ok := requireConsentID(w, r)
	if !ok {
		return
	}

	var req createFxQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	quote, err := h.fxService.CreateQuote(r.Context(), services.CreateFxQuoteCommand{
		ConsentID:      consentID,
		ParticipantID:  utils.GetParticipantID(r.Context()),
		SourceCurrency: req.SourceCurrency,
		TargetCurrency: req.TargetCurrency,
		SourceAmount:   req.SourceAmount,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, quote)
}

func (h *FxHandler) HandleGetQuote(w http.ResponseWriter, r *http.Request) {
	quoteID := mux.Vars(r)["quoteId"]

	quote, signal, err := h.fxService.GetQuote(r.Context(), quoteID, utils.GetParticipantID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	setCacheSignal(w, signal)
	writeJSON(w, http.StatusOK, quote)
}

type bookFxDealRequest struct {
	SourceCurrency string          `json:"source_currency"`
	TargetCurrency string          `json:"target_currency"`
	SourceAmount   decimal.Decimal `json:"source_amount"`
}

func (h *FxHandler) HandleBookDeal(w http.ResponseWriter, r *http.Request) {
	idempotencyKey, ok := requireIdempotencyKey(w, r)
	if !ok {
		return
	}
	quoteID := mux.Vars(r)["quoteId"]

	var req bookFxDealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	result, err := h.fxService.BookDeal(r.Context(), services.BookFxDealCommand{
		QuoteID:        quoteID,
		ParticipantID:  utils.GetParticipantID(r.Context()),
		IdempotencyKey: idempotencyKey,
		SourceCurrency: req.SourceCurrency,
		TargetCurrency: req.TargetCurrency,
		SourceAmount:   req.SourceAmount,
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
	writeJSON(w, status, result.Deal)
}

func (h *FxHandler) HandleGetDeal(w http.ResponseWriter, r *http.Request) {
	dealID := mux.Vars(r)["dealId"]

	deal, signal, err := h.fxService.GetDeal(r.Context(), dealID, utils.GetParticipantID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	setCacheSignal(w, signal)
	writeJSON(w, http.StatusOK, deal)
}
