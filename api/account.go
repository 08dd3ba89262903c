package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/obfin/openfinance/services"
	"github.com/obfin/openfinance/utils"
)

type AccountHandler struct {
	accountService *services.AccountService
}

func CreateAccountHandler(accountService *services.AccountService) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

func (h *AccountHandler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	consentID, ok := requireConsentID(w, r)
	if !ok {
		return
	}

	accounts, signal, err := h.accountService.ListAccounts(r.Context(), consentID, utils.GetParticipantID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	setCacheSignal(w, signal)
	writeJSON(w, http.StatusOK, accounts)
}

// HandleGetAccount supports conditional GET: a matching If-None-Match
// short-circuits to 304 without recomputing the representation.
func (h *AccountHandler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	consentID, ok := requireConsentID(w, r)
	if !ok {
		return
	}
	accountID := mux.Vars(r)["accountId"]

	account, signal, etag, err := h.accountService.GetAccount(r.Context(), consentID, utils.GetParticipantID(r.Context()), accountID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set(HeaderETag, `"`+etag+`"`)
	setCacheSignal(w, signal)
	if r.Header.Get(HeaderIfNoneMatch) == `"`+etag+`"` {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *AccountHandler) HandleGetBalances(w http.ResponseWriter, r *http.Request) {
	consentID, ok := requireConsentID(w, r)
	if !ok {
		return
	}
	accountID := mux.Vars(r)["accountId"]

	balance, signal, err := h.accountService.GetBalances(r.Context(), consentID, utils.GetParticipantID(r.Context()), accountID)
	if err != nil {
		writeError(w, err)
		return
	}

	setCacheSignal(w, signal)
	writeJSON(w, http.StatusOK, balance)
}

func (h *AccountHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	consentID, ok := requireConsentID(w, r)
	if !ok {
		return
	}
	accountID := mux.Vars(r)["accountId"]

	query := services.TransactionQuery{
		ConsentID:     consentID,
		ParticipantID: utils.GetParticipantID(r.Context()),
		AccountID:     accountID,
	}
	params := r.URL.Query()
	if v := params.Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			query.From = t
		}
	}
	if v := params.Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			query.To = t
		}
	}
	if v := params.Get("page"); v != "" {
		query.Page, _ = strconv.Atoi(v)
	}
	if v := params.Get("page_size"); v != "" {
		query.PageSize, _ = strconv.Atoi(v)
	}

	page, signal, err := h.accountService.ListTransactions(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}

	setCacheSignal(w, signal)
	writeJSON(w, http.StatusOK, page)
}
