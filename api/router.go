package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/obfin/openfinance/middleware"
	"github.com/obfin/openfinance/security"
)

type Handlers struct {
	Bulk      *BulkHandler
	Vrp       *VrpHandler
	Fx        *FxHandler
	Insurance *InsuranceHandler
	Account   *AccountHandler
}

// CreateRouter assembles the /v1 surface. Health is public; everything
// else sits behind authentication and per-participant rate limiting.
func CreateRouter(handlers Handlers, jwtManager *security.JWTManager, limiter *security.TieredRateLimiter) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.InteractionIDMiddleware)
	router.Use(middleware.RecoveryMiddleware)
	router.Use(middleware.LoggingMiddleware)

	router.HandleFunc("/health", HealthCheckHandler).Methods(http.MethodGet)

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.Use(middleware.AuthMiddleware(jwtManager))
	v1.Use(middleware.RateLimitMiddleware(limiter))

	v1.HandleFunc("/bulk-payments/files", handlers.Bulk.HandleUpload).Methods(http.MethodPost)
	v1.HandleFunc("/bulk-payments/files/{fileId}", handlers.Bulk.HandleStatus).Methods(http.MethodGet)
	v1.HandleFunc("/bulk-payments/files/{fileId}/report", handlers.Bulk.HandleReport).Methods(http.MethodGet)

	v1.HandleFunc("/vrp/consents", handlers.Vrp.HandleCreateConsent).Methods(http.MethodPost)
	v1.HandleFunc("/vrp/consents/{consentId}", handlers.Vrp.HandleGetConsent).Methods(http.MethodGet)
	v1.HandleFunc("/vrp/consents/{consentId}", handlers.Vrp.HandleRevokeConsent).Methods(http.MethodDelete)
	v1.HandleFunc("/vrp/payments", handlers.Vrp.HandleSubmitPayment).Methods(http.MethodPost)
	v1.HandleFunc("/vrp/payments/{paymentId}", handlers.Vrp.HandleGetPayment).Methods(http.MethodGet)

	v1.HandleFunc("/fx/quotes", handlers.Fx.HandleCreateQuote).Methods(http.MethodPost)
	v1.HandleFunc("/fx/quotes/{quoteId}", handlers.Fx.HandleGetQuote).Methods(http.MethodGet)
	v1.HandleFunc("/fx/quotes/{quoteId}/deals", handlers.Fx.HandleBookDeal).Methods(http.MethodPost)
	v1.HandleFunc("/fx/deals/{dealId}", handlers.Fx.HandleGetDeal).Methods(http.MethodGet)

	v1.HandleFunc("/insurance/quotes", handlers.Insurance.HandleCreateQuote).Methods(http.MethodPost)
	v1.HandleFunc("/insurance/quotes/{quoteId}/accept", handlers.Insurance.HandleAcceptQuote).Methods(http.MethodPost)

	v1.HandleFunc("/accounts", handlers.Account.HandleListAccounts).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{accountId}", handlers.Account.HandleGetAccount).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{accountId}/balances", handlers.Account.HandleGetBalances).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{accountId}/transactions", handlers.Account.HandleListTransactions).Methods(http.MethodGet)

	return router
}
