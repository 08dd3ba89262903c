package api

import (
	"encoding/json"
	"net/http"

	"github.com/obfin/openfinance/models"
	"github.com/obfin/openfinance/utils"
)

// Header contract shared by every use case.
const (
	HeaderIdempotencyKey    = "X-Idempotency-Key"
	HeaderIdempotencySignal = "X-OF-Idempotency"
	HeaderCacheSignal       = "X-OF-Cache"
	HeaderConsentID         = "X-Consent-ID"
	HeaderETag              = "ETag"
	HeaderIfNoneMatch       = "If-None-Match"
)

type ErrorResponse struct {
	Error string          `json:"error"`
	Kind  utils.ErrorKind `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := utils.KindOf(err)
	if kind == utils.KindInternal {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}
	writeJSON(w, utils.HTTPStatus(err), ErrorResponse{Error: err.Error(), Kind: kind})
}

func setIdempotencySignal(w http.ResponseWriter, replayed bool) {
	if replayed {
		w.Header().Set(HeaderIdempotencySignal, string(models.CacheHit))
		return
	}
	w.Header().Set(HeaderIdempotencySignal, string(models.CacheMiss))
}

func setCacheSignal(w http.ResponseWriter, signal models.CacheSignal) {
	w.Header().Set(HeaderCacheSignal, string(signal))
}

// requireWriteHeaders pulls the idempotency key and consent id every write
// endpoint needs; a missing key is a bad request before any processing.
func requireIdempotencyKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := r.Header.Get(HeaderIdempotencyKey)
	if key == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Missing " + HeaderIdempotencyKey + " header"})
		return "", false
	}
	return key, true
}

func requireConsentID(w http.ResponseWriter, r *http.Request) (string, bool) {
	consentID := r.Header.Get(HeaderConsentID)
	if consentID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Missing " + HeaderConsentID + " header"})
		return "", false
	}
	return consentID, true
}
