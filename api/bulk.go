package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/obfin/openfinance/models"
	"github.com/obfin/openfinance/services"
	"github.com/obfin/openfinance/utils"
)

type BulkHandler struct {
	bulkService *services.BulkService
}

func CreateBulkHandler(bulkService *services.BulkService) *BulkHandler {
	return &BulkHandler{bulkService: bulkService}
}

type uploadBulkFileRequest struct {
	FileName      string `json:"file_name"`
	Content       string `json:"content"`
	ContentHash   string `json:"content_hash"`
	IntegrityMode string `json:"integrity_mode"`
}

func (h *BulkHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	idempotencyKey, ok := requireIdempotencyKey(w, r)
	if !ok {
		return
	}
	consentID, ok := requireConsentID(w, r)
	if !ok {
		return
	}

	var req uploadBulkFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	mode := models.BulkIntegrityMode(req.IntegrityMode)
	if mode != models.IntegrityPartialRejection && mode != models.IntegrityFullRejection {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid integrity mode"})
		return
	}

	result, err := h.bulkService.UploadFile(r.Context(), services.UploadBulkFileCommand{
		ConsentID:      consentID,
		ParticipantID:  utils.GetParticipantID(r.Context()),
		IdempotencyKey: idempotencyKey,
		FileName:       req.FileName,
		Content:        req.Content,
		ContentHash:    req.ContentHash,
		IntegrityMode:  mode,
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
	writeJSON(w, status, result)
}

func (h *BulkHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	fileID := mux.Vars(r)["fileId"]

	file, err := h.bulkService.GetFileStatus(r.Context(), fileID, utils.GetParticipantID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, file)
}

func (h *BulkHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	fileID := mux.Vars(r)["fileId"]

	report, signal, err := h.bulkService.GetFileReport(r.Context(), fileID, utils.GetParticipantID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	setCacheSignal(w, signal)
	writeJSON(w, http.StatusOK, report)
}
