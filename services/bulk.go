package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/obfin/openfinance/models"
	"github.com/obfin/openfinance/stores"
	"github.com/obfin/openfinance/utils"
)

const bulkFileHeader = "instruction_id,payee_iban,amount"

// BulkFilePort persists bulk file aggregates and their reports.
type BulkFilePort interface {
	SaveFile(ctx context.Context, file *models.BulkFile) error
	FindFileByID(ctx context.Context, id string) (*models.BulkFile, error)
	SaveReport(ctx context.Context, report *models.BulkFileReport) error
	FindReportByFileID(ctx context.Context, fileID string) (*models.BulkFileReport, error)
}

type BulkSettings struct {
	IdempotencyTTL        time.Duration
	CacheTTL              time.Duration
	StatusPollsToComplete int
	MaxFileSizeBytes      int
}

// BulkService implements file upload with per-item integrity checking,
// poll-driven status advance, and cached report reads.
type BulkService struct {
	gate        *ConsentGate
	files       BulkFilePort
	idempotency *stores.IdempotencyStore
	cache       stores.CacheBackend
	clock       utils.Clock
	settings    BulkSettings
	logger      *utils.Logger
}

func CreateBulkService(gate *ConsentGate, files BulkFilePort, idempotency *stores.IdempotencyStore, cache stores.CacheBackend, clock utils.Clock, settings BulkSettings) *BulkService {
	return &BulkService{
		gate:        gate,
		files:       files,
		idempotency: idempotency,
		cache:       cache,
		clock:       clock,
		settings:    settings,
		logger:      utils.CreateLogger("bulk-payments"),
	}
}

type UploadBulkFileCommand struct {
	ConsentID      string
	ParticipantID  string
	IdempotencyKey string
	FileName       string
	Content        string
	ContentHash    string
	IntegrityMode  models.BulkIntegrityMode
}

func (c *UploadBulkFileCommand) requestHash() string {
	payload := strings.Join([]string{c.ConsentID, string(c.IntegrityMode), c.FileName, c.Content}, "\n")
	return utils.HashPayload([]byte(payload))
}

// UploadFile runs the full write path: idempotency engine, consent gate,
// payload validation, per-item parsing, then persists the file, its report
// and the idempotency record.
func (s *BulkService) UploadFile(ctx context.Context, cmd UploadBulkFileCommand) (*models.BulkUploadResult, error) {
	now := s.clock.Now()
	requestHash := cmd.requestHash()

	if record := s.idempotency.Find(cmd.IdempotencyKey, cmd.ParticipantID, now); record != nil {
		if !record.Matches(requestHash) {
			return nil, utils.ErrIdempotencyConflict
		}
		return s.replayUpload(ctx, record)
	}

	if _, err := s.gate.Authorize(cmd.ConsentID, cmd.ParticipantID, models.ScopeBulkPayments, "", now); err != nil {
		return nil, err
	}
	if err := s.validatePayload(cmd); err != nil {
		return nil, err
	}

	parsed, err := parseBulkContent(cmd.Content, cmd.IntegrityMode)
	if err != nil {
		return nil, err
	}

	file := &models.BulkFile{
		ID:             "FILE-BULK-" + uuid.NewString(),
		ConsentID:      cmd.ConsentID,
		ParticipantID:  cmd.ParticipantID,
		IdempotencyKey: cmd.IdempotencyKey,
		ContentHash:    cmd.ContentHash,
		FileName:       cmd.FileName,
		IntegrityMode:  cmd.IntegrityMode,
		Status:         models.BulkStatusProcessing,
		TargetStatus:   parsed.targetStatus,
		TotalCount:     parsed.totalCount,
		AcceptedCount:  parsed.acceptedCount,
		RejectedCount:  parsed.rejectedCount,
		TotalAmount:    parsed.totalAmount,
		CreatedAt:      now,
	}
	if err := s.files.SaveFile(ctx, file); err != nil {
		return nil, err
	}

	report := &models.BulkFileReport{
		FileID:         file.ID,
		Status:         parsed.targetStatus,
		TotalCount:     parsed.totalCount,
		AcceptedCount:  parsed.acceptedCount,
		RejectedCount:  parsed.rejectedCount,
		AcceptedAmount: parsed.acceptedAmount,
		Items:          parsed.items,
		GeneratedAt:    now,
	}
	if err := s.files.SaveReport(ctx, report); err != nil {
		return nil, err
	}

	s.idempotency.Save(&models.IdempotencyRecord{
		Key:            cmd.IdempotencyKey,
		ParticipantID:  cmd.ParticipantID,
		RequestHash:    requestHash,
		ResultID:       file.ID,
		StatusSnapshot: string(file.Status),
		ExpiresAt:      now.Add(s.settings.IdempotencyTTL),
		CreatedAt:      now,
	})

	s.logger.Info(ctx, "bulk file accepted for processing", map[string]interface{}{
		"file_id":  file.ID,
		"total":    file.TotalCount,
		"rejected": file.RejectedCount,
	})

	return &models.BulkUploadResult{
		FileID:        file.ID,
		Status:        file.Status,
		AcceptedCount: file.AcceptedCount,
		RejectedCount: file.RejectedCount,
		CreatedAt:     file.CreatedAt,
	}, nil
}

func (s *BulkService) replayUpload(ctx context.Context, record *models.IdempotencyRecord) (*models.BulkUploadResult, error) {
	file, err := s.files.FindFileByID(ctx, record.ResultID)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, utils.NotFoundError("Bulk file not found for idempotency record")
	}
	return &models.BulkUploadResult{
		FileID:        file.ID,
		Status:        file.Status,
		AcceptedCount: file.AcceptedCount,
		RejectedCount: file.RejectedCount,
		CreatedAt:     file.CreatedAt,
		Replayed:      true,
	}, nil
}

// GetFileStatus advances the simulated settlement by one poll and returns
// the current aggregate. Terminal files are returned unchanged.
func (s *BulkService) GetFileStatus(ctx context.Context, fileID, participantID string) (*models.BulkFile, error) {
	file, err := s.files.FindFileByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, utils.ErrResourceNotFound
	}
	if !file.BelongsTo(participantID) {
		return nil, utils.ErrParticipantMismatch
	}

	if file.AdvanceProcessing(s.settings.StatusPollsToComplete, s.clock.Now()) {
		if err := s.files.SaveFile(ctx, file); err != nil {
			return nil, err
		}
	}
	return file, nil
}

// GetFileReport serves the per-item report through the TTL cache.
func (s *BulkService) GetFileReport(ctx context.Context, fileID, participantID string) (*models.BulkFileReport, models.CacheSignal, error) {
	now := s.clock.Now()
	cacheKey := utils.CacheKey("bulk-report", fileID, participantID)

	var cached models.BulkFileReport
	hit, err := s.cache.Get(ctx, cacheKey, now, &cached)
	if err != nil {
		return nil, models.CacheMiss, err
	}
	if hit {
		return &cached, models.CacheHit, nil
	}

	file, err := s.files.FindFileByID(ctx, fileID)
	if err != nil {
		return nil, models.CacheMiss, err
	}
	if file == nil {
		return nil, models.CacheMiss, utils.ErrResourceNotFound
	}
	if !file.BelongsTo(participantID) {
		return nil, models.CacheMiss, utils.ErrParticipantMismatch
	}

	report, err := s.files.FindReportByFileID(ctx, fileID)
	if err != nil {
		return nil, models.CacheMiss, err
	}
	if report == nil {
		return nil, models.CacheMiss, utils.NotFoundError("Bulk report not found")
	}

	if err := s.cache.Put(ctx, cacheKey, report, s.settings.CacheTTL); err != nil {
		return nil, models.CacheMiss, err
	}
	return report, models.CacheMiss, nil
}

func (s *BulkService) validatePayload(cmd UploadBulkFileCommand) error {
	if strings.TrimSpace(cmd.Content) == "" {
		return utils.ErrEmptyPayload
	}
	if len(cmd.Content) > s.settings.MaxFileSizeBytes {
		return utils.ErrPayloadTooLarge
	}
	if utils.HashPayload([]byte(cmd.Content)) != cmd.ContentHash {
		return utils.ErrIntegrityFailure
	}
	return nil
}

type parsedBulkFile struct {
	totalCount     int
	acceptedCount  int
	rejectedCount  int
	totalAmount    decimal.Decimal
	acceptedAmount decimal.Decimal
	items          models.BulkItemResults
	targetStatus   models.BulkFileStatus
}

// parseBulkContent validates every row and derives the file's target
// status. Schema violations abort the whole upload; an unconvincing IBAN
// only rejects its row, with the integrity mode deciding how far that
// rejection spreads.
func parseBulkContent(content string, mode models.BulkIntegrityMode) (*parsedBulkFile, error) {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	if len(lines) < 2 {
		return nil, utils.ErrEmptyPayload
	}
	if strings.ToLower(strings.TrimSpace(lines[0])) != bulkFileHeader {
		return nil, utils.ErrSchemaValidation
	}

	parsed := &parsedBulkFile{
		totalAmount:    decimal.Zero,
		acceptedAmount: decimal.Zero,
	}

	logicalLine := 0
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		logicalLine++

		columns := strings.Split(line, ",")
		if len(columns) != 3 {
			return nil, utils.ErrSchemaValidation
		}

		instructionID := strings.TrimSpace(columns[0])
		payeeIBAN := strings.TrimSpace(columns[1])
		amountRaw := strings.TrimSpace(columns[2])
		if instructionID == "" || payeeIBAN == "" || amountRaw == "" {
			return nil, utils.ErrSchemaValidation
		}

		amount, err := decimal.NewFromString(amountRaw)
		if err != nil || !utils.IsPositiveAmount(amount) {
			return nil, utils.ErrSchemaValidation
		}

		parsed.totalAmount = parsed.totalAmount.Add(amount)

		if !utils.IsLikelyIBAN(payeeIBAN) {
			parsed.items = append(parsed.items, models.BulkItemResult{
				LineNumber:    logicalLine,
				InstructionID: instructionID,
				PayeeIBAN:     payeeIBAN,
				Amount:        amount,
				Status:        models.BulkItemRejected,
				ErrorMessage:  "Invalid IBAN",
			})
			parsed.rejectedCount++
			continue
		}

		parsed.items = append(parsed.items, models.BulkItemResult{
			LineNumber:    logicalLine,
			InstructionID: instructionID,
			PayeeIBAN:     payeeIBAN,
			Amount:        amount,
			Status:        models.BulkItemAccepted,
		})
		parsed.acceptedCount++
		parsed.acceptedAmount = parsed.acceptedAmount.Add(amount)
	}

	parsed.totalCount = parsed.acceptedCount + parsed.rejectedCount
	if parsed.totalCount == 0 {
		return nil, utils.ErrEmptyPayload
	}

	if mode == models.IntegrityFullRejection && parsed.rejectedCount > 0 {
		for i := range parsed.items {
			if parsed.items[i].Status == models.BulkItemAccepted {
				parsed.items[i].Status = models.BulkItemRejected
				parsed.items[i].ErrorMessage = "Rejected due to full rejection mode"
			}
		}
		parsed.acceptedCount = 0
		parsed.rejectedCount = parsed.totalCount
		parsed.acceptedAmount = decimal.Zero
		parsed.targetStatus = models.BulkStatusRejected
		return parsed, nil
	}

	switch {
	case parsed.rejectedCount == 0:
		parsed.targetStatus = models.BulkStatusCompleted
	case parsed.acceptedCount == 0:
		parsed.targetStatus = models.BulkStatusRejected
	default:
		parsed.targetStatus = models.BulkStatusPartiallyAccepted
	}
	return parsed, nil
}
