package stores

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/obfin/openfinance/models"
)

// BulkFileStore persists bulk files and their reports. Absence is reported
// as (nil, nil) so services own the not-found decision.
type BulkFileStore struct {
	BaseStore
}

func CreateBulkFileStore(db *gorm.DB) *BulkFileStore {
	return &BulkFileStore{BaseStore: BaseStore{db: db}}
}

func (s *BulkFileStore) SaveFile(ctx context.Context, file *models.BulkFile) error {
	return s.GetDB(ctx).Save(file).Error
}

func (s *BulkFileStore) FindFileByID(ctx context.Context, id string) (*models.BulkFile, error) {
	var file models.BulkFile
	err := s.GetDB(ctx).First(&file, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func (s *BulkFileStore) SaveReport(ctx context.Context, report *models.BulkFileReport) error {
	return s.GetDB(ctx).Save(report).Error
}

func (s *BulkFileStore) FindReportByFileID(ctx context.Context, fileID string) (*models.BulkFileReport, error) {
	var report models.BulkFileReport
	err := s.GetDB(ctx).First(&report, "file_id = ?", fileID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}
