package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrRunNotFound = errors.New("feature run not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&RunRecord{})
}

// RecordCompleted persists the outcome of a successful run under the run's
// own ID.
func (r *Repository) RecordCompleted(ctx context.Context, runID uuid.UUID, cfg, summary map[string]interface{}) error {
	now := time.Now().UTC()
	record := RunRecord{
		ID:          runID,
		Status:      StatusCompleted,
		Config:      datatypes.JSONMap(cfg),
		Summary:     datatypes.JSONMap(summary),
		CreatedAt:   now,
		UpdatedAt:   now,
		CompletedAt: &now,
	}
	return r.db.WithContext(ctx).Create(&record).Error
}

// RecordFailed persists an aborted run. Aborted runs never produce output, so
// the record carries only the configuration and the error.
func (r *Repository) RecordFailed(ctx context.Context, cfg map[string]interface{}, errorMessage string) error {
	now := time.Now().UTC()
	record := RunRecord{
		ID:           uuid.New(),
		Status:       StatusFailed,
		Config:       datatypes.JSONMap(cfg),
		ErrorMessage: errorMessage,
		CreatedAt:    now,
		UpdatedAt:    now,
		CompletedAt:  &now,
	}
	return r.db.WithContext(ctx).Create(&record).Error
}

func (r *Repository) Get(ctx context.Context, runID uuid.UUID) (*RunRecord, error) {
	var record RunRecord
	result := r.db.WithContext(ctx).First(&record, "id = ?", runID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	return &record, result.Error
}

func (r *Repository) List(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []RunRecord
	result := r.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&records)
	return records, result.Error
}
