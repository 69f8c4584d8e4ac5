// Package audit persists one record per feature derivation run so every
// produced feature vector can be traced back to the exact configuration and
// outcome of the run that made it.
package audit

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type RunRecord struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey;column:id"`
	Status       string            `gorm:"column:status"`
	Config       datatypes.JSONMap `gorm:"column:config"`
	Summary      datatypes.JSONMap `gorm:"column:summary"`
	ErrorMessage string            `gorm:"column:error_message"`
	CreatedAt    time.Time         `gorm:"column:created_at"`
	UpdatedAt    time.Time         `gorm:"column:updated_at"`
	CompletedAt  *time.Time        `gorm:"column:completed_at"`
}

func (RunRecord) TableName() string {
	return "feature_runs"
}
