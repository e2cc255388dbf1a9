package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/echo-go-api/internal/models"
)

// SweepRunRepository stores sweep outcomes.
type SweepRunRepository interface {
	Create(ctx context.Context, run *models.SweepRun) error
	ListRecent(ctx context.Context, limit int) ([]models.SweepRun, error)
}

type sweepRunRepository struct {
	db *gorm.DB
}

// NewSweepRunRepository constructs a GORM-backed sweep run repository.
func NewSweepRunRepository(db *gorm.DB) SweepRunRepository {
	return &sweepRunRepository{db: db}
}

func (r *sweepRunRepository) Create(ctx context.Context, run *models.SweepRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *sweepRunRepository) ListRecent(ctx context.Context, limit int) ([]models.SweepRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var runs []models.SweepRun
	if err := r.db.WithContext(ctx).Order("started_at DESC").Order("id DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
