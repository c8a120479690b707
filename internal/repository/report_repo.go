package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/campusknot/internal/db"
)

type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(database *gorm.DB) *ReportRepository {
	return &ReportRepository{db: database}
}

func (r *ReportRepository) Create(ctx context.Context, report *db.Report) error {
	return r.db.WithContext(ctx).Create(report).Error
}

// ListAgainst returns reports filed against userID, newest first.
func (r *ReportRepository) ListAgainst(ctx context.Context, userID uint64) ([]db.Report, error) {
	var reports []db.Report
	err := r.db.WithContext(ctx).
		Where("reported_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&reports).Error
	return reports, err
}
