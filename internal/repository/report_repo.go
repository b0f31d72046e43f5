package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/match-relay/internal/db"
)

type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(database *gorm.DB) *ReportRepository {
	return &ReportRepository{db: database}
}

func (r *ReportRepository) Create(ctx context.Context, reporterID, reportedID uint64, reason string) (*db.Report, error) {
	rep := &db.Report{
		ReporterID: reporterID,
		ReportedID: reportedID,
		Reason:     reason,
		Status:     db.ReportPending,
	}
	if err := r.db.WithContext(ctx).Create(rep).Error; err != nil {
		return nil, err
	}
	return rep, nil
}

func (r *ReportRepository) CountPending(ctx context.Context, reportedID uint64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&db.Report{}).
		Where("reported_id = ? AND status = ?", reportedID, db.ReportPending).
		Count(&n).Error
	return n, err
}
