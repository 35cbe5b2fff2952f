package repository

import (
	"context"

	"fieldserve/internal/models"

	"gorm.io/gorm"
)

type ReviewRepository struct {
	db *gorm.DB
}

func NewReviewRepository(db *gorm.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

func (r *ReviewRepository) Create(ctx context.Context, rv *models.Review) error {
	return r.db.WithContext(ctx).Create(rv).Error
}

func (r *ReviewRepository) ExistsForBooking(ctx context.Context, bookingID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Review{}).Where("booking_id = ?", bookingID).Count(&n).Error
	return n > 0, err
}

func (r *ReviewRepository) ListByWorker(ctx context.Context, workerID uint, limit, offset int) ([]models.Review, error) {
	if limit <= 0 {
		limit = 20
	}
	var list []models.Review
	err := r.db.WithContext(ctx).Where("ratee_id = ?", workerID).
		Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

// Aggregate returns the mean rating and review count for the worker.
func (r *ReviewRepository) Aggregate(ctx context.Context, workerID uint) (float64, int64, error) {
	var agg struct {
		Avg   *float64
		Count int64
	}
	err := r.db.WithContext(ctx).Model(&models.Review{}).
		Select("AVG(rating) AS avg, COUNT(*) AS count").
		Where("ratee_id = ?", workerID).
		Scan(&agg).Error
	if err != nil {
		return 0, 0, err
	}
	if agg.Avg == nil {
		return 0, agg.Count, nil
	}
	return *agg.Avg, agg.Count, nil
}
