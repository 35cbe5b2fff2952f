package repository

import (
	"context"
	"time"

	"fieldserve/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WorkerRepository covers the worker-owned rows: profile, availability, location and offerings.
type WorkerRepository struct {
	db *gorm.DB
}

func NewWorkerRepository(db *gorm.DB) *WorkerRepository {
	return &WorkerRepository{db: db}
}

func (r *WorkerRepository) CreateProfile(ctx context.Context, p *models.WorkerProfile) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *WorkerRepository) GetProfile(ctx context.Context, userID uint) (*models.WorkerProfile, error) {
	var p models.WorkerProfile
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *WorkerRepository) UpdateRating(ctx context.Context, userID uint, avg float64, count int64) error {
	return r.db.WithContext(ctx).Model(&models.WorkerProfile{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{"average_rating": avg, "rating_count": count}).Error
}

func (r *WorkerRepository) UpsertAvailability(ctx context.Context, a *models.WorkerAvailability) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"start_time", "end_time", "weekends", "updated_at"}),
	}).Create(a).Error
}

func (r *WorkerRepository) GetAvailability(ctx context.Context, userID uint) (*models.WorkerAvailability, error) {
	var a models.WorkerAvailability
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *WorkerRepository) UpsertLocation(ctx context.Context, userID uint, lat, lng float64) error {
	now := time.Now().UTC()
	loc := models.WorkerLocation{UserID: userID, Latitude: lat, Longitude: lng, LastUpdatedAt: now}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"latitude", "longitude", "last_updated_at", "updated_at"}),
	}).Create(&loc).Error
}

func (r *WorkerRepository) GetLocation(ctx context.Context, userID uint) (*models.WorkerLocation, error) {
	var loc models.WorkerLocation
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&loc).Error
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func (r *WorkerRepository) UpsertService(ctx context.Context, s *models.WorkerService) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "worker_id"}, {Name: "section_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"base_price_cents", "unit", "is_active", "updated_at"}),
	}).Create(s).Error
}

func (r *WorkerRepository) CreateSection(ctx context.Context, s *models.ServiceSection) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *WorkerRepository) GetSectionBySlug(ctx context.Context, slug string) (*models.ServiceSection, error) {
	var s models.ServiceSection
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}
