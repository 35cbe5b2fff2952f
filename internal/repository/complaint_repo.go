package repository

import (
	"context"
	"time"

	"fieldserve/internal/models"

	"gorm.io/gorm"
)

type ComplaintFilter struct {
	Status    string
	BookingID *uint
	Limit     int
	Offset    int
}

type ComplaintRepository struct {
	db *gorm.DB
}

func NewComplaintRepository(db *gorm.DB) *ComplaintRepository {
	return &ComplaintRepository{db: db}
}

func (r *ComplaintRepository) Create(ctx context.Context, c *models.Complaint) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *ComplaintRepository) GetByID(ctx context.Context, id uint) (*models.Complaint, error) {
	var c models.Complaint
	err := r.db.WithContext(ctx).First(&c, id).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ComplaintRepository) List(ctx context.Context, f ComplaintFilter) ([]models.Complaint, error) {
	q := r.db.WithContext(ctx).Model(&models.Complaint{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.BookingID != nil {
		q = q.Where("booking_id = ?", *f.BookingID)
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	var list []models.Complaint
	err := q.Order("created_at DESC, id DESC").Limit(f.Limit).Offset(f.Offset).Find(&list).Error
	return list, err
}

// Swap updates a complaint whose status is still one of from.
func (r *ComplaintRepository) Swap(ctx context.Context, id uint, from []string, set map[string]interface{}) (bool, error) {
	updates := make(map[string]interface{}, len(set)+1)
	for k, v := range set {
		updates[k] = v
	}
	updates["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&models.Complaint{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
