package repository

import (
	"context"
	"time"

	"fieldserve/internal/models"

	"gorm.io/gorm"
)

type OrderItemRepository struct {
	db *gorm.DB
}

func NewOrderItemRepository(db *gorm.DB) *OrderItemRepository {
	return &OrderItemRepository{db: db}
}

func (r *OrderItemRepository) Create(ctx context.Context, it *models.OrderItem) error {
	return r.db.WithContext(ctx).Create(it).Error
}

func (r *OrderItemRepository) ListByBooking(ctx context.Context, bookingID uint) ([]models.OrderItem, error) {
	var list []models.OrderItem
	err := r.db.WithContext(ctx).Where("booking_id = ?", bookingID).Order("id ASC").Find(&list).Error
	return list, err
}

func (r *OrderItemRepository) CountByBooking(ctx context.Context, bookingID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.OrderItem{}).Where("booking_id = ?", bookingID).Count(&n).Error
	return n, err
}

// VerifyPending marks every unverified item of the booking verified.
func (r *OrderItemRepository) VerifyPending(ctx context.Context, bookingID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.OrderItem{}).
		Where("booking_id = ? AND verified = ?", bookingID, false).
		Updates(map[string]interface{}{"verified": true, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}
