package repository

import (
	"context"
	"time"

	"fieldserve/internal/domain"
	"fieldserve/internal/models"

	"gorm.io/gorm"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uint) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).First(&p, id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByTransactionID(ctx context.Context, txnID string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).Where("transaction_id = ?", txnID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) ListByBooking(ctx context.Context, bookingID uint) ([]models.Payment, error) {
	var list []models.Payment
	err := r.db.WithContext(ctx).Where("booking_id = ?", bookingID).Order("created_at DESC, id DESC").Find(&list).Error
	return list, err
}

// FindPending returns the newest pending payment of method for the booking.
func (r *PaymentRepository) FindPending(ctx context.Context, bookingID uint, method string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).
		Where("booking_id = ? AND method = ? AND status = ?", bookingID, method, domain.PaymentPending).
		Order("id DESC").First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// LatestPaid returns the paid payment for the booking, if any.
func (r *PaymentRepository) LatestPaid(ctx context.Context, bookingID uint) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).
		Where("booking_id = ? AND status = ?", bookingID, domain.PaymentPaid).
		Order("paid_at DESC, id DESC").First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) CountPaid(ctx context.Context, bookingID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("booking_id = ? AND status = ?", bookingID, domain.PaymentPaid).Count(&n).Error
	return n, err
}

// Swap moves a payment to a new status only if it is still in one of from.
func (r *PaymentRepository) Swap(ctx context.Context, id uint, from []string, set map[string]interface{}) (bool, error) {
	updates := make(map[string]interface{}, len(set)+1)
	for k, v := range set {
		updates[k] = v
	}
	updates["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Delete removes a pending payment row. Only used to undo a failed gateway init.
func (r *PaymentRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Where("status = ?", domain.PaymentPending).
		Delete(&models.Payment{}, id).Error
}
