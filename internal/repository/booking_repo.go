package repository

import (
	"context"
	"time"

	"fieldserve/internal/domain"
	"fieldserve/internal/models"

	"gorm.io/gorm"
)

// BookingFilter narrows List. Nil fields are not applied.
type BookingFilter struct {
	ClientID *uint
	WorkerID *uint
	Status   *domain.Status
	Limit    int
	Offset   int
}

// StatusSwap is a compare-and-swap on a booking's status.
// The row only changes if its status is still one of From at write time.
type StatusSwap struct {
	BookingID uint
	From      []domain.Status
	// ClaimBy, when set, also requires the row to be unassigned or assigned to this worker.
	ClaimBy *uint
	// AssignedTo, when set, requires the row to be assigned to exactly this worker.
	AssignedTo *uint
	Set        map[string]interface{}
}

type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) CreateAddress(ctx context.Context, a *models.Address) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *BookingRepository) Create(ctx context.Context, b *models.Booking) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *BookingRepository) GetByID(ctx context.Context, id uint) (*models.Booking, error) {
	var b models.Booking
	err := r.db.WithContext(ctx).Preload("Address").First(&b, id).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepository) List(ctx context.Context, f BookingFilter) ([]models.Booking, error) {
	q := r.db.WithContext(ctx).Model(&models.Booking{}).Preload("Address")
	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}
	if f.WorkerID != nil {
		q = q.Where("worker_id = ?", *f.WorkerID)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	var list []models.Booking
	err := q.Order("selected_time DESC, id DESC").Limit(f.Limit).Offset(f.Offset).Find(&list).Error
	return list, err
}

// Swap applies s and reports whether the row matched.
func (r *BookingRepository) Swap(ctx context.Context, s StatusSwap) (bool, error) {
	from := make([]string, len(s.From))
	for i, st := range s.From {
		from[i] = string(st)
	}
	q := r.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND status IN ?", s.BookingID, from)
	if s.ClaimBy != nil {
		q = q.Where("(worker_id IS NULL OR worker_id = ?)", *s.ClaimBy)
	}
	if s.AssignedTo != nil {
		q = q.Where("worker_id = ?", *s.AssignedTo)
	}
	set := make(map[string]interface{}, len(s.Set)+1)
	for k, v := range s.Set {
		set[k] = v
	}
	set["updated_at"] = time.Now().UTC()
	res := q.Updates(set)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CountBlocking counts accepted or in-progress bookings of the worker starting
// in [from, to). excludeID skips one booking.
func (r *BookingRepository) CountBlocking(ctx context.Context, workerID uint, from, to time.Time, excludeID uint) (int64, error) {
	var n int64
	q := r.db.WithContext(ctx).Model(&models.Booking{}).
		Where("worker_id = ? AND status IN ?", workerID, []string{string(domain.StatusAccepted), string(domain.StatusInProgress)}).
		Where("selected_time >= ? AND selected_time < ?", from.UTC(), to.UTC())
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&n).Error
	return n, err
}

// SetPaymentCompleted flips the paid flag only if it currently equals !paid.
func (r *BookingRepository) SetPaymentCompleted(ctx context.Context, id uint, paid bool) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND payment_completed = ?", id, !paid).
		Updates(map[string]interface{}{"payment_completed": paid, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkReviewed sets has_review once. False means it was already set.
func (r *BookingRepository) MarkReviewed(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND has_review = ?", id, false).
		Updates(map[string]interface{}{"has_review": true, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *BookingRepository) SetComplaint(ctx context.Context, id, complaintID uint) error {
	return r.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"complaint_id": complaintID, "updated_at": time.Now().UTC()}).Error
}
