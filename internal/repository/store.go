package repository

import (
	"context"

	"gorm.io/gorm"
)

var (
	ErrNotFound  = gorm.ErrRecordNotFound
	ErrDuplicate = gorm.ErrDuplicatedKey
)

// Store bundles the repositories over one connection or transaction.
type Store struct {
	db *gorm.DB

	Users         *UserRepository
	Workers       *WorkerRepository
	Discovery     *DiscoveryRepository
	Bookings      *BookingRepository
	Payments      *PaymentRepository
	Items         *OrderItemRepository
	Reviews       *ReviewRepository
	Complaints    *ComplaintRepository
	Notifications *NotificationRepository
	Audit         *AuditLogRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:            db,
		Users:         NewUserRepository(db),
		Workers:       NewWorkerRepository(db),
		Discovery:     NewDiscoveryRepository(db),
		Bookings:      NewBookingRepository(db),
		Payments:      NewPaymentRepository(db),
		Items:         NewOrderItemRepository(db),
		Reviews:       NewReviewRepository(db),
		Complaints:    NewComplaintRepository(db),
		Notifications: NewNotificationRepository(db),
		Audit:         NewAuditLogRepository(db),
	}
}

// Transaction runs fn against a Store bound to one database transaction.
// Any error returned by fn rolls the whole unit back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}
