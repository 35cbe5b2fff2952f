package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"fieldserve/internal/domain"
	"fieldserve/internal/models"
	"fieldserve/internal/repository"
	"fieldserve/pkg/logger"

	"gorm.io/gorm"
)

// Per-item bounds keep quantity times price and the batch sum well inside int64.
const (
	maxItemsPerBatch  = 100
	maxItemQuantity   = 10000
	maxItemPriceCents = 10_000_000_000
)

type ProposeItemsInput struct {
	Items           []models.LineItem
	AdditionalNotes string
}

// PricingService is the extra-items ledger of a booking.
type PricingService struct {
	store  *repository.Store
	notify Notifier
	log    logger.ILogger
}

func NewPricingService(store *repository.Store, notify Notifier, log logger.ILogger) *PricingService {
	return &PricingService{store: store, notify: notify, log: log}
}

// ProposeItems records a batch of extras and moves the booking to awaiting.
// The item row, the new total and the status change commit together.
func (s *PricingService) ProposeItems(ctx context.Context, actor domain.Actor, bookingID uint, in ProposeItemsInput) (*models.Booking, *models.OrderItem, error) {
	items, err := normalizeItems(in.Items)
	if err != nil {
		return nil, nil, err
	}
	tr := domain.Transitions[domain.ActionProposeItems]
	if !tr.Permits(actor.Role) {
		return nil, nil, domain.Forbidden("only the assigned worker can propose items")
	}
	b, err := s.store.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, nil, lookupErr(err, "booking")
	}
	if !b.AssignedTo(actor.UserID) {
		return nil, nil, domain.Forbidden("not the assigned worker")
	}
	if !tr.Allows(b.Status) {
		return nil, nil, domain.WrongStatus(domain.ActionProposeItems, b.Status)
	}

	sum := models.SumItems(items)
	if sum > math.MaxInt64-b.TotalAmountCents {
		return nil, nil, domain.Validation("items would overflow the booking total")
	}
	oi := &models.OrderItem{
		BookingID:       b.ID,
		Items:           items,
		AdditionalNotes: strings.TrimSpace(in.AdditionalNotes),
		TotalCents:      sum,
	}
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Items.Create(ctx, oi); err != nil {
			return fmt.Errorf("create order item: %w", err)
		}
		ok, err := tx.Bookings.Swap(ctx, repository.StatusSwap{
			BookingID:  b.ID,
			From:       tr.From,
			AssignedTo: &actor.UserID,
			Set: map[string]interface{}{
				"status":             tr.To,
				"total_amount_cents": gorm.Expr("total_amount_cents + ?", sum),
				"work_ended_at":      time.Now().UTC(),
				"items_approved":     false,
			},
		})
		if err != nil {
			return fmt.Errorf("apply items: %w", err)
		}
		if !ok {
			cur, err := tx.Bookings.GetByID(ctx, b.ID)
			if err != nil {
				return lookupErr(err, "booking")
			}
			return domain.LostRace(domain.ActionProposeItems, cur.Status)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.log.Info("extra items proposed", logger.Uint("booking_id", b.ID), logger.Int64("amount_cents", sum), logger.Int("items", len(items)))
	s.notify.Enqueue(Task{
		UserID: b.ClientID, Type: domain.NotifyItemsProposed, BookingID: b.ID,
		Title: "Extra items proposed",
		Body:  fmt.Sprintf("Your worker added %d item(s) for review", len(items)),
		Data:  map[string]interface{}{"order_item_id": oi.ID, "amount_cents": sum},
	})
	updated, err := s.store.Bookings.GetByID(ctx, b.ID)
	if err != nil {
		return nil, nil, lookupErr(err, "booking")
	}
	return updated, oi, nil
}

// ApproveItems verifies every pending item and completes the booking.
func (s *PricingService) ApproveItems(ctx context.Context, actor domain.Actor, bookingID uint) (*models.Booking, error) {
	tr := domain.Transitions[domain.ActionApproveItems]
	if !tr.Permits(actor.Role) {
		return nil, domain.Forbidden("only the client or an admin can approve items")
	}
	b, err := s.store.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, lookupErr(err, "booking")
	}
	if !actor.IsAdmin() && b.ClientID != actor.UserID {
		return nil, domain.Forbidden("not the client of this booking")
	}
	if b.Status == domain.StatusCompleted && b.ItemsApproved {
		return b, nil
	}
	if !tr.Allows(b.Status) {
		return nil, domain.WrongStatus(domain.ActionApproveItems, b.Status)
	}

	var verified int64
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		ok, err := tx.Bookings.Swap(ctx, repository.StatusSwap{
			BookingID: b.ID,
			From:      tr.From,
			Set:       map[string]interface{}{"status": tr.To, "items_approved": true},
		})
		if err != nil {
			return fmt.Errorf("approve items: %w", err)
		}
		if !ok {
			cur, err := tx.Bookings.GetByID(ctx, b.ID)
			if err != nil {
				return lookupErr(err, "booking")
			}
			return domain.LostRace(domain.ActionApproveItems, cur.Status)
		}
		verified, err = tx.Items.VerifyPending(ctx, b.ID)
		if err != nil {
			return fmt.Errorf("verify items: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("extra items approved", logger.Uint("booking_id", b.ID), logger.Int64("verified", verified))
	if b.WorkerID != nil {
		s.notify.Enqueue(Task{
			UserID: *b.WorkerID, Type: domain.NotifyBookingCompleted, BookingID: b.ID,
			Title: "Items approved", Body: "The client approved the extra items; the booking is complete",
		})
	}
	return s.store.Bookings.GetByID(ctx, b.ID)
}

func (s *PricingService) ListItems(ctx context.Context, actor domain.Actor, bookingID uint) ([]models.OrderItem, error) {
	b, err := s.store.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, lookupErr(err, "booking")
	}
	if !actor.IsAdmin() && !b.IsParticipant(actor.UserID) {
		return nil, domain.Forbidden("not a participant of this booking")
	}
	list, err := s.store.Items.ListByBooking(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return list, nil
}

func normalizeItems(in []models.LineItem) ([]models.LineItem, error) {
	if len(in) == 0 {
		return nil, domain.Validation("at least one item is required")
	}
	if len(in) > maxItemsPerBatch {
		return nil, domain.Validation("at most %d items per proposal", maxItemsPerBatch)
	}
	out := make([]models.LineItem, 0, len(in))
	for i, it := range in {
		it.Name = strings.TrimSpace(it.Name)
		if it.Name == "" {
			return nil, domain.Validation("item %d: name is required", i+1)
		}
		if it.Quantity == 0 {
			it.Quantity = 1
		}
		if it.Quantity < 0 || it.Quantity > maxItemQuantity {
			return nil, domain.Validation("item %d: quantity must be between 1 and %d", i+1, maxItemQuantity)
		}
		if it.PriceCents < 0 || it.PriceCents > maxItemPriceCents {
			return nil, domain.Validation("item %d: price is out of range", i+1)
		}
		out = append(out, it)
	}
	return out, nil
}
