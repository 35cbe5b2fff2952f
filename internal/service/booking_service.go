package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fieldserve/internal/domain"
	"fieldserve/internal/models"
	"fieldserve/internal/repository"
	"fieldserve/pkg/logger"
)

type AddressInput struct {
	Street     string
	City       string
	Area       string
	PostalCode string
	Latitude   *float64
	Longitude  *float64
}

type CreateBookingInput struct {
	ClientEmail      string
	WorkerID         *uint // nil posts an open request any worker may accept
	SelectedTime     time.Time
	Address          AddressInput
	Description      string
	TotalAmountCents int64
}

// BookingService drives a booking through the transition table.
// Every status write is a compare-and-swap on the status read before it.
type BookingService struct {
	store  *repository.Store
	avail  *AvailabilityService
	notify Notifier
	log    logger.ILogger
}

func NewBookingService(store *repository.Store, avail *AvailabilityService, notify Notifier, log logger.ILogger) *BookingService {
	return &BookingService{store: store, avail: avail, notify: notify, log: log}
}

func (s *BookingService) Create(ctx context.Context, actor domain.Actor, in CreateBookingInput) (*models.Booking, error) {
	if in.TotalAmountCents < 0 {
		return nil, domain.Validation("total_amount must not be negative")
	}
	if in.SelectedTime.IsZero() {
		return nil, domain.Validation("selected_time is required")
	}
	if strings.TrimSpace(in.Address.Street) == "" {
		return nil, domain.Validation("address street is required")
	}
	email := strings.TrimSpace(in.ClientEmail)
	if email == "" {
		email = actor.Email
	}
	if !actor.IsAdmin() && !strings.EqualFold(email, actor.Email) {
		return nil, domain.Forbidden("bookings can only be created for yourself")
	}
	client, err := s.store.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, lookupErr(err, "client")
	}
	if !client.IsClient() {
		return nil, domain.Validation("%s is not a client account", email)
	}
	start := in.SelectedTime.UTC()

	if in.WorkerID != nil {
		w, err := s.store.Users.GetByID(ctx, *in.WorkerID)
		if err != nil {
			return nil, lookupErr(err, "worker")
		}
		if !w.IsWorker() {
			return nil, domain.NotFound("worker")
		}
		slot, err := s.avail.checkSlot(ctx, s.store, w.ID, start, 0)
		if err != nil {
			return nil, err
		}
		if !slot.Available {
			if slot.Reason == SlotConflict {
				return nil, domain.Conflict(slot.Message)
			}
			return nil, domain.Precondition(slot.Message)
		}
	}

	b := &models.Booking{
		ClientID:         client.ID,
		WorkerID:         in.WorkerID,
		SelectedTime:     start,
		Description:      strings.TrimSpace(in.Description),
		Status:           domain.StatusPending,
		TotalAmountCents: in.TotalAmountCents,
	}
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		addr := &models.Address{
			UserID:     client.ID,
			Street:     strings.TrimSpace(in.Address.Street),
			City:       in.Address.City,
			Area:       in.Address.Area,
			PostalCode: in.Address.PostalCode,
			Latitude:   in.Address.Latitude,
			Longitude:  in.Address.Longitude,
		}
		if err := tx.Bookings.CreateAddress(ctx, addr); err != nil {
			return fmt.Errorf("create address: %w", err)
		}
		b.AddressID = addr.ID
		if b.WorkerID != nil {
			// The slot may have been taken since the check above.
			n, err := tx.Bookings.CountBlocking(ctx, *b.WorkerID, start, start.Add(s.avail.SlotDuration()), 0)
			if err != nil {
				return fmt.Errorf("recheck slot: %w", err)
			}
			if n > 0 {
				return domain.Conflict("worker already has a booking at this time")
			}
		}
		if err := tx.Bookings.Create(ctx, b); err != nil {
			return fmt.Errorf("create booking: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("booking created", logger.Uint("booking_id", b.ID), logger.Uint("client_id", client.ID))
	if b.WorkerID != nil {
		s.notify.Enqueue(Task{
			UserID: *b.WorkerID, Type: domain.NotifyNewBooking, BookingID: b.ID,
			Title: "New booking request",
			Body:  fmt.Sprintf("%s requested a visit on %s", displayName(client), start.Format(time.RFC1123)),
		})
	}
	return s.store.Bookings.GetByID(ctx, b.ID)
}

func (s *BookingService) Get(ctx context.Context, actor domain.Actor, id uint) (*models.Booking, error) {
	b, err := s.store.Bookings.GetByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "booking")
	}
	if !canView(actor, b) {
		return nil, domain.Forbidden("not a participant of this booking")
	}
	return b, nil
}

// List applies the filter, scoped to the actor's own bookings unless admin.
func (s *BookingService) List(ctx context.Context, actor domain.Actor, f repository.BookingFilter) ([]models.Booking, error) {
	switch actor.Role {
	case domain.RoleClient:
		f.ClientID = &actor.UserID
	case domain.RoleWorker:
		f.WorkerID = &actor.UserID
	case domain.RoleAdmin:
	default:
		return nil, domain.Forbidden("unknown role")
	}
	list, err := s.store.Bookings.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return list, nil
}

// UpdateStatus routes a requested target status onto its table action.
func (s *BookingService) UpdateStatus(ctx context.Context, actor domain.Actor, id uint, status, reason string) (*models.Booking, error) {
	to, err := domain.ParseStatus(status)
	if err != nil {
		return nil, domain.Validation("invalid status %q", status)
	}
	action, err := domain.ActionForStatus(to, actor.Role)
	if err != nil {
		return nil, domain.Validation("%v", err)
	}
	switch action {
	case domain.ActionAccept:
		return s.Accept(ctx, actor, id)
	case domain.ActionStart:
		return s.StartWork(ctx, actor, id)
	case domain.ActionWorkerCancel:
		return s.WorkerCancel(ctx, actor, id, reason)
	case domain.ActionCancel:
		return s.Cancel(ctx, actor, id, reason)
	default:
		return s.Complete(ctx, actor, id)
	}
}

// Accept claims a pending booking for the acting worker.
func (s *BookingService) Accept(ctx context.Context, actor domain.Actor, id uint) (*models.Booking, error) {
	tr := domain.Transitions[domain.ActionAccept]
	if !tr.Permits(actor.Role) {
		return nil, domain.Forbidden("only workers accept bookings")
	}
	b, err := s.store.Bookings.GetByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "booking")
	}
	switch {
	case b.Status == domain.StatusPending:
		if b.WorkerID != nil && *b.WorkerID != actor.UserID {
			return nil, domain.Conflict("booking is assigned to another worker")
		}
	case b.Status == domain.StatusAccepted && b.AssignedTo(actor.UserID):
		return b, nil
	case !b.Status.Terminal() && b.WorkerID != nil && *b.WorkerID != actor.UserID:
		return nil, domain.Conflict("booking was already accepted by another worker")
	default:
		return nil, domain.WrongStatus(domain.ActionAccept, b.Status)
	}

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		n, err := tx.Bookings.CountBlocking(ctx, actor.UserID, b.SelectedTime, b.SelectedTime.Add(s.avail.SlotDuration()), b.ID)
		if err != nil {
			return fmt.Errorf("check slot: %w", err)
		}
		if n > 0 {
			return domain.Conflict("you already have a booking at this time")
		}
		ok, err := tx.Bookings.Swap(ctx, repository.StatusSwap{
			BookingID: b.ID,
			From:      tr.From,
			ClaimBy:   &actor.UserID,
			Set:       map[string]interface{}{"status": tr.To, "worker_id": actor.UserID},
		})
		if err != nil {
			return fmt.Errorf("accept booking: %w", err)
		}
		if !ok {
			return s.lostRace(ctx, tx, domain.ActionAccept, b.ID)
		}
		return nil
	})
	if err != nil {
		return nil, s.declineLog(err, domain.ActionAccept, b.ID)
	}
	s.log.Info("booking accepted", logger.Uint("booking_id", b.ID), logger.Uint("worker_id", actor.UserID))
	s.notify.Enqueue(Task{
		UserID: b.ClientID, Type: domain.NotifyBookingAccepted, BookingID: b.ID,
		Title: "Booking accepted", Body: "A worker accepted your booking",
	})
	return s.store.Bookings.GetByID(ctx, b.ID)
}

// StartWork moves an accepted booking to in_progress.
func (s *BookingService) StartWork(ctx context.Context, actor domain.Actor, id uint) (*models.Booking, error) {
	tr := domain.Transitions[domain.ActionStart]
	b, err := s.assignedBooking(ctx, actor, id, tr)
	if err != nil {
		return nil, err
	}
	if b.Status == domain.StatusInProgress {
		return b, nil
	}
	if !tr.Allows(b.Status) {
		return nil, domain.WrongStatus(domain.ActionStart, b.Status)
	}
	now := time.Now().UTC()
	ok, err := s.store.Bookings.Swap(ctx, repository.StatusSwap{
		BookingID:  b.ID,
		From:       tr.From,
		AssignedTo: &actor.UserID,
		Set:        map[string]interface{}{"status": tr.To, "work_started_at": now},
	})
	if err != nil {
		return nil, fmt.Errorf("start work: %w", err)
	}
	if !ok {
		return nil, s.declineLog(s.lostRace(ctx, s.store, domain.ActionStart, b.ID), domain.ActionStart, b.ID)
	}
	s.log.Info("work started", logger.Uint("booking_id", b.ID))
	s.notify.Enqueue(Task{
		UserID: b.ClientID, Type: domain.NotifyWorkStarted, BookingID: b.ID,
		Title: "Work started", Body: "Your worker has started the job",
	})
	return s.store.Bookings.GetByID(ctx, b.ID)
}

// WorkerCancel lets the assigned worker back out at any point before completion of work.
func (s *BookingService) WorkerCancel(ctx context.Context, actor domain.Actor, id uint, reason string) (*models.Booking, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.Validation("cancellation reason is required")
	}
	tr := domain.Transitions[domain.ActionWorkerCancel]
	b, err := s.assignedBooking(ctx, actor, id, tr)
	if err != nil {
		return nil, err
	}
	if b.Status == domain.StatusCancelled && b.CancelledBy == domain.RoleWorker {
		return b, nil
	}
	if !tr.Allows(b.Status) {
		return nil, domain.WrongStatus(domain.ActionWorkerCancel, b.Status)
	}
	ok, err := s.store.Bookings.Swap(ctx, repository.StatusSwap{
		BookingID:  b.ID,
		From:       tr.From,
		AssignedTo: &actor.UserID,
		Set: map[string]interface{}{
			"status":              tr.To,
			"cancellation_reason": reason,
			"cancelled_by":        domain.RoleWorker,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("cancel booking: %w", err)
	}
	if !ok {
		return nil, s.declineLog(s.lostRace(ctx, s.store, domain.ActionWorkerCancel, b.ID), domain.ActionWorkerCancel, b.ID)
	}
	s.log.Info("booking cancelled by worker", logger.Uint("booking_id", b.ID), logger.String("from", string(b.Status)))
	s.notify.Enqueue(Task{
		UserID: b.ClientID, Type: domain.NotifyBookingCancelled, BookingID: b.ID,
		Title: "Booking cancelled", Body: "Your worker cancelled: " + reason,
	})
	return s.store.Bookings.GetByID(ctx, b.ID)
}

// Cancel is the client or admin cancellation. Work that has started cannot be cancelled here.
func (s *BookingService) Cancel(ctx context.Context, actor domain.Actor, id uint, reason string) (*models.Booking, error) {
	if actor.IsWorker() {
		return s.WorkerCancel(ctx, actor, id, reason)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.Validation("cancellation reason is required")
	}
	tr := domain.Transitions[domain.ActionCancel]
	if !tr.Permits(actor.Role) {
		return nil, domain.Forbidden("role cannot cancel bookings")
	}
	b, err := s.store.Bookings.GetByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "booking")
	}
	if !actor.IsAdmin() && b.ClientID != actor.UserID {
		return nil, domain.Forbidden("not the client of this booking")
	}
	if b.Status == domain.StatusCancelled && b.CancelledBy == actor.Role {
		return b, nil
	}
	if !tr.Allows(b.Status) {
		return nil, domain.WrongStatus(domain.ActionCancel, b.Status)
	}
	ok, err := s.store.Bookings.Swap(ctx, repository.StatusSwap{
		BookingID: b.ID,
		From:      tr.From,
		Set: map[string]interface{}{
			"status":              tr.To,
			"cancellation_reason": reason,
			"cancelled_by":        actor.Role,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("cancel booking: %w", err)
	}
	if !ok {
		return nil, s.declineLog(s.lostRace(ctx, s.store, domain.ActionCancel, b.ID), domain.ActionCancel, b.ID)
	}
	s.log.Info("booking cancelled", logger.Uint("booking_id", b.ID), logger.String("by", actor.Role))
	if b.WorkerID != nil {
		s.notify.Enqueue(Task{
			UserID: *b.WorkerID, Type: domain.NotifyBookingCancelled, BookingID: b.ID,
			Title: "Booking cancelled", Body: "The booking was cancelled: " + reason,
		})
	}
	if actor.IsAdmin() {
		s.notify.Enqueue(Task{
			UserID: b.ClientID, Type: domain.NotifyBookingCancelled, BookingID: b.ID,
			Title: "Booking cancelled", Body: "Support cancelled your booking: " + reason,
		})
	}
	return s.store.Bookings.GetByID(ctx, b.ID)
}

// Complete finishes an in-progress booking that never had extra items proposed.
func (s *BookingService) Complete(ctx context.Context, actor domain.Actor, id uint) (*models.Booking, error) {
	tr := domain.Transitions[domain.ActionComplete]
	if !tr.Permits(actor.Role) {
		return nil, domain.Forbidden("role cannot complete bookings")
	}
	b, err := s.store.Bookings.GetByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "booking")
	}
	if !actor.IsAdmin() && !b.IsParticipant(actor.UserID) {
		return nil, domain.Forbidden("not a participant of this booking")
	}
	if !tr.Allows(b.Status) {
		return nil, domain.WrongStatus(domain.ActionComplete, b.Status)
	}
	n, err := s.store.Items.CountByBooking(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}
	if n > 0 {
		return nil, domain.Precondition("booking has extra items; approve them to complete")
	}
	ok, err := s.store.Bookings.Swap(ctx, repository.StatusSwap{
		BookingID: b.ID,
		From:      tr.From,
		Set:       map[string]interface{}{"status": tr.To, "work_ended_at": time.Now().UTC()},
	})
	if err != nil {
		return nil, fmt.Errorf("complete booking: %w", err)
	}
	if !ok {
		return nil, s.declineLog(s.lostRace(ctx, s.store, domain.ActionComplete, b.ID), domain.ActionComplete, b.ID)
	}
	s.log.Info("booking completed", logger.Uint("booking_id", b.ID))
	for _, uid := range otherParticipants(b, actor.UserID) {
		s.notify.Enqueue(Task{
			UserID: uid, Type: domain.NotifyBookingCompleted, BookingID: b.ID,
			Title: "Booking completed", Body: "The job has been marked completed",
		})
	}
	return s.store.Bookings.GetByID(ctx, b.ID)
}

// assignedBooking loads the booking and checks the actor is its assigned worker.
func (s *BookingService) assignedBooking(ctx context.Context, actor domain.Actor, id uint, tr domain.Transition) (*models.Booking, error) {
	if !tr.Permits(actor.Role) {
		return nil, domain.Forbidden("only the assigned worker can do this")
	}
	b, err := s.store.Bookings.GetByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "booking")
	}
	if !b.AssignedTo(actor.UserID) {
		return nil, domain.Forbidden("not the assigned worker")
	}
	return b, nil
}

// lostRace reloads the row so the conflict names the status that won.
func (s *BookingService) lostRace(ctx context.Context, store *repository.Store, a domain.Action, id uint) error {
	cur, err := store.Bookings.GetByID(ctx, id)
	if err != nil {
		return lookupErr(err, "booking")
	}
	return domain.LostRace(a, cur.Status)
}

func (s *BookingService) declineLog(err error, a domain.Action, id uint) error {
	if d, ok := domain.AsDeclined(err); ok {
		s.log.Debug("transition declined", logger.String("action", string(a)), logger.Uint("booking_id", id), logger.String("reason", d.Reason))
	}
	return err
}

func canView(actor domain.Actor, b *models.Booking) bool {
	if actor.IsAdmin() || b.IsParticipant(actor.UserID) {
		return true
	}
	// open requests are visible to any worker
	return actor.IsWorker() && b.WorkerID == nil && b.Status == domain.StatusPending
}

func otherParticipants(b *models.Booking, self uint) []uint {
	var out []uint
	if b.ClientID != self {
		out = append(out, b.ClientID)
	}
	if b.WorkerID != nil && *b.WorkerID != self {
		out = append(out, *b.WorkerID)
	}
	return out
}

func displayName(u *models.User) string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}
