package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"fieldserve/internal/domain"
	"fieldserve/internal/models"
	"fieldserve/internal/repository"
	"fieldserve/pkg/cloudinary"
	"fieldserve/pkg/logger"

	"github.com/google/uuid"
)

type CreateComplaintInput struct {
	BookingID    uint
	TargetID     uint
	RaisedByRole string // "client" or "worker"
	Category     string
	SubCategory  string
	Priority     string
	Description  string
	Attachments  []string
}

type UpdateComplaintInput struct {
	Status     string
	AdminNotes *string
	Resolution *string
}

type ComplaintService struct {
	store   *repository.Store
	uploads cloudinary.Client // nil when uploads are not configured
	folder  string
	notify  Notifier
	log     logger.ILogger
}

func NewComplaintService(store *repository.Store, uploads cloudinary.Client, folder string, notify Notifier, log logger.ILogger) *ComplaintService {
	return &ComplaintService{store: store, uploads: uploads, folder: folder, notify: notify, log: log}
}

func (s *ComplaintService) Create(ctx context.Context, actor domain.Actor, in CreateComplaintInput) (*models.Complaint, error) {
	role, ok := declaredRole(in.RaisedByRole)
	if !ok {
		return nil, domain.Validation("raised_by_role must be client or worker")
	}
	category := strings.TrimSpace(in.Category)
	description := strings.TrimSpace(in.Description)
	if category == "" || description == "" {
		return nil, domain.Validation("category and description are required")
	}
	priority := strings.ToLower(strings.TrimSpace(in.Priority))
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !domain.ValidPriority(priority) {
		return nil, domain.Validation("invalid priority %q", in.Priority)
	}

	raiser, err := s.store.Users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, lookupErr(err, "user")
	}
	target, err := s.store.Users.GetByID(ctx, in.TargetID)
	if err != nil {
		return nil, lookupErr(err, "target user")
	}
	if raiser.Role != role {
		return nil, domain.Forbidden("declared role does not match your account")
	}
	b, err := s.store.Bookings.GetByID(ctx, in.BookingID)
	if err != nil {
		return nil, lookupErr(err, "booking")
	}
	if !b.IsParticipant(raiser.ID) || !b.IsParticipant(target.ID) {
		return nil, domain.Forbidden("complaints can only be raised between the booking's client and worker")
	}
	if raiser.ID == target.ID {
		return nil, domain.Validation("cannot file a complaint against yourself")
	}

	c := &models.Complaint{
		RaisedByID:   raiser.ID,
		RaisedByRole: role,
		TargetID:     target.ID,
		BookingID:    b.ID,
		Category:     category,
		SubCategory:  strings.TrimSpace(in.SubCategory),
		Priority:     priority,
		Description:  description,
		Attachments:  in.Attachments,
		Status:       domain.ComplaintOpen,
	}
	if c.Attachments == nil {
		c.Attachments = []string{}
	}
	paid, err := s.store.Payments.LatestPaid(ctx, b.ID)
	switch {
	case err == nil:
		c.PaymentID = &paid.ID
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("find paid payment: %w", err)
	}

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Complaints.Create(ctx, c); err != nil {
			return fmt.Errorf("create complaint: %w", err)
		}
		return tx.Bookings.SetComplaint(ctx, b.ID, c.ID)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("complaint filed", logger.Uint("complaint_id", c.ID), logger.Uint("booking_id", b.ID), logger.String("priority", priority))
	s.notify.Enqueue(Task{
		UserID: target.ID, Type: domain.NotifyComplaintFiled, BookingID: b.ID,
		Title: "Complaint filed", Body: "A complaint was filed about booking #" + fmt.Sprint(b.ID),
	})
	return c, nil
}

func (s *ComplaintService) Get(ctx context.Context, actor domain.Actor, id uint) (*models.Complaint, error) {
	c, err := s.store.Complaints.GetByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "complaint")
	}
	if actor.IsAdmin() || c.RaisedByID == actor.UserID || c.TargetID == actor.UserID {
		return c, nil
	}
	return nil, domain.Forbidden("not a party to this complaint")
}

func (s *ComplaintService) List(ctx context.Context, actor domain.Actor, f repository.ComplaintFilter) ([]models.Complaint, error) {
	if !actor.IsAdmin() {
		return nil, domain.Forbidden("admin access required")
	}
	list, err := s.store.Complaints.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	return list, nil
}

// Update is the admin triage step. Status only moves forward.
func (s *ComplaintService) Update(ctx context.Context, actor domain.Actor, id uint, in UpdateComplaintInput) (*models.Complaint, error) {
	if !actor.IsAdmin() {
		return nil, domain.Forbidden("admin access required")
	}
	c, err := s.store.Complaints.GetByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "complaint")
	}
	set := map[string]interface{}{}
	if in.AdminNotes != nil {
		set["admin_notes"] = strings.TrimSpace(*in.AdminNotes)
	}
	if in.Resolution != nil {
		set["resolution"] = strings.TrimSpace(*in.Resolution)
	}
	from := []string{c.Status}
	to := strings.ToLower(strings.TrimSpace(in.Status))
	if to != "" && to != c.Status {
		from = domain.ComplaintPredecessors(to)
		if len(from) == 0 {
			return nil, domain.Validation("invalid complaint status %q", in.Status)
		}
		allowed := false
		for _, st := range from {
			if st == c.Status {
				allowed = true
			}
		}
		if !allowed {
			return nil, domain.Precondition(fmt.Sprintf("complaint is %s, cannot move to %s", c.Status, to))
		}
		set["status"] = to
		if to == domain.ComplaintResolved {
			set["resolved_at"] = time.Now().UTC()
		}
	}
	if len(set) == 0 {
		return c, nil
	}
	ok, err := s.store.Complaints.Swap(ctx, c.ID, from, set)
	if err != nil {
		return nil, fmt.Errorf("update complaint: %w", err)
	}
	if !ok {
		return nil, domain.Conflict("complaint changed concurrently")
	}
	updated, err := s.store.Complaints.GetByID(ctx, c.ID)
	if err != nil {
		return nil, lookupErr(err, "complaint")
	}
	if updated.Status != c.Status {
		s.log.Info("complaint status changed", logger.Uint("complaint_id", c.ID), logger.String("from", c.Status), logger.String("to", updated.Status))
		s.notify.Enqueue(Task{
			UserID: c.RaisedByID, Type: domain.NotifyComplaintUpdated, BookingID: c.BookingID,
			Title: "Complaint updated", Body: "Your complaint is now " + strings.ReplaceAll(updated.Status, "_", " "),
		})
	}
	return updated, nil
}

// UploadAttachment stores evidence and returns its URL for the attachments list.
func (s *ComplaintService) UploadAttachment(ctx context.Context, actor domain.Actor, file io.Reader) (string, error) {
	if s.uploads == nil {
		return "", domain.Precondition("uploads are not configured")
	}
	publicID := fmt.Sprintf("complaint_%d_%s", actor.UserID, uuid.NewString())
	url, err := s.uploads.Upload(ctx, file, s.folder+"/complaints", publicID)
	if err != nil {
		s.log.Error("attachment upload failed", logger.Uint("user_id", actor.UserID), logger.Error(err))
		return "", domain.Gateway("failed to upload attachment")
	}
	return url, nil
}

func declaredRole(r string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(r)) {
	case "client":
		return domain.RoleClient, true
	case "worker":
		return domain.RoleWorker, true
	}
	return "", false
}
