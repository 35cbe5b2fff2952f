package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fieldserve/internal/domain"
	"fieldserve/internal/models"
	"fieldserve/internal/repository"
	"fieldserve/pkg/logger"
)

type CreateReviewInput struct {
	BookingID uint
	WorkerID  uint
	Rating    int
	Comment   string
}

type ReviewService struct {
	store  *repository.Store
	notify Notifier
	log    logger.ILogger
}

func NewReviewService(store *repository.Store, notify Notifier, log logger.ILogger) *ReviewService {
	return &ReviewService{store: store, notify: notify, log: log}
}

// CreateReview lets the client rate the worker of a completed booking, once.
func (s *ReviewService) CreateReview(ctx context.Context, actor domain.Actor, in CreateReviewInput) (*models.Review, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, domain.Validation("rating must be between 1 and 5")
	}
	b, err := s.store.Bookings.GetByID(ctx, in.BookingID)
	if err != nil {
		return nil, lookupErr(err, "booking")
	}
	if b.Status != domain.StatusCompleted {
		return nil, domain.Precondition("only completed bookings can be reviewed")
	}
	if b.ClientID != actor.UserID {
		return nil, domain.Forbidden("only the client of this booking can review it")
	}
	if !b.AssignedTo(in.WorkerID) {
		return nil, domain.Precondition("worker did not perform this booking")
	}
	exists, err := s.store.Reviews.ExistsForBooking(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("check review: %w", err)
	}
	if exists || b.HasReview {
		return nil, domain.Conflict("booking already has a review")
	}

	rv := &models.Review{
		BookingID: b.ID,
		RaterID:   actor.UserID,
		RateeID:   in.WorkerID,
		Rating:    in.Rating,
		Comment:   strings.TrimSpace(in.Comment),
	}
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Reviews.Create(ctx, rv); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return domain.Conflict("booking already has a review")
			}
			return fmt.Errorf("create review: %w", err)
		}
		avg, count, err := tx.Reviews.Aggregate(ctx, in.WorkerID)
		if err != nil {
			return fmt.Errorf("aggregate ratings: %w", err)
		}
		if err := tx.Workers.UpdateRating(ctx, in.WorkerID, avg, count); err != nil {
			return fmt.Errorf("update rating: %w", err)
		}
		ok, err := tx.Bookings.MarkReviewed(ctx, b.ID)
		if err != nil {
			return fmt.Errorf("mark reviewed: %w", err)
		}
		if !ok {
			return domain.Conflict("booking already has a review")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("review created", logger.Uint("booking_id", b.ID), logger.Uint("worker_id", in.WorkerID), logger.Int("rating", in.Rating))
	s.notify.Enqueue(Task{
		UserID: in.WorkerID, Type: domain.NotifyNewReview, BookingID: b.ID,
		Title: "New review", Body: fmt.Sprintf("You received a %d-star review", in.Rating),
	})
	return rv, nil
}

func (s *ReviewService) ListWorkerReviews(ctx context.Context, workerID uint, limit, offset int) ([]models.Review, error) {
	if _, err := s.store.Workers.GetProfile(ctx, workerID); err != nil {
		return nil, lookupErr(err, "worker")
	}
	list, err := s.store.Reviews.ListByWorker(ctx, workerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return list, nil
}
