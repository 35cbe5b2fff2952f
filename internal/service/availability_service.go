package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fieldserve/config"
	"fieldserve/internal/domain"
	"fieldserve/internal/models"
	"fieldserve/internal/repository"
	"fieldserve/pkg/location"
	"fieldserve/pkg/logger"
)

const (
	SlotWeekend     = "weekend"
	SlotOutsideHrs  = "outside_hours"
	SlotConflict    = "conflict"
	SlotUnavailable = "no_availability"
)

// maxSearchRadiusMeters bounds proximity queries to keep the bounding box scan small.
const maxSearchRadiusMeters = 100000

type SlotResult struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
	Message   string `json:"message"`
}

type WorkerSearch struct {
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
	CategorySlug string
	Limit        int
}

type AvailabilityService struct {
	store         *repository.Store
	duration      time.Duration
	loc           *time.Location
	defaultRadius float64
	log           logger.ILogger
}

func NewAvailabilityService(store *repository.Store, cfg config.BookingConfig, log logger.ILogger) *AvailabilityService {
	d := cfg.SlotDuration
	if d <= 0 {
		d = 90 * time.Minute
	}
	r := cfg.DefaultRadiusMeters
	if r <= 0 {
		r = 10000
	}
	return &AvailabilityService{store: store, duration: d, loc: cfg.Location(), defaultRadius: r, log: log}
}

func (s *AvailabilityService) SlotDuration() time.Duration { return s.duration }

// CheckSlot validates start against the worker's window, weekends and
// accepted or in-progress bookings. It never writes.
func (s *AvailabilityService) CheckSlot(ctx context.Context, workerID uint, start time.Time) (*SlotResult, error) {
	w, err := s.store.Users.GetByID(ctx, workerID)
	if err != nil {
		return nil, lookupErr(err, "worker")
	}
	if !w.IsWorker() {
		return nil, domain.NotFound("worker")
	}
	return s.checkSlot(ctx, s.store, workerID, start, 0)
}

func (s *AvailabilityService) checkSlot(ctx context.Context, store *repository.Store, workerID uint, start time.Time, excludeID uint) (*SlotResult, error) {
	avail, err := store.Workers.GetAvailability(ctx, workerID)
	if errors.Is(err, repository.ErrNotFound) {
		return &SlotResult{Reason: SlotUnavailable, Message: "worker has not published availability"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}

	local := start.In(s.loc)
	if avail.IsWeekend(local.Weekday()) {
		return &SlotResult{Reason: SlotWeekend, Message: fmt.Sprintf("worker does not work on %s", local.Weekday())}, nil
	}

	winStart, _ := parseClock(avail.StartTime)
	winEnd, _ := parseClock(avail.EndTime)
	candStart := local.Hour()*3600 + local.Minute()*60 + local.Second()
	candEnd := candStart + int(s.duration/time.Second)
	if candStart < winStart*60 || candEnd > winEnd*60 {
		return &SlotResult{Reason: SlotOutsideHrs, Message: fmt.Sprintf("worker is available between %s and %s", avail.StartTime, avail.EndTime)}, nil
	}

	n, err := store.Bookings.CountBlocking(ctx, workerID, start, start.Add(s.duration), excludeID)
	if err != nil {
		return nil, fmt.Errorf("count blocking bookings: %w", err)
	}
	if n > 0 {
		return &SlotResult{Reason: SlotConflict, Message: "worker already has a booking at this time"}, nil
	}
	return &SlotResult{Available: true, Message: "slot is available"}, nil
}

type AvailabilityInput struct {
	StartTime string
	EndTime   string
	Weekends  []string
}

func (s *AvailabilityService) SetAvailability(ctx context.Context, actor domain.Actor, in AvailabilityInput) (*models.WorkerAvailability, error) {
	if !actor.IsWorker() {
		return nil, domain.Forbidden("only workers publish availability")
	}
	start, err := parseClock(in.StartTime)
	if err != nil {
		return nil, domain.Validation("start_time: %v", err)
	}
	end, err := parseClock(in.EndTime)
	if err != nil {
		return nil, domain.Validation("end_time: %v", err)
	}
	if start >= end {
		return nil, domain.Validation("start_time must be before end_time")
	}
	days := make([]string, 0, len(in.Weekends))
	for _, d := range in.Weekends {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if _, ok := weekdayNames[d]; !ok {
			return nil, domain.Validation("unknown weekday %q", d)
		}
		days = append(days, d)
	}
	a := &models.WorkerAvailability{
		UserID:    actor.UserID,
		StartTime: formatClock(start),
		EndTime:   formatClock(end),
		Weekends:  strings.Join(days, ","),
	}
	if err := s.store.Workers.UpsertAvailability(ctx, a); err != nil {
		return nil, fmt.Errorf("save availability: %w", err)
	}
	s.log.Info("availability updated", logger.Uint("worker_id", actor.UserID), logger.String("window", a.StartTime+"-"+a.EndTime))
	return s.store.Workers.GetAvailability(ctx, actor.UserID)
}

func (s *AvailabilityService) GetAvailability(ctx context.Context, workerID uint) (*models.WorkerAvailability, error) {
	a, err := s.store.Workers.GetAvailability(ctx, workerID)
	if err != nil {
		return nil, lookupErr(err, "availability")
	}
	return a, nil
}

func (s *AvailabilityService) UpdateLocation(ctx context.Context, actor domain.Actor, lat, lng float64) error {
	if !actor.IsWorker() {
		return domain.Forbidden("only workers report a location")
	}
	if !location.ValidCoordinate(lat, lng) {
		return domain.Validation("coordinates out of range")
	}
	if err := s.store.Workers.UpsertLocation(ctx, actor.UserID, lat, lng); err != nil {
		return fmt.Errorf("save location: %w", err)
	}
	return nil
}

// Search returns workers within the radius, nearest first.
func (s *AvailabilityService) Search(ctx context.Context, q WorkerSearch) ([]repository.WorkerMatch, error) {
	if !location.ValidCoordinate(q.Latitude, q.Longitude) {
		return nil, domain.Validation("coordinates out of range")
	}
	if q.RadiusMeters <= 0 {
		q.RadiusMeters = s.defaultRadius
	}
	if q.RadiusMeters > maxSearchRadiusMeters {
		return nil, domain.Validation("radius must not exceed %d meters", maxSearchRadiusMeters)
	}
	f := repository.WorkerSearchFilter{
		Latitude:  q.Latitude,
		Longitude: q.Longitude,
		RadiusKm:  q.RadiusMeters / 1000,
		Limit:     q.Limit,
	}
	if slug := strings.TrimSpace(q.CategorySlug); slug != "" {
		sec, err := s.store.Workers.GetSectionBySlug(ctx, slug)
		if err != nil {
			return nil, lookupErr(err, "service section")
		}
		f.SectionID = &sec.ID
	}
	return s.store.Discovery.SearchWorkers(ctx, f)
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
}

// parseClock reads "HH:MM" into minutes since midnight. "24:00" is allowed as end of day.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		if strings.TrimSpace(s) == "24:00" {
			return 24 * 60, nil
		}
		return 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func formatClock(min int) string {
	return fmt.Sprintf("%02d:%02d", min/60, min%60)
}
