package service_test

import (
	"testing"

	"fieldserve/internal/repository"
	"fieldserve/internal/service"
	"fieldserve/internal/testutil"
	"fieldserve/pkg/logger"
	"fieldserve/pkg/payment"

	"gorm.io/gorm"
)

type env struct {
	db       *gorm.DB
	store    *repository.Store
	notify   *testutil.Notifier
	gateway  *payment.StubProvider
	avail    *service.AvailabilityService
	bookings *service.BookingService
	pricing  *service.PricingService
	payments *service.PaymentService
	reviews  *service.ReviewService
	cmp      *service.ComplaintService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	cfg := testutil.Config()
	db := testutil.NewDB(t)
	store := repository.NewStore(db)
	n := &testutil.Notifier{}
	gw := payment.NewStubProvider()
	log := logger.NewNop()
	avail := service.NewAvailabilityService(store, cfg.Booking, log)
	return &env{
		db:       db,
		store:    store,
		notify:   n,
		gateway:  gw,
		avail:    avail,
		bookings: service.NewBookingService(store, avail, n, log),
		pricing:  service.NewPricingService(store, n, log),
		payments: service.NewPaymentService(store, gw, cfg.Gateway, n, log),
		reviews:  service.NewReviewService(store, n, log),
		cmp:      service.NewComplaintService(store, nil, cfg.Cloudinary.Folder, n, log),
	}
}
