// Package testutil holds the shared sqlite fixture and seed helpers for tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fieldserve/config"
	"fieldserve/internal/auth"
	"fieldserve/internal/database"
	"fieldserve/internal/domain"
	"fieldserve/internal/models"
	"fieldserve/internal/repository"
	"fieldserve/internal/service"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq int64

// NewDB opens a private in-memory sqlite database with every table migrated.
// One open connection serializes writers the way a row lock would.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_busy_timeout=5000", name, atomic.AddInt64(&dbSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func Config() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Env: "test", RateLimit: 1000, RateWindow: time.Minute},
		JWT:    config.JWTConfig{AccessSecret: "test-secret", AccessExpiry: time.Hour, Issuer: "fieldserve"},
		Booking: config.BookingConfig{
			SlotDuration:        90 * time.Minute,
			Timezone:            "UTC",
			DefaultRadiusMeters: 10000,
			NotifyQueueSize:     64,
		},
		Gateway: config.GatewayConfig{
			CallbackBaseURL: "http://api.test",
			Currency:        "BDT",
		},
		Cloudinary: config.CloudinaryConfig{Folder: "test"},
	}
}

func CreateUser(t testing.TB, db *gorm.DB, email, role string) *models.User {
	t.Helper()
	u := &models.User{Email: email, FullName: strings.Split(email, "@")[0], Role: role, IsActive: true}
	require.NoError(t, db.Create(u).Error)
	return u
}

func CreateClient(t testing.TB, db *gorm.DB, email string) *models.User {
	return CreateUser(t, db, email, domain.RoleClient)
}

func CreateAdmin(t testing.TB, db *gorm.DB, email string) *models.User {
	return CreateUser(t, db, email, domain.RoleAdmin)
}

// WorkerOpts seeds a worker. Zero values give a verified worker available
// 09:00-18:00 every day at (0,0).
type WorkerOpts struct {
	Latitude, Longitude float64
	StartTime, EndTime  string
	Weekends            string
	Unverified          bool
	NoAvailability      bool
	NoLocation          bool
}

func CreateWorker(t testing.TB, db *gorm.DB, email string, o WorkerOpts) *models.User {
	t.Helper()
	u := CreateUser(t, db, email, domain.RoleWorker)
	require.NoError(t, db.Create(&models.WorkerProfile{
		UserID:      u.ID,
		DisplayName: u.FullName,
		IsVerified:  !o.Unverified,
		IsActive:    true,
	}).Error)
	if !o.NoAvailability {
		if o.StartTime == "" {
			o.StartTime = "09:00"
		}
		if o.EndTime == "" {
			o.EndTime = "18:00"
		}
		require.NoError(t, db.Create(&models.WorkerAvailability{
			UserID: u.ID, StartTime: o.StartTime, EndTime: o.EndTime, Weekends: o.Weekends,
		}).Error)
	}
	if !o.NoLocation {
		require.NoError(t, db.Create(&models.WorkerLocation{
			UserID: u.ID, Latitude: o.Latitude, Longitude: o.Longitude, LastUpdatedAt: time.Now().UTC(),
		}).Error)
	}
	return u
}

func CreateSection(t testing.TB, db *gorm.DB, slug string) *models.ServiceSection {
	t.Helper()
	s := &models.ServiceSection{Slug: slug, Name: slug}
	require.NoError(t, db.Create(s).Error)
	return s
}

func AddOffering(t testing.TB, db *gorm.DB, workerID, sectionID uint, priceCents int64) {
	t.Helper()
	require.NoError(t, db.Create(&models.WorkerService{
		WorkerID: workerID, SectionID: sectionID, BasePriceCents: priceCents, Unit: "per_service", IsActive: true,
	}).Error)
}

// CreateBooking inserts a booking directly, bypassing the service guards.
func CreateBooking(t testing.TB, db *gorm.DB, clientID uint, workerID *uint, at time.Time, status domain.Status, totalCents int64) *models.Booking {
	t.Helper()
	addr := &models.Address{UserID: clientID, Street: "1 Test Road", City: "Dhaka"}
	require.NoError(t, db.Create(addr).Error)
	b := &models.Booking{
		ClientID:         clientID,
		WorkerID:         workerID,
		AddressID:        addr.ID,
		SelectedTime:     at.UTC(),
		Status:           status,
		TotalAmountCents: totalCents,
	}
	require.NoError(t, db.Create(b).Error)
	return b
}

func Actor(u *models.User) domain.Actor {
	return domain.Actor{UserID: u.ID, Email: u.Email, Role: u.Role}
}

func Token(t testing.TB, cfg *config.Config, u *models.User) string {
	t.Helper()
	tok, err := auth.GenerateAccessToken(&cfg.JWT, u.ID, u.Email, u.Role)
	require.NoError(t, err)
	return tok
}

// NextWeekday returns the next date strictly after now falling on day, at hh:mm UTC.
func NextWeekday(day time.Weekday, hh, mm int) time.Time {
	d := time.Now().UTC().AddDate(0, 0, 1)
	for d.Weekday() != day {
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), hh, mm, 0, 0, time.UTC)
}

// Notifier records enqueued tasks.
type Notifier struct {
	mu    sync.Mutex
	tasks []service.Task
}

func (n *Notifier) Enqueue(t service.Task) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tasks = append(n.tasks, t)
}

func (n *Notifier) Tasks() []service.Task {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]service.Task(nil), n.tasks...)
}

// Types lists the recorded task types in order.
func (n *Notifier) Types() []string {
	var out []string
	for _, t := range n.Tasks() {
		out = append(out, t.Type)
	}
	return out
}

func Store(db *gorm.DB) *repository.Store {
	return repository.NewStore(db)
}

// Reload fetches the booking as stored.
func Reload(t testing.TB, db *gorm.DB, id uint) *models.Booking {
	t.Helper()
	b, err := repository.NewStore(db).Bookings.GetByID(context.Background(), id)
	require.NoError(t, err)
	return b
}
