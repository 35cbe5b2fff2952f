package router_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"fieldserve/config"
	"fieldserve/internal/domain"
	"fieldserve/internal/models"
	"fieldserve/internal/router"
	"fieldserve/internal/testutil"
	"fieldserve/pkg/logger"
	"fieldserve/pkg/payment"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type server struct {
	t   *testing.T
	cfg *config.Config
	db  *gorm.DB
	app *router.App
}

func newServer(t *testing.T, mutate func(*config.Config)) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := testutil.Config()
	if mutate != nil {
		mutate(cfg)
	}
	db := testutil.NewDB(t)
	app := router.Setup(cfg, db, router.Deps{Log: logger.NewNop(), Gateway: payment.NewStubProvider()})
	t.Cleanup(app.Limiter.Stop)
	return &server{t: t, cfg: cfg, db: db, app: app}
}

func (s *server) token(u *models.User) string {
	return testutil.Token(s.t, s.cfg, u)
}

func (s *server) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.app.Engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

type bookingBody struct {
	Booking struct {
		ID               uint   `json:"id"`
		Status           string `json:"status"`
		TotalAmountCents int64  `json:"total_amount_cents"`
		PaymentCompleted bool   `json:"payment_completed"`
	} `json:"booking"`
}

func TestHealth(t *testing.T) {
	s := newServer(t, nil)
	w := s.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRequired(t *testing.T) {
	s := newServer(t, nil)
	require.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/bookings", "", nil).Code)
	require.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/bookings", "not-a-jwt", nil).Code)
}

func TestActiveUserRejectsStaleOrDisabledAccounts(t *testing.T) {
	s := newServer(t, nil)
	client := testutil.CreateClient(t, s.db, "c@example.com")

	forged := *client
	forged.Role = domain.RoleAdmin
	require.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/bookings", s.token(&forged), nil).Code)

	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/bookings", s.token(client), nil).Code)
	require.NoError(t, s.db.Model(client).Update("is_active", false).Error)
	require.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/bookings", s.token(client), nil).Code)
}

func TestRoleGuards(t *testing.T) {
	s := newServer(t, nil)
	client := testutil.CreateClient(t, s.db, "c@example.com")
	w := testutil.CreateWorker(t, s.db, "w@example.com", testutil.WorkerOpts{})
	b := testutil.CreateBooking(t, s.db, client.ID, &w.ID, testutil.NextWeekday(time.Monday, 10, 0), domain.StatusPending, 0)

	require.Equal(t, http.StatusForbidden, s.do(http.MethodPatch, fmt.Sprintf("/api/v1/bookings/%d/accept", b.ID), s.token(client), nil).Code)
	require.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/v1/bookings", s.token(w), map[string]interface{}{}).Code)
	require.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/complaints", s.token(client), nil).Code)
}

func TestRateLimit(t *testing.T) {
	s := newServer(t, func(cfg *config.Config) { cfg.Server.RateLimit = 2 })
	client := testutil.CreateClient(t, s.db, "c@example.com")
	tok := s.token(client)
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/bookings", tok, nil).Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/bookings", tok, nil).Code)
	require.Equal(t, http.StatusTooManyRequests, s.do(http.MethodGet, "/api/v1/bookings", tok, nil).Code)
}

func TestBookingFlowOverHTTP(t *testing.T) {
	s := newServer(t, nil)
	client := testutil.CreateClient(t, s.db, "c@example.com")
	w := testutil.CreateWorker(t, s.db, "w@example.com", testutil.WorkerOpts{})
	ct, wt := s.token(client), s.token(w)
	at := testutil.NextWeekday(time.Thursday, 10, 0)

	res := s.do(http.MethodPost, "/api/v1/availability/check", ct, map[string]interface{}{
		"workerId": w.ID, "selectedTime": at,
	})
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), `"available":true`)

	res = s.do(http.MethodPost, "/api/v1/bookings", ct, map[string]interface{}{
		"worker_id":     w.ID,
		"selected_time": at,
		"address":       map[string]interface{}{"street": "House 4, Road 7", "city": "Dhaka"},
		"description":   "kitchen sink",
		"total_amount":  150.5,
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var created bookingBody
	decode(t, res, &created)
	id := created.Booking.ID
	require.Equal(t, "pending", created.Booking.Status)
	require.Equal(t, int64(15050), created.Booking.TotalAmountCents)

	path := fmt.Sprintf("/api/v1/bookings/%d", id)
	res = s.do(http.MethodPatch, path+"/accept", wt, map[string]string{"workerEmail": "someone@else.com"})
	require.Equal(t, http.StatusForbidden, res.Code)

	res = s.do(http.MethodPatch, path+"/status", wt, map[string]string{"status": "paused"})
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = s.do(http.MethodPatch, path+"/accept", wt, map[string]string{"workerEmail": w.Email})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	res = s.do(http.MethodPatch, path+"/cancel", ct, nil)
	require.Equal(t, http.StatusBadRequest, res.Code, "a reason is required")

	res = s.do(http.MethodPatch, path+"/status", wt, map[string]string{"status": "in_progress"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	res = s.do(http.MethodPatch, path+"/cancel", ct, map[string]string{"reason": "changed my mind"})
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Contains(t, res.Body.String(), `"status":"in_progress"`)

	res = s.do(http.MethodPost, path+"/items", wt, map[string]interface{}{
		"items": []map[string]interface{}{{"name": "trap", "quantity": 1, "price": 50}},
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var proposed bookingBody
	decode(t, res, &proposed)
	require.Equal(t, "awaiting", proposed.Booking.Status)
	require.Equal(t, int64(20050), proposed.Booking.TotalAmountCents)

	res = s.do(http.MethodPatch, path+"/items/approve", ct, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	res = s.do(http.MethodPost, "/api/v1/reviews", ct, map[string]interface{}{
		"booking_id": id, "worker_id": w.ID, "rating": 5, "comment": "great",
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	res = s.do(http.MethodPost, "/api/v1/reviews", ct, map[string]interface{}{
		"booking_id": id, "worker_id": w.ID, "rating": 4,
	})
	require.Equal(t, http.StatusConflict, res.Code)

	res = s.do(http.MethodGet, fmt.Sprintf("/api/v1/workers/%d/reviews", w.ID), ct, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), `"rating":5`)
}

func TestGatewayPaymentOverHTTP(t *testing.T) {
	s := newServer(t, nil)
	client := testutil.CreateClient(t, s.db, "c@example.com")
	w := testutil.CreateWorker(t, s.db, "w@example.com", testutil.WorkerOpts{})
	b := testutil.CreateBooking(t, s.db, client.ID, &w.ID, testutil.NextWeekday(time.Monday, 10, 0), domain.StatusCompleted, 12000)
	ct := s.token(client)

	res := s.do(http.MethodPost, "/api/v1/payments/gateway/init", ct, map[string]uint{"booking_id": b.ID})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var sess struct {
		PaymentID     uint   `json:"payment_id"`
		TransactionID string `json:"transaction_id"`
		RedirectURL   string `json:"redirect_url"`
	}
	decode(t, res, &sess)
	require.NotEmpty(t, sess.RedirectURL)

	res = s.do(http.MethodGet, "/api/v1/payments/gateway/success?tran_id="+url.QueryEscape(sess.TransactionID), "", nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.Contains(t, res.Body.String(), `"status":"paid"`)
	require.True(t, testutil.Reload(t, s.db, b.ID).PaymentCompleted)

	form := url.Values{"tran_id": {sess.TransactionID}, "status": {"VALID"}}.Encode()
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/gateway/ipn", strings.NewReader(form))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		s.app.Engine.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.Contains(t, rec.Body.String(), `"status":"paid"`)
	}

	var paid int64
	require.NoError(t, s.db.Model(&models.Payment{}).Where("booking_id = ? AND status = ?", b.ID, domain.PaymentPaid).Count(&paid).Error)
	require.Equal(t, int64(1), paid)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/gateway/ipn", strings.NewReader("tran_id=bk0-missing&status=VALID"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.app.Engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"received":true`)
}

func TestIPNSignature(t *testing.T) {
	s := newServer(t, func(cfg *config.Config) { cfg.Gateway.WebhookSecret = "whsec" })
	body := "tran_id=bk1-abc&status=FAILED"
	sign := func(secret string) string {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte(body))
		return hex.EncodeToString(mac.Sum(nil))
	}
	post := func(sig string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/gateway/ipn", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Webhook-Signature", sig)
		rec := httptest.NewRecorder()
		s.app.Engine.ServeHTTP(rec, req)
		return rec.Code
	}
	require.Equal(t, http.StatusUnauthorized, post(""))
	require.Equal(t, http.StatusUnauthorized, post(sign("other")))
	require.Equal(t, http.StatusOK, post(sign("whsec")))
}

func TestWorkerSearchOverHTTP(t *testing.T) {
	s := newServer(t, nil)
	client := testutil.CreateClient(t, s.db, "c@example.com")
	near := testutil.CreateWorker(t, s.db, "near@example.com", testutil.WorkerOpts{Latitude: 23.81, Longitude: 90.41})
	testutil.CreateWorker(t, s.db, "far@example.com", testutil.WorkerOpts{Latitude: 24.50, Longitude: 90.41})

	res := s.do(http.MethodGet, "/api/v1/workers/search?lat=23.80&lon=90.41&radiusMeters=5000", s.token(client), nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var body struct {
		Workers []struct {
			WorkerID uint `json:"worker_id"`
		} `json:"workers"`
	}
	decode(t, res, &body)
	require.Len(t, body.Workers, 1)
	require.Equal(t, near.ID, body.Workers[0].WorkerID)

	require.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/v1/workers/search", s.token(client), nil).Code)
}

func TestComplaintsAndNotificationsOverHTTP(t *testing.T) {
	s := newServer(t, nil)
	client := testutil.CreateClient(t, s.db, "c@example.com")
	w := testutil.CreateWorker(t, s.db, "w@example.com", testutil.WorkerOpts{})
	admin := testutil.CreateAdmin(t, s.db, "a@example.com")
	b := testutil.CreateBooking(t, s.db, client.ID, &w.ID, testutil.NextWeekday(time.Monday, 10, 0), domain.StatusCompleted, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.app.Dispatcher.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	res := s.do(http.MethodPost, "/api/v1/complaints", s.token(client), map[string]interface{}{
		"booking_id": b.ID, "target_id": w.ID, "raised_by_role": "client",
		"category": "quality", "description": "left a mess",
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var created struct {
		Complaint struct {
			ID       uint   `json:"id"`
			Status   string `json:"status"`
			Priority string `json:"priority"`
		} `json:"complaint"`
	}
	decode(t, res, &created)
	require.Equal(t, "open", created.Complaint.Status)
	require.Equal(t, "medium", created.Complaint.Priority)

	res = s.do(http.MethodPatch, fmt.Sprintf("/api/v1/complaints/%d", created.Complaint.ID), s.token(admin), map[string]string{"status": "resolved"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	res = s.do(http.MethodPost, "/api/v1/complaints/attachments", s.token(client), nil)
	require.Equal(t, http.StatusBadRequest, res.Code)

	require.Eventually(t, func() bool {
		res := s.do(http.MethodGet, "/api/v1/me/notifications", s.token(w), nil)
		return res.Code == http.StatusOK && strings.Contains(res.Body.String(), domain.NotifyComplaintFiled)
	}, 2*time.Second, 10*time.Millisecond)
}
