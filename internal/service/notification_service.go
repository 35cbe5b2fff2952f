package service

import (
	"context"
	"encoding/json"

	"fieldserve/internal/models"
	"fieldserve/internal/repository"
	"fieldserve/pkg/logger"
)

// NotificationService persists an in-app notification and pushes it over FCM.
// It is the primary sink of the Dispatcher.
type NotificationService struct {
	store *repository.Store
	fcm   *FCMService
	log   logger.ILogger
}

func NewNotificationService(store *repository.Store, fcm *FCMService, log logger.ILogger) *NotificationService {
	return &NotificationService{store: store, fcm: fcm, log: log}
}

func (s *NotificationService) Deliver(ctx context.Context, t Task) error {
	data := t.Data
	if t.BookingID != 0 {
		data = make(map[string]interface{}, len(t.Data)+1)
		for k, v := range t.Data {
			data[k] = v
		}
		data["booking_id"] = t.BookingID
	}
	var dataJSON string
	if data != nil {
		b, _ := json.Marshal(data)
		dataJSON = string(b)
	}
	err := s.store.Notifications.Create(ctx, &models.Notification{
		UserID: t.UserID,
		Type:   t.Type,
		Title:  t.Title,
		Body:   t.Body,
		Data:   dataJSON,
	})
	if err != nil {
		return err
	}
	s.sendPush(ctx, t.UserID, t.Type, t.Title, t.Body, data)
	return nil
}

func (s *NotificationService) sendPush(ctx context.Context, userID uint, notifType, title, body string, data map[string]interface{}) {
	if s.fcm == nil {
		return
	}
	u, err := s.store.Users.GetByID(ctx, userID)
	if err != nil || u.FCMToken == "" {
		return
	}
	if err := s.fcm.SendToUser(ctx, u.FCMToken, notifType, title, body, data); err != nil {
		s.log.Warning("fcm push failed", logger.Uint("user_id", userID), logger.Error(err))
	}
}

func (s *NotificationService) List(ctx context.Context, userID uint, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.Notifications.ListByUserID(ctx, userID, limit, offset)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) (bool, error) {
	return s.store.Notifications.MarkRead(ctx, id, userID)
}
