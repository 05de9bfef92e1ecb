package store

import (
	"context"
	"time"

	"ebus_manager/internal/models"
)

func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	return wrap("create notification", s.db.WithContext(ctx).Create(n).Error)
}

func (s *Store) MarkNotificationSent(ctx context.Context, id uint, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&models.Notification{}).Where("id = ?", id).
		Updates(map[string]any{"is_sent": true, "sent_at": at}).Error
	return wrap("mark notification sent", err)
}

func (s *Store) ListNotifications(ctx context.Context, page Page) ([]models.Notification, error) {
	var out []models.Notification
	if err := page.apply(s.db.WithContext(ctx)).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, wrap("list notifications", err)
	}
	return out, nil
}
