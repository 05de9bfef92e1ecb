package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"ebus_manager/internal/apperr"
	"ebus_manager/internal/metrics"
	"ebus_manager/internal/models"
	"ebus_manager/internal/store"
)

type Repository interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	MarkNotificationSent(ctx context.Context, id uint, at time.Time) error
	ListNotifications(ctx context.Context, page store.Page) ([]models.Notification, error)
	StudentTokens(ctx context.Context, ids []uint) ([]string, error)
	ShiftStudentTokens(ctx context.Context, shiftID uint) ([]string, error)
}

// Request is an admin-authored notification. TargetIDs holds student ids
// for TargetStudents and a single shift id for TargetShift.
type Request struct {
	Title            string `json:"title"`
	Message          string `json:"message"`
	NotificationType string `json:"notification_type"`
	TargetType       string `json:"target_type"`
	TargetIDs        []uint `json:"target_ids"`
	SentBy           uint   `json:"-"`
}

func (r *Request) normalize() error {
	r.Title = strings.TrimSpace(r.Title)
	r.Message = strings.TrimSpace(r.Message)
	if r.Title == "" || r.Message == "" {
		return apperr.Validation("title and message are required")
	}
	if r.NotificationType == "" {
		r.NotificationType = "general"
	}
	if r.TargetType == "" {
		r.TargetType = models.TargetAll
	}
	switch r.TargetType {
	case models.TargetAll, models.TargetStudents:
	case models.TargetShift:
		if len(r.TargetIDs) != 1 {
			return apperr.Validation("target_ids must hold exactly one shift id")
		}
	default:
		return apperr.Validation("unknown target_type %q", r.TargetType)
	}
	return nil
}

type Service struct {
	repo    Repository
	pusher  Pusher
	metrics *metrics.Collector
	now     func() time.Time
}

func NewService(repo Repository, pusher Pusher, m *metrics.Collector) *Service {
	if pusher == nil {
		pusher = LogPusher{}
	}
	return &Service{repo: repo, pusher: pusher, metrics: m, now: time.Now}
}

// Send stores the notification and pushes it. A push failure is logged and
// leaves the stored notification unsent; it is not returned.
func (s *Service) Send(ctx context.Context, req Request) (*models.Notification, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}
	ids, err := json.Marshal(req.TargetIDs)
	if err != nil {
		return nil, apperr.Internal("encode target ids", err)
	}
	n := &models.Notification{
		Title:            req.Title,
		Message:          req.Message,
		NotificationType: req.NotificationType,
		TargetType:       req.TargetType,
		TargetIDs:        string(ids),
		SentBy:           req.SentBy,
	}
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		return nil, err
	}

	data := map[string]string{
		"type":            n.NotificationType,
		"notification_id": strconv.FormatUint(uint64(n.ID), 10),
	}
	if err := s.push(ctx, req, data); err != nil {
		logrus.WithError(err).WithField("notification_id", n.ID).Error("Notification push failed")
		return n, nil
	}

	at := s.now()
	if err := s.repo.MarkNotificationSent(ctx, n.ID, at); err != nil {
		logrus.WithError(err).WithField("notification_id", n.ID).Warn("Failed to mark notification sent")
		return n, nil
	}
	n.IsSent = true
	n.SentAt = &at
	s.metrics.NotificationSent()
	return n, nil
}

func (s *Service) push(ctx context.Context, req Request, data map[string]string) error {
	var tokens []string
	var err error
	switch req.TargetType {
	case models.TargetAll:
		return s.pusher.SendToTopic(ctx, BroadcastTopic, req.Title, req.Message, data)
	case models.TargetStudents:
		tokens, err = s.repo.StudentTokens(ctx, req.TargetIDs)
	case models.TargetShift:
		tokens, err = s.repo.ShiftStudentTokens(ctx, req.TargetIDs[0])
	}
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}
	_, err = s.pusher.SendMulticast(ctx, tokens, req.Title, req.Message, data)
	return err
}

// NotifyShiftCancelled tells students booked on the shift that it will not run.
func (s *Service) NotifyShiftCancelled(ctx context.Context, shift *models.Shift) {
	tokens, err := s.repo.ShiftStudentTokens(ctx, shift.ID)
	if err != nil {
		logrus.WithError(err).WithField("shift_id", shift.ID).Warn("Cancellation notice skipped")
		return
	}
	if len(tokens) == 0 {
		return
	}
	body := fmt.Sprintf("Shift %s on %s (%s) has been cancelled.",
		shift.ShiftCode, shift.ShiftDate.Format("2006-01-02"), shift.StartTime)
	data := map[string]string{
		"type":     "shift_cancelled",
		"shift_id": strconv.FormatUint(uint64(shift.ID), 10),
	}
	sent, err := s.pusher.SendMulticast(ctx, tokens, "Shift cancelled", body, data)
	if err != nil {
		logrus.WithError(err).WithField("shift_id", shift.ID).Warn("Cancellation notice failed")
		return
	}
	s.metrics.NotificationSent()
	logrus.WithFields(logrus.Fields{"shift_id": shift.ID, "devices": sent}).Info("Cancellation notice sent")
}

func (s *Service) List(ctx context.Context, page store.Page) ([]models.Notification, error) {
	return s.repo.ListNotifications(ctx, page)
}
