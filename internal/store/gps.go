package store

import (
	"context"
	"time"

	"ebus_manager/internal/models"
)

// GPSQuery selects a window of a bus's GPS history.
type GPSQuery struct {
	BusID uint
	From  *time.Time
	To    *time.Time
	Limit int
}

func (s *Store) CreateGPSLog(ctx context.Context, log *models.GPSLog) error {
	return wrap("create gps log", s.db.WithContext(ctx).Create(log).Error)
}

func (s *Store) GPSHistory(ctx context.Context, q GPSQuery) ([]models.GPSLog, error) {
	query := s.db.WithContext(ctx).Where("bus_id = ?", q.BusID)
	if q.From != nil {
		query = query.Where("timestamp >= ?", *q.From)
	}
	if q.To != nil {
		query = query.Where("timestamp <= ?", *q.To)
	}
	limit := q.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var logs []models.GPSLog
	if err := query.Order("timestamp DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, wrap("gps history", err)
	}
	return logs, nil
}

func (s *Store) LatestGPSLog(ctx context.Context, busID uint) (*models.GPSLog, error) {
	var log models.GPSLog
	err := s.db.WithContext(ctx).Where("bus_id = ?", busID).Order("timestamp DESC").First(&log).Error
	if err != nil {
		return nil, notFoundOr("latest", "location for bus", busID, err)
	}
	return &log, nil
}

// PurgeGPSLogsBefore deletes samples recorded before cutoff.
func (s *Store) PurgeGPSLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&models.GPSLog{})
	if res.Error != nil {
		return 0, wrap("purge gps logs", res.Error)
	}
	return res.RowsAffected, nil
}
