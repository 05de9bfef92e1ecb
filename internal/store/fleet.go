package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ebus_manager/internal/apperr"
	"ebus_manager/internal/models"
)

// BusFilter narrows bus listings.
type BusFilter struct {
	Active *bool
	Search string
	Page   Page
}

func (s *Store) ListBuses(ctx context.Context, f BusFilter) ([]models.Bus, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Bus{})
	if f.Active != nil {
		q = q.Where("is_active = ?", *f.Active)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("bus_number ILIKE ? OR registration_number ILIKE ?", like, like)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, wrap("count buses", err)
	}
	var buses []models.Bus
	if err := f.Page.apply(q).Order("bus_number").Find(&buses).Error; err != nil {
		return nil, 0, wrap("list buses", err)
	}
	return buses, total, nil
}

func (s *Store) FindBus(ctx context.Context, id uint) (*models.Bus, error) {
	var bus models.Bus
	if err := s.db.WithContext(ctx).First(&bus, id).Error; err != nil {
		return nil, notFoundOr("find", "bus", id, err)
	}
	return &bus, nil
}

// FindBusByDevice resolves the active bus carrying a GPS device.
func (s *Store) FindBusByDevice(ctx context.Context, deviceID string) (*models.Bus, error) {
	var bus models.Bus
	err := s.db.WithContext(ctx).Where("gps_device_id = ? AND is_active = ?", deviceID, true).First(&bus).Error
	if err != nil {
		return nil, notFoundOr("find", "bus with device", deviceID, err)
	}
	return &bus, nil
}

func (s *Store) CreateBus(ctx context.Context, bus *models.Bus) error {
	if err := s.db.WithContext(ctx).Create(bus).Error; err != nil {
		return duplicateError("create bus", err)
	}
	return nil
}

// UpdateBus writes the given columns.
func (s *Store) UpdateBus(ctx context.Context, id uint, fields map[string]any) (*models.Bus, error) {
	bus, err := s.FindBus(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := s.db.WithContext(ctx).Model(bus).Updates(fields).Error; err != nil {
			return nil, duplicateError("update bus", err)
		}
	}
	return s.FindBus(ctx, id)
}

// DeactivateBus soft-deletes a bus by clearing is_active.
func (s *Store) DeactivateBus(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&models.Bus{}).Where("id = ?", id).Update("is_active", false)
	if res.Error != nil {
		return wrap("deactivate bus", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("bus", id)
	}
	return nil
}

func (s *Store) ListDrivers(ctx context.Context, activeOnly bool) ([]models.Driver, error) {
	q := s.db.WithContext(ctx)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var drivers []models.Driver
	if err := q.Order("full_name").Find(&drivers).Error; err != nil {
		return nil, wrap("list drivers", err)
	}
	return drivers, nil
}

func (s *Store) CreateDriver(ctx context.Context, d *models.Driver) error {
	if err := s.db.WithContext(ctx).Create(d).Error; err != nil {
		return duplicateError("create driver", err)
	}
	return nil
}

func (s *Store) DeactivateDriver(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&models.Driver{}).Where("id = ?", id).Update("is_active", false)
	if res.Error != nil {
		return wrap("deactivate driver", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("driver", id)
	}
	return nil
}

func (s *Store) ListRoutes(ctx context.Context) ([]models.Route, error) {
	var routes []models.Route
	err := s.db.WithContext(ctx).Where("is_active = ?", true).
		Preload("Stops", func(db *gorm.DB) *gorm.DB { return db.Order("stop_order") }).
		Order("route_name").Find(&routes).Error
	if err != nil {
		return nil, wrap("list routes", err)
	}
	return routes, nil
}

func (s *Store) FindRoute(ctx context.Context, id uint) (*models.Route, error) {
	var route models.Route
	err := s.db.WithContext(ctx).
		Preload("Stops", func(db *gorm.DB) *gorm.DB { return db.Order("stop_order") }).
		First(&route, id).Error
	if err != nil {
		return nil, notFoundOr("find", "route", id, err)
	}
	return &route, nil
}

// CreateRoute inserts a route together with its stops.
func (s *Store) CreateRoute(ctx context.Context, route *models.Route) error {
	return s.inTx(ctx, "CreateRoute", func(tx *gorm.DB) error {
		if err := tx.Create(route).Error; err != nil {
			return duplicateError("create route", err)
		}
		return nil
	})
}

func (s *Store) RouteStops(ctx context.Context, routeID uint) ([]models.RouteStop, error) {
	var stops []models.RouteStop
	if err := s.db.WithContext(ctx).Where("route_id = ?", routeID).Order("stop_order").Find(&stops).Error; err != nil {
		return nil, wrap("list route stops", err)
	}
	return stops, nil
}

// RouteStopsForShift returns the ordered stops of the shift's route.
func (s *Store) RouteStopsForShift(ctx context.Context, shiftID uint) ([]models.RouteStop, error) {
	var shift models.Shift
	if err := s.db.WithContext(ctx).Select("id", "route_id").First(&shift, shiftID).Error; err != nil {
		return nil, notFoundOr("find", "shift", shiftID, err)
	}
	return s.RouteStops(ctx, shift.RouteID)
}

// SaveRouteStops replaces the route's stops and derived geometry in one
// transaction. Stops are renumbered 1..n in the given order.
func (s *Store) SaveRouteStops(ctx context.Context, routeID uint, stops []models.RouteStop, update func(*models.Route, []models.RouteStop) error) (*models.Route, error) {
	err := s.inTx(ctx, "SaveRouteStops", func(tx *gorm.DB) error {
		var route models.Route
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&route, routeID).Error; err != nil {
			return notFoundOr("lock", "route", routeID, err)
		}
		if err := tx.Unscoped().Where("route_id = ?", routeID).Delete(&models.RouteStop{}).Error; err != nil {
			return wrap("delete route stops", err)
		}
		for i := range stops {
			stops[i].ID = 0
			stops[i].RouteID = routeID
			stops[i].StopOrder = i + 1
		}
		if len(stops) > 0 {
			if err := tx.Create(&stops).Error; err != nil {
				return duplicateError("create route stops", err)
			}
		}
		if err := update(&route, stops); err != nil {
			return err
		}
		return wrap("save route", tx.Omit(clause.Associations).Save(&route).Error)
	})
	if err != nil {
		return nil, err
	}
	return s.FindRoute(ctx, routeID)
}
