package store

import (
	"context"
	"math"
	"time"

	"ebus_manager/internal/models"
)

type DashboardStats struct {
	TotalBuses    int64 `json:"total_buses"`
	ActiveBuses   int64 `json:"active_buses"`
	TotalDrivers  int64 `json:"total_drivers"`
	TotalStudents int64 `json:"total_students"`
	TotalRoutes   int64 `json:"total_routes"`
	TodayShifts   int64 `json:"today_shifts"`
	ActiveShifts  int64 `json:"active_shifts"`
	TodayBookings int64 `json:"today_bookings"`
}

func (s *Store) DashboardStats(ctx context.Context, today time.Time) (*DashboardStats, error) {
	db := s.db.WithContext(ctx)
	day := models.DateOnly(today)
	var st DashboardStats
	counts := []struct {
		dst   *int64
		model any
		where string
		args  []any
	}{
		{&st.TotalBuses, &models.Bus{}, "", nil},
		{&st.ActiveBuses, &models.Bus{}, "is_active = ?", []any{true}},
		{&st.TotalDrivers, &models.Driver{}, "is_active = ?", []any{true}},
		{&st.TotalStudents, &models.Student{}, "is_active = ?", []any{true}},
		{&st.TotalRoutes, &models.Route{}, "is_active = ?", []any{true}},
		{&st.TodayShifts, &models.Shift{}, "shift_date = ?", []any{day}},
		{&st.ActiveShifts, &models.Shift{}, "status = ?", []any{models.ShiftActive}},
		{&st.TodayBookings, &models.SeatAllocation{}, "allocation_date = ? AND status <> ?", []any{day, models.AllocationCancelled}},
	}
	for _, c := range counts {
		q := db.Model(c.model)
		if c.where != "" {
			q = q.Where(c.where, c.args...)
		}
		if err := q.Count(c.dst).Error; err != nil {
			return nil, wrap("dashboard stats", err)
		}
	}
	return &st, nil
}

// ActiveBus is a bus running or about to run a shift today, with its last GPS fix.
type ActiveBus struct {
	BusID              uint       `json:"bus_id"`
	BusNumber          string     `json:"bus_number"`
	RegistrationNumber string     `json:"registration_number"`
	GPSDeviceID        string     `json:"gps_device_id"`
	ShiftID            uint       `json:"shift_id"`
	ShiftCode          string     `json:"shift_code"`
	ShiftStatus        string     `json:"shift_status"`
	StartTime          string     `json:"start_time"`
	EndTime            string     `json:"end_time"`
	RouteName          string     `json:"route_name"`
	DriverName         string     `json:"driver_name"`
	Latitude           *float64   `json:"latitude"`
	Longitude          *float64   `json:"longitude"`
	Speed              *float64   `json:"speed"`
	Heading            *float64   `json:"heading"`
	LastGPSUpdate      *time.Time `json:"last_gps_update"`
}

// ActiveBuses lists the scheduled and active shifts of day with their bus,
// route, driver and the bus's latest GPS sample (if any).
func (s *Store) ActiveBuses(ctx context.Context, day time.Time) ([]ActiveBus, error) {
	var rows []ActiveBus
	err := s.db.WithContext(ctx).
		Table("shifts AS s").
		Select(`b.id AS bus_id, b.bus_number, b.registration_number, b.gps_device_id,
			s.id AS shift_id, s.shift_code, s.status AS shift_status, s.start_time, s.end_time,
			r.route_name, d.full_name AS driver_name,
			gl.latitude, gl.longitude, gl.speed, gl.heading, gl.timestamp AS last_gps_update`).
		Joins("JOIN buses b ON b.id = s.bus_id").
		Joins("JOIN routes r ON r.id = s.route_id").
		Joins("JOIN drivers d ON d.id = s.driver_id").
		Joins(`LEFT JOIN LATERAL (
			SELECT g.latitude, g.longitude, g.speed, g.heading, g.timestamp
			FROM gps_logs g WHERE g.bus_id = b.id
			ORDER BY g.timestamp DESC LIMIT 1
		) gl ON TRUE`).
		Where("s.deleted_at IS NULL AND s.shift_date = ? AND s.status IN ?",
			models.DateOnly(day), []string{models.ShiftScheduled, models.ShiftActive}).
		Order("s.start_time, b.bus_number").
		Scan(&rows).Error
	if err != nil {
		return nil, wrap("active buses", err)
	}
	return rows, nil
}

type DailyOccupancy struct {
	Date                time.Time `json:"date"`
	Shifts              int64     `json:"shifts"`
	TotalSeats          int64     `json:"total_seats"`
	BookedSeats         int64     `json:"booked_seats"`
	OccupancyPercentage float64   `json:"occupancy_percentage"`
}

// DailyOccupancy aggregates booked against offered seats per shift date in
// [from, to], newest first. Cancelled shifts and allocations are excluded.
func (s *Store) DailyOccupancy(ctx context.Context, from, to time.Time) ([]DailyOccupancy, error) {
	db := s.db.WithContext(ctx)
	booked := db.Model(&models.SeatAllocation{}).
		Select("shift_id, COUNT(*) AS booked").
		Where("status <> ?", models.AllocationCancelled).
		Group("shift_id")

	var rows []DailyOccupancy
	err := db.Table("shifts AS s").
		Select(`s.shift_date AS date, COUNT(*) AS shifts,
			COALESCE(SUM(b.capacity), 0) AS total_seats,
			COALESCE(SUM(a.booked), 0) AS booked_seats`).
		Joins("JOIN buses b ON b.id = s.bus_id").
		Joins("LEFT JOIN (?) a ON a.shift_id = s.id", booked).
		Where("s.deleted_at IS NULL AND s.status <> ? AND s.shift_date BETWEEN ? AND ?",
			models.ShiftCancelled, models.DateOnly(from), models.DateOnly(to)).
		Group("s.shift_date").
		Order("s.shift_date DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, wrap("daily occupancy", err)
	}
	for i := range rows {
		rows[i].OccupancyPercentage = percentage(rows[i].BookedSeats, rows[i].TotalSeats)
	}
	return rows, nil
}

func percentage(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	return math.Round(float64(part)*10000/float64(whole)) / 100
}

type AttendanceFilter struct {
	From, To   *time.Time
	Department string
}

type StudentAttendance struct {
	StudentID         uint       `json:"student_id"`
	StudentCode       string     `json:"student_code"`
	FullName          string     `json:"full_name"`
	Department        string     `json:"department"`
	TotalBookings     int64      `json:"total_bookings"`
	ActiveBookings    int64      `json:"active_bookings"`
	CancelledBookings int64      `json:"cancelled_bookings"`
	CompletedTrips    int64      `json:"completed_trips"`
	LastBookingDate   *time.Time `json:"last_booking_date"`
}

// StudentAttendance counts each active student's bookings, optionally
// restricted to allocation dates in [From, To]. Students without bookings
// are listed with zero counts.
func (s *Store) StudentAttendance(ctx context.Context, f AttendanceFilter) ([]StudentAttendance, error) {
	join := "LEFT JOIN seat_allocations a ON a.student_id = st.id AND a.deleted_at IS NULL"
	var args []any
	if f.From != nil {
		join += " AND a.allocation_date >= ?"
		args = append(args, models.DateOnly(*f.From))
	}
	if f.To != nil {
		join += " AND a.allocation_date <= ?"
		args = append(args, models.DateOnly(*f.To))
	}

	q := s.db.WithContext(ctx).
		Table("students AS st").
		Select(`st.id AS student_id, st.student_code, st.full_name, st.department,
			COUNT(a.id) AS total_bookings,
			COUNT(a.id) FILTER (WHERE a.status <> ?) AS active_bookings,
			COUNT(a.id) FILTER (WHERE a.status = ?) AS cancelled_bookings,
			COUNT(a.id) FILTER (WHERE a.status <> ? AND sh.status = ?) AS completed_trips,
			MAX(a.allocation_date) AS last_booking_date`,
			models.AllocationCancelled, models.AllocationCancelled,
			models.AllocationCancelled, models.ShiftCompleted).
		Joins(join, args...).
		Joins("LEFT JOIN shifts sh ON sh.id = a.shift_id").
		Where("st.deleted_at IS NULL AND st.is_active = ?", true)
	if f.Department != "" {
		q = q.Where("st.department = ?", f.Department)
	}

	var rows []StudentAttendance
	err := q.Group("st.id, st.student_code, st.full_name, st.department").
		Order("total_bookings DESC, st.full_name").
		Scan(&rows).Error
	if err != nil {
		return nil, wrap("student attendance", err)
	}
	return rows, nil
}
