package controllers

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ebus_manager/internal/apperr"
	"ebus_manager/internal/middleware"
	"ebus_manager/internal/models"
	"ebus_manager/internal/store"
)

// fakeStore implements the bus and reporting parts of Store; anything else panics.
type fakeStore struct {
	Store

	mu      sync.Mutex
	buses   map[uint]*models.Bus
	updates []map[string]any

	activeDay     time.Time
	occupancyFrom time.Time
	occupancyTo   time.Time
	attendance    store.AttendanceFilter
}

func newFakeStore() *fakeStore {
	return &fakeStore{buses: map[uint]*models.Bus{}}
}

func (f *fakeStore) CreateBus(_ context.Context, bus *models.Bus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.buses {
		if b.BusNumber == bus.BusNumber {
			return apperr.Conflict(apperr.CodeDuplicate, "bus number taken")
		}
	}
	bus.ID = uint(len(f.buses) + 1)
	cp := *bus
	f.buses[bus.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateBus(_ context.Context, id uint, fields map[string]any) (*models.Bus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.buses[id]
	if !ok {
		return nil, apperr.NotFound("bus", id)
	}
	f.updates = append(f.updates, fields)
	for k, v := range fields {
		switch k {
		case "model":
			b.BusModel = v.(string)
		case "capacity":
			b.Capacity = v.(int)
		case "year":
			b.Year = v.(int)
		case "bus_type":
			b.BusType = v.(string)
		}
	}
	cp := *b
	return &cp, nil
}

func (f *fakeStore) ActiveBuses(_ context.Context, day time.Time) ([]store.ActiveBus, error) {
	f.activeDay = day
	lat, lon := 29.25, 79.52
	return []store.ActiveBus{{BusID: 1, BusNumber: "UK04-1234", ShiftID: 3, ShiftStatus: models.ShiftActive,
		RouteName: "Haldwani - GEHU", DriverName: "Ramesh", Latitude: &lat, Longitude: &lon}}, nil
}

func (f *fakeStore) DailyOccupancy(_ context.Context, from, to time.Time) ([]store.DailyOccupancy, error) {
	f.occupancyFrom, f.occupancyTo = from, to
	return []store.DailyOccupancy{{Date: to, Shifts: 2, TotalSeats: 80, BookedSeats: 30, OccupancyPercentage: 37.5}}, nil
}

func (f *fakeStore) StudentAttendance(_ context.Context, filter store.AttendanceFilter) ([]store.StudentAttendance, error) {
	f.attendance = filter
	return []store.StudentAttendance{{StudentID: 7, StudentCode: "GEHU-001", FullName: "Asha", TotalBookings: 5, ActiveBookings: 4, CancelledBookings: 1}}, nil
}

func newStoreFixture(t *testing.T) (*fixture, *fakeStore, string) {
	st := newFakeStore()
	h := &Handler{Store: st, JWT: middleware.NewJWT("test-secret", time.Hour), Location: time.UTC}
	r := gin.New()
	api := r.Group("/api", h.JWT.RequireAuth())
	api.POST("/buses", h.CreateBus)
	api.PUT("/buses/:id", h.UpdateBus)
	api.GET("/dashboard/active-buses", h.ActiveBuses)
	api.GET("/analytics/occupancy", h.OccupancyAnalytics)
	api.GET("/analytics/attendance", h.AttendanceAnalytics)

	f := &fixture{h: h, router: r}
	return f, st, f.token(t, 1, models.RoleAdmin, middleware.UserTypeAdmin)
}

func TestCreateAndUpdateBusModel(t *testing.T) {
	f, st, admin := newStoreFixture(t)

	w, body := f.call(t, http.MethodPost, "/api/buses", admin, gin.H{
		"bus_number": "UK04-1234", "registration_number": "UK04PA1234",
		"capacity": 40, "model": "Tata Starbus", "year": 2022,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := body["data"].(map[string]any)
	assert.Equal(t, "Tata Starbus", data["model"])
	assert.Equal(t, models.BusTypeStandard, data["bus_type"])
	assert.Equal(t, "Tata Starbus", st.buses[1].BusModel)

	w, body = f.call(t, http.MethodPut, "/api/buses/1", admin, gin.H{"model": "Ashok Leyland Lynx"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Ashok Leyland Lynx", body["data"].(map[string]any)["model"])
	require.Len(t, st.updates, 1)
	assert.Equal(t, map[string]any{"model": "Ashok Leyland Lynx"}, st.updates[0])

	cases := []struct {
		name   string
		method string
		path   string
		body   gin.H
		status int
	}{
		{"unknown bus type", http.MethodPost, "/api/buses", gin.H{"bus_number": "X1", "registration_number": "R1", "capacity": 30, "bus_type": "double"}, http.StatusBadRequest},
		{"missing capacity", http.MethodPost, "/api/buses", gin.H{"bus_number": "X2", "registration_number": "R2"}, http.StatusBadRequest},
		{"duplicate number", http.MethodPost, "/api/buses", gin.H{"bus_number": "UK04-1234", "registration_number": "R3", "capacity": 30}, http.StatusConflict},
		{"zero capacity update", http.MethodPut, "/api/buses/1", gin.H{"capacity": 0}, http.StatusBadRequest},
		{"unknown bus", http.MethodPut, "/api/buses/99", gin.H{"model": "Eicher"}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, _ := f.call(t, tc.method, tc.path, admin, tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}
}

func TestActiveBuses(t *testing.T) {
	f, st, admin := newStoreFixture(t)

	w, body := f.call(t, http.MethodGet, "/api/dashboard/active-buses", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rows := body["data"].([]any)
	require.Len(t, rows, 1)
	row := rows[0].(map[string]any)
	assert.Equal(t, "UK04-1234", row["bus_number"])
	assert.Equal(t, 29.25, row["latitude"])
	assert.Nil(t, row["last_gps_update"])
	assert.Equal(t, time.Now().UTC().Format(time.DateOnly), st.activeDay.Format(time.DateOnly))
}

func TestOccupancyAnalytics(t *testing.T) {
	f, st, admin := newStoreFixture(t)

	w, body := f.call(t, http.MethodGet, "/api/analytics/occupancy?start_date=2025-03-01&end_date=2025-03-07", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), st.occupancyFrom)
	assert.Equal(t, time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC), st.occupancyTo)
	row := body["data"].([]any)[0].(map[string]any)
	assert.Equal(t, 37.5, row["occupancy_percentage"])

	w, _ = f.call(t, http.MethodGet, "/api/analytics/occupancy", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.DateOnly(time.Now().UTC()), st.occupancyTo)
	assert.Equal(t, st.occupancyTo.AddDate(0, 0, -7), st.occupancyFrom)

	for _, q := range []string{
		"start_date=2025-03-08&end_date=2025-03-07",
		"start_date=03/01/2025",
		"start_date=2023-01-01&end_date=2025-01-01",
	} {
		w, _ := f.call(t, http.MethodGet, "/api/analytics/occupancy?"+q, admin, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestAttendanceAnalytics(t *testing.T) {
	f, st, admin := newStoreFixture(t)

	w, body := f.call(t, http.MethodGet, "/api/analytics/attendance", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, st.attendance.From)
	assert.Nil(t, st.attendance.To)
	row := body["data"].([]any)[0].(map[string]any)
	assert.Equal(t, float64(5), row["total_bookings"])

	w, _ = f.call(t, http.MethodGet, "/api/analytics/attendance?department=CSE&start_date=2025-03-01", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "CSE", st.attendance.Department)
	require.NotNil(t, st.attendance.From)
	assert.Equal(t, "2025-03-01", st.attendance.From.Format(time.DateOnly))
	assert.Nil(t, st.attendance.To)

	w, _ = f.call(t, http.MethodGet, "/api/analytics/attendance?start_date=2025-03-09&end_date=2025-03-01", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = f.call(t, http.MethodGet, "/api/analytics/attendance?end_date=soon", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
