package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ebus_manager/internal/apperr"
	"ebus_manager/internal/booking"
	"ebus_manager/internal/middleware"
	"ebus_manager/internal/models"
	"ebus_manager/internal/notify"
	"ebus_manager/internal/realtime"
	"ebus_manager/internal/scheduling"
	"ebus_manager/internal/simulation"
	"ebus_manager/internal/store"
	"ebus_manager/internal/tracking"
)

// Accounts is the credential lookup used by the auth handlers.
type Accounts interface {
	FindAdminByEmail(ctx context.Context, email string) (*models.AdminUser, error)
	FindStudentByEmail(ctx context.Context, email string) (*models.Student, error)
	FindAdmin(ctx context.Context, id uint) (*models.AdminUser, error)
	FindStudent(ctx context.Context, id uint) (*models.Student, error)
	CreateAdmin(ctx context.Context, admin *models.AdminUser) error
	UpdateStudentToken(ctx context.Context, id uint, token string) error
}

// Store is the persistence the fleet, student and reporting handlers use directly.
type Store interface {
	Ping(ctx context.Context) error

	ListBuses(ctx context.Context, f store.BusFilter) ([]models.Bus, int64, error)
	FindBus(ctx context.Context, id uint) (*models.Bus, error)
	CreateBus(ctx context.Context, bus *models.Bus) error
	UpdateBus(ctx context.Context, id uint, fields map[string]any) (*models.Bus, error)
	DeactivateBus(ctx context.Context, id uint) error

	ListDrivers(ctx context.Context, activeOnly bool) ([]models.Driver, error)
	CreateDriver(ctx context.Context, d *models.Driver) error
	DeactivateDriver(ctx context.Context, id uint) error

	ListRoutes(ctx context.Context) ([]models.Route, error)
	FindRoute(ctx context.Context, id uint) (*models.Route, error)
	CreateRoute(ctx context.Context, route *models.Route) error
	RouteStops(ctx context.Context, routeID uint) ([]models.RouteStop, error)
	SaveRouteStops(ctx context.Context, routeID uint, stops []models.RouteStop, update func(*models.Route, []models.RouteStop) error) (*models.Route, error)

	ListStudents(ctx context.Context, f store.StudentFilter) ([]models.Student, int64, error)
	CreateStudent(ctx context.Context, student *models.Student) error

	DashboardStats(ctx context.Context, today time.Time) (*store.DashboardStats, error)
	ActiveBuses(ctx context.Context, day time.Time) ([]store.ActiveBus, error)
	DailyOccupancy(ctx context.Context, from, to time.Time) ([]store.DailyOccupancy, error)
	StudentAttendance(ctx context.Context, f store.AttendanceFilter) ([]store.StudentAttendance, error)
}

// Handler carries the services behind the HTTP routes.
type Handler struct {
	Store     Store
	Accounts  Accounts
	Scheduler *scheduling.Scheduler
	Allocator *booking.Allocator
	Tracker   *tracking.Tracker
	Simulator *simulation.Simulator
	Notifier  *notify.Service
	Publisher *realtime.Publisher
	Hub       *realtime.Hub
	JWT       *middleware.JWT
	Location  *time.Location
}

func respond(c *gin.Context, status int, message string, data any) {
	body := gin.H{"success": true, "message": message}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

// respondError maps service errors onto status codes. Internal errors are
// logged with request context and their detail is withheld.
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logrus.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("Request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   apperr.PublicMessage(err),
		"code":    apperr.Code(err),
	})
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, apperr.Validation("invalid input: %v", err))
		return false
	}
	return true
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondError(c, apperr.Validation("invalid %s", name))
		return 0, false
	}
	return uint(id), true
}

func queryUint(c *gin.Context, name string) (uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, apperr.Validation("invalid %s", name)
	}
	return uint(v), nil
}

func queryPage(c *gin.Context) store.Page {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	return store.Page{Page: page, Limit: limit}
}

func pagination(p store.Page, total int64, defaultLimit int) gin.H {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	pages := (total + int64(p.Limit) - 1) / int64(p.Limit)
	return gin.H{"page": p.Page, "limit": p.Limit, "total": total, "pages": pages}
}

func currentUser(c *gin.Context) (*middleware.Claims, bool) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		respondError(c, apperr.Unauthorized("authentication required"))
	}
	return claims, ok
}

func (h *Handler) today() time.Time {
	loc := h.Location
	if loc == nil {
		loc = time.UTC
	}
	return time.Now().In(loc)
}

// Health reports liveness and database reachability.
func (h *Handler) Health(c *gin.Context) {
	status := "ok"
	code := http.StatusOK
	if h.Store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.Store.Ping(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logrus.WithError(err).Warn("Health check: database unreachable")
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	c.JSON(code, gin.H{"status": status, "time": time.Now().UTC().Format(time.RFC3339)})
}
