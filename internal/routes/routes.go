package routes

import (
	"io"
	"os"

	ginlog "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ebus_manager/internal/controllers"
	"ebus_manager/internal/metrics"
	"ebus_manager/internal/middleware"
	"ebus_manager/internal/models"
)

// Options configures the router.
type Options struct {
	AccessLog    io.Writer
	GPSIngestKey string
	Metrics      *metrics.Collector
}

// SetupRouter builds the gin engine; the caller owns the server.
func SetupRouter(h *controllers.Handler, opts Options) *gin.Engine {
	if opts.AccessLog == nil {
		opts.AccessLog = os.Stdout
	}
	r := gin.New()
	r.Use(
		ginlog.SetLogger(
			ginlog.WithWriter(opts.AccessLog),
			ginlog.WithSkipPath([]string{"/health", "/metrics"}),
			ginlog.WithUTC(true),
			ginlog.WithLogger(accessLogger),
		),
		gin.Recovery(),
	)

	r.GET("/health", h.Health)
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	auth := h.JWT.RequireAuth()
	admins := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)
	superAdmin := middleware.RequireRoles(models.RoleSuperAdmin)
	students := middleware.RequireRoles(models.RoleStudent)

	r.GET("/ws/live", auth, h.LiveUpdates)

	api := r.Group("/api")
	AuthRoutes(api, h, auth, superAdmin, students)

	api.POST("/gps/log", middleware.RequireDeviceKeyOrRoles(opts.GPSIngestKey, h.JWT, models.RoleAdmin, models.RoleSuperAdmin), h.LogGPS)

	p := api.Group("", auth)
	FleetRoutes(p, h, admins, superAdmin)
	ShiftRoutes(p, h, admins)
	BookingRoutes(p, h, admins, students)
	OperationsRoutes(p, h, admins)
	return r
}

func AuthRoutes(api *gin.RouterGroup, h *controllers.Handler, auth, superAdmin, students gin.HandlerFunc) {
	g := api.Group("/auth")
	{
		g.POST("/login", h.Login)
		g.POST("/register", auth, superAdmin, h.Register)
		g.GET("/profile", auth, h.Profile)
		g.POST("/device-token", auth, students, h.RegisterDeviceToken)
	}
}

func FleetRoutes(p *gin.RouterGroup, h *controllers.Handler, admins, superAdmin gin.HandlerFunc) {
	buses := p.Group("/buses")
	{
		buses.GET("", h.ListBuses)
		buses.GET("/:id", h.GetBus)
		buses.GET("/:id/location", h.BusLocation)
		buses.POST("", admins, h.CreateBus)
		buses.PUT("/:id", admins, h.UpdateBus)
		buses.DELETE("/:id", superAdmin, h.DeactivateBus)
	}

	drivers := p.Group("/drivers")
	{
		drivers.GET("", h.ListDrivers)
		drivers.POST("", admins, h.CreateDriver)
		drivers.DELETE("/:id", superAdmin, h.DeactivateDriver)
	}

	routes := p.Group("/routes")
	{
		routes.GET("", h.ListRoutes)
		routes.GET("/:id", h.GetRoute)
		routes.POST("", admins, h.CreateRoute)
		routes.GET("/:id/stops", h.RouteStops)
		routes.POST("/:id/stops", admins, h.AddRouteStop)
		routes.PUT("/:id/stops", admins, h.ReplaceRouteStops)
	}
}

func ShiftRoutes(p *gin.RouterGroup, h *controllers.Handler, admins gin.HandlerFunc) {
	shifts := p.Group("/shifts")
	{
		shifts.GET("", h.ListShifts)
		shifts.GET("/:id", h.GetShift)
		shifts.GET("/:id/etas", h.ShiftETAs)
		shifts.POST("", admins, h.CreateShift)
		shifts.PATCH("/:id/status", admins, h.UpdateShiftStatus)
	}
}

func BookingRoutes(p *gin.RouterGroup, h *controllers.Handler, admins, students gin.HandlerFunc) {
	st := p.Group("/students", admins)
	{
		st.GET("", h.ListStudents)
		st.POST("", h.CreateStudent)
	}

	seats := p.Group("/seats", admins)
	{
		seats.POST("/allocate", h.AllocateSeat)
		seats.GET("/shift/:shift_id", h.ShiftAllocations)
	}

	b := p.Group("/bookings", students)
	{
		b.GET("/shifts", h.BookableShifts)
		b.GET("/seats/:shiftId", h.ShiftSeats)
		b.POST("/book", h.BookSeat)
		b.GET("/my", h.MyBookings)
		b.DELETE("/:id", h.CancelBooking)
	}
}

func OperationsRoutes(p *gin.RouterGroup, h *controllers.Handler, admins gin.HandlerFunc) {
	p.GET("/gps/history/:bus_id", h.GPSHistory)
	p.GET("/dashboard/stats", h.DashboardStats)
	p.GET("/dashboard/active-buses", h.ActiveBuses)

	analytics := p.Group("/analytics", admins)
	{
		analytics.GET("/occupancy", h.OccupancyAnalytics)
		analytics.GET("/attendance", h.AttendanceAnalytics)
	}

	sim := p.Group("/simulation", admins)
	{
		sim.POST("/start", h.StartSimulation)
		sim.POST("/stop", h.StopSimulation)
		sim.GET("", h.RunningSimulations)
		sim.GET("/:shiftId", h.SimulationStatus)
	}

	n := p.Group("/notifications", admins)
	{
		n.POST("/send", h.SendNotification)
		n.GET("", h.ListNotifications)
	}
}

// accessLogger tags access lines with the service name and the caller's request id.
func accessLogger(c *gin.Context, l zerolog.Logger) zerolog.Logger {
	ctx := l.With().Str("service", "ebus")
	if id := c.GetHeader("X-Request-ID"); id != "" {
		ctx = ctx.Str("request_id", id)
	}
	return ctx.Logger()
}
