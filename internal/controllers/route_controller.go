package controllers

import (
	"encoding/binary"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/twpayne/go-geom"
	gjson "github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkb"
	"gorm.io/gorm"

	"ebus_manager/internal/apperr"
	"ebus_manager/internal/models"
	"ebus_manager/internal/tracking"
)

// RouteResponse mirrors models.Route with the geometry rendered as GeoJSON.
type RouteResponse struct {
	ID                       uint               `json:"id"`
	CreatedAt                time.Time          `json:"created_at"`
	UpdatedAt                time.Time          `json:"updated_at"`
	DeletedAt                gorm.DeletedAt     `json:"deleted_at,omitempty"`
	RouteCode                string             `json:"route_code"`
	RouteName                string             `json:"route_name"`
	StartLocation            string             `json:"start_location"`
	EndLocation              string             `json:"end_location"`
	TotalDistanceKm          float64            `json:"total_distance_km"`
	EstimatedDurationMinutes int                `json:"estimated_duration_minutes"`
	IsActive                 bool               `json:"is_active"`
	Geometry                 json.RawMessage    `json:"geometry,omitempty"`
	Stops                    []models.RouteStop `json:"stops"`
}

func toRouteResponse(route models.Route) RouteResponse {
	geo, _ := convertWKBToGeoJSON(route.Geometry)
	stops := route.Stops
	if stops == nil {
		stops = []models.RouteStop{}
	}
	return RouteResponse{
		ID:                       route.ID,
		CreatedAt:                route.CreatedAt,
		UpdatedAt:                route.UpdatedAt,
		DeletedAt:                route.DeletedAt,
		RouteCode:                route.RouteCode,
		RouteName:                route.RouteName,
		StartLocation:            route.StartLocation,
		EndLocation:              route.EndLocation,
		TotalDistanceKm:          route.TotalDistanceKm,
		EstimatedDurationMinutes: route.EstimatedDurationMinutes,
		IsActive:                 route.IsActive,
		Geometry:                 geo,
		Stops:                    stops,
	}
}

// parseAndConvertGeometry parses a GeoJSON LineString into WKB bytes.
func parseAndConvertGeometry(raw string) ([]byte, error) {
	if raw == "" {
		return nil, nil
	}
	var g geom.T
	if err := gjson.Unmarshal([]byte(raw), &g); err != nil {
		return nil, err
	}
	if _, ok := g.(*geom.LineString); !ok {
		return nil, apperr.Validation("geometry must be a LineString")
	}
	return wkb.Marshal(g, binary.LittleEndian)
}

func convertWKBToGeoJSON(wkbBytes []byte) (json.RawMessage, error) {
	if len(wkbBytes) == 0 {
		return nil, nil
	}
	g, err := wkb.Unmarshal(wkbBytes)
	if err != nil {
		return nil, err
	}
	return gjson.Marshal(g)
}

// stopsGeometry builds a WKB LineString through the stops, nil with fewer than two.
func stopsGeometry(stops []models.RouteStop) ([]byte, error) {
	if len(stops) < 2 {
		return nil, nil
	}
	coords := make([]float64, 0, len(stops)*2)
	for _, st := range stops {
		coords = append(coords, st.Longitude, st.Latitude)
	}
	line := geom.NewLineStringFlat(geom.XY, coords).SetSRID(4326)
	return wkb.Marshal(line, binary.LittleEndian)
}

// stopsDistanceKm sums the great-circle legs between consecutive stops.
func stopsDistanceKm(stops []models.RouteStop) float64 {
	var km float64
	for i := 1; i < len(stops); i++ {
		a, b := stops[i-1], stops[i]
		km += tracking.HaversineKm(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
	}
	return km
}

// deriveFromStops refreshes the route's geometry and, when not given
// explicitly, its distance and duration.
func deriveFromStops(route *models.Route, stops []models.RouteStop, explicitGeometry []byte) error {
	if explicitGeometry != nil {
		route.Geometry = explicitGeometry
	} else {
		g, err := stopsGeometry(stops)
		if err != nil {
			return apperr.Internal("encode route geometry", err)
		}
		route.Geometry = g
	}
	if len(stops) >= 2 {
		route.TotalDistanceKm = stopsDistanceKm(stops)
		route.EstimatedDurationMinutes = tracking.ETAMinutes(route.TotalDistanceKm, tracking.DefaultSpeedKmh)
	}
	return nil
}

type stopInput struct {
	StopName             string  `json:"stop_name" binding:"required"`
	Latitude             float64 `json:"latitude" binding:"min=-90,max=90"`
	Longitude            float64 `json:"longitude" binding:"min=-180,max=180"`
	ArrivalOffsetMinutes int     `json:"arrival_offset_minutes"`
}

func (in stopInput) model() models.RouteStop {
	return models.RouteStop{
		StopName:             strings.TrimSpace(in.StopName),
		Latitude:             in.Latitude,
		Longitude:            in.Longitude,
		ArrivalOffsetMinutes: in.ArrivalOffsetMinutes,
	}
}

func (h *Handler) ListRoutes(c *gin.Context) {
	routes, err := h.Store.ListRoutes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]RouteResponse, len(routes))
	for i, r := range routes {
		out[i] = toRouteResponse(r)
	}
	respond(c, http.StatusOK, "Routes retrieved", out)
}

func (h *Handler) GetRoute(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	route, err := h.Store.FindRoute(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Route retrieved", toRouteResponse(*route))
}

// CreateRoute stores a route with optional stops and GeoJSON geometry.
func (h *Handler) CreateRoute(c *gin.Context) {
	var in struct {
		RouteCode                string      `json:"route_code" binding:"required"`
		RouteName                string      `json:"route_name" binding:"required"`
		StartLocation            string      `json:"start_location"`
		EndLocation              string      `json:"end_location"`
		TotalDistanceKm          float64     `json:"total_distance_km"`
		EstimatedDurationMinutes int         `json:"estimated_duration_minutes"`
		Geometry                 string      `json:"geometry"`
		Stops                    []stopInput `json:"stops" binding:"dive"`
	}
	if !bindJSON(c, &in) {
		return
	}
	wkbGeom, err := parseAndConvertGeometry(in.Geometry)
	if err != nil {
		respondError(c, apperr.Validation("invalid geometry: %v", err))
		return
	}

	route := &models.Route{
		RouteCode:                strings.TrimSpace(in.RouteCode),
		RouteName:                strings.TrimSpace(in.RouteName),
		StartLocation:            in.StartLocation,
		EndLocation:              in.EndLocation,
		TotalDistanceKm:          in.TotalDistanceKm,
		EstimatedDurationMinutes: in.EstimatedDurationMinutes,
		IsActive:                 true,
	}
	for i, s := range in.Stops {
		st := s.model()
		st.StopOrder = i + 1
		route.Stops = append(route.Stops, st)
	}
	if err := deriveFromStops(route, route.Stops, wkbGeom); err != nil {
		respondError(c, err)
		return
	}
	if err := h.Store.CreateRoute(c.Request.Context(), route); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Route created successfully", toRouteResponse(*route))
}

func (h *Handler) RouteStops(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	stops, err := h.Store.RouteStops(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Route stops retrieved", stops)
}

// AddRouteStop appends a stop, or inserts it at stop_order when given.
func (h *Handler) AddRouteStop(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in struct {
		stopInput
		StopOrder int `json:"stop_order"`
	}
	if !bindJSON(c, &in) {
		return
	}
	ctx := c.Request.Context()
	stops, err := h.Store.RouteStops(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	pos := len(stops)
	if in.StopOrder > 0 && in.StopOrder <= len(stops) {
		pos = in.StopOrder - 1
	}
	stops = append(stops[:pos], append([]models.RouteStop{in.model()}, stops[pos:]...)...)

	route, err := h.Store.SaveRouteStops(ctx, id, stops, func(r *models.Route, saved []models.RouteStop) error {
		return deriveFromStops(r, saved, nil)
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Stop added successfully", toRouteResponse(*route))
}

// ReplaceRouteStops rewrites the whole ordered stop list.
func (h *Handler) ReplaceRouteStops(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in struct {
		Stops []stopInput `json:"stops" binding:"required,dive"`
	}
	if !bindJSON(c, &in) {
		return
	}
	stops := make([]models.RouteStop, len(in.Stops))
	for i, s := range in.Stops {
		stops[i] = s.model()
	}
	route, err := h.Store.SaveRouteStops(c.Request.Context(), id, stops, func(r *models.Route, saved []models.RouteStop) error {
		return deriveFromStops(r, saved, nil)
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Route stops updated", toRouteResponse(*route))
}
