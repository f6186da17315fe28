package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/camiloruiz/campus-parking/internal/domain"
	"github.com/camiloruiz/campus-parking/internal/dto"
	"github.com/camiloruiz/campus-parking/internal/service"
	"github.com/camiloruiz/campus-parking/pkg/telemetry"
)

// ParkingHandler handles parking HTTP requests
type ParkingHandler struct {
	allocationService service.AllocationService
}

// NewParkingHandler creates a new parking handler
func NewParkingHandler(allocationService service.AllocationService) *ParkingHandler {
	return &ParkingHandler{
		allocationService: allocationService,
	}
}

// EnterZone handles POST /parking/enter
func (h *ParkingHandler) EnterZone(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.parking.enter")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var req dto.EnterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid request",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	span.SetAttributes(
		attribute.String("vehicle_id", req.VehicleID),
		attribute.String("zone_id", req.ZoneID),
		attribute.String("category", req.Category),
	)

	result, err := h.allocationService.EnterZone(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("session_id", result.SessionID))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusCreated, result)
}

// ExitZone handles POST /parking/exit
func (h *ParkingHandler) ExitZone(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.parking.exit")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var req dto.ExitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid request",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	span.SetAttributes(attribute.String("vehicle_id", req.VehicleID))

	result, err := h.allocationService.ExitZone(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetAttributes(
		attribute.String("session_id", result.SessionID),
		attribute.Int64("cost_total", result.CostTotal),
	)
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// GetZoneAvailability handles GET /zones/:id/availability
func (h *ParkingHandler) GetZoneAvailability(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.parking.zone_availability")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	zoneID := c.Param("id")
	if zoneID == "" {
		span.SetStatus(codes.Error, "zone id required")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "zone id required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	span.SetAttributes(attribute.String("zone_id", zoneID))

	result, err := h.allocationService.GetZoneAvailability(ctx, zoneID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// ListZones handles GET /zones
func (h *ParkingHandler) ListZones(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.parking.list_zones")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	siteID := c.Query("site_id")
	if siteID != "" {
		span.SetAttributes(attribute.String("site_id", siteID))
	}

	result, err := h.allocationService.ListZones(ctx, siteID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetAttributes(attribute.Int("count", len(result)))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, dto.SuccessResponse{
		Success: true,
		Data:    result,
	})
}

// CreateZone handles POST /zones
func (h *ParkingHandler) CreateZone(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.parking.create_zone")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var req dto.CreateZoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid request",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	span.SetAttributes(
		attribute.String("zone_id", req.ID),
		attribute.String("site_id", req.SiteID),
	)

	result, err := h.allocationService.CreateZone(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusCreated, result)
}

// GetSession handles GET /sessions/:id
func (h *ParkingHandler) GetSession(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.parking.get_session")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	sessionID := c.Param("id")
	if sessionID == "" {
		span.SetStatus(codes.Error, "session id required")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "session id required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	span.SetAttributes(attribute.String("session_id", sessionID))

	result, err := h.allocationService.GetSession(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// handleError converts domain errors to HTTP responses
func (h *ParkingHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrZoneNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "ZONE_NOT_FOUND",
		})
	case errors.Is(err, domain.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "SESSION_NOT_FOUND",
		})
	case errors.Is(err, domain.ErrNoActiveSession):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error:   err.Error(),
			Code:    "NO_ACTIVE_SESSION",
			Message: "The vehicle has no active parking session",
		})
	case errors.Is(err, domain.ErrNoCapacity):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "NO_CAPACITY",
		})
	case errors.Is(err, domain.ErrVehicleAlreadyParked):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "VEHICLE_ALREADY_PARKED",
		})
	case errors.Is(err, domain.ErrSessionAlreadyClosed):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "SESSION_ALREADY_CLOSED",
		})
	case errors.Is(err, domain.ErrZoneAlreadyExists):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "ZONE_ALREADY_EXISTS",
		})
	case errors.Is(err, domain.ErrCategoryNotAllowed):
		c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "CATEGORY_NOT_ALLOWED",
		})
	case errors.Is(err, domain.ErrInvalidInterval):
		c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_INTERVAL",
		})
	case domain.IsValidationError(err):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_REQUEST",
		})
	case errors.Is(err, domain.ErrContention):
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{
			Error:   err.Error(),
			Code:    "CONTENTION",
			Message: "The zone is under heavy contention, retry shortly",
		})
	case domain.IsConsistencyError(err):
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "CONSISTENCY_VIOLATION",
		})
	default:
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error: "internal server error",
			Code:  "INTERNAL_ERROR",
		})
	}
}
