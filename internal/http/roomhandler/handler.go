package roomhandler

import (
	"errors"
	"net/http"

	"roomrelay/internal/services/membership"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc membership.IMembershipService
}

func New(svc membership.IMembershipService) *Handler { return &Handler{svc: svc} }

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/rooms/:roomId/modes/:mode", h.occupancy)
	r.GET("/healthz", h.health)
}

// @Summary		Room occupancy
// @Description	Returns how many connections are registered in a room/mode pair.
// @Tags			Rooms
// @Param			roomId	path		string	true	"Room ID"	default(1234-5678)
// @Param			mode	path		int		true	"Mode"		Enums(1,2)
// @Success		200		{object}	membership.OccupancyDTO
// @Failure		400		{object}	ErrorResponse
// @Failure		500		{object}	ErrorResponse
// @Router			/rooms/{roomId}/modes/{mode} [get]
func (h *Handler) occupancy(c *gin.Context) {
	var p RoomPath
	if err := c.ShouldBindUri(&p); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	dto, err := h.svc.Occupancy(c.Request.Context(), p.RoomID, p.Mode)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, dto)
	case errors.Is(err, membership.ErrInvalidRoomID), errors.Is(err, membership.ErrInvalidMode):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}

// @Summary		Health check
// @Tags			Ops
// @Success		200	{object}	HealthResponse
// @Failure		503	{object}	ErrorResponse
// @Router			/healthz [get]
func (h *Handler) health(c *gin.Context) {
	if err := h.svc.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}
