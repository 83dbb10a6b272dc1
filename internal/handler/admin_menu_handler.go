package handler

import (
	"net/http"

	"cafe/internal/auth"
	"cafe/internal/middleware"
	"cafe/internal/usecase"

	"github.com/labstack/echo/v4"
)

// AvailabilityRequest は販売可否の切り替え
type AvailabilityRequest struct {
	IsAvailable *bool `json:"isAvailable"`
}

// /api/admin/menus
type AdminMenuHandler struct {
	uc *usecase.MenuUsecase
}

// DI
func NewAdminMenuHandler(uc *usecase.MenuUsecase) *AdminMenuHandler {
	return &AdminMenuHandler{uc: uc}
}

// adminを登録
func (h *AdminMenuHandler) RegisterRoutes(e *echo.Echo, v *auth.Verifier) {
	admin := e.Group("/api/admin")

	admin.Use(middleware.AuthJWT(v))
	admin.Use(middleware.AdminRoleGuard())

	admin.PATCH("/menus/:id/availability", h.setAvailability)
}

func (h *AdminMenuHandler) setAvailability(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req AvailabilityRequest
	if err := c.Bind(&req); err != nil || req.IsAvailable == nil {
		return badRequest(c, "invalid body")
	}

	actor, ok := adminActor(c)
	if !ok {
		return unauthorized(c)
	}

	m, err := h.uc.SetAvailability(c.Request().Context(), actor, id, *req.IsAvailable)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}
