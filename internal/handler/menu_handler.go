package handler

import (
	"net/http"
	"strconv"

	"cafe/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /api/menus の公開API
type MenuHandler struct {
	uc *usecase.MenuUsecase
}

// DI
func NewMenuHandler(uc *usecase.MenuUsecase) *MenuHandler {
	return &MenuHandler{uc: uc}
}

func (h *MenuHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/menus", h.list)
}

// category と available（true/false）で絞る
func (h *MenuHandler) list(c echo.Context) error {
	availableOnly := false
	if v := c.QueryParam("available"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return badRequest(c, "invalid available")
		}
		availableOnly = b
	}

	out, err := h.uc.List(c.Request().Context(), usecase.ListMenusInput{
		Category:      c.QueryParam("category"),
		AvailableOnly: availableOnly,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
