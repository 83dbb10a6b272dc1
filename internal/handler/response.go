package handler

import (
	"net/http"
	"strconv"

	"cafe/internal/apperr"
	"cafe/internal/domain/model"
	"cafe/internal/middleware"

	"github.com/labstack/echo/v4"
)

// ErrorResponse はエラーの共通形。code は決済事業者のエラーコードがある時だけ。
type ErrorResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if ae, ok := apperr.As(err); ok {
		status := ae.Status()
		if status >= http.StatusInternalServerError {
			c.Logger().Error(err)
		}
		msg := ae.Message
		if ae.Kind == apperr.KindInternal || ae.Kind == apperr.KindGatewayAuth {
			msg = "internal error"
		}
		return c.JSON(status, ErrorResponse{Detail: msg, Code: ae.Code})
	}

	//500
	c.Logger().Error(err)
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Detail: "internal error"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Detail: msg})
}

func paramID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// 監査ログ用の操作者（AuthJWTの後で使う）
func adminActor(c echo.Context) (model.Actor, bool) {
	p, ok := middleware.AdminFromContext(c)
	if !ok {
		return model.Actor{}, false
	}
	return model.Actor{Type: model.ActorAdmin, ID: p.ActorID()}, true
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, ErrorResponse{Detail: "unauthorized"})
}
