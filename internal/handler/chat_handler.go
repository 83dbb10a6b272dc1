package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"cafe/internal/chat"

	"github.com/labstack/echo/v4"
)

// /api/chat
type ChatHandler struct {
	engine *chat.Engine
}

// DI
func NewChatHandler(engine *chat.Engine) *ChatHandler {
	return &ChatHandler{engine: engine}
}

type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

// limit は連投対策（nilなら付けない）
func (h *ChatHandler) RegisterRoutes(e *echo.Echo, limit echo.MiddlewareFunc) {
	g := e.Group("/api/chat")
	if limit != nil {
		g.Use(limit)
	}

	g.POST("/", h.reply)
	g.POST("", h.reply)
	g.POST("/stream", h.stream)
}

func (h *ChatHandler) reply(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.engine.Reply(c.Request().Context(), chat.Input{Message: req.Message, SessionID: req.SessionID})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// SSEで data: {token, finished} を流す。最後の1件に文と推薦IDが付く。
func (h *ChatHandler) stream(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	w := c.Response()
	started := false
	err := h.engine.Stream(c.Request().Context(), chat.Input{Message: req.Message, SessionID: req.SessionID}, func(f chat.StreamFrame) error {
		if !started {
			w.Header().Set(echo.HeaderContentType, "text/event-stream")
			w.Header().Set(echo.HeaderCacheControl, "no-cache")
			w.Header().Set(echo.HeaderConnection, "keep-alive")
			w.Header().Set("X-Accel-Buffering", "no")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		b, err := json.Marshal(f)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
			return err
		}
		w.Flush()
		return nil
	})
	if err != nil && !started {
		return writeError(c, err)
	}
	// 書き始めた後のエラーは切断なので返さない
	return nil
}
