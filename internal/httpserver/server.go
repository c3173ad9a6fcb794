package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/dubya-devlab/voiceturn/internal/controller"
	"github.com/dubya-devlab/voiceturn/internal/turn"
)

type sayRequest struct {
	Text string `json:"text"`
}

// Server is the hosting shell's HTTP surface: health, typed submissions,
// the turn log, and the WebSocket display bridge.
type Server struct {
	Echo *echo.Echo
}

// New constructs the echo server with routes.
func New(ctrl *controller.Controller, history *turn.History, bridge *Bridge) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	// Typed submission path; equivalent to a speech-end event.
	e.POST("/say", func(c echo.Context) error {
		var req sayRequest
		if err := c.Bind(&req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if req.Text == "" {
			return c.String(http.StatusBadRequest, "text required")
		}
		ctrl.Post(controller.TextSubmitted{Text: req.Text})
		return c.NoContent(http.StatusAccepted)
	})

	// Read-only ordered view of the conversation.
	e.GET("/history", func(c echo.Context) error {
		return c.JSON(http.StatusOK, history.Snapshot())
	})

	e.GET("/ws", func(c echo.Context) error {
		bridge.ServeWebSocket(c.Response(), c.Request())
		return nil
	})

	return &Server{Echo: e}
}
