package server

import (
	"github.com/labstack/echo/v4"

	"github.com/qrave1/FocusRoom/internal/infra/ports/http/handlers"
	"github.com/qrave1/FocusRoom/internal/infra/ports/http/middleware"
)

func New(
	roomHandler *handlers.RoomHandler,
	iceHandler *handlers.IceHandler,
	wsHandler *handlers.WebSocketHandler,
) *echo.Echo {
	e := echo.New()

	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.SlogLogger())
	e.Use(middleware.PrometheusMiddleware())

	// комната из первого join_room
	e.GET("/ws", wsHandler.Handle)

	// комната из пути, место занимается при подключении
	e.GET("/ws/room/:roomId", wsHandler.HandleRoom, middleware.RoomIDMiddleware())
	e.GET("/room/:roomId", wsHandler.HandleRoom, middleware.RoomIDMiddleware())

	api := e.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ice", iceHandler.IceServers)

			v1.GET("/rooms/:roomId", roomHandler.GetRoom, middleware.RoomIDMiddleware())
		}
	}

	return e
}
