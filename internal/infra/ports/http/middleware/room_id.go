package middleware

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/qrave1/FocusRoom/internal/infra/appctx"
)

const maxRoomIDLength = 128

// RoomIDMiddleware достает :roomId из пути и кладет его в контекст запроса
func RoomIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			roomID := strings.TrimSpace(c.Param("roomId"))

			if roomID == "" || utf8.RuneCountInString(roomID) > maxRoomIDLength {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid room id"})
			}

			c.SetRequest(
				c.Request().WithContext(
					appctx.WithRoomID(c.Request().Context(), roomID),
				),
			)

			return next(c)
		}
	}
}
