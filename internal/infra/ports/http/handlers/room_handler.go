package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/qrave1/FocusRoom/internal/infra/appctx"
	"github.com/qrave1/FocusRoom/internal/infra/ports/http/dto"
	"github.com/qrave1/FocusRoom/internal/usecase"
)

type RoomHandler struct {
	signalingUsecase usecase.SignalingUsecase
	now              func() time.Time
}

func NewRoomHandler(signalingUsecase usecase.SignalingUsecase) *RoomHandler {
	return &RoomHandler{signalingUsecase: signalingUsecase, now: time.Now}
}

// GetRoom отдает текущий снимок живой комнаты
func (h *RoomHandler) GetRoom(c echo.Context) error {
	roomID, ok := appctx.RoomID(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid room id"})
	}

	snapshot, ok := h.signalingUsecase.RoomSnapshot(roomID)
	if !ok {
		return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "room not found"})
	}

	return c.JSON(http.StatusOK, dto.NewRoomResponse(snapshot, snapshot.Pomodoro.Remaining(h.now())))
}
