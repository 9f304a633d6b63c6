package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/qrave1/FocusRoom/internal/application/config"
	"github.com/qrave1/FocusRoom/internal/application/constant"
	"github.com/qrave1/FocusRoom/internal/domain/room"
	"github.com/qrave1/FocusRoom/internal/infra/adapters/memory"
	"github.com/qrave1/FocusRoom/internal/infra/appctx"
	"github.com/qrave1/FocusRoom/internal/infra/ports/http/dto"
	"github.com/qrave1/FocusRoom/internal/usecase"
)

type WebSocketHandler struct {
	upgrader *websocket.Upgrader

	signalingUsecase usecase.SignalingUsecase

	wsConnRepo memory.WebsocketConnectionRepository
}

func NewWebSocketHandler(cfg *config.Config, signalingUsecase usecase.SignalingUsecase, wsConnRepo memory.WebsocketConnectionRepository) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.Debug {
					return true
				}

				return r.Header.Get("Origin") == cfg.Domain
			},
		},
		signalingUsecase: signalingUsecase,
		wsConnRepo:       wsConnRepo,
	}
}

// HandleRoom - комната задана в пути, место занимается сразу при подключении
func (h *WebSocketHandler) HandleRoom(c echo.Context) error {
	roomID, ok := appctx.RoomID(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid room id"})
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"WebSocket upgrade error",
			slog.Any(constant.Error, err),
		)
		return nil
	}

	conn := h.wsConnRepo.Add(ws)
	defer h.wsConnRepo.Remove(conn)

	ctx := context.WithoutCancel(c.Request().Context())

	session, err := h.signalingUsecase.HandleConnect(ctx, roomID, conn)
	if err != nil {
		if !errors.Is(err, room.ErrRoomFull) {
			slog.Error("connect to room", slog.Any(constant.Error, err), slog.String(constant.RoomID, roomID))
			_ = conn.Close(websocket.CloseInternalServerErr, "internal error")
		}

		h.drain(conn)

		return nil
	}
	defer h.signalingUsecase.HandleDisconnect(ctx, session)

	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			h.handleWebsocketError(err, session)
			return nil
		}

		h.signalingUsecase.HandleMessage(ctx, session, msg)
	}
}

// Handle - комната берется из первого join_room
func (h *WebSocketHandler) Handle(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"WebSocket upgrade error",
			slog.Any(constant.Error, err),
		)
		return nil
	}

	conn := h.wsConnRepo.Add(ws)
	defer h.wsConnRepo.Remove(conn)

	ctx := context.WithoutCancel(c.Request().Context())

	var session *usecase.Session
	defer func() {
		h.signalingUsecase.HandleDisconnect(ctx, session)
	}()

	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			h.handleWebsocketError(err, session)
			return nil
		}

		if session != nil {
			h.signalingUsecase.HandleMessage(ctx, session, msg)
			continue
		}

		session, err = h.signalingUsecase.HandleUnrouted(ctx, conn, msg)
		if err != nil {
			if !errors.Is(err, room.ErrRoomFull) {
				slog.Error("connect to room", slog.Any(constant.Error, err))
				_ = conn.Close(websocket.CloseInternalServerErr, "internal error")
			}

			h.drain(conn)

			return nil
		}
	}
}

// drain читает соединение до закрытия, пока уходит кадр закрытия
func (h *WebSocketHandler) drain(conn *memory.WSConnection) {
	for {
		if _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WebSocketHandler) handleWebsocketError(err error, session *usecase.Session) {
	attrs := []any{}
	if session != nil {
		attrs = append(attrs, slog.String(constant.RoomID, session.RoomID), slog.String(constant.SessionID, session.ID))
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway, room.CloseRoomFull:
			slog.Info("user disconnected from websocket", attrs...)
		default:
			slog.Warn("websocket close error", append(attrs, slog.Int("code", closeErr.Code))...)
		}
		return
	}

	slog.Debug("websocket read", append(attrs, slog.Any(constant.Error, err))...)
}
