package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/qrave1/FocusRoom/internal/application/constant"
	"github.com/qrave1/FocusRoom/internal/application/metric"
	"github.com/qrave1/FocusRoom/internal/domain/events"
	"github.com/qrave1/FocusRoom/internal/domain/room"
	"github.com/qrave1/FocusRoom/internal/infra/adapters/memory"
)

// DefaultRoomID используется, когда join_room пришел без roomId
const DefaultRoomID = "default"

// Причины отброшенных сообщений для метрик
const (
	dropMalformed   = "malformed"
	dropUnknownType = "unknown_type"
	dropNotJoined   = "not_joined"
	dropRateLimited = "rate_limited"
)

// Session - соединение, допущенное в комнату
type Session struct {
	ID     string
	RoomID string

	room    *room.Room
	limiter *rate.Limiter
}

// TickerCreator создает канал периодических тиков, в тестах подменяется
type TickerCreator interface {
	Create(d time.Duration) (<-chan time.Time, func())
}

type SignalingUsecase interface {
	// HandleConnect занимает место в комнате roomID для нового соединения
	HandleConnect(ctx context.Context, roomID string, conn room.Connection) (*Session, error)

	// HandleUnrouted обрабатывает кадр соединения, комната которого еще не известна.
	// Комната берется из join_room.roomId; до него кадры отбрасываются.
	HandleUnrouted(ctx context.Context, conn room.Connection, raw []byte) (*Session, error)

	HandleMessage(ctx context.Context, s *Session, raw []byte)
	HandleDisconnect(ctx context.Context, s *Session)

	RoomSnapshot(roomID string) (room.Snapshot, bool)

	// RunResync периодически рассылает room_state комнатам с идущим таймером,
	// каждой раз в interval
	RunResync(ctx context.Context, interval time.Duration)
}

type signalingUsecase struct {
	registry memory.RoomRegistry
	tickers  TickerCreator

	messageRate  rate.Limit
	messageBurst int
}

func NewSignalingUsecase(
	registry memory.RoomRegistry,
	tickers TickerCreator,
	messageRate float64,
	messageBurst int,
) SignalingUsecase {
	return &signalingUsecase{
		registry:     registry,
		tickers:      tickers,
		messageRate:  rate.Limit(messageRate),
		messageBurst: messageBurst,
	}
}

func (s *signalingUsecase) HandleConnect(ctx context.Context, roomID string, conn room.Connection) (*Session, error) {
	roomID = normalizeRoomID(roomID)

	for {
		rm := s.registry.GetOrCreate(roomID)

		sessionID, err := rm.Attach(ctx, conn)
		switch {
		case errors.Is(err, room.ErrRoomClosed):
			// комнату только что выселили, берем новую
			continue
		case errors.Is(err, room.ErrRoomFull):
			metric.IncrementRoomFull()

			return nil, err
		case err != nil:
			return nil, fmt.Errorf("attach to room: %w", err)
		}

		slog.Info(
			"connection attached to room",
			slog.String(constant.RoomID, roomID),
			slog.String(constant.SessionID, sessionID),
		)

		return &Session{
			ID:      sessionID,
			RoomID:  roomID,
			room:    rm,
			limiter: rate.NewLimiter(s.messageRate, s.messageBurst),
		}, nil
	}
}

func (s *signalingUsecase) HandleUnrouted(ctx context.Context, conn room.Connection, raw []byte) (*Session, error) {
	env, err := events.Decode(raw)
	if err != nil {
		s.drop(dropMalformed, "", err)
		return nil, nil
	}

	if env.Type != events.TypeJoinRoom {
		s.drop(dropNotJoined, "", nil)
		return nil, nil
	}

	var join events.JoinRoomEvent
	if err = json.Unmarshal(raw, &join); err != nil {
		s.drop(dropMalformed, "", err)
		return nil, nil
	}

	session, err := s.HandleConnect(ctx, join.Room(), conn)
	if err != nil {
		return nil, err
	}

	s.HandleMessage(ctx, session, raw)

	return session, nil
}

func (s *signalingUsecase) HandleMessage(ctx context.Context, session *Session, raw []byte) {
	if !session.limiter.Allow() {
		s.drop(dropRateLimited, session.RoomID, nil)
		return
	}

	env, err := events.Decode(raw)
	if err != nil {
		s.drop(dropMalformed, session.RoomID, err)
		return
	}

	switch {
	case env.Type == events.TypeJoinRoom:
		var join events.JoinRoomEvent
		if err = json.Unmarshal(raw, &join); err != nil {
			s.drop(dropMalformed, session.RoomID, err)
			return
		}

		err = session.room.Join(ctx, session.ID, join.DisplayName())
		if errors.Is(err, room.ErrRoomFull) {
			metric.IncrementRoomFull()
		}

	case events.IsRelay(env.Type):
		err = session.room.Relay(session.ID, raw)

	case env.Type == events.TypePomodoroStart:
		err = session.room.StartTimer(ctx, session.ID)

	case env.Type == events.TypePomodoroReset:
		err = session.room.ResetTimer(ctx, session.ID)

	default:
		s.drop(dropUnknownType, session.RoomID, nil)
		return
	}

	switch {
	case errors.Is(err, room.ErrNotJoined):
		s.drop(dropNotJoined, session.RoomID, nil)
	case err != nil:
		slog.Debug(
			"handle message",
			slog.Any(constant.Error, err),
			slog.String(constant.MessageType, env.Type),
			slog.String(constant.RoomID, session.RoomID),
			slog.String(constant.SessionID, session.ID),
		)
	}
}

func (s *signalingUsecase) HandleDisconnect(ctx context.Context, session *Session) {
	if session == nil {
		return
	}

	session.room.Leave(session.ID)

	if s.registry.EvictIfEmpty(session.RoomID) {
		slog.Info("room evicted", slog.String(constant.RoomID, session.RoomID))
	}
}

func (s *signalingUsecase) RoomSnapshot(roomID string) (room.Snapshot, bool) {
	rm, ok := s.registry.Get(roomID)
	if !ok {
		return room.Snapshot{}, false
	}

	return rm.Snapshot(), true
}

func (s *signalingUsecase) RunResync(ctx context.Context, interval time.Duration) {
	// тикаем чаще интервала, сам интервал выдерживает комната
	ticks, stop := s.tickers.Create(resyncTick(interval))
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticks:
			s.registry.Range(func(rm *room.Room) {
				rm.Resync(now)
			})
		}
	}
}

func (s *signalingUsecase) drop(reason, roomID string, err error) {
	metric.IncrementDroppedMessages(reason)

	attrs := []any{slog.String("reason", reason)}
	if roomID != "" {
		attrs = append(attrs, slog.String(constant.RoomID, roomID))
	}
	if err != nil {
		attrs = append(attrs, slog.Any(constant.Error, err))
	}

	slog.Debug("message dropped", attrs...)
}

// resyncTicksPerInterval - сколько тиков приходится на один интервал синхронизации
const resyncTicksPerInterval = 5

func resyncTick(interval time.Duration) time.Duration {
	return max(interval/resyncTicksPerInterval, time.Millisecond)
}

func normalizeRoomID(roomID string) string {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return DefaultRoomID
	}

	return roomID
}

// SystemTickers - TickerCreator на time.Ticker
type SystemTickers struct{}

func (SystemTickers) Create(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}
