package room

import (
	"context"
	"time"

	"github.com/qrave1/FocusRoom/internal/domain/models"
)

// Connection - соединение участника. Send вызывается под блокировкой комнаты
// и не должен надолго блокироваться.
type Connection interface {
	Send(data []byte) error
	Close(code int, reason string) error
}

// Scheduler вызывает wake в своей горутине не раньше at.
// Возвращаемая функция отменяет еще не сработавшее пробуждение.
type Scheduler interface {
	ScheduleWake(at time.Time, wake func()) (cancel func())
}

// State - сохраняемая часть комнаты: таймер и очки по именам
type State struct {
	Pomodoro models.PhaseTimer
	Points   map[string]int
}

// StateStore хранит состояние комнат между рестартами
type StateStore interface {
	Load(ctx context.Context, roomID string) (State, bool, error)
	Save(ctx context.Context, roomID string, state State) error
}

// NopStore - для комнат только в памяти
type NopStore struct{}

func (NopStore) Load(context.Context, string) (State, bool, error) { return State{}, false, nil }

func (NopStore) Save(context.Context, string, State) error { return nil }
