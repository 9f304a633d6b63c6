package room

import (
	"context"
	"log/slog"
	"time"

	"github.com/qrave1/FocusRoom/internal/application/constant"
	"github.com/qrave1/FocusRoom/internal/domain/models"
)

// StartTimer запускает текущую фазу. Идущий таймер не меняется.
func (r *Room) StartTimer(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireJoined(sessionID); err != nil {
		return err
	}

	r.ensureLoaded(ctx)

	if !r.timer.Start(r.now()) {
		return nil
	}

	r.persist(ctx)
	r.scheduleWake()
	r.broadcastState()

	slog.Info(
		"pomodoro started",
		slog.String(constant.RoomID, r.id),
		slog.String(constant.Phase, string(r.timer.Phase)),
	)

	return nil
}

// ResetTimer останавливает таймер и возвращает фазу работы
func (r *Room) ResetTimer(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireJoined(sessionID); err != nil {
		return err
	}

	r.ensureLoaded(ctx)

	r.timer.Reset()
	r.persist(ctx)
	r.stopWake()
	r.broadcastState()

	slog.Info("pomodoro reset", slog.String(constant.RoomID, r.id))

	return nil
}

// OnWake переключает фазу, если текущая истекла. За завершенную работу
// каждый присутствующий участник с именем получает очко.
func (r *Room) OnWake(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	r.ensureLoaded(ctx)

	if !r.timer.IsRunning || r.timer.EndAt == nil {
		return
	}

	now := r.now()
	if !r.timer.Expired(now) {
		// рано, ничего не меняем
		r.scheduleWake()
		return
	}

	awarded := 0
	if r.timer.Phase == models.PhaseWork {
		for _, m := range r.members {
			if !m.joined() {
				continue
			}

			r.ledger.Award(m.name)
			awarded++
		}
	}

	completed := r.timer.Advance(now)

	r.persist(ctx)
	r.scheduleWake()
	r.broadcastState()

	slog.Info(
		"pomodoro phase completed",
		slog.String(constant.RoomID, r.id),
		slog.String(constant.Phase, string(completed)),
		slog.Int(constant.Awarded, awarded),
	)

	if r.onPhase != nil {
		r.onPhase(completed, awarded)
	}
}

// Resync повторно рассылает room_state, пока таймер идет, не чаще раза в
// интервал синхронизации. Состояние таймера не меняется.
// now - время тика, от него же отсчитывается следующая синхронизация.
func (r *Room) Resync(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || !r.timer.IsRunning || r.timer.EndAt == nil {
		return
	}

	if now.Sub(r.lastSync) < r.resyncInterval {
		return
	}

	r.broadcast(r.stateEvent())
	r.lastSync = now
}

func (r *Room) requireJoined(sessionID string) error {
	m := r.member(sessionID)
	if m == nil {
		return ErrUnknownSession
	}

	if !m.joined() {
		return ErrNotJoined
	}

	return nil
}

// ensureLoaded читает сохраненное состояние один раз, до первой операции
func (r *Room) ensureLoaded(ctx context.Context) {
	if r.loaded {
		return
	}
	r.loaded = true

	ctx, cancel := context.WithTimeout(ctx, r.persistTimeout)
	defer cancel()

	state, ok, err := r.store.Load(ctx, r.id)
	if err != nil {
		slog.Error("load room state", slog.Any(constant.Error, err), slog.String(constant.RoomID, r.id))
		return
	}

	if !ok {
		return
	}

	r.timer = sanitize(state.Pomodoro)
	r.ledger = models.LedgerFrom(state.Points)

	if r.timer.IsRunning {
		r.scheduleWake()
	}
}

// persist вызывается до планирования следующего пробуждения
func (r *Room) persist(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, r.persistTimeout)
	defer cancel()

	state := State{Pomodoro: cloneTimer(r.timer), Points: r.ledger.Snapshot()}

	if err := r.store.Save(ctx, r.id, state); err != nil {
		slog.Error("save room state", slog.Any(constant.Error, err), slog.String(constant.RoomID, r.id))
	}
}

func (r *Room) scheduleWake() {
	r.stopWake()

	at, ok := r.timer.EndTime()
	if !ok {
		return
	}

	r.cancelWake = r.scheduler.ScheduleWake(at, func() {
		r.OnWake(context.Background())
	})
}

func (r *Room) stopWake() {
	if r.cancelWake != nil {
		r.cancelWake()
		r.cancelWake = nil
	}
}

// sanitize восстанавливает связь endAt/isRunning у загруженного состояния
func sanitize(t models.PhaseTimer) models.PhaseTimer {
	if !t.Phase.Valid() {
		t.Phase = models.PhaseWork
	}

	if !t.IsRunning || t.EndAt == nil {
		t.IsRunning = false
		t.EndAt = nil
	}

	return t
}

func cloneTimer(t models.PhaseTimer) models.PhaseTimer {
	if t.EndAt != nil {
		endAt := *t.EndAt
		t.EndAt = &endAt
	}

	return t
}
