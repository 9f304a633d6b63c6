package room

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/FocusRoom/internal/domain/events"
	"github.com/qrave1/FocusRoom/internal/domain/models"
)

func TestTimer_StartIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	idA, a := f.join(t, "Alice")

	require.NoError(t, f.room.StartTimer(ctx, idA))
	endAt := *a.state(t).Pomodoro.EndAt

	f.clock.Advance(time.Minute)
	a.reset()

	require.NoError(t, f.room.StartTimer(ctx, idA))

	assert.Empty(t, a.types(t), "second start must not broadcast")
	assert.Equal(t, endAt, *f.room.Snapshot().Pomodoro.EndAt)
	assert.Len(t, f.scheduler.active(), 1)
}

func TestTimer_Reset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	idA, a := f.join(t, "Alice")

	require.NoError(t, f.room.StartTimer(ctx, idA))
	f.clock.Advance(models.WorkDuration)
	f.scheduler.fire(t)
	require.Equal(t, models.PhaseBreak, a.state(t).Pomodoro.Phase)

	require.NoError(t, f.room.ResetTimer(ctx, idA))

	st := a.state(t)
	assert.False(t, st.Pomodoro.IsRunning)
	assert.Equal(t, models.PhaseWork, st.Pomodoro.Phase)
	assert.Nil(t, st.Pomodoro.EndAt)
	assert.Empty(t, f.scheduler.active())

	// очки не сбрасываются
	assert.Equal(t, 1, st.Participants[0].Points)
}

func TestTimer_ResetWhenStoppedBroadcasts(t *testing.T) {
	f := newFixture(t)
	idA, a := f.join(t, "Alice")
	a.reset()

	require.NoError(t, f.room.ResetTimer(context.Background(), idA))

	assert.Equal(t, []string{events.TypeRoomState}, a.types(t))
}

func TestTimer_EarlyWakeChangesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	idA, a := f.join(t, "Alice")

	require.NoError(t, f.room.StartTimer(ctx, idA))
	a.reset()

	f.clock.Advance(10 * time.Minute)
	f.scheduler.fire(t)

	assert.Empty(t, a.types(t))

	snapshot := f.room.Snapshot()
	assert.Equal(t, models.PhaseWork, snapshot.Pomodoro.Phase)
	assert.Equal(t, 0, snapshot.Points["Alice"])

	// пробуждение перепланировано на тот же конец фазы
	active := f.scheduler.active()
	require.Len(t, active, 1)
	assert.True(t, active[0].at.Equal(t0.Add(models.WorkDuration)))
}

func TestTimer_WakeAfterResetIsIgnored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	idA, a := f.join(t, "Alice")

	require.NoError(t, f.room.StartTimer(ctx, idA))
	stale := f.scheduler.active()[0]

	require.NoError(t, f.room.ResetTimer(ctx, idA))
	a.reset()

	f.clock.Advance(models.WorkDuration)
	stale.wake()

	assert.Empty(t, a.types(t))
	assert.False(t, f.room.Snapshot().Pomodoro.IsRunning)
	assert.Equal(t, 0, f.room.Snapshot().Points["Alice"])
}

func TestTimer_BreakExpiryAwardsNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	idA, _ := f.join(t, "Alice")
	_, b := f.join(t, "Bob")

	require.NoError(t, f.room.StartTimer(ctx, idA))

	f.clock.Advance(models.WorkDuration)
	f.scheduler.fire(t)

	f.clock.Advance(models.BreakDuration)
	f.scheduler.fire(t)

	st := b.state(t)
	assert.True(t, st.Pomodoro.IsRunning)
	assert.Equal(t, models.PhaseWork, st.Pomodoro.Phase)
	assert.Equal(t, t0.Add(models.WorkDuration+models.BreakDuration+models.WorkDuration).UnixMilli(), *st.Pomodoro.EndAt)

	for _, p := range st.Participants {
		assert.Equal(t, 1, p.Points, p.Name)
	}
}

func TestTimer_LateWakeCountsFromNow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	idA, _ := f.join(t, "Alice")

	require.NoError(t, f.room.StartTimer(ctx, idA))

	f.clock.Advance(models.WorkDuration + 3*time.Second)
	f.scheduler.fire(t)

	snapshot := f.room.Snapshot()
	assert.Equal(t, models.PhaseBreak, snapshot.Pomodoro.Phase)
	assert.Equal(t, f.clock.Now().Add(models.BreakDuration).UnixMilli(), *snapshot.Pomodoro.EndAt)
}

func TestTimer_SameNameSharesPoints(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	idA, a := f.join(t, "Sam")
	_, _ = f.join(t, "Sam")

	require.NoError(t, f.room.StartTimer(ctx, idA))
	f.clock.Advance(models.WorkDuration)
	f.scheduler.fire(t)

	st := a.state(t)
	require.Len(t, st.Participants, 2)
	assert.Equal(t, 2, st.Participants[0].Points)
	assert.Equal(t, 2, st.Participants[1].Points)
	assert.Equal(t, map[string]int{"Sam": 2}, f.room.Snapshot().Points)
}

func TestTimer_OnlyPresentParticipantsScore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	idA, _ := f.join(t, "Alice")
	idB, _ := f.join(t, "Bob")

	require.NoError(t, f.room.StartTimer(ctx, idA))
	require.True(t, f.room.Leave(idB))

	f.clock.Advance(models.WorkDuration)
	f.scheduler.fire(t)

	assert.Equal(t, map[string]int{"Alice": 1, "Bob": 0}, f.room.Snapshot().Points)
}

func TestTimer_PhaseHook(t *testing.T) {
	type call struct {
		phase   models.Phase
		awarded int
	}

	var calls []call

	f := newFixture(t, WithPhaseHook(func(completed models.Phase, awarded int) {
		calls = append(calls, call{completed, awarded})
	}))
	idA, _ := f.join(t, "Alice")
	_, _ = f.join(t, "Bob")

	require.NoError(t, f.room.StartTimer(context.Background(), idA))

	f.clock.Advance(models.WorkDuration)
	f.scheduler.fire(t)
	f.clock.Advance(models.BreakDuration)
	f.scheduler.fire(t)

	assert.Equal(t, []call{{models.PhaseWork, 2}, {models.PhaseBreak, 0}}, calls)
}

func TestTimer_Resync(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithResyncInterval(5*time.Second))
	idA, a := f.join(t, "Alice")

	// остановленный таймер не рассылается
	f.clock.Advance(time.Minute)
	a.reset()
	f.room.Resync(f.clock.Now())
	assert.Empty(t, a.types(t))

	require.NoError(t, f.room.StartTimer(ctx, idA))
	a.reset()

	f.clock.Advance(2 * time.Second)
	f.room.Resync(f.clock.Now())
	assert.Empty(t, a.types(t), "state was broadcast recently")

	f.clock.Advance(3 * time.Second)
	f.room.Resync(f.clock.Now())
	assert.Equal(t, []string{events.TypeRoomState}, a.types(t))

	before := f.room.Snapshot().Pomodoro
	f.clock.Advance(10 * time.Second)
	f.room.Resync(f.clock.Now())
	assert.Equal(t, before, f.room.Snapshot().Pomodoro, "resync never changes the timer")
}

func TestTimer_ResyncCadence(t *testing.T) {
	const interval = 5 * time.Second

	tests := []struct {
		name string
		skew time.Duration
	}{
		{name: "room clock ahead of ticker", skew: 50 * time.Microsecond},
		{name: "room clock behind ticker", skew: -50 * time.Microsecond},
		{name: "same clock", skew: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, WithResyncInterval(interval))
			idA, a := f.join(t, "Alice")

			start := f.clock.Now()
			require.NoError(t, f.room.StartTimer(context.Background(), idA))

			// тики ровно через интервал, каждый должен дать room_state
			for k := 1; k <= 5; k++ {
				tick := start.Add(time.Duration(k) * interval)
				f.clock.now = tick.Add(tt.skew)
				a.reset()

				f.room.Resync(tick)

				assert.Equal(t, []string{events.TypeRoomState}, a.types(t), "tick %d", k)
			}
		})
	}
}

func TestTimer_ResyncAfterOtherBroadcast(t *testing.T) {
	f := newFixture(t, WithResyncInterval(5*time.Second))
	idA, a := f.join(t, "Alice")
	require.NoError(t, f.room.StartTimer(context.Background(), idA))

	// любой room_state откладывает синхронизацию
	f.clock.Advance(3 * time.Second)
	require.NoError(t, f.room.Join(context.Background(), idA, "Alice"))
	a.reset()

	f.room.Resync(f.clock.Now().Add(4 * time.Second))
	assert.Empty(t, a.types(t))

	f.room.Resync(f.clock.Now().Add(5 * time.Second))
	assert.Equal(t, []string{events.TypeRoomState}, a.types(t))
}

func TestTimer_PersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	f := newFixture(t, WithStore(store))
	idA, _ := f.join(t, "Alice")
	_, _ = f.join(t, "Bob")

	require.NoError(t, f.room.StartTimer(ctx, idA))
	f.clock.Advance(models.WorkDuration)
	f.scheduler.fire(t)

	saved, ok := store.get("room-1")
	require.True(t, ok)
	assert.Equal(t, models.PhaseBreak, saved.Pomodoro.Phase)
	assert.True(t, saved.Pomodoro.IsRunning)
	assert.Equal(t, map[string]int{"Alice": 1, "Bob": 1}, saved.Points)

	loads := store.loads

	// новая комната с тем же id после рестарта
	restarted := newFixture(t, WithStore(store))
	restarted.clock.now = f.clock.Now().Add(time.Minute)

	conn := &fakeConn{}
	id, err := restarted.room.Attach(ctx, conn)
	require.NoError(t, err)

	st := conn.state(t)
	assert.True(t, st.Pomodoro.IsRunning)
	assert.Equal(t, models.PhaseBreak, st.Pomodoro.Phase)
	assert.Equal(t, *saved.Pomodoro.EndAt, *st.Pomodoro.EndAt)

	active := restarted.scheduler.active()
	require.Len(t, active, 1)
	assert.Equal(t, *saved.Pomodoro.EndAt, active[0].at.UnixMilli())

	require.NoError(t, restarted.room.Join(ctx, id, "Alice"))
	st = conn.state(t)
	require.Len(t, st.Participants, 1)
	assert.Equal(t, 1, st.Participants[0].Points)

	assert.Equal(t, loads+1, store.loads, "state is loaded once per room")
}

func TestTimer_OverdueStateAdvancesOnFirstWake(t *testing.T) {
	store := newMemStore()

	endAt := t0.Add(-time.Minute).UnixMilli()
	store.states["room-1"] = State{
		Pomodoro: models.PhaseTimer{IsRunning: true, Phase: models.PhaseWork, EndAt: &endAt},
		Points:   map[string]int{"Alice": 4},
	}

	f := newFixture(t, WithStore(store))
	_, _ = f.join(t, "Alice")

	f.scheduler.fire(t)

	snapshot := f.room.Snapshot()
	assert.Equal(t, models.PhaseBreak, snapshot.Pomodoro.Phase)
	assert.Equal(t, 5, snapshot.Points["Alice"])
}

func TestTimer_StoreFailureKeepsRoomInMemory(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.err = errors.New("connection refused")

	f := newFixture(t, WithStore(store))
	idA, a := f.join(t, "Alice")

	require.NoError(t, f.room.StartTimer(ctx, idA))
	assert.True(t, a.state(t).Pomodoro.IsRunning)

	f.clock.Advance(models.WorkDuration)
	f.scheduler.fire(t)

	assert.Equal(t, 1, f.room.Snapshot().Points["Alice"])
	assert.Positive(t, store.saves)
}

func TestTimer_SanitizeLoadedState(t *testing.T) {
	store := newMemStore()
	store.states["room-1"] = State{
		Pomodoro: models.PhaseTimer{IsRunning: true, Phase: models.Phase("lunch")},
	}

	f := newFixture(t, WithStore(store))
	_, conn := f.join(t, "Alice")

	st := conn.state(t)
	assert.False(t, st.Pomodoro.IsRunning)
	assert.Equal(t, models.PhaseWork, st.Pomodoro.Phase)
	assert.Nil(t, st.Pomodoro.EndAt)
	assert.Empty(t, f.scheduler.active())
}
