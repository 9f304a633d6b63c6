package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qrave1/FocusRoom/internal/domain/events"
)

type fakeConn struct {
	mu        sync.Mutex
	frames    [][]byte
	closeCode int
	failSend  bool
}

func (c *fakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failSend {
		return errors.New("broken pipe")
	}

	c.frames = append(c.frames, append([]byte(nil), data...))

	return nil
}

func (c *fakeConn) Close(code int, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closeCode = code

	return nil
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.frames = nil
}

func (c *fakeConn) types(t *testing.T) []string {
	t.Helper()

	c.mu.Lock()
	defer c.mu.Unlock()

	types := make([]string, 0, len(c.frames))
	for _, f := range c.frames {
		env, err := events.Decode(f)
		require.NoError(t, err)
		types = append(types, env.Type)
	}

	return types
}

// last returns the latest frame of the given type decoded into v.
func (c *fakeConn) last(t *testing.T, msgType string, v any) {
	t.Helper()

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.frames) - 1; i >= 0; i-- {
		env, err := events.Decode(c.frames[i])
		require.NoError(t, err)

		if env.Type == msgType {
			require.NoError(t, json.Unmarshal(c.frames[i], v))
			return
		}
	}

	t.Fatalf("no %s frame received", msgType)
}

func (c *fakeConn) state(t *testing.T) events.RoomStateEvent {
	t.Helper()

	var st events.RoomStateEvent
	c.last(t, events.TypeRoomState, &st)

	return st
}

type scheduledWake struct {
	at        time.Time
	wake      func()
	cancelled bool
	fired     bool
}

type fakeScheduler struct {
	mu    sync.Mutex
	wakes []*scheduledWake
}

func (s *fakeScheduler) ScheduleWake(at time.Time, wake func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := &scheduledWake{at: at, wake: wake}
	s.wakes = append(s.wakes, w)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		w.cancelled = true
	}
}

func (s *fakeScheduler) active() []*scheduledWake {
	s.mu.Lock()
	defer s.mu.Unlock()

	var active []*scheduledWake
	for _, w := range s.wakes {
		if !w.cancelled && !w.fired {
			active = append(active, w)
		}
	}

	return active
}

// fire delivers the only pending wake.
func (s *fakeScheduler) fire(t *testing.T) {
	t.Helper()

	active := s.active()
	require.Len(t, active, 1)

	s.mu.Lock()
	active[0].fired = true
	s.mu.Unlock()

	active[0].wake()
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

type memStore struct {
	mu     sync.Mutex
	states map[string]State
	saves  int
	loads  int
	err    error
}

func newMemStore() *memStore {
	return &memStore{states: make(map[string]State)}
}

func (s *memStore) Load(_ context.Context, roomID string) (State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loads++

	if s.err != nil {
		return State{}, false, s.err
	}

	st, ok := s.states[roomID]
	if !ok {
		return State{}, false, nil
	}

	return State{Pomodoro: cloneTimer(st.Pomodoro), Points: copyPoints(st.Points)}, true, nil
}

func (s *memStore) Save(_ context.Context, roomID string, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saves++

	if s.err != nil {
		return s.err
	}

	s.states[roomID] = State{Pomodoro: cloneTimer(state.Pomodoro), Points: copyPoints(state.Points)}

	return nil
}

func (s *memStore) get(roomID string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[roomID]

	return st, ok
}

func copyPoints(points map[string]int) map[string]int {
	out := make(map[string]int, len(points))
	for k, v := range points {
		out[k] = v
	}

	return out
}

var t0 = time.UnixMilli(1_700_000_000_000)

type fixture struct {
	room      *Room
	scheduler *fakeScheduler
	clock     *fakeClock
}

func withIDGenerator(newID func() string) Option {
	return func(r *Room) { r.newID = newID }
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	f := &fixture{
		scheduler: &fakeScheduler{},
		clock:     &fakeClock{now: t0},
	}

	seq := 0
	base := []Option{
		WithClock(f.clock.Now),
		withIDGenerator(func() string {
			seq++
			return fmt.Sprintf("s%d", seq)
		}),
	}

	f.room = New("room-1", f.scheduler, append(base, opts...)...)

	return f
}

// join attaches a fresh connection and names it.
func (f *fixture) join(t *testing.T, name string) (string, *fakeConn) {
	t.Helper()

	conn := &fakeConn{}

	id, err := f.room.Attach(context.Background(), conn)
	require.NoError(t, err)
	require.NoError(t, f.room.Join(context.Background(), id, name))

	return id, conn
}
