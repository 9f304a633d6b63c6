package scheduler

import (
	"sync"
	"time"
)

// TimerScheduler - планировщик пробуждений комнат на time.AfterFunc.
// Таймеры живут в памяти процесса: после рестарта комната сама
// перепланирует пробуждение по сохраненному endAt.
type TimerScheduler struct {
	now func() time.Time

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]*time.Timer
}

func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{
		now:     time.Now,
		pending: make(map[uint64]*time.Timer),
	}
}

// ScheduleWake вызывает wake в отдельной горутине не раньше at
func (s *TimerScheduler) ScheduleWake(at time.Time, wake func()) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID

	s.pending[id] = time.AfterFunc(max(at.Sub(s.now()), 0), func() {
		s.forget(id)
		wake()
	})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if t, ok := s.pending[id]; ok {
			t.Stop()
			delete(s.pending, id)
		}
	}
}

// Pending - количество запланированных и еще не сработавших пробуждений
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.pending)
}

// Stop отменяет все пробуждения, используется при остановке сервера
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.pending {
		t.Stop()
		delete(s.pending, id)
	}
}

func (s *TimerScheduler) forget(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, id)
}
