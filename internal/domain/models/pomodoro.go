package models

import "time"

type Phase string

const (
	PhaseWork  Phase = "work"
	PhaseBreak Phase = "break"
)

const (
	WorkDuration  = 25 * time.Minute
	BreakDuration = 5 * time.Minute
)

// Duration возвращает длительность фазы
func (p Phase) Duration() time.Duration {
	if p == PhaseBreak {
		return BreakDuration
	}

	return WorkDuration
}

// Next возвращает фазу, которая следует за текущей
func (p Phase) Next() Phase {
	if p == PhaseWork {
		return PhaseBreak
	}

	return PhaseWork
}

func (p Phase) Valid() bool {
	return p == PhaseWork || p == PhaseBreak
}

// PhaseTimer - общий таймер помодоро комнаты.
// EndAt задан (unix ms) тогда и только тогда, когда IsRunning = true.
type PhaseTimer struct {
	IsRunning bool   `json:"isRunning"`
	Phase     Phase  `json:"phase"`
	EndAt     *int64 `json:"endAt"`
}

func NewPhaseTimer() PhaseTimer {
	return PhaseTimer{Phase: PhaseWork}
}

// Start запускает текущую фазу. Возвращает false, если таймер уже идет.
func (t *PhaseTimer) Start(now time.Time) bool {
	if t.IsRunning {
		return false
	}

	if !t.Phase.Valid() {
		t.Phase = PhaseWork
	}

	t.IsRunning = true
	t.setEnd(now)

	return true
}

// Reset останавливает таймер и возвращает его к фазе работы
func (t *PhaseTimer) Reset() {
	*t = NewPhaseTimer()
}

// Expired сообщает, истекла ли текущая фаза к моменту now
func (t PhaseTimer) Expired(now time.Time) bool {
	return t.IsRunning && t.EndAt != nil && now.UnixMilli() >= *t.EndAt
}

// Advance переключает фазу и отсчитывает новую от now.
// Возвращает завершившуюся фазу.
func (t *PhaseTimer) Advance(now time.Time) Phase {
	completed := t.Phase
	t.Phase = completed.Next()
	t.setEnd(now)

	return completed
}

// EndTime возвращает момент окончания фазы
func (t PhaseTimer) EndTime() (time.Time, bool) {
	if !t.IsRunning || t.EndAt == nil {
		return time.Time{}, false
	}

	return time.UnixMilli(*t.EndAt), true
}

// Remaining - сколько целых секунд осталось до конца фазы
func (t PhaseTimer) Remaining(now time.Time) int64 {
	if t.EndAt == nil {
		return 0
	}

	return max(0, *t.EndAt-now.UnixMilli()) / 1000
}

func (t *PhaseTimer) setEnd(now time.Time) {
	endAt := now.Add(t.Phase.Duration()).UnixMilli()
	t.EndAt = &endAt
}
