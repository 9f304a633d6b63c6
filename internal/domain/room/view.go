package room

import (
	"encoding/json"
	"log/slog"

	"github.com/qrave1/FocusRoom/internal/application/constant"
	"github.com/qrave1/FocusRoom/internal/domain/events"
	"github.com/qrave1/FocusRoom/internal/domain/models"
)

// Snapshot - снимок комнаты для HTTP API
type Snapshot struct {
	ID           string               `json:"id"`
	Connections  int                  `json:"connections"`
	Participants []models.Participant `json:"participants"`
	Pomodoro     models.PhaseTimer    `json:"pomodoro"`
	Points       map[string]int       `json:"points"`
}

func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Snapshot{
		ID:           r.id,
		Connections:  len(r.members),
		Participants: r.participantsView(),
		Pomodoro:     cloneTimer(r.timer),
		Points:       r.ledger.Snapshot(),
	}
}

// participantsView - участники с именем в порядке входа, безымянные не показываются
func (r *Room) participantsView() []models.Participant {
	named := r.namedMembers()
	view := make([]models.Participant, 0, len(named))

	for _, m := range named {
		view = append(view, models.Participant{
			ID:     m.id,
			Name:   m.name,
			Points: r.ledger.Points(m.name),
		})
	}

	return view
}

func (r *Room) stateEvent() events.RoomStateEvent {
	return events.RoomState(r.participantsView(), cloneTimer(r.timer))
}

func (r *Room) broadcastState() {
	r.broadcast(r.stateEvent())
	r.lastSync = r.now()
}

// broadcast шлет всем, ошибка одного соединения не мешает остальным
func (r *Room) broadcast(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal broadcast", slog.Any(constant.Error, err), slog.String(constant.RoomID, r.id))
		return
	}

	for _, m := range r.members {
		if err := m.conn.Send(data); err != nil {
			slog.Debug(
				"broadcast send",
				slog.Any(constant.Error, err),
				slog.String(constant.RoomID, r.id),
				slog.String(constant.SessionID, m.id),
			)
		}
	}
}

func (r *Room) send(conn Connection, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal message", slog.Any(constant.Error, err), slog.String(constant.RoomID, r.id))
		return
	}

	if err := conn.Send(data); err != nil {
		slog.Debug("send message", slog.Any(constant.Error, err), slog.String(constant.RoomID, r.id))
	}
}
