package dto

import (
	"github.com/qrave1/FocusRoom/internal/domain/models"
	"github.com/qrave1/FocusRoom/internal/domain/room"
)

type PomodoroResponse struct {
	IsRunning        bool   `json:"isRunning"`
	Phase            string `json:"phase"`
	EndAt            *int64 `json:"endAt"`
	RemainingSeconds int64  `json:"remainingSeconds"`
}

type RoomResponse struct {
	ID           string               `json:"id"`
	Connections  int                  `json:"connections"`
	Participants []models.Participant `json:"participants"`
	Pomodoro     PomodoroResponse     `json:"pomodoro"`
	Points       map[string]int       `json:"points"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewRoomResponse(s room.Snapshot, remaining int64) RoomResponse {
	return RoomResponse{
		ID:           s.ID,
		Connections:  s.Connections,
		Participants: s.Participants,
		Pomodoro: PomodoroResponse{
			IsRunning:        s.Pomodoro.IsRunning,
			Phase:            string(s.Pomodoro.Phase),
			EndAt:            s.Pomodoro.EndAt,
			RemainingSeconds: remaining,
		},
		Points: s.Points,
	}
}
