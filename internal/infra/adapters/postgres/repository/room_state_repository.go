package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/qrave1/FocusRoom/internal/domain/models"
	"github.com/qrave1/FocusRoom/internal/domain/room"
)

// RoomStateRepository хранит таймер и очки комнат между рестартами
type RoomStateRepository interface {
	Load(ctx context.Context, roomID string) (room.State, bool, error)
	Save(ctx context.Context, roomID string, state room.State) error
}

type pomodoroRow struct {
	RoomID    string        `db:"room_id"`
	IsRunning bool          `db:"is_running"`
	Phase     string        `db:"phase"`
	EndAt     sql.NullInt64 `db:"end_at"`
}

type pointsRow struct {
	Name   string `db:"name"`
	Points int    `db:"points"`
}

type roomStateRepo struct {
	db *sqlx.DB
}

func NewRoomStateRepo(db *sqlx.DB) RoomStateRepository {
	return &roomStateRepo{db: db}
}

func (r *roomStateRepo) Load(ctx context.Context, roomID string) (room.State, bool, error) {
	state := room.State{
		Pomodoro: models.NewPhaseTimer(),
		Points:   make(map[string]int),
	}

	var row pomodoroRow

	query := "SELECT room_id, is_running, phase, end_at FROM room_pomodoro WHERE room_id = $1"

	err := r.db.GetContext(ctx, &row, query, roomID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return room.State{}, false, fmt.Errorf("get pomodoro: %w", err)
	default:
		state.Pomodoro = toPhaseTimer(row)
	}
	found := err == nil

	var points []pointsRow

	query = "SELECT name, points FROM room_points WHERE room_id = $1"

	if err = r.db.SelectContext(ctx, &points, query, roomID); err != nil {
		return room.State{}, false, fmt.Errorf("select points: %w", err)
	}

	for _, p := range points {
		state.Points[p.Name] = p.Points
	}

	return state, found || len(points) > 0, nil
}

func (r *roomStateRepo) Save(ctx context.Context, roomID string, state room.State) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	row := fromPhaseTimer(roomID, state.Pomodoro)

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO room_pomodoro (room_id, is_running, phase, end_at)
		VALUES (:room_id, :is_running, :phase, :end_at)
		ON CONFLICT (room_id) DO UPDATE
		SET is_running = EXCLUDED.is_running,
		    phase      = EXCLUDED.phase,
		    end_at     = EXCLUDED.end_at,
		    updated_at = now()`,
		row,
	)
	if err != nil {
		return fmt.Errorf("upsert pomodoro: %w", err)
	}

	for name, points := range state.Points {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO room_points (room_id, name, points)
			VALUES ($1, $2, $3)
			ON CONFLICT (room_id, name) DO UPDATE
			SET points     = GREATEST(room_points.points, EXCLUDED.points),
			    updated_at = now()`,
			roomID, name, points,
		)
		if err != nil {
			return fmt.Errorf("upsert points: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit room state: %w", err)
	}

	return nil
}

func toPhaseTimer(row pomodoroRow) models.PhaseTimer {
	t := models.PhaseTimer{
		IsRunning: row.IsRunning,
		Phase:     models.Phase(row.Phase),
	}

	if row.EndAt.Valid {
		endAt := row.EndAt.Int64
		t.EndAt = &endAt
	}

	return t
}

func fromPhaseTimer(roomID string, t models.PhaseTimer) pomodoroRow {
	row := pomodoroRow{
		RoomID:    roomID,
		IsRunning: t.IsRunning,
		Phase:     string(t.Phase),
	}

	if t.EndAt != nil {
		row.EndAt = sql.NullInt64{Int64: *t.EndAt, Valid: true}
	}

	return row
}
