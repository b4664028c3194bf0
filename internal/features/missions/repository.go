// Package missions: repository.go выполняет операции с таблицами missions и active_missions.
package missions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/minipoints-bot/internal/common"
)

// Repository реализует Store поверх PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий миссий.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

var _ Store = (*Repository)(nil)

// ListMissions возвращает пул шаблонов.
func (r *Repository) ListMissions(ctx context.Context) ([]*Mission, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, description, reward, created_at FROM missions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения миссий: %w", err)
	}
	defer rows.Close()

	var list []*Mission
	for rows.Next() {
		m := &Mission{}
		if err := rows.Scan(&m.ID, &m.Name, &m.Description, &m.Reward, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка чтения миссии: %w", err)
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// CreateMission добавляет шаблон.
func (r *Repository) CreateMission(ctx context.Context, in NewMission) (*Mission, error) {
	m := &Mission{Name: in.Name, Description: in.Description, Reward: in.Reward}
	err := r.db.QueryRow(ctx, `
		INSERT INTO missions (name, description, reward) VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, in.Name, in.Description, in.Reward).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания миссии: %w", err)
	}
	return m, nil
}

// InsertAssignment выдаёт миссию на день. Если на этот день миссия уже есть, ничего не делает.
func (r *Repository) InsertAssignment(ctx context.Context, userID, missionID int64, day time.Time) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO active_missions (user_id, mission_id, assigned_on)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, assigned_on) DO NOTHING
	`, userID, missionID, day)
	if err != nil {
		return fmt.Errorf("ошибка выдачи миссии: %w", err)
	}
	return nil
}

// GetAssignment возвращает миссию пользователя на день.
func (r *Repository) GetAssignment(ctx context.Context, userID int64, day time.Time) (*Assignment, error) {
	a := &Assignment{}
	err := r.db.QueryRow(ctx, `
		SELECT am.id, am.user_id, am.mission_id, am.is_completed, am.assigned_on, am.created_at, am.completed_at,
		       m.id, m.name, m.description, m.reward, m.created_at
		FROM active_missions am
		JOIN missions m ON m.id = am.mission_id
		WHERE am.user_id = $1 AND am.assigned_on = $2
	`, userID, day).Scan(
		&a.ID, &a.UserID, &a.MissionID, &a.IsCompleted, &a.AssignedOn, &a.CreatedAt, &a.CompletedAt,
		&a.Mission.ID, &a.Mission.Name, &a.Mission.Description, &a.Mission.Reward, &a.Mission.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NotFound("No mission assigned for today")
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения миссии (user_id=%d): %w", userID, err)
	}
	return a, nil
}

// CompleteAssignment отмечает миссию дня выполненной.
func (r *Repository) CompleteAssignment(ctx context.Context, userID, missionID int64, day, at time.Time) (*Assignment, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE active_missions SET is_completed = TRUE, completed_at = $4
		WHERE user_id = $1 AND mission_id = $2 AND assigned_on = $3 AND NOT is_completed
	`, userID, missionID, day, at)
	if err != nil {
		return nil, fmt.Errorf("ошибка завершения миссии: %w", err)
	}

	a, err := r.GetAssignment(ctx, userID, day)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		if a.MissionID != missionID {
			return nil, common.NotFound("This mission is not assigned to you today")
		}
		return nil, common.Conflict("You have already completed today's mission")
	}
	return a, nil
}

// CountCompleted возвращает число выполненных миссий за день.
func (r *Repository) CountCompleted(ctx context.Context, day time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM active_missions WHERE assigned_on = $1 AND is_completed`, day,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта миссий: %w", err)
	}
	return n, nil
}
