// Package missions: service.go содержит жизненный цикл миссий:
// выдача, повторное чтение, выполнение и расчёт награды.
package missions

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/minipoints-bot/internal/common"
	"serotonyl.ru/minipoints-bot/internal/features/ledger"
)

// Store: хранилище миссий.
type Store interface {
	ListMissions(ctx context.Context) ([]*Mission, error)
	CreateMission(ctx context.Context, in NewMission) (*Mission, error)
	// InsertAssignment не меняет уже выданную на day миссию.
	InsertAssignment(ctx context.Context, userID, missionID int64, day time.Time) error
	GetAssignment(ctx context.Context, userID int64, day time.Time) (*Assignment, error)
	CompleteAssignment(ctx context.Context, userID, missionID int64, day, at time.Time) (*Assignment, error)
	CountCompleted(ctx context.Context, day time.Time) (int, error)
}

// UserLister отдаёт список участников (ledger.Service).
type UserLister interface {
	ListUsers(ctx context.Context) ([]*ledger.User, error)
}

// Option настраивает Service.
type Option func(*Service)

// WithClock подменяет текущее время.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPicker подменяет выбор случайного шаблона: pick(n) возвращает индекс в [0, n).
func WithPicker(pick func(n int) int) Option {
	return func(s *Service) { s.pick = pick }
}

// Service управляет ежедневными миссиями.
type Service struct {
	store Store
	users UserLister
	loc   *time.Location
	now   func() time.Time
	pick  func(n int) int
}

// NewService создаёт сервис миссий. «Сегодня» считается в часовом поясе loc.
func NewService(store Store, users UserLister, loc *time.Location, opts ...Option) *Service {
	if loc == nil {
		loc = time.UTC
	}
	s := &Service{
		store: store,
		users: users,
		loc:   loc,
		now:   time.Now,
		pick:  rand.IntN,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today возвращает текущую календарную дату.
func (s *Service) Today() time.Time {
	return common.DateIn(s.now(), s.loc)
}

// ListMissions возвращает пул шаблонов.
func (s *Service) ListMissions(ctx context.Context) ([]*Mission, error) {
	return s.store.ListMissions(ctx)
}

// CreateMission проверяет и добавляет шаблон.
func (s *Service) CreateMission(ctx context.Context, in NewMission) (*Mission, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" || in.Description == "" {
		return nil, common.Validation("Mission name and description are required")
	}
	if in.Reward < 0 {
		return nil, common.Validation("Mission reward cannot be negative")
	}
	return s.store.CreateMission(ctx, in)
}

// AssignDailyMission выдаёт пользователю случайную миссию на сегодня.
// Повторный вызов в тот же день возвращает уже выданную миссию.
func (s *Service) AssignDailyMission(ctx context.Context, userID int64) (*Assignment, error) {
	pool, err := s.store.ListMissions(ctx)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, common.NotFound("No missions are available right now")
	}

	day := s.Today()
	m := pool[s.pick(len(pool))]
	if err := s.store.InsertAssignment(ctx, userID, m.ID, day); err != nil {
		return nil, err
	}

	a, err := s.store.GetAssignment(ctx, userID, day)
	if err != nil {
		return nil, err
	}
	if a.MissionID == m.ID {
		log.WithFields(log.Fields{"user_id": userID, "mission_id": m.ID}).Debug("Миссия дня выдана")
	}
	return a, nil
}

// GetOrAssignMission возвращает миссию на сегодня, выдавая её при необходимости.
func (s *Service) GetOrAssignMission(ctx context.Context, userID int64) (*Assignment, error) {
	a, err := s.store.GetAssignment(ctx, userID, s.Today())
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	return s.AssignDailyMission(ctx, userID)
}

// CompleteMission отмечает миссию дня выполненной.
// Если после этого миссии выполнили все участники, награда отменяется.
func (s *Service) CompleteMission(ctx context.Context, userID, missionID int64) (*Completion, error) {
	day := s.Today()
	a, err := s.store.CompleteAssignment(ctx, userID, missionID, day, s.now())
	if err != nil {
		return nil, err
	}

	cancelled, err := s.everyoneCompleted(ctx, day)
	if err != nil {
		return nil, err
	}

	c := &Completion{Assignment: a, Reward: a.Mission.Reward, RewardCancelled: cancelled}
	if cancelled {
		c.Reward = 0
	}

	log.WithFields(log.Fields{
		"user_id":    userID,
		"mission_id": missionID,
		"cancelled":  cancelled,
	}).Info("Миссия выполнена")

	return c, nil
}

// CompleteToday выполняет миссию, выданную пользователю сегодня.
func (s *Service) CompleteToday(ctx context.Context, userID int64) (*Completion, error) {
	a, err := s.store.GetAssignment(ctx, userID, s.Today())
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.NotFound("You don't have a mission today. Use mission to get one.")
	}
	if err != nil {
		return nil, err
	}
	return s.CompleteMission(ctx, userID, a.MissionID)
}

// PendingDiscount возвращает скидку, заработанную сегодня, или 0.
// Покупки пока её не учитывают.
func (s *Service) PendingDiscount(ctx context.Context, userID int64) (int64, error) {
	day := s.Today()
	a, err := s.store.GetAssignment(ctx, userID, day)
	if errors.Is(err, common.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !a.IsCompleted {
		return 0, nil
	}
	cancelled, err := s.everyoneCompleted(ctx, day)
	if err != nil || cancelled {
		return 0, err
	}
	return a.Mission.Reward, nil
}

// AssignAll выдаёт миссию дня всем участникам. Возвращает число обработанных.
func (s *Service) AssignAll(ctx context.Context) (int, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, u := range users {
		if _, err := s.AssignDailyMission(ctx, u.ID); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *Service) everyoneCompleted(ctx context.Context, day time.Time) (bool, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return false, err
	}
	done, err := s.store.CountCompleted(ctx, day)
	if err != nil {
		return false, err
	}
	return len(users) > 0 && done >= len(users), nil
}
