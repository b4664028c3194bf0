// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает ежедневную раздачу миссий и уведомления о них.
package jobs

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/minipoints-bot/internal/common"
	"serotonyl.ru/minipoints-bot/internal/features/ledger"
	"serotonyl.ru/minipoints-bot/internal/features/missions"
)

// MissionService: то, что планировщику нужно от missions.Service.
type MissionService interface {
	AssignAll(ctx context.Context) (int, error)
	GetOrAssignMission(ctx context.Context, userID int64) (*missions.Assignment, error)
}

// UserLister перечисляет участников экономики.
type UserLister interface {
	ListUsers(ctx context.Context) ([]*ledger.User, error)
}

// SendFunc отправляет личное сообщение по Telegram user ID.
type SendFunc func(ctx context.Context, chatID int64, text string)

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron     *cron.Cron
	spec     string
	missions MissionService
	users    UserLister
	sendFunc SendFunc
}

// NewScheduler создаёт планировщик в часовом поясе loc.
// sendFunc может быть nil (бот выключен), тогда уведомлений нет.
func NewScheduler(spec string, loc *time.Location, ms MissionService, users UserLister, sendFunc SendFunc) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		spec:     spec,
		missions: ms,
		users:    users,
		sendFunc: sendFunc,
	}
}

// Start регистрирует задачи и запускает cron. Задачи живут до Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.AssignDaily(ctx) }); err != nil {
		return fmt.Errorf("некорректное расписание %q: %w", s.spec, err)
	}

	s.cron.Start()
	log.WithField("schedule", s.spec).Info("Планировщик задач запущен")
	return nil
}

// AssignDaily раздаёт миссии дня и уведомляет привязанных пользователей.
func (s *Scheduler) AssignDaily(ctx context.Context) {
	log.Info("[CRON] Раздача ежедневных миссий")

	n, err := s.missions.AssignAll(ctx)
	if err != nil {
		log.WithError(err).WithField("assigned", n).Error("[CRON] Ошибка раздачи миссий")
		return
	}
	log.WithField("assigned", n).Info("[CRON] Миссии розданы")

	if s.sendFunc != nil {
		s.notify(ctx)
	}
}

func (s *Scheduler) notify(ctx context.Context) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка получения пользователей")
		return
	}

	for _, u := range users {
		if u.ExternalID == nil {
			continue
		}
		chatID, err := strconv.ParseInt(*u.ExternalID, 10, 64)
		if err != nil {
			log.WithField("user_id", u.ID).Warn("[CRON] external_id не Telegram ID, пропускаем")
			continue
		}

		a, err := s.missions.GetOrAssignMission(ctx, u.ID)
		if err != nil {
			log.WithError(err).WithField("user_id", u.ID).Error("[CRON] Ошибка получения миссии")
			continue
		}

		s.sendFunc(ctx, chatID, fmt.Sprintf("🎯 %s, your mission for today: %s\n%s\nReward: %s off your next purchase",
			u.DisplayName, a.Mission.Name, a.Mission.Description, common.FormatPoints(a.Mission.Reward)))
	}
}

// Stop останавливает планировщик и ждёт выполняющиеся задачи.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
