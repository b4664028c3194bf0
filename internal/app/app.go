// Package app инициализирует все компоненты приложения.
// app.go: точка сборки. Создаёт БД-пул, репозитории, сервисы, движок команд,
// Telegram-бота, HTTP API и планировщик.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"serotonyl.ru/minipoints-bot/internal/bot"
	"serotonyl.ru/minipoints-bot/internal/bot/filters"
	"serotonyl.ru/minipoints-bot/internal/common"
	"serotonyl.ru/minipoints-bot/internal/config"
	"serotonyl.ru/minipoints-bot/internal/db/postgres"
	"serotonyl.ru/minipoints-bot/internal/engine"
	"serotonyl.ru/minipoints-bot/internal/features/ledger"
	"serotonyl.ru/minipoints-bot/internal/features/missions"
	"serotonyl.ru/minipoints-bot/internal/httpapi"
	"serotonyl.ru/minipoints-bot/internal/jobs"
)

// shutdownTimeout: сколько ждём HTTP-запросы в полёте при остановке.
const shutdownTimeout = 10 * time.Second

// Services: доменный слой поверх пула. Нужен и серверу, и CLI.
type Services struct {
	Ledger   *ledger.Service
	Missions *missions.Service
	Location *time.Location
}

// NewServices собирает сервисы поверх пула.
func NewServices(pool *pgxpool.Pool, cfg *config.Config) *Services {
	loc := common.LoadLocation(cfg.AppTimezone)
	ledgerService := ledger.NewService(ledger.NewRepository(pool))

	return &Services{
		Ledger:   ledgerService,
		Missions: missions.NewService(missions.NewRepository(pool), ledgerService, loc),
		Location: loc,
	}
}

// Connect открывает пул и применяет миграции.
func Connect(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	if err := postgres.Migrate(ctx, pool, postgres.Migrations); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}
	return pool, nil
}

// App содержит все компоненты приложения.
type App struct {
	Config    *config.Config
	DB        *pgxpool.Pool
	Services  *Services
	Engine    *engine.Engine
	Bot       *bot.Bot // nil, если TELEGRAM_BOT_TOKEN не задан
	HTTP      *http.Server
	Scheduler *jobs.Scheduler // nil, если миссии выключены
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен: компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// === 2. Сервисы ===
	svc := NewServices(pool, cfg)

	// === 3. Движок команд ===
	opts := []engine.Option{}
	if cfg.FeatureMissionsEnabled {
		opts = append(opts, engine.WithMissions(svc.Missions))
	}
	if !cfg.FeatureRaidsEnabled {
		opts = append(opts, engine.WithoutRaids())
	}
	eng := engine.New(svc.Ledger, opts...)

	a := &App{
		Config:   cfg,
		DB:       pool,
		Services: svc,
		Engine:   eng,
	}

	// === 4. Telegram ===
	if cfg.TelegramEnabled() {
		b, err := newBot(ctx, cfg, svc, eng)
		if err != nil {
			pool.Close()
			return nil, err
		}
		a.Bot = b
	} else {
		log.Warn("TELEGRAM_BOT_TOKEN не задан, Telegram-бот выключен (HTTP API работает)")
	}

	// === 5. HTTP API ===
	var httpMissions httpapi.Missions
	if cfg.FeatureMissionsEnabled {
		httpMissions = svc.Missions
	}
	a.HTTP = httpapi.NewServer(cfg, httpapi.NewHandler(svc.Ledger, eng, httpMissions, cfg.HTTPAdminTokenHash))
	if cfg.HTTPAdminTokenHash == "" {
		log.Warn("HTTP_ADMIN_TOKEN_HASH не задан, управление каталогом и правилами закрыто")
	}

	// === 6. Планировщик задач ===
	if cfg.FeatureMissionsEnabled {
		var send jobs.SendFunc
		if a.Bot != nil {
			send = a.Bot.SendMessageToUser
		}
		a.Scheduler = jobs.NewScheduler(cfg.MissionsAssignSchedule, svc.Location, svc.Missions, svc.Ledger, send)
	}

	return a, nil
}

func newBot(ctx context.Context, cfg *config.Config, svc *Services, eng *engine.Engine) (*bot.Bot, error) {
	api, err := telego.NewBot(cfg.TelegramBotToken, telego.WithLogger(log.StandardLogger()))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}

	me, err := api.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка авторизации в Telegram: %w", err)
	}
	log.Infof("Авторизован как @%s", me.Username)

	chatFilter := filters.NewChatFilter(cfg.TelegramChatID, svc.Ledger)
	return bot.New(api, cfg, eng, chatFilter, svc.Location), nil
}

// Run запускает все компоненты и блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	defer a.DB.Close()

	if a.Scheduler != nil {
		if err := a.Scheduler.Start(ctx); err != nil {
			return err
		}
		defer a.Scheduler.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithField("addr", a.HTTP.Addr).Info("HTTP API слушает")
		if err := a.HTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP сервер: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.HTTP.Shutdown(shutdownCtx)
	})

	if a.Bot != nil {
		g.Go(func() error {
			return a.Bot.Start(gctx)
		})
	}

	return g.Wait()
}

// SetupLogging настраивает формат и уровень логов.
func SetupLogging(level string) {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)

	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.WithField("level", level).Warn("Неизвестный APP_LOG_LEVEL, используем info")
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}
