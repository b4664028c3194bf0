// Package bot: Telegram-адаптер движка команд.
// bot.go принимает апдейты через long polling, проверяет доступ и отвечает текстом.
package bot

import (
	"context"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/minipoints-bot/internal/bot/filters"
	"serotonyl.ru/minipoints-bot/internal/bot/middleware"
	"serotonyl.ru/minipoints-bot/internal/config"
	"serotonyl.ru/minipoints-bot/internal/engine"
	"serotonyl.ru/minipoints-bot/internal/features/ledger"
)

// Executor выполняет текстовую команду от имени пользователя.
type Executor interface {
	Execute(ctx context.Context, text string, caller *ledger.User) *engine.Result
}

// Sender отправляет сообщения. Реализуется *telego.Bot.
type Sender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// Bot: главная структура адаптера.
type Bot struct {
	api    *telego.Bot
	sender Sender
	cfg    *config.Config

	engine   Executor
	renderer *Renderer

	chatFilter  *filters.ChatFilter
	rateLimiter *middleware.RateLimiter

	parser *CommandParser

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
}

// New создаёт бота. api может быть nil в тестах, тогда Start недоступен.
func New(
	api *telego.Bot,
	cfg *config.Config,
	executor Executor,
	chatFilter *filters.ChatFilter,
	loc *time.Location,
) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	b := &Bot{
		api:         api,
		cfg:         cfg,
		engine:      executor,
		renderer:    NewRenderer(loc),
		chatFilter:  chatFilter,
		rateLimiter: middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		parser:      NewCommandParser(),
		inflight:    make(chan struct{}, maxInFlight),
	}
	if api != nil {
		b.sender = api
	}
	return b
}

// Start запускает polling обновлений от Telegram и блокируется до отмены ctx.
func (b *Bot) Start(ctx context.Context) error {
	defer b.rateLimiter.Close()

	updates, err := b.api.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        b.cfg.BotUpdateTimeoutSeconds,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"max_inflight": cap(b.inflight),
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			b.drain()
			return nil

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				b.drain()
				return nil
			}

			// лимит параллелизма
			b.inflight <- struct{}{}
			go func(upd telego.Update) {
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// drain ждёт завершения обработчиков, которые ещё в работе.
func (b *Bot) drain() {
	for i := 0; i < cap(b.inflight); i++ {
		b.inflight <- struct{}{}
	}
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update telego.Update) {
	defer middleware.RecoverUpdate(update)

	message := update.Message
	if message == nil || message.Text == "" {
		return
	}

	middleware.LogMessage(message)

	// Обычную болтовню в чате не трогаем, БД не дёргаем
	cmd, args, isCommand := b.parser.ParseCommand(message.Text)
	if !isCommand {
		return
	}
	log.WithFields(log.Fields{
		"cmd":  cmd,
		"args": args,
	}).Debug("parsed command")

	chatID := message.Chat.ID

	decision := b.chatFilter.CheckAccess(ctx, message)
	if !decision.Allowed {
		if decision.Reply != "" {
			b.sendMessage(ctx, chatID, decision.Reply)
		}
		return
	}

	// Rate limiting
	if !b.rateLimiter.Allow(message.From.ID) {
		log.WithField("user_id", message.From.ID).Debug("rate limited")
		return
	}

	text := cmd
	if len(args) > 0 {
		text += " " + strings.Join(args, " ")
	}

	res := b.engine.Execute(ctx, text, decision.User)
	b.sendMessage(ctx, chatID, b.renderer.Render(res))
}

// sendMessage отправляет текст, разбивая его на части по лимиту Telegram.
func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string) {
	for _, chunk := range SplitMessage(text, TelegramMessageLimit) {
		if _, err := b.sender.SendMessage(ctx, tu.Message(tu.ID(chatID), chunk)); err != nil {
			log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
			return
		}
	}
}

// SendMessageToUser отправляет сообщение пользователю в личку (для уведомлений).
func (b *Bot) SendMessageToUser(ctx context.Context, userID int64, text string) {
	for _, chunk := range SplitMessage(text, TelegramMessageLimit) {
		if _, err := b.sender.SendMessage(ctx, tu.Message(tu.ID(userID), chunk)); err != nil {
			log.WithError(err).WithField("user_id", userID).Debug("Не удалось отправить сообщение")
			return
		}
	}
	log.WithField("user_id", userID).Debug("message sent")
}
