// Package filters решает, обслуживать ли входящее сообщение.
package filters

import (
	"context"
	"errors"
	"strconv"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/minipoints-bot/internal/common"
	"serotonyl.ru/minipoints-bot/internal/engine"
	"serotonyl.ru/minipoints-bot/internal/features/ledger"
)

// UserResolver находит пользователя экономики по Telegram ID.
type UserResolver interface {
	GetUserByExternalID(ctx context.Context, externalID string) (*ledger.User, error)
}

// Decision: итог проверки доступа.
type Decision struct {
	User *ledger.User
	// Reply: что ответить отклонённому пользователю (пусто, если молча игнорируем).
	Reply   string
	Allowed bool
}

type ChatFilter struct {
	chatID int64
	users  UserResolver
}

// NewChatFilter: chatID == 0 разрешает любые групповые чаты.
func NewChatFilter(chatID int64, users UserResolver) *ChatFilter {
	return &ChatFilter{
		chatID: chatID,
		users:  users,
	}
}

// CheckAccess пропускает сообщения из разрешённого чата или из лички
// от пользователей, привязанных к экономике.
func (f *ChatFilter) CheckAccess(ctx context.Context, message *telego.Message) Decision {
	if message == nil {
		log.WithField("component", "ChatFilter").Warn("nil message")
		return Decision{}
	}
	if message.From == nil {
		log.WithFields(log.Fields{
			"component": "ChatFilter",
			"chat_id":   message.Chat.ID,
			"chat_type": message.Chat.Type,
		}).Warn("nil message.From (service/channel message?)")
		return Decision{}
	}

	logger := log.WithFields(log.Fields{
		"component": "ChatFilter",
		"chat_id":   message.Chat.ID,
		"chat_type": message.Chat.Type,
		"user_id":   message.From.ID,
	})

	// 1) Чат: личка или разрешённая группа
	private := message.Chat.Type == telego.ChatTypePrivate
	if !private && f.chatID != 0 && message.Chat.ID != f.chatID {
		logger.Info("deny: not allowed chat and not private")
		return Decision{}
	}

	// 2) Пользователь должен быть привязан
	user, err := f.users.GetUserByExternalID(ctx, strconv.FormatInt(message.From.ID, 10))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			logger.Info("deny: user not linked")
			return Decision{Reply: engine.NotRegisteredMessage}
		}
		logger.WithError(err).Error("user lookup failed (db)")
		return Decision{Reply: engine.GenericErrorMessage}
	}

	logger.WithField("minipoints_user_id", user.ID).Debug("allow")
	return Decision{User: user, Allowed: true}
}
