// Package middleware содержит промежуточные обработчики для логирования,
// восстановления после паники и rate-limiting.
package middleware

import (
	"time"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
)

// LogMessage логирует входящее сообщение.
// Записывает: user_id, chat_id, username, текст (первые 50 символов).
func LogMessage(message *telego.Message) {
	if message == nil {
		return
	}

	text := []rune(message.Text)
	short := string(text)
	if len(text) > 50 {
		short = string(text[:50]) + "..."
	}

	fields := log.Fields{
		"chat_id": message.Chat.ID,
		"text":    short,
		"time":    time.Now().Format("15:04:05"),
	}
	if message.From != nil {
		fields["user_id"] = message.From.ID
		fields["username"] = message.From.Username
	}

	log.WithFields(fields).Debug("Входящее сообщение")
}
