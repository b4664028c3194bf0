package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
)

// RecoverUpdate вызывается через defer в обработчике обновления.
// Паника логируется вместе с update_id, чатом и автором, бот продолжает работу.
func RecoverUpdate(update telego.Update) {
	r := recover()
	if r == nil {
		return
	}

	fields := log.Fields{
		"component": "panic_recovery",
		"update_id": update.UpdateID,
		"panic":     fmt.Sprintf("%v", r),
		"stack":     string(debug.Stack()),
	}
	if m := update.Message; m != nil {
		fields["chat_id"] = m.Chat.ID
		fields["chat_type"] = m.Chat.Type
		if m.From != nil {
			fields["user_id"] = m.From.ID
		}
	}
	log.WithFields(fields).Error("ПАНИКА при обработке обновления, восстановлено")
}
