// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: форматирование сумм в MP, работа с часовым поясом и датами.
package common

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// CurrencySymbol: короткое обозначение минипоинтов в сообщениях.
const CurrencySymbol = "MP"

// FormatPoints форматирует сумму в читабельную строку.
// Пример: FormatPoints(4850) → "4 850 MP"
func FormatPoints(amount int64) string {
	return fmt.Sprintf("%s %s", FormatNumber(amount), CurrencySymbol)
}

// LoadLocation загружает часовой пояс по имени.
// Если tzdata недоступна (голый контейнер), для Europe/Moscow используем UTC+3
// вручную, для остальных UTC.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err == nil {
		return loc
	}
	if name == "Europe/Moscow" {
		log.WithError(err).Warn("Не удалось загрузить Europe/Moscow, используем UTC+3")
		return time.FixedZone("MSK", 3*60*60)
	}
	log.WithError(err).WithField("tz", name).Warn("Не удалось загрузить часовой пояс, используем UTC")
	return time.UTC
}

// DateIn возвращает только дату (полночь) момента t в часовом поясе loc.
// Используется как «сегодня» для ежедневных миссий.
func DateIn(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// FormatDateTime форматирует время в формат "02.01.2006 15:04".
// Используется для отображения дат транзакций.
func FormatDateTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("02.01.2006 15:04")
}
