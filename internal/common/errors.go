// Package common: errors.go определяет классы ошибок, общие для всех модулей.
// Хранилище и движок команд возвращают ошибки этих классов, а адаптеры
// (Telegram, HTTP) по ним решают, что показать пользователю.
//
// Каждая конкретная ошибка несёт готовое для пользователя сообщение
// и разворачивается (errors.Is) в свой класс.
package common

import (
	"errors"
	"fmt"
)

// Классы ошибок
var (
	// ErrNotFound: пользователь, товар, правило или миссия не найдены
	ErrNotFound = errors.New("not found")
	// ErrInsufficientBalance: у отправителя не хватает MP
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrConflict: дубликат slug, удаление товара с транзакциями и т.п.
	ErrConflict = errors.New("conflict")
	// ErrValidation: некорректные аргументы команды или поля сущности
	ErrValidation = errors.New("validation failed")
	// ErrNoActiveOffer: accept/reject без ожидающего предложения
	ErrNoActiveOffer = errors.New("no active offer")
	// ErrCooldown: steal/robinhood ещё на перезарядке
	ErrCooldown = errors.New("cooldown active")
)

// kinds: все классы, которые считаются «ожидаемыми» ошибками бизнес-логики.
var kinds = []error{
	ErrNotFound,
	ErrInsufficientBalance,
	ErrConflict,
	ErrValidation,
	ErrNoActiveOffer,
	ErrCooldown,
}

// Error: ошибка бизнес-правила с сообщением для пользователя.
type Error struct {
	Kind    error  // Один из классов выше
	Message string // Текст, который адаптер покажет как есть
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NotFound создаёт ошибку класса ErrNotFound.
func NotFound(format string, args ...any) error { return newError(ErrNotFound, format, args...) }

// InsufficientBalance создаёт ошибку класса ErrInsufficientBalance.
func InsufficientBalance(format string, args ...any) error {
	return newError(ErrInsufficientBalance, format, args...)
}

// Conflict создаёт ошибку класса ErrConflict.
func Conflict(format string, args ...any) error { return newError(ErrConflict, format, args...) }

// Validation создаёт ошибку класса ErrValidation.
func Validation(format string, args ...any) error { return newError(ErrValidation, format, args...) }

// NoActiveOffer создаёт ошибку класса ErrNoActiveOffer.
func NoActiveOffer(format string, args ...any) error {
	return newError(ErrNoActiveOffer, format, args...)
}

// Cooldown создаёт ошибку класса ErrCooldown.
func Cooldown(format string, args ...any) error { return newError(ErrCooldown, format, args...) }

// Kind возвращает класс ошибки или nil, если ошибка не классифицирована
// (обрыв соединения с БД, паника и прочие неожиданности).
func Kind(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// UserMessage возвращает сообщение для пользователя, если ошибка классифицирована.
// Для *Error это его Message, для «голого» класса: текст класса с заглавной буквы.
func UserMessage(err error) (string, bool) {
	if Kind(err) == nil {
		return "", false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message, true
	}
	return capitalize(err.Error()), true
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}
