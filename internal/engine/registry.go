package engine

import (
	"context"
	"strconv"
	"strings"

	"serotonyl.ru/minipoints-bot/internal/common"
	"serotonyl.ru/minipoints-bot/internal/features/ledger"
)

// runFunc: команда после разбора аргументов.
type runFunc func(ctx context.Context, caller *ledger.User, args []string) (*Result, error)

// ArgParser превращает сырые аргументы в типизированную структуру.
type ArgParser[A any] func(args []string) (A, error)

// TypedHandler выполняет команду с уже проверенными аргументами.
type TypedHandler[A any] func(ctx context.Context, caller *ledger.User, args A) (*Result, error)

// Command: описание команды в реестре.
type Command struct {
	Name        string
	Aliases     []string
	Usage       string
	Description string

	run runFunc
}

// Registry сопоставляет имена и алиасы командам.
type Registry struct {
	commands []*Command
	byName   map[string]*Command
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Command)}
}

// Register добавляет команду с типизированным обработчиком.
// Аргументы разбираются один раз здесь, обработчик получает готовую структуру.
func Register[A any](r *Registry, cmd Command, parse ArgParser[A], handler TypedHandler[A]) {
	c := cmd
	c.run = func(ctx context.Context, caller *ledger.User, args []string) (*Result, error) {
		parsed, err := parse(args)
		if err != nil {
			return nil, err
		}
		return handler(ctx, caller, parsed)
	}

	r.commands = append(r.commands, &c)
	for _, name := range append([]string{c.Name}, c.Aliases...) {
		if _, dup := r.byName[name]; dup {
			panic("engine: duplicate command " + name)
		}
		r.byName[name] = &c
	}
}

// Lookup ищет команду по имени или алиасу.
func (r *Registry) Lookup(name string) (*Command, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// Commands возвращает команды в порядке регистрации.
func (r *Registry) Commands() []*Command {
	return r.commands
}

// --- Разбор аргументов ---

// NoArgs: команда без аргументов. Лишние слова игнорируются.
type NoArgs struct{}

func parseNoArgs(args []string) (NoArgs, error) {
	return NoArgs{}, nil
}

// SlugArgs: команда с одним slug товара.
type SlugArgs struct {
	Slug string
}

func slugParser(missing string) ArgParser[SlugArgs] {
	return func(args []string) (SlugArgs, error) {
		if len(args) < 1 {
			return SlugArgs{}, common.Validation("%s", missing)
		}
		return SlugArgs{Slug: strings.ToLower(args[0])}, nil
	}
}

// BargainArgs: slug и предлагаемая цена.
type BargainArgs struct {
	Slug  string
	Price int64
}

func parseBargainArgs(args []string) (BargainArgs, error) {
	if len(args) < 2 {
		return BargainArgs{}, common.Validation("Please specify an item and a price (e.g., bargain coffee-run 100)")
	}
	price, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return BargainArgs{}, common.Validation("Price must be a whole number (e.g., bargain %s 100)", strings.ToLower(args[0]))
	}
	return BargainArgs{Slug: strings.ToLower(args[0]), Price: price}, nil
}

// ParseCommand разбирает текст на имя команды и аргументы.
// Допускается один ведущий "!" или "/" у первого слова.
func ParseCommand(text string) (string, []string, bool) {
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return "", nil, false
	}

	name := parts[0]
	if strings.HasPrefix(name, "!") || strings.HasPrefix(name, "/") {
		name = name[1:]
	}
	if name == "" {
		return "", nil, false
	}

	return strings.ToLower(name), parts[1:], true
}
