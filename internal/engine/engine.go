// Package engine выполняет текстовые команды экономики MiniPoints.
// Команда разбирается, находится в реестре, выполняется через ledger
// и возвращает типизированный Result, который адаптеры (Telegram, HTTP)
// превращают в текст или JSON.
package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/minipoints-bot/internal/common"
	"serotonyl.ru/minipoints-bot/internal/features/bargain"
	"serotonyl.ru/minipoints-bot/internal/features/ledger"
	"serotonyl.ru/minipoints-bot/internal/features/missions"
)

// Константы механик.
const (
	// RobinHoodQuietWindow: сколько жертва должна не делать исходящих транзакций.
	// Чуть меньше суток, чтобы округление времени в БД не давало ложных отказов.
	RobinHoodQuietWindow = 24*time.Hour - 5*time.Minute
	// StealCooldown: перезарядка steal. Учитываются steal-транзакции в любой роли.
	StealCooldown = 2 * time.Hour
	// StealSuccessChance: бросок меньше этого значения означает успешную кражу.
	StealSuccessChance = 0.66
	// StealAmount: сколько MP переходит при steal.
	StealAmount int64 = 1
	// MinBargainPrice: нижняя граница цены в торге.
	MinBargainPrice int64 = 1
	// RecentTransactionsLimit: сколько транзакций показывает команда transactions.
	RecentTransactionsLimit = 5
)

// GenericErrorMessage показывается при неклассифицированных ошибках.
const GenericErrorMessage = "Something went wrong while processing your command. Please try again later."

// NotRegisteredMessage показывается, если вызывающий не найден среди пользователей.
const NotRegisteredMessage = "You don't seem to be registered in our system. Please contact an administrator."

// Ledger: операции хранилища, которые нужны движку (ledger.Service).
type Ledger interface {
	UserLister
	GetUser(ctx context.Context, id int64) (*ledger.User, error)
	GetCatalogItemBySlug(ctx context.Context, slug string) (*ledger.CatalogItem, error)
	ListCatalogItems(ctx context.Context) ([]*ledger.CatalogItem, error)
	Transfer(ctx context.Context, req ledger.TransferRequest) (*ledger.TransferResult, error)
	ListTransactionsForUser(ctx context.Context, userID int64, limit int) ([]*ledger.TransactionView, error)
	// GuardedTransfer: проверки robinhood и steal идут под той же блокировкой, что и перевод.
	GuardedTransfer(ctx context.Context, firstID, secondID int64, plan ledger.PlanFunc) (*ledger.TransferResult, error)
	ListRules(ctx context.Context, activeOnly bool) ([]*ledger.Rule, error)
}

// Missions: операции подсистемы миссий (missions.Service).
type Missions interface {
	GetOrAssignMission(ctx context.Context, userID int64) (*missions.Assignment, error)
	CompleteToday(ctx context.Context, userID int64) (*missions.Completion, error)
}

// Option настраивает Engine.
type Option func(*Engine)

// WithMissions включает команды mission и mission-done.
func WithMissions(m Missions) Option {
	return func(e *Engine) { e.missions = m }
}

// WithBargains задаёт хранилище предложений торга.
func WithBargains(s *bargain.Store) Option {
	return func(e *Engine) { e.bargains = s }
}

// WithCounterparty подменяет выбор второй стороны.
func WithCounterparty(c Counterparty) Option {
	return func(e *Engine) { e.counterparty = c }
}

// WithPricing подменяет расчёт цены покупки.
func WithPricing(p Pricing) Option {
	return func(e *Engine) { e.pricing = p }
}

// WithRoller подменяет источник случайности для steal.
func WithRoller(r Roller) Option {
	return func(e *Engine) { e.roller = r }
}

// WithClock подменяет текущее время.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithoutRaids отключает robinhood и steal.
func WithoutRaids() Option {
	return func(e *Engine) { e.raids = false }
}

// Engine выполняет команды. Безопасен для одновременного использования.
type Engine struct {
	ledger       Ledger
	missions     Missions
	bargains     *bargain.Store
	counterparty Counterparty
	pricing      Pricing
	roller       Roller
	now          func() time.Time
	raids        bool

	registry *Registry
}

// New создаёт движок команд.
func New(l Ledger, opts ...Option) *Engine {
	e := &Engine{
		ledger: l,
		now:    time.Now,
		raids:  true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.bargains == nil {
		e.bargains = bargain.NewStore()
	}
	if e.counterparty == nil {
		e.counterparty = FirstOtherUser{Users: l}
	}
	if e.pricing == nil {
		e.pricing = ListPrice{}
	}
	if e.roller == nil {
		e.roller = NewRandomRoller()
	}

	e.registry = e.buildRegistry()
	return e
}

// Registry возвращает реестр команд (для help и тестов).
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Bargains возвращает хранилище предложений торга.
func (e *Engine) Bargains() *bargain.Store {
	return e.bargains
}

// Execute выполняет одну команду от имени caller.
// Никогда не возвращает nil и не паникует: любая ошибка превращается в Result типа error.
func (e *Engine) Execute(ctx context.Context, text string, caller *ledger.User) (res *Result) {
	logger := log.WithFields(log.Fields{
		"component": "engine",
		"req_id":    uuid.NewString(),
	})
	if caller != nil {
		logger = logger.WithField("user_id", caller.ID)
	}

	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(log.Fields{
				"panic": fmt.Sprintf("%v", r),
				"stack": string(debug.Stack()),
			}).Error("ПАНИКА при выполнении команды, восстановлено")
			res = ErrorResult(GenericErrorMessage)
		}
	}()

	if caller == nil {
		return ErrorResult(NotRegisteredMessage)
	}

	name, args, ok := ParseCommand(text)
	if !ok {
		return ErrorResult("Please enter a command. Try help for a list of commands.")
	}
	logger = logger.WithField("cmd", name)

	cmd, ok := e.registry.Lookup(name)
	if !ok {
		return ErrorResult(fmt.Sprintf("Unknown command: %s. Try help for a list of commands.", name))
	}

	// Баланс берём свежий: объект от адаптера мог устареть
	fresh, err := e.ledger.GetUser(ctx, caller.ID)
	if err != nil {
		return e.errorResult(logger, err)
	}

	res, err = cmd.run(ctx, fresh, args)
	if err != nil {
		return e.errorResult(logger, err)
	}

	logger.WithField("result", res.Type).Debug("Команда выполнена")
	return res
}

func (e *Engine) errorResult(logger *log.Entry, err error) *Result {
	if msg, ok := common.UserMessage(err); ok {
		logger.WithError(err).Debug("Команда отклонена")
		return ErrorResult(msg)
	}
	logger.WithError(err).Error("Ошибка выполнения команды")
	return ErrorResult(GenericErrorMessage)
}

func (e *Engine) buildRegistry() *Registry {
	r := NewRegistry()

	Register(r, Command{
		Name: "help", Usage: "help",
		Description: "Display this help message",
	}, parseNoArgs, e.help)

	Register(r, Command{
		Name: "balance", Usage: "balance",
		Description: "Check your current balance",
	}, parseNoArgs, e.balance)

	Register(r, Command{
		Name: "catalogue", Aliases: []string{"catalog"}, Usage: "catalogue",
		Description: "View items available for purchase",
	}, parseNoArgs, e.catalogue)

	Register(r, Command{
		Name: "buy", Usage: "buy <item>",
		Description: "Purchase an item from the catalogue",
	}, slugParser("Please specify an item to buy (e.g., buy coffee-run)"), e.buy)

	Register(r, Command{
		Name: "bargain", Usage: "bargain <item> <price>",
		Description: "Offer to buy an item for less than its list price",
	}, parseBargainArgs, e.bargain)

	Register(r, Command{
		Name: "accept", Usage: "accept",
		Description: "Accept the pending bargain offer",
	}, parseNoArgs, e.accept)

	Register(r, Command{
		Name: "reject", Usage: "reject",
		Description: "Reject the pending bargain offer",
	}, parseNoArgs, e.reject)

	Register(r, Command{
		Name: "all-in", Aliases: []string{"allin"}, Usage: "all-in",
		Description: "Transfer your entire balance to the other player",
	}, parseNoArgs, e.allIn)

	Register(r, Command{
		Name: "transactions", Usage: "transactions",
		Description: "Show your 5 most recent transactions",
	}, parseNoArgs, e.transactions)

	Register(r, Command{
		Name: "rules", Usage: "rules",
		Description: "List the active economy rules",
	}, parseNoArgs, e.rules)

	if e.raids {
		Register(r, Command{
			Name: "robinhood", Usage: "robinhood",
			Description: "Take half the balance of a richer player who has been inactive for a day",
		}, parseNoArgs, e.robinHood)

		Register(r, Command{
			Name: "steal", Usage: "steal",
			Description: "Try to steal 1 MP (66% chance, once every 2 hours)",
		}, parseNoArgs, e.steal)
	}

	if e.missions != nil {
		Register(r, Command{
			Name: "mission", Usage: "mission",
			Description: "Show today's mission",
		}, parseNoArgs, e.mission)

		Register(r, Command{
			Name: "mission-done", Aliases: []string{"complete"}, Usage: "mission-done",
			Description: "Mark today's mission as completed",
		}, parseNoArgs, e.missionDone)
	}

	return r
}
