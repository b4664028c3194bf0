package engine

import (
	"serotonyl.ru/minipoints-bot/internal/features/ledger"
	"serotonyl.ru/minipoints-bot/internal/features/missions"
)

// Типы результатов команд. Адаптеры обязаны уметь отрисовать каждый.
const (
	TypeHelp             = "help"
	TypeBalance          = "balance"
	TypeCatalogue        = "catalogue"
	TypePurchaseSuccess  = "purchase_success"
	TypeBargainInitiated = "bargain_initiated"
	TypeBargainAccepted  = "bargain_accepted"
	TypeBargainRejected  = "bargain_rejected"
	TypeTransactions     = "transactions"
	TypeAllInSuccess     = "all_in_success"
	TypeRobinHoodResult  = "robinhood_result"
	TypeStealResult      = "steal_result"
	TypeRules            = "rules"
	TypeMission          = "mission"
	TypeMissionCompleted = "mission_completed"
	TypeError            = "error"
)

// Result: ответ движка на одну команду.
// Для TypeError Content это строка с сообщением для пользователя,
// для остальных типов один из *Payload ниже.
type Result struct {
	Type    string `json:"type"`
	Content any    `json:"content"`
}

// ErrorResult создаёт результат-ошибку.
func ErrorResult(message string) *Result {
	return &Result{Type: TypeError, Content: message}
}

// IsError сообщает, что команда не выполнена.
func (r *Result) IsError() bool {
	return r.Type == TypeError
}

// Message возвращает текст ошибки (пусто для успешных результатов).
func (r *Result) Message() string {
	if s, ok := r.Content.(string); ok {
		return s
	}
	return ""
}

type HelpEntry struct {
	Name        string   `json:"name"`
	Aliases     []string `json:"aliases,omitempty"`
	Usage       string   `json:"usage"`
	Description string   `json:"description"`
}

type HelpPayload struct {
	Commands []HelpEntry `json:"commands"`
}

type BalancePayload struct {
	User *ledger.User `json:"user"`
}

type CataloguePayload struct {
	Items []*ledger.CatalogItem `json:"items"`
}

type Purchase struct {
	Item          *ledger.CatalogItem `json:"item"`
	Cost          int64               `json:"cost"`
	NewBalance    int64               `json:"newBalance"`
	Recipient     string              `json:"recipient"`
	TransactionID int64               `json:"transactionId"`
}

type PurchasePayload struct {
	Purchase Purchase `json:"purchase"`
}

type BargainOffer struct {
	ID                 string              `json:"id"`
	Item               *ledger.CatalogItem `json:"item"`
	OfferedPrice       int64               `json:"offeredPrice"`
	OriginalPrice      int64               `json:"originalPrice"`
	Discount           int64               `json:"discount"`
	DiscountPercentage int64               `json:"discountPercentage"`
	Offerer            string              `json:"offerer"`
	Recipient          string              `json:"recipient"`
	// Replaced: предыдущее предложение этому же получателю было вытеснено.
	Replaced bool `json:"replaced"`
}

type BargainInitiatedPayload struct {
	Offer BargainOffer `json:"offer"`
}

type BargainAcceptedPayload struct {
	ItemName       string `json:"itemName"`
	ItemSlug       string `json:"itemSlug"`
	Price          int64  `json:"price"`
	OriginalPrice  int64  `json:"originalPrice"`
	Offerer        string `json:"offerer"`
	OffererBalance int64  `json:"offererBalance"`
	NewBalance     int64  `json:"newBalance"`
	TransactionID  int64  `json:"transactionId"`
}

type BargainRejectedPayload struct {
	ItemName      string `json:"itemName"`
	ItemSlug      string `json:"itemSlug"`
	OfferedPrice  int64  `json:"offeredPrice"`
	OriginalPrice int64  `json:"originalPrice"`
	Offerer       string `json:"offerer"`
}

type TransactionsPayload struct {
	UserID       int64                     `json:"userId"`
	Transactions []*ledger.TransactionView `json:"transactions"`
}

type AllInPayload struct {
	Amount           int64  `json:"amount"`
	NewBalance       int64  `json:"newBalance"`
	Recipient        string `json:"recipient"`
	RecipientBalance int64  `json:"recipientBalance"`
}

type RobinHoodPayload struct {
	Amount        int64  `json:"amount"`
	Victim        string `json:"victim"`
	VictimBalance int64  `json:"victimBalance"`
	NewBalance    int64  `json:"newBalance"`
}

type StealPayload struct {
	Success         bool   `json:"success"`
	Amount          int64  `json:"amount"`
	Opponent        string `json:"opponent"`
	OpponentBalance int64  `json:"opponentBalance"`
	NewBalance      int64  `json:"newBalance"`
}

type RulesPayload struct {
	Rules []*ledger.Rule `json:"rules"`
}

type MissionPayload struct {
	Mission *missions.Assignment `json:"mission"`
}

type MissionCompletedPayload struct {
	Mission         *missions.Assignment `json:"mission"`
	Reward          int64                `json:"reward"`
	RewardCancelled bool                 `json:"rewardCancelled"`
}
