// Package bargain хранит ожидающие предложения торга.
// Предложение адресовано второму участнику: ключ карты это id того,
// кто должен ответить accept или reject.
package bargain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Offer: предложение купить товар дешевле цены каталога.
type Offer struct {
	ID            uuid.UUID `json:"id"`
	OffererID     int64     `json:"offererId"`   // Кто предложил и будет платить
	ResponderID   int64     `json:"responderId"` // Кто должен ответить
	ItemID        int64     `json:"itemId"`
	ItemSlug      string    `json:"itemSlug"`
	ItemName      string    `json:"itemName"`
	OfferedPrice  int64     `json:"offeredPrice"`
	OriginalPrice int64     `json:"originalPrice"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Discount возвращает скидку в MP и в процентах (округление до целого).
func (o Offer) Discount() (amount int64, percent int64) {
	amount = o.OriginalPrice - o.OfferedPrice
	if o.OriginalPrice <= 0 {
		return amount, 0
	}
	// round(amount / original * 100) в целых числах
	percent = (amount*200 + o.OriginalPrice) / (2 * o.OriginalPrice)
	return amount, percent
}

// Store: потокобезопасная карта responderID → предложение.
// Каждый экземпляр движка команд владеет своим Store.
type Store struct {
	mu     sync.Mutex
	offers map[int64]Offer
}

// NewStore создаёт пустое хранилище предложений.
func NewStore() *Store {
	return &Store{offers: make(map[int64]Offer)}
}

// Put сохраняет предложение, вытесняя предыдущее для того же получателя.
// Возвращает true, если старое предложение было заменено.
func (s *Store) Put(o Offer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	_, replaced := s.offers[o.ResponderID]
	s.offers[o.ResponderID] = o
	return replaced
}

// Peek возвращает предложение, адресованное responderID, не удаляя его.
func (s *Store) Peek(responderID int64) (Offer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.offers[responderID]
	return o, ok
}

// Take атомарно достаёт и удаляет предложение.
// Два одновременных accept не получат одно и то же предложение.
func (s *Store) Take(responderID int64) (Offer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.offers[responderID]
	if ok {
		delete(s.offers, responderID)
	}
	return o, ok
}

// Len возвращает число ожидающих предложений.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.offers)
}
