// Package seed наполняет пустую базу начальными данными из YAML.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"serotonyl.ru/minipoints-bot/internal/features/ledger"
	"serotonyl.ru/minipoints-bot/internal/features/missions"
)

//go:embed seed.yaml
var defaultSeed []byte

// Ledger: операции ledger.Service, нужные сидеру.
type Ledger interface {
	ListUsers(ctx context.Context) ([]*ledger.User, error)
	CreateUser(ctx context.Context, in ledger.NewUser) (*ledger.User, error)
	ListCatalogItems(ctx context.Context) ([]*ledger.CatalogItem, error)
	CreateCatalogItem(ctx context.Context, in ledger.CatalogItemInput) (*ledger.CatalogItem, error)
	ListRules(ctx context.Context, activeOnly bool) ([]*ledger.Rule, error)
	CreateRule(ctx context.Context, in ledger.RuleInput) (*ledger.Rule, error)
}

// Missions: операции missions.Service, нужные сидеру.
type Missions interface {
	ListMissions(ctx context.Context) ([]*missions.Mission, error)
	CreateMission(ctx context.Context, in missions.NewMission) (*missions.Mission, error)
}

type Item struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Price       int64  `yaml:"price"`
	Slug        string `yaml:"slug"`
}

type Rule struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Type        string         `yaml:"type"`
	Parameters  map[string]any `yaml:"parameters"`
}

// Data: содержимое seed-файла.
type Data struct {
	Users    []ledger.NewUser      `yaml:"users"`
	Catalog  []Item                `yaml:"catalog"`
	Missions []missions.NewMission `yaml:"missions"`
	Rules    []Rule                `yaml:"rules"`
}

// Report: сколько записей создано по секциям.
type Report struct {
	Users    int
	Items    int
	Missions int
	Rules    int
}

// Load читает seed-файл; пустой path означает встроенный seed.yaml.
func Load(path string) (*Data, error) {
	raw := defaultSeed
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("чтение %s: %w", path, err)
		}
		raw = b
	}
	return Parse(raw)
}

// Parse разбирает YAML. Неизвестные поля считаются ошибкой.
func Parse(raw []byte) (*Data, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var d Data
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("разбор seed: %w", err)
	}
	return &d, nil
}

// Seeder применяет Data к пустым таблицам.
type Seeder struct {
	ledger   Ledger
	missions Missions
}

// NewSeeder: missions может быть nil, тогда секция миссий пропускается.
func NewSeeder(l Ledger, m Missions) *Seeder {
	return &Seeder{ledger: l, missions: m}
}

// Run заполняет каждую секцию, только если соответствующая таблица пуста.
func (s *Seeder) Run(ctx context.Context, d *Data) (Report, error) {
	var rep Report
	var err error

	if rep.Users, err = s.seedUsers(ctx, d.Users); err != nil {
		return rep, err
	}
	if rep.Items, err = s.seedCatalog(ctx, d.Catalog); err != nil {
		return rep, err
	}
	if s.missions != nil {
		if rep.Missions, err = s.seedMissions(ctx, d.Missions); err != nil {
			return rep, err
		}
	}
	if rep.Rules, err = s.seedRules(ctx, d.Rules); err != nil {
		return rep, err
	}

	log.WithFields(log.Fields{
		"users":    rep.Users,
		"items":    rep.Items,
		"missions": rep.Missions,
		"rules":    rep.Rules,
	}).Info("Seed завершён")
	return rep, nil
}

func (s *Seeder) seedUsers(ctx context.Context, users []ledger.NewUser) (int, error) {
	existing, err := s.ledger.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("список пользователей: %w", err)
	}
	if len(existing) > 0 {
		log.WithField("count", len(existing)).Info("Пользователи уже есть, пропускаем")
		return 0, nil
	}
	for _, u := range users {
		if _, err := s.ledger.CreateUser(ctx, u); err != nil {
			return 0, fmt.Errorf("пользователь %s: %w", u.Username, err)
		}
	}
	return len(users), nil
}

func (s *Seeder) seedCatalog(ctx context.Context, items []Item) (int, error) {
	existing, err := s.ledger.ListCatalogItems(ctx)
	if err != nil {
		return 0, fmt.Errorf("каталог: %w", err)
	}
	if len(existing) > 0 {
		log.WithField("count", len(existing)).Info("Каталог уже заполнен, пропускаем")
		return 0, nil
	}
	for _, it := range items {
		_, err := s.ledger.CreateCatalogItem(ctx, ledger.CatalogItemInput{
			Name:        it.Name,
			Description: it.Description,
			Price:       it.Price,
			Slug:        it.Slug,
		})
		if err != nil {
			return 0, fmt.Errorf("товар %s: %w", it.Slug, err)
		}
	}
	return len(items), nil
}

func (s *Seeder) seedMissions(ctx context.Context, ms []missions.NewMission) (int, error) {
	existing, err := s.missions.ListMissions(ctx)
	if err != nil {
		return 0, fmt.Errorf("миссии: %w", err)
	}
	if len(existing) > 0 {
		log.WithField("count", len(existing)).Info("Миссии уже есть, пропускаем")
		return 0, nil
	}
	for _, m := range ms {
		if _, err := s.missions.CreateMission(ctx, m); err != nil {
			return 0, fmt.Errorf("миссия %s: %w", m.Name, err)
		}
	}
	return len(ms), nil
}

func (s *Seeder) seedRules(ctx context.Context, rules []Rule) (int, error) {
	existing, err := s.ledger.ListRules(ctx, false)
	if err != nil {
		return 0, fmt.Errorf("правила: %w", err)
	}
	if len(existing) > 0 {
		log.WithField("count", len(existing)).Info("Правила уже есть, пропускаем")
		return 0, nil
	}
	for _, r := range rules {
		params, err := json.Marshal(r.Parameters)
		if err != nil {
			return 0, fmt.Errorf("параметры правила %s: %w", r.Name, err)
		}
		_, err = s.ledger.CreateRule(ctx, ledger.RuleInput{
			Name:        r.Name,
			Description: r.Description,
			Type:        r.Type,
			Parameters:  params,
		})
		if err != nil {
			return 0, fmt.Errorf("правило %s: %w", r.Name, err)
		}
	}
	return len(rules), nil
}
