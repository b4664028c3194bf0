// Package missions управляет ежедневными миссиями.
// Каждый день каждому участнику выдаётся одна случайная миссия из пула шаблонов.
// models.go описывает структуры шаблонов и выданных миссий.
package missions

import "time"

// Mission: шаблон миссии.
type Mission struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Reward      int64     `json:"reward"` // Скидка в MP на следующую покупку
	CreatedAt   time.Time `json:"createdAt"`
}

// NewMission: данные для добавления шаблона (сидер).
type NewMission struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Reward      int64  `yaml:"reward"`
}

// ActiveMission: миссия, выданная пользователю на конкретный день.
// На (UserID, AssignedOn) не больше одной записи.
type ActiveMission struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"userId"`
	MissionID   int64      `json:"missionId"`
	IsCompleted bool       `json:"isCompleted"`
	AssignedOn  time.Time  `json:"assignedOn"` // Календарная дата в часовом поясе APP_TIMEZONE
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Assignment: выданная миссия вместе с шаблоном.
type Assignment struct {
	ActiveMission
	Mission Mission `json:"mission"`
}

// Completion: итог выполнения миссии.
type Completion struct {
	Assignment *Assignment
	Reward     int64
	// RewardCancelled: все участники выполнили миссии в этот день, награда сгорает у всех.
	RewardCancelled bool
}
