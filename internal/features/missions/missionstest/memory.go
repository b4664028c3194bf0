// Package missionstest содержит хранилище миссий в памяти для тестов.
package missionstest

import (
	"context"
	"sync"
	"time"

	"serotonyl.ru/minipoints-bot/internal/common"
	"serotonyl.ru/minipoints-bot/internal/features/missions"
)

type key struct {
	userID int64
	day    string
}

// MemoryStore реализует missions.Store в памяти.
type MemoryStore struct {
	mu       sync.Mutex
	missions []*missions.Mission
	assigned map[key]*missions.ActiveMission
	nextID   int64
}

var _ missions.Store = (*MemoryStore)(nil)

// New создаёт пустое хранилище.
func New() *MemoryStore {
	return &MemoryStore{assigned: make(map[key]*missions.ActiveMission)}
}

func dayKey(userID int64, day time.Time) key {
	return key{userID: userID, day: day.Format(time.DateOnly)}
}

func (m *MemoryStore) ListMissions(ctx context.Context) ([]*missions.Mission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*missions.Mission, 0, len(m.missions))
	for _, ms := range m.missions {
		c := *ms
		out = append(out, &c)
	}
	return out, nil
}

func (m *MemoryStore) CreateMission(ctx context.Context, in missions.NewMission) (*missions.Mission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	ms := &missions.Mission{
		ID:          m.nextID,
		Name:        in.Name,
		Description: in.Description,
		Reward:      in.Reward,
		CreatedAt:   time.Now(),
	}
	m.missions = append(m.missions, ms)
	c := *ms
	return &c, nil
}

func (m *MemoryStore) InsertAssignment(ctx context.Context, userID, missionID int64, day time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := dayKey(userID, day)
	if _, ok := m.assigned[k]; ok {
		return nil
	}
	m.nextID++
	m.assigned[k] = &missions.ActiveMission{
		ID:         m.nextID,
		UserID:     userID,
		MissionID:  missionID,
		AssignedOn: day,
		CreatedAt:  time.Now(),
	}
	return nil
}

func (m *MemoryStore) assignment(k key) (*missions.Assignment, error) {
	am, ok := m.assigned[k]
	if !ok {
		return nil, common.NotFound("No mission assigned for today")
	}
	a := &missions.Assignment{ActiveMission: *am}
	for _, ms := range m.missions {
		if ms.ID == am.MissionID {
			a.Mission = *ms
		}
	}
	return a, nil
}

func (m *MemoryStore) GetAssignment(ctx context.Context, userID int64, day time.Time) (*missions.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.assignment(dayKey(userID, day))
}

func (m *MemoryStore) CompleteAssignment(ctx context.Context, userID, missionID int64, day, at time.Time) (*missions.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := dayKey(userID, day)
	am, ok := m.assigned[k]
	if !ok || am.MissionID != missionID {
		if !ok {
			return nil, common.NotFound("No mission assigned for today")
		}
		return nil, common.NotFound("This mission is not assigned to you today")
	}
	if am.IsCompleted {
		return nil, common.Conflict("You have already completed today's mission")
	}
	am.IsCompleted = true
	am.CompletedAt = &at
	return m.assignment(k)
}

func (m *MemoryStore) CountCompleted(ctx context.Context, day time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := day.Format(time.DateOnly)
	n := 0
	for k, am := range m.assigned {
		if k.day == d && am.IsCompleted {
			n++
		}
	}
	return n, nil
}
