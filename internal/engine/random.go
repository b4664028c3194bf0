package engine

import (
	mathrand "math/rand"
	"sync"
	"time"
)

// Roller выдаёт случайное число в [0, 1). Подменяется в тестах.
type Roller interface {
	Float64() float64
}

// lockedRand: *rand.Rand не потокобезопасен, поэтому под мьютексом.
type lockedRand struct {
	mu   sync.Mutex
	rand *mathrand.Rand
}

// NewRandomRoller создаёт Roller на основе math/rand с посевом от текущего времени.
func NewRandomRoller() Roller {
	return &lockedRand{rand: mathrand.New(mathrand.NewSource(time.Now().UnixNano()))}
}

func (r *lockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// FixedRoller всегда возвращает одно и то же значение.
type FixedRoller float64

func (f FixedRoller) Float64() float64 { return float64(f) }
