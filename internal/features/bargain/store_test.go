package bargain

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscount(t *testing.T) {
	cases := []struct {
		offered, original int64
		amount, percent   int64
	}{
		{100, 150, 50, 33},
		{1, 150, 149, 99},
		{150, 150, 0, 0},
		{125, 250, 125, 50},
		{199, 200, 1, 1}, // 0.5% → 1
		{2, 3, 1, 33},
	}
	for _, c := range cases {
		amount, percent := Offer{OfferedPrice: c.offered, OriginalPrice: c.original}.Discount()
		assert.Equal(t, c.amount, amount, "%d/%d", c.offered, c.original)
		assert.Equal(t, c.percent, percent, "%d/%d", c.offered, c.original)
	}
}

func TestStoreLifecycle(t *testing.T) {
	s := NewStore()

	_, ok := s.Peek(2)
	assert.False(t, ok)

	replaced := s.Put(Offer{OffererID: 1, ResponderID: 2, ItemSlug: "coffee-run", OfferedPrice: 100, OriginalPrice: 150})
	assert.False(t, replaced)

	o, ok := s.Peek(2)
	require.True(t, ok)
	assert.NotEqual(t, uuid.Nil, o.ID)

	replaced = s.Put(Offer{OffererID: 1, ResponderID: 2, ItemSlug: "movie-night", OfferedPrice: 120, OriginalPrice: 200})
	assert.True(t, replaced)
	assert.Equal(t, 1, s.Len())

	o, ok = s.Take(2)
	require.True(t, ok)
	assert.Equal(t, "movie-night", o.ItemSlug)

	_, ok = s.Take(2)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestStoresAreIndependent(t *testing.T) {
	a, b := NewStore(), NewStore()
	a.Put(Offer{OffererID: 1, ResponderID: 2})

	_, ok := b.Peek(2)
	assert.False(t, ok)
}

func TestTakeIsExclusive(t *testing.T) {
	s := NewStore()
	s.Put(Offer{OffererID: 1, ResponderID: 2})

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		taken int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := s.Take(2); ok {
				mu.Lock()
				taken++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, taken)
}
