package middleware

import (
	"errors"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Close()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow(1))
	assert.True(t, rl.Allow(1))
	assert.False(t, rl.Allow(1))
	assert.True(t, rl.Allow(2), "лимит считается на пользователя")

	now = now.Add(time.Minute + time.Second)
	assert.True(t, rl.Allow(1))
}

func TestRateLimiterSweep(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Close()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow(1)
	now = now.Add(2 * time.Minute)
	rl.sweep()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.requests)
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0, time.Minute)
	defer rl.Close()

	for i := 0; i < 100; i++ {
		assert.True(t, rl.Allow(1))
	}
}

func TestRateLimiterCloseIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	rl.Close()
	rl.Close()
}

func TestRecoverUpdateLogsContext(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	update := telego.Update{
		UpdateID: 42,
		Message: &telego.Message{
			Chat: telego.Chat{ID: -100500, Type: telego.ChatTypeSupergroup},
			From: &telego.User{ID: 1001},
			Text: "!steal",
		},
	}
	assert.NotPanics(t, func() {
		defer RecoverUpdate(update)
		panic("boom")
	})

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, log.ErrorLevel, entry.Level)
	assert.Equal(t, 42, entry.Data["update_id"])
	assert.Equal(t, int64(-100500), entry.Data["chat_id"])
	assert.Equal(t, int64(1001), entry.Data["user_id"])
	assert.Equal(t, "boom", entry.Data["panic"])
}

func TestRecoverUpdateWithoutMessage(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	assert.NotPanics(t, func() {
		defer RecoverUpdate(telego.Update{UpdateID: 7})
		panic(errors.New("nil message"))
	})
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.NotContains(t, entry.Data, "chat_id")
}

func TestRecoverUpdateNoPanic(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	func() {
		defer RecoverUpdate(telego.Update{UpdateID: 1})
	}()
	assert.Empty(t, hook.AllEntries())
}
