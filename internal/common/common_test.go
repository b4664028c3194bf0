package common

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatNumber(t *testing.T) {
	cases := map[int64]string{
		0:       "0",
		999:     "999",
		1000:    "1 000",
		4850:    "4 850",
		1000001: "1 000 001",
		-2350:   "-2 350",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatNumber(in), "FormatNumber(%d)", in)
	}
}

func TestFormatSignedPoints(t *testing.T) {
	assert.Equal(t, "+150 MP", FormatSignedPoints(150))
	assert.Equal(t, "-1 200 MP", FormatSignedPoints(-1200))
}

func TestPluralize(t *testing.T) {
	assert.Equal(t, "1 transaction", Pluralize(1, "transaction", "transactions"))
	assert.Equal(t, "0 transactions", Pluralize(0, "transaction", "transactions"))
	assert.Equal(t, "5 transactions", Pluralize(5, "transaction", "transactions"))
}

func TestErrorKinds(t *testing.T) {
	err := NotFound("Item %q not found", "tea")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, ErrNotFound, Kind(err))

	wrapped := fmt.Errorf("buy: %w", err)
	msg, ok := UserMessage(wrapped)
	assert.True(t, ok)
	assert.Equal(t, `Item "tea" not found`, msg)

	msg, ok = UserMessage(ErrInsufficientBalance)
	assert.True(t, ok)
	assert.Equal(t, "Insufficient balance", msg)

	_, ok = UserMessage(errors.New("connection reset by peer"))
	assert.False(t, ok)
	assert.Nil(t, Kind(errors.New("boom")))
}

func TestDateIn(t *testing.T) {
	msk := time.FixedZone("MSK", 3*60*60)
	// 22:30 UTC, по Москве уже следующий день
	ts := time.Date(2026, 10, 14, 22, 30, 0, 0, time.UTC)
	got := DateIn(ts, msk)
	assert.Equal(t, 15, got.Day())
	assert.Equal(t, 0, got.Hour())
}
