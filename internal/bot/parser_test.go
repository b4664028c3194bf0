package bot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	p := NewCommandParser()

	tests := []struct {
		text    string
		cmd     string
		args    []string
		command bool
	}{
		{"!balance", "balance", nil, true},
		{".BUY coffee-run", "buy", []string{"coffee-run"}, true},
		{"/bargain@minipoints_bot movie-night 150", "bargain", []string{"movie-night", "150"}, true},
		{"  !all-in  ", "all-in", nil, true},
		{"balance", "", nil, false},
		{"!", "", nil, false},
		{"/@minipoints_bot", "", nil, false},
		{"", "", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			cmd, args, ok := p.ParseCommand(tt.text)
			assert.Equal(t, tt.command, ok)
			assert.Equal(t, tt.cmd, cmd)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestSplitMessage(t *testing.T) {
	assert.Nil(t, SplitMessage("", 10))
	assert.Equal(t, []string{"short"}, SplitMessage("short", 10))

	t.Run("newline", func(t *testing.T) {
		chunks := SplitMessage("aaaa\nbbbb\ncccc", 10)
		assert.Equal(t, []string{"aaaa\nbbbb", "cccc"}, chunks)
	})

	t.Run("space", func(t *testing.T) {
		chunks := SplitMessage("aaaa bbbb cccc", 10)
		assert.Equal(t, []string{"aaaa bbbb", "cccc"}, chunks)
	})

	t.Run("hard cut", func(t *testing.T) {
		chunks := SplitMessage(strings.Repeat("a", 25), 10)
		require.Len(t, chunks, 3)
		assert.Equal(t, strings.Repeat("a", 10), chunks[0])
		assert.Equal(t, strings.Repeat("a", 5), chunks[2])
	})

	t.Run("runes", func(t *testing.T) {
		chunks := SplitMessage(strings.Repeat("я", 15), 10)
		require.Len(t, chunks, 2)
		assert.Equal(t, strings.Repeat("я", 10), chunks[0])
	})
}
