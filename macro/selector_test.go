package macro

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectorNeverRepeatsWithinWindow(t *testing.T) {
	for _, n := range []int{4, 5, 8} {
		messages := make([]string, n)
		for i := range messages {
			messages[i] = string(rune('a' + i))
		}
		s := NewSelector(rand.New(rand.NewSource(int64(n))))

		var picks []string
		for i := 0; i < 500; i++ {
			m, err := s.Next(messages)
			require.NoError(t, err)
			picks = append(picks, m)
		}
		for i := HistorySize; i < len(picks); i++ {
			assert.NotContains(t, picks[i-HistorySize:i], picks[i], "n=%d pick %d repeats within the window", n, i)
		}
	}
}

func TestSelectorResetsWhenExhausted(t *testing.T) {
	s := NewSelector(rand.New(rand.NewSource(1)))
	messages := []string{"x", "y"}

	first, _ := s.Next(messages)
	second, _ := s.Next(messages)
	assert.NotEqual(t, first, second)

	// Both are in the history now, so the third pick starts over.
	third, err := s.Next(messages)
	require.NoError(t, err)
	assert.Contains(t, messages, third)
	assert.Equal(t, []string{third}, s.History())
}

func TestSelectorSingleMessage(t *testing.T) {
	s := NewSelector(rand.New(rand.NewSource(1)))
	for i := 0; i < 5; i++ {
		m, err := s.Next([]string{"only"})
		require.NoError(t, err)
		assert.Equal(t, "only", m)
	}
}

func TestSelectorHistoryIsBounded(t *testing.T) {
	s := NewSelector(rand.New(rand.NewSource(7)))
	for i := 0; i < 10; i++ {
		_, err := s.Next([]string{"a", "b", "c", "d", "e"})
		require.NoError(t, err)
		assert.LessOrEqual(t, len(s.History()), HistorySize)
	}
}

func TestSelectorEmpty(t *testing.T) {
	s := NewSelector(rand.New(rand.NewSource(1)))
	_, err := s.Next(nil)
	assert.ErrorIs(t, err, ErrNoMessages)
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"plain", Config{}, "hello"},
		{"trailing space", Config{AutoSpace: true}, "hello "},
		{"big", Config{BigMode: true}, "# hello"},
		{"mention", Config{MentionMode: true, MentionID: "42"}, "<@42> hello"},
		{"mention without id is skipped", Config{MentionMode: true}, "hello"},
		{"everything in order", Config{MentionMode: true, MentionID: "42", BigMode: true, AutoSpace: true}, "<@42> # hello "},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Format(tc.cfg, "hello"))
		})
	}
}

func TestPace(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	assert.Equal(t, 500*time.Millisecond, Pace(Config{Delay: 0.5}, rng))
	assert.Equal(t, time.Duration(0), Pace(Config{Delay: -2}, rng))

	cfg := Config{RandomDelay: true, MinDelay: 0.2, MaxDelay: 0.9}
	for i := 0; i < 1000; i++ {
		d := Pace(cfg, rng)
		assert.GreaterOrEqual(t, d, 200*time.Millisecond)
		assert.LessOrEqual(t, d, 900*time.Millisecond)
	}

	swapped := Config{RandomDelay: true, MinDelay: 2, MaxDelay: 1}
	for i := 0; i < 100; i++ {
		d := Pace(swapped, rng)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.LessOrEqual(t, d, 2*time.Second)
	}

	fixed := Config{RandomDelay: true, MinDelay: 1, MaxDelay: 1}
	assert.Equal(t, time.Second, Pace(fixed, rng))
}
