package macro

import (
	"errors"
	"math/rand"
	"slices"
)

// HistorySize is how many recent messages are excluded from the next pick.
const HistorySize = 3

var ErrNoMessages = errors.New("no messages configured")

// Selector picks messages at random while avoiding the most recent ones.
type Selector struct {
	rng     *rand.Rand
	history []string
}

func NewSelector(rng *rand.Rand) *Selector {
	return &Selector{rng: rng}
}

// Next returns a message that is not among the last HistorySize picks. When
// every message is in the history, the history is cleared first.
func (s *Selector) Next(messages []string) (string, error) {
	if len(messages) == 0 {
		return "", ErrNoMessages
	}
	candidates := make([]string, 0, len(messages))
	for _, m := range messages {
		if !slices.Contains(s.history, m) {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		s.history = s.history[:0]
		candidates = messages
	}

	pick := candidates[s.rng.Intn(len(candidates))]
	s.history = append(s.history, pick)
	if len(s.history) > HistorySize {
		s.history = s.history[len(s.history)-HistorySize:]
	}
	return pick, nil
}

// History returns the recent picks, oldest first.
func (s *Selector) History() []string {
	return slices.Clone(s.history)
}
