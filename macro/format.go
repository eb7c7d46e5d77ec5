package macro

import (
	"math/rand"
	"strings"
	"time"
)

// Format applies the mention prefix, then the big-text marker, then the
// trailing space.
func Format(cfg Config, msg string) string {
	var b strings.Builder
	if id := strings.TrimSpace(cfg.MentionID); cfg.MentionMode && id != "" {
		b.WriteString("<@")
		b.WriteString(id)
		b.WriteString("> ")
	}
	if cfg.BigMode {
		b.WriteString("# ")
	}
	b.WriteString(msg)
	if cfg.AutoSpace {
		b.WriteByte(' ')
	}
	return b.String()
}

func seconds(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}

// Pace returns the pause after a message: the fixed delay, or a uniform
// sample from [MinDelay, MaxDelay] when RandomDelay is set. A reversed range
// is swapped.
func Pace(cfg Config, rng *rand.Rand) time.Duration {
	if !cfg.RandomDelay {
		return seconds(cfg.Delay)
	}
	lo, hi := cfg.MinDelay, cfg.MaxDelay
	if lo > hi {
		lo, hi = hi, lo
	}
	return seconds(lo + rng.Float64()*(hi-lo))
}
