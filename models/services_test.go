package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterPerKey(t *testing.T) {
	rl := NewRateLimiter(time.Hour, 2, 0, time.Hour)

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"), "burst of 2 should be exhausted")
	assert.True(t, rl.Allow("10.0.0.2"), "other keys keep their own bucket")
}

func TestRateLimiterPrune(t *testing.T) {
	rl := NewRateLimiter(time.Second, 1, 0, time.Minute)
	rl.GetLimiter("old")
	rl.GetLimiter("new")

	rl.Mu.Lock()
	rl.LastSeen["old"] = time.Now().Add(-2 * time.Minute)
	rl.Mu.Unlock()

	assert.Equal(t, 1, rl.Prune(time.Now()))
	rl.Mu.RLock()
	defer rl.Mu.RUnlock()
	assert.NotContains(t, rl.Limiters, "old")
	assert.Contains(t, rl.Limiters, "new")
}

func TestChallengeStore(t *testing.T) {
	cs := NewChallengeStore()
	token, question := cs.GenerateChallenge()
	require.NotEmpty(t, token)
	require.True(t, strings.HasPrefix(question, "What is "))

	cs.Mu.RLock()
	answer := cs.Challenges[token]
	cs.Mu.RUnlock()

	assert.False(t, cs.Verify("nope", answer))
	assert.True(t, cs.Verify(token, answer))
	assert.False(t, cs.Verify(token, answer), "tokens are single use")

	token, _ = cs.GenerateChallenge()
	assert.False(t, cs.Verify(token, "-1"))
	cs.Mu.RLock()
	_, exists := cs.Challenges[token]
	cs.Mu.RUnlock()
	assert.False(t, exists, "a wrong answer burns the token")
}
