// nightboard/models/services.go
package models

import (
	"crypto/subtle"
	"fmt"
	mrand "math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const challengeTTL = 5 * time.Minute

// --- Stateful Services ---

// RateLimiter hands out one token bucket per client key (usually an IP).
type RateLimiter struct {
	Mu       sync.RWMutex
	Limiters map[string]*rate.Limiter
	LastSeen map[string]time.Time

	every  time.Duration
	burst  int
	expire time.Duration
}

type ChallengeStore struct {
	Mu         sync.RWMutex
	Challenges map[string]string
}

// --- Rate Limiter Methods ---

// NewRateLimiter creates a limiter allowing one event per every with the given
// burst. Entries idle for longer than expire are pruned every prune interval.
func NewRateLimiter(every time.Duration, burst int, prune, expire time.Duration) *RateLimiter {
	rl := &RateLimiter{
		Limiters: make(map[string]*rate.Limiter),
		LastSeen: make(map[string]time.Time),
		every:    every,
		burst:    burst,
		expire:   expire,
	}
	if prune > 0 {
		go rl.cleanup(prune)
	}
	return rl
}

// GetLimiter retrieves or creates a rate limiter for a given key.
func (rl *RateLimiter) GetLimiter(key string) *rate.Limiter {
	rl.Mu.Lock()
	defer rl.Mu.Unlock()
	limiter, exists := rl.Limiters[key]
	if !exists {
		limiter = rate.NewLimiter(rate.Every(rl.every), rl.burst)
		rl.Limiters[key] = limiter
	}
	rl.LastSeen[key] = time.Now()
	return limiter
}

// Allow is shorthand for GetLimiter(key).Allow().
func (rl *RateLimiter) Allow(key string) bool {
	return rl.GetLimiter(key).Allow()
}

func (rl *RateLimiter) cleanup(interval time.Duration) {
	for range time.Tick(interval) {
		rl.Prune(time.Now())
	}
}

// Prune drops entries last seen before now minus the expiry window.
func (rl *RateLimiter) Prune(now time.Time) int {
	rl.Mu.Lock()
	defer rl.Mu.Unlock()
	cutoff := now.Add(-rl.expire)
	removed := 0
	for key, lastSeen := range rl.LastSeen {
		if lastSeen.Before(cutoff) {
			delete(rl.Limiters, key)
			delete(rl.LastSeen, key)
			removed++
		}
	}
	return removed
}

// --- Challenge Store Methods ---

func NewChallengeStore() *ChallengeStore {
	return &ChallengeStore{Challenges: make(map[string]string)}
}

// GenerateChallenge creates a new math question challenge.
func (cs *ChallengeStore) GenerateChallenge() (token, question string) {
	a, b := mrand.Intn(10)+1, mrand.Intn(10)+1
	answer := strconv.Itoa(a + b)
	question = fmt.Sprintf("What is %d + %d?", a, b)
	token = uuid.New().String()

	cs.Mu.Lock()
	cs.Challenges[token] = answer
	cs.Mu.Unlock()

	time.AfterFunc(challengeTTL, func() {
		cs.Mu.Lock()
		delete(cs.Challenges, token)
		cs.Mu.Unlock()
	})
	return token, question
}

// Verify checks an answer and burns the token whatever the outcome.
func (cs *ChallengeStore) Verify(token, answer string) bool {
	cs.Mu.Lock()
	defer cs.Mu.Unlock()

	correctAnswer, exists := cs.Challenges[token]
	delete(cs.Challenges, token)
	if !exists {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(answer), []byte(correctAnswer)) == 1
}
