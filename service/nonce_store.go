package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/layer-3/cerberus/core"
)

const (
	// DefaultNonceTTL is how long an issued nonce stays consumable
	DefaultNonceTTL = 5 * time.Minute

	// nonceSweepInterval is how often expired nonces are removed
	nonceSweepInterval = time.Minute

	// nonceSweepGrace keeps expired entries around briefly so Consume can
	// still distinguish "expired" from "never existed" right after expiry
	nonceSweepGrace = time.Minute

	nonceByteLen = 32
)

type nonceEntry struct {
	issuedAt  time.Time
	expiresAt time.Time
	consumed  bool
}

// NonceStore issues and consumes one-time authentication challenges. All
// state lives behind one mutex; Consume re-checks validity under the same
// lock that marks the entry consumed, so exactly one concurrent caller can
// ever succeed per value.
type NonceStore struct {
	mu     sync.Mutex
	nonces map[string]*nonceEntry
	ttl    time.Duration

	done chan struct{}
	once sync.Once

	// now is swapped in tests to control the clock
	now func() time.Time
}

// NewNonceStore creates a NonceStore with the given TTL (DefaultNonceTTL if zero).
func NewNonceStore(ttl time.Duration) *NonceStore {
	if ttl <= 0 {
		ttl = DefaultNonceTTL
	}
	return &NonceStore{
		nonces: make(map[string]*nonceEntry),
		ttl:    ttl,
		done:   make(chan struct{}),
		now:    time.Now,
	}
}

// Start launches the background sweep. Safe to call once; Shutdown stops it.
func (s *NonceStore) Start() {
	go s.sweepLoop()
}

// Shutdown stops the background sweep.
func (s *NonceStore) Shutdown() {
	s.once.Do(func() { close(s.done) })
}

// Issue produces a fresh random nonce and returns its value and expiry.
func (s *NonceStore) Issue() (string, time.Time, error) {
	buf := make([]byte, nonceByteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate nonce: %w", err)
	}
	value := hex.EncodeToString(buf)

	now := s.now()
	expiresAt := now.Add(s.ttl)

	s.mu.Lock()
	s.nonces[value] = &nonceEntry{issuedAt: now, expiresAt: expiresAt}
	s.mu.Unlock()

	return value, expiresAt, nil
}

// Peek reports whether the nonce is currently consumable without consuming
// it. Used by the verifier to short-circuit before signature work.
func (s *NonceStore) Peek(value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.nonces[value]
	if !ok || entry.consumed || !s.now().Before(entry.expiresAt) {
		return core.ErrNonceInvalid
	}
	return nil
}

// Consume atomically validates and consumes the nonce. At most one caller
// succeeds per value; every later call returns core.ErrNonceInvalid.
func (s *NonceStore) Consume(value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.nonces[value]
	if !ok || entry.consumed || !s.now().Before(entry.expiresAt) {
		return core.ErrNonceInvalid
	}
	entry.consumed = true
	return nil
}

// Size returns the number of stored entries, consumed included.
func (s *NonceStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nonces)
}

func (s *NonceStore) sweepLoop() {
	ticker := time.NewTicker(nonceSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.done:
			return
		}
	}
}

func (s *NonceStore) sweep() {
	cutoff := s.now().Add(-nonceSweepGrace)

	s.mu.Lock()
	defer s.mu.Unlock()
	for value, entry := range s.nonces {
		if entry.expiresAt.Before(cutoff) {
			delete(s.nonces, value)
		}
	}
}
