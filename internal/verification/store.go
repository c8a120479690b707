// Package verification keeps short-lived email ownership codes.
package verification

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned when no code is stored for an email.
var ErrNotFound = errors.New("verification: code not found")

// Code is a one-time code issued to an email address.
type Code struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	Verified  bool      `json:"verified"`
}

func (c Code) Expired(now time.Time) bool { return !now.Before(c.ExpiresAt) }

// Store persists codes by normalized email.
type Store interface {
	Put(ctx context.Context, email string, c Code) error
	Get(ctx context.Context, email string) (Code, error)
	Delete(ctx context.Context, email string) error
}

// NewCode returns a random numeric code of n digits.
func NewCode(n int) (string, error) {
	var b strings.Builder
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}

// MemoryStore is a process-local Store. Run sweeps expired codes until its
// context is cancelled.
type MemoryStore struct {
	mu    sync.Mutex
	codes map[string]Code
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{codes: make(map[string]Code), now: time.Now}
}

func (s *MemoryStore) Put(_ context.Context, email string, c Code) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[email] = c
	return nil
}

func (s *MemoryStore) Get(_ context.Context, email string) (Code, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[email]
	if !ok {
		return Code{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, email)
	return nil
}

// Sweep drops expired codes and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for email, c := range s.codes {
		if c.Expired(now) {
			delete(s.codes, email)
			n++
		}
	}
	return n
}

// Run calls Sweep every interval until ctx is done.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
