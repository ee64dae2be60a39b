package ise

import (
	"context"
	"sync"
)

// tokenSource caches the access token for the life of the process. A token is
// only discarded when the store rejects it.
type tokenSource struct {
	mu      sync.Mutex
	token   string
	acquire func(ctx context.Context) (string, error)
}

func (s *tokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" {
		return s.token, nil
	}
	token, err := s.acquire(ctx)
	if err != nil {
		return "", err
	}
	s.token = token
	return token, nil
}

// Invalidate drops token if it is still the cached value.
func (s *tokenSource) Invalidate(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == token {
		s.token = ""
	}
}
