package store

import (
	"context"
	"strings"
	"sync"
)

// MemoryAllowlist is an in-memory implementation of the allowlist repository.
// Primarily intended for testing and single-instance deployments.
type MemoryAllowlist struct {
	mu    sync.RWMutex
	lists map[string]map[string]struct{}
}

// NewMemoryAllowlist creates an empty in-memory allowlist repository.
func NewMemoryAllowlist() *MemoryAllowlist {
	return &MemoryAllowlist{
		lists: make(map[string]map[string]struct{}),
	}
}

// Add inserts an address into the named allowlist, normalizing to lowercase.
func (s *MemoryAllowlist) Add(allowlistID, address string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, ok := s.lists[allowlistID]
	if !ok {
		list = make(map[string]struct{})
		s.lists[allowlistID] = list
	}
	list[strings.ToLower(address)] = struct{}{}
}

// Remove deletes an address from the named allowlist.
func (s *MemoryAllowlist) Remove(allowlistID, address string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if list, ok := s.lists[allowlistID]; ok {
		delete(list, strings.ToLower(address))
	}
}

// IsMember reports whether the address belongs to the named allowlist.
func (s *MemoryAllowlist) IsMember(ctx context.Context, allowlistID, address string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, ok := s.lists[allowlistID]
	if !ok {
		return false, nil
	}
	_, member := list[strings.ToLower(address)]
	return member, nil
}
