package credstore

import "sync"

// MemoryStore is the in-process Store used for a single session. Replace and
// Clear are mutually exclusive; Current takes only a read lock so readers see
// either the old pair or the new one, never a mix.
type MemoryStore struct {
	mu      sync.RWMutex
	cred    Credential
	present bool
}

// NewMemoryStore creates an empty in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Current returns the latest credential snapshot.
func (s *MemoryStore) Current() (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred, s.present
}

// Replace atomically swaps in a new credential pair.
func (s *MemoryStore) Replace(cred Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = cred
	s.present = true
	return nil
}

// Clear removes the stored credential.
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = Credential{}
	s.present = false
	return nil
}
