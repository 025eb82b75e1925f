package memory

// LockEntries número de claves con candado vivo.
func (s *Store) LockEntries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
