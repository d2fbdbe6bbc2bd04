// Package memory is an in-process closing mirror used by tests and
// the memory backend.
package memory

import (
	"context"
	"fmt"
	"sync"

	"upkeep/internal/core"
)

type Store struct {
	mu   sync.Mutex
	rows []core.ClosingRecord
	fail error
}

func New() *Store {
	return &Store{}
}

// AppendClosing stores the record and returns a synthetic row reference.
func (s *Store) AppendClosing(_ context.Context, rec core.ClosingRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return "", s.fail
	}
	s.rows = append(s.rows, rec)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a copy of the mirrored records.
func (s *Store) Rows() []core.ClosingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ClosingRecord(nil), s.rows...)
}

// FailWith makes subsequent appends return err. Pass nil to recover.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}
