package testkit

import (
	"context"
	"fmt"
	"sync"

	"happycast/domain/backtest"
	"happycast/domain/core"
)

// MemoryTableStore keeps written result tables in memory, keyed by path
type MemoryTableStore struct {
	mu     sync.Mutex
	tables map[string]*backtest.ResultTable
	writes map[string]int
}

// NewMemoryTableStore creates an empty store
func NewMemoryTableStore() *MemoryTableStore {
	return &MemoryTableStore{
		tables: make(map[string]*backtest.ResultTable),
		writes: make(map[string]int),
	}
}

// WriteTable stores a copy of table under path
func (s *MemoryTableStore) WriteTable(ctx context.Context, path string, table *backtest.ResultTable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[path] = table.Snapshot()
	s.writes[path]++
	return nil
}

// ReadTable returns a copy of the table stored under path
func (s *MemoryTableStore) ReadTable(ctx context.Context, path string) (*backtest.ResultTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	table, ok := s.tables[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrNotFound, path)
	}
	return table.Snapshot(), nil
}

// Table returns the stored table, or nil
func (s *MemoryTableStore) Table(path string) *backtest.ResultTable {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tables[path]
}

// Writes returns how many times path was written
func (s *MemoryTableStore) Writes(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes[path]
}
