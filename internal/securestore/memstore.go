package securestore

import (
	"context"
	"sync"
)

// MemStore is an in-memory Store for tests and ephemeral runs.
type MemStore struct {
	mu     sync.Mutex
	record *SecurityRecord
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Read(ctx context.Context) (SecurityRecord, error) {
	if err := ctx.Err(); err != nil {
		return SecurityRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		return DefaultRecord(), nil
	}
	return *s.record, nil
}

func (s *MemStore) Write(ctx context.Context, record SecurityRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.SchemaVersion == 0 {
		record.SchemaVersion = SchemaVersion
	}
	copied := record
	s.record = &copied
	return nil
}

func (s *MemStore) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = nil
	return nil
}
