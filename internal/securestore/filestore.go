package securestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const filePrefix = "PLEBSEC1\n"

var (
	ErrInvalidRecord  = errors.New("securestore record is invalid")
	ErrFutureSchema   = errors.New("securestore record has an unknown schema version")
	errEmptyPath      = errors.New("securestore path must not be empty")
)

// FileStore keeps the record in one JSON file with a magic prefix, written
// atomically via temp-file rename. A process-wide mutex serializes writes so
// a read-modify-write cannot clobber an in-flight update.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errEmptyPath
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Read(ctx context.Context) (SecurityRecord, error) {
	if err := ctx.Err(); err != nil {
		return SecurityRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultRecord(), nil
	}
	if err != nil {
		return SecurityRecord{}, err
	}
	return decodeRecord(raw)
}

func (s *FileStore) Write(ctx context.Context, record SecurityRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record.SchemaVersion == 0 {
		record.SchemaVersion = SchemaVersion
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	data := append([]byte(filePrefix), payload...)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func decodeRecord(raw []byte) (SecurityRecord, error) {
	if !bytes.HasPrefix(raw, []byte(filePrefix)) {
		return SecurityRecord{}, ErrInvalidRecord
	}
	var record SecurityRecord
	if err := json.Unmarshal(raw[len(filePrefix):], &record); err != nil {
		return SecurityRecord{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if record.SchemaVersion > SchemaVersion {
		return SecurityRecord{}, ErrFutureSchema
	}
	return record, nil
}
