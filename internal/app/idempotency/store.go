// Package idempotency maps client-supplied idempotency keys to the
// settlement each key produced. The mapping is permanent: a key resolves to
// the same settlement for the lifetime of the store, across restarts.
package idempotency

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/NovaBridge-Network/settlement_layer/pkg/logger"
)

// Store is the idempotency contract the settlement engine depends on.
type Store interface {
	// Put records key -> settlementID if the key is unseen and returns the
	// canonical settlement id: the given one when this caller won, the
	// original mapping otherwise (first writer wins, never overwritten).
	// It must not return before the mapping is crash-durable.
	Put(key, settlementID string) (string, error)
	// Get returns the mapped settlement id. Missing keys are a normal
	// ("", false) result, not an error.
	Get(key string) (string, bool)
	// Delete removes a mapping. Deleting an absent key is a no-op.
	Delete(key string) error
}

// FileStore is a write-through JSON file store. Every Put rewrites the
// backing file and fsyncs before acknowledging, so an acknowledged mapping
// survives a process crash. A missing or corrupt file loads as empty.
type FileStore struct {
	mu       sync.Mutex
	path     string
	mappings map[string]string
	log      *logger.Logger
}

var _ Store = (*FileStore)(nil)

// NewFileStore loads prior mappings from path before serving any request.
func NewFileStore(path string, log *logger.Logger) (*FileStore, error) {
	if log == nil {
		log = logger.NewDefault("idempotency")
	}
	if path == "" {
		return nil, fmt.Errorf("idempotency store path is required")
	}

	s := &FileStore{
		path:     path,
		mappings: make(map[string]string),
		log:      log,
	}
	s.load()
	return s, nil
}

func (s *FileStore) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.WithError(err).Warnf("idempotency file %s unreadable; starting empty", s.path)
		}
		return
	}

	var mappings map[string]string
	if err := json.Unmarshal(data, &mappings); err != nil {
		s.log.WithError(err).Warnf("idempotency file %s corrupt; starting empty", s.path)
		return
	}
	s.mappings = mappings
	s.log.Infof("loaded %d idempotency mappings from %s", len(mappings), s.path)
}

func (s *FileStore) Put(key, settlementID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.mappings[key]; ok {
		return existing, nil
	}

	s.mappings[key] = settlementID
	if err := s.persistLocked(); err != nil {
		delete(s.mappings, key)
		return "", fmt.Errorf("persist idempotency mapping: %w", err)
	}
	return settlementID, nil
}

func (s *FileStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.mappings[key]
	return id, ok
}

func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mappings[key]; !ok {
		return nil
	}
	delete(s.mappings, key)
	return s.persistLocked()
}

// persistLocked writes the full table to a temp file and renames it into
// place so readers never observe a torn file.
func (s *FileStore) persistLocked() error {
	data, err := json.Marshal(s.mappings)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
