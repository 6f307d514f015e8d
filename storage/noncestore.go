package storage

import (
	"encoding/json"
	"fmt"
	"sync"
)

// nonceStoreKey is the single LevelDB key the whole commitment-nonce list
// lives under (spec.md §4.8: "writes are whole-list").
var nonceStoreKey = []byte("noncestore:nonces")

// CommitmentNonce is a persisted record of a seed the baker committed to at
// a commitment level, until it is revealed or the reveal window closes
// (spec.md §3 "Commitment nonce").
type CommitmentNonce struct {
	Level         int64  `json:"level"`
	Seed          string `json:"seed"`             // hex-encoded 32-byte random seed
	SeedNonceHash string `json:"seed_nonce_hash"`  // base58-encoded blake2b(seed)
	InjectedBlock string `json:"injected_block_hash"`
}

// NonceStore is the persistent container of outstanding commitment nonces,
// keyed by level. It is single-writer: only the Controller mutates it
// (spec.md §5 "Shared resources").
type NonceStore struct {
	mu sync.Mutex
	db DB
}

// NewNonceStore wraps a DB (LevelDB in production, MemDB in tests).
func NewNonceStore(db DB) *NonceStore {
	return &NonceStore{db: db}
}

// List returns every outstanding nonce, in the order they were added. Reads return an
// empty list when uninitialized rather than an error.
func (s *NonceStore) List() ([]CommitmentNonce, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Add appends a new nonce record and rewrites the whole persisted list.
func (s *NonceStore) Add(n CommitmentNonce) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.load()
	if err != nil {
		return err
	}
	list = append(list, n)
	return s.save(list)
}

// Remove drops the nonce at level from the list and rewrites it. It is a
// no-op if no nonce at that level is present.
func (s *NonceStore) Remove(level int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.load()
	if err != nil {
		return err
	}
	out := list[:0]
	for _, n := range list {
		if n.Level != level {
			out = append(out, n)
		}
	}
	return s.save(out)
}

func (s *NonceStore) load() ([]CommitmentNonce, error) {
	data, err := s.db.Get(nonceStoreKey)
	if err == ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("noncestore: load: %w", err)
	}
	var list []CommitmentNonce
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("noncestore: decode: %w", err)
	}
	return list, nil
}

func (s *NonceStore) save(list []CommitmentNonce) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("noncestore: encode: %w", err)
	}
	return s.db.Set(nonceStoreKey, data)
}
