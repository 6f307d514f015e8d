package baker

import (
	"log"

	"github.com/tolelom/tolbaker/config"
	"github.com/tolelom/tolbaker/storage"
)

// NonceScheduler tracks the reveal/abandon window for each outstanding
// commitment nonce (spec.md §4.2).
type NonceScheduler struct {
	preset config.NetworkPreset
	store  *storage.NonceStore
}

// NewNonceScheduler creates a scheduler bound to preset's cycle geometry
// and store's persisted nonce list.
func NewNonceScheduler(preset config.NetworkPreset, store *storage.NonceStore) *NonceScheduler {
	return &NonceScheduler{preset: preset, store: store}
}

// Due is a nonce whose reveal window has opened and who has not yet been
// revealed; it should be handed to the Revealer this tick.
type Due struct {
	Nonce storage.CommitmentNonce
}

// Pass runs one NonceScheduler pass against headLevel: abandons nonces
// whose window has closed, and returns nonces due for reveal this tick.
// Reveal itself is the caller's responsibility (the Endorser/Revealer
// pipeline, spec.md §4.3). Pass removes abandoned nonces from the store
// itself; a due nonce stays in the store until Endorser.Reveal removes it
// after attempting the reveal, so every record a later pass sees is still
// outstanding.
func (s *NonceScheduler) Pass(headLevel int64) ([]Due, error) {
	list, err := s.store.List()
	if err != nil {
		return nil, err
	}

	var due []Due

	for _, n := range list {
		start, end := s.preset.RevealWindow(n.Level)
		switch {
		case headLevel > end:
			log.Printf("! Abandon nonce for level %d, reveal window [%d,%d] closed at head %d", n.Level, start, end, headLevel)
			if rmErr := s.store.Remove(n.Level); rmErr != nil {
				log.Printf("[baker] noncestore remove failed for level %d: %v", n.Level, rmErr)
			}
		case headLevel >= start:
			due = append(due, Due{Nonce: n})
		}
	}

	return due, nil
}
