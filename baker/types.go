// Package baker is the orchestration engine: the head-tracking control
// loop, the per-level baking/endorsing/revealing state machine, the
// mempool-to-block assembly pipeline, the deferred-injection queue, the
// nonce-lifecycle tracker, and the proof-of-work stamp search.
package baker

import (
	"time"

	"github.com/tolelom/tolbaker/crypto"
	"github.com/tolelom/tolbaker/nodeclient"
	"github.com/tolelom/tolbaker/storage"
)

// KeyProvider is the interface exposed by a software or hardware signer.
// The agent never branches on which kind it holds (spec.md §6).
type KeyProvider interface {
	PublicKeyHash() string
	Sign(payload []byte, wm crypto.Watermark) (sbytes []byte, prefixSig string, err error)
}

// Head is the immutable head snapshot a tick observes. It is replaced
// atomically at the start of a new tick and never mutated in place
// (spec.md §3 "Head snapshot").
type Head = nodeclient.Head

// PendingCandidate is a signed, not-yet-injected block, produced by Baker
// and consumed by Injector exactly once (spec.md §3 "Pending candidate").
type PendingCandidate struct {
	TargetLevel     int64
	TargetTimestamp time.Time
	ChainID         string
	SignedBlockBytes []byte
	Operations      [4][]nodeclient.OperationRef
	CommitmentSeed  []byte // nil unless head.level+1 is a commitment level
	SeedNonceHash   string // base58 form, empty unless CommitmentSeed is set
}

// CommitmentNonce is an alias of the persisted record shape so callers of
// both baker and storage share one type (spec.md §3 "Commitment nonce").
type CommitmentNonce = storage.CommitmentNonce

// LevelSet is a set of integer levels recording "we already acted at this
// level," giving idempotence under repeated ticks (spec.md §3 "Level-set
// markers"). It is not safe for concurrent use; the Controller is its
// single owner (spec.md §5).
type LevelSet map[int64]struct{}

// Add inserts level into the set.
func (s LevelSet) Add(level int64) { s[level] = struct{}{} }

// Has reports whether level is in the set.
func (s LevelSet) Has(level int64) bool {
	_, ok := s[level]
	return ok
}

// PruneBelow drops every level strictly less than floor, bounding the
// set's memory growth as the head advances. Levels above floor are kept
// even if the head has since rolled back past them (spec.md §3 invariant 5
// and §9 "Rollback handling").
func (s LevelSet) PruneBelow(floor int64) {
	for level := range s {
		if level < floor {
			delete(s, level)
		}
	}
}

// BadOpSet is the set of operation hashes the node rejected during our
// last injection; they are excluded from future candidates for the
// process lifetime (spec.md §3 "Bad-op set").
type BadOpSet map[string]struct{}

func (s BadOpSet) Add(hash string)      { s[hash] = struct{}{} }
func (s BadOpSet) Has(hash string) bool { _, ok := s[hash]; return ok }
