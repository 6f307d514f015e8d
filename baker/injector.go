package baker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/tolelom/tolbaker/events"
	"github.com/tolelom/tolbaker/nodeclient"
	"github.com/tolelom/tolbaker/storage"
)

// Injector drains pending candidates whose scheduled timestamp has
// arrived, injecting their signed bytes into the node (spec.md §4.1
// step 1).
type Injector struct {
	node nodeclient.NodeClient
}

// NewInjector creates an Injector bound to a node client.
func NewInjector(node nodeclient.NodeClient) *Injector {
	return &Injector{node: node}
}

// Drain runs one Injector pass over pending, returning the candidates
// still retained (those whose target timestamp has not yet arrived).
// Entries are removed from the returned slice whether injection
// succeeded or failed; only a future timestamp keeps one around
// (spec.md §4.1 step 1, §3 invariant 6).
func (inj *Injector) Drain(
	ctx context.Context,
	pending []PendingCandidate,
	now time.Time,
	headLevel int64,
	injectedLevels LevelSet,
	badOps BadOpSet,
	store *storage.NonceStore,
	emitter *events.Emitter,
) []PendingCandidate {
	var retained []PendingCandidate

	for _, cand := range pending {
		if cand.TargetLevel <= headLevel {
			// spec.md §3 invariant 6: discard stale candidates outright.
			continue
		}
		if cand.TargetTimestamp.After(now) {
			retained = append(retained, cand)
			continue
		}
		if injectedLevels.Has(cand.TargetLevel) {
			continue
		}
		// Mark before the RPC begins, per spec.md §5 idempotence rule.
		injectedLevels.Add(cand.TargetLevel)
		inj.inject(ctx, cand, badOps, store, emitter)
	}

	return retained
}

func (inj *Injector) inject(ctx context.Context, cand PendingCandidate, badOps BadOpSet, store *storage.NonceStore, emitter *events.Emitter) {
	hash, err := inj.node.InjectBlock(ctx, cand.ChainID, encodeHex(cand.SignedBlockBytes))
	if err != nil {
		var rpcErr *nodeclient.RPCError
		if errors.As(err, &rpcErr) {
			for _, h := range nodeclient.OffendingOperations(rpcErr.Body) {
				badOps.Add(h)
			}
		}
		log.Printf("! Couldn't inject level %d: %v", cand.TargetLevel, err)
		emitter.Emit(events.Event{Type: events.EventBakeFailed, Level: cand.TargetLevel, Err: err})
		return
	}

	if cand.CommitmentSeed != nil {
		n := storage.CommitmentNonce{
			Level:         cand.TargetLevel,
			Seed:          encodeHex(cand.CommitmentSeed),
			SeedNonceHash: cand.SeedNonceHash,
			InjectedBlock: hash,
		}
		if addErr := store.Add(n); addErr != nil {
			log.Printf("[baker] noncestore write failed for level %d: %v", cand.TargetLevel, addErr)
		}
	}

	emitter.Emit(events.Event{Type: events.EventInjected, Level: cand.TargetLevel, BlockHash: hash})
	emitter.Emit(events.Event{Type: events.EventBaked, Level: cand.TargetLevel, BlockHash: hash})
}
