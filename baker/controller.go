package baker

import (
	"context"
	"encoding/hex"
	"log"
	"sync"
	"time"

	"github.com/tolelom/tolbaker/clock"
	"github.com/tolelom/tolbaker/config"
	"github.com/tolelom/tolbaker/events"
	"github.com/tolelom/tolbaker/nodeclient"
	"github.com/tolelom/tolbaker/storage"
)

// chainIDSetter is implemented by key providers that need the chain-id
// bytes learned from the node before they can watermark signatures
// (wallet.SoftKeyProvider is one). Controller calls it once, right after
// the first successful head fetch, via an optional-interface check so
// baker never depends on the wallet package.
type chainIDSetter interface {
	SetChainID(chainID []byte)
}

// Controller runs the periodic tick: fetch head, dispatch the injector,
// nonce scheduler, endorser, and baker in the strict order spec.md §4.1
// requires (spec.md §2 "Controller").
type Controller struct {
	node   nodeclient.NodeClient
	keys   KeyProvider
	chain  string
	preset config.NetworkPreset
	clock  clock.ClockAdapter
	emitter *events.Emitter

	scheduler *NonceScheduler
	endorser  *Endorser
	bakerEng  *Baker
	injector  *Injector
	nonces    *storage.NonceStore

	mu         sync.Mutex
	lockBaker  bool
	head       *Head
	startLevel int64
	started    bool

	injectedLevels LevelSet
	endorsedLevels LevelSet
	bakedLevels    LevelSet
	badOps         BadOpSet
	pending        []PendingCandidate

	chainIDSet bool

	// wg tracks tryEndorse/tryBake goroutines dispatched by in-flight
	// ticks, so Wait can drain them on shutdown (spec.md §4.1, §5: "the
	// per-level operations dispatched by the tick may complete
	// asynchronously after it returns").
	wg sync.WaitGroup
}

// NewController wires every baker collaborator together.
func NewController(
	node nodeclient.NodeClient,
	keys KeyProvider,
	chain string,
	preset config.NetworkPreset,
	ck clock.ClockAdapter,
	emitter *events.Emitter,
	nonces *storage.NonceStore,
) *Controller {
	return &Controller{
		node:    node,
		keys:    keys,
		chain:   chain,
		preset:  preset,
		clock:   ck,
		emitter: emitter,

		scheduler: NewNonceScheduler(preset, nonces),
		endorser:  NewEndorser(node, keys, chain),
		bakerEng:  NewBaker(node, keys, chain, preset, ck),
		injector:  NewInjector(node),
		nonces:    nonces,

		injectedLevels: make(LevelSet),
		endorsedLevels: make(LevelSet),
		bakedLevels:    make(LevelSet),
		badOps:         make(BadOpSet),
	}
}

// Run starts the tick loop with the given period. It blocks until done
// is closed (grounded on the teacher's ticker+select run-loop shape).
func (c *Controller) Run(ctx context.Context, interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Tick(ctx)
		}
	}
}

// Tick runs one Controller pass (spec.md §4.1).
func (c *Controller) Tick(ctx context.Context) {
	// Step 1: drain injector over the current pendingBlocks.
	now := c.clock.Now()
	c.mu.Lock()
	headLevel := int64(-1)
	if c.head != nil {
		headLevel = c.head.Level
	}
	c.pending = c.injector.Drain(ctx, c.pending, now, headLevel, c.injectedLevels, c.badOps, c.nonces, c.emitter)
	c.mu.Unlock()

	// Step 2: fetch head, mutually exclusive.
	c.mu.Lock()
	if c.lockBaker {
		c.mu.Unlock()
		return
	}
	c.lockBaker = true
	c.mu.Unlock()

	head, err := c.node.Head(ctx, c.chain)

	c.mu.Lock()
	c.lockBaker = false
	if err != nil {
		c.mu.Unlock()
		log.Printf("! Couldn't fetch head: %v", err)
		return
	}

	headChanged := c.head == nil || c.head.Hash != head.Hash
	c.head = head
	c.injectedLevels.PruneBelow(head.Level - c.preset.CycleLength)
	c.endorsedLevels.PruneBelow(head.Level - c.preset.CycleLength)
	c.bakedLevels.PruneBelow(head.Level - c.preset.CycleLength)
	c.mu.Unlock()

	if headChanged {
		c.emitter.Emit(events.Event{Type: events.EventHeadChanged, Level: head.Level})
	}

	if !c.chainIDSet {
		if setter, ok := c.keys.(chainIDSetter); ok {
			chainIDBytes, decErr := hex.DecodeString(head.ChainID)
			if decErr == nil {
				setter.SetChainID(chainIDBytes)
				c.chainIDSet = true
			}
		} else {
			c.chainIDSet = true
		}
	}

	// Step 3: reveal due nonces.
	due, err := c.scheduler.Pass(head.Level)
	if err != nil {
		log.Printf("[baker] nonce scheduler pass failed: %v", err)
	}
	for _, d := range due {
		c.endorser.Reveal(ctx, *head, d.Nonce, c.nonces, c.emitter)
	}

	// Step 4: stand-down guard.
	if !c.started {
		c.started = true
		c.startLevel = head.Level + 1
		log.Printf("- Stand-down: will not act until head advances past level %d", head.Level)
		return
	}
	if head.Level < c.startLevel {
		return
	}

	// Steps 5-6: endorse and bake. Both are dispatched asynchronously —
	// Tick returns as soon as they're started rather than blocking on
	// them, so a slow Bake (preapply RPCs plus the PoW stamp search)
	// cannot stall a later tick's injector drain or head fetch
	// (spec.md §4.1, §5: "Endorser, Baker, Revealer, and Injector actions
	// dispatched within a tick can overlap in time with subsequent
	// ticks"). The head-changed guard and the mark-before-act idempotence
	// rule inside tryEndorse/tryBake keep this safe across overlapping
	// ticks at the same level.
	snapshot := *head
	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.tryEndorse(ctx, snapshot)
	}()
	go func() {
		defer c.wg.Done()
		c.tryBake(ctx, snapshot)
	}()
}

// Wait blocks until every tryEndorse/tryBake goroutine dispatched by a Tick
// call so far has returned. Run's caller uses this during shutdown to
// drain in-flight actions instead of leaking them past process exit.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// tryMark atomically checks whether level is already present in set and,
// if not, adds it. It reports whether this call was the one that added it
// — the single point callers use to decide whether they won the race to
// act at level, now that tryEndorse/tryBake can run concurrently across
// overlapping ticks (spec.md §5 "idempotence rule").
func (c *Controller) tryMark(set LevelSet, level int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if set.Has(level) {
		return false
	}
	set.Add(level)
	return true
}

func (c *Controller) hasMark(set LevelSet, level int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return set.Has(level)
}

// snapshotBadOps copies the current bad-op set under lock so a long-running
// Bake call can range over it without racing a concurrent tick's injector
// drain, which adds to the live set on injection failure.
func (c *Controller) snapshotBadOps() BadOpSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(BadOpSet, len(c.badOps))
	for h := range c.badOps {
		out[h] = struct{}{}
	}
	return out
}

func (c *Controller) tryEndorse(ctx context.Context, head Head) {
	if c.hasMark(c.endorsedLevels, head.Level) {
		return
	}
	rights, err := c.node.EndorsingRights(ctx, c.chain, head.Hash, head.Level, c.keys.PublicKeyHash())
	if err != nil {
		log.Printf("! Couldn't fetch endorsing rights for level %d: %v", head.Level, err)
		return
	}
	if len(rights) == 0 {
		return
	}

	if c.headChangedSince(head) {
		c.emitter.Emit(events.Event{Type: events.EventLevelRace, Level: head.Level})
		return
	}

	if !c.tryMark(c.endorsedLevels, head.Level) {
		return
	}
	log.Printf("- Trying to endorse level %d", head.Level)
	hash, err := c.endorser.Endorse(ctx, head)
	if err != nil {
		log.Printf("! Couldn't endorse level %d: %v", head.Level, err)
		c.emitter.Emit(events.Event{Type: events.EventBakeFailed, Level: head.Level, Err: err})
		return
	}
	c.emitter.Emit(events.Event{Type: events.EventEndorsed, Level: head.Level, BlockHash: hash})
}

func (c *Controller) tryBake(ctx context.Context, head Head) {
	targetLevel := head.Level + 1
	if c.hasMark(c.bakedLevels, targetLevel) {
		return
	}
	rights, err := c.node.BakingRights(ctx, c.chain, head.Hash, targetLevel, c.keys.PublicKeyHash())
	if err != nil {
		log.Printf("! Couldn't fetch baking rights for level %d: %v", targetLevel, err)
		return
	}
	if len(rights) == 0 {
		return
	}

	top := rights[0]
	if c.clock.Now().Before(top.EstimatedTime) {
		return
	}

	if c.headChangedSince(head) {
		c.emitter.Emit(events.Event{Type: events.EventLevelRace, Level: targetLevel})
		return
	}

	if !c.tryMark(c.bakedLevels, targetLevel) {
		return
	}
	log.Printf("- Trying to bake level %d", targetLevel)

	// Bake only reads badOps, but a concurrent tick's injector drain can
	// add to the live map while this goroutine is still baking (spec.md
	// §5): snapshot it under the lock instead of handing Bake the shared
	// map directly.
	badOps := c.snapshotBadOps()
	candidate, err := c.bakerEng.Bake(ctx, head, top.Priority, top.EstimatedTime, badOps)
	if err != nil {
		log.Printf("! Couldn't bake level %d: %v", targetLevel, err)
		c.emitter.Emit(events.Event{Type: events.EventBakeFailed, Level: targetLevel, Err: err})
		return
	}

	c.mu.Lock()
	c.pending = append(c.pending, *candidate)
	c.mu.Unlock()
}

// headChangedSince reports whether the Controller's current head differs
// from the snapshot the caller started its action with (spec.md §5
// "Head-changed guard").
func (c *Controller) headChangedSince(snapshot Head) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.head == nil || c.head.Hash != snapshot.Hash
}
