package baker

import (
	"context"
	"testing"
	"time"

	"github.com/tolelom/tolbaker/events"
	"github.com/tolelom/tolbaker/internal/testutil"
	"github.com/tolelom/tolbaker/nodeclient"
	"github.com/tolelom/tolbaker/storage"
)

func TestInjectorDiscardsStaleCandidates(t *testing.T) {
	node := &fakeNode{}
	inj := NewInjector(node)
	store := storage.NewNonceStore(testutil.NewMemDB())
	emitter := events.NewEmitter()

	pending := []PendingCandidate{{TargetLevel: 50, TargetTimestamp: time.Now()}}
	retained := inj.Drain(context.Background(), pending, time.Now(), 100, make(LevelSet), make(BadOpSet), store, emitter)

	if len(retained) != 0 {
		t.Errorf("expected stale candidate discarded, got %+v", retained)
	}
	if node.injectBlockCalls != 0 {
		t.Error("should not inject a stale candidate")
	}
}

func TestInjectorRetainsFutureCandidates(t *testing.T) {
	node := &fakeNode{}
	inj := NewInjector(node)
	store := storage.NewNonceStore(testutil.NewMemDB())
	emitter := events.NewEmitter()

	now := time.Now()
	pending := []PendingCandidate{{TargetLevel: 101, TargetTimestamp: now.Add(time.Minute)}}
	retained := inj.Drain(context.Background(), pending, now, 100, make(LevelSet), make(BadOpSet), store, emitter)

	if len(retained) != 1 {
		t.Fatalf("expected future candidate retained, got %+v", retained)
	}
	if node.injectBlockCalls != 0 {
		t.Error("should not inject before the scheduled timestamp")
	}
}

func TestInjectorInjectsDueCandidateAndPersistsNonce(t *testing.T) {
	node := &fakeNode{}
	inj := NewInjector(node)
	store := storage.NewNonceStore(testutil.NewMemDB())
	emitter := events.NewEmitter()
	var bakedLevel int64
	emitter.Subscribe(events.EventBaked, func(ev events.Event) { bakedLevel = ev.Level })

	now := time.Now()
	pending := []PendingCandidate{{
		TargetLevel:     101,
		TargetTimestamp: now.Add(-time.Second),
		CommitmentSeed:  []byte{1, 2, 3, 4},
		SeedNonceHash:   "nonceHash",
	}}
	injectedLevels := make(LevelSet)
	retained := inj.Drain(context.Background(), pending, now, 100, injectedLevels, make(BadOpSet), store, emitter)

	if len(retained) != 0 {
		t.Errorf("expected due candidate removed from retained, got %+v", retained)
	}
	if node.injectBlockCalls != 1 {
		t.Errorf("expected one InjectBlock call, got %d", node.injectBlockCalls)
	}
	if bakedLevel != 101 {
		t.Errorf("expected EventBaked for level 101, got %d", bakedLevel)
	}
	if !injectedLevels.Has(101) {
		t.Error("expected level 101 marked injected")
	}
	list, _ := store.List()
	if len(list) != 1 || list[0].Level != 101 {
		t.Errorf("expected commitment nonce persisted for level 101, got %+v", list)
	}
}

func TestInjectorFailureAddsBadOps(t *testing.T) {
	node := &fakeNode{
		injectBlockFunc: func(hex string) (string, error) {
			return "", &nodeclient.RPCError{
				Endpoint: "/injection/block",
				Status:   500,
				Body:     []byte(`[{"kind":"permanent","id":"x","hash":"opBAD"}]`),
			}
		},
	}
	inj := NewInjector(node)
	store := storage.NewNonceStore(testutil.NewMemDB())
	emitter := events.NewEmitter()
	var failed bool
	emitter.Subscribe(events.EventBakeFailed, func(events.Event) { failed = true })

	now := time.Now()
	pending := []PendingCandidate{{TargetLevel: 101, TargetTimestamp: now.Add(-time.Second)}}
	badOps := make(BadOpSet)
	inj.Drain(context.Background(), pending, now, 100, make(LevelSet), badOps, store, emitter)

	if !failed {
		t.Error("expected EventBakeFailed on injection error")
	}
	if !badOps.Has("opBAD") {
		t.Error("expected the rejected operation hash added to the bad-op set")
	}
}
