package baker

import (
	"context"
	"fmt"
	"log"

	"github.com/tolelom/tolbaker/crypto"
	"github.com/tolelom/tolbaker/events"
	"github.com/tolelom/tolbaker/nodeclient"
	"github.com/tolelom/tolbaker/storage"
)

// Endorser signs endorsements for the current head and reveals commitment
// nonces, both through the same forge-sign-preapply-inject pipeline
// (spec.md §4.3).
type Endorser struct {
	node  nodeclient.NodeClient
	keys  KeyProvider
	chain string
}

// NewEndorser creates an Endorser bound to a node client and key provider.
func NewEndorser(node nodeclient.NodeClient, keys KeyProvider, chain string) *Endorser {
	return &Endorser{node: node, keys: keys, chain: chain}
}

// Endorse signs and injects an endorsement for head.Level and returns the
// injected operation hash. A failure at any pipeline stage, including the
// node rejecting the operation at preapply, is returned as an error. It
// does not touch endorsed_levels: the caller sets the marker before
// calling this, per the idempotence rule in spec.md §5.
func (e *Endorser) Endorse(ctx context.Context, head Head) (injectedHash string, err error) {
	content := nodeclient.OperationContent{Kind: "endorsement", Level: head.Level}
	return e.pipeline(ctx, head, content, crypto.WatermarkEndorsement)
}

// Reveal signs and injects a seed_nonce_revelation for the given nonce.
// Per spec.md §4.2, once the reveal protocol has been invoked the nonce is
// dropped from the store regardless of outcome (no retry in this version;
// spec.md §9 flags this as an open design question this agent resolves
// conservatively toward the documented, simpler semantics).
func (e *Endorser) Reveal(ctx context.Context, head Head, n storage.CommitmentNonce, store *storage.NonceStore, emitter *events.Emitter) {
	content := nodeclient.OperationContent{
		Kind:  "seed_nonce_revelation",
		Level: n.Level,
		Nonce: n.Seed,
	}
	hash, err := e.pipeline(ctx, head, content, crypto.WatermarkEndorsement)
	if err != nil {
		log.Printf("! Reveal failed for level %d: %v", n.Level, err)
		emitter.Emit(events.Event{Type: events.EventBakeFailed, Level: n.Level, Err: err})
	} else {
		emitter.Emit(events.Event{Type: events.EventRevealed, Level: n.Level, BlockHash: hash})
	}
	if rmErr := store.Remove(n.Level); rmErr != nil {
		log.Printf("[baker] noncestore remove failed for level %d: %v", n.Level, rmErr)
	}
}

// pipeline is the shared forge -> sign -> preapply -> inject sequence
// spec.md §4.3 describes for both endorsement and reveal content.
func (e *Endorser) pipeline(ctx context.Context, head Head, content nodeclient.OperationContent, wm crypto.Watermark) (string, error) {
	skeleton := nodeclient.OperationSkeleton{
		Branch:   head.Hash,
		Contents: []nodeclient.OperationContent{content},
	}

	forgedHex, err := e.node.ForgeOperation(ctx, e.chain, head.Hash, skeleton)
	if err != nil {
		return "", fmt.Errorf("forge: %w", err)
	}

	forgedBytes, err := decodeHex(forgedHex)
	if err != nil {
		return "", fmt.Errorf("decode forged operation: %w", err)
	}

	sbytes, prefixSig, err := e.keys.Sign(forgedBytes, wm)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}

	signed := nodeclient.SignedOperation{
		Branch:    head.Hash,
		Contents:  []nodeclient.OperationContent{content},
		Protocol:  head.Protocol,
		Signature: prefixSig,
		Data:      encodeHex(sbytes),
	}

	preapplied, err := e.node.PreapplyOperations(ctx, e.chain, head.Hash, []nodeclient.SignedOperation{signed})
	if err != nil {
		return "", fmt.Errorf("preapply: %w", err)
	}
	if len(preapplied) == 0 || !preapplied[0].Applied {
		return "", fmt.Errorf("preapply rejected operation")
	}

	opHash, err := e.node.InjectOperation(ctx, encodeHex(sbytes))
	if err != nil {
		return "", fmt.Errorf("inject: %w", err)
	}
	return opHash, nil
}
