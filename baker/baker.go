package baker

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/tolelom/tolbaker/clock"
	"github.com/tolelom/tolbaker/config"
	"github.com/tolelom/tolbaker/crypto"
	"github.com/tolelom/tolbaker/nodeclient"
)

// mempoolGateSleep is how long Baker sleeps between MempoolGate retries
// (spec.md §4.4 step 2).
const mempoolGateSleep = 500 * time.Millisecond

// preapplyRetrySleep is how long Baker sleeps after an "insufficient
// endorsements" preapply response before restarting assembly (spec.md
// §4.4 step 5).
const preapplyRetrySleep = 500 * time.Millisecond

// maxMempoolGateAttempts bounds the MempoolGate retry loop within one
// bake attempt (spec.md §4.4 step 2 "Bound the number of gate retries").
const maxMempoolGateAttempts = 10

// Baker assembles, stamps, and signs a candidate block for head.Level+1
// (spec.md §4.4).
type Baker struct {
	node   nodeclient.NodeClient
	keys   KeyProvider
	chain  string
	preset config.NetworkPreset
	clock  clock.ClockAdapter
}

// NewBaker creates a Baker bound to the given collaborators.
func NewBaker(node nodeclient.NodeClient, keys KeyProvider, chain string, preset config.NetworkPreset, ck clock.ClockAdapter) *Baker {
	return &Baker{node: node, keys: keys, chain: chain, preset: preset, clock: ck}
}

// Bake assembles a PendingCandidate for head.Level+1 at the given
// priority and scheduled timestamp, following spec.md §4.4 steps 1-10.
func (b *Baker) Bake(ctx context.Context, head Head, priority int, scheduled time.Time, badOps BadOpSet) (*PendingCandidate, error) {
	targetLevel := head.Level + 1

	// Step 1: commitment check.
	var seed []byte
	var seedHex, seedNonceHash string
	if b.preset.IsCommitmentLevel(targetLevel) {
		seed = make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, seed); err != nil {
			return nil, fmt.Errorf("generate commitment seed: %w", err)
		}
		seedHash := crypto.HashBytes(seed)
		seedNonceHash = crypto.Base58CheckEncode(seedHash)
		seedHex = encodeHex(seed)
	}

	// Steps 2-3: mempool gate + operation selection.
	matrix, err := b.gateAndSelect(ctx, head, badOps, 0)
	if err != nil {
		return nil, err
	}

	// Steps 4-6: template, preapply, normalize; bounded retry on
	// insufficient endorsements (step 5) and a single fallback retry with
	// an empty matrix on any other preapply failure.
	normalized, err := b.preapplyWithRetry(ctx, head, priority, scheduled, matrix, seedNonceHash, badOps)
	if err != nil {
		return nil, fmt.Errorf("preapply: %w", err)
	}

	// Step 7: forge the shell header, strip the placeholder tail.
	shell := nodeclient.ShellHeader{
		Protocol: head.Protocol,
		Priority: priority,
		ProtocolData: nodeclient.ProtocolDataFields{
			Protocol:         head.Protocol,
			Priority:         priority,
			ProofOfWorkNonce: "0000000000000000",
			Signature:        "",
		},
		Operations:    normalized,
		SeedNonceHash: seedNonceHash,
	}
	forgedHex, err := b.node.ForgeBlockHeader(ctx, b.chain, head.Hash, shell)
	if err != nil {
		return nil, fmt.Errorf("forge block header: %w", err)
	}
	if len(forgedHex) < 22 {
		return nil, fmt.Errorf("forged header shorter than placeholder tail")
	}
	forgedPrefix := forgedHex[:len(forgedHex)-22]

	// Step 8: stamp search.
	stamped, err := StampSearch(ctx, forgedPrefix, priority, seedHex)
	if err != nil {
		return nil, fmt.Errorf("stamp search: %w", err)
	}

	// Step 9: sign.
	signedBytes, _, err := b.keys.Sign(stamped, crypto.WatermarkBlock)
	if err != nil {
		return nil, fmt.Errorf("sign block: %w", err)
	}

	// Step 10: enqueue.
	candidate := &PendingCandidate{
		TargetLevel:      targetLevel,
		TargetTimestamp:  scheduled,
		ChainID:          head.ChainID,
		SignedBlockBytes: signedBytes,
		Operations:       normalized,
		SeedNonceHash:    seedNonceHash,
	}
	if seed != nil {
		candidate.CommitmentSeed = seed
	}
	return candidate, nil
}

// gateAndSelect runs the MempoolGate loop (spec.md §4.4 step 2) with the
// given required-endorsements floor, then selects operations (step 3).
func (b *Baker) gateAndSelect(ctx context.Context, head Head, badOps BadOpSet, required int) (OperationsMatrix, error) {
	gate := NewMempoolGate(required)

	for attempt := 0; attempt < maxMempoolGateAttempts; attempt++ {
		pool, err := b.node.PendingOperations(ctx, b.chain)
		if err != nil {
			return OperationsMatrix{}, fmt.Errorf("pending operations: %w", err)
		}
		visible := CountEndorsements(pool.Applied)
		ready, resetRequired := gate.Check(visible)
		if resetRequired {
			gate.requiredEndorsements = 0
		}
		if ready {
			return SelectOperations(pool.Applied, head.Hash, badOps), nil
		}
		b.clock.Sleep(mempoolGateSleep)
	}

	pool, err := b.node.PendingOperations(ctx, b.chain)
	if err != nil {
		return OperationsMatrix{}, fmt.Errorf("pending operations: %w", err)
	}
	return SelectOperations(pool.Applied, head.Hash, badOps), nil
}

// preapplyWithRetry runs spec.md §4.4 steps 4-6: build the template,
// preapply, and either restart from the gate (insufficient endorsements)
// or retry once with an empty matrix (any other failure).
func (b *Baker) preapplyWithRetry(ctx context.Context, head Head, priority int, scheduled time.Time, matrix OperationsMatrix, seedNonceHash string, badOps BadOpSet) ([4][]nodeclient.OperationRef, error) {
	shell := buildTemplateShell(head, priority, matrix, seedNonceHash)
	ts := scheduled
	if now := b.clock.Now(); now.After(ts) {
		ts = now
	}

	result, err := b.node.PreapplyBlock(ctx, b.chain, head.Hash, shell, ts)
	if err == nil {
		return result.Operations, nil
	}

	var rpcErr *nodeclient.RPCError
	if errors.As(err, &rpcErr) {
		if required, ok := nodeclient.RequiredEndorsements(rpcErr.Body); ok {
			if required == 0 {
				required = 1
			}
			log.Printf("- Not enough endorsements, required now %d, retrying bake", required)
			b.clock.Sleep(preapplyRetrySleep)
			newMatrix, selErr := b.gateAndSelect(ctx, head, badOps, required)
			if selErr != nil {
				return [4][]nodeclient.OperationRef{}, selErr
			}
			shell = buildTemplateShell(head, priority, newMatrix, seedNonceHash)
			result, err = b.node.PreapplyBlock(ctx, b.chain, head.Hash, shell, ts)
			if err == nil {
				return result.Operations, nil
			}
		}
	}

	log.Printf("! Preapply failed (%v), retrying once with empty operations", err)
	emptyShell := buildTemplateShell(head, priority, OperationsMatrix{}, seedNonceHash)
	result, err = b.node.PreapplyBlock(ctx, b.chain, head.Hash, emptyShell, ts)
	if err != nil {
		return [4][]nodeclient.OperationRef{}, fmt.Errorf("fatal preapply failure: %w", err)
	}
	return result.Operations, nil
}

func buildTemplateShell(head Head, priority int, matrix OperationsMatrix, seedNonceHash string) nodeclient.ShellHeader {
	var ops [4][]nodeclient.OperationRef
	for pass, entries := range matrix {
		for _, op := range entries {
			ops[pass] = append(ops[pass], nodeclient.OperationRef{Branch: op.Branch, Data: op.Data})
		}
	}
	return nodeclient.ShellHeader{
		Protocol: head.Protocol,
		Priority: priority,
		ProtocolData: nodeclient.ProtocolDataFields{
			Protocol:         head.Protocol,
			Priority:         priority,
			ProofOfWorkNonce: "0000000000000000",
			Signature:        "",
		},
		Operations:    ops,
		SeedNonceHash: seedNonceHash,
	}
}
