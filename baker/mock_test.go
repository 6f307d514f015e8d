package baker

import (
	"context"
	"fmt"
	"time"

	"github.com/tolelom/tolbaker/crypto"
	"github.com/tolelom/tolbaker/nodeclient"
)

// fakeNode is a scriptable nodeclient.NodeClient for baker package tests.
// Each field defaults to a reasonable success response; tests override
// only what they need to exercise.
type fakeNode struct {
	chainID string

	headFunc            func() (*nodeclient.Head, error)
	endorsingRightsFunc func(level int64) ([]nodeclient.Right, error)
	bakingRightsFunc    func(level int64) ([]nodeclient.Right, error)
	pendingOpsFunc      func() (*nodeclient.MempoolPool, error)
	preapplyBlockFunc   func(shell nodeclient.ShellHeader) (*nodeclient.PreapplyBlockResult, error)
	preapplyOpsFunc     func(ops []nodeclient.SignedOperation) ([]nodeclient.PreappliedOperation, error)
	injectBlockFunc     func(hex string) (string, error)
	injectOpFunc        func(hex string) (string, error)

	injectBlockCalls int
	injectOpCalls    int
}

func (f *fakeNode) ChainID(ctx context.Context, chain string) (string, error) {
	return f.chainID, nil
}

func (f *fakeNode) Head(ctx context.Context, chain string) (*nodeclient.Head, error) {
	if f.headFunc != nil {
		return f.headFunc()
	}
	return &nodeclient.Head{Hash: "BLhead", Level: 100, Protocol: "PsProto", ChainID: "NetXYZ"}, nil
}

func (f *fakeNode) EndorsingRights(ctx context.Context, chain, block string, level int64, delegate string) ([]nodeclient.Right, error) {
	if f.endorsingRightsFunc != nil {
		return f.endorsingRightsFunc(level)
	}
	return nil, nil
}

func (f *fakeNode) BakingRights(ctx context.Context, chain, block string, level int64, delegate string) ([]nodeclient.Right, error) {
	if f.bakingRightsFunc != nil {
		return f.bakingRightsFunc(level)
	}
	return nil, nil
}

func (f *fakeNode) ForgeOperation(ctx context.Context, chain, block string, op nodeclient.OperationSkeleton) (string, error) {
	return "abcd", nil
}

func (f *fakeNode) PreapplyOperations(ctx context.Context, chain, block string, ops []nodeclient.SignedOperation) ([]nodeclient.PreappliedOperation, error) {
	if f.preapplyOpsFunc != nil {
		return f.preapplyOpsFunc(ops)
	}
	return []nodeclient.PreappliedOperation{{Applied: true}}, nil
}

func (f *fakeNode) PreapplyBlock(ctx context.Context, chain, block string, shell nodeclient.ShellHeader, timestamp time.Time) (*nodeclient.PreapplyBlockResult, error) {
	if f.preapplyBlockFunc != nil {
		return f.preapplyBlockFunc(shell)
	}
	return &nodeclient.PreapplyBlockResult{Operations: shell.Operations}, nil
}

func (f *fakeNode) ForgeBlockHeader(ctx context.Context, chain, block string, shell nodeclient.ShellHeader) (string, error) {
	return "ff00112233445566778899aabbccddeeff001122", nil
}

func (f *fakeNode) InjectOperation(ctx context.Context, hex string) (string, error) {
	f.injectOpCalls++
	if f.injectOpFunc != nil {
		return f.injectOpFunc(hex)
	}
	return "oo" + hex[:4], nil
}

func (f *fakeNode) InjectBlock(ctx context.Context, chainID, hex string) (string, error) {
	f.injectBlockCalls++
	if f.injectBlockFunc != nil {
		return f.injectBlockFunc(hex)
	}
	return "BLnew", nil
}

func (f *fakeNode) PendingOperations(ctx context.Context, chain string) (*nodeclient.MempoolPool, error) {
	if f.pendingOpsFunc != nil {
		return f.pendingOpsFunc()
	}
	return &nodeclient.MempoolPool{}, nil
}

// fakeKeys is a deterministic KeyProvider stub.
type fakeKeys struct {
	pkh     string
	signErr error
}

func (k *fakeKeys) PublicKeyHash() string { return k.pkh }

func (k *fakeKeys) Sign(payload []byte, wm crypto.Watermark) ([]byte, string, error) {
	if k.signErr != nil {
		return nil, "", k.signErr
	}
	sig := append(append([]byte{}, payload...), 0xAA)
	return sig, fmt.Sprintf("sig%d", len(payload)), nil
}
