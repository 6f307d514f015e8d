package nodeclient

import (
	"encoding/json"
	"time"
)

// Head is the node's current chain head, as returned by
// GET /chains/{chain}/blocks/head/header.
type Head struct {
	ChainID    string    `json:"chain_id"`
	Protocol   string    `json:"protocol"`
	Hash       string    `json:"hash"`
	Level      int64     `json:"level"`
	Timestamp  time.Time `json:"timestamp"`
}

// Right is one entry of either the endorsing_rights or baking_rights
// response: a delegate's assigned slot at a level, with an estimated wall
// time the node expects that slot to become actionable.
type Right struct {
	Level         int64     `json:"level"`
	Delegate      string    `json:"delegate"`
	Priority      int       `json:"priority,omitempty"` // baking_rights only
	Slot          int       `json:"slot,omitempty"`     // endorsing_rights only
	EstimatedTime time.Time `json:"estimated_time"`
}

// OperationContent is one entry of an operation's contents array. Only the
// named fields are decoded and encoded: any other field of a content entry
// is dropped when it is decoded, and Extra is never read from or written to
// JSON.
type OperationContent struct {
	Kind          string `json:"kind"`
	Level         int64  `json:"level,omitempty"`
	Nonce         string `json:"nonce,omitempty"`
	Extra         map[string]any `json:"-"`
}

// OperationSkeleton is the unsigned { branch, contents } shape sent to
// forge/operations.
type OperationSkeleton struct {
	Branch   string              `json:"branch"`
	Contents []OperationContent  `json:"contents"`
}

// SignedOperation is a forged-then-signed operation ready for preapply or
// injection: the original skeleton plus the forged hex ("data") and the
// base58-prefixed signature.
type SignedOperation struct {
	Branch    string `json:"branch"`
	Contents  []OperationContent `json:"contents"`
	Protocol  string `json:"protocol"`
	Signature string `json:"signature"`
	Data      string `json:"data"`
}

// PreappliedOperation is one entry of preapply/operations' response:
// either accepted (Applied true, Data carries the canonical hex) or
// rejected (Applied false, Error carries the node's raw error payload).
type PreappliedOperation struct {
	Hash    string          `json:"hash"`
	Branch  string          `json:"branch"`
	Applied bool            `json:"applied"`
	Data    string          `json:"data,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

// MempoolOperation is one entry of pending_operations' "applied" list.
// Data carries the operation's already-forged-and-signed hex, the form
// preapply/block and injection/block expect operations submitted in.
type MempoolOperation struct {
	Hash     string             `json:"hash"`
	Branch   string             `json:"branch"`
	Contents []OperationContent `json:"contents"`
	Data     string             `json:"data,omitempty"`
}

// MempoolPool is the pending_operations response. Refused/BranchRefused
// entries are kept as raw JSON: this agent only ever reads Applied.
type MempoolPool struct {
	Applied        []MempoolOperation `json:"applied"`
	Refused        json.RawMessage    `json:"refused,omitempty"`
	BranchRefused  json.RawMessage    `json:"branch_refused,omitempty"`
	BranchDelayed  json.RawMessage    `json:"branch_delayed,omitempty"`
}

// ShellHeader is the unsigned, unstamped block header template sent to
// preapply/block and forge_block_header.
type ShellHeader struct {
	Protocol     string              `json:"protocol"`
	Priority     int                 `json:"priority"`
	ProtocolData ProtocolDataFields  `json:"protocol_data"`
	Operations   [4][]OperationRef   `json:"operations"`
	SeedNonceHash string             `json:"seed_nonce_hash,omitempty"`
}

// ProtocolDataFields mirrors the fields preapply/block and
// forge_block_header expect embedded in protocol_data before encoding
// (spec.md §6 "protocolData encoding" is the hex form; this is its JSON
// source).
type ProtocolDataFields struct {
	Protocol         string `json:"protocol"`
	Priority         int    `json:"priority"`
	ProofOfWorkNonce string `json:"proof_of_work_nonce"`
	Signature        string `json:"signature"`
}

// OperationRef is a slimmed {branch, data} pair: the form preapply/block
// returns its accepted operations in, and the form forge_block_header and
// injection/block expect them back in (spec.md §4.4 step 6 "Normalize
// operations").
type OperationRef struct {
	Branch string `json:"branch"`
	Data   string `json:"data"`
}

// PreapplyBlockResult is the preapply/block response.
type PreapplyBlockResult struct {
	ShellHeader ShellHeader         `json:"shell_header"`
	Operations  [4][]OperationRef   `json:"operations"`
}
