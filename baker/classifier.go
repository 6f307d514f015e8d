package baker

import "github.com/tolelom/tolbaker/nodeclient"

// Pass is one of four validation lanes the node expects operations to be
// grouped into inside a block (spec.md GLOSSARY "Pass").
type Pass int

const (
	PassConsensus   Pass = 0 // endorsement
	PassGovernance  Pass = 1 // proposals, ballot
	PassAnonymous   Pass = 2 // seed_nonce_revelation, double-bake/endorse evidence, activate_account
	PassManager     Pass = 3 // everything else, and any multi-content operation
)

// ClassifyOperation maps a mempool operation to its validation pass
// (spec.md §4.7). The result depends only on the operation's own kind(s),
// never on surrounding operations.
func ClassifyOperation(op nodeclient.MempoolOperation) Pass {
	if len(op.Contents) != 1 {
		return PassManager
	}
	switch op.Contents[0].Kind {
	case "endorsement":
		return PassConsensus
	case "proposals", "ballot":
		return PassGovernance
	case "seed_nonce_revelation", "double_endorsement_evidence", "double_baking_evidence", "activate_account":
		return PassAnonymous
	default:
		return PassManager
	}
}
