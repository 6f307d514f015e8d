package baker

import "github.com/tolelom/tolbaker/nodeclient"

// OperationsMatrix is the 4-way pass-partitioned operation list a
// candidate block header carries (spec.md §4.4 step 3).
type OperationsMatrix [4][]nodeclient.MempoolOperation

// SelectOperations builds an OperationsMatrix from the mempool's applied
// list: keep each operation whose branch matches headHash and whose hash
// is not in badOps, deduplicate by hash, classify into a pass, and
// preserve the pool's order within each slot (spec.md §4.4 step 3).
//
// The seen-hash dedupe follows the same insertion-ordered-map pattern the
// transaction pool used for its own pending-set bookkeeping.
func SelectOperations(applied []nodeclient.MempoolOperation, headHash string, badOps BadOpSet) OperationsMatrix {
	var matrix OperationsMatrix
	seen := make(map[string]struct{}, len(applied))

	for _, op := range applied {
		if op.Branch != headHash {
			continue
		}
		if badOps.Has(op.Hash) {
			continue
		}
		if _, dup := seen[op.Hash]; dup {
			continue
		}
		seen[op.Hash] = struct{}{}

		pass := ClassifyOperation(op)
		matrix[pass] = append(matrix[pass], op)
	}
	return matrix
}

// CountEndorsements counts operations in applied that have at least one
// content of kind "endorsement" (spec.md §4.5 "Given the mempool's applied list, count
// operations containing any {kind: endorsement} content").
func CountEndorsements(applied []nodeclient.MempoolOperation) int {
	count := 0
	for _, op := range applied {
		for _, c := range op.Contents {
			if c.Kind == "endorsement" {
				count++
				break
			}
		}
	}
	return count
}
