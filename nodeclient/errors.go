package nodeclient

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// RPCError wraps a non-2xx node response: the HTTP status plus the raw
// JSON error body, so callers can both log a flat message and parse the
// payload for the structured detail spec.md §7 calls for (offending
// operation hashes, "not enough endorsements").
type RPCError struct {
	Endpoint string
	Status   int
	Body     []byte
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("nodeclient: %s: http %d: %s", e.Endpoint, e.Status, string(e.Body))
}

// newRPCError wraps the error with the calling endpoint using pkg/errors,
// preserving a stack trace for diagnosis while still satisfying the
// ordinary error interface the rest of the agent expects.
func newRPCError(endpoint string, status int, body []byte) error {
	return errors.WithStack(&RPCError{Endpoint: endpoint, Status: status, Body: body})
}

// errorEntry is one element of the JSON array the node emits on a failed
// RPC, e.g. [{"kind":"permanent","id":"...","contract":"opHashX"}].
type errorEntry struct {
	Kind     string `json:"kind"`
	ID       string `json:"id"`
	Contract string `json:"contract,omitempty"`
	Hash     string `json:"hash,omitempty"`
}

// RequiredEndorsements extracts the minimum-endorsements count from a
// preapply/block "not enough endorsements" error body, if present.
// spec.md §4.4 step 5 / §7 "Insufficient endorsements at preapply".
func RequiredEndorsements(body []byte) (int, bool) {
	var entries []errorEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return 0, false
	}
	for i, e := range entries {
		if strings.Contains(e.ID, "not_enough_endorsements") || strings.Contains(e.Kind, "endorsement") {
			var parsed []struct {
				Required int `json:"minimum"`
			}
			_ = json.Unmarshal(body, &parsed) // best effort; an absent minimum yields 0, true below
			if i < len(parsed) && parsed[i].Required > 0 {
				return parsed[i].Required, true
			}
			return 0, true
		}
	}
	return 0, false
}

// OffendingOperations extracts operation hashes the node rejected during
// block injection, so the caller can add them to its bad-op set
// (spec.md §7 "Operation rejection during block injection").
func OffendingOperations(body []byte) []string {
	var entries []errorEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil
	}
	var hashes []string
	for _, e := range entries {
		switch {
		case e.Hash != "":
			hashes = append(hashes, e.Hash)
		case e.Contract != "":
			hashes = append(hashes, e.Contract)
		}
	}
	return hashes
}
