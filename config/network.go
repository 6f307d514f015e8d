package config

// NetworkPreset carries the per-network constants spec.md §6 lists: cycle
// length, commitment interval, and the commitment-level offset (0 on most
// networks, 1 on the small test net).
type NetworkPreset struct {
	CycleLength       int64
	CommitmentInterval int64
	CommitmentOffset   int64
}

// Presets is the fixed table from spec.md §6. powHeader ("00000003") is the
// same on every network and lives in the baker package next to the stamp
// threshold constant, since it is a protocol-data encoding detail rather
// than a per-network parameter.
var Presets = map[string]NetworkPreset{
	"mainnet": {CycleLength: 4096, CommitmentInterval: 32, CommitmentOffset: 0},
	"testnet": {CycleLength: 2048, CommitmentInterval: 32, CommitmentOffset: 0},
	"zeronet": {CycleLength: 128, CommitmentInterval: 32, CommitmentOffset: 1},
}

// LevelToCycle returns the cycle number containing level l. Cycles are
// numbered from 0 and levels from 1 (spec.md §3).
func (p NetworkPreset) LevelToCycle(l int64) int64 {
	return (l - 1) / p.CycleLength
}

// CycleStart returns the first level of cycle c.
func (p NetworkPreset) CycleStart(c int64) int64 {
	return c*p.CycleLength + 1
}

// CycleEnd returns the last level of cycle c.
func (p NetworkPreset) CycleEnd(c int64) int64 {
	return p.CycleStart(c) + p.CycleLength - 1
}

// IsCommitmentLevel reports whether level l requires a fresh commitment
// seed (spec.md §3 "Commitment predicate").
func (p NetworkPreset) IsCommitmentLevel(l int64) bool {
	return l%p.CommitmentInterval == p.CommitmentOffset
}

// RevealWindow returns the [start, end] level range in which a nonce
// committed at level l must be revealed: cycle levelToCycle(l)+1.
func (p NetworkPreset) RevealWindow(l int64) (start, end int64) {
	c := p.LevelToCycle(l) + 1
	return p.CycleStart(c), p.CycleEnd(c)
}
