package baker

// maxGateRejections bounds how many times MempoolGate can reject a single
// bake attempt before forcing acceptance, avoiding an indefinite stall
// when the mempool underreports visible endorsements (spec.md §4.5).
const maxGateRejections = 10

// MempoolGate debounces block assembly until enough endorsements for the
// current head are visible in the mempool (spec.md §4.5). One instance is
// created per bake attempt; its rejection counter is not shared across
// attempts.
type MempoolGate struct {
	requiredEndorsements int
	rejections           int
}

// NewMempoolGate creates a gate requiring at least required visible
// endorsements (0 accepts unconditionally on the first attempt).
func NewMempoolGate(required int) *MempoolGate {
	return &MempoolGate{requiredEndorsements: required}
}

// Check reports whether block assembly may proceed given the number of
// endorsements currently visible in the mempool. A true result with
// resetRequired true means the gate's required-endorsements count should
// be reset to 0 upstream (spec.md §4.5 "reset required_endorsements = 0
// and accept").
func (g *MempoolGate) Check(visibleEndorsements int) (ready bool, resetRequired bool) {
	if g.requiredEndorsements == 0 {
		return true, false
	}
	if visibleEndorsements >= g.requiredEndorsements {
		return true, true
	}
	g.rejections++
	if g.rejections >= maxGateRejections {
		return true, false
	}
	return false, false
}
