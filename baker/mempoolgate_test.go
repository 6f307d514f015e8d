package baker

import "testing"

func TestMempoolGateAcceptsUnconditionallyWhenNoneRequired(t *testing.T) {
	g := NewMempoolGate(0)
	ready, reset := g.Check(0)
	if !ready || reset {
		t.Errorf("Check(0) with required=0 = (%v, %v), want (true, false)", ready, reset)
	}
}

func TestMempoolGateAcceptsAndResetsWhenThresholdMet(t *testing.T) {
	g := NewMempoolGate(5)
	ready, reset := g.Check(5)
	if !ready || !reset {
		t.Errorf("Check(5) with required=5 = (%v, %v), want (true, true)", ready, reset)
	}
}

func TestMempoolGateRejectsBelowThreshold(t *testing.T) {
	g := NewMempoolGate(5)
	ready, reset := g.Check(2)
	if ready || reset {
		t.Errorf("Check(2) with required=5 = (%v, %v), want (false, false)", ready, reset)
	}
}

func TestMempoolGateForcesAcceptanceAfterMaxRejections(t *testing.T) {
	g := NewMempoolGate(100)
	for i := 0; i < maxGateRejections-1; i++ {
		ready, _ := g.Check(0)
		if ready {
			t.Fatalf("Check should not accept before %d rejections (failed at %d)", maxGateRejections, i)
		}
	}
	ready, reset := g.Check(0)
	if !ready {
		t.Errorf("expected forced acceptance on the %dth rejection", maxGateRejections)
	}
	if reset {
		t.Error("forced acceptance should not reset required_endorsements")
	}
}
