// learn.go — hebbian fast-weight adaptation.
//
// Runs once per tick after the hops settle. The pre-synaptic term comes
// from the tick-start snapshot, the post-synaptic term from the settled
// activation, both centered on the same baseline, so weights strengthen
// only when source and destination are active across consecutive states.
//
// Hard invariant: this pass touches the fast channel only. The slow
// channel belongs exclusively to the correlate meta-operation.

package engine

import (
	"main/constants"
	"main/graph"
)

func (e *Engine) learn() {
	rate := e.learningRate * e.rewardMultiplier()
	if rate == 0 {
		return
	}
	nodeCount := e.st.Header().NodeCount
	edges := e.st.Edges()
	for i := range edges {
		ed := &edges[i]
		if !ed.Live() || ed.Src >= nodeCount || ed.Dst >= nodeCount {
			continue
		}
		var pre float32
		if int(ed.Src) < len(e.prevAct) {
			pre = e.prevAct[ed.Src]
		}
		post := e.st.Node(ed.Dst).A
		h := (pre - constants.HebbBaseline) * (post - constants.HebbBaseline)
		if h == 0 {
			continue
		}
		ed.WFast = graph.ClampWeight(ed.WFast + rate*h)
	}
}

// rewardMultiplier is neutral until the compute-reward op has produced a
// signal, then scales learning by the clamped reward.
func (e *Engine) rewardMultiplier() float32 {
	if !e.rewardLive {
		return 1
	}
	m := e.reward * constants.RewardGain
	if m < 0 {
		return 0
	}
	if m > constants.RewardMulMax {
		return constants.RewardMulMax
	}
	return m
}
