// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⚡ META-OPERATION INTERPRETER
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Persistent Self-Modifying Graph Engine
// Component: Structural Op Dispatch
//
// Description:
//   A node whose theta sits at MetaThetaBase+k dispatches operation k when driven past
//   the firing floor. The ten operations let the graph observe and rewrite itself:
//   counting, correlation tracking, module grouping, self-measurement, and parameter
//   tuning.
//
// Design Principles:
//   - Every op is defensive: empty sets, missing nodes, and zero divisions degrade to
//     no-ops; the interpreter never panics and never fails the tick
//   - The slow weight channel has exactly one writer: OpCorrelate
//   - Module spawning dedups on the member-set signature, so re-observing the same
//     pattern refreshes the existing module instead of minting another
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package engine

import (
	"main/constants"
	"main/debug"
	"main/graph"
	"main/utils"
)

// MetaOp selects interpreter behavior. The value is the node's theta
// offset above MetaThetaBase, which is also the node's position inside
// the bootstrap meta circuit.
type MetaOp int

const (
	OpCountActive MetaOp = iota
	OpCorrelate
	OpThresholdCreate
	OpWirePattern
	OpGroupModule
	OpMeasurePerf
	OpAdjustThreshold
	OpTuneLearning
	OpComputeReward
	OpDiscoverObjective

	opCount
)

// dispatch runs the operation encoded by node idx's theta band. Unknown
// bands are ignored.
func (e *Engine) dispatch(idx uint32) {
	n := e.st.Node(idx)
	if n == nil {
		return
	}
	op := MetaOp(n.Theta - constants.MetaThetaBase)
	if op < 0 || op >= opCount {
		return
	}
	switch op {
	case OpCountActive:
		e.opCountActive(idx)
	case OpCorrelate:
		e.opCorrelate(idx)
	case OpThresholdCreate:
		e.opThresholdCreate(idx)
	case OpWirePattern:
		e.opWirePattern()
	case OpGroupModule:
		e.opGroupModule()
	case OpMeasurePerf:
		e.opMeasurePerf(idx)
	case OpAdjustThreshold:
		e.opAdjustThreshold()
	case OpTuneLearning:
		e.opTuneLearning(idx)
	case OpComputeReward:
		e.opComputeReward()
	case OpDiscoverObjective:
		e.opDiscoverObjective(idx)
	}
}

// activePattern collects up to MaxPatternNodes non-dispatcher nodes above
// the activity floor, in ascending index order.
func (e *Engine) activePattern() []uint32 {
	e.memberBuf = e.memberBuf[:0]
	nodes := e.st.Nodes()
	for i := range nodes {
		n := &nodes[i]
		if n.IsMeta() || n.A <= constants.ActiveFloor {
			continue
		}
		e.memberBuf = append(e.memberBuf, uint32(i))
		if len(e.memberBuf) == constants.MaxPatternNodes {
			break
		}
	}
	return e.memberBuf
}

// createModuleFrom captures a member set as a module: a protected memory
// hub wired from every member, deduplicated by member-set signature.
// Shared by the threshold-create and group-into-module ops.
func (e *Engine) createModuleFrom(members []uint32) {
	if len(members) < 2 {
		return
	}
	sig := graph.Signature(members)
	if at, ok := e.st.FindModuleBySig(sig); ok {
		e.st.Modules()[at].LastUsed = uint32(e.st.Header().Tick)
		return
	}
	hub, err := e.st.CreateNode(graph.KindMemory, constants.MetaHubTheta)
	if err != nil {
		debug.DropError("META", err)
		return
	}
	e.st.Node(hub).Protect()
	for _, m := range members {
		if _, _, err := e.st.AddEdge(m, hub, constants.WireWeight, constants.WeightMin); err != nil {
			debug.DropError("META", err)
		}
	}
	name := "mod-" + utils.Itoa(int(e.st.Header().ModuleCount))
	if _, err := e.st.CreateModule(hub, sig, name, uint32(len(members))); err != nil {
		debug.DropError("META", err)
		return
	}
	e.moduleSpawns++
	debug.DropMessage("MODULE", name+" hub="+utils.Itoa(int(hub))+
		" members="+utils.Itoa(len(members)))
}

// ───────────────────────────── op 0: count-active-neighbors ────────────────

// Tallies the dispatcher's outgoing neighbors above the activity floor
// into its stored memory value, making local activity observable.
func (e *Engine) opCountActive(self uint32) {
	nodeCount := e.st.Header().NodeCount
	count := 0
	edges := e.st.Edges()
	for i := range edges {
		ed := &edges[i]
		if !ed.Live() || ed.Src != self || ed.Dst >= nodeCount {
			continue
		}
		if e.st.Node(ed.Dst).A > constants.ActiveFloor {
			count++
		}
	}
	e.st.Node(self).Mem = float32(count)
}

// ───────────────────────────── op 1: correlate ─────────────────────────────

// On every co-activation of the dispatcher and one of its neighbors, the
// connecting edge's slow weight is incremented, saturating at the weight
// ceiling. This is the only writer of WSlow anywhere.
func (e *Engine) opCorrelate(self uint32) {
	nodeCount := e.st.Header().NodeCount
	edges := e.st.Edges()
	for i := range edges {
		ed := &edges[i]
		if !ed.Live() || ed.Src >= nodeCount || ed.Dst >= nodeCount {
			continue
		}
		var other uint32
		switch {
		case ed.Src == self:
			other = ed.Dst
		case ed.Dst == self:
			other = ed.Src
		default:
			continue
		}
		if e.st.Node(other).A <= constants.ActiveFloor {
			continue
		}
		ed.WSlow = graph.ClampWeight(ed.WSlow + constants.CorrelateBoost)
		e.correlations++
	}
}

// ───────────────────────────── op 2: threshold-create ──────────────────────

// Scans the dispatcher's incoming edges for slow weights above its stored
// detector threshold and groups the qualifying sources into a module.
// The threshold itself lives in the dispatcher's memory slot, where the
// adjust-threshold and discover-objective ops retune it.
func (e *Engine) opThresholdCreate(self uint32) {
	thr := e.st.Node(self).Mem
	if thr <= 0 {
		thr = constants.DetectorThetaDefault
	}
	nodeCount := e.st.Header().NodeCount
	e.memberBuf = e.memberBuf[:0]
	edges := e.st.Edges()
	for i := range edges {
		ed := &edges[i]
		if !ed.Live() || ed.Dst != self || ed.Src >= nodeCount {
			continue
		}
		if ed.WSlow > thr {
			e.memberBuf = append(e.memberBuf, ed.Src)
			if len(e.memberBuf) == constants.MaxPatternNodes {
				break
			}
		}
	}
	e.createModuleFrom(e.memberBuf)
}

// ───────────────────────────── op 3: wire-active-pattern ───────────────────

// Chains the active pattern in index order, creating only the consecutive
// edges that do not already exist.
func (e *Engine) opWirePattern() {
	pattern := e.activePattern()
	for i := 0; i+1 < len(pattern); i++ {
		if _, ok := e.st.FindEdge(pattern[i], pattern[i+1]); ok {
			continue
		}
		if _, _, err := e.st.AddEdge(pattern[i], pattern[i+1], constants.WireWeight, constants.WeightMin); err != nil {
			debug.DropError("META", err)
		}
	}
}

// ───────────────────────────── op 4: group-into-module ─────────────────────

// Captures the whole active set as one module.
func (e *Engine) opGroupModule() {
	e.createModuleFrom(e.activePattern())
}

// ───────────────────────────── op 5: measure-performance ───────────────────

// At most once per ten ticks, folds the structural counters accumulated
// since the last firing into a per-tick rate, stores it on the
// dispatcher, and resets the window.
func (e *Engine) opMeasurePerf(self uint32) {
	tick := e.st.Header().Tick
	window := tick - e.lastPerfTick
	if window < 10 {
		return
	}
	e.lastPerf = e.perfScore
	e.perfScore = (float32(e.correlations) + 10.0*float32(e.moduleSpawns)) / float32(window)
	e.correlations = 0
	e.moduleSpawns = 0
	e.lastPerfTick = tick
	e.st.Node(self).Mem = e.perfScore
}

// ───────────────────────────── op 6: adjust-threshold ──────────────────────

// Nudges the threshold-create detector's stored threshold on the latest
// reward (preferred) or performance trend, bounded to [10,100]. A strong
// signal loosens the detector; a weak one tightens it.
func (e *Engine) opAdjustThreshold() {
	det := e.st.Node(metaCircuitBase + uint32(OpThresholdCreate))
	if det == nil {
		return
	}
	loosen := false
	if e.rewardLive {
		loosen = e.reward > 0.5
	} else {
		loosen = e.perfScore >= e.lastPerf
	}
	if loosen {
		det.Mem -= 1
	} else {
		det.Mem += 1
	}
	if det.Mem < constants.DetectorThetaMin {
		det.Mem = constants.DetectorThetaMin
	}
	if det.Mem > constants.DetectorThetaMax {
		det.Mem = constants.DetectorThetaMax
	}
}

// ───────────────────────────── op 7: tune-learning ─────────────────────────

// Observes the volatility of the average fast weight and derives a
// suggested learning rate. The suggestion is stored, never applied: other
// circuits (or an operator) read it from the dispatcher's memory slot.
func (e *Engine) opTuneLearning(self uint32) {
	nodeCount := e.st.Header().NodeCount
	var sum float32
	live := 0
	edges := e.st.Edges()
	for i := range edges {
		ed := &edges[i]
		if !ed.Live() || ed.Src >= nodeCount || ed.Dst >= nodeCount {
			continue
		}
		sum += ed.WFast
		live++
	}
	if live == 0 {
		return
	}
	avg := sum / float32(live)
	vol := avg - e.lastAvgWeight
	if vol < 0 {
		vol = -vol
	}
	e.lastAvgWeight = avg
	suggested := float32(constants.DefaultLearningRate) / (1 + vol)
	if suggested < constants.LearnRateMin {
		suggested = constants.LearnRateMin
	}
	if suggested > constants.LearnRateMax {
		suggested = constants.LearnRateMax
	}
	e.suggestedRate = suggested
	e.st.Node(self).Mem = suggested
}

// ───────────────────────────── op 8: compute-reward ────────────────────────

// Self-supervised signal: the fraction of the previous output batch that
// reappears positionally in the current input frame. No output or no
// input yields zero reward, never an error.
func (e *Engine) opComputeReward() {
	n := len(e.prevOut)
	if len(e.lastFrame) < n {
		n = len(e.lastFrame)
	}
	if n == 0 {
		// Nothing to compare yet. The reward stays advisory until the
		// first real prediction, otherwise a silent engine would lock
		// its own learning rate at zero before it can produce output.
		e.reward = 0
		return
	}
	e.rewardLive = true
	match := 0
	for i := 0; i < n; i++ {
		if e.prevOut[i] == e.lastFrame[i] {
			match++
		}
	}
	e.reward = float32(match) / float32(n)
}

// ───────────────────────────── op 9: discover-objective ────────────────────

// Classifies the current frame's byte diversity into one of three regimes
// and retunes the threshold-create detector accordingly: repetitive input
// loosens the detector toward sequence capture, diverse input tightens it
// toward abstraction, the middle ground sits between.
func (e *Engine) opDiscoverObjective(self uint32) {
	var seen [constants.ByteNodeCount]bool
	distinct := 0
	for _, b := range e.lastFrame {
		if !seen[b] {
			seen[b] = true
			distinct++
		}
	}
	regime := uint8(1)
	thr := float32(50)
	switch {
	case distinct < constants.DiversityLow:
		regime, thr = 0, 20
	case distinct > constants.DiversityHigh:
		regime, thr = 2, 80
	}
	if regime != e.regime {
		debug.DropMessage("OBJECTIVE", "regime "+utils.Itoa(int(e.regime))+" to "+utils.Itoa(int(regime))+
			" distinct="+utils.Itoa(distinct))
		e.regime = regime
	}
	if det := e.st.Node(metaCircuitBase + uint32(OpThresholdCreate)); det != nil {
		det.Mem = thr
	}
	e.st.Node(self).Mem = float32(distinct)
}
