// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⚡ ACTIVATION ENGINE
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Persistent Self-Modifying Graph Engine
// Component: Tick Cycle — Clear / Accumulate / Execute / Normalize
//
// Description:
//   Drives the per-tick activation cycle over the mapped graph. Each external input
//   frame runs a fixed number of hops to let activation settle, then the learning pass
//   and output emission read the settled state.
//
// Design Principles:
//   - Single-threaded: the engine is the region's only writer
//   - No record pointers survive a structural mutation; every hop re-reads counts and
//     reaches records through store accessors, so growth mid-tick cannot dangle views
//   - Meta-operation dispatch happens inside the execute phase; a dispatching node
//     contributes a fixed activation of 1.0 for the tick
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package engine

import (
	"io"
	"math"

	"main/constants"
	"main/debug"
	"main/graph"
	"main/utils"
)

// Bootstrap layout: the meta circuit occupies the first node indices, the
// byte identity layer follows. Both are created exactly once on a fresh
// store and recovered by position after restore.
const (
	metaCircuitBase  = 0
	metaCircuitCount = 10
	byteNodeBase     = metaCircuitBase + metaCircuitCount
	bootstrapTotal   = byteNodeBase + constants.ByteNodeCount
)

// Engine owns the per-tick scratch state layered over the store.
type Engine struct {
	st  *graph.Store
	out io.Writer

	soma    []float32 // accumulators, indexed by node position
	prevAct []float32 // activation snapshot taken at tick start

	byteNodes [constants.ByteNodeCount]uint32
	sensed    [constants.ByteNodeCount]bool // byte values driven this tick
	emitted   [constants.ByteNodeCount]bool // per-tick output dedup

	prevByte  int    // last sensed byte for temporal wiring (-1 = none)
	lastFrame []byte // copy of the current input frame
	prevOut   []byte // last emitted batch, retained for compute-reward

	// Interpreter state shared across meta-operation firings.
	learningRate  float32
	suggestedRate float32 // tune-learning output, stored but never auto-applied
	lastAvgWeight float32
	perfScore     float32
	lastPerf      float32
	lastPerfTick  uint64
	reward        float32
	rewardLive    bool // compute-reward has fired at least once
	regime        uint8
	moduleSpawns  uint32 // counters consumed by measure-performance
	correlations  uint32

	memberBuf []uint32
	outBuf    []byte
}

// New layers an engine over an opened store. Output batches are written
// to out; pass io.Discard when running headless.
func New(st *graph.Store, learningRate float64, out io.Writer) *Engine {
	return &Engine{
		st:           st,
		out:          out,
		learningRate: float32(learningRate),
		prevByte:     -1,
		memberBuf:    make([]uint32, 0, constants.MaxPatternNodes),
	}
}

// Store exposes the underlying region (console and snapshot paths).
func (e *Engine) Store() *graph.Store { return e.st }

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// BOOTSTRAP
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Bootstrap creates the protected kernel on a fresh store: one dispatcher
// node per meta operation, then the 256-node byte identity layer, weakly
// wired into every dispatcher so aggregate input activity can trigger
// structural ops. On a restored store it only re-derives the byte map.
func (e *Engine) Bootstrap() error {
	if e.st.Header().NodeCount == 0 {
		for k := 0; k < metaCircuitCount; k++ {
			id, err := e.st.CreateNode(graph.KindSigmoid, constants.MetaThetaBase+float32(k))
			if err != nil {
				return err
			}
			e.st.Node(id).Protect()
		}
		for b := 0; b < constants.ByteNodeCount; b++ {
			id, err := e.st.CreateNode(graph.KindSigmoid, constants.ByteNodeTheta)
			if err != nil {
				return err
			}
			n := e.st.Node(id)
			n.Protect()
			n.MarkOutput()
			n.Mem = float32(b)
		}
		for b := uint32(0); b < constants.ByteNodeCount; b++ {
			for k := uint32(0); k < metaCircuitCount; k++ {
				if _, _, err := e.st.AddEdge(byteNodeBase+b, metaCircuitBase+k, constants.WeightMin, constants.WeightMin); err != nil {
					return err
				}
			}
		}
		// The threshold-create dispatcher carries its detector threshold
		// in its memory slot.
		e.st.Node(metaCircuitBase + uint32(OpThresholdCreate)).Mem = constants.DetectorThetaDefault
		debug.DropMessage("BOOT", "kernel created: "+utils.Itoa(int(e.st.Header().NodeCount))+" nodes")
	}
	if e.st.Header().NodeCount < bootstrapTotal {
		return graph.ErrCorruptStore
	}
	for b := range e.byteNodes {
		e.byteNodes[b] = uint32(byteNodeBase + b)
	}
	e.ensureScratch()
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// TICK CYCLE
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Tick runs one full frame cycle: snapshot, sense, settle, learn, emit.
// The header tick advances at the end, after learning has consumed the
// previous tick's snapshot.
func (e *Engine) Tick(frame []byte) {
	e.beginTick()
	e.sense(frame)
	for hop := 0; hop < constants.HopsPerFrame; hop++ {
		e.hop()
	}
	e.learn()
	e.emit()
	e.st.Header().Tick++
}

// beginTick snapshots activations for the learning pass and clears the
// per-tick marker sets.
func (e *Engine) beginTick() {
	e.ensureScratch()
	nodes := e.st.Nodes()
	for i := range nodes {
		e.prevAct[i] = nodes[i].A
	}
	for i := range e.sensed {
		e.sensed[i] = false
		e.emitted[i] = false
	}
}

// ensureScratch grows the accumulator and snapshot arrays to cover nodes
// created since the last call. Fresh entries start at zero activation.
func (e *Engine) ensureScratch() {
	n := int(e.st.Header().NodeCount)
	for len(e.soma) < n {
		e.soma = append(e.soma, 0)
	}
	for len(e.prevAct) < n {
		e.prevAct = append(e.prevAct, 0)
	}
}

// hop runs one Clear → Accumulate → Execute → Normalize pass.
func (e *Engine) hop() {
	e.ensureScratch()
	h := e.st.Header()
	tick := h.Tick
	nodeCount := h.NodeCount

	// Clear.
	for i := uint32(0); i < nodeCount; i++ {
		e.soma[i] = 0
	}

	// Accumulate: live edges whose source fired within the staleness
	// window push blended weight onto their destination.
	edges := e.st.Edges()
	for i := range edges {
		ed := &edges[i]
		if !ed.Live() || ed.Src >= nodeCount || ed.Dst >= nodeCount {
			continue
		}
		src := e.st.Node(ed.Src)
		// LastTick holds the truncated tick, so the age must be computed in
		// uint32 modular space: widening LastTick instead would mis-stale
		// every node once the 64-bit counter passes 2^32. A node idle for an
		// exact multiple of 2^32 ticks aliases as fresh, which is harmless
		// next to freezing the whole graph.
		if uint32(tick)-src.LastTick > constants.StalenessWindow {
			continue
		}
		e.soma[ed.Dst] += src.A * (constants.GammaSlow*ed.WSlow + constants.GammaFast*ed.WFast) / constants.WeightMax
	}

	// Execute: records are re-fetched per node because a meta op can grow
	// the region mid-loop.
	for i := uint32(0); i < nodeCount; i++ {
		n := e.st.Node(i)
		if n == nil {
			break
		}
		acc := e.soma[i]
		switch {
		case n.IsMeta():
			if acc > constants.MetaFireFloor {
				e.dispatch(i)
				n = e.st.Node(i) // dispatch may have remapped the region
				n.A = 1.0
			} else {
				n.A = 0
			}
		case n.Kind() == graph.KindMemory:
			if acc > n.Theta {
				n.Mem = acc
				n.A = clamp01(acc)
			} else {
				n.Mem *= constants.MemoryDecay
				n.A = clamp01(n.Mem)
			}
		default:
			n.A = sigmoid(acc - n.Theta)
		}
		if i >= byteNodeBase && i < bootstrapTotal && e.sensed[i-byteNodeBase] {
			// Sensed input pins its byte node for the whole settle window.
			n.A = 1.0
		}
		if n.A > constants.ActiveFloor {
			n.LastTick = uint32(tick)
		}
	}

	e.normalize(nodeCount)
}

// normalize enforces the finite energy budget: if total activation
// exceeds the cap, every node scales down uniformly.
func (e *Engine) normalize(nodeCount uint32) {
	nodes := e.st.Nodes()
	var total float32
	for i := range nodes {
		total += nodes[i].A
	}
	budget := constants.EnergyCapFraction * float32(nodeCount)
	if total <= budget || total == 0 {
		return
	}
	scale := budget / total
	for i := range nodes {
		nodes[i].A *= scale
	}
}

//go:nosplit
//go:inline
func sigmoid(x float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(-float64(x))))
}

//go:nosplit
//go:inline
func clamp01(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
