// Package engine tests drive the tick cycle end to end over a real
// mapped store: bootstrap, sensing, settling, learning, and emission.
package engine

import (
	"io"
	"path/filepath"
	"testing"

	"main/constants"
	"main/graph"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graph.mmap")
	st, err := graph.Open(path, graph.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	e := New(st, constants.DefaultLearningRate, io.Discard)
	if err := e.Bootstrap(); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	return e
}

// -----------------------------------------------------------------------------
// ░░ Bootstrap Kernel ░░
// -----------------------------------------------------------------------------

func TestBootstrapCreatesKernel(t *testing.T) {
	e := newTestEngine(t)
	h := e.st.Header()
	if h.NodeCount != bootstrapTotal {
		t.Fatalf("NodeCount = %d, want %d", h.NodeCount, bootstrapTotal)
	}
	if h.EdgeCount != constants.ByteNodeCount*metaCircuitCount {
		t.Fatalf("EdgeCount = %d", h.EdgeCount)
	}
	for k := uint32(0); k < metaCircuitCount; k++ {
		n := e.st.Node(k)
		if !n.IsMeta() || !n.IsProtected() {
			t.Fatalf("meta node %d: meta=%v protected=%v", k, n.IsMeta(), n.IsProtected())
		}
		if n.Theta != constants.MetaThetaBase+float32(k) {
			t.Fatalf("meta node %d theta = %v", k, n.Theta)
		}
	}
	for b := 0; b < constants.ByteNodeCount; b++ {
		n := e.st.Node(e.byteNodes[b])
		if !n.IsProtected() || !n.IsOutput() {
			t.Fatalf("byte node %d flags wrong", b)
		}
		if n.Mem != float32(b) {
			t.Fatalf("byte node %d Mem = %v", b, n.Mem)
		}
	}
	if _, ok := e.st.FindEdge(byteNodeBase+5, 3); !ok {
		t.Fatal("byte layer not wired into circuit")
	}
	if got := e.st.Node(metaCircuitBase + uint32(OpThresholdCreate)).Mem; got != constants.DetectorThetaDefault {
		t.Fatalf("detector threshold seed = %v", got)
	}
}

func TestBootstrapIdempotentAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.mmap")
	st, err := graph.Open(path, graph.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	e := New(st, constants.DefaultLearningRate, io.Discard)
	if err := e.Bootstrap(); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	e.st.Node(metaCircuitBase + uint32(OpThresholdCreate)).Mem = 33
	edges := e.st.Header().EdgeCount
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st, err = graph.Open(path, graph.Options{Strict: true})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	e = New(st, constants.DefaultLearningRate, io.Discard)
	if err := e.Bootstrap(); err != nil {
		t.Fatalf("Bootstrap after restore: %v", err)
	}
	h := st.Header()
	if h.NodeCount != bootstrapTotal || h.EdgeCount != edges {
		t.Fatalf("restore duplicated kernel: %d nodes %d edges", h.NodeCount, h.EdgeCount)
	}
	if got := st.Node(metaCircuitBase + uint32(OpThresholdCreate)).Mem; got != 33 {
		t.Fatalf("tuned threshold lost across restart: %v", got)
	}
	if e.byteNodes['a'] != byteNodeBase+'a' {
		t.Fatalf("byte map not re-derived: %d", e.byteNodes['a'])
	}
}

func TestBootstrapRejectsTruncatedKernel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.mmap")
	st, err := graph.Open(path, graph.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()
	for i := 0; i < 5; i++ {
		if _, err := st.CreateNode(graph.KindSigmoid, 1.0); err != nil {
			t.Fatalf("CreateNode: %v", err)
		}
	}
	e := New(st, constants.DefaultLearningRate, io.Discard)
	if err := e.Bootstrap(); err != graph.ErrCorruptStore {
		t.Fatalf("Bootstrap = %v, want ErrCorruptStore", err)
	}
}

// -----------------------------------------------------------------------------
// ░░ Activation Semantics ░░
// -----------------------------------------------------------------------------

func TestSensedBytesPinnedThroughSettling(t *testing.T) {
	e := newTestEngine(t)
	e.Tick([]byte("a"))
	if got := e.st.Node(e.byteNodes['a']).A; got != 1.0 {
		t.Fatalf("sensed node A = %v", got)
	}
	if got := e.st.Node(e.byteNodes['z']).A; got > constants.ActiveFloor {
		t.Fatalf("unsensed node A = %v", got)
	}
	if e.st.Header().Tick != 1 {
		t.Fatalf("tick = %d", e.st.Header().Tick)
	}
}

func TestEnergyBudgetScalesUniformly(t *testing.T) {
	e := newTestEngine(t)
	nodes := e.st.Nodes()
	for i := range nodes {
		nodes[i].A = 1.0
	}
	nodeCount := e.st.Header().NodeCount
	e.normalize(nodeCount)

	var total float32
	nodes = e.st.Nodes()
	for i := range nodes {
		total += nodes[i].A
	}
	budget := constants.EnergyCapFraction * float32(nodeCount)
	if total > budget*1.001 {
		t.Fatalf("total = %v, budget = %v", total, budget)
	}
	// Uniform scale: every node holds the same fraction.
	want := budget / float32(nodeCount)
	for i := range nodes {
		if d := nodes[i].A - want; d > 1e-4 || d < -1e-4 {
			t.Fatalf("node %d A = %v, want %v", i, nodes[i].A, want)
		}
	}
}

func TestNormalizeLeavesLowTotalsAlone(t *testing.T) {
	e := newTestEngine(t)
	e.st.Node(e.byteNodes['a']).A = 0.9
	e.normalize(e.st.Header().NodeCount)
	if got := e.st.Node(e.byteNodes['a']).A; got != 0.9 {
		t.Fatalf("A = %v after no-op normalize", got)
	}
}

func TestMemoryNodeRecordsAndDecays(t *testing.T) {
	e := newTestEngine(t)
	src, err := e.st.CreateNode(graph.KindSigmoid, 2.0)
	if err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	mem, err := e.st.CreateNode(graph.KindMemory, 0.5)
	if err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	if _, _, err := e.st.AddEdge(src, mem, constants.WeightMax, constants.WeightMax); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	e.ensureScratch()
	s := e.st.Node(src)
	s.A = 1.0
	s.LastTick = uint32(e.st.Header().Tick)

	e.hop()
	m := e.st.Node(mem)
	if m.Mem < 0.99 || m.A < 0.99 {
		t.Fatalf("record failed: Mem=%v A=%v", m.Mem, m.A)
	}

	// Drive removed: the trace decays geometrically.
	e.st.Node(src).A = 0
	prev := m.Mem
	for i := 0; i < 3; i++ {
		e.hop()
		m = e.st.Node(mem)
		want := prev * constants.MemoryDecay
		if d := m.Mem - want; d > 1e-4 || d < -1e-4 {
			t.Fatalf("decay step %d: Mem=%v want %v", i, m.Mem, want)
		}
		prev = m.Mem
	}
}

func TestStaleSourcesDoNotPropagate(t *testing.T) {
	e := newTestEngine(t)
	src, _ := e.st.CreateNode(graph.KindSigmoid, 2.0)
	dst, _ := e.st.CreateNode(graph.KindSigmoid, 0.0)
	if _, _, err := e.st.AddEdge(src, dst, constants.WeightMax, constants.WeightMax); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	e.st.Header().Tick = constants.StalenessWindow + 100
	e.ensureScratch()
	e.st.Node(src).A = 1.0 // LastTick stays at creation, far in the past

	e.hop()
	// A sigmoid node with zero input and zero theta sits at exactly 0.5.
	if got := e.st.Node(dst).A; got > 0.5 {
		t.Fatalf("stale edge propagated: dst A = %v", got)
	}
}

// The node record stores the tick truncated to 32 bits. Once the 64-bit
// counter passes 2^32, a recently active source must still count as fresh;
// the age check has to run in uint32 modular space.
func TestFreshSourcesPropagatePastTickWraparound(t *testing.T) {
	e := newTestEngine(t)
	src, _ := e.st.CreateNode(graph.KindSigmoid, 2.0)
	dst, _ := e.st.CreateNode(graph.KindSigmoid, 0.0)
	if _, _, err := e.st.AddEdge(src, dst, constants.WeightMax, constants.WeightMax); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	tick := uint64(1)<<32 + 5
	e.st.Header().Tick = tick
	e.ensureScratch()
	s := e.st.Node(src)
	s.A = 1.0
	s.LastTick = uint32(tick) - 2 // active two ticks ago, inside the window

	e.hop()
	if got := e.st.Node(dst).A; got <= 0.5 {
		t.Fatalf("fresh source treated as stale past 2^32 ticks: dst A = %v", got)
	}
}

// -----------------------------------------------------------------------------
// ░░ Learning ░░
// -----------------------------------------------------------------------------

// A repeating two-byte stream must drive its temporal edge deep into
// saturation within 50 frames. This is the calibration contract for the
// whole default parameter set.
func TestEchoStreamSaturatesTemporalEdge(t *testing.T) {
	e := newTestEngine(t)
	for i := 0; i < 50; i++ {
		e.Tick([]byte("ab"))
	}
	ed, ok := e.st.FindEdge(e.byteNodes['a'], e.byteNodes['b'])
	if !ok {
		t.Fatal("temporal edge a->b missing")
	}
	if ed.WFast < 200 {
		t.Fatalf("a->b WFast = %v after 50 frames, want >= 200", ed.WFast)
	}
	if ed.WFast > constants.WeightMax {
		t.Fatalf("weight escaped clamp: %v", ed.WFast)
	}
}

func TestLearningTouchesFastChannelOnly(t *testing.T) {
	e := newTestEngine(t)
	a, b := e.byteNodes['a'], e.byteNodes['b']
	if _, _, err := e.st.AddEdge(a, b, 50, 7); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	e.ensureScratch()
	e.prevAct[a] = 1.0
	e.st.Node(b).A = 1.0

	e.learn()
	ed, _ := e.st.FindEdge(a, b)
	if ed.WFast <= 50 {
		t.Fatalf("fast weight did not move: %v", ed.WFast)
	}
	if ed.WSlow != 7 {
		t.Fatalf("learn wrote the slow channel: %v", ed.WSlow)
	}
}

func TestHebbianDepressesAntiCorrelated(t *testing.T) {
	e := newTestEngine(t)
	a, b := e.byteNodes['a'], e.byteNodes['b']
	if _, _, err := e.st.AddEdge(a, b, 50, 1); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	e.ensureScratch()
	e.prevAct[a] = 1.0
	e.st.Node(b).A = 0 // post below baseline: negative product

	e.learn()
	ed, _ := e.st.FindEdge(a, b)
	if ed.WFast >= 50 {
		t.Fatalf("anti-correlated edge did not weaken: %v", ed.WFast)
	}
	if ed.WFast < constants.WeightMin {
		t.Fatalf("weight escaped clamp: %v", ed.WFast)
	}
}

func TestRewardMultiplierGatesLearning(t *testing.T) {
	e := newTestEngine(t)
	if got := e.rewardMultiplier(); got != 1 {
		t.Fatalf("neutral multiplier = %v", got)
	}
	e.rewardLive = true
	e.reward = 0.4
	if got := e.rewardMultiplier(); got != 0.8 {
		t.Fatalf("multiplier = %v, want 0.8", got)
	}
	e.reward = 5
	if got := e.rewardMultiplier(); got != constants.RewardMulMax {
		t.Fatalf("multiplier = %v, want clamp at %v", got, float32(constants.RewardMulMax))
	}
	e.reward = 0
	if got := e.rewardMultiplier(); got != 0 {
		t.Fatalf("zero reward multiplier = %v", got)
	}
}

// -----------------------------------------------------------------------------
// ░░ Emission ░░
// -----------------------------------------------------------------------------

type sink struct{ data []byte }

func (s *sink) Write(p []byte) (int, error) {
	s.data = append(s.data, p...)
	return len(p), nil
}

func TestEmitWritesInternallyDrivenBytes(t *testing.T) {
	e := newTestEngine(t)
	out := &sink{}
	e.out = out
	e.st.Node(e.byteNodes['z']).A = 0.9
	e.st.Node(e.byteNodes['q']).A = 0.9
	e.sensed['q'] = true // input echo, suppressed

	e.emit()
	if string(out.data) != "z\n" {
		t.Fatalf("emitted %q", out.data)
	}
	if string(e.prevOut) != "z" {
		t.Fatalf("prevOut = %q", e.prevOut)
	}
}

func TestEmitSilentWhenNothingFires(t *testing.T) {
	e := newTestEngine(t)
	out := &sink{}
	e.out = out
	e.emit()
	if len(out.data) != 0 {
		t.Fatalf("emitted %q from a quiet graph", out.data)
	}
}

// Sustained co-activation of a small set must spawn exactly one module:
// a protected memory hub fed by every member, deduplicated on repeats.
func TestCorrelatedActivityEmergesModule(t *testing.T) {
	e := newTestEngine(t)
	for i := 0; i < 25; i++ {
		e.Tick([]byte("xyz"))
	}
	if got := e.st.Header().ModuleCount; got != 1 {
		t.Fatalf("ModuleCount = %d, want exactly 1", got)
	}
	m := &e.st.Modules()[0]
	hub := e.st.Node(m.MetaNode)
	if hub.Kind() != graph.KindMemory || !hub.IsProtected() {
		t.Fatalf("hub kind=%v protected=%v", hub.Kind(), hub.IsProtected())
	}
	for _, b := range []byte("xyz") {
		if _, ok := e.st.FindEdge(e.byteNodes[b], m.MetaNode); !ok {
			t.Fatalf("member %q not wired into hub", b)
		}
	}
}

func TestTemporalWiringAcrossFrameBoundary(t *testing.T) {
	e := newTestEngine(t)
	e.Tick([]byte("a"))
	e.Tick([]byte("b"))
	if _, ok := e.st.FindEdge(e.byteNodes['a'], e.byteNodes['b']); !ok {
		t.Fatal("boundary edge a->b missing")
	}
}

func TestRepeatedByteSkipsSelfLoop(t *testing.T) {
	e := newTestEngine(t)
	e.Tick([]byte("aaaa"))
	if _, ok := e.st.FindEdge(e.byteNodes['a'], e.byteNodes['a']); ok {
		t.Fatal("self loop wired")
	}
}
