// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: constants.go — Global Engine Tunables
//
// Purpose:
//   - Defines engine-wide constants for the persistent graph region, the
//     activation cycle, learning, meta-operation dispatch, and I/O framing.
//
// Notes:
//   - Region capacities are starting points; the store doubles them on demand.
//   - Activation and learning values mirror the packed on-disk record widths
//     (live weights occupy the byte range [1,255]).
//
// ⚠️ No runtime logic here — all values must be compile-time resolvable
// ─────────────────────────────────────────────────────────────────────────────

package constants

// ───────────────────────────── Persistent Region ───────────────────────────

const (
	// GraphMagic identifies a valid backing file. A header whose magic does
	// not match is either a foreign file or a torn create.
	GraphMagic = 0xBEEF2024

	// Initial record capacities. The region manager doubles each array
	// independently when its live count reaches capacity.
	InitialNodeCap   = 4096
	InitialEdgeCap   = 16384
	InitialModuleCap = 64

	// ModuleGrowPercent triggers module-table doubling: grow when
	// count*100 >= cap*ModuleGrowPercent.
	ModuleGrowPercent = 80

	// Record sizes in bytes. Fixed by the on-disk layout; offsets into the
	// mapping are derived from these and the header capacities.
	HeaderSize = 64
	NodeSize   = 32
	EdgeSize   = 16
	ModuleSize = 64
)

// ───────────────────────────── Edge Index ──────────────────────────────────

const (
	// IndexLoadNum / IndexLoadDen bound the open-addressing table at 70%
	// occupancy. Resize is checked at the start of every insert, never
	// lazily, which keeps probe chains short enough that clearing a slot
	// in place on remove stays sound.
	IndexLoadNum = 7
	IndexLoadDen = 10
)

// ───────────────────────────── Activation Cycle ────────────────────────────

const (
	// HopsPerFrame settles activation before learning and output are read.
	HopsPerFrame = 5

	// StalenessWindow is the tick distance beyond which a source node's
	// activation no longer propagates.
	StalenessWindow = 10

	// GammaSlow / GammaFast blend the two weight channels during
	// accumulation: signal = a * (GammaSlow*slow + GammaFast*fast) / WeightMax.
	GammaSlow = 0.8
	GammaFast = 0.2

	// MetaThetaBase marks a node as a meta-operation dispatcher: any node
	// with theta >= MetaThetaBase selects op int(theta - MetaThetaBase).
	MetaThetaBase = 1000.0

	// MetaFireFloor is the accumulator level a meta node must exceed to fire.
	MetaFireFloor = 0.1

	// EnergyCapFraction bounds total activation at fraction*nodeCount.
	EnergyCapFraction = 0.3

	// MemoryDecay is the per-tick decay applied to a persistent-memory
	// node's stored value while it re-emits instead of recording.
	MemoryDecay = 0.99
)

// ───────────────────────────── Learning ────────────────────────────────────

const (
	// HebbBaseline centers the pre/post activation product.
	HebbBaseline = 0.3

	// DefaultLearningRate scales the per-tick fast-weight update.
	DefaultLearningRate = 8.0

	// WeightMin / WeightMax clamp both weight channels. Zero is reserved
	// for the edge tombstone, so live weights never fall below 1.
	WeightMin = 1.0
	WeightMax = 255.0

	// RewardGain converts the self-supervised reward into a learning
	// multiplier, clamped to [0, RewardMulMax].
	RewardGain   = 2.0
	RewardMulMax = 2.0
)

// ───────────────────────────── Meta Operations ─────────────────────────────

const (
	// DetectorThetaMin / DetectorThetaMax clamp the adjust-threshold op.
	DetectorThetaMin = 10.0
	DetectorThetaMax = 100.0

	// WireWeight is the fast weight given to edges created by the
	// wire-active-pattern and group-into-module ops.
	WireWeight = 128.0

	// SenseWeight is the initial fast weight of temporal edges created
	// between consecutively sensed byte nodes.
	SenseWeight = 50.0

	// ActiveFloor is the activation level above which a node counts as
	// active for counting, wiring, and grouping ops.
	ActiveFloor = 0.5

	// MaxPatternNodes bounds how many active nodes a single wiring or
	// grouping op touches per firing.
	MaxPatternNodes = 256
)

// ───────────────────────────── Bootstrap Kernel ────────────────────────────

const (
	// ByteNodeTheta keeps the byte identity layer quiet at rest: the
	// resting sigmoid output stays low enough that the energy cap never
	// engages on background activity alone.
	ByteNodeTheta = 2.0

	// MetaHubTheta is the recording threshold of a module's meta-node.
	MetaHubTheta = 0.2

	// DetectorThetaDefault seeds the threshold-create dispatcher's stored
	// detector threshold.
	DetectorThetaDefault = 50.0

	// LearnRateMin / LearnRateMax bound the tune-learning suggestion.
	LearnRateMin = 0.5
	LearnRateMax = 32.0

	// StrengthenDelta is the fast-weight bump applied when a temporal
	// sense edge already exists.
	StrengthenDelta = 1.0

	// CorrelateBoost is the slow-weight bump applied per co-activation
	// observed by the correlate op.
	CorrelateBoost = 1.0

	// DiversityLow / DiversityHigh split input frames into byte-diversity
	// regimes for the discover-objective op.
	DiversityLow  = 8
	DiversityHigh = 64
)

// ───────────────────────────── I/O Framing ─────────────────────────────────

const (
	// RingCapacity is the input ring size in bytes (power of 2).
	RingCapacity = 16384

	// FrameSize is the most input consumed per tick.
	FrameSize = 4096

	// ByteNodeCount is the fixed identity layer: one node per byte value.
	ByteNodeCount = 256

	// OutputFloor is the activation an output node needs to emit its byte.
	OutputFloor = 0.5
)

// ───────────────────────────── Main Loop ───────────────────────────────────

const (
	// TickSleepMs is the idle sleep between polls when no input is pending.
	TickSleepMs = 10

	// IdleLimit terminates the loop after this many consecutive empty
	// reads once stdin has reached EOF.
	IdleLimit = 10

	// SyncInterval flushes the mapping to disk every N ticks.
	SyncInterval = 100

	// CompactInterval rewrites the edge array without tombstones and
	// rebuilds the index every N ticks.
	CompactInterval = 256
)
