// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⚡ PACKED RECORD MODEL
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Persistent Self-Modifying Graph Engine
// Component: On-Disk Record Layouts & Field Accessors
//
// Description:
//   Fixed-size little-endian records living verbatim inside the memory-mapped region.
//   Every multi-purpose field (operation kind inside the node id, flag bits inside the
//   degree words) is reachable only through named accessors so call sites never touch
//   raw masks.
//
// Layout (byte offsets are load-bearing; the mapping is reinterpreted in place):
//   Header  64 B   magic, counts, capacities, id counter, tick
//   Node    32 B   id+kind, activation, theta, memory, packed degrees, last tick
//   Edge    16 B   src, dst, fast weight (0 = tombstone), slow weight
//   Module  64 B   ids, timestamps, member count, signature, name
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package graph

import "main/constants"

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// NODE KIND
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// NodeKind selects the execute-phase behavior of a node. It rides in the
// top two bits of the node id.
type NodeKind uint8

const (
	// KindSigmoid computes sigmoid(accumulator - theta) each tick.
	KindSigmoid NodeKind = 0
	// KindMemory records its accumulator when driven past theta and
	// re-emits a decaying view of the stored value otherwise.
	KindMemory NodeKind = 1
)

const (
	kindShift = 62
	idMask    = (uint64(1) << kindShift) - 1
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// HEADER
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Header is the first 64 bytes of the mapping. Counts and capacities are
// the source of truth for every array view derived from the region.
type Header struct {
	Magic       uint32
	_           uint32
	NodeCount   uint32
	NodeCap     uint32
	EdgeCount   uint32
	EdgeCap     uint32
	ModuleCount uint32
	ModuleCap   uint32
	NextNodeID  uint64
	Tick        uint64
	_           [16]byte
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// NODE
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Degree words pack a 14-bit counter with two flag bits. Flags live only
// in the inbound word; the outbound word keeps its top bits clear.
const (
	degMask       = 0x3FFF
	flagOutput    = 1 << 14
	flagProtected = 1 << 15
)

// Node is one 32-byte slot in the node array. Position in the array is the
// node's index; edges reference indices, never ids, so relocation during
// growth cannot dangle them.
type Node struct {
	ID       uint64  // monotonic id in the low 62 bits, NodeKind in the top 2
	A        float32 // current activation
	Theta    float32 // firing threshold; >= MetaThetaBase selects a meta op
	Mem      float32 // persistent-memory store / byte identity for io nodes
	in       uint16  // 14-bit in-degree + output/protected flags
	out      uint16  // 14-bit out-degree
	LastTick uint32  // last tick this node was driven or sensed
	_        [4]byte
}

// PackID combines a raw id with the node kind.
//
//go:nosplit
//go:inline
func PackID(raw uint64, kind NodeKind) uint64 {
	return (raw & idMask) | uint64(kind)<<kindShift
}

// Kind extracts the operation kind from the id word.
//
//go:nosplit
//go:inline
func (n *Node) Kind() NodeKind { return NodeKind(n.ID >> kindShift) }

// RawID strips the kind bits.
//
//go:nosplit
//go:inline
func (n *Node) RawID() uint64 { return n.ID & idMask }

// InDeg reports the live inbound edge count.
//
//go:nosplit
//go:inline
func (n *Node) InDeg() int { return int(n.in & degMask) }

// OutDeg reports the live outbound edge count.
//
//go:nosplit
//go:inline
func (n *Node) OutDeg() int { return int(n.out & degMask) }

//go:nosplit
//go:inline
func (n *Node) incIn() {
	if n.in&degMask != degMask {
		n.in++
	}
}

//go:nosplit
//go:inline
func (n *Node) decIn() {
	if n.in&degMask != 0 {
		n.in--
	}
}

//go:nosplit
//go:inline
func (n *Node) incOut() {
	if n.out&degMask != degMask {
		n.out++
	}
}

//go:nosplit
//go:inline
func (n *Node) decOut() {
	if n.out&degMask != 0 {
		n.out--
	}
}

// IsOutput reports whether the node participates in emission.
//
//go:nosplit
//go:inline
func (n *Node) IsOutput() bool { return n.in&flagOutput != 0 }

// MarkOutput tags the node as an emitter.
//
//go:nosplit
//go:inline
func (n *Node) MarkOutput() { n.in |= flagOutput }

// IsProtected reports whether structural ops must leave the node alone.
//
//go:nosplit
//go:inline
func (n *Node) IsProtected() bool { return n.in&flagProtected != 0 }

// Protect tags the node as structural kernel (byte layer, meta circuit,
// module meta-nodes).
//
//go:nosplit
//go:inline
func (n *Node) Protect() { n.in |= flagProtected }

// IsMeta reports whether the execute phase dispatches this node into the
// meta-operation interpreter.
//
//go:nosplit
//go:inline
func (n *Node) IsMeta() bool { return n.Theta >= constants.MetaThetaBase }

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// EDGE
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Edge is one 16-byte slot in the edge array. A zero fast weight marks the
// slot as a tombstone until the next compaction pass.
type Edge struct {
	Src   uint32
	Dst   uint32
	WFast float32 // transmission channel, [1,255] when live
	WSlow float32 // correlation channel, written only by the correlate op
}

// Live reports whether the slot holds a real edge.
//
//go:nosplit
//go:inline
func (e *Edge) Live() bool { return e.WFast != 0 }

// ClampWeight bounds a weight into the live range. Zero stays reserved
// for tombstones.
//
//go:nosplit
//go:inline
func ClampWeight(w float32) float32 {
	if w < constants.WeightMin {
		return constants.WeightMin
	}
	if w > constants.WeightMax {
		return constants.WeightMax
	}
	return w
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// MODULE
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Module is one 64-byte slot in the module array. Member indices are not
// embedded: they are recoverable as the sources of live edges into
// MetaNode, which keeps the record fixed-size.
type Module struct {
	ID          uint32
	MetaNode    uint32
	Created     uint32 // tick of creation (truncated)
	LastUsed    uint32 // tick of last meta-node firing (truncated)
	MemberCount uint32
	_           [4]byte
	Sig         uint64 // member-set signature for dedup
	Name        [32]byte
}

// SetName stores a zero-padded, truncated label.
func (m *Module) SetName(name string) {
	for i := range m.Name {
		m.Name[i] = 0
	}
	copy(m.Name[:], name)
}

// NameString returns the label without trailing zero bytes.
func (m *Module) NameString() string {
	n := 0
	for n < len(m.Name) && m.Name[n] != 0 {
		n++
	}
	return string(m.Name[:n])
}
