// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⚡ PERSISTENT REGION MANAGER
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Persistent Self-Modifying Graph Engine
// Component: Memory-Mapped Store Lifecycle & Structural Mutation
//
// Description:
//   Owns the single backing file: header | node array | edge array | module array.
//   Creates or restores the region, grows each array by doubling with in-file
//   relocation, and provides the structural primitives (node/edge/module creation,
//   edge tombstoning, compaction) the engine mutates the graph through.
//
// Design Principles:
//   - Arena plus integer indices: records reference each other by array position,
//     never by pointer, so relocation during growth cannot dangle references
//   - Every cached view into the region is re-derived after any grow; external
//     callers only ever reach records through accessors that read current views
//   - Single writer: one process owns the region for its lifetime; read-only
//     inspectors use the sqlite snapshot instead of racing the live mapping
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package graph

import (
	"errors"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"main/constants"
	"main/debug"
	"main/edgeidx"
	"main/utils"
)

// Compile-time layout guards: the struct sizes must match the on-disk
// record sizes exactly, both directions.
var (
	_ [constants.HeaderSize - unsafe.Sizeof(Header{})]byte
	_ [unsafe.Sizeof(Header{}) - constants.HeaderSize]byte
	_ [constants.NodeSize - unsafe.Sizeof(Node{})]byte
	_ [unsafe.Sizeof(Node{}) - constants.NodeSize]byte
	_ [constants.EdgeSize - unsafe.Sizeof(Edge{})]byte
	_ [unsafe.Sizeof(Edge{}) - constants.EdgeSize]byte
	_ [constants.ModuleSize - unsafe.Sizeof(Module{})]byte
	_ [unsafe.Sizeof(Module{}) - constants.ModuleSize]byte
)

var (
	// ErrCorruptStore is returned by strict opens when the backing file
	// exists but does not carry a valid header.
	ErrCorruptStore = errors.New("graph: backing file magic mismatch")

	// ErrSelfLoop rejects src == dst edges. Beyond being structurally
	// useless, edge (0,0) would collide with the index's empty sentinel.
	ErrSelfLoop = errors.New("graph: self-loop edges are not allowed")

	// ErrBadNode rejects edge endpoints outside the live node range.
	ErrBadNode = errors.New("graph: edge endpoint out of live node range")
)

// Options tunes Open. Zero capacities fall back to the compiled defaults.
type Options struct {
	Strict    bool // error on magic mismatch instead of reinitializing
	NodeCap   uint32
	EdgeCap   uint32
	ModuleCap uint32
}

// Store is the live handle on the mapped region. All views are derived
// from data and re-derived after every grow.
type Store struct {
	f       *os.File
	data    []byte
	hdr     *Header
	nodes   []Node
	edges   []Edge
	modules []Module
	idx     *edgeidx.Index
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// LAYOUT ARITHMETIC
// ═══════════════════════════════════════════════════════════════════════════════════════════════

//go:nosplit
//go:inline
func edgesOff(nodeCap uint32) int {
	return constants.HeaderSize + int(nodeCap)*constants.NodeSize
}

//go:nosplit
//go:inline
func modulesOff(nodeCap, edgeCap uint32) int {
	return edgesOff(nodeCap) + int(edgeCap)*constants.EdgeSize
}

//go:nosplit
//go:inline
func regionSize(nodeCap, edgeCap, moduleCap uint32) int64 {
	return int64(modulesOff(nodeCap, edgeCap)) + int64(moduleCap)*constants.ModuleSize
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Open creates or restores the backing file at path. A valid header
// restores the full graph (counts, ids, tick) and rebuilds the edge index
// from live edges. An invalid header errors under Strict and otherwise
// reinitializes the file from scratch.
func Open(path string, opts Options) (*Store, error) {
	if opts.NodeCap == 0 {
		opts.NodeCap = constants.InitialNodeCap
	}
	if opts.EdgeCap == 0 {
		opts.EdgeCap = constants.InitialEdgeCap
	}
	if opts.ModuleCap == 0 {
		opts.ModuleCap = constants.InitialModuleCap
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	s := &Store{f: f}
	if st.Size() >= constants.HeaderSize {
		// Peek into a Header value rather than a byte array so the field
		// reads below are aligned regardless of where the stack puts it.
		var hdr Header
		buf := unsafe.Slice((*byte)(unsafe.Pointer(&hdr)), unsafe.Sizeof(hdr))
		if _, err := f.ReadAt(buf, 0); err != nil {
			f.Close()
			return nil, err
		}
		if hdr.Magic == constants.GraphMagic &&
			st.Size() >= regionSize(hdr.NodeCap, hdr.EdgeCap, hdr.ModuleCap) {
			if err := s.mapRegion(regionSize(hdr.NodeCap, hdr.EdgeCap, hdr.ModuleCap)); err != nil {
				f.Close()
				return nil, err
			}
			s.refreshViews()
			s.rebuildIndex()
			debug.DropMessage("GRAPH", "restored "+path+
				" nodes="+utils.Itoa(int(s.hdr.NodeCount))+
				" edges="+utils.Itoa(int(s.hdr.EdgeCount))+
				" modules="+utils.Itoa(int(s.hdr.ModuleCount))+
				" tick="+utils.Itoa(int(s.hdr.Tick)))
			return s, nil
		}
	}
	if st.Size() > 0 {
		if opts.Strict {
			f.Close()
			return nil, ErrCorruptStore
		}
		debug.DropMessage("GRAPH", "magic mismatch, reinitializing "+path)
	}
	if err := s.initFresh(opts); err != nil {
		f.Close()
		return nil, err
	}
	debug.DropMessage("GRAPH", "created "+path)
	return s, nil
}

func (s *Store) initFresh(opts Options) error {
	// Two-step truncate drops stale bytes from a corrupt predecessor.
	if err := s.f.Truncate(0); err != nil {
		return err
	}
	size := regionSize(opts.NodeCap, opts.EdgeCap, opts.ModuleCap)
	if err := s.f.Truncate(size); err != nil {
		return err
	}
	if err := s.mapRegion(size); err != nil {
		return err
	}
	s.hdr = (*Header)(unsafe.Pointer(&s.data[0]))
	s.hdr.Magic = constants.GraphMagic
	s.hdr.NodeCap = opts.NodeCap
	s.hdr.EdgeCap = opts.EdgeCap
	s.hdr.ModuleCap = opts.ModuleCap
	s.hdr.NextNodeID = 1
	s.refreshViews()
	s.idx = edgeidx.New(int(opts.EdgeCap))
	return s.Sync()
}

func (s *Store) mapRegion(size int64) error {
	data, err := unix.Mmap(int(s.f.Fd()), 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return err
	}
	s.data = data
	return nil
}

// refreshViews re-derives every typed slice from the current mapping.
// Must run after any operation that remaps or changes capacities.
func (s *Store) refreshViews() {
	s.hdr = (*Header)(unsafe.Pointer(&s.data[0]))
	h := s.hdr
	s.nodes = unsafe.Slice((*Node)(unsafe.Pointer(&s.data[constants.HeaderSize])), h.NodeCap)
	s.edges = unsafe.Slice((*Edge)(unsafe.Pointer(&s.data[edgesOff(h.NodeCap)])), h.EdgeCap)
	s.modules = unsafe.Slice((*Module)(unsafe.Pointer(&s.data[modulesOff(h.NodeCap, h.EdgeCap)])), h.ModuleCap)
}

// Sync schedules a write-back of the whole region. The header tick is
// whatever the engine last stored; there is no separate WAL.
func (s *Store) Sync() error {
	return unix.Msync(s.data, unix.MS_ASYNC)
}

// Close synchronously flushes, unmaps, and closes the backing file.
func (s *Store) Close() error {
	if s.data == nil {
		return nil
	}
	syncErr := unix.Msync(s.data, unix.MS_SYNC)
	unmapErr := unix.Munmap(s.data)
	s.data = nil
	closeErr := s.f.Close()
	if syncErr != nil {
		return syncErr
	}
	if unmapErr != nil {
		return unmapErr
	}
	return closeErr
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// GROWTH
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Grow extends the node and/or edge arrays in place. The file is extended
// first, then the higher regions (modules, then edges) are relocated
// upward inside the new mapping, then the vacated gaps are zeroed.
// Indices are stable across relocation; only backing addresses move.
func (s *Store) Grow(newNodeCap, newEdgeCap uint32) error {
	h := *s.hdr
	if newNodeCap < h.NodeCap {
		newNodeCap = h.NodeCap
	}
	if newEdgeCap < h.EdgeCap {
		newEdgeCap = h.EdgeCap
	}
	if newNodeCap == h.NodeCap && newEdgeCap == h.EdgeCap {
		return nil
	}

	newSize := regionSize(newNodeCap, newEdgeCap, h.ModuleCap)
	if err := s.f.Truncate(newSize); err != nil {
		return err
	}
	data, err := unix.Mmap(int(s.f.Fd()), 0, int(newSize),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return err
	}
	_ = unix.Munmap(s.data)
	s.data = data

	oldE, newE := edgesOff(h.NodeCap), edgesOff(newNodeCap)
	oldM, newM := modulesOff(h.NodeCap, h.EdgeCap), modulesOff(newNodeCap, newEdgeCap)
	modBytes := int(h.ModuleCap) * constants.ModuleSize
	edgeBytes := int(h.EdgeCap) * constants.EdgeSize

	// Highest region first so sources are never clobbered before they move.
	copy(s.data[newM:newM+modBytes], s.data[oldM:oldM+modBytes])
	copy(s.data[newE:newE+edgeBytes], s.data[oldE:oldE+edgeBytes])

	// Vacated gaps become the fresh tails of the node and edge arrays.
	zeroRange(s.data[oldE:newE])
	zeroRange(s.data[newE+edgeBytes : newM])

	hdr := (*Header)(unsafe.Pointer(&s.data[0]))
	hdr.NodeCap = newNodeCap
	hdr.EdgeCap = newEdgeCap
	s.refreshViews()

	debug.DropMessage("GRAPH", "grew region to nodeCap="+utils.Itoa(int(newNodeCap))+
		" edgeCap="+utils.Itoa(int(newEdgeCap)))
	return nil
}

// GrowModules doubles the module table. The module array is the highest
// region, so growth is a pure extension with no relocation.
func (s *Store) GrowModules() error {
	h := *s.hdr
	newCap := h.ModuleCap * 2
	newSize := regionSize(h.NodeCap, h.EdgeCap, newCap)
	if err := s.f.Truncate(newSize); err != nil {
		return err
	}
	data, err := unix.Mmap(int(s.f.Fd()), 0, int(newSize),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return err
	}
	_ = unix.Munmap(s.data)
	s.data = data
	hdr := (*Header)(unsafe.Pointer(&s.data[0]))
	hdr.ModuleCap = newCap
	s.refreshViews()
	debug.DropMessage("GRAPH", "grew module table to cap="+utils.Itoa(int(newCap)))
	return nil
}

//go:nosplit
func zeroRange(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// STRUCTURAL PRIMITIVES
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// CreateNode appends a node, growing the region when the array is full.
// Returns the node's index.
func (s *Store) CreateNode(kind NodeKind, theta float32) (uint32, error) {
	if s.hdr.NodeCount == s.hdr.NodeCap {
		if err := s.Grow(s.hdr.NodeCap*2, s.hdr.EdgeCap); err != nil {
			return 0, err
		}
	}
	i := s.hdr.NodeCount
	s.nodes[i] = Node{
		ID:       PackID(s.hdr.NextNodeID, kind),
		Theta:    theta,
		LastTick: uint32(s.hdr.Tick),
	}
	s.hdr.NextNodeID++
	s.hdr.NodeCount++
	return i, nil
}

// AddEdge creates src→dst with the given weights, or returns the existing
// live position untouched. The bool reports whether a new edge was made.
func (s *Store) AddEdge(src, dst uint32, wFast, wSlow float32) (uint32, bool, error) {
	if src == dst {
		return 0, false, ErrSelfLoop
	}
	if src >= s.hdr.NodeCount || dst >= s.hdr.NodeCount {
		return 0, false, ErrBadNode
	}
	if pos, ok := s.idx.Find(src, dst); ok && s.edges[pos].Live() {
		return pos, false, nil
	}
	if s.hdr.EdgeCount == s.hdr.EdgeCap {
		if err := s.Grow(s.hdr.NodeCap, s.hdr.EdgeCap*2); err != nil {
			return 0, false, err
		}
	}
	pos := s.hdr.EdgeCount
	s.edges[pos] = Edge{
		Src:   src,
		Dst:   dst,
		WFast: ClampWeight(wFast),
		WSlow: ClampWeight(wSlow),
	}
	s.hdr.EdgeCount++
	s.idx.Insert(src, dst, pos)
	s.nodes[src].incOut()
	s.nodes[dst].incIn()
	return pos, true, nil
}

// DeleteEdge tombstones src→dst. The slot stays in the array until the
// next compaction; degrees and the index update immediately.
func (s *Store) DeleteEdge(src, dst uint32) bool {
	pos, ok := s.idx.Find(src, dst)
	if !ok {
		return false
	}
	e := &s.edges[pos]
	if !e.Live() {
		s.idx.Remove(src, dst)
		return false
	}
	e.WFast = 0
	e.WSlow = 0
	s.idx.Remove(src, dst)
	if e.Src < s.hdr.NodeCount {
		s.nodes[e.Src].decOut()
	}
	if e.Dst < s.hdr.NodeCount {
		s.nodes[e.Dst].decIn()
	}
	return true
}

// FindEdge returns the live edge record for src→dst.
func (s *Store) FindEdge(src, dst uint32) (*Edge, bool) {
	pos, ok := s.idx.Find(src, dst)
	if !ok {
		return nil, false
	}
	e := &s.edges[pos]
	if !e.Live() {
		return nil, false
	}
	return e, true
}

// Compact rewrites the edge array without tombstones, preserving relative
// order, and rebuilds the index. Returns the number of slots reclaimed.
func (s *Store) Compact() int {
	w := uint32(0)
	for r := uint32(0); r < s.hdr.EdgeCount; r++ {
		if !s.edges[r].Live() {
			continue
		}
		if w != r {
			s.edges[w] = s.edges[r]
		}
		w++
	}
	removed := int(s.hdr.EdgeCount - w)
	for i := w; i < s.hdr.EdgeCount; i++ {
		s.edges[i] = Edge{}
	}
	s.hdr.EdgeCount = w
	s.rebuildIndex()
	return removed
}

// rebuildIndex re-derives the lookup table from live edge slots. The edge
// array is the source of truth; the index is always disposable.
func (s *Store) rebuildIndex() {
	s.idx = edgeidx.New(int(s.hdr.EdgeCap))
	for i := uint32(0); i < s.hdr.EdgeCount; i++ {
		e := &s.edges[i]
		if e.Live() {
			s.idx.Insert(e.Src, e.Dst, i)
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// MODULES
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// CreateModule appends a module record, doubling the table when occupancy
// reaches the growth fraction. Member edges into metaNode are the caller's
// responsibility; the record itself stays fixed-size.
func (s *Store) CreateModule(metaNode uint32, sig uint64, name string, memberCount uint32) (uint32, error) {
	if s.hdr.ModuleCount*100 >= s.hdr.ModuleCap*constants.ModuleGrowPercent {
		if err := s.GrowModules(); err != nil {
			return 0, err
		}
	}
	i := s.hdr.ModuleCount
	m := &s.modules[i]
	*m = Module{
		ID:          i + 1,
		MetaNode:    metaNode,
		Created:     uint32(s.hdr.Tick),
		LastUsed:    uint32(s.hdr.Tick),
		MemberCount: memberCount,
		Sig:         sig,
	}
	m.SetName(name)
	s.hdr.ModuleCount++
	return i, nil
}

// FindModuleBySig scans for an existing module with the same member-set
// signature. Module counts stay small enough that a linear scan is fine.
func (s *Store) FindModuleBySig(sig uint64) (uint32, bool) {
	for i := uint32(0); i < s.hdr.ModuleCount; i++ {
		if s.modules[i].Sig == sig {
			return i, true
		}
	}
	return 0, false
}

// ModuleMembers recovers a module's member set as the sources of live
// edges into its meta-node. Used after restore and by inspection paths.
func (s *Store) ModuleMembers(metaNode uint32, buf []uint32) []uint32 {
	buf = buf[:0]
	for i := uint32(0); i < s.hdr.EdgeCount; i++ {
		e := &s.edges[i]
		if e.Live() && e.Dst == metaNode {
			buf = append(buf, e.Src)
		}
	}
	return buf
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// VIEW ACCESSORS
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// Accessors always read the current views, so callers that hold only the
// *Store stay correct across growth. Returned slices must not be retained
// across any call that can grow the region.

// Header exposes the live header record.
//
//go:nosplit
//go:inline
func (s *Store) Header() *Header { return s.hdr }

// Nodes returns the live node prefix.
//
//go:nosplit
//go:inline
func (s *Store) Nodes() []Node { return s.nodes[:s.hdr.NodeCount] }

// Node returns the record at index i, or nil when out of range.
//
//go:nosplit
//go:inline
func (s *Store) Node(i uint32) *Node {
	if i >= s.hdr.NodeCount {
		return nil
	}
	return &s.nodes[i]
}

// Edges returns the used edge slot prefix, tombstones included.
//
//go:nosplit
//go:inline
func (s *Store) Edges() []Edge { return s.edges[:s.hdr.EdgeCount] }

// EdgeAt returns the slot at position pos, or nil when out of range.
//
//go:nosplit
//go:inline
func (s *Store) EdgeAt(pos uint32) *Edge {
	if pos >= s.hdr.EdgeCount {
		return nil
	}
	return &s.edges[pos]
}

// Modules returns the live module prefix.
//
//go:nosplit
//go:inline
func (s *Store) Modules() []Module { return s.modules[:s.hdr.ModuleCount] }

// IndexLen reports live index entries (diagnostics only).
//
//go:nosplit
//go:inline
func (s *Store) IndexLen() int { return s.idx.Len() }
