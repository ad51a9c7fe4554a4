// console.go — operator commands intercepted ahead of the byte stream.
//
// Input lines starting with "show " are consumed as inspection commands
// instead of being sensed. Replies are single-line JSON documents on the
// output writer, so a human or a script can watch the graph evolve
// without stopping the engine.

package engine

import (
	"bytes"

	"github.com/sugawarayuuta/sonnet"

	"main/debug"
	"main/utils"
)

type graphStats struct {
	Tick          uint64  `json:"tick"`
	Nodes         uint32  `json:"nodes"`
	NodeCap       uint32  `json:"node_cap"`
	EdgeSlots     uint32  `json:"edge_slots"`
	LiveEdges     uint32  `json:"live_edges"`
	EdgeCap       uint32  `json:"edge_cap"`
	Modules       uint32  `json:"modules"`
	ModuleCap     uint32  `json:"module_cap"`
	LearningRate  float32 `json:"learning_rate"`
	SuggestedRate float32 `json:"suggested_rate"`
	Reward        float32 `json:"reward"`
	PerfScore     float32 `json:"perf_score"`
	Regime        uint8   `json:"regime"`
}

type moduleStats struct {
	ID       uint32   `json:"id"`
	Name     string   `json:"name"`
	MetaNode uint32   `json:"meta_node"`
	Members  []uint32 `json:"members"`
	Created  uint32   `json:"created"`
	LastUsed uint32   `json:"last_used"`
}

type edgeStats struct {
	Src   uint32  `json:"src"`
	Dst   uint32  `json:"dst"`
	WFast float32 `json:"w_fast"`
	WSlow float32 `json:"w_slow"`
}

type circuitStats struct {
	Node      uint32      `json:"node"`
	Kind      uint8       `json:"kind"`
	Theta     float32     `json:"theta"`
	A         float32     `json:"a"`
	Mem       float32     `json:"mem"`
	InDeg     int         `json:"in_deg"`
	OutDeg    int         `json:"out_deg"`
	Protected bool        `json:"protected"`
	Output    bool        `json:"output"`
	Incoming  []edgeStats `json:"incoming"`
	Outgoing  []edgeStats `json:"outgoing"`
}

// HandleCommand consumes one console line. Returns false when the line is
// not a command and should fall through to sensing.
func (e *Engine) HandleCommand(line []byte) bool {
	line = bytes.TrimSpace(line)
	switch {
	case bytes.Equal(line, []byte("show graph")):
		e.reply(e.collectGraphStats())
	case bytes.Equal(line, []byte("show modules")):
		e.reply(e.collectModuleStats())
	case bytes.HasPrefix(line, []byte("show circuit ")):
		id, ok := utils.ParseU32(line[len("show circuit "):])
		if !ok {
			return true // consumed, malformed argument
		}
		stats, ok := e.collectCircuitStats(id)
		if ok {
			e.reply(stats)
		}
	default:
		return false
	}
	return true
}

func (e *Engine) reply(v any) {
	data, err := sonnet.Marshal(v)
	if err != nil {
		debug.DropError("CONSOLE", err)
		return
	}
	data = append(data, '\n')
	if _, err := e.out.Write(data); err != nil {
		debug.DropError("CONSOLE", err)
	}
}

func (e *Engine) collectGraphStats() graphStats {
	h := e.st.Header()
	live := uint32(0)
	edges := e.st.Edges()
	for i := range edges {
		if edges[i].Live() {
			live++
		}
	}
	return graphStats{
		Tick:          h.Tick,
		Nodes:         h.NodeCount,
		NodeCap:       h.NodeCap,
		EdgeSlots:     h.EdgeCount,
		LiveEdges:     live,
		EdgeCap:       h.EdgeCap,
		Modules:       h.ModuleCount,
		ModuleCap:     h.ModuleCap,
		LearningRate:  e.learningRate,
		SuggestedRate: e.suggestedRate,
		Reward:        e.reward,
		PerfScore:     e.perfScore,
		Regime:        e.regime,
	}
}

func (e *Engine) collectModuleStats() []moduleStats {
	mods := e.st.Modules()
	out := make([]moduleStats, 0, len(mods))
	for i := range mods {
		m := &mods[i]
		out = append(out, moduleStats{
			ID:       m.ID,
			Name:     m.NameString(),
			MetaNode: m.MetaNode,
			Members:  e.st.ModuleMembers(m.MetaNode, nil),
			Created:  m.Created,
			LastUsed: m.LastUsed,
		})
	}
	return out
}

func (e *Engine) collectCircuitStats(id uint32) (circuitStats, bool) {
	n := e.st.Node(id)
	if n == nil {
		return circuitStats{}, false
	}
	cs := circuitStats{
		Node:      id,
		Kind:      uint8(n.Kind()),
		Theta:     n.Theta,
		A:         n.A,
		Mem:       n.Mem,
		InDeg:     n.InDeg(),
		OutDeg:    n.OutDeg(),
		Protected: n.IsProtected(),
		Output:    n.IsOutput(),
	}
	// Bounded neighbor listing keeps replies single-line friendly.
	const maxListed = 32
	edges := e.st.Edges()
	for i := range edges {
		ed := &edges[i]
		if !ed.Live() {
			continue
		}
		es := edgeStats{Src: ed.Src, Dst: ed.Dst, WFast: ed.WFast, WSlow: ed.WSlow}
		if ed.Dst == id && len(cs.Incoming) < maxListed {
			cs.Incoming = append(cs.Incoming, es)
		}
		if ed.Src == id && len(cs.Outgoing) < maxListed {
			cs.Outgoing = append(cs.Outgoing, es)
		}
	}
	return cs, true
}
