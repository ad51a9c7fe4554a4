// io.go — byte framing between the outside world and the graph.
//
// Input bytes map onto a fixed identity layer (one protected node per
// byte value). Sensing drives those nodes to full activation for the
// tick and wires consecutive bytes together, which is where temporal
// structure first enters the graph. Output is the inverse map: every
// output-flagged node past the emission floor contributes its byte once
// per tick, newline-terminated.

package engine

import (
	"main/constants"
	"main/debug"
	"main/graph"
)

// sense drives the byte layer from one input frame and lays temporal
// edges byte→byte across consecutive positions, carrying the last byte
// of the previous frame across the boundary.
func (e *Engine) sense(frame []byte) {
	e.lastFrame = append(e.lastFrame[:0], frame...)
	tick := uint32(e.st.Header().Tick)
	for _, b := range frame {
		idx := e.byteNodes[b]
		e.sensed[b] = true
		n := e.st.Node(idx)
		n.A = 1.0
		n.LastTick = tick
		if e.prevByte >= 0 && e.prevByte != int(b) {
			e.wireOrStrengthen(e.byteNodes[e.prevByte], idx)
		}
		e.prevByte = int(b)
	}
}

// wireOrStrengthen creates a temporal edge at the seed weight or bumps an
// existing one. Self-loops are already excluded by the caller; anything
// else the store rejects is dropped, never fatal.
func (e *Engine) wireOrStrengthen(src, dst uint32) {
	if ed, ok := e.st.FindEdge(src, dst); ok {
		ed.WFast = graph.ClampWeight(ed.WFast + constants.StrengthenDelta)
		return
	}
	if _, _, err := e.st.AddEdge(src, dst, constants.SenseWeight, constants.WeightMin); err != nil {
		debug.DropError("WIRE", err)
	}
}

// emit writes one deduplicated, newline-terminated batch of output bytes
// and retains it for the next compute-reward firing.
func (e *Engine) emit() {
	e.outBuf = e.outBuf[:0]
	nodes := e.st.Nodes()
	for i := range nodes {
		n := &nodes[i]
		if !n.IsOutput() || n.A <= constants.OutputFloor {
			continue
		}
		b := int(n.Mem)
		if b < 0 || b >= constants.ByteNodeCount || e.emitted[b] {
			continue
		}
		// Sensed bytes are pinned high by input; echoing them back adds
		// nothing, so emission covers internally driven nodes only.
		if e.sensed[b] {
			continue
		}
		e.emitted[b] = true
		e.outBuf = append(e.outBuf, byte(b))
	}
	if len(e.outBuf) == 0 {
		return
	}
	e.prevOut = append(e.prevOut[:0], e.outBuf...)
	e.outBuf = append(e.outBuf, '\n')
	if _, err := e.out.Write(e.outBuf); err != nil {
		debug.DropError("EMIT", err)
	}
}
