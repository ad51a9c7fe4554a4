package engine

import (
	"bytes"
	"testing"

	"github.com/sugawarayuuta/sonnet"

	"main/constants"
)

func TestConsoleShowGraph(t *testing.T) {
	e := newTestEngine(t)
	var buf bytes.Buffer
	e.out = &buf

	if !e.HandleCommand([]byte("show graph\n")) {
		t.Fatal("command not consumed")
	}
	var gs graphStats
	if err := sonnet.Unmarshal(bytes.TrimSpace(buf.Bytes()), &gs); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if gs.Nodes != bootstrapTotal {
		t.Fatalf("nodes = %d", gs.Nodes)
	}
	if gs.LiveEdges != constants.ByteNodeCount*metaCircuitCount {
		t.Fatalf("live edges = %d", gs.LiveEdges)
	}
	if gs.LearningRate != constants.DefaultLearningRate {
		t.Fatalf("learning rate = %v", gs.LearningRate)
	}
}

func TestConsoleShowModules(t *testing.T) {
	e := newTestEngine(t)
	a, b := e.byteNodes['a'], e.byteNodes['b']
	e.st.Node(a).A = 0.9
	e.st.Node(b).A = 0.9
	e.opGroupModule()

	var buf bytes.Buffer
	e.out = &buf
	if !e.HandleCommand([]byte("show modules")) {
		t.Fatal("command not consumed")
	}
	var mods []moduleStats
	if err := sonnet.Unmarshal(bytes.TrimSpace(buf.Bytes()), &mods); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(mods) != 1 {
		t.Fatalf("modules = %d", len(mods))
	}
	if len(mods[0].Members) != 2 || mods[0].Members[0] != a {
		t.Fatalf("members = %v", mods[0].Members)
	}
	if mods[0].Name != "mod-0" {
		t.Fatalf("name = %q", mods[0].Name)
	}
}

func TestConsoleShowCircuit(t *testing.T) {
	e := newTestEngine(t)
	var buf bytes.Buffer
	e.out = &buf

	id := metaCircuitBase + uint32(OpThresholdCreate)
	if !e.HandleCommand([]byte("show circuit 2")) {
		t.Fatal("command not consumed")
	}
	var cs circuitStats
	if err := sonnet.Unmarshal(bytes.TrimSpace(buf.Bytes()), &cs); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if cs.Node != id {
		t.Fatalf("node = %d", cs.Node)
	}
	if cs.Theta != constants.MetaThetaBase+float32(OpThresholdCreate) {
		t.Fatalf("theta = %v", cs.Theta)
	}
	if !cs.Protected {
		t.Fatal("kernel node reported unprotected")
	}
	if cs.InDeg != constants.ByteNodeCount {
		t.Fatalf("in degree = %d", cs.InDeg)
	}
	if len(cs.Incoming) == 0 {
		t.Fatal("incoming edges missing from reply")
	}
}

func TestConsoleMalformedAndUnknown(t *testing.T) {
	e := newTestEngine(t)
	var buf bytes.Buffer
	e.out = &buf

	if !e.HandleCommand([]byte("show circuit banana")) {
		t.Fatal("malformed argument must still be consumed")
	}
	if buf.Len() != 0 {
		t.Fatalf("reply to malformed command: %q", buf.Bytes())
	}
	if e.HandleCommand([]byte("hello graph")) {
		t.Fatal("plain input treated as a command")
	}
	if e.HandleCommand([]byte("show circuit 99999")) != true {
		t.Fatal("out-of-range id must be consumed")
	}
	if buf.Len() != 0 {
		t.Fatalf("reply to missing node: %q", buf.Bytes())
	}
}
