// ════════════════════════════════════════════════════════════════════════════════════════════════
// Persistent Self-Modifying Graph Engine - Main Entry Point
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Persistent Self-Modifying Graph Engine
// Component: Main Entry Point & System Orchestration
//
// Description:
//   System orchestration with phased initialization and clean separation of concerns.
//   Store Open/Bootstrap → Memory Optimization → Continuous Tick Loop
//
// Architecture:
//   - Phase 0: Configuration, region mapping, kernel bootstrap
//   - Phase 1: Memory cleanup before entering the hot loop
//   - Phase 2: Tick loop: drain stdin → frame → tick → maintenance
//   - Phase 3: Shutdown: final sync, snapshot export, unmap
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package main

import (
	"bytes"
	"os"
	"os/signal"
	"runtime"
	rtdebug "runtime/debug"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"main/config"
	"main/constants"
	"main/control"
	"main/debug"
	"main/engine"
	"main/graph"
	"main/ring"
	"main/snapshot"
	"main/utils"
)

// main orchestrates the complete engine lifecycle in distinct phases.
func main() {
	// PHASE 0: Configuration and region initialization
	cfgPath := ""
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		debug.DropError("CONFIG", err)
		os.Exit(1)
	}

	st, err := graph.Open(cfg.GraphPath, graph.Options{Strict: cfg.Strict})
	if err != nil {
		debug.DropError("STORE", err)
		os.Exit(1)
	}

	eng := engine.New(st, cfg.LearningRate, os.Stdout)
	if err := eng.Bootstrap(); err != nil {
		debug.DropError("BOOT", err)
		st.Close()
		os.Exit(1)
	}

	h := st.Header()
	debug.DropMessage("READY", utils.Itoa(int(h.NodeCount))+" nodes, "+
		utils.Itoa(int(h.EdgeCount))+" edge slots, tick "+utils.Itoa(int(h.Tick)))

	setupSignalHandling()

	// PHASE 1: Memory optimization before the hot loop. The region is
	// mapped and the kernel is wired; everything transient from startup
	// can go now.
	runtime.GC()
	rtdebug.FreeOSMemory()
	runtime.LockOSThread()

	// PHASE 2: Continuous tick loop
	runLoop(cfg, st, eng)

	// PHASE 3: Shutdown
	debug.DropMessage("DOWN", "tick "+utils.Itoa(int(st.Header().Tick)))
	if cfg.SnapshotPath != "" {
		if err := snapshot.Export(st, cfg.SnapshotPath); err != nil {
			debug.DropError("SNAPSHOT", err)
		} else {
			debug.DropMessage("SNAPSHOT", cfg.SnapshotPath)
		}
	}
	if err := st.Close(); err != nil {
		debug.DropError("CLOSE", err)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// TICK LOOP
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// runLoop drives the engine until a shutdown signal or sustained input
// silence after end-of-stream. Input is drained non-blocking into the
// ring, console lines are intercepted ahead of framing, and one bounded
// frame is sensed per tick.
func runLoop(cfg config.Config, st *graph.Store, eng *engine.Engine) {
	stopFlag, hotFlag := control.Flags()

	if err := unix.SetNonblock(int(os.Stdin.Fd()), true); err != nil {
		debug.DropError("STDIN", err)
	}

	in := ring.New(constants.RingCapacity)
	readBuf := make([]byte, constants.FrameSize)
	frameBuf := make([]byte, constants.FrameSize)
	pending := make([]byte, 0, constants.FrameSize)

	sleepHot := time.Duration(cfg.TickSleepMs) * time.Millisecond
	sleepIdle := 10 * sleepHot

	eof := false
	idleTicks := 0

	for {
		if *stopFlag == 1 {
			debug.DropMessage("LOOP", "stop flag observed")
			return
		}

		// Drain whatever stdin has right now.
		if !eof {
			pending, eof = drainInput(in, eng, readBuf, pending)
		}

		// One frame per tick. Consume only after sensing so a failed
		// tick never loses buffered input.
		n := in.Frame(frameBuf, constants.FrameSize)
		eng.Tick(frameBuf[:n])
		in.Consume(n)

		if n > 0 {
			idleTicks = 0
		} else {
			idleTicks++
			if eof && len(pending) == 0 && idleTicks >= cfg.IdleLimit {
				debug.DropMessage("LOOP", "input exhausted")
				return
			}
		}

		tick := st.Header().Tick
		if cfg.SyncInterval > 0 && tick%uint64(cfg.SyncInterval) == 0 {
			if err := st.Sync(); err != nil {
				debug.DropError("SYNC", err)
			}
		}
		if cfg.CompactInterval > 0 && tick%uint64(cfg.CompactInterval) == 0 {
			if removed := st.Compact(); removed > 0 {
				debug.DropMessage("COMPACT", utils.Itoa(removed)+" tombstones reclaimed")
			}
		}

		control.PollCooldown()
		if *hotFlag == 1 {
			time.Sleep(sleepHot)
		} else {
			time.Sleep(sleepIdle)
		}
	}
}

// drainInput moves available stdin bytes toward the ring. Complete lines
// are offered to the console first; everything else is stream data. The
// returned pending slice holds the trailing partial line, and the bool
// reports end-of-stream.
func drainInput(in *ring.Buffer, eng *engine.Engine, readBuf, pending []byte) ([]byte, bool) {
	for in.Free() > len(pending) {
		n, err := unix.Read(int(os.Stdin.Fd()), readBuf)
		if err != nil {
			if err == unix.EAGAIN {
				break
			}
			debug.DropError("STDIN", err)
			return flushPending(in, pending), true
		}
		if n == 0 {
			return flushPending(in, pending), true
		}
		control.SignalActivity()
		pending = append(pending, readBuf[:n]...)

		for {
			nl := bytes.IndexByte(pending, '\n')
			if nl < 0 {
				break
			}
			if !eng.HandleCommand(pending[:nl]) {
				writeStream(in, pending[:nl+1])
			}
			pending = pending[:copy(pending, pending[nl+1:])]
		}

		// A line longer than a frame is never a console command; stop
		// holding it back.
		if len(pending) >= constants.FrameSize {
			writeStream(in, pending)
			pending = pending[:0]
		}
	}
	return pending, false
}

// flushPending pushes a trailing unterminated line into the ring at
// end-of-stream so the final bytes are still sensed.
func flushPending(in *ring.Buffer, pending []byte) []byte {
	if len(pending) > 0 {
		writeStream(in, pending)
	}
	return pending[:0]
}

func writeStream(in *ring.Buffer, p []byte) {
	if accepted := in.Write(p); accepted < len(p) {
		debug.DropMessage("OVERFLOW", utils.Itoa(len(p)-accepted)+" bytes dropped")
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// SIGNAL HANDLING
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// setupSignalHandling configures graceful shutdown coordination. The tick
// loop observes the stop flag at the top of its next iteration, finishes
// the tick in flight, and unwinds through the normal shutdown path.
func setupSignalHandling() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		debug.DropMessage("SIGNAL", "interrupt received, shutting down")
		control.Shutdown()
	}()
}
