// control.go — Global control flags and activity management for the tick loop
// ============================================================================
// SYSTEM CONTROL ORCHESTRATION
// ============================================================================
//
// Control package provides lightweight global signaling infrastructure for
// coordinating the engine's hot/idle state and graceful shutdown with
// zero-allocation flag access.
//
// Architecture overview:
//   • Global hot/stop flags polled by the tick loop
//   • Nanosecond-precision activity tracking with automatic cooldown
//   • Input layer signals activity via SignalActivity()
//   • Signal handler requests termination via Shutdown()
//
// Threading model:
//   • The tick loop is single-threaded; only the signal handler goroutine
//     writes the stop flag concurrently. Flag words are single words and
//     the loop tolerates a one-iteration delay in observing them.

package control

import "time"

// ============================================================================
// GLOBAL STATE MANAGEMENT
// ============================================================================

var (
	// Global coordination flags - polled each tick
	hot  uint32 // Activity indicator: 1 = input bytes pending recently, 0 = idle
	stop uint32 // Shutdown signal: 1 = initiate graceful shutdown, 0 = running

	// Activity timing for automatic cooldown management
	lastHot    int64                    // Nanosecond timestamp of last input activity
	cooldownNs = int64(1 * time.Second) // Cooldown duration: 1 second idle period
)

// ============================================================================
// ACTIVITY SIGNALING (INPUT INTEGRATION)
// ============================================================================

// SignalActivity marks the system as active and records precise timing
// for automatic cooldown management. Called whenever the input poll
// drains bytes into the ring buffer.
//
//go:norace
//go:nocheckptr
//go:nosplit
//go:inline
//go:registerparams
func SignalActivity() {
	hot = 1
	lastHot = time.Now().UnixNano()
}

// ============================================================================
// COOLDOWN MANAGEMENT (AUTOMATIC EFFICIENCY)
// ============================================================================

// PollCooldown implements automatic hot-flag clearance based on elapsed
// time since last activity. Called once per tick so the loop can extend
// its idle sleep during quiet periods.
//
//go:norace
//go:nocheckptr
//go:nosplit
//go:inline
//go:registerparams
func PollCooldown() {
	if hot == 1 && time.Now().UnixNano()-lastHot > cooldownNs {
		hot = 0
	}
}

// ============================================================================
// SYSTEM SHUTDOWN (GRACEFUL TERMINATION)
// ============================================================================

// Shutdown initiates graceful termination by setting the global stop flag.
// The tick loop observes it at the top of the next iteration, finishes the
// tick in flight, syncs the region, and exits.
//
//go:norace
//go:nocheckptr
//go:nosplit
//go:inline
//go:registerparams
func Shutdown() {
	stop = 1
}

// ============================================================================
// FLAG ACCESS (LOOP INTEGRATION)
// ============================================================================

// Flags returns direct pointers to the global coordination flags for
// zero-allocation polling by the tick loop.
//
// Return values: (*stop_flag, *hot_flag)
// Memory safety: Returned pointers remain valid for application lifetime
//
//go:norace
//go:nocheckptr
//go:nosplit
//go:inline
//go:registerparams
func Flags() (*uint32, *uint32) {
	return &stop, &hot
}
