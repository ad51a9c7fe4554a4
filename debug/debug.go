// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: debug.go — Cold-path stderr logging helper (zero-alloc)
//
// Purpose:
//   - Logs infrequent diagnostic paths without introducing heap pressure.
//   - Used only in cold paths: store open/restore, region growth, module
//     creation, compaction, shutdown.
//
// Notes:
//   - Avoids fmt.Sprintf to minimize footprint and latency.
//   - Uses stackless logging model: no alloc, no interfaces.
//
// ⚠️ Never invoke inside the hop loop — use only on tick-scale or rarer events.
// ─────────────────────────────────────────────────────────────────────────────

package debug

import "main/utils"

// DropError logs error messages with a custom alloc-free print strategy.
// It writes directly to stderr (file descriptor 2), bypassing any heap
// allocations.
//
//go:nosplit
//go:inline
//go:registerparams
func DropError(prefix string, err error) {
	if err != nil {
		msg := prefix + ": " + err.Error() + "\n"
		utils.PrintWarning(msg)
	} else {
		msg := prefix + "\n"
		utils.PrintWarning(msg)
	}
}

// DropMessage logs debug messages with zero-allocation print strategy.
// Used for cold-path diagnostics, lifecycle transitions, and infrequent
// structural events (growth, module spawn, compaction).
//
//go:nosplit
//go:inline
//go:registerparams
func DropMessage(prefix, message string) {
	msg := prefix + ": " + message + "\n"
	utils.PrintWarning(msg)
}
