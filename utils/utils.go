package utils

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

///////////////////////////////////////////////////////////////////////////////
// Conversion Utilities — Zero-Alloc Casts
///////////////////////////////////////////////////////////////////////////////

// B2s converts a []byte to a string **without** allocation.
// ⚠️ Caller must ensure the input slice remains valid and unchanged.
// Used for human-readable print paths.
//
//go:nosplit
//go:inline
func B2s(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

///////////////////////////////////////////////////////////////////////////////
// Raw Printing — Direct fd Writes, No fmt
///////////////////////////////////////////////////////////////////////////////

// PrintWarning writes a message straight to stderr (fd 2). Used by the
// debug package for cold-path diagnostics; never buffered.
//
//go:nosplit
func PrintWarning(msg string) {
	if len(msg) == 0 {
		return
	}
	b := unsafe.Slice(unsafe.StringData(msg), len(msg))
	_, _ = unix.Write(2, b)
}

///////////////////////////////////////////////////////////////////////////////
// Number Formatting — Alloc-Light, For Log Lines Only
///////////////////////////////////////////////////////////////////////////////

// Itoa renders a signed integer into a fresh small buffer.
// Only for cold-path log composition; hot paths never format numbers.
//
//go:nosplit
//go:inline
func Itoa(v int) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	neg := v < 0
	u := uint64(v)
	if neg {
		u = uint64(-v)
	}
	i := len(buf)
	for u > 0 {
		i--
		buf[i] = byte('0' + u%10)
		u /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Ftoa renders a float with three fractional digits, enough precision for
// activation and weight diagnostics.
//
//go:nosplit
//go:inline
func Ftoa(f float64) string {
	neg := f < 0
	if neg {
		f = -f
	}
	whole := uint64(f)
	frac := uint64((f - float64(whole)) * 1000.0)
	s := Itoa(int(whole)) + "."
	switch {
	case frac < 10:
		s += "00"
	case frac < 100:
		s += "0"
	}
	s += Itoa(int(frac))
	if neg {
		return "-" + s
	}
	return s
}

///////////////////////////////////////////////////////////////////////////////
// Decimal Scanner — For Console Command Arguments
///////////////////////////////////////////////////////////////////////////////

// ParseU32 parses a decimal uint32 from ASCII, stopping at the first
// non-digit. Returns ok=false when no digit is consumed.
//
//go:nosplit
//go:inline
func ParseU32(b []byte) (uint32, bool) {
	var v uint64
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			break
		}
		v = v*10 + uint64(c-'0')
		if v > 0xFFFFFFFF {
			return 0, false
		}
		n++
	}
	return uint32(v), n > 0
}

///////////////////////////////////////////////////////////////////////////////
// Hash & Mixers — For Edge Index Slot Selection
///////////////////////////////////////////////////////////////////////////////

// Mix64 applies a Murmur3-style avalanche to a 64-bit value.
// Used to spread (src,dst) edge keys across the index table.
//
//go:nosplit
//go:inline
func Mix64(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}
