// ring.go
//
// Fixed-capacity byte ring buffer used to smooth bursty external input
// into one bounded frame per tick.  Single writer, single reader, same
// goroutine — no atomics needed.  Capacity must be a power of two so the
// wraparound arithmetic stays branch-free bit masking.

package ring

// Buffer is a fixed-capacity circular byte queue.  Write appends as much
// as fits, Frame peeks the next bounded chunk without consuming, and
// Consume releases bytes after they have been sensed.
type Buffer struct {
	head uint64 // read position (monotonic)
	tail uint64 // write position (monotonic)
	mask uint64
	buf  []byte
}

// New allocates a buffer whose size must be a power-of-two; otherwise it
// panics so that the bit-masking arithmetic stays valid.
func New(size int) *Buffer {
	if size <= 0 || size&(size-1) != 0 {
		panic("ring: size must be >0 and a power of two")
	}
	return &Buffer{
		mask: uint64(size - 1),
		buf:  make([]byte, size),
	}
}

// Len reports the number of buffered, unconsumed bytes.
//
//go:nosplit
func (r *Buffer) Len() int {
	return int(r.tail - r.head)
}

// Free reports remaining capacity.
//
//go:nosplit
func (r *Buffer) Free() int {
	return len(r.buf) - r.Len()
}

// Write appends up to len(p) bytes, returning how many were accepted.
// Excess input is dropped by the caller's policy, never buffered twice.
//
//go:nosplit
func (r *Buffer) Write(p []byte) int {
	n := len(p)
	if free := r.Free(); n > free {
		n = free
	}
	for i := 0; i < n; i++ {
		r.buf[(r.tail+uint64(i))&r.mask] = p[i]
	}
	r.tail += uint64(n)
	return n
}

// Frame copies up to max buffered bytes into dst without consuming them.
// Returns the number of bytes copied.  The caller consumes after sensing
// so a failed tick never loses input.
//
//go:nosplit
func (r *Buffer) Frame(dst []byte, max int) int {
	n := r.Len()
	if n > max {
		n = max
	}
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = r.buf[(r.head+uint64(i))&r.mask]
	}
	return n
}

// Consume releases n bytes from the read side.  n is clamped to the
// buffered length so a confused caller cannot corrupt the positions.
//
//go:nosplit
func (r *Buffer) Consume(n int) {
	if n < 0 {
		return
	}
	if l := r.Len(); n > l {
		n = l
	}
	r.head += uint64(n)
}
