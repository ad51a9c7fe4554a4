package ring

import (
	"bytes"
	"math/rand"
	"testing"
)

// -----------------------------------------------------------------------------
// ░░ Constructor Semantics ░░
// -----------------------------------------------------------------------------

func TestNewRejectsNonPowerOfTwo(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("New(100) should panic")
		}
	}()
	New(100)
}

func TestNewEmpty(t *testing.T) {
	r := New(16)
	if r.Len() != 0 || r.Free() != 16 {
		t.Fatalf("fresh buffer Len=%d Free=%d", r.Len(), r.Free())
	}
}

// -----------------------------------------------------------------------------
// ░░ Write / Frame / Consume ░░
// -----------------------------------------------------------------------------

func TestWriteFrameConsume(t *testing.T) {
	r := New(16)
	if n := r.Write([]byte("hello")); n != 5 {
		t.Fatalf("Write = %d, want 5", n)
	}
	var dst [16]byte
	if n := r.Frame(dst[:], 16); n != 5 || string(dst[:n]) != "hello" {
		t.Fatalf("Frame = %d %q", n, dst[:n])
	}
	// Frame must not consume.
	if r.Len() != 5 {
		t.Fatalf("Len after Frame = %d, want 5", r.Len())
	}
	r.Consume(5)
	if r.Len() != 0 {
		t.Fatalf("Len after Consume = %d, want 0", r.Len())
	}
}

func TestFrameBoundedByMax(t *testing.T) {
	r := New(64)
	r.Write(bytes.Repeat([]byte{'x'}, 40))
	var dst [64]byte
	if n := r.Frame(dst[:], 8); n != 8 {
		t.Fatalf("Frame(max=8) = %d", n)
	}
}

func TestWriteRejectsOverflow(t *testing.T) {
	r := New(8)
	if n := r.Write([]byte("0123456789")); n != 8 {
		t.Fatalf("Write into size-8 buffer = %d, want 8", n)
	}
	if r.Free() != 0 {
		t.Fatalf("Free = %d, want 0", r.Free())
	}
	if n := r.Write([]byte("x")); n != 0 {
		t.Fatalf("Write into full buffer = %d, want 0", n)
	}
}

func TestConsumeClamped(t *testing.T) {
	r := New(8)
	r.Write([]byte("ab"))
	r.Consume(100)
	if r.Len() != 0 {
		t.Fatalf("Len = %d after over-consume", r.Len())
	}
	r.Consume(-1)
	if r.Len() != 0 {
		t.Fatal("negative consume must be ignored")
	}
}

// -----------------------------------------------------------------------------
// ░░ Wraparound ░░
// -----------------------------------------------------------------------------

func TestWraparound(t *testing.T) {
	r := New(8)
	for round := 0; round < 100; round++ {
		msg := []byte{byte(round), byte(round + 1), byte(round + 2)}
		if n := r.Write(msg); n != 3 {
			t.Fatalf("round %d: Write = %d", round, n)
		}
		var dst [8]byte
		n := r.Frame(dst[:], 8)
		if n != 3 || !bytes.Equal(dst[:n], msg) {
			t.Fatalf("round %d: Frame = %d %v, want %v", round, n, dst[:n], msg)
		}
		r.Consume(3)
	}
}

func TestRandomizedStream(t *testing.T) {
	r := New(1 << 10)
	rng := rand.New(rand.NewSource(99))
	var sent, got []byte
	for i := 0; i < 5000; i++ {
		chunk := make([]byte, rng.Intn(64))
		rng.Read(chunk)
		n := r.Write(chunk)
		sent = append(sent, chunk[:n]...)

		var dst [64]byte
		m := r.Frame(dst[:], rng.Intn(64))
		got = append(got, dst[:m]...)
		r.Consume(m)
	}
	// Drain the remainder.
	for r.Len() > 0 {
		var dst [64]byte
		m := r.Frame(dst[:], 64)
		got = append(got, dst[:m]...)
		r.Consume(m)
	}
	if !bytes.Equal(sent, got) {
		t.Fatalf("stream mismatch: sent %d bytes, got %d", len(sent), len(got))
	}
}
