package plainsender

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/telegram-mtproto/mtclient/internal/errs"
)

func TestWrapUnwrapRoundTrip(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0x04}
	env := Wrap(payload)
	if len(env) != envelopeHeaderSize+len(payload) {
		t.Fatalf("envelope length = %d, want %d", len(env), envelopeHeaderSize+len(payload))
	}
	for i := 0; i < 8; i++ {
		if env[i] != 0 {
			t.Fatalf("auth_key_id byte %d = %d, want 0", i, env[i])
		}
	}

	got, err := Unwrap(env)
	if err != nil {
		t.Fatalf("unwrap: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip mismatch: got=%x want=%x", got, payload)
	}
}

func TestMsgIDStrictlyIncreasing(t *testing.T) {
	prev := NextMsgID()
	for i := 0; i < 1000; i++ {
		next := NextMsgID()
		if next <= prev {
			t.Fatalf("msg_id did not strictly increase: prev=%d next=%d", prev, next)
		}
		if next&3 != 0 {
			t.Fatalf("msg_id low two bits not cleared: %#x", next)
		}
		prev = next
	}
}

func TestNextMsgIDConcurrentCallersNeverCollide(t *testing.T) {
	const goroutines = 50
	const perGoroutine = 200

	ids := make(chan int64, goroutines*perGoroutine)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				ids <- NextMsgID()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool, goroutines*perGoroutine)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate msg_id %d produced under concurrent callers", id)
		}
		seen[id] = true
	}
}

func TestUnwrapRejectsNonzeroAuthKeyID(t *testing.T) {
	env := Wrap([]byte("x"))
	env[0] = 0x01
	if _, err := Unwrap(env); !errors.Is(err, errs.ProtocolMismatch) {
		t.Fatalf("expected ProtocolMismatch, got %v", err)
	}
}

func TestUnwrapRejectsLengthMismatch(t *testing.T) {
	env := Wrap([]byte("hello"))
	env = append(env, 0xAA) // extra trailing byte not accounted for in length
	if _, err := Unwrap(env); !errors.Is(err, errs.MalformedFrame) {
		t.Fatalf("expected MalformedFrame, got %v", err)
	}
}

func TestUnwrapRejectsShortEnvelope(t *testing.T) {
	if _, err := Unwrap(make([]byte, 10)); !errors.Is(err, errs.MalformedFrame) {
		t.Fatalf("expected MalformedFrame for short envelope, got %v", err)
	}
}
