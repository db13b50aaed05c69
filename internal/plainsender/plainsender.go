// Package plainsender builds and parses the unencrypted message envelope
// used only during the handshake, before an AuthKey exists (spec.md
// §4.2). Grounded on original_source/telethon/network/authenticator.py's
// use of MtProtoPlainSender.send/receive to carry every handshake step,
// and cross-checked against the teacher's ParseMTProtoPacket for the
// auth_key_id/length field layout of the unencrypted case.
package plainsender

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/telegram-mtproto/mtclient/internal/errs"
)

const envelopeHeaderSize = 20 // auth_key_id(8) + msg_id(8) + length(4)

// lastMsgID is reused across calls within a process to keep msg_id
// strictly increasing even when two envelopes are built within the same
// wall-clock nanosecond tick. Handshakes on different connections can run
// concurrently in one process (spec.md §5), so this is a CAS loop rather
// than a bare read-modify-write.
var lastMsgID atomic.Int64

// NextMsgID derives a new strictly-increasing msg_id from wall-clock
// time: the current Unix seconds occupy the high 32 bits, nanoseconds
// occupy the low 32 bits with the low two bits cleared (MTProto reserves
// them to mark message kind on the encrypted path; the plain path leaves
// them zero for the same reason an encrypted msg_id would). Safe to call
// concurrently.
func NextMsgID() int64 {
	for {
		prev := lastMsgID.Load()
		now := time.Now()
		id := now.Unix()<<32 | int64(now.Nanosecond())&^3
		if id <= prev {
			id = prev + 4
		}
		if lastMsgID.CompareAndSwap(prev, id) {
			return id
		}
	}
}

// Wrap builds the 20-byte-header plain envelope: auth_key_id=0, a fresh
// msg_id, the payload length, then the payload.
func Wrap(payload []byte) []byte {
	out := make([]byte, envelopeHeaderSize+len(payload))
	// out[0:8] left as zero auth_key_id.
	binary.LittleEndian.PutUint64(out[8:16], uint64(NextMsgID()))
	binary.LittleEndian.PutUint32(out[16:20], uint32(len(payload)))
	copy(out[20:], payload)
	return out
}

// Unwrap validates and strips a plain envelope, returning the inner
// payload. It rejects a nonzero auth_key_id (the handshake must never
// see an encrypted response) and a length field that disagrees with the
// actual remaining bytes.
func Unwrap(envelope []byte) ([]byte, error) {
	if len(envelope) < envelopeHeaderSize {
		return nil, fmt.Errorf("%w: plain envelope too short: %d bytes", errs.MalformedFrame, len(envelope))
	}
	authKeyID := binary.LittleEndian.Uint64(envelope[0:8])
	if authKeyID != 0 {
		return nil, fmt.Errorf("%w: plain envelope has nonzero auth_key_id %#x", errs.ProtocolMismatch, authKeyID)
	}
	length := binary.LittleEndian.Uint32(envelope[16:20])
	payload := envelope[20:]
	if int(length) != len(payload) {
		return nil, fmt.Errorf("%w: plain envelope length %d does not match payload %d", errs.MalformedFrame, length, len(payload))
	}
	return payload, nil
}
