// Package session defines the collaborator interface a real session
// layer would implement to batch multiple requests into one transport
// message (SPEC_FULL.md §4.10). The handshake core only needs to carry
// a Batcher's encoded bytes opaquely through a transport.Framer; it does
// not schedule or track individual requests itself (spec.md's Non-goals
// exclude re-keying/session resumption, and nothing here assumes more).
//
// Grounded on original_source/telethon/tl/message_container.py's
// MessageContainer: each entry is (msg_id, seq, length, body) written
// back to back after the container header. That source's on_send writes
// constructor 0x73f1f8dc while the class itself declares constructor_id
// = 0x8953ad37 — a dead/unused attribute. The real wire constructor is
// the one on_send writes, so this package exposes only 0x73f1f8dc.
package session

import (
	"fmt"

	"github.com/telegram-mtproto/mtclient/internal/codec"
	"github.com/telegram-mtproto/mtclient/internal/errs"
	"github.com/telegram-mtproto/mtclient/internal/protocol"
)

// Batcher is implemented by anything that can serialize itself into an
// MTProto function-call body. A real session layer assigns msg_id/seq to
// each Batcher it wraps in a MessageContainer; this package does not
// generate those itself.
type Batcher interface {
	Encode() ([]byte, error)
}

// Entry is one request packed into a MessageContainer.
type Entry struct {
	MsgID    int64
	Sequence int32
	Body     []byte
}

// MessageContainer batches several Entry values into one transport
// message under constructor 0x73f1f8dc.
type MessageContainer struct {
	Entries []Entry
}

// Encode serializes the container: constructor, count, then
// msg_id/seq/length/body per entry, back to back with no padding between
// entries (the whole container is the payload handed to
// transport.Framer.Send, which pads/frames it according to the active
// mode).
func (c MessageContainer) Encode() ([]byte, error) {
	w := codec.NewWriter(0)
	w.Uint32(protocol.CodeMessageContainer)
	w.Int32(int32(len(c.Entries)))
	for _, e := range c.Entries {
		w.Int64(e.MsgID)
		w.Int32(e.Sequence)
		w.Int32(int32(len(e.Body)))
		w.Raw(e.Body)
	}
	return w.Bytes(), nil
}

// Decode parses a MessageContainer from payload, mirroring
// MessageContainer.iter_read: it does not recurse into each entry's body
// (that is the caller's concern once it knows the body's own
// constructor).
func Decode(payload []byte) (MessageContainer, error) {
	r := codec.NewReader(payload)
	code, err := r.Uint32()
	if err != nil {
		return MessageContainer{}, err
	}
	if code != protocol.CodeMessageContainer {
		return MessageContainer{}, fmt.Errorf("%w: expected message container %#x, got %#x", errs.ProtocolMismatch, protocol.CodeMessageContainer, code)
	}
	count, err := r.Int32()
	if err != nil {
		return MessageContainer{}, err
	}
	if count < 0 {
		return MessageContainer{}, fmt.Errorf("%w: negative message container count %d", errs.MalformedFrame, count)
	}

	entries := make([]Entry, 0, count)
	for i := int32(0); i < count; i++ {
		msgID, err := r.Int64()
		if err != nil {
			return MessageContainer{}, err
		}
		seq, err := r.Int32()
		if err != nil {
			return MessageContainer{}, err
		}
		length, err := r.Int32()
		if err != nil {
			return MessageContainer{}, err
		}
		if length < 0 {
			return MessageContainer{}, fmt.Errorf("%w: negative entry length %d", errs.MalformedFrame, length)
		}
		body, err := r.Raw(int(length))
		if err != nil {
			return MessageContainer{}, err
		}
		entries = append(entries, Entry{MsgID: msgID, Sequence: seq, Body: append([]byte(nil), body...)})
	}
	return MessageContainer{Entries: entries}, nil
}
