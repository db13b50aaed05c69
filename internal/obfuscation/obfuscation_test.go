package obfuscation

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestNewInitializerShapeInvariants(t *testing.T) {
	for i := 0; i < 10000; i++ {
		header, streams, err := NewInitializer()
		if err != nil {
			t.Fatalf("NewInitializer: %v", err)
		}
		if len(header) != 64 {
			t.Fatalf("header length = %d, want 64", len(header))
		}
		if header[0] == 0xef {
			t.Fatalf("header[0] == 0xef, forbidden prefix leaked through")
		}
		var head [4]byte
		copy(head[:], header[0:4])
		for _, p := range forbiddenPrefixes {
			if head == p {
				t.Fatalf("header[0:4] = %x, matches forbidden prefix %x", head, p)
			}
		}
		if bytes.Equal(header[4:8], []byte{0, 0, 0, 0}) {
			t.Fatalf("header[4:8] is all-zero, forbidden prefix leaked through")
		}
		if streams.Encrypt == nil || streams.Decrypt == nil {
			t.Fatalf("expected non-nil stream pair")
		}
	}
}

// TestTagIsSelfEncrypted checks that decrypting header[56:64] with the
// encrypt stream recovers 0xEFEFEFEF in its first four bytes, since the
// wire header carries that window already run through AES-CTR once.
func TestTagIsSelfEncrypted(t *testing.T) {
	header, streams, err := NewInitializer()
	if err != nil {
		t.Fatalf("NewInitializer: %v", err)
	}

	encryptKey := append([]byte(nil), header[8:40]...)
	encryptIV := append([]byte(nil), header[40:56]...)
	verify, err := newCTRStream(encryptKey, encryptIV)
	if err != nil {
		t.Fatalf("newCTRStream: %v", err)
	}

	plain := make([]byte, 8)
	verify.XORKeyStream(plain, header[56:64])
	if got := binary.LittleEndian.Uint32(plain[:4]); got != transparentTag {
		t.Fatalf("recovered tag = %#x, want %#x", got, uint32(transparentTag))
	}

	// The independently-reconstructed stream above must match
	// streams.Encrypt's keystream from here on.
	want := make([]byte, 16)
	got := make([]byte, 16)
	verify.XORKeyStream(want, want)
	streams.Encrypt.XORKeyStream(got, got)
	if !bytes.Equal(got, want) {
		t.Fatalf("streams.Encrypt keystream = %x, want %x", got, want)
	}
}

func TestReversedKeyIVIsMirrorOfForwardSlice(t *testing.T) {
	buf := make([]byte, 64)
	for i := range buf {
		buf[i] = byte(i)
	}
	key, iv := reversedKeyIV(buf)
	if len(key) != 32 || len(iv) != 16 {
		t.Fatalf("unexpected lengths: key=%d iv=%d", len(key), len(iv))
	}
	// r[0] = buf[55], r[47] = buf[8]
	if key[0] != buf[55] {
		t.Fatalf("key[0] = %d, want buf[55] = %d", key[0], buf[55])
	}
	if iv[15] != buf[8] {
		t.Fatalf("iv[15] = %d, want buf[8] = %d", iv[15], buf[8])
	}
}

func TestIsForbiddenDetectsKnownPrefixes(t *testing.T) {
	base := make([]byte, 64)
	copy(base[4:8], []byte{0x01, 0x02, 0x03, 0x04}) // keep the tail clean so only byte[0:4] is under test
	keywords := [][]byte{
		[]byte("HEAD"),
		[]byte("POST"),
		[]byte("GET "),
		[]byte("PVrG"),
		{0xee, 0xee, 0xee, 0xee},
	}
	for _, c := range keywords {
		b := append([]byte(nil), base...)
		copy(b[0:4], c)
		if !isForbidden(b) {
			t.Fatalf("expected %x at byte[0:4] to be forbidden", c)
		}
	}

	leadByte := append([]byte(nil), base...)
	leadByte[0] = 0xef
	if !isForbidden(leadByte) {
		t.Fatalf("expected byte[0]=0xef to be forbidden")
	}

	zeroTail := append([]byte(nil), base...)
	zeroTail[0] = 0x01
	copy(zeroTail[4:8], []byte{0x00, 0x00, 0x00, 0x00})
	if !isForbidden(zeroTail) {
		t.Fatalf("expected all-zero byte[4:8] to be forbidden")
	}

	clean := append([]byte(nil), base...)
	clean[0] = 0x01
	if isForbidden(clean) {
		t.Fatalf("did not expect a clean buffer to be flagged forbidden")
	}
}

func TestEncryptDecryptStreamsAreIndependent(t *testing.T) {
	header, streams, err := NewInitializer()
	if err != nil {
		t.Fatalf("NewInitializer: %v", err)
	}
	_ = header

	plain := bytes.Repeat([]byte{0xAB}, 32)
	ct := make([]byte, len(plain))
	streams.Encrypt.XORKeyStream(ct, plain)
	if bytes.Equal(ct, plain) {
		t.Fatalf("ciphertext must not equal plaintext")
	}

	// The decrypt stream is independently keyed; XOR-ing through it must
	// not reproduce plain (it isn't the inverse of Encrypt).
	decOfCt := make([]byte, len(ct))
	streams.Decrypt.XORKeyStream(decOfCt, ct)
	if bytes.Equal(decOfCt, plain) {
		t.Fatalf("decrypt stream unexpectedly inverted encrypt stream")
	}
}
