// Package obfuscation builds the 64-byte obfuscated-transport initializer
// and the AES-256-CTR read/write streams it seeds (spec.md §4.4). Grounded
// on the teacher's internal/proxy/client_transport.go, which parses this
// same header from the server side (parseObfuscatedClientHeader,
// deriveObfuscatedServerKeys): the key/iv slicing here is that function's
// mirror image, generating the header a client sends instead of decoding
// one a server received. Randomness is drawn from lukechampine.com/frand
// rather than bare crypto/rand.Reader, matching the rest of the core's
// nonce generation (see DESIGN.md).
package obfuscation

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"

	"lukechampine.com/frand"
)

// transparentTag marks the obfuscated-abridged mode in byte[56:60] of the
// initializer (spec.md §4.4: "announcing obfuscated abridged").
const transparentTag = 0xefefefef

// forbiddenPrefixes are the byte[0:4] values that collide with other
// transport modes or look like an HTTP request line to a DPI middlebox.
var forbiddenPrefixes = [][4]byte{
	{'H', 'E', 'A', 'D'},
	{'P', 'O', 'S', 'T'},
	{'G', 'E', 'T', ' '},
	{'P', 'V', 'r', 'G'},
	{0xee, 0xee, 0xee, 0xee},
}

// Streams holds the pair of AES-256-CTR ciphers derived from one
// initializer: one for outbound bytes, one for inbound bytes.
type Streams struct {
	Encrypt cipher.Stream
	Decrypt cipher.Stream
}

// NewInitializer generates a fresh 64-byte obfuscated-transport header,
// re-rolling forbidden prefixes, and returns the header to send on the
// wire (with its self-encrypted tag in byte[56:60]) alongside the stream
// pair that must wrap every subsequent byte written to and read from the
// socket.
func NewInitializer() (header []byte, streams Streams, err error) {
	buf := make([]byte, 64)
	for {
		frand.Read(buf)
		if isForbidden(buf) {
			continue
		}
		break
	}

	binary.LittleEndian.PutUint32(buf[56:60], transparentTag)

	encryptKey := append([]byte(nil), buf[8:40]...)
	encryptIV := append([]byte(nil), buf[40:56]...)
	decryptKey, decryptIV := reversedKeyIV(buf)

	encStream, err := newCTRStream(encryptKey, encryptIV)
	if err != nil {
		return nil, Streams{}, err
	}
	decStream, err := newCTRStream(decryptKey, decryptIV)
	if err != nil {
		return nil, Streams{}, err
	}

	out := append([]byte(nil), buf...)
	encStream.XORKeyStream(out[56:64], buf[56:64])

	return out, Streams{Encrypt: encStream, Decrypt: decStream}, nil
}

// isForbidden reports whether buf collides with another transport mode's
// framing or an HTTP request line (spec.md §4.4). The keyword/0xEE check
// applies to byte[0:4]; the all-zero check applies to byte[4:8], not
// byte[4:4] — a zero-length slice comparison that can never trigger,
// which is the bug the reference source leaves unfixed (see DESIGN.md).
func isForbidden(buf []byte) bool {
	if buf[0] == 0xef {
		return true
	}
	var head [4]byte
	copy(head[:], buf[0:4])
	for _, p := range forbiddenPrefixes {
		if head == p {
			return true
		}
	}
	var tail [4]byte
	copy(tail[:], buf[4:8])
	if tail == ([4]byte{0, 0, 0, 0}) {
		return true
	}
	return false
}

// reversedKeyIV computes the decrypt key/iv by slicing byte[55:7:-1] of
// the initializer: 48 bytes read from index 55 down to 8 inclusive, in
// reverse order. The first 32 reversed bytes are the key, the next 16 are
// the iv.
func reversedKeyIV(buf []byte) (key, iv []byte) {
	var r [48]byte
	for i := 0; i < 48; i++ {
		r[i] = buf[55-i]
	}
	key = append([]byte(nil), r[:32]...)
	iv = append([]byte(nil), r[32:48]...)
	return key, iv
}

func newCTRStream(key, iv []byte) (cipher.Stream, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("obfuscation: key must be 32 bytes, got %d", len(key))
	}
	if len(iv) != 16 {
		return nil, fmt.Errorf("obfuscation: iv must be 16 bytes, got %d", len(iv))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewCTR(block, iv), nil
}
