// Package rsa holds the immutable table of Telegram RSA public keys used
// during Step 2 of the handshake (spec.md §4.5), grounded on the
// teacher's pattern of an immutable crypto table supplied at construction
// (internal/crypto/dh.go's rpcDHPrime + NewDH/DefaultDH).
package rsa

import (
	"math/big"

	"github.com/telegram-mtproto/mtclient/internal/codec"
	"github.com/telegram-mtproto/mtclient/internal/crypto"
	"github.com/telegram-mtproto/mtclient/internal/protocol"
)

// PublicKey is one RSA public key Telegram may advertise a fingerprint
// for.
type PublicKey struct {
	N *big.Int
	E *big.Int
}

// Fingerprint computes the low 64 bits of SHA1 over the TL-encoded
// RSA_public_key constructor for k, per spec.md §3's RsaFingerprint
// definition.
func Fingerprint(k PublicKey) [8]byte {
	w := codec.NewWriter(0)
	w.Uint32(protocol.CodeRSAPublicKey)
	w.TgBytes(minimalBigEndian(k.N))
	w.TgBytes(minimalBigEndian(k.E))
	sum := crypto.SHA1(w.Bytes())

	var fp [8]byte
	copy(fp[:], sum[12:20])
	return fp
}

// Table is an immutable, construction-time-fixed set of known RSA public
// keys, indexed by fingerprint.
type Table struct {
	byFingerprint map[[8]byte]PublicKey
}

// NewTable builds a lookup table from the given keys. The core never
// fetches keys itself (spec.md §9 "Global state: none").
func NewTable(keys []PublicKey) *Table {
	t := &Table{byFingerprint: make(map[[8]byte]PublicKey, len(keys))}
	for _, k := range keys {
		t.byFingerprint[Fingerprint(k)] = k
	}
	return t
}

// Lookup returns the public key matching fp, if any.
func (t *Table) Lookup(fp [8]byte) (PublicKey, bool) {
	k, ok := t.byFingerprint[fp]
	return k, ok
}

// Encrypt raw-RSA-encrypts data under the key matching fp: it builds
// SHA1(data) || data || random_pad so the plaintext is exactly 255 bytes,
// then computes m^e mod n (no PKCS padding), producing a 256-byte
// ciphertext. Returns false if no key matches fp or data is too large to
// fit the 255-byte plaintext block.
func (t *Table) Encrypt(fp [8]byte, data []byte, randomPad func(n int) ([]byte, error)) ([]byte, bool, error) {
	k, ok := t.Lookup(fp)
	if !ok {
		return nil, false, nil
	}

	digest := crypto.SHA1(data)
	plain := make([]byte, 0, 255)
	plain = append(plain, digest[:]...)
	plain = append(plain, data...)
	if len(plain) > 255 {
		return nil, false, nil
	}
	padLen := 255 - len(plain)
	pad, err := randomPad(padLen)
	if err != nil {
		return nil, false, err
	}
	plain = append(plain, pad...)

	m := new(big.Int).SetBytes(plain)
	c := new(big.Int).Exp(m, k.E, k.N)
	out := c.Bytes()
	if len(out) > 256 {
		return nil, false, nil
	}
	block := make([]byte, 256)
	copy(block[256-len(out):], out)
	return block, true, nil
}

// minimalBigEndian strips leading zero bytes from v's big-endian
// representation, keeping at least one byte, per spec.md §4.5's "minimally
// encoded" requirement for unsigned values.
func minimalBigEndian(v *big.Int) []byte {
	b := v.Bytes()
	if len(b) == 0 {
		return []byte{0}
	}
	return b
}
