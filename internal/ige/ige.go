// Package ige implements AES-256 in Infinite Garble Extension mode, the
// confidentiality primitive protecting the DH inner data (spec.md §4.5
// Step 3). Go's standard library has no IGE cipher.BlockMode and neither
// does anything in the pack; this is built the way the teacher builds CBC
// in internal/crypto/aes.go — manual block-by-block chaining directly
// over cipher.Block.Encrypt/Decrypt — since IGE's two-block lookback has
// no stdlib BlockMode implementation (see DESIGN.md).
package ige

import (
	"crypto/aes"
	"fmt"
)

const blockSize = aes.BlockSize // 16

// Decrypt decrypts ciphertext with AES-256-IGE under key (32 bytes) and iv
// (32 bytes: iv[0:16] is the initial "previous ciphertext" block, iv[16:32]
// is the initial "previous plaintext" block).
func Decrypt(ciphertext, key, iv []byte) ([]byte, error) {
	block, err := newBlock(key, iv)
	if err != nil {
		return nil, err
	}
	if len(ciphertext)%blockSize != 0 {
		return nil, fmt.Errorf("ige: ciphertext length %d not a multiple of %d", len(ciphertext), blockSize)
	}

	cipher, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	prevCipher := append([]byte(nil), block.iv1...)
	prevPlain := append([]byte(nil), block.iv2...)

	out := make([]byte, len(ciphertext))
	var tmp [blockSize]byte
	for off := 0; off < len(ciphertext); off += blockSize {
		curCipher := ciphertext[off : off+blockSize]
		xorInto(tmp[:], curCipher, prevPlain)
		cipher.Decrypt(tmp[:], tmp[:])
		xorInto(out[off:off+blockSize], tmp[:], prevCipher)

		prevCipher = append(prevCipher[:0], curCipher...)
		prevPlain = append(prevPlain[:0], out[off:off+blockSize]...)
	}
	return out, nil
}

// Encrypt encrypts plaintext with AES-256-IGE under key/iv, the mirror of
// Decrypt.
func Encrypt(plaintext, key, iv []byte) ([]byte, error) {
	block, err := newBlock(key, iv)
	if err != nil {
		return nil, err
	}
	if len(plaintext)%blockSize != 0 {
		return nil, fmt.Errorf("ige: plaintext length %d not a multiple of %d", len(plaintext), blockSize)
	}

	cipher, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	prevCipher := append([]byte(nil), block.iv1...)
	prevPlain := append([]byte(nil), block.iv2...)

	out := make([]byte, len(plaintext))
	var tmp [blockSize]byte
	for off := 0; off < len(plaintext); off += blockSize {
		curPlain := plaintext[off : off+blockSize]
		xorInto(tmp[:], curPlain, prevCipher)
		cipher.Encrypt(tmp[:], tmp[:])
		xorInto(out[off:off+blockSize], tmp[:], prevPlain)

		prevCipher = append(prevCipher[:0], out[off:off+blockSize]...)
		prevPlain = append(prevPlain[:0], curPlain...)
	}
	return out, nil
}

type ivPair struct {
	iv1, iv2 []byte
}

func newBlock(key, iv []byte) (ivPair, error) {
	if len(key) != 32 {
		return ivPair{}, fmt.Errorf("ige: key must be 32 bytes, got %d", len(key))
	}
	if len(iv) != 32 {
		return ivPair{}, fmt.Errorf("ige: iv must be 32 bytes, got %d", len(iv))
	}
	return ivPair{iv1: iv[:16], iv2: iv[16:32]}, nil
}

func xorInto(dst, a, b []byte) {
	for i := range dst {
		dst[i] = a[i] ^ b[i]
	}
}
