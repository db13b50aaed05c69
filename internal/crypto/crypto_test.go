package crypto_test

import (
	"encoding/hex"
	"testing"

	mtcrypto "github.com/telegram-mtproto/mtclient/internal/crypto"
)

func TestHashAndCRCVectors(t *testing.T) {
	sha1Want := "a9993e364706816aba3e25717850c26c9cd0d89d"
	sha1Sum := mtcrypto.SHA1([]byte("abc"))
	sha1Got := hex.EncodeToString(sha1Sum[:])
	if sha1Got != sha1Want {
		t.Fatalf("sha1 mismatch: got=%s want=%s", sha1Got, sha1Want)
	}

	sha1TwoSum := mtcrypto.SHA1TwoChunks([]byte("a"), []byte("bc"))
	sha1Two := hex.EncodeToString(sha1TwoSum[:])
	if sha1Two != sha1Want {
		t.Fatalf("sha1 two-chunk mismatch: got=%s want=%s", sha1Two, sha1Want)
	}

	crcData := []byte("123456789")
	if got, want := mtcrypto.ComputeCRC32(crcData), uint32(0xcbf43926); got != want {
		t.Fatalf("crc32 mismatch: got=%08x want=%08x", got, want)
	}

	seed := ^uint32(0)
	p1 := mtcrypto.CRC32Partial([]byte("1234"), seed)
	p2 := mtcrypto.CRC32Partial([]byte("56789"), p1)
	if got, want := p2^uint32(0xffffffff), mtcrypto.ComputeCRC32(crcData); got != want {
		t.Fatalf("crc32 partial mismatch: got=%08x want=%08x", got, want)
	}
}
