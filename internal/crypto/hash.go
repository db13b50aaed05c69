package crypto

import (
	stdsha1 "crypto/sha1"
)

func SHA1(data []byte) [20]byte {
	return stdsha1.Sum(data)
}

func SHA1TwoChunks(first, second []byte) [20]byte {
	h := stdsha1.New()
	_, _ = h.Write(first)
	_, _ = h.Write(second)

	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}
