// Package handshake implements the three-step DH authorization key
// exchange (spec.md §4.5). Grounded on
// original_source/telethon/network/authenticator.py's _do_authentication
// for the message sequence, nonce/key derivation, and retry policy, and
// on the teacher's fmt.Errorf("...: %w", err) wrapping idiom
// (internal/config, internal/cli) for surfacing errs.Kind sentinels.
package handshake

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"time"

	"lukechampine.com/frand"

	"github.com/telegram-mtproto/mtclient/internal/codec"
	"github.com/telegram-mtproto/mtclient/internal/crypto"
	"github.com/telegram-mtproto/mtclient/internal/errs"
	"github.com/telegram-mtproto/mtclient/internal/factor"
	"github.com/telegram-mtproto/mtclient/internal/ige"
	"github.com/telegram-mtproto/mtclient/internal/plainsender"
	"github.com/telegram-mtproto/mtclient/internal/protocol"
	"github.com/telegram-mtproto/mtclient/internal/rsa"
)

// Sender is the minimal transport surface the Authenticator needs: send
// one plain message, receive one plain message. internal/transport's
// Framer plus internal/plainsender satisfies this during a handshake.
type Sender interface {
	Send(payload []byte) error
	Recv() ([]byte, error)
}

// Result is what a successful handshake produces.
type Result struct {
	AuthKey    [256]byte
	TimeOffset time.Duration
}

// Authenticator runs the DH key exchange over a Sender using a caller-
// supplied RSA key table.
type Authenticator struct {
	RSATable *rsa.Table
}

// New returns an Authenticator backed by table.
func New(table *rsa.Table) *Authenticator {
	return &Authenticator{RSATable: table}
}

// Run performs one attempt of the three-step handshake. A dh_gen_retry
// answer is handled inside Run by resending SetClientDhParams (see
// sendSetClientDHParams); every other failure, dh_gen_fail included, is
// returned to the caller, and Do starts a new attempt from Step 1.
func (a *Authenticator) Run(s Sender) (Result, error) {
	nonce := random16()

	serverNonce, pq, fingerprints, err := a.step1ReqPQ(s, nonce)
	if err != nil {
		return Result{}, err
	}

	newNonce := random32()

	dhParams, err := a.step2ReqDHParams(s, nonce, serverNonce, pq, fingerprints, newNonce)
	if err != nil {
		return Result{}, err
	}

	return a.step3SetClientDHParams(s, nonce, serverNonce, newNonce, dhParams)
}

// Do runs the handshake with up to retries attempts (values below 1 are
// raised to 1), dialing a fresh Sender for each attempt so that every
// attempt starts over from Step 1 with fresh nonces. Any error from dial
// or Run (errs.SecurityError, errs.ProtocolMismatch, errs.RetryRequested
// and transport errors alike) moves on to the next attempt; the last
// error is returned once the attempts are used up.
func (a *Authenticator) Do(dial func() (Sender, error), retries int) (Result, error) {
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		s, err := dial()
		if err != nil {
			lastErr = err
			continue
		}
		res, err := a.Run(s)
		if err == nil {
			return res, nil
		}
		lastErr = err
	}
	return Result{}, lastErr
}

func random16() [16]byte {
	var b [16]byte
	frand.Read(b[:])
	return b
}

func random32() [32]byte {
	var b [32]byte
	frand.Read(b[:])
	return b
}

// step1ReqPQ sends ReqPQ and parses ResPQ.
func (a *Authenticator) step1ReqPQ(s Sender, nonce [16]byte) (serverNonce [16]byte, pq *big.Int, fingerprints []uint64, err error) {
	w := codec.NewWriter(20)
	w.Uint32(protocol.CodeReqPQ)
	w.Raw(nonce[:])
	if err := s.Send(plainsender.Wrap(w.Bytes())); err != nil {
		return serverNonce, nil, nil, err
	}

	raw, err := s.Recv()
	if err != nil {
		return serverNonce, nil, nil, err
	}
	payload, err := plainsender.Unwrap(raw)
	if err != nil {
		return serverNonce, nil, nil, err
	}

	r := codec.NewReader(payload)
	code, err := r.Uint32()
	if err != nil {
		return serverNonce, nil, nil, err
	}
	if code != protocol.CodeResPQ {
		return serverNonce, nil, nil, fmt.Errorf("%w: expected ResPQ, got %#x", errs.ProtocolMismatch, code)
	}
	respNonce, err := r.Raw(16)
	if err != nil {
		return serverNonce, nil, nil, err
	}
	if [16]byte(respNonce) != nonce {
		return serverNonce, nil, nil, fmt.Errorf("%w: nonce mismatch in ResPQ", errs.SecurityError)
	}
	sNonceBytes, err := r.Raw(16)
	if err != nil {
		return serverNonce, nil, nil, err
	}
	copy(serverNonce[:], sNonceBytes)

	pqBytes, err := r.TgBytes()
	if err != nil {
		return serverNonce, nil, nil, err
	}
	pq = new(big.Int).SetBytes(pqBytes)

	vectorTag, err := r.Uint32()
	if err != nil {
		return serverNonce, nil, nil, err
	}
	if vectorTag != protocol.VectorMarker {
		return serverNonce, nil, nil, fmt.Errorf("%w: expected vector marker, got %#x", errs.ProtocolMismatch, vectorTag)
	}
	count, err := r.Int32()
	if err != nil {
		return serverNonce, nil, nil, err
	}
	fingerprints = make([]uint64, 0, count)
	for i := int32(0); i < count; i++ {
		fp, err := r.Uint64()
		if err != nil {
			return serverNonce, nil, nil, err
		}
		fingerprints = append(fingerprints, fp)
	}
	return serverNonce, pq, fingerprints, nil
}

// dhParams is what Step 2 hands to Step 3: the raw encrypted_answer. The
// nonces needed to derive the temp AES-IGE key are passed separately.
type dhParams struct {
	encryptedAnswer []byte
}

// step2ReqDHParams factorizes pq, builds and RSA-encrypts the PQ inner
// data, sends ReqDHParams, and parses ServerDHParams.
func (a *Authenticator) step2ReqDHParams(s Sender, nonce, serverNonce [16]byte, pq *big.Int, fingerprints []uint64, newNonce [32]byte) (dhParams, error) {
	p, q, err := factor.Factorize(pq.Uint64())
	if err != nil {
		return dhParams{}, fmt.Errorf("%w: %v", errs.SecurityError, err)
	}
	pBytes := minimalBigEndian(new(big.Int).SetUint64(p))
	qBytes := minimalBigEndian(new(big.Int).SetUint64(q))

	inner := codec.NewWriter(0)
	inner.Uint32(protocol.CodePQInnerData)
	inner.TgBytes(minimalBigEndian(pq))
	inner.TgBytes(pBytes)
	inner.TgBytes(qBytes)
	inner.Raw(nonce[:])
	inner.Raw(serverNonce[:])
	inner.Raw(newNonce[:])

	ciphertext, fingerprint, err := a.encryptForFirstKnownFingerprint(fingerprints, inner.Bytes())
	if err != nil {
		return dhParams{}, err
	}

	w := codec.NewWriter(0)
	w.Uint32(protocol.CodeReqDHParams)
	w.Raw(nonce[:])
	w.Raw(serverNonce[:])
	w.TgBytes(pBytes)
	w.TgBytes(qBytes)
	w.Uint64(fingerprint)
	w.TgBytes(ciphertext)
	if err := s.Send(plainsender.Wrap(w.Bytes())); err != nil {
		return dhParams{}, err
	}

	raw, err := s.Recv()
	if err != nil {
		return dhParams{}, err
	}
	payload, err := plainsender.Unwrap(raw)
	if err != nil {
		return dhParams{}, err
	}

	r := codec.NewReader(payload)
	code, err := r.Uint32()
	if err != nil {
		return dhParams{}, err
	}
	switch code {
	case protocol.CodeServerDHParamsFail:
		return dhParams{}, fmt.Errorf("%w: server_DH_params_fail", errs.SecurityError)
	case protocol.CodeServerDHParamsOK:
		// fall through
	default:
		return dhParams{}, fmt.Errorf("%w: expected ServerDHParams, got %#x", errs.ProtocolMismatch, code)
	}

	respNonce, err := r.Raw(16)
	if err != nil {
		return dhParams{}, err
	}
	if [16]byte(respNonce) != nonce {
		return dhParams{}, fmt.Errorf("%w: nonce mismatch in ServerDHParamsOK", errs.SecurityError)
	}
	respServerNonce, err := r.Raw(16)
	if err != nil {
		return dhParams{}, err
	}
	if [16]byte(respServerNonce) != serverNonce {
		return dhParams{}, fmt.Errorf("%w: server_nonce mismatch in ServerDHParamsOK", errs.SecurityError)
	}
	encryptedAnswer, err := r.TgBytes()
	if err != nil {
		return dhParams{}, err
	}
	return dhParams{encryptedAnswer: append([]byte(nil), encryptedAnswer...)}, nil
}

func (a *Authenticator) encryptForFirstKnownFingerprint(fingerprints []uint64, innerData []byte) ([]byte, uint64, error) {
	for _, fp64 := range fingerprints {
		var fp [8]byte
		binary.LittleEndian.PutUint64(fp[:], fp64)
		ct, ok, err := a.RSATable.Encrypt(fp, innerData, randomPad)
		if err != nil {
			return nil, 0, err
		}
		if ok {
			return ct, fp64, nil
		}
	}
	return nil, 0, fmt.Errorf("%w: no advertised RSA fingerprint is known", errs.SecurityError)
}

func randomPad(n int) ([]byte, error) {
	b := make([]byte, n)
	frand.Read(b)
	return b, nil
}

// deriveTempAESKey computes (key, iv) from (server_nonce, new_nonce) per
// spec.md §4.5 Step 3.
func deriveTempAESKey(serverNonce [16]byte, newNonce [32]byte) (key, iv []byte) {
	snNn := crypto.SHA1TwoChunks(serverNonce[:], newNonce[:])
	nnSn := crypto.SHA1TwoChunks(newNonce[:], serverNonce[:])
	nnNn := crypto.SHA1TwoChunks(newNonce[:], newNonce[:])

	key = make([]byte, 0, 32)
	key = append(key, nnSn[:]...)
	key = append(key, snNn[:12]...)

	iv = make([]byte, 0, 32)
	iv = append(iv, snNn[12:20]...)
	iv = append(iv, nnNn[:]...)
	iv = append(iv, newNonce[:4]...)
	return key, iv
}

// step3SetClientDHParams decrypts and validates ServerDHInnerData,
// computes the shared secret, and drives the dh_gen_ok/retry/fail
// outcome.
func (a *Authenticator) step3SetClientDHParams(s Sender, nonce, serverNonce [16]byte, newNonce [32]byte, params dhParams) (Result, error) {
	key, iv := deriveTempAESKey(serverNonce, newNonce)

	if len(params.encryptedAnswer)%16 != 0 {
		return Result{}, fmt.Errorf("%w: encrypted_answer length %d not block-aligned", errs.MalformedFrame, len(params.encryptedAnswer))
	}
	plain, err := ige.Decrypt(params.encryptedAnswer, key, iv)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", errs.SecurityError, err)
	}
	if len(plain) < 20 {
		return Result{}, fmt.Errorf("%w: decrypted DH inner data too short", errs.MalformedFrame)
	}
	sha1Prefix := plain[:20]
	inner := plain[20:]

	r := codec.NewReader(inner)
	code, err := r.Uint32()
	if err != nil {
		return Result{}, err
	}
	if code != protocol.CodeServerDHInnerData {
		return Result{}, fmt.Errorf("%w: expected ServerDHInnerData, got %#x", errs.ProtocolMismatch, code)
	}
	respNonce, err := r.Raw(16)
	if err != nil {
		return Result{}, err
	}
	if [16]byte(respNonce) != nonce {
		return Result{}, fmt.Errorf("%w: nonce mismatch in ServerDHInnerData", errs.SecurityError)
	}
	respServerNonce, err := r.Raw(16)
	if err != nil {
		return Result{}, err
	}
	if [16]byte(respServerNonce) != serverNonce {
		return Result{}, fmt.Errorf("%w: server_nonce mismatch in ServerDHInnerData", errs.SecurityError)
	}
	g, err := r.Int32()
	if err != nil {
		return Result{}, err
	}
	dhPrimeBytes, err := r.TgBytes()
	if err != nil {
		return Result{}, err
	}
	gABytes, err := r.TgBytes()
	if err != nil {
		return Result{}, err
	}
	serverTime, err := r.Int32()
	if err != nil {
		return Result{}, err
	}

	// Verify the 20-byte SHA-1 prefix now that we know exactly how many
	// bytes of `inner` the TL structure occupies (spec.md §4.5 Step 3
	// RESOLVED: "SHA-1 prefix of decrypted DH inner data IS verified").
	consumed := len(inner) - r.Remaining()
	if crypto.SHA1(inner[:consumed]) != [20]byte(sha1Prefix) {
		return Result{}, fmt.Errorf("%w: DH inner data SHA-1 prefix mismatch", errs.SecurityError)
	}

	dhPrime := new(big.Int).SetBytes(dhPrimeBytes)
	gA := new(big.Int).SetBytes(gABytes)

	if err := sanityCheckDHParams(dhPrime, g, gA); err != nil {
		return Result{}, err
	}

	now := time.Now().Unix()
	timeOffset := time.Duration(int64(serverTime)-now) * time.Second

	b := randomDHExponent()
	gBig := big.NewInt(int64(g))
	gB := new(big.Int).Exp(gBig, b, dhPrime)
	gAB := new(big.Int).Exp(gA, b, dhPrime)

	var authKey [256]byte
	gABBytes := gAB.Bytes()
	copy(authKey[256-len(gABBytes):], gABBytes)

	return a.sendSetClientDHParams(s, nonce, serverNonce, newNonce, key, iv, gB, authKey, timeOffset)
}

// maxDHGenResends bounds the internal dh_gen_retry loop. This is distinct
// from Authenticator.Do's outer retry count: a dh_gen_retry resends
// SetClientDhParams on the same nonce/new_nonce pair (spec.md §4.5
// RESOLVED) rather than restarting the whole handshake, so it must not
// consume the caller's handshake-attempt budget.
const maxDHGenResends = 5

// sendSetClientDHParams builds and sends client_DH_inner_data and
// dispatches on the server's dh_gen_ok/retry/fail response. On
// dh_gen_retry it resends with retry_id = aux_hash(authKey) in place of
// the first attempt's retry_id=0, up to maxDHGenResends times.
func (a *Authenticator) sendSetClientDHParams(s Sender, nonce, serverNonce [16]byte, newNonce [32]byte, tmpKey, tmpIV []byte, gB *big.Int, authKey [256]byte, timeOffset time.Duration) (Result, error) {
	var retryID int64

	for attempt := 0; ; attempt++ {
		code, r, err := a.setClientDHParamsOnce(s, nonce, serverNonce, tmpKey, tmpIV, gB, retryID)
		if err != nil {
			return Result{}, err
		}

		switch code {
		case protocol.CodeDHGenOK:
			return a.verifyDHGenOK(r, nonce, serverNonce, newNonce, authKey, timeOffset)
		case protocol.CodeDHGenRetry:
			if attempt >= maxDHGenResends {
				return Result{}, fmt.Errorf("%w: dh_gen_retry exceeded %d resends", errs.RetryRequested, maxDHGenResends)
			}
			aux := AuxHash(authKey)
			retryID = int64(binary.LittleEndian.Uint64(aux[:]))
			continue
		case protocol.CodeDHGenFail:
			return Result{}, fmt.Errorf("%w: dh_gen_fail", errs.SecurityError)
		default:
			return Result{}, fmt.Errorf("%w: expected dh_gen outcome, got %#x", errs.ProtocolMismatch, code)
		}
	}
}

// setClientDHParamsOnce sends one SetClientDhParams with the given
// retry_id and returns the server's response constructor plus a reader
// positioned just past it.
func (a *Authenticator) setClientDHParamsOnce(s Sender, nonce, serverNonce [16]byte, tmpKey, tmpIV []byte, gB *big.Int, retryID int64) (uint32, *codec.Reader, error) {
	inner := codec.NewWriter(0)
	inner.Uint32(protocol.CodeClientDHInnerData)
	inner.Raw(nonce[:])
	inner.Raw(serverNonce[:])
	inner.Int64(retryID)
	inner.TgBytes(minimalBigEndian(gB))

	digest := crypto.SHA1(inner.Bytes())
	plain := append(append([]byte(nil), digest[:]...), inner.Bytes()...)
	if pad := (16 - len(plain)%16) % 16; pad != 0 {
		padding := make([]byte, pad)
		frand.Read(padding)
		plain = append(plain, padding...)
	}
	encrypted, err := ige.Encrypt(plain, tmpKey, tmpIV)
	if err != nil {
		return 0, nil, err
	}

	w := codec.NewWriter(0)
	w.Uint32(protocol.CodeSetClientDHParams)
	w.Raw(nonce[:])
	w.Raw(serverNonce[:])
	w.TgBytes(encrypted)
	if err := s.Send(plainsender.Wrap(w.Bytes())); err != nil {
		return 0, nil, err
	}

	raw, err := s.Recv()
	if err != nil {
		return 0, nil, err
	}
	payload, err := plainsender.Unwrap(raw)
	if err != nil {
		return 0, nil, err
	}

	r := codec.NewReader(payload)
	code, err := r.Uint32()
	if err != nil {
		return 0, nil, err
	}
	return code, r, nil
}

func (a *Authenticator) verifyDHGenOK(r *codec.Reader, nonce, serverNonce [16]byte, newNonce [32]byte, authKey [256]byte, timeOffset time.Duration) (Result, error) {
	respNonce, err := r.Raw(16)
	if err != nil {
		return Result{}, err
	}
	if [16]byte(respNonce) != nonce {
		return Result{}, fmt.Errorf("%w: nonce mismatch in dh_gen_ok", errs.SecurityError)
	}
	respServerNonce, err := r.Raw(16)
	if err != nil {
		return Result{}, err
	}
	if [16]byte(respServerNonce) != serverNonce {
		return Result{}, fmt.Errorf("%w: server_nonce mismatch in dh_gen_ok", errs.SecurityError)
	}
	newNonceHash1, err := r.Raw(16)
	if err != nil {
		return Result{}, err
	}

	auxHash := AuxHash(authKey)
	var buf []byte
	buf = append(buf, newNonce[:]...)
	buf = append(buf, 0x01)
	buf = append(buf, auxHash[:]...)
	expected := crypto.SHA1(buf)
	if [16]byte(newNonceHash1) != [16]byte(expected[4:20]) {
		return Result{}, fmt.Errorf("%w: invalid new nonce hash", errs.SecurityError)
	}

	return Result{AuthKey: authKey, TimeOffset: timeOffset}, nil
}

// AuxHash returns the first 8 bytes (the 64 higher-order bits) of
// SHA1(authKey), the key's aux_hash, used both in the new_nonce_hash1
// check and as retry_id on a dh_gen_retry resend.
func AuxHash(authKey [256]byte) [8]byte {
	sum := crypto.SHA1(authKey[:])
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}

func randomDHExponent() *big.Int {
	b := make([]byte, 256)
	frand.Read(b)
	return new(big.Int).SetBytes(b)
}

// sanityCheckDHParams enforces spec.md §4.5 Step 3's DH bounds: dh_prime
// is 2048 bits, g is one of Telegram's six well-known small generators,
// and 1 < g_a < dh_prime-1.
func sanityCheckDHParams(dhPrime *big.Int, g int32, gA *big.Int) error {
	if dhPrime.BitLen() != 2048 {
		return fmt.Errorf("%w: dh_prime is %d bits, want 2048", errs.SecurityError, dhPrime.BitLen())
	}
	switch g {
	case 2, 3, 4, 5, 6, 7:
	default:
		return fmt.Errorf("%w: g=%d is not one of the allowed generators", errs.SecurityError, g)
	}
	one := big.NewInt(1)
	dhPrimeMinusOne := new(big.Int).Sub(dhPrime, one)
	if gA.Cmp(one) <= 0 || gA.Cmp(dhPrimeMinusOne) >= 0 {
		return fmt.Errorf("%w: g_a out of range (1, dh_prime-1)", errs.SecurityError)
	}
	return nil
}

func minimalBigEndian(v *big.Int) []byte {
	b := v.Bytes()
	if len(b) == 0 {
		return []byte{0}
	}
	return b
}
