package rsa

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"math/big"
)

// LoadPublicKeysPEM decodes zero or more concatenated PEM blocks of type
// "RSA PUBLIC KEY" (PKCS#1, the format Telegram ships its DC keys in)
// into PublicKey values suitable for NewTable. PEM/X.509 decoding has no
// counterpart anywhere in the example pack, so it is built directly on
// crypto/x509 and encoding/pem rather than forced onto an unrelated
// third-party parser.
func LoadPublicKeysPEM(data []byte) ([]PublicKey, error) {
	var keys []PublicKey
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "RSA PUBLIC KEY" {
			continue
		}
		pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse RSA PUBLIC KEY block: %w", err)
		}
		keys = append(keys, PublicKey{
			N: new(big.Int).Set(pub.N),
			E: big.NewInt(int64(pub.E)),
		})
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no RSA PUBLIC KEY blocks found")
	}
	return keys, nil
}
