package txn

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/airchains-network/txpipe/types"
)

// ErrSignatureMismatch is returned when a signature does not belong to the transaction it is
// assembled with, typically because a field changed after signing.
var ErrSignatureMismatch = fmt.Errorf("%w: signature does not match transaction", types.ErrValidation)

// Signature is a secp256k1 signature over one signing payload. Hash identifies that payload;
// the signature is valid for nothing else.
type Signature struct {
	R          [32]byte
	S          [32]byte
	RecoveryID byte
	Hash       common.Hash
}

// SignatureFromBytes splits a 65 byte [R || S || V] signature as produced by crypto.Sign
func SignatureFromBytes(sig []byte, hash common.Hash) (Signature, error) {
	if len(sig) != crypto.SignatureLength {
		return Signature{}, fmt.Errorf("%w: signature must be %d bytes, got %d", types.ErrValidation, crypto.SignatureLength, len(sig))
	}
	if sig[64] > 1 {
		return Signature{}, fmt.Errorf("%w: invalid recovery id %d", types.ErrValidation, sig[64])
	}
	var s Signature
	copy(s.R[:], sig[:32])
	copy(s.S[:], sig[32:64])
	s.RecoveryID = sig[64]
	s.Hash = hash
	return s, nil
}

// Bytes returns the 65 byte [R || S || V] form
func (s Signature) Bytes() []byte {
	out := make([]byte, crypto.SignatureLength)
	copy(out[:32], s.R[:])
	copy(out[32:64], s.S[:])
	out[64] = s.RecoveryID
	return out
}

func (s Signature) String() string {
	return "0x" + hex.EncodeToString(s.Bytes())
}
