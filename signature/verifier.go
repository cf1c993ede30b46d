package signature

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrInvalidSignature is returned when a signature is malformed, cannot be
	// recovered, or recovers to an unexpected signer.
	ErrInvalidSignature = errors.New("signature: invalid signature")

	// ErrSchemaMismatch is returned when values do not fit a schema.
	ErrSchemaMismatch = errors.New("signature: values do not match schema")
)

// Signature is a secp256k1 signature split into its components. V is either
// 27/28 or the raw recovery id 0/1.
type Signature struct {
	V uint8       `json:"v"`
	R common.Hash `json:"r"`
	S common.Hash `json:"s"`
}

// FromBytes splits a 65-byte r||s||v signature.
func FromBytes(b []byte) (Signature, error) {
	if len(b) != crypto.SignatureLength {
		return Signature{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, crypto.SignatureLength, len(b))
	}
	var sig Signature
	copy(sig.R[:], b[:32])
	copy(sig.S[:], b[32:64])
	sig.V = b[64]
	if sig.V < 27 {
		sig.V += 27
	}
	return sig, nil
}

// ParseHex parses a 0x-prefixed 65-byte signature.
func ParseHex(s string) (Signature, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return FromBytes(b)
}

// Bytes returns the 65-byte r||s||v form with V in 27/28.
func (s Signature) Bytes() []byte {
	out := make([]byte, 0, crypto.SignatureLength)
	out = append(out, s.R[:]...)
	out = append(out, s.S[:]...)
	v := s.V
	if v < 27 {
		v += 27
	}
	return append(out, v)
}

// Hex returns the 0x-prefixed 65-byte form.
func (s Signature) Hex() string { return hexutil.Encode(s.Bytes()) }

// recoveryID normalizes V to 0/1.
func (s Signature) recoveryID() (byte, bool) {
	switch s.V {
	case 0, 1:
		return s.V, true
	case 27, 28:
		return s.V - 27, true
	}
	return 0, false
}

// Sign signs the digest of values under schema. The digest is signed as is,
// without a personal-message prefix.
func Sign(schema Schema, key *ecdsa.PrivateKey, values ...Value) (Signature, error) {
	digest, err := schema.Digest(values...)
	if err != nil {
		return Signature{}, err
	}
	raw, err := crypto.Sign(digest[:], key)
	if err != nil {
		return Signature{}, err
	}
	return FromBytes(raw)
}

// Verifier checks signatures against a single schema.
type Verifier struct {
	schema Schema
}

// NewVerifier returns a Verifier bound to schema.
func NewVerifier(schema Schema) *Verifier {
	return &Verifier{schema: schema}
}

// Schema returns the schema this verifier accepts.
func (v *Verifier) Schema() Schema { return v.schema }

// Recover returns the address that produced sig over values.
func (v *Verifier) Recover(sig Signature, values ...Value) (common.Address, error) {
	digest, err := v.schema.Digest(values...)
	if err != nil {
		return common.Address{}, err
	}

	recID, ok := sig.recoveryID()
	if !ok {
		return common.Address{}, fmt.Errorf("%w: bad recovery id %d", ErrInvalidSignature, sig.V)
	}
	r := new(big.Int).SetBytes(sig.R[:])
	s := new(big.Int).SetBytes(sig.S[:])
	if !crypto.ValidateSignatureValues(recID, r, s, true) {
		return common.Address{}, fmt.Errorf("%w: values out of range", ErrInvalidSignature)
	}

	raw := make([]byte, crypto.SignatureLength)
	copy(raw[:32], sig.R[:])
	copy(raw[32:64], sig.S[:])
	raw[64] = recID

	pub, err := crypto.SigToPub(digest[:], raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Verify checks that sig over values recovers to expected.
func (v *Verifier) Verify(sig Signature, expected common.Address, values ...Value) error {
	if expected == (common.Address{}) {
		return fmt.Errorf("%w: no expected signer", ErrInvalidSignature)
	}
	signer, err := v.Recover(sig, values...)
	if err != nil {
		return err
	}
	if signer != expected {
		return fmt.Errorf("%w: recovered %s", ErrInvalidSignature, signer.Hex())
	}
	return nil
}
