// Package signature canonicalizes signed payment parameters and recovers the
// secp256k1 key that signed them.
//
// Every payload starts with a 32-byte tag derived from the signing domain and
// the schema identifier, followed by the tightly packed fields in schema
// order. Two schemas never produce the same tag, so a signature made for one
// schema never verifies under another even when the field values coincide.
package signature

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// DefaultDomain is the signing domain used when none is bound.
const DefaultDomain = "pullpay"

// Kind is the wire type of a canonicalized field.
type Kind uint8

const (
	KindAddress Kind = iota + 1 // 20 bytes
	KindBytes32                 // 32 bytes
	KindString                  // raw UTF-8 bytes, at most one per schema
	KindUint256                 // 32 bytes big-endian
)

func (k Kind) String() string {
	switch k {
	case KindAddress:
		return "address"
	case KindBytes32:
		return "bytes32"
	case KindString:
		return "string"
	case KindUint256:
		return "uint256"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Field names one attested parameter and its wire type.
type Field struct {
	Name string
	Kind Kind
}

// Schema is an ordered list of attested fields under a versioned identifier.
type Schema struct {
	id     string
	domain string
	fields []Field
}

// NewSchema builds a schema. It panics when more than one variable-length
// field is declared, since packed encoding would make the payload ambiguous.
func NewSchema(id string, fields ...Field) Schema {
	dynamic := 0
	for _, f := range fields {
		if f.Kind == KindString {
			dynamic++
		}
	}
	if dynamic > 1 {
		panic(fmt.Sprintf("signature: schema %q declares %d string fields", id, dynamic))
	}
	return Schema{id: id, fields: fields}
}

// ID returns the schema identifier, e.g. "recurring/v1".
func (s Schema) ID() string { return s.id }

// Fields returns a copy of the schema's field list.
func (s Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Domain returns the bound signing domain.
func (s Schema) Domain() string {
	if s.domain == "" {
		return DefaultDomain
	}
	return s.domain
}

// Bind returns a copy of the schema bound to a signing domain. Deployments
// with distinct domains never accept each other's signatures.
func (s Schema) Bind(domain string) Schema {
	s.domain = domain
	return s
}

// Tag returns the 32-byte prefix of every payload under this schema.
func (s Schema) Tag() common.Hash {
	return crypto.Keccak256Hash([]byte(s.Domain() + ":" + s.id))
}

// Canonicalize encodes values in schema order. The number, order and kind of
// values must match the schema exactly.
func (s Schema) Canonicalize(values ...Value) ([]byte, error) {
	if len(values) != len(s.fields) {
		return nil, fmt.Errorf("%w: %s expects %d fields, got %d", ErrSchemaMismatch, s.id, len(s.fields), len(values))
	}

	tag := s.Tag()
	buf := make([]byte, 0, common.HashLength*(len(values)+1))
	buf = append(buf, tag[:]...)

	for i, f := range s.fields {
		v := values[i]
		if v.kind != f.Kind {
			return nil, fmt.Errorf("%w: %s field %q is %s, got %s", ErrSchemaMismatch, s.id, f.Name, f.Kind, v.kind)
		}
		switch v.kind {
		case KindAddress:
			buf = append(buf, v.addr[:]...)
		case KindBytes32:
			buf = append(buf, v.word[:]...)
		case KindString:
			buf = append(buf, v.str...)
		case KindUint256:
			if v.num == nil || v.num.Sign() < 0 || v.num.BitLen() > 256 {
				return nil, fmt.Errorf("%w: %s field %q out of uint256 range", ErrSchemaMismatch, s.id, f.Name)
			}
			buf = append(buf, common.LeftPadBytes(v.num.Bytes(), 32)...)
		}
	}
	return buf, nil
}

// Digest returns keccak256 of the canonical payload.
func (s Schema) Digest(values ...Value) (common.Hash, error) {
	payload, err := s.Canonicalize(values...)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(payload), nil
}

// ──────────────────────────────────────────────────
// Values
// ──────────────────────────────────────────────────

// Value is a typed field value.
type Value struct {
	kind Kind
	addr common.Address
	word common.Hash
	str  string
	num  *big.Int
}

// Address wraps an account identity.
func Address(a common.Address) Value { return Value{kind: KindAddress, addr: a} }

// Bytes32 wraps a 32-byte word such as a payment or business identifier.
func Bytes32(h common.Hash) Value { return Value{kind: KindBytes32, word: h} }

// String wraps a string such as a currency code.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Uint wraps a non-negative integer. Negative values fail canonicalization.
func Uint(n int64) Value { return Value{kind: KindUint256, num: big.NewInt(n)} }

// Uint256 wraps an arbitrary precision integer.
func Uint256(n *big.Int) Value { return Value{kind: KindUint256, num: n} }

// Kind returns the wire type of the value.
func (v Value) Kind() Kind { return v.kind }
