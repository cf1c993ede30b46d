package signature_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/xraph/pullpay/signature"
	"github.com/xraph/pullpay/types"
)

// Well-known development key; never holds real funds.
const devKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var devAddress = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

func cancellationValues() []signature.Value {
	return []signature.Value{
		signature.Bytes32(types.MustBytes32("paymentID_1")),
		signature.Address(common.HexToAddress("0x00000000000000000000000000000000000000e1")),
	}
}

func TestSignAndVerify(t *testing.T) {
	key, err := crypto.HexToECDSA(devKeyHex)
	if err != nil {
		t.Fatalf("load key: %v", err)
	}
	if crypto.PubkeyToAddress(key.PublicKey) != devAddress {
		t.Fatalf("unexpected dev address")
	}

	values := cancellationValues()
	sig, err := signature.Sign(signature.RecurringCancellation, key, values...)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if sig.V != 27 && sig.V != 28 {
		t.Errorf("expected V in 27/28, got %d", sig.V)
	}

	v := signature.NewVerifier(signature.RecurringCancellation)
	if err := v.Verify(sig, devAddress, values...); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	signer, err := v.Recover(sig, values...)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if signer != devAddress {
		t.Errorf("recovered %s, want %s", signer.Hex(), devAddress.Hex())
	}
}

func TestVerifyRejectsTamperedField(t *testing.T) {
	key, _ := crypto.GenerateKey()
	signer := crypto.PubkeyToAddress(key.PublicKey)

	values := cancellationValues()
	sig, err := signature.Sign(signature.RecurringCancellation, key, values...)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	tampered := []signature.Value{
		values[0],
		signature.Address(common.HexToAddress("0x00000000000000000000000000000000000000e2")),
	}

	v := signature.NewVerifier(signature.RecurringCancellation)
	if err := v.Verify(sig, signer, tampered...); !errors.Is(err, signature.ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyRejectsOtherSchema(t *testing.T) {
	key, _ := crypto.GenerateKey()
	signer := crypto.PubkeyToAddress(key.PublicKey)

	// Same shape under two schemas.
	a := signature.NewSchema("a/v1", signature.Field{Name: "paymentID", Kind: signature.KindBytes32})
	b := signature.NewSchema("b/v1", signature.Field{Name: "paymentID", Kind: signature.KindBytes32})
	value := signature.Bytes32(types.MustBytes32("paymentID_1"))

	sig, err := signature.Sign(a, key, value)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := signature.NewVerifier(a).Verify(sig, signer, value); err != nil {
		t.Fatalf("verify under signing schema: %v", err)
	}
	if err := signature.NewVerifier(b).Verify(sig, signer, value); !errors.Is(err, signature.ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature under other schema, got %v", err)
	}
}

func TestVerifyRejectsOtherDomain(t *testing.T) {
	key, _ := crypto.GenerateKey()
	signer := crypto.PubkeyToAddress(key.PublicKey)
	values := cancellationValues()

	sig, err := signature.Sign(signature.RecurringCancellation.Bind("staging"), key, values...)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := signature.NewVerifier(signature.RecurringCancellation).Verify(sig, signer, values...); !errors.Is(err, signature.ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature across domains, got %v", err)
	}
}

func TestVerifyMalformed(t *testing.T) {
	key, _ := crypto.GenerateKey()
	signer := crypto.PubkeyToAddress(key.PublicKey)
	values := cancellationValues()
	v := signature.NewVerifier(signature.RecurringCancellation)

	good, err := signature.Sign(signature.RecurringCancellation, key, values...)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	badV := good
	badV.V = 29

	zeroR := good
	zeroR.R = common.Hash{}

	// s above the curve order is never canonical.
	highS := good
	highS.S = common.HexToHash("0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")

	tests := []struct {
		name string
		sig  signature.Signature
	}{
		{"bad recovery id", badV},
		{"zero r", zeroR},
		{"s out of range", highS},
		{"empty", signature.Signature{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := v.Verify(tt.sig, signer, values...); !errors.Is(err, signature.ErrInvalidSignature) {
				t.Errorf("expected ErrInvalidSignature, got %v", err)
			}
		})
	}

	if err := v.Verify(good, common.Address{}, values...); !errors.Is(err, signature.ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature for zero expected signer, got %v", err)
	}
}

func TestCanonicalizeLayout(t *testing.T) {
	s := signature.NewSchema("layout/v1",
		signature.Field{Name: "who", Kind: signature.KindAddress},
		signature.Field{Name: "ref", Kind: signature.KindBytes32},
		signature.Field{Name: "currency", Kind: signature.KindString},
		signature.Field{Name: "amount", Kind: signature.KindUint256},
	)
	addr := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	ref := types.MustBytes32("ref")

	payload, err := s.Canonicalize(
		signature.Address(addr),
		signature.Bytes32(ref),
		signature.String("EUR"),
		signature.Uint(200),
	)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}

	tag := s.Tag()
	want := append([]byte{}, tag[:]...)
	want = append(want, addr[:]...)
	want = append(want, ref[:]...)
	want = append(want, "EUR"...)
	want = append(want, common.LeftPadBytes([]byte{200}, 32)...)

	if !bytes.Equal(payload, want) {
		t.Errorf("payload mismatch:\n got %x\nwant %x", payload, want)
	}
}

func TestCanonicalizeMismatch(t *testing.T) {
	s := signature.RecurringCancellation

	tests := []struct {
		name   string
		values []signature.Value
	}{
		{"too few", []signature.Value{signature.Bytes32(common.Hash{1})}},
		{"wrong order", []signature.Value{signature.Address(common.Address{1}), signature.Bytes32(common.Hash{1})}},
		{"negative uint", []signature.Value{signature.Bytes32(common.Hash{1}), signature.Uint(-1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Canonicalize(tt.values...); !errors.Is(err, signature.ErrSchemaMismatch) {
				t.Errorf("expected ErrSchemaMismatch, got %v", err)
			}
		})
	}
}

func TestSchemaTagsDistinct(t *testing.T) {
	schemas := []signature.Schema{
		signature.RecurringRegistration,
		signature.RecurringTrialRegistration,
		signature.TopUpRegistration,
		signature.TopUpTimeBasedRegistration,
		signature.TopUpExpiringRegistration,
		signature.TopUpTimeBasedExpiringRegistration,
		signature.RecurringCancellation,
		signature.TopUpCancellation,
	}

	seen := make(map[common.Hash]string)
	for _, s := range schemas {
		if prev, ok := seen[s.Tag()]; ok {
			t.Errorf("schema %s shares its tag with %s", s.ID(), prev)
		}
		seen[s.Tag()] = s.ID()
	}
}

func TestSignatureBytesRoundTrip(t *testing.T) {
	key, _ := crypto.GenerateKey()
	sig, err := signature.Sign(signature.RecurringCancellation, key, cancellationValues()...)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	parsed, err := signature.ParseHex(sig.Hex())
	if err != nil {
		t.Fatalf("ParseHex: %v", err)
	}
	if parsed != sig {
		t.Errorf("round trip mismatch: %+v != %+v", parsed, sig)
	}

	if _, err := signature.FromBytes(make([]byte, 64)); !errors.Is(err, signature.ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature for short signature, got %v", err)
	}
}
