package types

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Bytes32FromString right-pads an ASCII reference into a 32-byte word, the
// form merchants use for human readable payment and business identifiers.
// It returns an error when s is longer than 32 bytes.
func Bytes32FromString(s string) (common.Hash, error) {
	if len(s) > common.HashLength {
		return common.Hash{}, fmt.Errorf("types: %q exceeds %d bytes", s, common.HashLength)
	}
	var h common.Hash
	copy(h[:], s)
	return h, nil
}

// MustBytes32 is like Bytes32FromString but panics on error.
func MustBytes32(s string) common.Hash {
	h, err := Bytes32FromString(s)
	if err != nil {
		panic(err)
	}
	return h
}

// ParseBytes32 accepts either a 0x-prefixed 32-byte hex string or an ASCII
// reference of at most 32 bytes.
func ParseBytes32(s string) (common.Hash, error) {
	if strings.HasPrefix(s, "0x") && len(s) == 2+2*common.HashLength {
		b, err := hexutil.Decode(s)
		if err != nil {
			return common.Hash{}, fmt.Errorf("types: parse %q: %w", s, err)
		}
		return common.BytesToHash(b), nil
	}
	return Bytes32FromString(s)
}
