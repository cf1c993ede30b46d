package pullpay

import (
	"github.com/ethereum/go-ethereum/common"
)

// validator accumulates the first field failure so call sites read as a
// flat list of rules.
type validator struct {
	err error
}

func (v *validator) fail(field string, err error) {
	if v.err == nil {
		v.err = &ValidationError{Field: field, Err: err}
	}
}

func (v *validator) identity(field string, a common.Address) {
	if a == (common.Address{}) {
		v.fail(field, ErrInvalidIdentity)
	}
}

func (v *validator) word(field string, h common.Hash) {
	if h == (common.Hash{}) {
		v.fail(field, ErrZeroValue)
	}
}

func (v *validator) text(field, s string) {
	if s == "" {
		v.fail(field, ErrEmptyString)
	}
}

// positive requires 0 < n < OverflowLimit.
func (v *validator) positive(field string, n int64) {
	if n <= 0 {
		v.fail(field, ErrZeroValue)
		return
	}
	v.bounded(field, n)
}

// bounded requires 0 <= n < OverflowLimit.
func (v *validator) bounded(field string, n int64) {
	switch {
	case n < 0:
		v.fail(field, ErrZeroValue)
	case n >= OverflowLimit:
		v.fail(field, ErrOverflowLimit)
	}
}
