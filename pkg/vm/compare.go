package vm

import (
	"github.com/pkg/errors"

	"github.com/kristofer/cinder/pkg/bytecode"
	"github.com/kristofer/cinder/pkg/value"
)

// compare implements the three comparison opcodes' underlying
// predicate, before the RA inversion flag is applied. CMP_EQ uses
// value.Equal and accepts any pair of types; CMP_LT/CMP_LE are
// numeric-only.
func compare(op bytecode.Op, l, r value.Value) (bool, error) {
	switch op {
	case bytecode.OpCMPEQ:
		return value.Equal(l, r), nil
	case bytecode.OpCMPLT, bytecode.OpCMPLE:
		if l.Type != value.Number || r.Type != value.Number {
			return false, errors.New("comparison of non-numeric values")
		}
		if op == bytecode.OpCMPLT {
			return l.Num() < r.Num(), nil
		}
		return l.Num() <= r.Num(), nil
	default:
		return false, errors.New("compare called with non-comparison opcode")
	}
}
