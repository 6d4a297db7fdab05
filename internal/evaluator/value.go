package evaluator

import (
	"fmt"
	"math/big"

	"github.com/patterncore/patternlang/internal/langerr"
)

// valueKind discriminates the Go-level representation an evaluated
// expression carries, independent of the eventual Pattern.Kind it may feed.
type valueKind int

const (
	vInt valueKind = iota
	vFloat
	vBool
	vString
	vVoid
)

// value is the evaluator's runtime expression result, per spec.md §4.5
// "Expressions": integer arithmetic uses a signed/unsigned 128-bit tower,
// backed here by math/big since no third-party bignum appears anywhere in
// the example pack (see DESIGN.md).
type value struct {
	kind   valueKind
	i      *big.Int
	signed bool
	width  int // bits; 0 means "untyped", treated as 64 bits when normalized
	f      float64
	b      bool
	s      string
}

func voidValue() value { return value{kind: vVoid} }

func intValue(i *big.Int, signed bool, width int) value {
	return value{kind: vInt, i: i, signed: signed, width: width}
}

func uintVal(v uint64, width int) value {
	return intValue(new(big.Int).SetUint64(v), false, width)
}

func sintVal(v int64, width int) value {
	return intValue(big.NewInt(v), true, width)
}

func boolVal(b bool) value { return value{kind: vBool, b: b} }
func floatVal(f float64) value { return value{kind: vFloat, f: f} }
func stringVal(s string) value { return value{kind: vString, s: s} }

// mask truncates i to width bits (two's complement wrap for signed values).
func mask(i *big.Int, width int) *big.Int {
	if width <= 0 || width >= 128 {
		return i
	}
	m := new(big.Int).Lsh(big.NewInt(1), uint(width))
	m.Sub(m, big.NewInt(1))
	out := new(big.Int).And(i, m)
	return out
}

// signedView reinterprets an unsigned width-bit magnitude as its two's
// complement signed value.
func signedView(i *big.Int, width int) *big.Int {
	if width <= 0 {
		return i
	}
	top := new(big.Int).Lsh(big.NewInt(1), uint(width-1))
	if i.Cmp(top) < 0 {
		return i
	}
	full := new(big.Int).Lsh(big.NewInt(1), uint(width))
	return new(big.Int).Sub(i, full)
}

func (v value) normalized() value {
	if v.kind != vInt {
		return v
	}
	w := v.width
	if w == 0 {
		w = 64
	}
	m := mask(v.i, w)
	if v.signed {
		m = signedView(m, w)
	}
	return intValue(m, v.signed, v.width)
}

func (v value) asFloat() float64 {
	switch v.kind {
	case vFloat:
		return v.f
	case vInt:
		f, _ := new(big.Float).SetInt(v.i).Float64()
		return f
	case vBool:
		if v.b {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func (v value) asBig() *big.Int {
	switch v.kind {
	case vInt:
		return v.i
	case vBool:
		if v.b {
			return big.NewInt(1)
		}
		return big.NewInt(0)
	case vFloat:
		i, _ := big.NewFloat(v.f).Int(nil)
		return i
	default:
		return big.NewInt(0)
	}
}

func (v value) asBool() bool {
	switch v.kind {
	case vBool:
		return v.b
	case vInt:
		return v.i.Sign() != 0
	case vFloat:
		return v.f != 0
	case vString:
		return v.s != ""
	default:
		return false
	}
}

func (v value) String() string {
	switch v.kind {
	case vInt:
		return v.i.String()
	case vFloat:
		return fmt.Sprintf("%g", v.f)
	case vBool:
		return fmt.Sprintf("%t", v.b)
	case vString:
		return v.s
	default:
		return ""
	}
}

// promote implements C-style promotion of mixed int operands per spec.md
// §4.5: "signed widens to unsigned of same width, unsigned widens to signed
// of next width when possible, otherwise remains unsigned".
func promote(a, b value) (int, bool) {
	wa, wb := a.width, b.width
	if wa == 0 {
		wa = 64
	}
	if wb == 0 {
		wb = 64
	}
	width := wa
	if wb > width {
		width = wb
	}
	signed := a.signed && b.signed
	if a.signed != b.signed {
		// Mixed signedness at equal width: the result is unsigned at that
		// width (signed widens to unsigned of the same width).
		signed = false
		if wa != wb {
			// Differing widths widen to the wider type's own signedness.
			if wa > wb {
				signed = a.signed
			} else {
				signed = b.signed
			}
		}
	}
	return width, signed
}

func binaryIntOp(op string, a, b value, line int) (value, error) {
	width, signed := promote(a, b)
	x, y := a.asBig(), b.asBig()
	var r *big.Int
	switch op {
	case "+":
		r = new(big.Int).Add(x, y)
	case "-":
		r = new(big.Int).Sub(x, y)
	case "*":
		r = new(big.Int).Mul(x, y)
	case "/":
		if y.Sign() == 0 {
			return value{}, langerr.At(langerr.KindEvaluation, line, "division by zero")
		}
		r = new(big.Int).Quo(x, y)
	case "%":
		if y.Sign() == 0 {
			return value{}, langerr.At(langerr.KindEvaluation, line, "modulo by zero")
		}
		r = new(big.Int).Rem(x, y)
	case "&":
		r = new(big.Int).And(x, y)
	case "|":
		r = new(big.Int).Or(x, y)
	case "^":
		r = new(big.Int).Xor(x, y)
	case "<<":
		r = new(big.Int).Lsh(x, uint(y.Int64()))
	case ">>":
		r = new(big.Int).Rsh(x, uint(y.Int64()))
	default:
		return value{}, langerr.At(langerr.KindEvaluation, line, "unsupported integer operator "+op)
	}
	return intValue(mask(r, width), signed, width).normalized(), nil
}

func compare(a, b value) int {
	if a.kind == vFloat || b.kind == vFloat {
		af, bf := a.asFloat(), b.asFloat()
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return a.asBig().Cmp(b.asBig())
}
