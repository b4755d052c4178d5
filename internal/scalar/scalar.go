// Package scalar implements the classifier, widening, and edge-comparison
// rules for the fixed-size 8-byte value payload carried by an ItemRecord.
package scalar

import (
	"fmt"
	"math"
)

// Kind is the closed tagged kind of a scalar value.
type Kind int8

const (
	// Unset means the key has not been registered.
	Unset Kind = iota
	// Init means the key is registered but has not yet been assigned a
	// concrete kind; the first record() call freezes the kind.
	Init
	Other
	Char
	Int
	Uint
	Float
	Str
)

func (k Kind) String() string {
	switch k {
	case Unset:
		return "UNSET"
	case Init:
		return "INIT"
	case Other:
		return "OTHER"
	case Char:
		return "CHAR"
	case Int:
		return "INT"
	case Uint:
		return "UINT"
	case Float:
		return "FLOAT"
	case Str:
		return "STR"
	default:
		return fmt.Sprintf("Kind(%d)", int8(k))
	}
}

// Value is the fixed 8-byte payload of an ItemRecord, interpreted per Kind.
// Widened arrays (length 2 or 3) store the leading element's bit pattern
// here; the true element count travels alongside as ItemRecord.Length.
type Value [8]byte

// Classify inspects v and returns its Kind, its packed Value, and the
// array length (1 for scalars, 1-3 for small arrays). Values that do not
// fit a recognized kind classify as Other (bytes left zeroed) rather than
// failing the call, per the classification-failure policy. The one error
// return is a recognized array type whose length is outside 1..3.
func Classify(v any) (Kind, Value, int, error) {
	switch x := v.(type) {
	case byte:
		var val Value
		val[0] = x
		return Char, val, 1, nil
	case int8:
		return Int, fromInt64(int64(x)), 1, nil
	case int16:
		return Int, fromInt64(int64(x)), 1, nil
	case int32:
		return Int, fromInt64(int64(x)), 1, nil
	case int64:
		return Int, fromInt64(x), 1, nil
	case int:
		return Int, fromInt64(int64(x)), 1, nil
	case uint16:
		return Uint, fromUint64(uint64(x)), 1, nil
	case uint32:
		return Uint, fromUint64(uint64(x)), 1, nil
	case uint64:
		return Uint, fromUint64(x), 1, nil
	case uint:
		return Uint, fromUint64(uint64(x)), 1, nil
	case float32:
		return Float, fromFloat64(float64(x)), 1, nil
	case float64:
		return Float, fromFloat64(x), 1, nil
	case string:
		var val Value
		copy(val[:], x)
		return Str, val, 1, nil
	case []int64:
		return widen(x, Int, func(e int64) uint64 { return uint64(e) })
	case []uint64:
		return widen(x, Uint, func(e uint64) uint64 { return e })
	case []float64:
		return widen(x, Float, func(e float64) uint64 { return math.Float64bits(e) })
	default:
		return Other, Value{}, 1, nil
	}
}

// widen packs a 1-3 element array into a Value by storing the element-type
// bit pattern of xs[0] at full 64-bit width and carrying the true length
// alongside. The wire record's 8-byte data field is not large enough to
// hold three independent 64-bit elements; the leading element is what
// edge-detection compares against, matching the original single-scalar
// union layout this type widens from.
func widen[T any](xs []T, kind Kind, bits func(T) uint64) (Kind, Value, int, error) {
	n := len(xs)
	if n < 1 || n > 3 {
		return Other, Value{}, 0, fmt.Errorf("scalar: array length %d outside 1..3", n)
	}
	var v Value
	putUint64(&v, bits(xs[0]))
	return kind, v, n, nil
}

func fromInt64(x int64) Value   { var v Value; putUint64(&v, uint64(x)); return v }
func fromUint64(x uint64) Value { var v Value; putUint64(&v, x); return v }
func fromFloat64(x float64) Value {
	var v Value
	putUint64(&v, math.Float64bits(x))
	return v
}

func putUint64(v *Value, x uint64) {
	for i := 0; i < 8; i++ {
		v[i] = byte(x >> (8 * uint(i)))
	}
}

// Equal reports bytewise equality, the only comparison this package uses
// for edge detection. Two NaNs with the same bit pattern compare equal;
// NaNs with differing bit patterns do not, since comparison is byte-level
// rather than semantic.
func Equal(k1 Kind, v1 Value, k2 Kind, v2 Value) bool {
	if k1 != k2 {
		return false
	}
	return v1 == v2
}
