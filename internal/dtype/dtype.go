// Package dtype implements the binary type system of the ground data
// system: a registry of named fixed-width codecs that give raw telemetry
// and command bytes their typed meaning.
//
// Type names follow the flight naming convention: an optional byte-order
// prefix (MSB_ or LSB_), a kind letter (U, I, F, D, S) and a width suffix,
// e.g. "MSB_U16", "LSB_D64", "S32". Eight-bit and string kinds take no
// byte-order prefix. The reserved names TIME8, TIME32, TIME40, TIME64,
// CMD16 and EVR16 resolve to semantic types layered over a primitive
// physical encoding. Any name may carry an "[n]" suffix for a fixed-size
// array.
package dtype

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Type is a codec for one fixed-width binary field.
//
// Decode applies the type's logical transform (dictionary lookup, epoch
// conversion); DecodeRaw returns the untransformed physical value. For
// primitive types the two are identical.
type Type interface {
	// Name returns the canonical type name, e.g. "MSB_U16".
	Name() string

	// NBits returns the encoded width in bits.
	NBits() int

	// NBytes returns the encoded width in bytes.
	NBytes() int

	// Encode serializes one value to its fixed-width binary form.
	Encode(v any) ([]byte, error)

	// Decode deserializes one value from the start of b.
	Decode(b []byte) (any, error)

	// DecodeRaw deserializes the physical value from the start of b,
	// skipping any semantic transform.
	DecodeRaw(b []byte) (any, error)

	// Validate reports whether v could be encoded by this type, appending
	// a human-readable message to msgs for every violation. It never
	// fails; it is the pre-flight counterpart to Encode.
	Validate(v any, msgs *[]string) bool
}

// Equal reports whether two types are interchangeable. Descriptor equality
// is by canonical name: the name fully determines width, signedness and
// byte order.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Name() == b.Name()
}

// PrimitiveType is an immutable descriptor and codec for a scalar binary
// field: unsigned or signed integer, IEEE-754 float, or fixed-length ASCII
// string.
type PrimitiveType struct {
	name   string
	order  binary.ByteOrder // nil for order-independent kinds
	nbits  int
	signed bool
	float  bool
	str    bool
}

// fixed-width numeric primitives; string types are parsed on demand
var primitives = buildPrimitives()

func buildPrimitives() map[string]*PrimitiveType {
	m := map[string]*PrimitiveType{
		"U8": {name: "U8", nbits: 8},
		"I8": {name: "I8", nbits: 8, signed: true},
	}
	for _, width := range []int{16, 32, 64} {
		for prefix, order := range map[string]binary.ByteOrder{
			"MSB_": binary.BigEndian,
			"LSB_": binary.LittleEndian,
		} {
			u := fmt.Sprintf("%sU%d", prefix, width)
			i := fmt.Sprintf("%sI%d", prefix, width)
			m[u] = &PrimitiveType{name: u, order: order, nbits: width}
			m[i] = &PrimitiveType{name: i, order: order, nbits: width, signed: true}
		}
	}
	for prefix, order := range map[string]binary.ByteOrder{
		"MSB_": binary.BigEndian,
		"LSB_": binary.LittleEndian,
	} {
		f := prefix + "F32"
		d := prefix + "D64"
		m[f] = &PrimitiveType{name: f, order: order, nbits: 32, float: true}
		m[d] = &PrimitiveType{name: d, order: order, nbits: 64, float: true}
	}
	return m
}

// Name returns the canonical type name.
func (t *PrimitiveType) Name() string { return t.name }

// NBits returns the encoded width in bits.
func (t *PrimitiveType) NBits() int { return t.nbits }

// NBytes returns the encoded width in bytes.
func (t *PrimitiveType) NBytes() int { return t.nbits / 8 }

// Signed reports whether the type is a signed integer.
func (t *PrimitiveType) Signed() bool { return t.signed }

// Float reports whether the type is an IEEE-754 float.
func (t *PrimitiveType) Float() bool { return t.float }

// IsString reports whether the type is a fixed-length ASCII string.
func (t *PrimitiveType) IsString() bool { return t.str }

// ByteOrder returns the field byte order, or nil for order-independent
// kinds (8-bit integers and strings).
func (t *PrimitiveType) ByteOrder() binary.ByteOrder { return t.order }

// Min returns the smallest representable value, or 0 for string types.
func (t *PrimitiveType) Min() float64 {
	switch {
	case t.str:
		return 0
	case t.float:
		if t.nbits == 32 {
			return -math.MaxFloat32
		}
		return -math.MaxFloat64
	case t.signed:
		return -math.Pow(2, float64(t.nbits-1))
	default:
		return 0
	}
}

// Max returns the largest representable value, or 0 for string types.
func (t *PrimitiveType) Max() float64 {
	switch {
	case t.str:
		return 0
	case t.float:
		if t.nbits == 32 {
			return math.MaxFloat32
		}
		return math.MaxFloat64
	case t.signed:
		return math.Pow(2, float64(t.nbits-1)) - 1
	default:
		return math.Pow(2, float64(t.nbits)) - 1
	}
}

// Encode serializes v into the type's fixed-width binary form. Numeric
// values outside the representable range fail with ErrOutOfRange rather
// than wrapping; values of the wrong kind fail with ErrTypeMismatch.
func (t *PrimitiveType) Encode(v any) ([]byte, error) {
	switch {
	case t.str:
		return t.encodeString(v)
	case t.float:
		return t.encodeFloat(v)
	default:
		return t.encodeInt(v)
	}
}

func (t *PrimitiveType) encodeString(v any) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s requires a string, got %T", ErrTypeMismatch, t.name, v)
	}

	// right-space-pad or truncate to the fixed byte width
	b := make([]byte, t.NBytes())
	n := copy(b, s)
	for i := n; i < len(b); i++ {
		b[i] = ' '
	}
	return b, nil
}

func (t *PrimitiveType) encodeFloat(v any) ([]byte, error) {
	f, ok := toFloat(v)
	if !ok {
		return nil, fmt.Errorf("%w: %s requires a number, got %T", ErrTypeMismatch, t.name, v)
	}

	b := make([]byte, t.NBytes())
	if t.nbits == 32 {
		if !math.IsInf(f, 0) && math.Abs(f) > math.MaxFloat32 {
			return nil, fmt.Errorf("%w: %v exceeds %s range", ErrOutOfRange, f, t.name)
		}
		t.order.PutUint32(b, math.Float32bits(float32(f)))
	} else {
		t.order.PutUint64(b, math.Float64bits(f))
	}
	return b, nil
}

func (t *PrimitiveType) encodeInt(v any) ([]byte, error) {
	b := make([]byte, t.NBytes())

	if t.signed {
		i, ok := toInt64(v)
		if !ok {
			return nil, fmt.Errorf("%w: %s requires an integer, got %T", ErrTypeMismatch, t.name, v)
		}
		if t.nbits < 64 {
			lo := int64(-1) << (t.nbits - 1)
			hi := int64(1)<<(t.nbits-1) - 1
			if i < lo || i > hi {
				return nil, fmt.Errorf("%w: %d outside [%d, %d] for %s", ErrOutOfRange, i, lo, hi, t.name)
			}
		}
		t.putUint(b, uint64(i))
		return b, nil
	}

	u, ok := toUint64(v)
	if !ok {
		if i, isInt := toInt64(v); isInt && i < 0 {
			return nil, fmt.Errorf("%w: %d is negative for unsigned %s", ErrOutOfRange, i, t.name)
		}
		return nil, fmt.Errorf("%w: %s requires an integer, got %T", ErrTypeMismatch, t.name, v)
	}
	if t.nbits < 64 && u > (uint64(1)<<t.nbits)-1 {
		return nil, fmt.Errorf("%w: %d outside [0, %d] for %s", ErrOutOfRange, u, (uint64(1)<<t.nbits)-1, t.name)
	}
	t.putUint(b, u)
	return b, nil
}

func (t *PrimitiveType) putUint(b []byte, u uint64) {
	switch t.NBytes() {
	case 1:
		b[0] = byte(u)
	case 2:
		t.order.PutUint16(b, uint16(u))
	case 4:
		t.order.PutUint32(b, uint32(u))
	case 8:
		t.order.PutUint64(b, u)
	}
}

func (t *PrimitiveType) uint(b []byte) uint64 {
	switch t.NBytes() {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(t.order.Uint16(b))
	case 4:
		return uint64(t.order.Uint32(b))
	default:
		return t.order.Uint64(b)
	}
}

// Decode deserializes one value from the start of b: uint64 for unsigned
// integers, int64 for signed integers, float64 for floats, string for
// string types. Fails with ErrInsufficientData when b is shorter than
// NBytes.
func (t *PrimitiveType) Decode(b []byte) (any, error) {
	if len(b) < t.NBytes() {
		return nil, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrInsufficientData, t.name, t.NBytes(), len(b))
	}

	switch {
	case t.str:
		return string(b[:t.NBytes()]), nil
	case t.float:
		if t.nbits == 32 {
			return float64(math.Float32frombits(t.order.Uint32(b))), nil
		}
		return math.Float64frombits(t.order.Uint64(b)), nil
	case t.signed:
		switch t.NBytes() {
		case 1:
			return int64(int8(b[0])), nil
		case 2:
			return int64(int16(t.order.Uint16(b))), nil
		case 4:
			return int64(int32(t.order.Uint32(b))), nil
		default:
			return int64(t.order.Uint64(b)), nil
		}
	default:
		return t.uint(b), nil
	}
}

// DecodeRaw is identical to Decode for primitive types; semantic
// transforms live in the overlay types.
func (t *PrimitiveType) DecodeRaw(b []byte) (any, error) {
	return t.Decode(b)
}

// Validate reports whether v could be encoded by this type, appending a
// message to msgs for every violation.
func (t *PrimitiveType) Validate(v any, msgs *[]string) bool {
	if t.str {
		s, ok := v.(string)
		if !ok {
			appendMsg(msgs, "value %v (%T) is not a string for type %s", v, v, t.name)
			return false
		}
		if len(s) > t.NBytes() {
			appendMsg(msgs, "string length %d exceeds %d bytes for type %s", len(s), t.NBytes(), t.name)
			return false
		}
		return true
	}

	if t.float {
		f, ok := toFloat(v)
		if !ok {
			appendMsg(msgs, "value %v (%T) is not a number for type %s", v, v, t.name)
			return false
		}
		if t.nbits == 32 && !math.IsInf(f, 0) && math.Abs(f) > math.MaxFloat32 {
			appendMsg(msgs, "value %v is out of range for type %s", f, t.name)
			return false
		}
		return true
	}

	if _, err := t.Encode(v); err != nil {
		appendMsg(msgs, "value %v is invalid for type %s: %v", v, t.name, err)
		return false
	}
	return true
}

func appendMsg(msgs *[]string, format string, args ...any) {
	if msgs != nil {
		*msgs = append(*msgs, fmt.Sprintf(format, args...))
	}
}

// toInt64 converts any Go integer kind to int64, reporting failure for
// non-integers and for uint64 values above the int64 range.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), uint64(n) <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	default:
		return 0, false
	}
}

// toUint64 converts any non-negative Go integer kind to uint64.
func toUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint:
		return uint64(n), true
	case uint8:
		return uint64(n), true
	case uint16:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case uint64:
		return n, true
	case int:
		return uint64(n), n >= 0
	case int8:
		return uint64(n), n >= 0
	case int16:
		return uint64(n), n >= 0
	case int32:
		return uint64(n), n >= 0
	case int64:
		return uint64(n), n >= 0
	default:
		return 0, false
	}
}

// toFloat converts any Go numeric kind to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	if u, ok := toUint64(v); ok {
		return float64(u), true
	}
	return 0, false
}
