package dtype

import "fmt"

// Range selects the half-open element window [Lo, Hi) of an array decode.
type Range struct {
	Lo, Hi int
}

// ArrayType is a fixed-element-count repetition of one element type. Its
// canonical name is "<element>[<n>]" and its width is the element width
// times the element count.
type ArrayType struct {
	name   string
	elem   Type
	nelems int
}

// NewArrayType composes an element type and a positive element count.
func NewArrayType(elem Type, nelems int) (*ArrayType, error) {
	if elem == nil {
		return nil, fmt.Errorf("%w: array element type is nil", ErrInvalidTypeName)
	}
	if nelems <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidArraySize, nelems)
	}
	return &ArrayType{
		name:   fmt.Sprintf("%s[%d]", elem.Name(), nelems),
		elem:   elem,
		nelems: nelems,
	}, nil
}

// Name returns the canonical array name, e.g. "MSB_U16[3]".
func (t *ArrayType) Name() string { return t.name }

// ElemType returns the element type.
func (t *ArrayType) ElemType() Type { return t.elem }

// NElems returns the fixed element count.
func (t *ArrayType) NElems() int { return t.nelems }

// NBits returns the total encoded width in bits.
func (t *ArrayType) NBits() int { return t.elem.NBits() * t.nelems }

// NBytes returns the total encoded width in bytes.
func (t *ArrayType) NBytes() int { return t.elem.NBytes() * t.nelems }

// Encode implements Type. v must be a []any of exactly NElems values, or
// a single value for one-element arrays.
func (t *ArrayType) Encode(v any) ([]byte, error) {
	if vs, ok := v.([]any); ok {
		return t.EncodeElems(vs...)
	}
	return t.EncodeElems(v)
}

// EncodeElems serializes exactly NElems values as the concatenation of
// their per-element encodings, in order. A different argument count fails
// with ErrArityMismatch.
func (t *ArrayType) EncodeElems(vs ...any) ([]byte, error) {
	if len(vs) != t.nelems {
		return nil, fmt.Errorf("%w: %s expects %d values, got %d", ErrArityMismatch, t.name, t.nelems, len(vs))
	}

	b := make([]byte, 0, t.NBytes())
	for i, v := range vs {
		eb, err := t.elem.Encode(v)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		b = append(b, eb...)
	}
	return b, nil
}

// DecodeAll decodes all NElems values in order.
func (t *ArrayType) DecodeAll(b []byte) ([]any, error) {
	return t.decodeRange(b, 0, t.nelems, false)
}

// DecodeAllRaw decodes all NElems physical values in order, skipping the
// element type's semantic transform.
func (t *ArrayType) DecodeAllRaw(b []byte) ([]any, error) {
	return t.decodeRange(b, 0, t.nelems, true)
}

// DecodeAt decodes the single element at index i.
func (t *ArrayType) DecodeAt(b []byte, i int) (any, error) {
	if i < 0 || i >= t.nelems {
		return nil, fmt.Errorf("%w: index %d for %s", ErrIndexOutOfRange, i, t.name)
	}

	span := t.elem.NBytes()
	if len(b) < (i+1)*span {
		return nil, fmt.Errorf("%w: element %d of %s needs %d bytes, got %d",
			ErrInsufficientData, i, t.name, (i+1)*span, len(b))
	}
	return t.elem.Decode(b[i*span:])
}

// DecodeRange decodes the elements in [lo, hi) as an ordered sub-sequence.
func (t *ArrayType) DecodeRange(b []byte, lo, hi int) ([]any, error) {
	if lo < 0 || hi > t.nelems || lo > hi {
		return nil, fmt.Errorf("%w: range [%d, %d) for %s", ErrIndexOutOfRange, lo, hi, t.name)
	}
	if len(b) < hi*t.elem.NBytes() {
		return nil, fmt.Errorf("%w: range [%d, %d) of %s needs %d bytes, got %d",
			ErrIndexOutOfRange, lo, hi, t.name, hi*t.elem.NBytes(), len(b))
	}
	return t.decodeRange(b, lo, hi, false)
}

// DecodeIndex decodes with a dynamic index: nil selects the whole array,
// an int selects one element, and a Range selects a sub-sequence. Any
// other index kind fails with ErrInvalidIndexType.
func (t *ArrayType) DecodeIndex(b []byte, index any) (any, error) {
	switch idx := index.(type) {
	case nil:
		return t.DecodeAll(b)
	case int:
		return t.DecodeAt(b, idx)
	case Range:
		return t.DecodeRange(b, idx.Lo, idx.Hi)
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidIndexType, index)
	}
}

func (t *ArrayType) decodeRange(b []byte, lo, hi int, raw bool) ([]any, error) {
	span := t.elem.NBytes()
	if len(b) < hi*span {
		return nil, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrInsufficientData, t.name, hi*span, len(b))
	}

	vs := make([]any, 0, hi-lo)
	for i := lo; i < hi; i++ {
		var (
			v   any
			err error
		)
		if raw {
			v, err = t.elem.DecodeRaw(b[i*span:])
		} else {
			v, err = t.elem.Decode(b[i*span:])
		}
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		vs = append(vs, v)
	}
	return vs, nil
}

// Decode implements Type; it decodes all elements.
func (t *ArrayType) Decode(b []byte) (any, error) {
	vs, err := t.DecodeAll(b)
	if err != nil {
		return nil, err
	}
	return vs, nil
}

// DecodeRaw implements Type; it decodes all physical element values.
func (t *ArrayType) DecodeRaw(b []byte) (any, error) {
	vs, err := t.DecodeAllRaw(b)
	if err != nil {
		return nil, err
	}
	return vs, nil
}

// Validate reports whether vs holds exactly NElems values each valid for
// the element type. vs may be a []any or a single value for 1-element
// arrays.
func (t *ArrayType) Validate(v any, msgs *[]string) bool {
	vs, ok := v.([]any)
	if !ok {
		vs = []any{v}
	}
	if len(vs) != t.nelems {
		appendMsg(msgs, "%s expects %d values, got %d", t.name, t.nelems, len(vs))
		return false
	}

	valid := true
	for _, ev := range vs {
		if !t.elem.Validate(ev, msgs) {
			valid = false
		}
	}
	return valid
}
