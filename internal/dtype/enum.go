package dtype

import (
	"fmt"

	"github.com/perigee-data/groundcore/internal/dict"
)

// enumType is the shared implementation of the 16-bit dictionary-backed
// types. The physical descriptor is a big-endian unsigned 16-bit integer;
// the logical value is the dictionary entry for the decoded opcode.
type enumType struct {
	name  string
	pdt   *PrimitiveType
	table dict.Table
}

func newEnumType(name string, table dict.Table) enumType {
	return enumType{name: name, pdt: primitives["MSB_U16"], table: table}
}

// Name returns the canonical type name.
func (t *enumType) Name() string { return t.name }

// PDT returns the physical descriptor name.
func (t *enumType) PDT() string { return t.pdt.Name() }

// NBits returns the encoded width in bits.
func (t *enumType) NBits() int { return t.pdt.NBits() }

// NBytes returns the encoded width in bytes.
func (t *enumType) NBytes() int { return t.pdt.NBytes() }

// Max returns the physical descriptor's maximum raw value.
func (t *enumType) Max() float64 { return t.pdt.Max() }

// Encode serializes a symbolic name via reverse dictionary lookup.
func (t *enumType) Encode(v any) ([]byte, error) {
	name, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s requires a name string, got %T", ErrTypeMismatch, t.name, v)
	}
	if t.table == nil {
		return nil, fmt.Errorf("%w: no dictionary bound to %s", ErrUnknownName, t.name)
	}

	code, ok := t.table.CodeForName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q has no %s entry", ErrUnknownName, name, t.name)
	}
	return t.pdt.Encode(uint64(code))
}

// Decode returns the dict.Entry for the decoded opcode.
func (t *enumType) Decode(b []byte) (any, error) {
	raw, err := t.pdt.Decode(b)
	if err != nil {
		return nil, err
	}
	code := uint16(raw.(uint64))

	if t.table == nil {
		return nil, fmt.Errorf("%w: no dictionary bound to %s", ErrUnknownCode, t.name)
	}
	name, ok := t.table.NameForCode(code)
	if !ok {
		return nil, fmt.Errorf("%w: 0x%04X has no %s entry", ErrUnknownCode, code, t.name)
	}
	return dict.Entry{Code: code, Name: name}, nil
}

// DecodeRaw returns the untransformed 16-bit opcode.
func (t *enumType) DecodeRaw(b []byte) (any, error) {
	return t.pdt.Decode(b)
}

// Validate reports whether v is a name with a dictionary entry.
func (t *enumType) Validate(v any, msgs *[]string) bool {
	if _, err := t.Encode(v); err != nil {
		appendMsg(msgs, "value %v is invalid for type %s: %v", v, t.name, err)
		return false
	}
	return true
}

// CmdType is the CMD16 type: a 16-bit command opcode resolved against the
// injected command dictionary.
type CmdType struct {
	enumType
}

// NewCmdType binds the CMD16 type to a command dictionary table.
func NewCmdType(table dict.Table) *CmdType {
	return &CmdType{newEnumType("CMD16", table)}
}

// EVRType is the EVR16 type: a 16-bit event report code resolved against
// the injected event dictionary.
type EVRType struct {
	enumType
}

// NewEVRType binds the EVR16 type to an event dictionary table.
func NewEVRType(table dict.Table) *EVRType {
	return &EVRType{newEnumType("EVR16", table)}
}
