package dtype

import (
	"fmt"
	"math"
	"time"
)

// Epoch is the zero point for TIME32, TIME40 and TIME64 fields: the GPS
// epoch, counted without leap-second adjustment.
var Epoch = time.Date(1980, time.January, 6, 0, 0, 0, 0, time.UTC)

// fineNanos is the nanosecond value of one fine-time count (1/256 s).
const fineNanos = 1e9 / 256

// Time8Type encodes a sub-second fraction as an 8-bit count of 1/256
// second units. Its physical descriptor is U8.
type Time8Type struct {
	pdt *PrimitiveType
}

// NewTime8Type returns the TIME8 overlay type.
func NewTime8Type() *Time8Type {
	return &Time8Type{pdt: primitives["U8"]}
}

// Name returns "TIME8".
func (t *Time8Type) Name() string { return "TIME8" }

// PDT returns the physical descriptor name.
func (t *Time8Type) PDT() string { return t.pdt.Name() }

// NBits returns the encoded width in bits.
func (t *Time8Type) NBits() int { return t.pdt.NBits() }

// NBytes returns the encoded width in bytes.
func (t *Time8Type) NBytes() int { return t.pdt.NBytes() }

// Max returns the physical descriptor's maximum raw value.
func (t *Time8Type) Max() float64 { return t.pdt.Max() }

// Encode serializes a fractional second in [0, 1) as its nearest 1/256
// count.
func (t *Time8Type) Encode(v any) ([]byte, error) {
	f, ok := toFloat(v)
	if !ok {
		return nil, fmt.Errorf("%w: TIME8 requires a number, got %T", ErrTypeMismatch, v)
	}

	code := math.Round(f * 256)
	if code < 0 || code > 255 {
		return nil, fmt.Errorf("%w: %v is not a fraction in [0, 1) for TIME8", ErrOutOfRange, f)
	}
	return t.pdt.Encode(uint64(code))
}

// Decode returns the fractional second code/256 as a float64.
func (t *Time8Type) Decode(b []byte) (any, error) {
	raw, err := t.pdt.Decode(b)
	if err != nil {
		return nil, err
	}
	return float64(raw.(uint64)) / 256.0, nil
}

// DecodeRaw returns the untransformed 8-bit count.
func (t *Time8Type) DecodeRaw(b []byte) (any, error) {
	return t.pdt.Decode(b)
}

// Validate reports whether v is a fraction encodable as TIME8.
func (t *Time8Type) Validate(v any, msgs *[]string) bool {
	if _, err := t.Encode(v); err != nil {
		appendMsg(msgs, "value %v is invalid for type TIME8: %v", v, err)
		return false
	}
	return true
}

// Time32Type encodes a calendar timestamp as a 32-bit big-endian count of
// whole seconds since the epoch.
type Time32Type struct {
	pdt *PrimitiveType
}

// NewTime32Type returns the TIME32 overlay type.
func NewTime32Type() *Time32Type {
	return &Time32Type{pdt: primitives["MSB_U32"]}
}

// Name returns "TIME32".
func (t *Time32Type) Name() string { return "TIME32" }

// PDT returns the physical descriptor name.
func (t *Time32Type) PDT() string { return t.pdt.Name() }

// NBits returns the encoded width in bits.
func (t *Time32Type) NBits() int { return t.pdt.NBits() }

// NBytes returns the encoded width in bytes.
func (t *Time32Type) NBytes() int { return t.pdt.NBytes() }

// Max returns the physical descriptor's maximum raw value.
func (t *Time32Type) Max() float64 { return t.pdt.Max() }

// Encode serializes a time.Time as whole seconds since the epoch. Any
// sub-second component is dropped, not rounded.
func (t *Time32Type) Encode(v any) ([]byte, error) {
	ts, ok := v.(time.Time)
	if !ok {
		return nil, fmt.Errorf("%w: TIME32 requires a time.Time, got %T", ErrTypeMismatch, v)
	}

	sec := ts.Unix() - Epoch.Unix()
	if sec < 0 || sec > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %v outside the TIME32 epoch range", ErrOutOfRange, ts)
	}
	return t.pdt.Encode(uint64(sec))
}

// Decode returns the epoch-relative timestamp as a UTC time.Time with
// whole-second resolution.
func (t *Time32Type) Decode(b []byte) (any, error) {
	raw, err := t.pdt.Decode(b)
	if err != nil {
		return nil, err
	}
	return Epoch.Add(time.Duration(raw.(uint64)) * time.Second), nil
}

// DecodeRaw returns the untransformed 32-bit seconds count.
func (t *Time32Type) DecodeRaw(b []byte) (any, error) {
	return t.pdt.Decode(b)
}

// Validate reports whether v is a timestamp encodable as TIME32.
func (t *Time32Type) Validate(v any, msgs *[]string) bool {
	if _, err := t.Encode(v); err != nil {
		appendMsg(msgs, "value %v is invalid for type TIME32: %v", v, err)
		return false
	}
	return true
}

// Time40Type encodes a calendar timestamp as 32 bits of whole seconds
// since the epoch followed by one fine-time byte of 1/256 second counts,
// 5 bytes in all.
type Time40Type struct {
	coarse *Time32Type
	fine   *Time8Type
}

// NewTime40Type returns the TIME40 overlay type.
func NewTime40Type() *Time40Type {
	return &Time40Type{coarse: NewTime32Type(), fine: NewTime8Type()}
}

// Name returns "TIME40".
func (t *Time40Type) Name() string { return "TIME40" }

// PDT returns the physical descriptor name of the coarse field.
func (t *Time40Type) PDT() string { return t.coarse.PDT() }

// NBits returns the encoded width in bits.
func (t *Time40Type) NBits() int { return t.coarse.NBits() + t.fine.NBits() }

// NBytes returns the encoded width in bytes.
func (t *Time40Type) NBytes() int { return t.coarse.NBytes() + t.fine.NBytes() }

// Max returns the coarse physical descriptor's maximum raw value.
func (t *Time40Type) Max() float64 { return t.coarse.Max() }

// Encode serializes a time.Time as whole seconds plus the nearest fine
// byte.
func (t *Time40Type) Encode(v any) ([]byte, error) {
	ts, ok := v.(time.Time)
	if !ok {
		return nil, fmt.Errorf("%w: TIME40 requires a time.Time, got %T", ErrTypeMismatch, v)
	}

	sec := ts.Truncate(time.Second)
	frac := ts.Sub(sec).Seconds()
	fine := math.Round(frac * 256)
	if fine == 256 {
		sec = sec.Add(time.Second)
		fine = 0
	}

	cb, err := t.coarse.Encode(sec)
	if err != nil {
		return nil, err
	}
	return append(cb, byte(fine)), nil
}

// Decode returns the timestamp with fine/256 seconds of sub-second
// resolution.
func (t *Time40Type) Decode(b []byte) (any, error) {
	if len(b) < t.NBytes() {
		return nil, fmt.Errorf("%w: TIME40 needs %d bytes, got %d", ErrInsufficientData, t.NBytes(), len(b))
	}

	sec, err := t.coarse.Decode(b)
	if err != nil {
		return nil, err
	}
	fine, err := t.fine.DecodeRaw(b[t.coarse.NBytes():])
	if err != nil {
		return nil, err
	}
	return sec.(time.Time).Add(time.Duration(fine.(uint64)) * fineNanos), nil
}

// DecodeRaw returns seconds + fine/256 as a float64.
func (t *Time40Type) DecodeRaw(b []byte) (any, error) {
	if len(b) < t.NBytes() {
		return nil, fmt.Errorf("%w: TIME40 needs %d bytes, got %d", ErrInsufficientData, t.NBytes(), len(b))
	}

	sec, err := t.coarse.DecodeRaw(b)
	if err != nil {
		return nil, err
	}
	fine, err := t.fine.DecodeRaw(b[t.coarse.NBytes():])
	if err != nil {
		return nil, err
	}
	return float64(sec.(uint64)) + float64(fine.(uint64))/256.0, nil
}

// Validate reports whether v is a timestamp encodable as TIME40.
func (t *Time40Type) Validate(v any, msgs *[]string) bool {
	if _, err := t.Encode(v); err != nil {
		appendMsg(msgs, "value %v is invalid for type TIME40: %v", v, err)
		return false
	}
	return true
}

// Time64Type encodes a calendar timestamp as 32 bits of whole seconds
// since the epoch followed by 32 bits of nanoseconds, 8 bytes in all.
// Calendar conversion truncates to microsecond resolution.
type Time64Type struct {
	coarse *Time32Type
	nanos  *PrimitiveType
}

// NewTime64Type returns the TIME64 overlay type.
func NewTime64Type() *Time64Type {
	return &Time64Type{coarse: NewTime32Type(), nanos: primitives["MSB_U32"]}
}

// Name returns "TIME64".
func (t *Time64Type) Name() string { return "TIME64" }

// PDT returns the physical descriptor name of the coarse field.
func (t *Time64Type) PDT() string { return t.coarse.PDT() }

// NBits returns the encoded width in bits.
func (t *Time64Type) NBits() int { return t.coarse.NBits() + t.nanos.NBits() }

// NBytes returns the encoded width in bytes.
func (t *Time64Type) NBytes() int { return t.coarse.NBytes() + t.nanos.NBytes() }

// Max returns the coarse physical descriptor's maximum raw value.
func (t *Time64Type) Max() float64 { return t.coarse.Max() }

// Encode serializes a time.Time as whole seconds plus nanoseconds.
func (t *Time64Type) Encode(v any) ([]byte, error) {
	ts, ok := v.(time.Time)
	if !ok {
		return nil, fmt.Errorf("%w: TIME64 requires a time.Time, got %T", ErrTypeMismatch, v)
	}

	cb, err := t.coarse.Encode(ts)
	if err != nil {
		return nil, err
	}
	nb, err := t.nanos.Encode(uint64(ts.Nanosecond()))
	if err != nil {
		return nil, err
	}
	return append(cb, nb...), nil
}

// Decode returns the timestamp truncated to microsecond resolution.
func (t *Time64Type) Decode(b []byte) (any, error) {
	if len(b) < t.NBytes() {
		return nil, fmt.Errorf("%w: TIME64 needs %d bytes, got %d", ErrInsufficientData, t.NBytes(), len(b))
	}

	sec, err := t.coarse.Decode(b)
	if err != nil {
		return nil, err
	}
	nsecRaw, err := t.nanos.Decode(b[t.coarse.NBytes():])
	if err != nil {
		return nil, err
	}
	usec := nsecRaw.(uint64) / 1000
	return sec.(time.Time).Add(time.Duration(usec) * time.Microsecond), nil
}

// DecodeRaw returns seconds + nanoseconds/1e9 as a float64.
func (t *Time64Type) DecodeRaw(b []byte) (any, error) {
	if len(b) < t.NBytes() {
		return nil, fmt.Errorf("%w: TIME64 needs %d bytes, got %d", ErrInsufficientData, t.NBytes(), len(b))
	}

	sec, err := t.coarse.DecodeRaw(b)
	if err != nil {
		return nil, err
	}
	nsec, err := t.nanos.Decode(b[t.coarse.NBytes():])
	if err != nil {
		return nil, err
	}
	return float64(sec.(uint64)) + float64(nsec.(uint64))/1e9, nil
}

// Validate reports whether v is a timestamp encodable as TIME64.
func (t *Time64Type) Validate(v any, msgs *[]string) bool {
	if _, err := t.Encode(v); err != nil {
		appendMsg(msgs, "value %v is invalid for type TIME64: %v", v, err)
		return false
	}
	return true
}
