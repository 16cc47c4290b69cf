package dtype

import "errors"

// Sentinel errors for the binary type system. Callers classify failures
// with errors.Is; the wrapped message carries the offending detail.
var (
	// ErrInvalidTypeName reports a type name that matches no known pattern.
	ErrInvalidTypeName = errors.New("invalid type name")

	// ErrInvalidArraySize reports an array suffix with a non-integer or
	// non-positive element count.
	ErrInvalidArraySize = errors.New("invalid array size")

	// ErrArityMismatch reports an array encode with the wrong number of
	// values.
	ErrArityMismatch = errors.New("wrong number of values")

	// ErrInsufficientData reports a decode buffer shorter than the type's
	// fixed byte width.
	ErrInsufficientData = errors.New("insufficient data to decode")

	// ErrIndexOutOfRange reports an array element or slice index outside
	// the array bounds.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrInvalidIndexType reports an array decode index that is neither an
	// integer nor a Range.
	ErrInvalidIndexType = errors.New("invalid index type")

	// ErrUnknownCode reports a dictionary lookup miss on a decoded opcode.
	ErrUnknownCode = errors.New("unknown code")

	// ErrUnknownName reports a dictionary lookup miss on a symbolic name.
	ErrUnknownName = errors.New("unknown name")

	// ErrOutOfRange reports a value outside the type's representable range.
	ErrOutOfRange = errors.New("value out of range")

	// ErrTypeMismatch reports a value of the wrong kind for the type, for
	// example a string offered to a numeric slot.
	ErrTypeMismatch = errors.New("value type mismatch")
)
