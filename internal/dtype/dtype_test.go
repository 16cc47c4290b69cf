package dtype

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const floatEps = 1e-6

func resolve(t *testing.T, name string) Type {
	t.Helper()
	typ, err := NewRegistry().Resolve(name)
	require.NoError(t, err, "resolve %s", name)
	return typ
}

func TestPrimitiveFloatDecode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		val  float64
		pack func(float64) []byte
	}{
		{"LSB_D64", 1.2, func(v float64) []byte {
			b := make([]byte, 8)
			binary.LittleEndian.PutUint64(b, math.Float64bits(v))
			return b
		}},
		{"MSB_D64", 3.4, func(v float64) []byte {
			b := make([]byte, 8)
			binary.BigEndian.PutUint64(b, math.Float64bits(v))
			return b
		}},
		{"LSB_F32", 5.6, func(v float64) []byte {
			b := make([]byte, 4)
			binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
			return b
		}},
		{"MSB_F32", 7.8, func(v float64) []byte {
			b := make([]byte, 4)
			binary.BigEndian.PutUint32(b, math.Float32bits(float32(v)))
			return b
		}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			typ := resolve(t, tc.name)
			packed := tc.pack(tc.val)

			v, err := typ.Decode(packed)
			require.NoError(t, err)
			assert.InDelta(t, tc.val, v.(float64), floatEps)

			raw, err := typ.DecodeRaw(packed)
			require.NoError(t, err)
			assert.InDelta(t, tc.val, raw.(float64), floatEps)

			enc, err := typ.Encode(tc.val)
			require.NoError(t, err)
			assert.Equal(t, packed, enc)
		})
	}
}

func TestPrimitiveIntRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		vals []any
	}{
		{"U8", []any{uint64(0), uint64(17), uint64(255)}},
		{"I8", []any{int64(-128), int64(-1), int64(0), int64(127)}},
		{"MSB_U16", []any{uint64(0), uint64(4), uint64(65535)}},
		{"LSB_U16", []any{uint64(0), uint64(513), uint64(65535)}},
		{"MSB_I32", []any{int64(-2147483648), int64(-5), int64(2147483647)}},
		{"LSB_I32", []any{int64(-1), int64(42)}},
		{"MSB_U64", []any{uint64(0), uint64(1) << 63, uint64(math.MaxUint64)}},
		{"LSB_I64", []any{int64(math.MinInt64), int64(math.MaxInt64)}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			typ := resolve(t, tc.name)
			for _, v := range tc.vals {
				enc, err := typ.Encode(v)
				require.NoError(t, err, "encode %v", v)
				require.Len(t, enc, typ.NBytes())

				dec, err := typ.Decode(enc)
				require.NoError(t, err, "decode %v", v)
				assert.Equal(t, v, dec)
			}
		})
	}
}

func TestPrimitiveIntRejectsOutOfRange(t *testing.T) {
	t.Parallel()

	u16 := resolve(t, "MSB_U16")
	_, err := u16.Encode(65536)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = u16.Encode(-1)
	assert.ErrorIs(t, err, ErrOutOfRange)

	i8 := resolve(t, "I8")
	_, err = i8.Encode(128)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = i8.Encode("nope")
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestPrimitiveInsufficientData(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"MSB_U32", "LSB_D64", "S8"} {
		typ := resolve(t, name)
		_, err := typ.Decode(make([]byte, typ.NBytes()-1))
		assert.ErrorIs(t, err, ErrInsufficientData, name)
	}
}

func TestPrimitiveByteOrder(t *testing.T) {
	t.Parallel()

	msb := resolve(t, "MSB_U16")
	lsb := resolve(t, "LSB_U16")

	v, err := msb.Decode([]byte{0x00, 0x04})
	require.NoError(t, err)
	assert.Equal(t, uint64(4), v)

	v, err = lsb.Decode([]byte{0x04, 0x00})
	require.NoError(t, err)
	assert.Equal(t, uint64(4), v)
}

func TestStringType(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"S16", "S32"} {
		typ := resolve(t, name)
		pt, ok := typ.(*PrimitiveType)
		require.True(t, ok)

		nbytes := 16
		if name == "S32" {
			nbytes = 32
		}
		assert.True(t, pt.IsString())
		assert.False(t, pt.Float())
		assert.False(t, pt.Signed())
		assert.Equal(t, name, pt.Name())
		assert.Equal(t, nbytes, pt.NBytes())
		assert.Equal(t, nbytes*8, pt.NBits())
	}

	s32 := resolve(t, "S32")

	var msgs []string
	assert.False(t, s32.Validate(1, &msgs))
	assert.NotEmpty(t, msgs)

	msgs = nil
	assert.False(t, s32.Validate(1.1, &msgs))
	assert.NotEmpty(t, msgs)

	msgs = nil
	assert.True(t, s32.Validate("1", &msgs))
	assert.Empty(t, msgs)

	enc, err := s32.Encode("on-your-left")
	require.NoError(t, err)
	require.Len(t, enc, 32)
	assert.Equal(t, "on-your-left", string(enc[:12]))
	for _, b := range enc[12:] {
		assert.Equal(t, byte(' '), b)
	}
}

func TestStringEncodeTruncates(t *testing.T) {
	t.Parallel()

	s8, err := NewRegistry().Resolve("S8")
	require.NoError(t, err)

	enc, err := s8.Encode("0123456789")
	require.NoError(t, err)
	assert.Equal(t, []byte("01234567"), enc)
}

func TestValidateCollectsAllViolations(t *testing.T) {
	t.Parallel()

	u8 := resolve(t, "U8")
	var msgs []string
	assert.False(t, u8.Validate(300, &msgs))
	assert.False(t, u8.Validate("x", &msgs))
	assert.Len(t, msgs, 2)

	// nil message list must not panic
	assert.True(t, u8.Validate(7, nil))
}

func TestMinMax(t *testing.T) {
	t.Parallel()

	u16 := resolve(t, "MSB_U16").(*PrimitiveType)
	assert.Equal(t, float64(0), u16.Min())
	assert.Equal(t, float64(65535), u16.Max())

	i16 := resolve(t, "MSB_I16").(*PrimitiveType)
	assert.Equal(t, float64(-32768), i16.Min())
	assert.Equal(t, float64(32767), i16.Max())

	f32 := resolve(t, "MSB_F32").(*PrimitiveType)
	assert.Equal(t, -math.MaxFloat32, f32.Min())
	assert.Equal(t, float64(math.MaxFloat32), f32.Max())
}
