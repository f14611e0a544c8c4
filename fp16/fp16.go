// Package fp16 converts between IEEE 754 binary32 and binary16 at the bit level.
//
// binary16 layout: 1 sign bit, 5 exponent bits (bias 15), 10 mantissa bits.
//
// The codec is lossy by construction: Encode rounds to the nearest representable value
// (ties to even), flushes binary32 subnormals and anything below half the smallest
// binary16 subnormal to a signed zero, and clamps finite overflow to infinity. NaN
// payloads are not preserved. Decode is exact.
package fp16

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-yolo/models/model"
)

const (
	signMask = 0x8000
	expMask  = 0x7c00
	mantMask = 0x03ff

	// Inf is positive infinity.
	Inf uint16 = 0x7c00
	// NegInf is negative infinity.
	NegInf uint16 = 0xfc00
	// NaN is the quiet NaN pattern produced by Encode.
	NaN uint16 = 0x7e00
	// MaxValue is the largest finite binary16 value, 65504.
	MaxValue uint16 = 0x7bff
)

// Encode converts a binary32 value to its binary16 bit pattern.
//
// Arguments:
//   - f: The value to encode.
//
// Returns:
//   - uint16: The binary16 bits.
func Encode(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16(bits>>16) & signMask
	exp := int32(bits>>23) & 0xff
	mant := bits & 0x7fffff

	switch exp {
	case 0xff:
		if mant != 0 {
			return sign | NaN
		}
		return sign | Inf
	case 0:
		// Zero, or a binary32 subnormal far below the binary16 range.
		return sign
	}

	e := exp - 127 + 15
	if e >= 0x1f {
		return sign | Inf
	}

	if e <= 0 {
		// Below 2^-25 everything rounds to zero.
		if e < -10 {
			return sign
		}
		full := mant | 0x800000
		shift := uint32(14 - e)
		m := full >> shift
		rem := full & (1<<shift - 1)
		half := uint32(1) << (shift - 1)
		if rem > half || (rem == half && m&1 == 1) {
			m++
		}
		// A carry into bit 10 yields the smallest normal, which is the right encoding.
		return sign | uint16(m)
	}

	h := sign | uint16(e)<<10 | uint16(mant>>13)
	rem := mant & 0x1fff
	if rem > 0x1000 || (rem == 0x1000 && h&1 == 1) {
		// Carries into the exponent, up to and including infinity.
		h++
	}
	return h
}

// Decode converts binary16 bits to a binary32 value.
//
// Arguments:
//   - h: The binary16 bits.
//
// Returns:
//   - float32: The exact binary32 value.
func Decode(h uint16) float32 {
	sign := uint32(h&signMask) << 16
	exp := uint32(h&expMask) >> 10
	mant := uint32(h & mantMask)

	switch {
	case exp == 0 && mant == 0:
		return math.Float32frombits(sign)
	case exp == 0:
		e := uint32(127 - 15 + 1)
		for mant&0x400 == 0 {
			mant <<= 1
			e--
		}
		mant &= mantMask
		return math.Float32frombits(sign | e<<23 | mant<<13)
	case exp == 0x1f:
		return math.Float32frombits(sign | 0x7f800000 | mant<<13)
	}
	return math.Float32frombits(sign | (exp+127-15)<<23 | mant<<13)
}

// EncodeSlice encodes every element of src, preserving length and order.
func EncodeSlice(src []float32) []uint16 {
	dst := make([]uint16, len(src))
	for i, v := range src {
		dst[i] = Encode(v)
	}
	return dst
}

// DecodeSlice decodes every element of src, preserving length and order.
func DecodeSlice(src []uint16) []float32 {
	dst := make([]float32, len(src))
	for i, h := range src {
		dst[i] = Decode(h)
	}
	return dst
}

// EncodeBytes encodes src into little-endian binary16 bytes, the layout ONNX Runtime
// expects for float16 tensors.
//
// Arguments:
//   - src: The values to encode.
//
// Returns:
//   - []byte: 2*len(src) bytes.
func EncodeBytes(src []float32) []byte {
	dst := make([]byte, 2*len(src))
	PutBytes(dst, src)
	return dst
}

// PutBytes encodes src into dst, which must hold at least 2*len(src) bytes.
func PutBytes(dst []byte, src []float32) {
	for i, v := range src {
		binary.LittleEndian.PutUint16(dst[2*i:], Encode(v))
	}
}

// DecodeBytes decodes little-endian binary16 bytes.
//
// Arguments:
//   - src: The encoded bytes.
//
// Returns:
//   - []float32: len(src)/2 values.
//   - error: ErrShapeMismatch if len(src) is odd.
func DecodeBytes(src []byte) ([]float32, error) {
	if len(src)%2 != 0 {
		return nil, errors.Wrapf(model.ErrShapeMismatch, "float16 buffer has odd length %d", len(src))
	}
	dst := make([]float32, len(src)/2)
	for i := range dst {
		dst[i] = Decode(binary.LittleEndian.Uint16(src[2*i:]))
	}
	return dst, nil
}
