// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package asdu

import (
	"encoding/binary"
	"math"
)

// NormalizedValue is a 16 bit fixed point fraction in [-1, 1-2^-15].
type NormalizedValue int16

// NewNormalizedValue converts f to the nearest representable value,
// clamping to the valid range.
func NewNormalizedValue(f float64) NormalizedValue {
	v := math.Round(f * 32768)
	switch {
	case v > math.MaxInt16:
		v = math.MaxInt16
	case v < math.MinInt16:
		v = math.MinInt16
	}
	return NormalizedValue(v)
}

// Float64 returns the value scaled by 1/32768.
func (sf NormalizedValue) Float64() float64 {
	return float64(sf) / 32768
}

func (NormalizedValue) Kind() ElementKind { return KindNormalized }
func (NormalizedValue) Size() int         { return 2 }
func (NormalizedValue) isElement()        {}

// Encode writes the value as a little endian int16.
func (sf NormalizedValue) Encode(buf []byte, offset int) (int, error) {
	if err := checkEncode(buf, offset, 2); err != nil {
		return 0, err
	}
	binary.LittleEndian.PutUint16(buf[offset:], uint16(sf))
	return 2, nil
}

// DecodeNormalizedValue decodes a normalized value from b.
func DecodeNormalizedValue(b []byte) (NormalizedValue, error) {
	if err := checkDecode(b, 2); err != nil {
		return 0, err
	}
	return NormalizedValue(binary.LittleEndian.Uint16(b)), nil
}

// ScaledValue is a 16 bit signed measured value.
type ScaledValue int16

func (ScaledValue) Kind() ElementKind { return KindScaled }
func (ScaledValue) Size() int         { return 2 }
func (ScaledValue) isElement()        {}

// Encode writes the value as a little endian int16.
func (sf ScaledValue) Encode(buf []byte, offset int) (int, error) {
	if err := checkEncode(buf, offset, 2); err != nil {
		return 0, err
	}
	binary.LittleEndian.PutUint16(buf[offset:], uint16(sf))
	return 2, nil
}

// DecodeScaledValue decodes a scaled value from b.
func DecodeScaledValue(b []byte) (ScaledValue, error) {
	if err := checkDecode(b, 2); err != nil {
		return 0, err
	}
	return ScaledValue(binary.LittleEndian.Uint16(b)), nil
}

// ShortFloat is an IEEE 754 single precision measured value.
type ShortFloat float32

func (ShortFloat) Kind() ElementKind { return KindShortFloat }
func (ShortFloat) Size() int         { return 4 }
func (ShortFloat) isElement()        {}

func (sf ShortFloat) Encode(buf []byte, offset int) (int, error) {
	if err := checkEncode(buf, offset, 4); err != nil {
		return 0, err
	}
	binary.LittleEndian.PutUint32(buf[offset:], math.Float32bits(float32(sf)))
	return 4, nil
}

// DecodeShortFloat decodes a short floating point number from b.
func DecodeShortFloat(b []byte) (ShortFloat, error) {
	if err := checkDecode(b, 4); err != nil {
		return 0, err
	}
	return ShortFloat(math.Float32frombits(binary.LittleEndian.Uint32(b))), nil
}
