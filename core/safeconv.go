package core

import (
	"fmt"
	"math"
)

// SafeIntToUint64 safely converts int to uint64.
// Returns an error if the value is negative.
func SafeIntToUint64(v int) (uint64, error) {
	if v < 0 {
		return 0, fmt.Errorf("cannot convert negative int %d to uint64", v)
	}
	return uint64(v), nil
}

// SafeInt64ToUint64 safely converts int64 to uint64.
// Returns an error if the value is negative.
func SafeInt64ToUint64(v int64) (uint64, error) {
	if v < 0 {
		return 0, fmt.Errorf("cannot convert negative int64 %d to uint64", v)
	}
	return uint64(v), nil
}

// SafeUint64ToInt64 safely converts uint64 to int64.
// Returns an error if the value exceeds int64's range.
func SafeUint64ToInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("uint64 value %d exceeds int64 maximum", v)
	}
	return int64(v), nil
}

// SafeUint64ToInt safely converts uint64 to int.
// Returns an error if the value exceeds int's range on this platform.
func SafeUint64ToInt(v uint64) (int, error) {
	if v > math.MaxInt {
		return 0, fmt.Errorf("uint64 value %d exceeds int maximum", v)
	}
	return int(v), nil
}

// SafeInt64ToInt safely converts int64 to int.
// Returns an error if the value is out of int's range on this platform.
func SafeInt64ToInt(v int64) (int, error) {
	if v > math.MaxInt || v < math.MinInt {
		return 0, fmt.Errorf("int64 value %d exceeds int range", v)
	}
	return int(v), nil
}

// SafeUint64ToUint32 safely converts uint64 to uint32.
// Returns an error if the value exceeds uint32's range.
func SafeUint64ToUint32(v uint64) (uint32, error) {
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("uint64 value 0x%X exceeds uint32 maximum", v)
	}
	return uint32(v), nil
}

// SafeUint64ToUint16 safely converts uint64 to uint16.
// Returns an error if the value exceeds uint16's range.
func SafeUint64ToUint16(v uint64) (uint16, error) {
	if v > math.MaxUint16 {
		return 0, fmt.Errorf("uint64 value 0x%X exceeds uint16 maximum", v)
	}
	return uint16(v), nil
}

// SafeUint64ToUint8 safely converts uint64 to uint8.
// Returns an error if the value exceeds uint8's range.
func SafeUint64ToUint8(v uint64) (uint8, error) {
	if v > math.MaxUint8 {
		return 0, fmt.Errorf("uint64 value 0x%X exceeds uint8 maximum", v)
	}
	return uint8(v), nil
}

// AsInt64 reinterprets the bit pattern of a uint64 as a signed int64, the
// way a register holding a two's-complement value is read for display.
// The bit pattern is preserved; no error checking applies.
func AsInt64(v uint64) int64 {
	return int64(v)
}

// AsUint64 reinterprets the bit pattern of an int64 as an unsigned uint64.
// The bit pattern is preserved; no error checking applies.
func AsUint64(v int64) uint64 {
	return uint64(v)
}
