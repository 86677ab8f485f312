package core

import (
	"math"
	"testing"
)

func TestSafeIntToUint64(t *testing.T) {
	tests := []struct {
		input     int
		expected  uint64
		shouldErr bool
	}{
		{0, 0, false},
		{1, 1, false},
		{math.MaxInt, uint64(math.MaxInt), false},
		{-1, 0, true},
		{-100, 0, true},
	}

	for _, tt := range tests {
		result, err := SafeIntToUint64(tt.input)
		if tt.shouldErr {
			if err == nil {
				t.Errorf("SafeIntToUint64(%d) expected error but got none", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("SafeIntToUint64(%d) unexpected error: %v", tt.input, err)
		}
		if result != tt.expected {
			t.Errorf("SafeIntToUint64(%d) = %d, expected %d", tt.input, result, tt.expected)
		}
	}
}

func TestSafeInt64ToUint64(t *testing.T) {
	tests := []struct {
		input     int64
		expected  uint64
		shouldErr bool
	}{
		{0, 0, false},
		{1, 1, false},
		{math.MaxInt64, uint64(math.MaxInt64), false},
		{-1, 0, true},
		{math.MinInt64, 0, true},
	}

	for _, tt := range tests {
		result, err := SafeInt64ToUint64(tt.input)
		if tt.shouldErr {
			if err == nil {
				t.Errorf("SafeInt64ToUint64(%d) expected error but got none", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("SafeInt64ToUint64(%d) unexpected error: %v", tt.input, err)
		}
		if result != tt.expected {
			t.Errorf("SafeInt64ToUint64(%d) = %d, expected %d", tt.input, result, tt.expected)
		}
	}
}

func TestSafeUint64ToInt64(t *testing.T) {
	tests := []struct {
		input     uint64
		expected  int64
		shouldErr bool
	}{
		{0, 0, false},
		{1, 1, false},
		{uint64(math.MaxInt64), math.MaxInt64, false},
		{uint64(math.MaxInt64) + 1, 0, true},
		{math.MaxUint64, 0, true},
	}

	for _, tt := range tests {
		result, err := SafeUint64ToInt64(tt.input)
		if tt.shouldErr {
			if err == nil {
				t.Errorf("SafeUint64ToInt64(%d) expected error but got none", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("SafeUint64ToInt64(%d) unexpected error: %v", tt.input, err)
		}
		if result != tt.expected {
			t.Errorf("SafeUint64ToInt64(%d) = %d, expected %d", tt.input, result, tt.expected)
		}
	}
}

func TestSafeUint64ToUint32(t *testing.T) {
	tests := []struct {
		input     uint64
		expected  uint32
		shouldErr bool
	}{
		{0, 0, false},
		{1, 1, false},
		{math.MaxUint32, math.MaxUint32, false},
		{math.MaxUint32 + 1, 0, true},
		{math.MaxUint64, 0, true},
	}

	for _, tt := range tests {
		result, err := SafeUint64ToUint32(tt.input)
		if tt.shouldErr {
			if err == nil {
				t.Errorf("SafeUint64ToUint32(%d) expected error but got none", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("SafeUint64ToUint32(%d) unexpected error: %v", tt.input, err)
		}
		if result != tt.expected {
			t.Errorf("SafeUint64ToUint32(%d) = %d, expected %d", tt.input, result, tt.expected)
		}
	}
}

func TestSafeUint64ToUint16(t *testing.T) {
	tests := []struct {
		input     uint64
		expected  uint16
		shouldErr bool
	}{
		{0, 0, false},
		{math.MaxUint16, math.MaxUint16, false},
		{math.MaxUint16 + 1, 0, true},
	}

	for _, tt := range tests {
		result, err := SafeUint64ToUint16(tt.input)
		if tt.shouldErr {
			if err == nil {
				t.Errorf("SafeUint64ToUint16(%d) expected error but got none", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("SafeUint64ToUint16(%d) unexpected error: %v", tt.input, err)
		}
		if result != tt.expected {
			t.Errorf("SafeUint64ToUint16(%d) = %d, expected %d", tt.input, result, tt.expected)
		}
	}
}

func TestSafeUint64ToUint8(t *testing.T) {
	tests := []struct {
		input     uint64
		expected  uint8
		shouldErr bool
	}{
		{0, 0, false},
		{math.MaxUint8, math.MaxUint8, false},
		{math.MaxUint8 + 1, 0, true},
	}

	for _, tt := range tests {
		result, err := SafeUint64ToUint8(tt.input)
		if tt.shouldErr {
			if err == nil {
				t.Errorf("SafeUint64ToUint8(%d) expected error but got none", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("SafeUint64ToUint8(%d) unexpected error: %v", tt.input, err)
		}
		if result != tt.expected {
			t.Errorf("SafeUint64ToUint8(%d) = %d, expected %d", tt.input, result, tt.expected)
		}
	}
}

func TestAsInt64AsUint64RoundTrip(t *testing.T) {
	tests := []uint64{0, 1, math.MaxInt64, math.MaxInt64 + 1, math.MaxUint64}
	for _, v := range tests {
		signed := AsInt64(v)
		back := AsUint64(signed)
		if back != v {
			t.Errorf("AsUint64(AsInt64(0x%X)) = 0x%X, expected 0x%X", v, back, v)
		}
	}

	if AsInt64(0x8000000000000000) >= 0 {
		t.Errorf("AsInt64(0x8000000000000000) expected negative, got %d", AsInt64(0x8000000000000000))
	}
}
