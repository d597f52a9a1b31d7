// Package format renders byte sizes and counters the way release reports
// display them: at most four significant characters, with unit switches at
// 1500 rather than 1024/1000 so that values such as "1499 B" stay unscaled.
package format

import (
	"encoding/json"
	"fmt"
)

const threshold = 1500.0

var byteUnits = []string{"B", "KiB", "MiB"}
var countUnits = []string{"", "K", "M"}

// FormatBytes formats a byte size as a human-readable string (B, KiB, MiB).
// Plain bytes never carry decimals; scaled values keep at most four
// significant characters (two decimals below 10, one below 100, none above).
func FormatBytes(bytes uint32) string {
	value := float64(bytes)
	unit := 0
	for value >= threshold && unit < len(byteUnits)-1 {
		value /= 1024.0
		unit++
	}
	if unit == 0 {
		return fmt.Sprintf("%d %s", bytes, byteUnits[0])
	}
	switch {
	case value < 10.0:
		return fmt.Sprintf("%.2f %s", value, byteUnits[unit])
	case value < 100.0:
		return fmt.Sprintf("%.1f %s", value, byteUnits[unit])
	default:
		return fmt.Sprintf("%.0f %s", value, byteUnits[unit])
	}
}

// FormatCount formats a counter with K/M suffixes, switching at 1500 and
// 1500*1000 respectively.
func FormatCount(count uint32) string {
	value := float64(count)
	unit := 0
	for value >= threshold && unit < len(countUnits)-1 {
		value /= 1000.0
		unit++
	}
	if unit == 0 {
		return fmt.Sprintf("%d", count)
	}
	if value < 10.0 {
		return fmt.Sprintf("%.1f%s", value, countUnits[unit])
	}
	return fmt.Sprintf("%.0f%s", value, countUnits[unit])
}

// ByteSize marshals as the humanized string rather than the raw number so
// that JSON reports match the rendered output.
type ByteSize uint32

// MarshalJSON implements json.Marshaler.
func (b ByteSize) MarshalJSON() ([]byte, error) {
	return json.Marshal(FormatBytes(uint32(b)))
}

// String returns the humanized representation.
func (b ByteSize) String() string {
	return FormatBytes(uint32(b))
}

// Count marshals as the humanized counter string.
type Count uint32

// MarshalJSON implements json.Marshaler.
func (c Count) MarshalJSON() ([]byte, error) {
	return json.Marshal(FormatCount(uint32(c)))
}

// String returns the humanized representation.
func (c Count) String() string {
	return FormatCount(uint32(c))
}

// OptionalCount marshals null when absent, the humanized string otherwise.
type OptionalCount struct {
	Value uint32
	Valid bool
}

// NewOptionalCount returns a present OptionalCount.
func NewOptionalCount(value uint32) OptionalCount {
	return OptionalCount{Value: value, Valid: true}
}

// MarshalJSON implements json.Marshaler.
func (o OptionalCount) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(FormatCount(o.Value))
}
