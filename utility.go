package exfat

import (
	"unicode/utf16"
)

// UnicodeFromAscii decodes little-endian UTF-16 units into a string. The
// character-count may still cover trailing NULs, which are skipped.
func UnicodeFromAscii(raw []byte, unicodeCharCount int) string {
	units := make([]uint16, 0, unicodeCharCount)
	for i := 0; i < unicodeCharCount; i++ {
		unit := uint16(raw[i*2]) | uint16(raw[i*2+1])<<8
		if unit == 0 {
			continue
		}

		units = append(units, unit)
	}

	return string(utf16.Decode(units))
}
