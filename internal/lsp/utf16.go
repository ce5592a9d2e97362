package lsp

import "unicode/utf16"

// utf16Column converts a rune column within line to UTF-16 code units.
func utf16Column(line string, column int) uint32 {
	units, i := 0, 0
	for _, r := range line {
		if i == column {
			break
		}
		units += utf16.RuneLen(r)
		i++
	}
	return uint32(units)
}

// runeColumn converts a UTF-16 offset within line to a rune column. An
// offset inside a surrogate pair rounds up to the next character.
func runeColumn(line string, units uint32) int {
	n, column := 0, 0
	for _, r := range line {
		if uint32(n) >= units {
			break
		}
		n += utf16.RuneLen(r)
		column++
	}
	return column
}
