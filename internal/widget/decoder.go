package widget

import (
	"strings"
	"unicode/utf8"
)

// Decoder turns a byte stream into text chunk by chunk. A multi-byte rune
// split across chunks is held back until its remaining bytes arrive. Invalid
// sequences become U+FFFD.
type Decoder struct {
	pending []byte
}

func (d *Decoder) Decode(p []byte) string {
	buf := append(d.pending, p...)
	d.pending = nil

	if n := incompleteSuffix(buf); n > 0 {
		d.pending = append([]byte(nil), buf[len(buf)-n:]...)
		buf = buf[:len(buf)-n]
	}
	return strings.ToValidUTF8(string(buf), string(utf8.RuneError))
}

// Flush returns a replacement character for any bytes still held back.
func (d *Decoder) Flush() string {
	if len(d.pending) == 0 {
		return ""
	}
	d.pending = nil
	return string(utf8.RuneError)
}

// incompleteSuffix reports how many trailing bytes start a rune that is not
// yet complete.
func incompleteSuffix(buf []byte) int {
	for i := 1; i < utf8.UTFMax && i <= len(buf); i++ {
		if !utf8.RuneStart(buf[len(buf)-i]) {
			continue
		}
		if utf8.FullRune(buf[len(buf)-i:]) {
			return 0
		}
		return i
	}
	return 0
}
