package relay

import (
	"strings"
	"unicode/utf8"
)

// Decode turns the bytes of one read into one message. Each maximal invalid
// UTF-8 subsequence becomes one U+FFFD and surrounding whitespace is
// trimmed. Embedded newlines are kept: one read is one message.
func Decode(raw []byte) string {
	var b strings.Builder
	b.Grow(len(raw))

	for len(raw) > 0 {
		r, size := utf8.DecodeRune(raw)
		if r != utf8.RuneError || size > 1 {
			b.Write(raw[:size])
			raw = raw[size:]
			continue
		}
		b.WriteRune(utf8.RuneError)
		raw = raw[invalidPrefixLen(raw):]
	}
	return strings.TrimSpace(b.String())
}

// invalidPrefixLen returns the length of the maximal subpart of an
// ill-formed sequence at the start of p: the longest prefix that could still
// begin a well-formed sequence, or one byte if there is none.
func invalidPrefixLen(p []byte) int {
	var need int
	lo, hi := byte(0x80), byte(0xBF)

	switch c := p[0]; {
	case c >= 0xC2 && c <= 0xDF:
		need = 2
	case c == 0xE0:
		need, lo = 3, 0xA0
	case c >= 0xE1 && c <= 0xEC, c == 0xEE, c == 0xEF:
		need = 3
	case c == 0xED:
		need, hi = 3, 0x9F
	case c == 0xF0:
		need, lo = 4, 0x90
	case c >= 0xF1 && c <= 0xF3:
		need = 4
	case c == 0xF4:
		need, hi = 4, 0x8F
	default:
		return 1
	}

	n := 1
	for n < need && n < len(p) {
		c := p[n]
		if c < lo || c > hi {
			break
		}
		n++
		lo, hi = 0x80, 0xBF
	}
	return n
}
