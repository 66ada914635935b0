package directory

import (
	"strings"
)

// dnSpecials are the characters RFC 4514 requires to be escaped anywhere in
// an attribute value.
const dnSpecials = ",+\"\\<>;"

// EscapeDNValue escapes an attribute value for use in a distinguished name
// according to RFC 4514.
//
//   - "Doe, John" → "Doe\, John"
//   - " John " → "\ John\ "
//   - "#123" → "\#123"
func EscapeDNValue(value string) string {
	if !NeedsDNEscaping(value) {
		return value
	}

	var b strings.Builder
	b.Grow(len(value) + 8)

	last := len(value) - 1
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case c == 0:
			b.WriteString(`\00`)
			continue
		case strings.IndexByte(dnSpecials, c) >= 0:
			b.WriteByte('\\')
		case c == '#' && i == 0:
			b.WriteByte('\\')
		case c == ' ' && (i == 0 || i == last):
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}

	return b.String()
}

// UnescapeDNValue reverses EscapeDNValue. Hex pairs (\2C, \c3\a9) are
// decoded as raw bytes so multi-byte UTF-8 sequences survive. A trailing
// lone backslash is kept as is.
func UnescapeDNValue(value string) string {
	if !strings.Contains(value, `\`) {
		return value
	}

	var b strings.Builder
	b.Grow(len(value))

	for i := 0; i < len(value); i++ {
		c := value[i]
		if c != '\\' || i == len(value)-1 {
			b.WriteByte(c)
			continue
		}
		if i+2 < len(value) && isHex(value[i+1]) && isHex(value[i+2]) {
			b.WriteByte(unhex(value[i+1])<<4 | unhex(value[i+2]))
			i += 2
			continue
		}
		b.WriteByte(value[i+1])
		i++
	}

	return b.String()
}

// NeedsDNEscaping reports whether EscapeDNValue would change value.
func NeedsDNEscaping(value string) bool {
	if value == "" {
		return false
	}
	if value[0] == ' ' || value[0] == '#' || value[len(value)-1] == ' ' {
		return true
	}
	return strings.ContainsAny(value, dnSpecials+"\x00")
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
