// Package textcodec decodes attribute values stored with the escaped string
// encoding used by exchange model files. Values may be wrapped in a type tag
// such as IFCLABEL('...') and may contain \X\hh (Latin-1) and
// \X2\hhhh...\X0\ (ISO 10646) escapes.
//
// Decoding is total: malformed input is never rejected, the offending
// segment is copied to the output unchanged.
package textcodec

import (
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

const (
	escapePrefix = `\X`
	wideEnd      = `\X0\`
	groupWidth   = 4
)

type scanState int

const (
	stateText scanState = iota // copying plain text
	stateByte                  // after \X\, expecting two hex digits
	stateWide                  // after \Xn\, consuming groups until \X0\
)

// Decode returns raw with any type tag removed and escapes replaced by the
// characters they encode.
func Decode(raw string) string {
	s := Unwrap(raw)
	if !strings.Contains(s, escapePrefix) {
		return s
	}
	return scan(s)
}

// DecodeAll decodes every value of attrs into a new map. A nil map stays nil.
func DecodeAll(attrs map[string]string) map[string]string {
	if attrs == nil {
		return nil
	}
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = Decode(v)
	}
	return out
}

// Unwrap strips a TAG('...') wrapper. Doubled quotes inside the wrapper are
// collapsed. Values that are not wrapped are returned unchanged.
func Unwrap(raw string) string {
	open := strings.Index(raw, "('")
	if open <= 0 || !strings.HasSuffix(raw, "')") || len(raw) < open+4 {
		return raw
	}
	if !isTag(raw[:open]) {
		return raw
	}
	inner := raw[open+2 : len(raw)-2]
	return strings.ReplaceAll(inner, "''", "'")
}

func isTag(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c == '_':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// scan runs the escape state machine over s in a single pass.
func scan(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	state := stateText
	var width byte // the n of an \Xn\ escape
	i := 0
	for i < len(s) {
		switch state {
		case stateText:
			if !strings.HasPrefix(s[i:], escapePrefix) || i+3 > len(s) {
				b.WriteByte(s[i])
				i++
				continue
			}
			next := s[i+2]
			switch {
			case next == '\\':
				state = stateByte
				i += 3
			case next >= '1' && next <= '9' && i+3 < len(s) && s[i+3] == '\\':
				width = next
				state = stateWide
				i += 4
			default:
				b.WriteString(escapePrefix)
				i += 2
			}

		case stateByte:
			if i+2 <= len(s) {
				if v, err := strconv.ParseUint(s[i:i+2], 16, 8); err == nil {
					b.WriteRune(rune(v))
					i += 2
					state = stateText
					continue
				}
			}
			b.WriteString(`\X\`)
			state = stateText

		case stateWide:
			end := strings.Index(s[i:], wideEnd)
			if end < 0 {
				// unterminated: emit the opener and continue as text
				b.WriteString(`\X`)
				b.WriteByte(width)
				b.WriteByte('\\')
				state = stateText
				continue
			}
			writeGroups(&b, width, s[i:i+end])
			i += end + len(wideEnd)
			state = stateText
		}
	}
	switch state {
	case stateByte:
		b.WriteString(`\X\`)
	case stateWide:
		b.WriteString(`\X`)
		b.WriteByte(width)
		b.WriteByte('\\')
	}
	return b.String()
}

// writeGroups decodes payload in groups of four hex digits. Groups that do
// not parse, a trailing short group, and unpaired surrogates are written
// back in escaped form.
func writeGroups(b *strings.Builder, width byte, payload string) {
	pending := -1 // index of a high surrogate group awaiting its pair
	for i := 0; i < len(payload); i += groupWidth {
		if i+groupWidth > len(payload) {
			flushPending(b, width, payload, &pending)
			writeVerbatim(b, width, payload[i:])
			return
		}
		group := payload[i : i+groupWidth]
		v, err := strconv.ParseUint(group, 16, 32)
		if err != nil {
			flushPending(b, width, payload, &pending)
			writeVerbatim(b, width, group)
			continue
		}
		r := rune(v)
		switch {
		case utf16.IsSurrogate(r) && r < 0xDC00:
			flushPending(b, width, payload, &pending)
			pending = i
		case utf16.IsSurrogate(r):
			if pending < 0 {
				writeVerbatim(b, width, group)
				continue
			}
			hi, _ := strconv.ParseUint(payload[pending:pending+groupWidth], 16, 32)
			b.WriteRune(utf16.DecodeRune(rune(hi), r))
			pending = -1
		default:
			flushPending(b, width, payload, &pending)
			if !utf8.ValidRune(r) {
				writeVerbatim(b, width, group)
				continue
			}
			b.WriteRune(r)
		}
	}
	flushPending(b, width, payload, &pending)
}

func flushPending(b *strings.Builder, width byte, payload string, pending *int) {
	if *pending < 0 {
		return
	}
	writeVerbatim(b, width, payload[*pending:*pending+groupWidth])
	*pending = -1
}

func writeVerbatim(b *strings.Builder, width byte, group string) {
	b.WriteString(`\X`)
	b.WriteByte(width)
	b.WriteByte('\\')
	b.WriteString(group)
	b.WriteString(wideEnd)
}
