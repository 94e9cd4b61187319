package world

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// RenderText draws the world as one rune per zone: the first letter of the
// zone type, upper case for mandatory and lower case for filler. Unique
// zones are '*' and empty zones '~'.
func RenderText(w *World) string {
	var b strings.Builder
	b.Grow(w.Length * (w.Width + 1))
	for r := 0; r < w.Length; r++ {
		for c := 0; c < w.Width; c++ {
			z, _ := w.ZoneAt(r, c)
			b.WriteRune(glyph(z))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func glyph(z Zone) rune {
	if z.Role == RoleEmpty {
		return '~'
	}
	if z.ZoneType == "" {
		return '?'
	}
	ch, _ := utf8.DecodeRuneInString(z.ZoneType)
	switch z.Role {
	case RoleMandatory:
		return unicode.ToUpper(ch)
	case RoleUnique:
		return '*'
	default:
		return unicode.ToLower(ch)
	}
}
