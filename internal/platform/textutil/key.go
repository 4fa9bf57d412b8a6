package textutil

import "strings"

// NormalizeKey reduces an arbitrary product name to an uppercase alphanumeric
// counter key. Whitespace, punctuation, and separators are stripped so that
// "T-Shirt", "t shirt", and "T_SHIRT" all map to "TSHIRT".
func NormalizeKey(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - ('a' - 'A'))
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		}
	}
	return b.String()
}
