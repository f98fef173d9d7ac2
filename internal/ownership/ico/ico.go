// Package ico normalizes and classifies registration identifiers as the
// commercial register formats them.
package ico

import (
	"regexp"
	"strings"
)

var (
	icoRe     = regexp.MustCompile(`^\d{7,8}$`)
	foreignRe = regexp.MustCompile(`^[A-Za-z]{1,6}\d{3,}$`)
	digitsRe  = regexp.MustCompile(`\D`)
)

// Normalize strips everything but digits and left-pads the result to eight
// characters, so "123 45 678" and "1234567" become canonical identifiers.
// Input without any digits normalizes to the empty string.
func Normalize(s string) string {
	d := digitsRe.ReplaceAllString(s, "")
	if d == "" {
		return ""
	}
	for len(d) < 8 {
		d = "0" + d
	}
	return d
}

// Valid reports whether s is a Czech registration identifier, seven or eight
// digits with no decoration.
func Valid(s string) bool {
	return icoRe.MatchString(strings.TrimSpace(s))
}

// ValidRaw reports whether s strips down to a plausible identifier before
// padding: seven or eight digits once decoration is removed. Normalize pads
// any digit string to eight characters, so guards taking caller input check
// ValidRaw first and normalize afterwards.
func ValidRaw(s string) bool {
	n := len(digitsRe.ReplaceAllString(s, ""))
	return n == 7 || n == 8
}

// IsForeign reports whether s looks like a foreign register identifier such
// as SK123456 or DE12345. A value whose digits already form a valid Czech
// identifier is not foreign, whatever its prefix.
func IsForeign(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if Valid(digitsRe.ReplaceAllString(s, "")) {
		return false
	}
	return foreignRe.MatchString(s)
}

// ChecksumOK runs the weighted mod-11 check over an eight-digit identifier.
// The register only issues identifiers that satisfy it, but storage never
// requires it; treat the result as advisory.
func ChecksumOK(s string) bool {
	if len(s) != 8 {
		return false
	}
	sum := 0
	for i := 0; i < 7; i++ {
		d := int(s[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		sum += d * (8 - i)
	}
	last := int(s[7] - '0')
	if last < 0 || last > 9 {
		return false
	}
	switch rem := sum % 11; rem {
	case 0:
		return last == 1
	case 1:
		return last == 0
	default:
		return last == 11-rem
	}
}
