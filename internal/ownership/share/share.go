// Package share parses ownership share statements out of the free-text form
// the commercial register uses. Extraction is tiered: explicit OBCHODNI PODIL
// fields win over HLASOVACI PRAVA fields, which win over bare fractions,
// which win over bare percents. All occurrences within the winning tier are
// summed and the result is clamped to [0,1]. "SPLACENO: ... PROCENTA" noise
// (paid-up capital, not a share) is stripped before matching.
package share

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	pctRe       = regexp.MustCompile(`(\d+(?:[.,;]\d+)?)\s*%`)
	procentaRe  = regexp.MustCompile(`(?i)(\d+(?:[.,;]\d+)?)\s*PROCENTA`)
	fracSlashRe = regexp.MustCompile(`(\d+)\s*/\s*(\d+)`)
	fracSemiRe  = regexp.MustCompile(`(?i)(\d+)\s*;\s*(\d+)\s*(?:ZLOMEK|TEXT)?`)

	obchodniPodilFracRe = regexp.MustCompile(`(?i)obchodni[_ ]?podil\s*:\s*(\d+)\s*[/;]\s*(\d+)`)
	obchodniPodilPctRe  = regexp.MustCompile(`(?i)obchodni[_ ]?podil\s*:\s*(\d+(?:[.,;]\d+)?)\s*(?:%|PROCENTA)`)
	hlasovaciPravaPctRe = regexp.MustCompile(`(?i)hlasovaci[_ ]?prava\s*:\s*(\d+(?:[.,;]\d+)?)\s*(?:%|PROCENTA)`)
	splacenoFieldRe     = regexp.MustCompile(`(?i)splaceno\s*:\s*\d+(?:[.,;]\d+)?\s*PROCENTA`)

	efektivneRe = regexp.MustCompile(`(?i)efektivně\s+(\d+(?:[.,;]\d+)?)\s*%`)

	ratioSlashRe = regexp.MustCompile(`^(\d+)\s*/\s*(\d+)$`)
	ratioSemiRe  = regexp.MustCompile(`(?i)^(\d+)\s*;\s*(\d+)\s*(?:ZLOMEK|TEXT)?$`)
)

// toFloat accepts the register's decimal comma and semicolon variants.
func toFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.NewReplacer(",", ".", ";", ".").Replace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ParseFraction extracts an ownership fraction in [0,1] from free text.
// The second return value is false when the text carries no recognizable
// share statement.
func ParseFraction(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = splacenoFieldRe.ReplaceAllString(s, "")

	total, found := 0.0, false
	for _, m := range obchodniPodilFracRe.FindAllStringSubmatch(s, -1) {
		a, aok := toFloat(m[1])
		b, bok := toFloat(m[2])
		if aok && bok && b != 0 {
			total += a / b
			found = true
		}
	}
	for _, m := range obchodniPodilPctRe.FindAllStringSubmatch(s, -1) {
		if v, ok := toFloat(m[1]); ok {
			total += v / 100
			found = true
		}
	}
	if found {
		return clamp01(total), true
	}

	total, found = 0.0, false
	for _, m := range hlasovaciPravaPctRe.FindAllStringSubmatch(s, -1) {
		if v, ok := toFloat(m[1]); ok {
			total += v / 100
			found = true
		}
	}
	if found {
		return clamp01(total), true
	}

	total, found = 0.0, false
	for _, m := range fracSlashRe.FindAllStringSubmatch(s, -1) {
		a, aok := toFloat(m[1])
		b, bok := toFloat(m[2])
		if aok && bok && b != 0 {
			total += a / b
			found = true
		}
	}
	for _, m := range fracSemiRe.FindAllStringSubmatch(s, -1) {
		a, aok := toFloat(m[1])
		b, bok := toFloat(m[2])
		if aok && bok && b != 0 {
			total += a / b
			found = true
		}
	}
	if found {
		return clamp01(total), true
	}

	total, found = 0.0, false
	for _, m := range pctRe.FindAllStringSubmatch(s, -1) {
		if v, ok := toFloat(m[1]); ok {
			total += v / 100
			found = true
		}
	}
	for _, m := range procentaRe.FindAllStringSubmatch(s, -1) {
		if v, ok := toFloat(m[1]); ok {
			total += v / 100
			found = true
		}
	}
	if found {
		return clamp01(total), true
	}

	return 0, false
}

// ParseEffective finds an "efektivně X %" annotation and returns X/100.
func ParseEffective(s string) (float64, bool) {
	m := efektivneRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	v, ok := toFloat(m[1])
	if !ok {
		return 0, false
	}
	return clamp01(v / 100), true
}

// ParseRatio returns the numerator and denominator when the whole text is a
// single plain fraction such as "1/2" or "33;100 ZLOMEK". Anything else,
// including zero denominators, yields false.
func ParseRatio(s string) (int64, int64, bool) {
	s = strings.TrimSpace(s)
	m := ratioSlashRe.FindStringSubmatch(s)
	if m == nil {
		m = ratioSemiRe.FindStringSubmatch(s)
	}
	if m == nil {
		return 0, 0, false
	}
	num, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	den, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil || den == 0 {
		return 0, 0, false
	}
	return num, den, true
}
