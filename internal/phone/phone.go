// Package phone normalizes phone numbers for dialing and comparison.
package phone

import (
	"strings"

	"github.com/rotisserie/eris"
)

// ErrInvalid marks a number that cannot be reduced to a dialable E.164 form.
var ErrInvalid = eris.New("phone: not a dialable number")

// defaultCountryCode is applied to 0-prefixed national numbers. Campaigns
// target UK postcodes, so national numbers are assumed to be UK.
const defaultCountryCode = "44"

// Canonical reduces a number to a single comparable form for deduplication:
// E.164 when the number normalizes, bare digits otherwise. "+44 20 7946 0111"
// and "020 7946 0111" compare equal after canonicalization.
func Canonical(raw string) string {
	e164, err := Normalize(raw)
	if err != nil {
		return digitsOnly(raw)
	}
	return e164
}

// Normalize converts a raw number into E.164 form. National numbers with a
// leading 0 are rewritten to +44; numbers already carrying a country code
// (via "+" or "00") pass through. Anything that does not reduce to 7-15
// digits fails with ErrInvalid.
func Normalize(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", eris.Wrap(ErrInvalid, "empty input")
	}

	international := strings.HasPrefix(trimmed, "+")
	digits := digitsOnly(trimmed)

	switch {
	case international:
		// Already has a country code; nothing to strip.
	case strings.HasPrefix(digits, "00"):
		digits = digits[2:]
		international = true
	}

	if !international {
		if !strings.HasPrefix(digits, "0") {
			return "", eris.Wrapf(ErrInvalid, "no country code or trunk prefix in %q", raw)
		}
		digits = defaultCountryCode + digits[1:]
	}

	if len(digits) < 7 || len(digits) > 15 {
		return "", eris.Wrapf(ErrInvalid, "%d digits after normalization", len(digits))
	}
	if strings.HasPrefix(digits, "0") {
		return "", eris.Wrapf(ErrInvalid, "zero-prefixed country code in %q", raw)
	}

	return "+" + digits, nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
