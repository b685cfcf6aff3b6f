package mpesa

import (
	"errors"
	"strings"
)

// ErrInvalidPhoneNumber indicates a number that cannot be normalized to the
// 254XXXXXXXXX format the gateway requires.
var ErrInvalidPhoneNumber = errors.New("invalid phone number format, use 254XXXXXXXXX")

// NormalizePhone strips non-digits and rewrites a Kenyan mobile number into
// international digit format: 254712345678. Accepted inputs are a full
// international number, a national number with the 0 trunk prefix, or a bare
// 9-digit subscriber number starting with 7.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()

	switch {
	case strings.HasPrefix(cleaned, "254") && len(cleaned) == 12:
		return cleaned, nil
	case strings.HasPrefix(cleaned, "0") && len(cleaned) == 10:
		return "254" + cleaned[1:], nil
	case strings.HasPrefix(cleaned, "7") && len(cleaned) == 9:
		return "254" + cleaned, nil
	}
	return "", ErrInvalidPhoneNumber
}
