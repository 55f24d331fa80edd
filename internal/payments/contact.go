package payments

import (
	"strings"
	"unicode"

	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
)

// MinPhoneDigits is the shortest subscriber number accepted for mobile money.
const MinPhoneDigits = 9

// NormalizePhone strips formatting and leading zeros and prefixes the country code.
// Numbers already carrying the country code are not prefixed twice.
func NormalizePhone(raw, countryCode string) (string, error) {
	number := strings.TrimLeft(onlyDigits(raw), "0")
	code := strings.TrimLeft(onlyDigits(countryCode), "0")
	if len(number) < MinPhoneDigits {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "phone number must have at least 9 digits").
			WithDetails(map[string]string{"phone_number": "too short"})
	}
	if code == "" {
		return number, nil
	}
	if strings.HasPrefix(number, code) && len(number)-len(code) >= MinPhoneDigits {
		return number, nil
	}
	return code + number, nil
}

// SplitName splits on the first run of whitespace. A single word becomes the first name.
func SplitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	idx := strings.IndexFunc(full, unicode.IsSpace)
	if idx < 0 {
		return full, ""
	}
	return full[:idx], strings.TrimSpace(full[idx:])
}

func onlyDigits(value string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, value)
}
