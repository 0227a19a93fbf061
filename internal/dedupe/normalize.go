package dedupe

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// fold lowercases and NFKC-normalizes a key value so that fullwidth or
// composed characters pasted from upstream sources produce the same key.
func fold(s string) string {
	return strings.ToLower(norm.NFKC.String(strings.TrimSpace(s)))
}

// NormalizePlaceID normalizes an external place identifier for exact match.
func NormalizePlaceID(placeID string) string {
	return fold(placeID)
}

// NormalizeSourceURL normalizes a source URL for exact match.
func NormalizeSourceURL(sourceURL string) string {
	return fold(sourceURL)
}

// NormalizeEmail normalizes an email address key.
func NormalizeEmail(email string) string {
	return fold(email)
}

// phoneStripper removes formatting characters so phone matching is
// format-insensitive: "0712 345 6789" and "(0712)-345-6789" collide.
var phoneStripper = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")

// NormalizePhone normalizes a phone number key.
func NormalizePhone(phone string) string {
	return phoneStripper.Replace(fold(phone))
}

// NameCityKey builds the advisory name+city key.
func NameCityKey(name, city string) string {
	return fold(name) + "|" + fold(city)
}
