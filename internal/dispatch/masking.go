package dispatch

import (
	"regexp"
	"strings"
)

// digitRunPattern matches a run of digits, allowing single spaces or
// hyphens between them, so "90 123 45 67" and "90-123-45-67" count as
// one run.
var digitRunPattern = regexp.MustCompile(`\d(?:[ -]?\d)+`)

// MaskPhoneNumbers hides phone numbers in announcement text. Any digit
// run of seven or more digits keeps its first two and last two digits
// with the middle replaced. Shorter runs (prices, house numbers) pass
// through, which also makes the function idempotent: masked output only
// contains two-digit runs.
func MaskPhoneNumbers(text string) string {
	return digitRunPattern.ReplaceAllStringFunc(text, func(run string) string {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, run)

		if len(digits) < 7 {
			return run
		}

		return digits[:2] + "*****" + digits[len(digits)-2:]
	})
}
