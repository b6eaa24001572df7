package operators

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	cardPattern     = regexp.MustCompile(`(?:\d[ -]*?){13,16}`)
	emailRepeats    = regexp.MustCompile(`(\.{2}|-{2}|_{2})`)
	emailPattern    = regexp.MustCompile(`(?i)^[a-z0-9][a-z0-9_.\-]+@[a-z0-9][a-z0-9\-]+[a-z0-9]\.[a-z]{2,10}(?:\.[a-z]{2,10})?$`)
	urlPattern      = regexp.MustCompile(`(?is)^(?:https?|ftp)://[^\s/$.?#].[^\s]*$`)
	uuidPattern     = regexp.MustCompile(`(?i)^[a-f\d]{8}(?:-[a-f\d]{4}){3}-[a-f\d]{12}$`)
	ipPattern       = regexp.MustCompile(`^(?:(?:2(?:[0-4][0-9]|5[0-5])|[0-1]?[0-9]?[0-9])\.){3}(?:2(?:[0-4][0-9]|5[0-5])|[0-1]?[0-9]?[0-9])$`)
	ssnPattern      = regexp.MustCompile(`^\d{3}-?\d{2}-?\d{4}$`)
	zipPattern      = regexp.MustCompile(`^[0-9]{5}(?:-[0-9]{4})?$`)
	isbnPrefix      = regexp.MustCompile(`^(?:ISBN(?:-1[03])?:?\s)?`)
	isbnShape       = regexp.MustCompile(`^(?:[-0-9\s]{17}|[-0-9X\s]{13}|[0-9X]{10})$`)
	isbnPattern     = regexp.MustCompile(`^(?:97[89][-\s]?)?[0-9]{1,5}[-\s]?(?:[0-9]+[-\s]?){2}[0-9X]$`)
	cardSeparators  = strings.NewReplacer(" ", "", "-", "")
	soundexFoldings = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

func isCreditCard(s string) bool {
	if !cardPattern.MatchString(s) {
		return false
	}
	return luhn(cardSeparators.Replace(s))
}

// luhn validates the check digit of a string of decimal digits
func luhn(digits string) bool {
	if len(digits) < 2 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func isEmail(s string) bool {
	return !emailRepeats.MatchString(s) && emailPattern.MatchString(s)
}

// isISBN checks the overall shape after the optional "ISBN" label and then
// the grouping of digits.
func isISBN(s string) bool {
	rest := s[len(isbnPrefix.FindString(s)):]
	return isbnShape.MatchString(rest) && isbnPattern.MatchString(rest)
}

var soundexCodes = map[rune]int{
	'a': 0, 'e': 0, 'i': 0, 'o': 0, 'u': 0,
	'b': 1, 'f': 1, 'p': 1, 'v': 1,
	'c': 2, 'g': 2, 'j': 2, 'k': 2, 'q': 2, 's': 2, 'x': 2, 'z': 2,
	'd': 3, 't': 3,
	'l': 4,
	'm': 5, 'n': 5,
	'r': 6,
}

// uncoded marks letters such as h, w and y that carry no code but still
// separate repeated codes.
const uncoded = -1

func soundexCode(r rune) int {
	if c, ok := soundexCodes[r]; ok {
		return c
	}
	return uncoded
}

// Soundex returns the four character phonetic code of s. Accents are folded
// first so "Zoë" and "Zoe" share a code.
func Soundex(s string) string {
	folded, _, err := transform.String(soundexFoldings, s)
	if err != nil {
		folded = s
	}
	letters := []rune(strings.ToLower(folded))
	if len(letters) == 0 {
		return "000"
	}

	first := letters[0]
	var b strings.Builder
	b.WriteRune(first)

	prev := soundexCode(first)
	for _, r := range letters[1:] {
		code := soundexCode(r)
		if code != prev && code > 0 {
			b.WriteByte(byte('0' + code))
		}
		prev = code
	}

	out := []rune(strings.ToUpper(b.String()) + "000")
	return string(out[:4])
}
