package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// numberRegexp captures the first number, including grouping and decimal
// separators ("€ 23.000,-" -> "23.000", "USD 1,200.50" -> "1,200.50").
var numberRegexp = regexp.MustCompile(`\d(?:[\d.,' \x{00A0}\x{202F}]*\d)?`)

// ParseNumber extracts the first number from free text. It accepts "." and
// "," as either grouping or decimal separator:
//   - both present: the last one is the decimal separator
//   - one present several times: grouping
//   - one present once with exactly three trailing digits: grouping
//   - otherwise: decimal
//
// A "-" or U+2212 directly before the number makes it negative unless it
// joins two words ("A-3", "2019-03").
func ParseNumber(raw string) (float64, bool) {
	loc := numberRegexp.FindStringIndex(raw)
	if loc == nil {
		return 0, false
	}
	token := raw[loc[0]:loc[1]]
	negative := hasLeadingSign(raw[:loc[0]])

	token = strings.NewReplacer(" ", "", "'", "", "\u00a0", "", "\u202f", "").Replace(token)

	lastDot := strings.LastIndex(token, ".")
	lastComma := strings.LastIndex(token, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastDot > lastComma {
			token = strings.ReplaceAll(token, ",", "")
		} else {
			token = strings.ReplaceAll(token, ".", "")
			token = strings.Replace(token, ",", ".", 1)
		}
	case lastDot >= 0:
		token = resolveSingleSeparator(token, ".")
	case lastComma >= 0:
		token = resolveSingleSeparator(token, ",")
	}

	value, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		value = -value
	}
	return value, true
}

func hasLeadingSign(prefix string) bool {
	sign, size := utf8.DecodeLastRuneInString(prefix)
	if sign != '-' && sign != '\u2212' {
		return false
	}
	before, _ := utf8.DecodeLastRuneInString(prefix[:len(prefix)-size])
	return before == utf8.RuneError || !(unicode.IsLetter(before) || unicode.IsDigit(before))
}

func resolveSingleSeparator(token, sep string) string {
	if strings.Count(token, sep) > 1 {
		return strings.ReplaceAll(token, sep, "")
	}
	idx := strings.Index(token, sep)
	if len(token)-idx-1 == 3 {
		return strings.Replace(token, sep, "", 1)
	}
	return strings.Replace(token, sep, ".", 1)
}
