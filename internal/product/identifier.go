package product

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var standaloneDigits = regexp.MustCompile(`(?:^|\D)(\d+)(?:\D|$)`)

// ExtractID normalizes a product identifier from an integer, a numeric string,
// or free text such as a product URL. It reports false when no positive
// identifier can be found.
func ExtractID(input any) (int64, bool) {
	switch v := input.(type) {
	case int:
		return positive(int64(v))
	case int32:
		return positive(int64(v))
	case int64:
		return positive(v)
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, false
		}
		return positive(int64(v))
	case uint32:
		return positive(int64(v))
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return positive(int64(v))
	case string:
		return extractFromString(v)
	default:
		return 0, false
	}
}

func extractFromString(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if allDigits(s) {
		return parsePositive(s)
	}
	m := standaloneDigits.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	return parsePositive(m[1])
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func parsePositive(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return positive(n)
}

func positive(n int64) (int64, bool) {
	if n <= 0 {
		return 0, false
	}
	return n, true
}
