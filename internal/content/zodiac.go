package content

import "time"

type zodiacRange struct {
	sign       string
	month, day int // start of the range (inclusive)
}

// Ranges in year order; each entry starts a sign, the previous one ends the
// day before. Capricorn wraps the year boundary.
var zodiacRanges = []zodiacRange{
	{"capricorn", 1, 1},
	{"aquarius", 1, 20},
	{"pisces", 2, 19},
	{"aries", 3, 21},
	{"taurus", 4, 20},
	{"gemini", 5, 21},
	{"cancer", 6, 21},
	{"leo", 7, 23},
	{"virgo", 8, 23},
	{"libra", 9, 23},
	{"scorpio", 10, 23},
	{"sagittarius", 11, 22},
	{"capricorn", 12, 22},
}

// ZodiacForDate returns the zodiac sign for a YYYY-MM-DD birth date, or ""
// when the date does not parse.
func ZodiacForDate(birthDate string) string {
	t, err := time.Parse("2006-01-02", birthDate)
	if err != nil {
		return ""
	}
	month, day := int(t.Month()), t.Day()

	sign := zodiacRanges[0].sign
	for _, r := range zodiacRanges {
		if month > r.month || (month == r.month && day >= r.day) {
			sign = r.sign
		}
	}
	return sign
}
