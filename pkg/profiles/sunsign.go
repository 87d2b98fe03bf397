package profiles

import "time"

type signBoundary struct {
	month time.Month
	day   int
	sign  string
}

// Last day (inclusive) of each sign, in calendar order
var signBoundaries = []signBoundary{
	{time.January, 20, "Capricorno"},
	{time.February, 19, "Acquario"},
	{time.March, 20, "Pesci"},
	{time.April, 20, "Ariete"},
	{time.May, 21, "Toro"},
	{time.June, 21, "Gemelli"},
	{time.July, 23, "Cancro"},
	{time.August, 23, "Leone"},
	{time.September, 23, "Vergine"},
	{time.October, 23, "Bilancia"},
	{time.November, 22, "Scorpione"},
	{time.December, 22, "Sagittario"},
	{time.December, 31, "Capricorno"},
}

// SunSign returns the Italian name of the tropical sun sign for a birth date
func SunSign(birth time.Time) string {
	m, d := birth.Month(), birth.Day()
	for _, b := range signBoundaries {
		if m < b.month || (m == b.month && d <= b.day) {
			return b.sign
		}
	}
	return "Capricorno"
}

// SunSignFromString parses a YYYY-MM-DD date and returns its sun sign
func SunSignFromString(date string) (string, bool) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "", false
	}
	return SunSign(t), true
}
