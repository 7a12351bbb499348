package finance

import (
	"regexp"
	"time"
)

var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ValidMonth valida el formato "YYYY-MM".
func ValidMonth(s string) bool {
	return monthPattern.MatchString(s)
}

// MonthOf devuelve el mes "YYYY-MM" de t.
func MonthOf(t time.Time) string {
	return t.Format("2006-01")
}
