package flow

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	dateFormatRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeFormatRe = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

// ValidateName accepts any non-empty trimmed string.
func ValidateName(input string) error {
	if strings.TrimSpace(input) == "" {
		return errors.New("name must not be empty")
	}
	return nil
}

// ValidateDate checks YYYY-MM-DD format and that the date actually exists on
// the calendar.
func ValidateDate(input string) error {
	if !dateFormatRe.MatchString(input) {
		return errors.New("enter the date in YYYY-MM-DD format (e.g. 1990-01-31)")
	}
	year, _ := strconv.Atoi(input[0:4])
	month, _ := strconv.Atoi(input[5:7])
	day, _ := strconv.Atoi(input[8:10])

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		return errors.New("that date does not exist, enter a real date as YYYY-MM-DD")
	}
	return nil
}

// ValidateTime checks HH:MM 24-hour format.
func ValidateTime(input string) error {
	if !timeFormatRe.MatchString(input) {
		return errors.New("enter the time in HH:MM format (e.g. 15:30)")
	}
	hour, _ := strconv.Atoi(input[0:2])
	minute, _ := strconv.Atoi(input[3:5])
	if hour > 23 || minute > 59 {
		return errors.New("enter a valid 24-hour time as HH:MM")
	}
	return nil
}
