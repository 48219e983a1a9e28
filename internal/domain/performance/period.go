package performance

import (
	"strings"
	"time"
)

const (
	MinYear = 1900
	MaxYear = 9999
	MaxWeek = 53
)

// Period is an ISO-8601 (year, week) pair.
type Period struct {
	Year int `json:"year"`
	Week int `json:"week_number"`
}

// ResolvePeriod derives the ISO week from reviewDate when present. Otherwise
// week and year must both be supplied.
func ResolvePeriod(reviewDate *time.Time, week, year *int) (Period, error) {
	if reviewDate != nil {
		y, w := reviewDate.ISOWeek()
		return Period{Year: y, Week: w}, nil
	}
	if week == nil || year == nil {
		return Period{}, NewValidationError("week", "Valid week and year are required.")
	}
	verr := &ValidationError{}
	if *week < 1 || *week > MaxWeek {
		verr.Add("week", "Week must be between 1 and 53.")
	}
	if *year < MinYear || *year > MaxYear {
		verr.Add("year", "Year must be between 1900 and 9999.")
	}
	if err := verr.Err(); err != nil {
		return Period{}, err
	}
	return Period{Year: *year, Week: *week}, nil
}

var dateLayouts = []string{"2006-01-02", time.RFC3339}

// ParseReviewDate accepts a calendar date or an RFC 3339 timestamp and returns
// the date at UTC midnight.
func ParseReviewDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}
