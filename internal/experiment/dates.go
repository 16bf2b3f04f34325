package experiment

import (
	"strconv"
	"strings"
	"time"

	apperrors "csstcli/internal/errors"
)

// startLayouts are tried in order. Month, day and hour accept one or two
// digits.
var startLayouts = []string{
	"1/2/2006 3:04:05 PM",
	"1/2/06 15:04",
	"2006-1-2 15:04:05",
}

// ParseStartOfExperiment parses the "Start of Experiment" timestamp. Runs of
// whitespace are collapsed before matching. The result is in UTC.
func ParseStartOfExperiment(value string) (time.Time, *apperrors.AppError) {
	normalised := strings.ToUpper(strings.Join(strings.Fields(value), " "))
	for _, layout := range startLayouts {
		if t, err := time.Parse(layout, normalised); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperrors.NewDateFormatError(value)
}

// ParseDecimalTime converts "HH:MM:SS" or "D.HH:MM:SS" into hours
func ParseDecimalTime(value string) (float64, *apperrors.AppError) {
	s := strings.TrimSpace(value)

	var days float64
	if dot := strings.Index(s, "."); dot >= 0 && dot < strings.Index(s, ":") {
		d, err := strconv.ParseUint(s[:dot], 10, 32)
		if err != nil {
			return 0, apperrors.NewParsingError("invalid day in elapsed time", err).WithContext("value", value)
		}
		days = float64(d)
		s = s[dot+1:]
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, apperrors.NewParsingError("elapsed time is not HH:MM:SS or D.HH:MM:SS", nil).
			WithContext("value", value)
	}
	hours, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return 0, apperrors.NewParsingError("invalid hours in elapsed time", err).WithContext("value", value)
	}
	minutes, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil || minutes > 59 {
		return 0, apperrors.NewParsingError("invalid minutes in elapsed time", err).WithContext("value", value)
	}
	seconds, err := parseFinite(parts[2])
	if err != nil || seconds < 0 || seconds >= 60 {
		return 0, apperrors.NewParsingError("invalid seconds in elapsed time", err).WithContext("value", value)
	}

	return days*24 + float64(hours) + float64(minutes)/60 + seconds/3600, nil
}
