package exporter

import (
	"strconv"
	"time"
)

// formatFloat renders the shortest representation that parses back to f
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatInt formats an int value for CSV output
func formatInt(i int) string {
	return strconv.Itoa(i)
}

// formatTime renders timestamps as RFC 3339, empty for the zero time
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
