package printer

import (
	"fmt"
	"time"
)

// FormatBytes returns a human-readable output size.
// Examples: "0 B", "512 B", "1.5 KB", "3.0 MB".
func FormatBytes(bytes int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
	)

	switch {
	case bytes <= 0:
		return "0 B"
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// FormatTimestamp returns a formatted timestamp string in UTC.
// Format: "2006-01-02 15:04:05 UTC".
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}

// FormatDuration rounds a session duration for display.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}
