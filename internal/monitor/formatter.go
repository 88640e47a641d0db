package monitor

import "fmt"

// FormatRate formats an operation rate as "X.X op/s"
func FormatRate(rate float64) string {
	return fmt.Sprintf("%.1f op/s", rate)
}

// FormatCount formats a counter compactly: "512", "1.2K", "3.4M"
func FormatCount(n int64) string {
	const (
		thousand = 1_000
		million  = 1_000_000
	)

	switch {
	case n >= million || n <= -million:
		return fmt.Sprintf("%.1fM", float64(n)/million)
	case n >= thousand || n <= -thousand:
		return fmt.Sprintf("%.1fK", float64(n)/thousand)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// FormatPercentage formats a ratio (0-1) as percentage
func FormatPercentage(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}

// FormatMillis formats a millisecond interval as "Xms" or "Xs" or "Xm Ys"
func FormatMillis(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	seconds := ms / 1000
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	minutes := seconds / 60
	if rem := seconds % 60; rem > 0 {
		return fmt.Sprintf("%dm %ds", minutes, rem)
	}
	return fmt.Sprintf("%dm", minutes)
}
