package service

import (
	"fmt"
	"time"
)

// FormatUptime renders now-since as whole hours and minutes, e.g. "2h 15m".
// A start time in the future renders as "0h 0m".
func FormatUptime(since, now time.Time) string {
	d := now.Sub(since)
	if d < 0 {
		d = 0
	}
	hours := int64(d / time.Hour)
	minutes := int64((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
