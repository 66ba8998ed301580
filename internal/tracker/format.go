package tracker

import (
	"fmt"
	"time"
)

// FormatElapsed renders an elapsed duration for the status line: "HH:MM:SS"
// once a full hour has passed, "MM:SS" before that. Every field is
// zero-padded to two digits. Presentation only; billed duration is always
// end minus start at the data layer.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
