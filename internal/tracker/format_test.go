package tracker

import (
	"testing"
	"time"
)

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "00:00"},
		{1, "00:01"},
		{59, "00:59"},
		{61, "01:01"},
		{599, "09:59"},
		{3599, "59:59"},
		{3600, "01:00:00"},
		{3661, "01:01:01"},
		{36000, "10:00:00"},
	}
	for _, tt := range tests {
		got := FormatElapsed(time.Duration(tt.seconds) * time.Second)
		if got != tt.want {
			t.Errorf("FormatElapsed(%ds) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestFormatElapsedNegative(t *testing.T) {
	if got := FormatElapsed(-5 * time.Second); got != "00:00" {
		t.Errorf("FormatElapsed(-5s) = %q, want 00:00", got)
	}
}
