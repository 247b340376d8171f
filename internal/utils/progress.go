package utils

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"
)

const progressWidth = 50

// Progress draws an operator console progress bar for long-running batch
// fetches. step is the completed fraction in [0, 1].
func Progress(step float64) {
	if step < 0 {
		step = 0
	}
	if step > 1 {
		step = 1
	}
	filled := int(math.Ceil(progressWidth * step))
	bar := strings.Repeat("■", filled) + strings.Repeat("□", progressWidth-filled)
	pct := int(math.Ceil(step * 100))
	Clear()
	fmt.Fprintf(os.Stdout, "%s %d%%", bar, pct)
}

// Clear erases the current console line
func Clear() {
	fmt.Fprint(os.Stdout, "\r\033[K")
}

// Elapsed formats a duration as 1h 2m 3s, dropping leading zero units
func Elapsed(d time.Duration) string {
	seconds := int(d.Round(time.Second).Seconds())
	hours := seconds / 3600
	seconds %= 3600
	minutes := seconds / 60
	seconds %= 60

	var b strings.Builder
	if hours > 0 {
		fmt.Fprintf(&b, "%dh ", hours)
	}
	if hours > 0 || minutes > 0 {
		fmt.Fprintf(&b, "%dm ", minutes)
	}
	fmt.Fprintf(&b, "%ds", seconds)
	return b.String()
}
