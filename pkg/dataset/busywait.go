package dataset

import (
	"runtime"
	"time"
)

// busyWait sleeps for d. On macOS time.Sleep overshoots badly at
// millisecond scale, so half the interval is slept and the rest is spun.
func busyWait(d time.Duration) {
	if d <= 0 {
		return
	}
	if runtime.GOOS != "darwin" {
		time.Sleep(d)
		return
	}

	start := time.Now()
	time.Sleep(d / 2)
	end := start.Add(d)
	for time.Now().Before(end) {
	}
}
