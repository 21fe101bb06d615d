// Package globaltime is the mockable clock used everywhere a week window or
// an age is computed, so tests can pin "now" without plumbing it through
// every call site.
package globaltime

import (
	"sync"
	"time"
)

var (
	mu      sync.RWMutex
	nowFunc = time.Now
)

func Now() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	return nowFunc()
}

func UTC() time.Time {
	return Now().UTC()
}

// Window returns the collection window ending now: [now-daysBack, now] in
// the given location.
func Window(loc *time.Location, daysBack int) (start, end time.Time) {
	end = Now().In(loc)
	start = end.AddDate(0, 0, -daysBack)
	return start, end
}

func SetMockTime(t time.Time) {
	mu.Lock()
	defer mu.Unlock()
	nowFunc = func() time.Time { return t }
}

func ResetTime() {
	mu.Lock()
	defer mu.Unlock()
	nowFunc = time.Now
}
