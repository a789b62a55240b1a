// Package monitoring holds the ambient observability of the control core:
// the swappable diagnostic logger, Prometheus metrics, and a short history of
// recent cycle timings that can be charted from the debug server.
package monitoring

import (
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf and
// may be replaced by SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Throttle logs through Logf at most once per interval and counts the
// messages it suppressed in between.
type Throttle struct {
	limiter *rate.Limiter

	mu         sync.Mutex
	suppressed int
}

// NewThrottle returns a Throttle allowing one message per interval.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Logf logs the message if the limiter allows it, appending the number of
// messages dropped since the last one. It reports whether it logged.
func (t *Throttle) Logf(format string, v ...interface{}) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.limiter.Allow() {
		t.suppressed++
		return false
	}
	if t.suppressed > 0 {
		format += " (%d similar suppressed)"
		v = append(v, t.suppressed)
		t.suppressed = 0
	}
	Logf(format, v...)
	return true
}
