package timer

import (
	"sync/atomic"
	"time"
)

// Time contains the unix-time in milliseconds updated every [Resolution] milliseconds
var Time = new(atomic.Int64)

var date atomic.Pointer[string]

// Resolution is the frequency at which time is updated. Default 500ms are
// precise enough for setting I/O deadlines and rendering the Date header.
const Resolution = 500 * time.Millisecond

// DateLayout is the IMF-fixdate format HTTP requires for the Date and Last-Modified headers.
const DateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

func Now() time.Time {
	millis := Time.Load()
	return time.Unix(millis/1000, (millis%1000)*1e6)
}

// Date returns the current time already formatted for the Date header.
func Date() string {
	return *date.Load()
}

// FormatHTTP renders the time as HTTP requires it.
func FormatHTTP(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseHTTP parses IMF-fixdate values, as sent in If-Modified-Since.
func ParseHTTP(value string) (time.Time, error) {
	return time.Parse(DateLayout, value)
}

func update() {
	now := time.Now()
	Time.Store(now.UnixMilli())
	formatted := FormatHTTP(now)
	date.Store(&formatted)
}

func init() {
	// the goroutine isn't guaranteed to start immediately, so the first values are stored
	// synchronously. Otherwise rapid usage would observe zero-time.
	update()

	go func() {
		for {
			time.Sleep(Resolution)
			update()
		}
	}()
}
