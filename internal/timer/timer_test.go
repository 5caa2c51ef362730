package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTime(t *testing.T) {
	const (
		threshold  = 200 * time.Millisecond
		resolution = Resolution + Resolution/2
	)

	for range time.Second / threshold {
		if time.Since(Now()) > resolution {
			require.Fail(t, "the timer is too slow")
		}

		time.Sleep(threshold)
	}
}

func TestDate(t *testing.T) {
	parsed, err := ParseHTTP(Date())
	require.NoError(t, err)
	require.WithinDuration(t, time.Now(), parsed, 2*Resolution+time.Second)
	require.Equal(t, "Fri, 01 Mar 2024 12:00:00 GMT", FormatHTTP(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)))
}
