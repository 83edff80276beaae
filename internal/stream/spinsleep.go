package stream

import (
	"runtime"
	"time"
)

// nativeSleepSlack is subtracted from the requested duration before a
// blocking time.Sleep; the remainder is spun (yielding the scheduler)
// to land closer to the deadline than the OS timer alone can.
const nativeSleepSlack = 100 * time.Microsecond

// spinSleep blocks for roughly d, sleeping natively for all but the
// last nativeSleepSlack and then spin-yielding to the deadline. Used
// between datagrams where a plain time.Sleep would overshoot a
// sub-millisecond interval.
func spinSleep(d time.Duration) {
	if d <= 0 {
		return
	}
	deadline := time.Now().Add(d)
	if d > nativeSleepSlack {
		time.Sleep(d - nativeSleepSlack)
	}
	for time.Now().Before(deadline) {
		runtime.Gosched()
	}
}
