package board

import (
	"sync/atomic"
	"time"
)

var lastVersion int64

// nextVersion returns a process-wide strictly increasing version token.
// Tokens are wall-clock nanoseconds, forced past the previous token when
// concurrent mutations land on the same instant.
func nextVersion() int64 {
	for {
		now := time.Now().UnixNano()
		last := atomic.LoadInt64(&lastVersion)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastVersion, last, now) {
			return now
		}
	}
}
