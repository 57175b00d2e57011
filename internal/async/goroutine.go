package async

import (
	"runtime/debug"

	"govai/internal/logging"
)

// Go runs fn in a goroutine guarded by panic recovery. The returned channel
// closes once fn has returned or panicked.
func Go(logger logging.Logger, name string, fn func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer Recover(logger, name)
		fn()
	}()
	return done
}

// Recover logs panic details without crashing the process. It must be
// called directly from a deferred statement.
func Recover(logger logging.Logger, name string) {
	r := recover()
	if r == nil {
		return
	}
	log := logging.OrNop(logger)
	if name == "" {
		log.Error("goroutine panic: %v, stack: %s", r, debug.Stack())
		return
	}
	log.Error("goroutine panic [%s]: %v, stack: %s", name, r, debug.Stack())
}
