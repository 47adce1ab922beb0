package shutdown

import (
	"os"
	"os/signal"
	"syscall"
)

// InstallSignalHandlers arms SIGINT/SIGTERM handlers that run CleanupAll
// and then exit(0) (spec §4.I: "Signal handlers for the process's
// termination signals invoke cleanup_all and then exit with code 0").
// Returns a stop function that disarms the handlers without running
// cleanup, for callers (tests, embedders) that manage their own exit path.
func (t *Tracker) InstallSignalHandlers() (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case <-ch:
			t.CleanupAll()
			os.Exit(0)
		case <-done:
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}
