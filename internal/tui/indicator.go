package tui

import (
	"fmt"
	"io"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// startIndicator animates a typing indicator until the returned stop func is
// called. Stop clears the indicator line and may be called exactly once.
func startIndicator(out io.Writer) func() {
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		i := 0
		for {
			select {
			case <-done:
				fmt.Fprint(out, "\r\033[K")
				return
			case <-ticker.C:
				fmt.Fprintf(out, "\r%s thinking…", spinnerFrames[i%len(spinnerFrames)])
				i++
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
	}
}
