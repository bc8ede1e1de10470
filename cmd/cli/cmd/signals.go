package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// abortWindow is how close two interrupts must be to stop the whole run.
const abortWindow = 2 * time.Second

// watchSignals turns Ctrl-C into a per-file interrupt. A second Ctrl-C
// within abortWindow, or SIGTERM, cancels the run. The returned func stops
// watching.
func watchSignals(cancel context.CancelFunc, interrupts chan<- struct{}) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go relaySignals(sigs, done, cancel, interrupts, time.Now)

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

// relaySignals forwards Ctrl-C to interrupts until done is closed. A pending
// interrupt stays queued for the next file when interrupts is buffered.
func relaySignals(sigs <-chan os.Signal, done <-chan struct{}, cancel context.CancelFunc, interrupts chan<- struct{}, now func() time.Time) {
	var last time.Time
	for {
		select {
		case <-done:
			return
		case sig := <-sigs:
			t := now()
			if sig != os.Interrupt || (!last.IsZero() && t.Sub(last) < abortWindow) {
				cancel()
				return
			}
			last = t
			select {
			case interrupts <- struct{}{}:
			default:
			}
		}
	}
}

// notifyInterrupt cancels ctx on Ctrl-C; used around the path prompt, where
// an interrupt ends the program.
func notifyInterrupt(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
