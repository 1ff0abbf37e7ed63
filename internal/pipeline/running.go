package pipeline

import "sync/atomic"

// RunningFlag is a one-way switch from running to stopped. Any goroutine
// may stop it; nothing can restart it.
type RunningFlag struct {
	stopped atomic.Bool
}

// NewRunningFlag returns a flag in the running state
func NewRunningFlag() *RunningFlag {
	return &RunningFlag{}
}

// Running reports whether Stop has not been called yet
func (f *RunningFlag) Running() bool {
	return !f.stopped.Load()
}

// Stop clears the flag. It reports whether this call was the one that
// flipped it.
func (f *RunningFlag) Stop() bool {
	return f.stopped.CompareAndSwap(false, true)
}
