package resolver

import "sync/atomic"

// Deferred is the single-assignment delivery channel for one resolution. It
// is completed exactly once, with either a configuration or a permanent
// rejection, and holds no observable state before that.
type Deferred struct {
	done      chan struct{}
	completed atomic.Bool
	config    *Configuration
	err       error
}

func newDeferred() *Deferred {
	return &Deferred{done: make(chan struct{})}
}

// complete settles the deferred. Completing twice is a programming error.
func (d *Deferred) complete(config *Configuration, err error) {
	if !d.completed.CompareAndSwap(false, true) {
		panic("resolver: deferred completed twice")
	}
	d.config = config
	d.err = err
	close(d.done)
}

// Done is closed once the resolution has settled.
func (d *Deferred) Done() <-chan struct{} {
	return d.done
}

// Result blocks until the resolution has settled and returns its outcome.
func (d *Deferred) Result() (*Configuration, error) {
	<-d.done
	return d.config, d.err
}
