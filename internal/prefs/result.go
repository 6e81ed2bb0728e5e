package prefs

import "context"

// Pending is a one-shot completion for an asynchronous store operation.
// Fire-and-forget callers simply drop it; save paths and tests Wait on it.
type Pending struct {
	done chan struct{}
	err  error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// completedPending returns an already-settled Pending.
func completedPending(err error) *Pending {
	p := newPending()
	p.complete(err)
	return p
}

// complete settles the Pending. Must be called exactly once.
func (p *Pending) complete(err error) {
	p.err = err
	close(p.done)
}

// Done is closed when the operation has settled.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Err returns the operation error. Only valid after Done is closed.
func (p *Pending) Err() error { return p.err }

// Wait blocks until the operation settles or ctx is cancelled.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LoadPending carries a hydrated mute set. It always settles successfully:
// store failures degrade to an empty set (and are logged by the Gateway).
type LoadPending struct {
	done chan struct{}
	set  map[string]struct{}
}

func newLoadPending() *LoadPending {
	return &LoadPending{done: make(chan struct{})}
}

func (p *LoadPending) complete(set map[string]struct{}) {
	if set == nil {
		set = map[string]struct{}{}
	}
	p.set = set
	close(p.done)
}

// Wait blocks until the load settles or ctx is cancelled. The returned set
// is owned by the caller.
func (p *LoadPending) Wait(ctx context.Context) (map[string]struct{}, error) {
	select {
	case <-p.done:
		return p.set, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
