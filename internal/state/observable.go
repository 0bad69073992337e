// Package state holds the concurrency primitives shared by the tradeonly stores.
package state

import (
	"context"
	"sync"
)

// Listener receives a snapshot after every change. Snapshots are shared
// between listeners and must be treated as read-only. A listener must not
// call a mutator on the same Observable synchronously.
type Listener[S any] func(S)

// Observable is a mutex-guarded state value with change subscriptions.
// Listeners never see a snapshot older than one already delivered.
type Observable[S any] struct {
	mu        sync.Mutex
	state     S
	version   uint64
	clone     func(S) S
	listeners map[uint64]Listener[S]
	nextID    uint64

	deliverMu sync.Mutex
	delivered uint64
}

// NewObservable wraps initial. clone must deep-copy any slices or maps in S.
func NewObservable[S any](initial S, clone func(S) S) *Observable[S] {
	return &Observable[S]{
		state:     initial,
		clone:     clone,
		listeners: make(map[uint64]Listener[S]),
	}
}

// Get returns a copy of the current state.
func (o *Observable[S]) Get() S {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.clone(o.state)
}

// Version returns the number of changes applied so far.
func (o *Observable[S]) Version() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.version
}

// Update runs fn under the state lock. When fn reports a change the new
// state is published. Returns whatever fn returned.
func (o *Observable[S]) Update(fn func(*S) bool) bool {
	o.mu.Lock()
	if !fn(&o.state) {
		o.mu.Unlock()
		return false
	}
	v, snap, ls := o.bumpLocked()
	o.mu.Unlock()

	o.deliver(v, snap, ls)
	return true
}

// Subscribe registers l and returns a func that removes it. The returned
// func is safe to call more than once.
func (o *Observable[S]) Subscribe(l Listener[S]) func() {
	o.mu.Lock()
	o.nextID++
	id := o.nextID
	o.listeners[id] = l
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.listeners, id)
			o.mu.Unlock()
		})
	}
}

// Subscribers returns the number of registered listeners.
func (o *Observable[S]) Subscribers() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.listeners)
}

// Mutation is an optimistic local change backed by a remote call.
type Mutation[S any] struct {
	// Apply mutates the state locally. Returning false means there is
	// nothing to do and Commit is not called.
	Apply func(*S) bool

	// Commit performs the remote call.
	Commit func(ctx context.Context) error

	// Compensate undoes only this mutation. It is used instead of the
	// snapshot restore when other changes landed while Commit was running.
	Compensate func(*S)
}

// Optimistic snapshots the state, applies m locally, then commits it
// remotely. When Commit fails the exact prior snapshot is restored, unless
// the state has moved on since, in which case Compensate runs instead.
// applied is false when Apply reported no change.
func (o *Observable[S]) Optimistic(ctx context.Context, m Mutation[S]) (applied bool, err error) {
	o.mu.Lock()
	prior := o.clone(o.state)
	if !m.Apply(&o.state) {
		o.mu.Unlock()
		return false, nil
	}
	appliedAt, snap, ls := o.bumpLocked()
	o.mu.Unlock()
	o.deliver(appliedAt, snap, ls)

	if err = m.Commit(ctx); err == nil {
		return true, nil
	}

	o.mu.Lock()
	switch {
	case o.version == appliedAt:
		o.state = prior
	case m.Compensate != nil:
		m.Compensate(&o.state)
	}
	v, snap, ls := o.bumpLocked()
	o.mu.Unlock()
	o.deliver(v, snap, ls)

	return true, err
}

func (o *Observable[S]) bumpLocked() (uint64, S, []Listener[S]) {
	o.version++
	ls := make([]Listener[S], 0, len(o.listeners))
	for _, l := range o.listeners {
		ls = append(ls, l)
	}
	return o.version, o.clone(o.state), ls
}

func (o *Observable[S]) deliver(v uint64, snap S, ls []Listener[S]) {
	o.deliverMu.Lock()
	defer o.deliverMu.Unlock()
	if v <= o.delivered {
		return
	}
	o.delivered = v
	for _, l := range ls {
		l(snap)
	}
}
