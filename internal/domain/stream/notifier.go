// Package stream provides wakeup notifications for event stream consumers.
package stream

import "sync"

// Notifier fans out per-job wakeup signals to stream subscribers. Appending
// an event broadcasts to every subscriber of that job so pollers wake
// immediately instead of sleeping a full poll interval.
type Notifier struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

// NewNotifier constructs an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[string]map[chan struct{}]struct{})}
}

// Subscribe registers interest in wakeups for a job. It returns an
// unsubscribe function and a signal channel with a one-slot buffer; missed
// signals coalesce.
func (n *Notifier) Subscribe(jobID string) (func(), <-chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan struct{}, 1)
	if n.subs[jobID] == nil {
		n.subs[jobID] = make(map[chan struct{}]struct{})
	}
	n.subs[jobID][ch] = struct{}{}

	unsub := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		subscribers := n.subs[jobID]
		if subscribers == nil {
			return
		}
		if _, ok := subscribers[ch]; !ok {
			return
		}
		delete(subscribers, ch)
		drainAndClose(ch)
		if len(subscribers) == 0 {
			delete(n.subs, jobID)
		}
	}

	return unsub, ch
}

// Broadcast signals all subscribers of a job without blocking.
func (n *Notifier) Broadcast(jobID string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for ch := range n.subs[jobID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// StopAll closes every subscription channel so receivers observe a closed
// channel immediately. Used during shutdown.
func (n *Notifier) StopAll() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for jobID, subscribers := range n.subs {
		for ch := range subscribers {
			drainAndClose(ch)
		}
		delete(n.subs, jobID)
	}
}

// drainAndClose removes any buffered signal before closing the channel.
func drainAndClose(ch chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			close(ch)
			return
		}
	}
}
