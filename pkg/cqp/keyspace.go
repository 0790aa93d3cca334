package cqp

import "sync"

// KeyspaceWatcher holds the session's current keyspace and notifies pool
// watcher tasks when it changes. Subscriptions are conflating: a slow consumer
// only ever observes the latest value, never a backlog of stale ones.
type KeyspaceWatcher struct {
	mu            sync.Mutex
	current       string
	closed        bool
	subscriptions map[*KeyspaceSubscription]struct{}
}

// KeyspaceSubscription delivers keyspace changes on C until cancelled or the
// watcher is closed.
type KeyspaceSubscription struct {
	C       <-chan string
	channel chan string
	watcher *KeyspaceWatcher
}

// Cancel detaches the subscription and closes its channel.
// Safe to call more than once.
func (s *KeyspaceSubscription) Cancel() {
	s.watcher.cancel(s)
}

// NewKeyspaceWatcher creates a watcher with no keyspace selected.
func NewKeyspaceWatcher() *KeyspaceWatcher {
	return &KeyspaceWatcher{subscriptions: make(map[*KeyspaceSubscription]struct{})}
}

// Current returns the active keyspace, false when none has been selected yet.
func (w *KeyspaceWatcher) Current() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current, w.current != ""
}

// SetKeyspace records the new active keyspace and notifies all subscribers.
func (w *KeyspaceWatcher) SetKeyspace(keyspace string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}

	w.current = keyspace
	for subscription := range w.subscriptions {
		// Replace any undelivered value with the latest one.
		select {
		case <-subscription.channel:
		default:
		}
		subscription.channel <- keyspace
	}
}

// Subscribe registers a new subscription for keyspace changes.
func (w *KeyspaceWatcher) Subscribe() *KeyspaceSubscription {
	w.mu.Lock()
	defer w.mu.Unlock()

	channel := make(chan string, 1)
	subscription := &KeyspaceSubscription{C: channel, channel: channel, watcher: w}

	if w.closed {
		close(channel)
		return subscription
	}

	w.subscriptions[subscription] = struct{}{}
	return subscription
}

// Close cancels every subscription. Further SetKeyspace calls are ignored.
func (w *KeyspaceWatcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}

	w.closed = true
	for subscription := range w.subscriptions {
		close(subscription.channel)
		delete(w.subscriptions, subscription)
	}
}

func (w *KeyspaceWatcher) cancel(subscription *KeyspaceSubscription) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.subscriptions[subscription]; ok {
		close(subscription.channel)
		delete(w.subscriptions, subscription)
	}
}
