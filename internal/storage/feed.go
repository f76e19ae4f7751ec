package storage

import "sync"

// Watcher delivers snapshots of one document to a callback on a dedicated
// goroutine. Only the latest undelivered snapshot is kept: consumers need
// the current state, not the history.
type Watcher struct {
	fn func(Snapshot)

	mu       sync.Mutex
	pending  *Snapshot
	accepted *Snapshot
	stopped  bool

	notify chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewWatcher starts the delivery goroutine for fn.
func NewWatcher(fn func(Snapshot)) *Watcher {
	w := &Watcher{
		fn:     fn,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go w.run()
	return w
}

// Offer queues s for delivery unless it is older than, or the same as,
// a snapshot already accepted.
func (w *Watcher) Offer(s Snapshot) {
	w.mu.Lock()
	if w.stopped || w.stale(s) {
		w.mu.Unlock()
		return
	}
	snap := s
	w.accepted = &snap
	w.pending = &snap
	w.mu.Unlock()

	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// stale must be called with w.mu held.
func (w *Watcher) stale(s Snapshot) bool {
	prev := w.accepted
	if prev == nil {
		return false
	}
	if !prev.Exists && s.Exists {
		// Re-created after a delete; revisions restart.
		return false
	}
	if s.Revision < prev.Revision {
		return true
	}
	return s.Revision == prev.Revision && s.Exists == prev.Exists
}

// Stop ends delivery. A callback already running is allowed to finish.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		w.mu.Lock()
		w.stopped = true
		w.pending = nil
		w.mu.Unlock()
		close(w.done)
	})
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case <-w.notify:
		}
		w.mu.Lock()
		next := w.pending
		w.pending = nil
		stopped := w.stopped
		w.mu.Unlock()
		if stopped {
			return
		}
		if next != nil {
			w.fn(*next)
		}
	}
}

// Feed fans out document snapshots to in-process watchers.
type Feed struct {
	mu   sync.Mutex
	subs map[string]map[*Watcher]struct{}
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[string]map[*Watcher]struct{})}
}

// Subscribe registers fn for document id. The returned function
// unregisters and stops the watcher.
func (f *Feed) Subscribe(id string, fn func(Snapshot)) (*Watcher, func()) {
	w := NewWatcher(fn)
	f.mu.Lock()
	if f.subs[id] == nil {
		f.subs[id] = make(map[*Watcher]struct{})
	}
	f.subs[id][w] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if set := f.subs[id]; set != nil {
			delete(set, w)
			if len(set) == 0 {
				delete(f.subs, id)
			}
		}
		f.mu.Unlock()
		w.Stop()
	}
	return w, cancel
}

// Publish offers s to every watcher of s.ID.
func (f *Feed) Publish(s Snapshot) {
	f.mu.Lock()
	watchers := make([]*Watcher, 0, len(f.subs[s.ID]))
	for w := range f.subs[s.ID] {
		watchers = append(watchers, w)
	}
	f.mu.Unlock()

	for _, w := range watchers {
		w.Offer(s)
	}
}

// Close stops every watcher.
func (f *Feed) Close() {
	f.mu.Lock()
	subs := f.subs
	f.subs = make(map[string]map[*Watcher]struct{})
	f.mu.Unlock()

	for _, set := range subs {
		for w := range set {
			w.Stop()
		}
	}
}
