// Package session holds one participant's edit state for one open order.
//
// Toggles update the selection immediately and arm a debounce timer; when
// the timer fires the current selection is written with a fresh
// per-participant version. Remote snapshots only replace the selection
// when no local edit is pending and they are not older than the last
// version this session wrote.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mmynk/grouporder/internal/metrics"
	"github.com/mmynk/grouporder/internal/models"
)

// DefaultDebounce is the inactivity window before a selection is written.
const DefaultDebounce = 500 * time.Millisecond

var (
	ErrNotOpen = errors.New("session not open")
	ErrClosed  = errors.New("session closed")
)

// State is the session lifecycle state.
type State int

const (
	Uninitialized State = iota
	Joined
	Dirty
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Joined:
		return "joined"
	case Dirty:
		return "dirty"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Store is what a session needs from the order repository.
type Store interface {
	EnsureJoined(ctx context.Context, orderID string, who models.Identity) (*models.Order, error)
	WriteSelection(ctx context.Context, orderID string, who models.Identity, products []models.ProductRef, version int64) error
}

// Session is safe for concurrent use.
type Session struct {
	orderID string
	who     models.Identity
	store   Store

	window       time.Duration
	writeTimeout time.Duration
	clock        Clock
	logger       *slog.Logger
	metrics      *metrics.Metrics
	onError      func(error)

	mu          sync.Mutex
	state       State
	selection   []models.ProductRef
	timer       Timer
	gen         uint64 // invalidates timers that fire after being replaced
	inflight    int
	drained     chan struct{} // closed when inflight drops to zero
	lastErr     error         // result of the most recent write
	lastWritten int64
	seenVersion int64
	err         error
}

// Option configures a Session.
type Option func(*Session)

func WithDebounce(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.window = d
		}
	}
}

func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithWriteTimeout bounds each debounced write.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Session) { s.writeTimeout = d }
}

// WithOnError is called, outside the session lock, when a debounced write
// fails with anything other than models.ErrUnavailable.
func WithOnError(fn func(error)) Option {
	return func(s *Session) { s.onError = fn }
}

// New creates a session for who on orderID. Call Open before Toggle.
func New(orderID string, who models.Identity, store Store, opts ...Option) *Session {
	s := &Session{
		orderID:      orderID,
		who:          who,
		store:        store,
		window:       DefaultDebounce,
		writeTimeout: 10 * time.Second,
		clock:        RealClock,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("order_id", orderID, "identity", who.Key)
	return s
}

func (s *Session) OrderID() string            { return s.orderID }
func (s *Session) Identity() models.Identity { return s.who }

// Open joins the order if needed and seeds the selection from the
// participant's stored entry.
func (s *Session) Open(ctx context.Context) (*models.Order, error) {
	s.mu.Lock()
	if s.state != Uninitialized {
		state := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("open session in state %s", state)
	}
	s.mu.Unlock()

	order, err := s.store.EnsureJoined(ctx, s.orderID, s.who)
	if err != nil {
		return nil, err
	}
	entry, _ := order.Participant(s.who.Key)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Uninitialized {
		return nil, ErrClosed
	}
	s.selection = models.CloneRefs(entry.Products)
	s.seenVersion = entry.Version
	s.state = Joined
	s.metrics.SessionOpened()
	s.logger.Debug("Session opened", "products", len(s.selection), "version", entry.Version)
	return order, nil
}

// Toggle adds ref to the selection, or removes it if present, and returns
// the new selection. The write happens after the debounce window.
func (s *Session) Toggle(ref models.ProductRef) ([]models.ProductRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Uninitialized:
		return nil, ErrNotOpen
	case Closed:
		return nil, ErrClosed
	}

	s.selection = models.Toggle(s.selection, ref)
	s.state = Dirty
	s.arm()
	s.metrics.Toggled()
	return models.CloneRefs(s.selection), nil
}

// arm (re)starts the debounce timer. Caller holds mu.
func (s *Session) arm() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = s.clock.AfterFunc(s.window, func() { s.fire(gen) })
}

// disarm stops the debounce timer. Caller holds mu.
func (s *Session) disarm() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

// begin takes the selection to write and its version. Caller holds mu.
func (s *Session) begin() ([]models.ProductRef, int64) {
	version := max(s.lastWritten, s.seenVersion) + 1
	s.lastWritten = version
	if s.inflight == 0 {
		s.drained = make(chan struct{})
	}
	s.inflight++
	s.state = Joined
	return models.CloneRefs(s.selection), version
}

func (s *Session) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.state != Dirty {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	selection, version := s.begin()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()
	err := s.store.WriteSelection(ctx, s.orderID, s.who, selection, version)
	s.finish(err, version)
}

// settle records the result of a write started by begin. Caller holds mu.
func (s *Session) settle(err error) {
	s.lastErr = err
	s.inflight--
	if s.inflight == 0 {
		close(s.drained)
	}
}

// finish settles a debounced write.
func (s *Session) finish(err error, version int64) {
	s.mu.Lock()
	s.settle(err)
	if err == nil {
		s.mu.Unlock()
		s.metrics.Wrote("ok")
		return
	}

	if errors.Is(err, models.ErrUnavailable) {
		// Keep the edit and retry on the next window.
		if s.state == Joined {
			s.state = Dirty
			s.arm()
		}
		s.mu.Unlock()
		s.metrics.Wrote("unavailable")
		s.logger.Warn("Selection write failed, will retry", "version", version, "error", err)
		return
	}

	s.err = err
	onError := s.onError
	s.mu.Unlock()
	s.metrics.Wrote("error")
	s.logger.Error("Selection write failed", "version", version, "error", err)
	if onError != nil {
		onError(err)
	}
}

// Flush writes a pending edit now instead of waiting for the timer.
// Writes already in flight are waited for first; if one failed and left
// nothing to retry, its error is returned.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	for s.inflight > 0 {
		drained := s.drained
		s.mu.Unlock()
		select {
		case <-drained:
		case <-ctx.Done():
			return ctx.Err()
		}
		s.mu.Lock()
	}

	switch s.state {
	case Closed:
		s.mu.Unlock()
		return ErrClosed
	case Dirty:
	default:
		err := s.lastErr
		s.mu.Unlock()
		return err
	}
	s.disarm()
	selection, version := s.begin()
	s.mu.Unlock()

	err := s.store.WriteSelection(ctx, s.orderID, s.who, selection, version)
	s.mu.Lock()
	s.settle(err)
	if err != nil && s.state == Joined {
		s.state = Dirty
		if errors.Is(err, models.ErrUnavailable) {
			s.arm()
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.metrics.Wrote("error")
		return err
	}
	s.metrics.Wrote("ok")
	return nil
}

// Close stops the debounce timer and drops any unwritten edit. No write
// starts after Close returns. A write already in flight completes.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return
	}
	s.disarm()
	if s.state != Uninitialized {
		s.metrics.SessionClosed()
	}
	if s.state == Dirty {
		s.logger.Info("Session closed with unwritten edit", "products", len(s.selection))
	}
	s.state = Closed
}

// ApplyRemote merges a remote snapshot of the order into the session and
// reports whether the local selection was replaced.
//
// The selection is kept while an edit is pending or a write is in flight.
// A remote entry older than the last version this session wrote, or one
// missing altogether after a concurrent whole-array write, re-arms a write
// of the local selection.
func (s *Session) ApplyRemote(order *models.Order) bool {
	entry, i := order.Participant(s.who.Key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Closed || s.state == Uninitialized {
		return false
	}
	if i < 0 {
		if s.state == Joined && s.inflight == 0 {
			s.logger.Warn("Own entry missing from order, rewriting selection")
			s.state = Dirty
			s.arm()
		}
		return false
	}

	if entry.Version > s.seenVersion {
		s.seenVersion = entry.Version
	}
	if s.state == Dirty || s.inflight > 0 {
		s.metrics.SkippedMerge()
		return false
	}
	if entry.Version < s.lastWritten {
		// An older write landed after a newer one; write the selection again.
		s.metrics.SkippedMerge()
		s.logger.Warn("Stale own entry in order, rewriting selection", "version", entry.Version, "last_written", s.lastWritten)
		s.state = Dirty
		s.arm()
		return false
	}

	s.selection = models.CloneRefs(entry.Products)
	return true
}

// Selection returns a copy of the current local selection.
func (s *Session) Selection() []models.ProductRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CloneRefs(s.selection)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pending reports whether an edit is unwritten or a write is in flight.
func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Dirty || s.inflight > 0
}

// Err returns the last non-retryable write error.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
