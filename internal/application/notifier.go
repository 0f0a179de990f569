package application

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ericfisherdev/smspanel/internal/domain/model"
	"github.com/ericfisherdev/smspanel/internal/domain/port/driven"
)

// defaultPollInterval matches the 5-second cadence of the panel frontend.
const defaultPollInterval = 5 * time.Second

// Gate reports whether an admin session credential is currently present.
// Ticks are skipped silently while the gate is closed. A nil gate is open.
type Gate func() bool

// Notifier reconciles the authoritative message count against a remembered
// baseline and broadcasts badge updates to subscribers. It is constructed
// once per session and passed by reference; there is no global instance.
//
// Between Viewed calls the unseen count only grows or holds: a failed tick
// is a no-op, and only Viewed may reset it to zero.
type Notifier struct {
	store    driven.MessageStore
	states   driven.StateStore
	gate     Gate
	interval time.Duration
	logger   *slog.Logger

	// inFlight guards against tick pile-up: a tick still running when the
	// next fires causes the new one to be skipped.
	inFlight atomic.Bool

	mu            sync.Mutex
	running       bool
	stop          context.CancelFunc
	restored      bool
	lastSeenCount int
	unseenCount   int
	subs          map[int]chan model.BadgeUpdate
	nextSubID     int
}

// NewNotifier creates a Notifier polling the given store. A non-positive
// interval selects the 5-second default.
func NewNotifier(store driven.MessageStore, states driven.StateStore, gate Gate, interval time.Duration, logger *slog.Logger) *Notifier {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Notifier{
		store:    store,
		states:   states,
		gate:     gate,
		interval: interval,
		logger:   logger.With("service", "notifier"),
		subs:     make(map[int]chan model.BadgeUpdate),
	}
}

// Subscribe registers a badge-update listener and returns its channel along
// with an unsubscribe function. The channel is buffered; a subscriber that
// falls behind misses intermediate updates rather than stalling a tick.
func (n *Notifier) Subscribe() (<-chan model.BadgeUpdate, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextSubID
	n.nextSubID++

	ch := make(chan model.BadgeUpdate, 8)
	n.subs[id] = ch

	return ch, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if c, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(c)
		}
	}
}

// Start restores the persisted baseline and arms the poll ticker. Calling
// Start while already polling is a no-op. The loop runs until Stop is called
// or ctx is canceled.
func (n *Notifier) Start(ctx context.Context) {
	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return
	}
	n.running = true
	ctx, n.stop = context.WithCancel(ctx)
	n.mu.Unlock()

	go n.run(ctx)
}

// Stop ceases scheduling further ticks. It does not abort a tick already in
// flight.
func (n *Notifier) Stop() {
	n.mu.Lock()
	stop := n.stop
	n.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// Poll runs a single reconcile tick synchronously, outside the ticker
// schedule. Primarily a manual refresh hook; the ticker calls the same path.
func (n *Notifier) Poll(ctx context.Context) {
	n.tick(ctx)
}

// Viewed acknowledges the message view being opened: it re-fetches the
// authoritative count, zeroes the unseen count, deactivates the badge, and
// persists the cleared state. This is the only operation that decreases the
// unseen count.
func (n *Notifier) Viewed(ctx context.Context) {
	current, err := n.store.Count(ctx)

	n.mu.Lock()
	if err != nil {
		// Baseline stays put; the badge is still cleared so the admin is not
		// shown stale notifications for messages they just read.
		n.logger.ErrorContext(ctx, "count failed during acknowledge", "error", err)
		current = n.lastSeenCount
	} else {
		n.lastSeenCount = current
	}
	n.unseenCount = 0
	n.restored = true
	state := n.stateLocked()
	n.mu.Unlock()

	n.persist(ctx, state)
	n.broadcast(model.BadgeUpdate{UnseenCount: 0, CurrentTotal: current, NewInBatch: 0, BadgeActive: false})
}

// State returns a snapshot of the reconciler's in-memory state.
func (n *Notifier) State() model.NotificationState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stateLocked()
}

func (n *Notifier) run(ctx context.Context) {
	n.restore(ctx)

	// Immediate poll to establish the baseline, then fixed-interval ticks.
	// No backoff and no jitter: every tick is independent and a failed one
	// is simply retried at the next interval.
	n.tick(ctx)

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			n.mu.Lock()
			n.running = false
			n.mu.Unlock()
			n.logger.Info("notifier stopped")
			return
		case <-ticker.C:
			n.tick(ctx)
		}
	}
}

// restore reconciles the in-memory baseline with the persisted one so a
// restart does not regress the baseline to zero. The larger last-seen count
// wins; the unseen count is only adopted on the first restore.
func (n *Notifier) restore(ctx context.Context) {
	state, err := n.states.Get(ctx)
	if err != nil {
		n.logger.ErrorContext(ctx, "restore baseline failed", "error", err)
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if state.LastSeenCount > n.lastSeenCount {
		n.lastSeenCount = state.LastSeenCount
	}
	if !n.restored {
		n.unseenCount = state.UnseenCount
		n.restored = true
	}
}

func (n *Notifier) tick(ctx context.Context) {
	if !n.inFlight.CompareAndSwap(false, true) {
		n.logger.Debug("tick skipped, previous still in flight")
		return
	}
	defer n.inFlight.Store(false)

	if n.gate != nil && !n.gate() {
		return
	}

	current, err := n.store.Count(ctx)
	if err != nil {
		n.logger.ErrorContext(ctx, "message count failed", "error", err)
		return
	}

	n.mu.Lock()
	delta := current - n.lastSeenCount

	var update model.BadgeUpdate
	notify := false
	switch {
	case delta > 0:
		n.unseenCount += delta
		update = model.BadgeUpdate{UnseenCount: n.unseenCount, CurrentTotal: current, NewInBatch: delta, BadgeActive: true}
		notify = true
		n.logger.Debug("new messages detected", "new", delta, "unseen", n.unseenCount, "total", current)
	case n.unseenCount > 0:
		// No growth, but the badge stays visible until acknowledged.
		update = model.BadgeUpdate{UnseenCount: n.unseenCount, CurrentTotal: current, NewInBatch: 0, BadgeActive: true}
		notify = true
	}

	n.lastSeenCount = current
	state := n.stateLocked()
	n.mu.Unlock()

	n.persist(ctx, state)
	if notify {
		n.broadcast(update)
	}
}

// persist saves the baseline. Failures are logged and otherwise ignored: the
// in-memory state remains authoritative for the session.
func (n *Notifier) persist(ctx context.Context, state model.NotificationState) {
	if err := n.states.Save(ctx, state); err != nil {
		n.logger.ErrorContext(ctx, "persist baseline failed", "error", err)
	}
}

func (n *Notifier) broadcast(update model.BadgeUpdate) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.subs {
		select {
		case ch <- update:
		default:
		}
	}
}

func (n *Notifier) stateLocked() model.NotificationState {
	return model.NotificationState{
		LastSeenCount: n.lastSeenCount,
		UnseenCount:   n.unseenCount,
		BadgeActive:   n.unseenCount > 0,
	}
}
