package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mmynk/splitledger/internal/storage"
)

// Registry owns one Tracker per user, each fed by a storage subscription.
// Trackers are created on first use and live until Close.
type Registry struct {
	feed storage.Feed
	opts Options

	mu       sync.Mutex
	trackers map[string]*registered
	closed   bool
}

type registered struct {
	tracker *Tracker
	sub     storage.Subscription
}

// NewRegistry creates a Registry reading snapshots from feed.
func NewRegistry(feed storage.Feed, opts Options) *Registry {
	return &Registry{
		feed:     feed,
		opts:     opts,
		trackers: make(map[string]*registered),
	}
}

// Tracker returns the tracker for userID, subscribing it to the feed if
// needed. The returned tracker already holds a view of the current data.
func (r *Registry) Tracker(ctx context.Context, userID string) (*Tracker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, errors.New("ledger registry is closed")
	}
	if reg, ok := r.trackers[userID]; ok {
		return reg.tracker, nil
	}

	t := NewTracker(userID, r.opts)
	sub, err := r.feed.Subscribe(ctx, userID, func(snap storage.Snapshot) {
		// Deliveries outlive the request that triggered them.
		if _, err := t.Apply(context.Background(), snap); err != nil && !errors.Is(err, ErrStaleSnapshot) {
			slog.Warn("Tracker: failed to apply snapshot", "user_id", userID, "seq", snap.Seq, "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to balances for %s: %w", userID, err)
	}

	r.trackers[userID] = &registered{tracker: t, sub: sub}
	slog.Debug("Tracker started", "user_id", userID)
	return t, nil
}

// View returns the current balances of userID.
func (r *Registry) View(ctx context.Context, userID string) (View, error) {
	t, err := r.Tracker(ctx, userID)
	if err != nil {
		return View{}, err
	}
	view, ok := t.View()
	if !ok {
		return View{}, fmt.Errorf("no balances available for %s", userID)
	}
	return view, nil
}

// Len returns how many trackers are live.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trackers)
}

// Close unsubscribes every tracker. Later calls to Tracker fail.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reg := range r.trackers {
		reg.sub.Unsubscribe()
	}
	r.trackers = make(map[string]*registered)
	r.closed = true
}
