package storage

import (
	"context"
	"log/slog"
	"sync"
)

// Loader reads the current snapshot for a user. Seq is assigned by the Hub.
type Loader func(ctx context.Context, userID string) (Snapshot, error)

// Hub fans snapshots out to per-user subscribers. Backends embed a Hub and
// call Publish after every committed write.
type Hub struct {
	load Loader

	mu     sync.Mutex
	subs   map[string]map[uint64]func(Snapshot)
	nextID uint64

	// readMu serialises snapshot reads so that Seq order is read order.
	readMu sync.Mutex
	seq    uint64
}

// NewHub creates a Hub that reads snapshots with load.
func NewHub(load Loader) *Hub {
	return &Hub{
		load: load,
		subs: make(map[string]map[uint64]func(Snapshot)),
	}
}

type subscription struct {
	hub    *Hub
	userID string
	id     uint64
	once   sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()
		delete(s.hub.subs[s.userID], s.id)
		if len(s.hub.subs[s.userID]) == 0 {
			delete(s.hub.subs, s.userID)
		}
	})
}

// Subscribe registers fn for userID and delivers the current snapshot
// before returning.
func (h *Hub) Subscribe(ctx context.Context, userID string, fn func(Snapshot)) (Subscription, error) {
	h.mu.Lock()
	h.nextID++
	sub := &subscription{hub: h, userID: userID, id: h.nextID}
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[uint64]func(Snapshot))
	}
	h.subs[userID][sub.id] = fn
	h.mu.Unlock()

	snap, err := h.snapshot(ctx, userID)
	if err != nil {
		sub.Unsubscribe()
		return nil, err
	}
	fn(snap)
	return sub, nil
}

// Publish delivers a fresh snapshot to the subscribers of every given user.
// Users without subscribers are skipped; load failures are logged.
func (h *Hub) Publish(ctx context.Context, userIDs ...string) {
	seen := make(map[string]bool, len(userIDs))
	for _, userID := range userIDs {
		if userID == "" || seen[userID] {
			continue
		}
		seen[userID] = true

		fns := h.subscribers(userID)
		if len(fns) == 0 {
			continue
		}
		snap, err := h.snapshot(ctx, userID)
		if err != nil {
			slog.Warn("Publish: failed to load snapshot", "user_id", userID, "error", err)
			continue
		}
		for _, fn := range fns {
			fn(snap)
		}
	}
}

func (h *Hub) subscribers(userID string) []func(Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fns := make([]func(Snapshot), 0, len(h.subs[userID]))
	for _, fn := range h.subs[userID] {
		fns = append(fns, fn)
	}
	return fns
}

func (h *Hub) snapshot(ctx context.Context, userID string) (Snapshot, error) {
	h.readMu.Lock()
	defer h.readMu.Unlock()
	snap, err := h.load(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	h.seq++
	snap.Seq = h.seq
	snap.UserID = userID
	return snap, nil
}
