// Package ledger keeps one user's balances current as snapshots of their
// records arrive from storage. It is the only place where the pure
// calculator meets concurrency: counterparties are computed in parallel
// against a shared cache, and overlapping snapshots resolve last-write-wins.
package ledger

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/storage"
)

// ErrStaleSnapshot is returned by Apply when a newer snapshot has already
// been published.
var ErrStaleSnapshot = errors.New("snapshot is older than the published view")

// DefaultWorkers bounds parallel balance computations when Options.Workers is unset.
const DefaultWorkers = 8

// Options configures a Tracker.
type Options struct {
	// Workers bounds how many balances are computed at once.
	Workers int

	// Metrics receives cache and recompute observations. May be nil.
	Metrics *metrics.Metrics
}

// FriendBalance is the balance between the tracked user and one friend.
type FriendBalance struct {
	UserID string
	calculator.Balance
}

// GroupBalance is the tracked user's balance within one group.
type GroupBalance struct {
	GroupID string
	Name    string
	calculator.Balance
}

// Totals summarises all friend balances.
type Totals struct {
	// Owed is what friends owe the user in total.
	Owed float64
	// Owing is what the user owes friends in total, as a positive number.
	Owing float64
}

// View is the set of balances computed from one snapshot.
type View struct {
	Seq     uint64
	UserID  string
	Friends []FriendBalance
	Groups  []GroupBalance
	Totals  Totals
}

// Friend returns the balance with userID. A friend without any shared
// record has a zero balance.
func (v View) Friend(userID string) FriendBalance {
	for _, f := range v.Friends {
		if f.UserID == userID {
			return f
		}
	}
	return FriendBalance{UserID: userID}
}

// Group returns the balance within groupID, if the user belongs to it.
func (v View) Group(groupID string) (GroupBalance, bool) {
	for _, g := range v.Groups {
		if g.GroupID == groupID {
			return g, true
		}
	}
	return GroupBalance{}, false
}

// Tracker computes balances for one user. It is safe for concurrent use.
type Tracker struct {
	userID  string
	workers int
	metrics *metrics.Metrics
	cache   *calculator.Cache

	mu        sync.Mutex
	view      View
	published bool
	listeners map[int]func(View)
	nextID    int
}

// NewTracker creates a Tracker for userID.
func NewTracker(userID string, opts Options) *Tracker {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Tracker{
		userID:    userID,
		workers:   workers,
		metrics:   opts.Metrics,
		cache:     calculator.NewCache(),
		listeners: make(map[int]func(View)),
	}
}

// UserID returns the tracked user.
func (t *Tracker) UserID() string {
	return t.userID
}

// View returns the most recently published view.
func (t *Tracker) View() (View, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.view, t.published
}

// Subscribe registers fn to be called with every published view. The
// returned function removes the registration.
func (t *Tracker) Subscribe(fn func(View)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := t.nextID
	t.listeners[id] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.listeners, id)
	}
}

// Apply recomputes every balance from snap and publishes the result.
//
// A snapshot whose Seq is not newer than the published view is dropped with
// ErrStaleSnapshot, both before and after computing. Cancelling ctx abandons
// the computation without publishing anything.
func (t *Tracker) Apply(ctx context.Context, snap storage.Snapshot) (View, error) {
	if t.isStale(snap.Seq) {
		t.metrics.ObserveStale()
		return View{}, ErrStaleSnapshot
	}

	start := time.Now()
	view, err := t.compute(ctx, snap)
	if err != nil {
		return View{}, err
	}
	t.metrics.ObserveRecompute(time.Since(start).Seconds())

	t.mu.Lock()
	if t.published && snap.Seq <= t.view.Seq {
		t.mu.Unlock()
		t.metrics.ObserveStale()
		return View{}, ErrStaleSnapshot
	}
	t.view = view
	t.published = true
	listeners := make([]func(View), 0, len(t.listeners))
	for _, fn := range t.listeners {
		listeners = append(listeners, fn)
	}
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(view)
	}
	return view, nil
}

func (t *Tracker) isStale(seq uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.published && seq <= t.view.Seq
}

func (t *Tracker) compute(ctx context.Context, snap storage.Snapshot) (View, error) {
	hash := calculator.SnapshotHash(snap.Expenses, snap.Groups)
	if t.cache.Sync(hash) {
		t.metrics.ObserveReset()
	}

	friendIDs := calculator.Counterparties(snap.Expenses, t.userID)
	seen := make(map[string]bool, len(friendIDs))
	for _, id := range friendIDs {
		seen[id] = true
	}
	for _, g := range snap.Groups {
		for _, m := range g.Members {
			if m != t.userID && !seen[m] {
				seen[m] = true
				friendIDs = append(friendIDs, m)
			}
		}
	}

	friends := make([]FriendBalance, len(friendIDs))
	groups := make([]GroupBalance, len(snap.Groups))

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(t.workers)
	for i, friendID := range friendIDs {
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return err
			}
			b, hit := t.cache.GetOrCompute(hash, "friend:"+friendID, func() calculator.Balance {
				return calculator.AggregatePair(snap.Expenses, t.userID, friendID, snap.Groups)
			})
			t.metrics.ObserveCache(hit)
			friends[i] = FriendBalance{UserID: friendID, Balance: b}
			return nil
		})
	}
	for i, group := range snap.Groups {
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return err
			}
			b, hit := t.cache.GetOrCompute(hash, "group:"+group.ID, func() calculator.Balance {
				return calculator.AggregateGroup(snap.Expenses, t.userID, group, nil)
			})
			t.metrics.ObserveCache(hit)
			groups[i] = GroupBalance{GroupID: group.ID, Name: group.Name, Balance: b}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return View{}, err
	}
	// Cancellation after the last worker started is not seen by Wait.
	if err := ctx.Err(); err != nil {
		return View{}, err
	}

	sort.SliceStable(friends, func(i, j int) bool {
		ai, aj := math.Abs(friends[i].Net), math.Abs(friends[j].Net)
		if ai != aj {
			return ai > aj
		}
		return friends[i].UserID < friends[j].UserID
	})

	var owed, owing float64
	for _, f := range friends {
		if f.Net > 0 {
			owed += f.Net
		} else {
			owing -= f.Net
		}
	}

	return View{
		Seq:     snap.Seq,
		UserID:  t.userID,
		Friends: friends,
		Groups:  groups,
		Totals: Totals{
			Owed:  calculator.RoundToCents(owed),
			Owing: calculator.RoundToCents(owing),
		},
	}, nil
}
