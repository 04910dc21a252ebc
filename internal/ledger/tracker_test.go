package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

func lunch() models.Expense {
	return models.Expense{
		ID:           "lunch",
		GroupID:      models.NonGroupID,
		Type:         models.ExpenseTypeExpense,
		TotalAmount:  50,
		PaidBy:       []models.Payment{{UserID: "alice", Amount: 50}},
		Participants: []models.Share{{UserID: "alice", Amount: 25}, {UserID: "bob", Amount: 25}},
	}
}

func cabin() models.Expense {
	return models.Expense{
		ID:          "cabin",
		GroupID:     "g-trip",
		Type:        models.ExpenseTypeExpense,
		TotalAmount: 90,
		PaidBy:      []models.Payment{{UserID: "carol", Amount: 90}},
		Participants: []models.Share{
			{UserID: "alice", Amount: 30},
			{UserID: "bob", Amount: 30},
			{UserID: "carol", Amount: 30},
		},
	}
}

func trip() models.Group {
	return models.Group{ID: "g-trip", Name: "Ski Trip", Members: []string{"alice", "bob", "carol"}}
}

func snapshot(seq uint64, expenses ...models.Expense) storage.Snapshot {
	return storage.Snapshot{
		Seq:      seq,
		UserID:   "alice",
		Expenses: expenses,
		Groups:   []models.Group{trip()},
	}
}

func TestTracker_Apply(t *testing.T) {
	tr := NewTracker("alice", Options{Workers: 2})

	view, err := tr.Apply(context.Background(), snapshot(1, lunch(), cabin()))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), view.Seq)
	assert.Equal(t, "alice", view.UserID)
	require.Len(t, view.Friends, 2)
	assert.Equal(t, "carol", view.Friends[0].UserID)
	assert.InDelta(t, -30, view.Friends[0].Net, 0.001)
	assert.Equal(t, "bob", view.Friends[1].UserID)
	assert.InDelta(t, 25, view.Friends[1].Net, 0.001)

	assert.InDelta(t, 25, view.Totals.Owed, 0.001)
	assert.InDelta(t, 30, view.Totals.Owing, 0.001)

	g, ok := view.Group("g-trip")
	require.True(t, ok)
	assert.Equal(t, "Ski Trip", g.Name)
	assert.InDelta(t, -30, g.Net, 0.001)
	require.Len(t, g.Breakdown, 1)
	assert.Equal(t, "carol", g.Breakdown[0].ContextID)

	_, ok = view.Group("g-missing")
	assert.False(t, ok)

	published, ok := tr.View()
	require.True(t, ok)
	assert.Equal(t, view, published)
}

func TestTracker_GroupMembersWithoutRecords(t *testing.T) {
	tr := NewTracker("alice", Options{})

	view, err := tr.Apply(context.Background(), snapshot(1))
	require.NoError(t, err)

	require.Len(t, view.Friends, 2)
	for _, f := range view.Friends {
		assert.True(t, f.IsSettled(), "friend %s", f.UserID)
	}
	assert.Zero(t, view.Totals.Owed)
	assert.Zero(t, view.Totals.Owing)

	stranger := view.Friend("dave")
	assert.Equal(t, "dave", stranger.UserID)
	assert.True(t, stranger.IsSettled())
}

func TestTracker_MembershipChange(t *testing.T) {
	tr := NewTracker("bob", Options{})
	outside := trip()
	outside.Members = []string{"alice", "carol"}

	first := storage.Snapshot{Seq: 1, UserID: "bob", Expenses: []models.Expense{cabin()}, Groups: []models.Group{outside}}
	view, err := tr.Apply(context.Background(), first)
	require.NoError(t, err)
	assert.Zero(t, view.Friend("carol").Net)

	// Same records, bob joins the group.
	second := storage.Snapshot{Seq: 2, UserID: "bob", Expenses: []models.Expense{cabin()}, Groups: []models.Group{trip()}}
	view, err = tr.Apply(context.Background(), second)
	require.NoError(t, err)

	direct := calculator.AggregatePair(second.Expenses, "bob", "carol", second.Groups)
	assert.InDelta(t, -30, direct.Net, 0.001)
	assert.Equal(t, direct, view.Friend("carol").Balance)

	g, ok := view.Group("g-trip")
	require.True(t, ok)
	assert.InDelta(t, -30, g.Net, 0.001)
}

func TestTracker_StaleSnapshot(t *testing.T) {
	tr := NewTracker("alice", Options{})

	_, err := tr.Apply(context.Background(), snapshot(5, lunch()))
	require.NoError(t, err)

	_, err = tr.Apply(context.Background(), snapshot(3, lunch(), cabin()))
	assert.ErrorIs(t, err, ErrStaleSnapshot)

	_, err = tr.Apply(context.Background(), snapshot(5, lunch(), cabin()))
	assert.ErrorIs(t, err, ErrStaleSnapshot)

	view, ok := tr.View()
	require.True(t, ok)
	assert.Equal(t, uint64(5), view.Seq)
	assert.InDelta(t, 25, view.Friend("bob").Net, 0.001)
	assert.Zero(t, view.Friend("carol").Net)
}

func TestTracker_CancelledContext(t *testing.T) {
	tr := NewTracker("alice", Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.Apply(ctx, snapshot(1, lunch()))
	assert.ErrorIs(t, err, context.Canceled)

	_, ok := tr.View()
	assert.False(t, ok)
}

func TestTracker_Subscribe(t *testing.T) {
	tr := NewTracker("alice", Options{})

	var (
		mu   sync.Mutex
		seqs []uint64
	)
	unsubscribe := tr.Subscribe(func(v View) {
		mu.Lock()
		defer mu.Unlock()
		seqs = append(seqs, v.Seq)
	})

	_, err := tr.Apply(context.Background(), snapshot(1, lunch()))
	require.NoError(t, err)
	_, err = tr.Apply(context.Background(), snapshot(2, lunch(), cabin()))
	require.NoError(t, err)

	unsubscribe()
	_, err = tr.Apply(context.Background(), snapshot(3))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uint64{1, 2}, seqs)
}

func TestTracker_ConcurrentApply(t *testing.T) {
	tr := NewTracker("alice", Options{Workers: 4})

	var wg sync.WaitGroup
	for seq := uint64(1); seq <= 20; seq++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if seq%2 == 0 {
				_, _ = tr.Apply(context.Background(), snapshot(seq, lunch(), cabin()))
			} else {
				_, _ = tr.Apply(context.Background(), snapshot(seq, lunch()))
			}
		}()
	}
	wg.Wait()

	// Whatever the interleaving, the published view is never older than
	// one that was already published, and seq 20 always wins.
	view, ok := tr.View()
	require.True(t, ok)
	assert.Equal(t, uint64(20), view.Seq)
	assert.InDelta(t, -30, view.Friend("carol").Net, 0.001)
}

func TestTracker_Metrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	tr := NewTracker("alice", Options{Metrics: m})

	_, err := tr.Apply(context.Background(), snapshot(1, lunch(), cabin()))
	require.NoError(t, err)
	// bob, carol and the trip group.
	assert.Equal(t, 3.0, testutil.ToFloat64(m.CacheMisses))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheResets))

	// Same records, newer snapshot: everything comes from the cache.
	_, err = tr.Apply(context.Background(), snapshot(2, lunch(), cabin()))
	require.NoError(t, err)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheResets))

	// A changed record set clears the cache.
	_, err = tr.Apply(context.Background(), snapshot(3, lunch()))
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheResets))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.CacheMisses))

	_, err = tr.Apply(context.Background(), snapshot(1, lunch()))
	require.ErrorIs(t, err, ErrStaleSnapshot)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StaleSnapshots))
}
