package calculator

import (
	"reflect"
	"testing"

	"github.com/mmynk/splitledger/internal/models"
)

func inGroup(e models.Expense, id, groupID string) models.Expense {
	e.ID = id
	e.GroupID = groupID
	return e
}

func testGroups() []models.Group {
	return []models.Group{
		{ID: "g-trip", Name: "Ski Trip", Members: []string{"A", "B", "C"}},
		{ID: "g-flat", Name: "Flat", Members: []string{"A", "B"}},
		{ID: "g-work", Name: "Work Lunch", Members: []string{"A", "C"}},
	}
}

func TestAggregatePair(t *testing.T) {
	split := func(payer string, amount float64, users ...string) models.Expense {
		shares := make([]models.Share, len(users))
		for i, u := range users {
			shares[i] = models.Share{UserID: u, Amount: amount / float64(len(users))}
		}
		return expense([]models.Payment{{UserID: payer, Amount: amount}}, shares)
	}

	records := []models.Expense{
		// (60 - 0 - (-30)) / 3 = 30 for A.
		inGroup(split("A", 90, "A", "B", "C"), "trip-1", "g-trip"),
		// (-10 - 10) / 2 = -10 for A.
		inGroup(split("B", 20, "A", "B"), "flat-1", "g-flat"),
		// Shared group nobody else is in: B is not a member, must be ignored.
		inGroup(split("A", 1000, "A", "B"), "work-1", "g-work"),
		// Unknown group: ignored.
		inGroup(split("A", 500, "A", "B"), "ghost-1", "g-ghost"),
		// Non-group: (20 - (-20)) / 2 = 20 for A.
		inGroup(split("A", 40, "A", "B"), "ng-1", models.NonGroupID),
		// Non-group settle-up from B to A: -15 for A.
		inGroup(payment("B", "A", 15), "ng-2", ""),
		// Non-group not involving B.
		inGroup(split("A", 40, "A", "C"), "ng-3", models.NonGroupID),
	}

	got := AggregatePair(records, "A", "B", testGroups())

	if !approxEqual(got.Net, 25) {
		t.Errorf("Net = %v, want 25", got.Net)
	}
	want := []Entry{
		{ContextID: "g-trip", Label: "Ski Trip", Amount: 30},
		{ContextID: "g-flat", Label: "Flat", Amount: -10},
		{ContextID: models.NonGroupID, Label: NonGroupLabel, Amount: 5},
	}
	if !reflect.DeepEqual(got.Breakdown, want) {
		t.Errorf("Breakdown = %+v, want %+v", got.Breakdown, want)
	}

	reversed := AggregatePair(records, "B", "A", testGroups())
	if !approxEqual(reversed.Net, -25) {
		t.Errorf("reversed Net = %v, want -25", reversed.Net)
	}
}

func TestAggregatePair_RoundsOnce(t *testing.T) {
	records := []models.Expense{
		inGroup(payment("A", "B", 0.004), "flat-1", "g-flat"),
		inGroup(payment("A", "B", 0.004), "ng-1", models.NonGroupID),
	}

	got := AggregatePair(records, "A", "B", testGroups())

	if got.Net != 0.01 {
		t.Errorf("Net = %v, want 0.01", got.Net)
	}
	if len(got.Breakdown) != 0 {
		t.Errorf("sub-cent subtotals should be settled, got %+v", got.Breakdown)
	}
}

func TestAggregatePair_SettledContextsOmitted(t *testing.T) {
	records := []models.Expense{
		inGroup(payment("A", "B", 25), "flat-1", "g-flat"),
		inGroup(payment("B", "A", 25), "flat-2", "g-flat"),
		inGroup(payment("A", "B", 0.01), "ng-1", models.NonGroupID),
	}

	got := AggregatePair(records, "A", "B", testGroups())

	if got.Net != 0.01 {
		t.Errorf("Net = %v, want 0.01", got.Net)
	}
	if len(got.Breakdown) != 0 {
		t.Errorf("expected empty breakdown, got %+v", got.Breakdown)
	}
	if !got.IsSettled() {
		t.Error("a one-cent balance should count as settled")
	}
}

func TestAggregatePair_Empty(t *testing.T) {
	got := AggregatePair(nil, "A", "B", nil)
	if got.Net != 0 || len(got.Breakdown) != 0 {
		t.Errorf("expected zero balance, got %+v", got)
	}
}

func TestAggregatePair_Idempotent(t *testing.T) {
	records := []models.Expense{
		inGroup(expense(
			[]models.Payment{{UserID: "A", Amount: 10}, {UserID: "C", Amount: 23.33}},
			[]models.Share{{UserID: "A", Amount: 11.11}, {UserID: "B", Amount: 11.11}, {UserID: "C", Amount: 11.11}},
		), "trip-1", "g-trip"),
		inGroup(payment("B", "A", 3.21), "ng-1", models.NonGroupID),
	}

	first := AggregatePair(records, "A", "B", testGroups())
	second := AggregatePair(records, "A", "B", testGroups())

	if !reflect.DeepEqual(first, second) {
		t.Errorf("results differ: %+v vs %+v", first, second)
	}
}

func TestAggregateGroup(t *testing.T) {
	group := testGroups()[0]
	records := []models.Expense{
		inGroup(expense(
			[]models.Payment{{UserID: "A", Amount: 90}},
			[]models.Share{{UserID: "A", Amount: 30}, {UserID: "B", Amount: 30}, {UserID: "C", Amount: 30}},
		), "trip-1", "g-trip"),
		inGroup(payment("C", "A", 30), "trip-2", "g-trip"),
		inGroup(payment("B", "A", 500), "ng-1", models.NonGroupID),
	}

	got := AggregateGroup(records, "A", group, map[string]string{"B": "Bob"})

	if !approxEqual(got.Net, 30) {
		t.Errorf("Net = %v, want 30", got.Net)
	}
	want := []Entry{{ContextID: "B", Label: "Bob", Amount: 30}}
	if !reflect.DeepEqual(got.Breakdown, want) {
		t.Errorf("Breakdown = %+v, want %+v", got.Breakdown, want)
	}
}

func TestCounterparties(t *testing.T) {
	records := []models.Expense{
		payment("A", "B", 1),
		expense([]models.Payment{{UserID: "C", Amount: 2}}, []models.Share{{UserID: "A", Amount: 1}, {UserID: "D", Amount: 1}}),
		payment("E", "F", 1),
		payment("B", "A", 1),
	}

	got := Counterparties(records, "A")
	want := []string{"B", "C", "D"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Counterparties() = %v, want %v", got, want)
	}
}

func TestRelabel(t *testing.T) {
	b := Balance{
		Net: 0,
		Breakdown: []Entry{
			{ContextID: "u-2", Label: "u-2", Amount: 10},
			{ContextID: "u-1", Label: "u-1", Amount: -10},
		},
	}

	got := Relabel(b, map[string]string{"u-1": "Alice", "u-2": "Zed"})

	want := []Entry{
		{ContextID: "u-1", Label: "Alice", Amount: -10},
		{ContextID: "u-2", Label: "Zed", Amount: 10},
	}
	if !reflect.DeepEqual(got.Breakdown, want) {
		t.Errorf("Breakdown = %+v, want %+v", got.Breakdown, want)
	}
	if b.Breakdown[0].Label != "u-2" {
		t.Errorf("input was modified: %+v", b.Breakdown)
	}
}
