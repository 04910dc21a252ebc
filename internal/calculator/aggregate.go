package calculator

import (
	"math"
	"sort"

	"github.com/mmynk/splitledger/internal/models"
)

// NonGroupLabel labels the breakdown entry collecting non-group expenses.
const NonGroupLabel = "Non-group"

// Balance is a net amount between the current user and a counterparty
// (a friend or a group), with the per-context subtotals that produced it.
type Balance struct {
	// Net is positive when the counterparty owes the current user.
	Net float64

	// Breakdown lists unsettled subtotals, largest magnitude first.
	Breakdown []Entry
}

// Entry is one contributing subtotal of a Balance.
type Entry struct {
	// ContextID is a group ID, models.NonGroupID, or a member's user ID.
	ContextID string
	Label     string
	Amount    float64
}

// IsSettled reports whether nothing is owed either way.
func (b Balance) IsSettled() bool {
	return isSettled(b.Net)
}

// AggregatePair computes the balance of userA relative to userB across all
// records: expenses in groups both users belong to, plus non-group expenses
// involving both. Records in groups only one of them belongs to, or in
// groups missing from groups, are ignored.
//
// Net is the sum of every per-record delta rounded once at the end. The
// breakdown subtotals are rounded independently and may not add up exactly
// to Net.
func AggregatePair(records []models.Expense, userA, userB string, groups []models.Group) Balance {
	shared := make(map[string]models.Group)
	for _, g := range groups {
		if g.HasMember(userA) && g.HasMember(userB) {
			shared[g.ID] = g
		}
	}

	var total, nonGroup float64
	perGroup := make(map[string]float64)
	for _, e := range records {
		if models.IsNonGroup(e.GroupID) {
			if !e.Involves(userA) || !e.Involves(userB) {
				continue
			}
			d := ResolveDelta(e, userA, userB)
			nonGroup += d
			total += d
			continue
		}
		if _, ok := shared[e.GroupID]; !ok {
			continue
		}
		d := ResolveDelta(e, userA, userB)
		perGroup[e.GroupID] += d
		total += d
	}

	var breakdown []Entry
	for id, sum := range perGroup {
		breakdown = appendUnsettled(breakdown, id, shared[id].Name, sum)
	}
	breakdown = appendUnsettled(breakdown, models.NonGroupID, NonGroupLabel, nonGroup)
	sortBreakdown(breakdown)

	return Balance{Net: RoundToCents(total), Breakdown: breakdown}
}

// AggregateGroup computes the balance of userID within group: the same
// pairwise deltas as AggregatePair, taken against every other member and
// restricted to the group's records. The breakdown has one entry per member.
// names maps user IDs to display labels; missing names fall back to the ID.
func AggregateGroup(records []models.Expense, userID string, group models.Group, names map[string]string) Balance {
	perMember := make(map[string]float64, len(group.Members))
	var total float64
	for _, e := range records {
		if e.GroupID != group.ID {
			continue
		}
		for _, m := range group.Members {
			if m == userID {
				continue
			}
			d := ResolveDelta(e, userID, m)
			perMember[m] += d
			total += d
		}
	}

	var breakdown []Entry
	for m, sum := range perMember {
		label := names[m]
		if label == "" {
			label = m
		}
		breakdown = appendUnsettled(breakdown, m, label, sum)
	}
	sortBreakdown(breakdown)

	return Balance{Net: RoundToCents(total), Breakdown: breakdown}
}

// Counterparties returns every user other than userID who shares at least
// one record with userID, in first-seen order.
func Counterparties(records []models.Expense, userID string) []string {
	seen := map[string]bool{userID: true}
	var ids []string
	for _, e := range records {
		if !e.Involves(userID) {
			continue
		}
		for _, id := range e.UserIDs() {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func appendUnsettled(entries []Entry, id, label string, sum float64) []Entry {
	rounded := RoundToCents(sum)
	if isSettled(rounded) {
		return entries
	}
	return append(entries, Entry{ContextID: id, Label: label, Amount: rounded})
}

func sortBreakdown(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		ai, aj := math.Abs(entries[i].Amount), math.Abs(entries[j].Amount)
		if ai != aj {
			return ai > aj
		}
		if entries[i].Label != entries[j].Label {
			return entries[i].Label < entries[j].Label
		}
		return entries[i].ContextID < entries[j].ContextID
	})
}

// Relabel returns b with the label of every entry whose ContextID appears
// in names replaced, re-sorted. b is not modified.
func Relabel(b Balance, names map[string]string) Balance {
	out := Balance{Net: b.Net}
	if b.Breakdown == nil {
		return out
	}
	out.Breakdown = make([]Entry, len(b.Breakdown))
	for i, e := range b.Breakdown {
		if name, ok := names[e.ContextID]; ok && name != "" {
			e.Label = name
		}
		out.Breakdown[i] = e
	}
	sortBreakdown(out.Breakdown)
	return out
}
