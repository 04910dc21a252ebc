package service

import (
	"context"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/pkg/api"
)

func TestExpenseService_CreateExpense(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	alice, bob, carol := ts.register(t, "alice"), ts.register(t, "bob"), ts.register(t, "carol")
	trip := ts.createGroup(t, alice, "Ski Trip", bob, carol)

	resp, err := ts.expense.CreateExpense(ctx, authed(alice, &api.CreateExpenseRequest{
		Expense: equalSplit(alice, 100, trip.ID, alice, bob, carol),
	}))
	require.NoError(t, err)

	e := resp.Msg.Expense
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, trip.ID, e.GroupID)
	assert.Equal(t, "EXPENSE", e.Type)
	assert.Equal(t, "EQUALLY", e.SplitMethod)
	assert.Equal(t, alice.user.ID, e.CreatedBy)
	assert.NotZero(t, e.Date)
	require.Len(t, e.Participants, 3)
	assert.Equal(t, 33.34, e.Participants[0].Amount)
	assert.Equal(t, 33.33, e.Participants[1].Amount)
	assert.Equal(t, 33.33, e.Participants[2].Amount)

	got, err := ts.expense.GetExpense(ctx, authed(carol, &api.GetExpenseRequest{ID: e.ID}))
	require.NoError(t, err)
	assert.Equal(t, e, got.Msg.Expense)
}

func TestExpenseService_NonGroupDefaults(t *testing.T) {
	ts := setupTestServer(t)
	alice, bob := ts.register(t, "alice"), ts.register(t, "bob")

	resp, err := ts.expense.CreateExpense(context.Background(), authed(alice, &api.CreateExpenseRequest{
		Expense: api.ExpenseInput{
			TotalAmount: 50,
			PaidBy:      []api.Payment{{UserID: alice.user.ID, Amount: 50}},
			SplitMethod: "UNEQUALLY",
			Participants: []api.SplitParticipant{
				{UserID: alice.user.ID, Active: true, SplitValue: "30"},
				{UserID: bob.user.ID, Active: true, SplitValue: "20"},
			},
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, models.NonGroupID, resp.Msg.Expense.GroupID)
	assert.Equal(t, "EXPENSE", resp.Msg.Expense.Type)

	assert.InDelta(t, 20, ts.friendBalance(t, alice, bob).Net, 0.001)
}

func TestExpenseService_Validation(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	alice, bob, carol := ts.register(t, "alice"), ts.register(t, "bob"), ts.register(t, "carol")
	flat := ts.createGroup(t, alice, "Flat", bob)

	tests := []struct {
		name   string
		caller session
		input  api.ExpenseInput
		code   connect.Code
	}{
		{
			name:   "zero total",
			caller: alice,
			input:  equalSplit(alice, 0, "", alice, bob),
			code:   connect.CodeInvalidArgument,
		},
		{
			name:   "paid does not match total",
			caller: alice,
			input: func() api.ExpenseInput {
				in := equalSplit(alice, 40, "", alice, bob)
				in.PaidBy[0].Amount = 30
				return in
			}(),
			code: connect.CodeInvalidArgument,
		},
		{
			name:   "no active participant",
			caller: alice,
			input: func() api.ExpenseInput {
				in := equalSplit(alice, 40, "", alice, bob)
				for i := range in.Participants {
					in.Participants[i].Active = false
				}
				return in
			}(),
			code: connect.CodeInvalidArgument,
		},
		{
			name:   "unknown participant",
			caller: alice,
			input: func() api.ExpenseInput {
				in := equalSplit(alice, 40, "", alice)
				in.Participants = append(in.Participants, api.SplitParticipant{UserID: "ghost", Active: true})
				return in
			}(),
			code: connect.CodeInvalidArgument,
		},
		{
			name:   "unknown type",
			caller: alice,
			input: func() api.ExpenseInput {
				in := equalSplit(alice, 40, "", alice, bob)
				in.Type = "REFUND"
				return in
			}(),
			code: connect.CodeInvalidArgument,
		},
		{
			name:   "unknown split method",
			caller: alice,
			input: func() api.ExpenseInput {
				in := equalSplit(alice, 100, "", alice, bob)
				in.SplitMethod = "BOGUS"
				return in
			}(),
			code: connect.CodeInvalidArgument,
		},
		{
			name:   "percentages adding up to zero",
			caller: alice,
			input: func() api.ExpenseInput {
				in := equalSplit(alice, 100, "", alice, bob)
				in.SplitMethod = "PERCENTAGES"
				for i := range in.Participants {
					in.Participants[i].SplitValue = "0"
				}
				return in
			}(),
			code: connect.CodeInvalidArgument,
		},
		{
			name:   "exact amounts short of the total",
			caller: alice,
			input: func() api.ExpenseInput {
				in := equalSplit(alice, 100, "", alice, bob)
				in.SplitMethod = "UNEQUALLY"
				in.Participants[0].SplitValue = "30"
				in.Participants[1].SplitValue = "20"
				return in
			}(),
			code: connect.CodeInvalidArgument,
		},
		{
			name:   "non-group expense without the caller",
			caller: carol,
			input:  equalSplit(alice, 40, "", alice, bob),
			code:   connect.CodePermissionDenied,
		},
		{
			name:   "group the caller is not in",
			caller: carol,
			input:  equalSplit(carol, 40, flat.ID, alice, carol),
			code:   connect.CodePermissionDenied,
		},
		{
			name:   "missing group",
			caller: alice,
			input:  equalSplit(alice, 40, "no-such-group", alice, bob),
			code:   connect.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.expense.CreateExpense(ctx, authed(tt.caller, &api.CreateExpenseRequest{Expense: tt.input}))
			requireCode(t, err, tt.code)
		})
	}
}

func TestExpenseService_RejectedSplitLeavesNoRecord(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	alice, bob := ts.register(t, "alice"), ts.register(t, "bob")

	in := equalSplit(alice, 100, "", alice, bob)
	in.SplitMethod = "BOGUS"
	_, err := ts.expense.CreateExpense(ctx, authed(alice, &api.CreateExpenseRequest{Expense: in}))
	requireCode(t, err, connect.CodeInvalidArgument)

	resp, err := ts.expense.ListExpenses(ctx, authed(alice, &api.ListExpensesRequest{}))
	require.NoError(t, err)
	assert.Empty(t, resp.Msg.Expenses)
	assert.Zero(t, ts.friendBalance(t, alice, bob).Net)
}

func TestExpenseService_AutoAddsParticipantsToGroup(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	alice, bob, carol := ts.register(t, "alice"), ts.register(t, "bob"), ts.register(t, "carol")
	flat := ts.createGroup(t, alice, "Flat", bob)

	_, err := ts.expense.CreateExpense(ctx, authed(alice, &api.CreateExpenseRequest{
		Expense: equalSplit(alice, 90, flat.ID, alice, bob, carol),
	}))
	require.NoError(t, err)

	resp, err := ts.group.GetGroup(ctx, authed(carol, &api.GetGroupRequest{GroupID: flat.ID}))
	require.NoError(t, err)
	assert.Equal(t, []string{alice.user.ID, bob.user.ID, carol.user.ID}, memberIDs(resp.Msg.Group))

	assert.InDelta(t, -30, ts.friendBalance(t, carol, alice).Net, 0.001)
}

func TestExpenseService_UpdateAndDelete(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	alice, bob, carol := ts.register(t, "alice"), ts.register(t, "bob"), ts.register(t, "carol")

	created, err := ts.expense.CreateExpense(ctx, authed(alice, &api.CreateExpenseRequest{
		Expense: equalSplit(alice, 40, "", alice, bob),
	}))
	require.NoError(t, err)
	id := created.Msg.Expense.ID
	assert.InDelta(t, 20, ts.friendBalance(t, alice, bob).Net, 0.001)

	_, err = ts.expense.UpdateExpense(ctx, authed(carol, &api.UpdateExpenseRequest{
		ID:      id,
		Expense: equalSplit(alice, 60, "", alice, bob),
	}))
	requireCode(t, err, connect.CodePermissionDenied)

	updated, err := ts.expense.UpdateExpense(ctx, authed(bob, &api.UpdateExpenseRequest{
		ID:      id,
		Expense: equalSplit(alice, 60, "", alice, bob),
	}))
	require.NoError(t, err)
	assert.Equal(t, id, updated.Msg.Expense.ID)
	assert.Equal(t, alice.user.ID, updated.Msg.Expense.CreatedBy)
	assert.Equal(t, created.Msg.Expense.Date, updated.Msg.Expense.Date)
	assert.InDelta(t, 30, ts.friendBalance(t, alice, bob).Net, 0.001)

	bogus := equalSplit(alice, 60, "", alice, bob)
	bogus.SplitMethod = "BOGUS"
	_, err = ts.expense.UpdateExpense(ctx, authed(bob, &api.UpdateExpenseRequest{ID: id, Expense: bogus}))
	requireCode(t, err, connect.CodeInvalidArgument)
	assert.InDelta(t, 30, ts.friendBalance(t, alice, bob).Net, 0.001)

	_, err = ts.expense.DeleteExpense(ctx, authed(carol, &api.DeleteExpenseRequest{ID: id}))
	requireCode(t, err, connect.CodePermissionDenied)

	_, err = ts.expense.DeleteExpense(ctx, authed(alice, &api.DeleteExpenseRequest{ID: id}))
	require.NoError(t, err)
	assert.Zero(t, ts.friendBalance(t, alice, bob).Net)

	_, err = ts.expense.GetExpense(ctx, authed(alice, &api.GetExpenseRequest{ID: id}))
	requireCode(t, err, connect.CodeNotFound)

	_, err = ts.expense.DeleteExpense(ctx, authed(alice, &api.DeleteExpenseRequest{ID: id}))
	requireCode(t, err, connect.CodeNotFound)
}

func TestExpenseService_ListExpenses(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	alice, bob, carol := ts.register(t, "alice"), ts.register(t, "bob"), ts.register(t, "carol")
	trip := ts.createGroup(t, alice, "Ski Trip", bob, carol)

	for _, in := range []api.ExpenseInput{
		equalSplit(alice, 30, trip.ID, alice, bob, carol),
		equalSplit(alice, 20, "", alice, bob),
		equalSplit(carol, 10, "", alice, carol),
	} {
		_, err := ts.expense.CreateExpense(ctx, authed(alice, &api.CreateExpenseRequest{Expense: in}))
		require.NoError(t, err)
	}

	list := func(s session, req *api.ListExpensesRequest) []api.Expense {
		t.Helper()
		resp, err := ts.expense.ListExpenses(ctx, authed(s, req))
		require.NoError(t, err)
		return resp.Msg.Expenses
	}

	assert.Len(t, list(alice, &api.ListExpensesRequest{}), 3)
	assert.Len(t, list(alice, &api.ListExpensesRequest{GroupID: trip.ID}), 1)
	assert.Len(t, list(alice, &api.ListExpensesRequest{FriendID: bob.user.ID}), 2)
	assert.Len(t, list(bob, &api.ListExpensesRequest{}), 2)
	assert.Len(t, list(carol, &api.ListExpensesRequest{FriendID: bob.user.ID}), 1)

	dave := ts.register(t, "dave")
	_, err := ts.expense.ListExpenses(ctx, authed(dave, &api.ListExpensesRequest{GroupID: trip.ID}))
	requireCode(t, err, connect.CodePermissionDenied)
}

func TestExpenseService_SettleUp(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	alice, bob, carol := ts.register(t, "alice"), ts.register(t, "bob"), ts.register(t, "carol")
	trip := ts.createGroup(t, alice, "Ski Trip", bob)

	_, err := ts.expense.CreateExpense(ctx, authed(alice, &api.CreateExpenseRequest{
		Expense: equalSplit(alice, 80, trip.ID, alice, bob),
	}))
	require.NoError(t, err)
	assert.InDelta(t, -40, ts.friendBalance(t, bob, alice).Net, 0.001)

	resp, err := ts.expense.SettleUp(ctx, authed(bob, &api.SettleUpRequest{
		FriendID: alice.user.ID,
		Amount:   25,
		GroupID:  trip.ID,
	}))
	require.NoError(t, err)
	payment := resp.Msg.Payment
	assert.Equal(t, "PAYMENT", payment.Type)
	assert.Equal(t, "Payment", payment.Memo)
	assert.Equal(t, []api.Payment{{UserID: bob.user.ID, Amount: 25}}, payment.PaidBy)
	assert.Equal(t, []api.Share{{UserID: alice.user.ID, Amount: 25}}, payment.Participants)

	assert.InDelta(t, -15, ts.friendBalance(t, bob, alice).Net, 0.001)
	assert.InDelta(t, 15, ts.friendBalance(t, alice, bob).Net, 0.001)

	_, err = ts.expense.SettleUp(ctx, authed(bob, &api.SettleUpRequest{FriendID: alice.user.ID, Amount: 15}))
	require.NoError(t, err)
	// Non-group payments offset group debts in the friend total.
	fb := ts.friendBalance(t, bob, alice)
	assert.Zero(t, fb.Net)
	require.Len(t, fb.Breakdown, 2)
	assert.ElementsMatch(t, []string{trip.ID, models.NonGroupID},
		[]string{fb.Breakdown[0].ContextID, fb.Breakdown[1].ContextID})

	invalid := []*api.SettleUpRequest{
		{FriendID: bob.user.ID, Amount: 10},
		{FriendID: alice.user.ID, Amount: 0},
		{FriendID: alice.user.ID, Amount: -5},
		{FriendID: "ghost", Amount: 5},
		{FriendID: carol.user.ID, Amount: 5, GroupID: trip.ID},
	}
	for _, req := range invalid {
		_, err := ts.expense.SettleUp(ctx, authed(bob, req))
		requireCode(t, err, connect.CodeInvalidArgument)
	}

	_, err = ts.expense.SettleUp(ctx, authed(carol, &api.SettleUpRequest{
		FriendID: alice.user.ID,
		Amount:   5,
		GroupID:  trip.ID,
	}))
	requireCode(t, err, connect.CodePermissionDenied)
}
