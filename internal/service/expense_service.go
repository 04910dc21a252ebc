package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/pkg/api"
	"github.com/mmynk/splitledger/pkg/api/apiconnect"
)

// ExpenseService implements the Connect ExpenseService
type ExpenseService struct {
	apiconnect.UnimplementedExpenseServiceHandler
	store storage.Store
}

// NewExpenseService creates a new ExpenseService with the given storage backend.
func NewExpenseService(store storage.Store) *ExpenseService {
	return &ExpenseService{store: store}
}

// CreateExpense splits and stores a new expense.
func (s *ExpenseService) CreateExpense(ctx context.Context, req *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.CreateExpenseResponse], error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	e := buildExpense(req.Msg.Expense, userID)
	if err := s.checkExpense(ctx, e, userID); err != nil {
		return nil, err
	}

	if err := s.store.CreateExpense(ctx, e); err != nil {
		slog.Error("CreateExpense failed", "error", err)
		return nil, storeError(err)
	}

	slog.Info("Expense created",
		"expense_id", e.ID,
		"group_id", e.GroupID,
		"type", e.Type,
		"total", e.TotalAmount,
	)
	return connect.NewResponse(&api.CreateExpenseResponse{Expense: toAPIExpense(e)}), nil
}

// UpdateExpense replaces an expense the caller can see.
func (s *ExpenseService) UpdateExpense(ctx context.Context, req *connect.Request[api.UpdateExpenseRequest]) (*connect.Response[api.UpdateExpenseResponse], error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	existing, err := s.accessibleExpense(ctx, req.Msg.ID, userID)
	if err != nil {
		return nil, err
	}

	e := buildExpense(req.Msg.Expense, existing.CreatedByUID)
	e.ID = existing.ID
	if e.Date.IsZero() {
		e.Date = existing.Date
	}
	if err := s.checkExpense(ctx, e, userID); err != nil {
		return nil, err
	}

	if err := s.store.UpdateExpense(ctx, e); err != nil {
		slog.Error("UpdateExpense failed", "expense_id", e.ID, "error", err)
		return nil, storeError(err)
	}

	slog.Info("Expense updated", "expense_id", e.ID, "user_id", userID)
	return connect.NewResponse(&api.UpdateExpenseResponse{Expense: toAPIExpense(e)}), nil
}

// DeleteExpense removes an expense the caller can see.
func (s *ExpenseService) DeleteExpense(ctx context.Context, req *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.DeleteExpenseResponse], error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := s.accessibleExpense(ctx, req.Msg.ID, userID); err != nil {
		return nil, err
	}
	if err := s.store.DeleteExpense(ctx, req.Msg.ID); err != nil {
		slog.Error("DeleteExpense failed", "expense_id", req.Msg.ID, "error", err)
		return nil, storeError(err)
	}

	slog.Info("Expense deleted", "expense_id", req.Msg.ID, "user_id", userID)
	return connect.NewResponse(&api.DeleteExpenseResponse{}), nil
}

// GetExpense retrieves an expense the caller can see.
func (s *ExpenseService) GetExpense(ctx context.Context, req *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.GetExpenseResponse], error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	e, err := s.accessibleExpense(ctx, req.Msg.ID, userID)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&api.GetExpenseResponse{Expense: toAPIExpense(e)}), nil
}

// ListExpenses lists a group's expenses, the expenses shared with a friend,
// or all of the caller's expenses, newest first.
func (s *ExpenseService) ListExpenses(ctx context.Context, req *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	var expenses []models.Expense
	switch {
	case req.Msg.GroupID != "":
		if _, err := memberGroup(ctx, s.store, req.Msg.GroupID, userID); err != nil {
			return nil, err
		}
		expenses, err = s.store.ListExpensesByGroup(ctx, req.Msg.GroupID)
	default:
		expenses, err = s.store.ListExpensesForUser(ctx, userID)
	}
	if err != nil {
		slog.Error("ListExpenses failed", "user_id", userID, "error", err)
		return nil, storeError(err)
	}

	if friendID := req.Msg.FriendID; friendID != "" {
		shared := expenses[:0]
		for _, e := range expenses {
			if e.Involves(friendID) {
				shared = append(shared, e)
			}
		}
		expenses = shared
	}

	return connect.NewResponse(&api.ListExpensesResponse{Expenses: toAPIExpenses(expenses)}), nil
}

// SettleUp records a payment from the caller to a friend.
func (s *ExpenseService) SettleUp(ctx context.Context, req *connect.Request[api.SettleUpRequest]) (*connect.Response[api.SettleUpResponse], error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	friendID := req.Msg.FriendID
	if friendID == "" || friendID == userID {
		return nil, invalidArgument("a different friend is required")
	}
	amount := calculator.RoundToCents(req.Msg.Amount)
	if amount <= 0 {
		return nil, invalidArgument("amount must be positive")
	}

	memo := strings.TrimSpace(req.Msg.Memo)
	if memo == "" {
		memo = "Payment"
	}
	payment := &models.Expense{
		GroupID:      req.Msg.GroupID,
		Type:         models.ExpenseTypePayment,
		TotalAmount:  amount,
		PaidBy:       []models.Payment{{UserID: userID, Amount: amount}},
		Participants: []models.Share{{UserID: friendID, Amount: amount}},
		SplitMethod:  models.SplitUnequally,
		CreatedByUID: userID,
		Memo:         memo,
	}
	if models.IsNonGroup(payment.GroupID) {
		payment.GroupID = models.NonGroupID
	} else {
		group, err := memberGroup(ctx, s.store, payment.GroupID, userID)
		if err != nil {
			return nil, err
		}
		if !group.HasMember(friendID) {
			return nil, invalidArgument("%s is not a member of group %s", friendID, group.ID)
		}
	}
	if _, err := lookupUsers(ctx, s.store, []string{friendID}); err != nil {
		return nil, err
	}

	if err := s.store.CreateExpense(ctx, payment); err != nil {
		slog.Error("SettleUp failed", "user_id", userID, "friend_id", friendID, "error", err)
		return nil, storeError(err)
	}

	slog.Info("Payment recorded",
		"expense_id", payment.ID,
		"from", userID,
		"to", friendID,
		"amount", amount,
	)
	return connect.NewResponse(&api.SettleUpResponse{Payment: toAPIExpense(payment)}), nil
}

// accessibleExpense loads an expense the caller takes part in or whose
// group the caller belongs to.
func (s *ExpenseService) accessibleExpense(ctx context.Context, id, userID string) (*models.Expense, error) {
	if id == "" {
		return nil, invalidArgument("expense id is required")
	}
	e, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	if e.Involves(userID) {
		return e, nil
	}
	if !models.IsNonGroup(e.GroupID) {
		group, err := s.store.GetGroup(ctx, e.GroupID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, storeError(err)
		}
		if err == nil && group.HasMember(userID) {
			return e, nil
		}
	}
	return nil, permissionDenied("you cannot access expense %s", id)
}

// checkExpense validates e before it is written on behalf of userID.
// Group expenses require the caller to be a member; participants who are
// not members yet are added to the group.
func (s *ExpenseService) checkExpense(ctx context.Context, e *models.Expense, userID string) error {
	if len(e.Participants) == 0 {
		return invalidArgument("at least one active participant is required")
	}
	if err := e.Validate(); err != nil {
		return connect.NewError(connect.CodeInvalidArgument, err)
	}
	if _, err := lookupUsers(ctx, s.store, e.UserIDs()); err != nil {
		return err
	}

	if models.IsNonGroup(e.GroupID) {
		if !e.Involves(userID) {
			return permissionDenied("you must take part in a non-group expense")
		}
		return nil
	}

	group, err := memberGroup(ctx, s.store, e.GroupID, userID)
	if err != nil {
		return err
	}
	s.autoAddParticipantsToGroup(ctx, group, e.UserIDs())
	return nil
}

// autoAddParticipantsToGroup adds everyone on an expense who is not yet a
// member of its group.
func (s *ExpenseService) autoAddParticipantsToGroup(ctx context.Context, group *models.Group, userIDs []string) {
	var newMembers []string
	for _, id := range userIDs {
		if !group.HasMember(id) {
			newMembers = append(newMembers, id)
		}
	}
	if len(newMembers) == 0 {
		return
	}

	if err := s.store.AddGroupMembers(ctx, group.ID, newMembers); err != nil {
		slog.Error("autoAddParticipantsToGroup: failed to add members", "group_id", group.ID, "error", err)
		return
	}
	slog.Info("Auto-added participants to group", "group_id", group.ID, "new_members", newMembers)
}
