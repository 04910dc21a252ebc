package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/pkg/api"
)

var errAuthRequired = errors.New("authentication required")

// currentUser returns the authenticated caller or a CodeUnauthenticated error.
func currentUser(ctx context.Context) (string, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, errAuthRequired)
	}
	return userID, nil
}

// storeError maps a storage failure onto a Connect error.
func storeError(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return connect.NewError(connect.CodeNotFound, err)
	}
	if errors.Is(err, context.Canceled) {
		return connect.NewError(connect.CodeCanceled, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}

func permissionDenied(format string, args ...any) error {
	return connect.NewError(connect.CodePermissionDenied, fmt.Errorf(format, args...))
}

func invalidArgument(format string, args ...any) error {
	return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf(format, args...))
}

func toAPIUser(u *models.User) api.User {
	return api.User{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
	}
}

// userRef is a user as other people see it: no email.
func userRef(id string, users map[string]*models.User) api.User {
	if u, ok := users[id]; ok {
		return api.User{ID: u.ID, DisplayName: u.DisplayName}
	}
	return api.User{ID: id, DisplayName: id}
}

// displayNames maps user IDs onto display names for balance labels.
func displayNames(users map[string]*models.User) map[string]string {
	names := make(map[string]string, len(users))
	for id, u := range users {
		names[id] = u.DisplayName
	}
	return names
}

func toAPIGroup(g *models.Group, users map[string]*models.User) api.Group {
	members := make([]api.User, len(g.Members))
	for i, id := range g.Members {
		members[i] = userRef(id, users)
	}
	return api.Group{
		ID:        g.ID,
		Name:      g.Name,
		Members:   members,
		CreatedAt: g.CreatedAt,
	}
}

func toAPIExpense(e *models.Expense) api.Expense {
	paid := make([]api.Payment, len(e.PaidBy))
	for i, p := range e.PaidBy {
		paid[i] = api.Payment{UserID: p.UserID, Amount: p.Amount}
	}
	shares := make([]api.Share, len(e.Participants))
	for i, s := range e.Participants {
		shares[i] = api.Share{UserID: s.UserID, Amount: s.Amount}
	}
	return api.Expense{
		ID:           e.ID,
		GroupID:      e.GroupID,
		Type:         string(e.Type),
		TotalAmount:  e.TotalAmount,
		PaidBy:       paid,
		Participants: shares,
		SplitMethod:  string(e.SplitMethod),
		CreatedBy:    e.CreatedByUID,
		Date:         e.Date.UnixMilli(),
		Memo:         e.Memo,
		ImageURLs:    e.ImageURLs,
	}
}

func toAPIExpenses(expenses []models.Expense) []api.Expense {
	out := make([]api.Expense, len(expenses))
	for i := range expenses {
		out[i] = toAPIExpense(&expenses[i])
	}
	return out
}

func toModelParticipants(in []api.SplitParticipant) []models.Participant {
	out := make([]models.Participant, len(in))
	for i, p := range in {
		out[i] = models.Participant{
			UserID:     p.UserID,
			Active:     p.Active,
			SplitValue: p.SplitValue,
			OwesAmount: p.OwesAmount,
		}
	}
	return out
}

func toAPIParticipants(in []models.Participant) []api.SplitParticipant {
	out := make([]api.SplitParticipant, len(in))
	for i, p := range in {
		out[i] = api.SplitParticipant{
			UserID:     p.UserID,
			Active:     p.Active,
			SplitValue: p.SplitValue,
			OwesAmount: p.OwesAmount,
		}
	}
	return out
}

// buildExpense turns an ExpenseInput into a model, splitting the total
// among the active participants with the requested method.
func buildExpense(in api.ExpenseInput, createdBy string) *models.Expense {
	method := models.ParseSplitMethod(in.SplitMethod)
	split := calculator.ComputeSplit(in.TotalAmount, toModelParticipants(in.Participants), method)

	paid := make([]models.Payment, 0, len(in.PaidBy))
	for _, p := range in.PaidBy {
		paid = append(paid, models.Payment{UserID: p.UserID, Amount: calculator.RoundToCents(p.Amount)})
	}

	e := &models.Expense{
		GroupID:      in.GroupID,
		Type:         models.ParseExpenseType(in.Type),
		TotalAmount:  calculator.RoundToCents(in.TotalAmount),
		PaidBy:       paid,
		Participants: calculator.SharesFromSplit(split),
		SplitMethod:  method,
		CreatedByUID: createdBy,
		Memo:         in.Memo,
		ImageURLs:    in.ImageURLs,
	}
	if models.IsNonGroup(e.GroupID) {
		e.GroupID = models.NonGroupID
	}
	if in.Date != 0 {
		e.Date = time.UnixMilli(in.Date)
	}
	return e
}

func toAPIEntries(entries []calculator.Entry) []api.BalanceEntry {
	out := make([]api.BalanceEntry, len(entries))
	for i, e := range entries {
		out[i] = api.BalanceEntry{ContextID: e.ContextID, Label: e.Label, Amount: e.Amount}
	}
	return out
}
