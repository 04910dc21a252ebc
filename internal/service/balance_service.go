package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/pkg/api"
	"github.com/mmynk/splitledger/pkg/api/apiconnect"
)

// BalanceService implements the Connect BalanceService. Balances come from
// the caller's ledger tracker, which stays current as records change.
type BalanceService struct {
	apiconnect.UnimplementedBalanceServiceHandler
	store    storage.Store
	registry *ledger.Registry
}

// NewBalanceService creates a new BalanceService.
func NewBalanceService(store storage.Store, registry *ledger.Registry) *BalanceService {
	return &BalanceService{store: store, registry: registry}
}

// GetFriendBalance returns the caller's balance with one friend.
func (s *BalanceService) GetFriendBalance(ctx context.Context, req *connect.Request[api.GetFriendBalanceRequest]) (*connect.Response[api.GetFriendBalanceResponse], error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	friendID := req.Msg.FriendID
	if friendID == "" || friendID == userID {
		return nil, invalidArgument("a different friend is required")
	}

	friend, err := s.store.GetUserByID(ctx, friendID)
	if err != nil {
		return nil, storeError(err)
	}
	view, err := s.view(ctx, userID)
	if err != nil {
		return nil, err
	}

	fb := view.Friend(friendID)
	return connect.NewResponse(&api.GetFriendBalanceResponse{
		Balance: api.FriendBalance{
			Friend:    api.User{ID: friend.ID, DisplayName: friend.DisplayName},
			Net:       fb.Net,
			Breakdown: toAPIEntries(fb.Breakdown),
		},
	}), nil
}

// ListFriendBalances returns the caller's balance with every friend, largest first.
func (s *BalanceService) ListFriendBalances(ctx context.Context, req *connect.Request[api.ListFriendBalancesRequest]) (*connect.Response[api.ListFriendBalancesResponse], error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.view(ctx, userID)
	if err != nil {
		return nil, err
	}

	friends := make([]ledger.FriendBalance, 0, len(view.Friends))
	ids := make([]string, 0, len(view.Friends))
	for _, f := range view.Friends {
		if f.IsSettled() && !req.Msg.IncludeSettled {
			continue
		}
		friends = append(friends, f)
		ids = append(ids, f.UserID)
	}
	users, err := s.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, storeError(err)
	}

	balances := make([]api.FriendBalance, len(friends))
	for i, f := range friends {
		balances[i] = api.FriendBalance{
			Friend:    userRef(f.UserID, users),
			Net:       f.Net,
			Breakdown: toAPIEntries(f.Breakdown),
		}
	}
	return connect.NewResponse(&api.ListFriendBalancesResponse{
		Balances:   balances,
		TotalOwed:  view.Totals.Owed,
		TotalOwing: view.Totals.Owing,
	}), nil
}

// GetGroupBalance returns the caller's balance within a group, broken down by member.
func (s *BalanceService) GetGroupBalance(ctx context.Context, req *connect.Request[api.GetGroupBalanceRequest]) (*connect.Response[api.GetGroupBalanceResponse], error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	group, err := memberGroup(ctx, s.store, req.Msg.GroupID, userID)
	if err != nil {
		return nil, err
	}
	view, err := s.view(ctx, userID)
	if err != nil {
		return nil, err
	}
	users, err := s.store.GetUsersByIDs(ctx, group.Members)
	if err != nil {
		return nil, storeError(err)
	}

	gb, _ := view.Group(group.ID)
	b := calculator.Relabel(gb.Balance, displayNames(users))
	return connect.NewResponse(&api.GetGroupBalanceResponse{
		Balance: api.GroupBalance{
			GroupID:   group.ID,
			Name:      group.Name,
			Net:       b.Net,
			Breakdown: toAPIEntries(b.Breakdown),
		},
	}), nil
}

func (s *BalanceService) view(ctx context.Context, userID string) (ledger.View, error) {
	view, err := s.registry.View(ctx, userID)
	if err != nil {
		slog.Error("Failed to load balances", "user_id", userID, "error", err)
		return ledger.View{}, connect.NewError(connect.CodeUnavailable, err)
	}
	return view, nil
}
