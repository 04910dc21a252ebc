package service

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
	"github.com/mmynk/splitledger/pkg/api"
	"github.com/mmynk/splitledger/pkg/api/apiconnect"
)

type testServer struct {
	auth    apiconnect.AuthServiceClient
	split   apiconnect.SplitServiceClient
	expense apiconnect.ExpenseServiceClient
	group   apiconnect.GroupServiceClient
	balance apiconnect.BalanceServiceClient
}

// setupTestServer serves every service over httptest backed by a temp database.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	registry := ledger.NewRegistry(store, ledger.Options{Workers: 2})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	interceptors := connect.WithInterceptors(
		middleware.RequireAuth(jwtManager,
			apiconnect.AuthServiceRegisterProcedure,
			apiconnect.AuthServiceLoginProcedure,
		),
		middleware.LoggingInterceptor(nil),
	)

	authPath, authHandler := apiconnect.NewAuthServiceHandler(
		NewAuthService(auth.NewPasswordAuthenticator(store), jwtManager, store, logger), interceptors)
	splitPath, splitHandler := apiconnect.NewSplitServiceHandler(NewSplitService(), interceptors)
	expensePath, expenseHandler := apiconnect.NewExpenseServiceHandler(NewExpenseService(store), interceptors)
	groupPath, groupHandler := apiconnect.NewGroupServiceHandler(NewGroupService(store), interceptors)
	balancePath, balanceHandler := apiconnect.NewBalanceServiceHandler(NewBalanceService(store, registry), interceptors)

	mux := http.NewServeMux()
	mux.Handle(authPath, authHandler)
	mux.Handle(splitPath, splitHandler)
	mux.Handle(expensePath, expenseHandler)
	mux.Handle(groupPath, groupHandler)
	mux.Handle(balancePath, balanceHandler)

	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
		registry.Close()
		store.Close()
	})

	return &testServer{
		auth:    apiconnect.NewAuthServiceClient(http.DefaultClient, server.URL),
		split:   apiconnect.NewSplitServiceClient(http.DefaultClient, server.URL),
		expense: apiconnect.NewExpenseServiceClient(http.DefaultClient, server.URL),
		group:   apiconnect.NewGroupServiceClient(http.DefaultClient, server.URL),
		balance: apiconnect.NewBalanceServiceClient(http.DefaultClient, server.URL),
	}
}

// session is a registered user and their bearer token.
type session struct {
	user  api.User
	token string
}

func (ts *testServer) register(t *testing.T, name string) session {
	t.Helper()
	resp, err := ts.auth.Register(context.Background(), connect.NewRequest(&api.RegisterRequest{
		Email:       name + "@example.com",
		DisplayName: name,
		Password:    "password-" + name,
	}))
	require.NoError(t, err)
	return session{user: resp.Msg.User, token: resp.Msg.Token}
}

func authed[T any](s session, msg *T) *connect.Request[T] {
	req := connect.NewRequest(msg)
	req.Header().Set("Authorization", "Bearer "+s.token)
	return req
}

func requireCode(t *testing.T, err error, code connect.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, connect.CodeOf(err), "error: %v", err)
}

func equalSplit(paidBy session, total float64, groupID string, among ...session) api.ExpenseInput {
	participants := make([]api.SplitParticipant, len(among))
	for i, s := range among {
		participants[i] = api.SplitParticipant{UserID: s.user.ID, Active: true}
	}
	return api.ExpenseInput{
		GroupID:      groupID,
		TotalAmount:  total,
		PaidBy:       []api.Payment{{UserID: paidBy.user.ID, Amount: total}},
		SplitMethod:  "EQUALLY",
		Participants: participants,
		Memo:         "Dinner",
	}
}

func (ts *testServer) createGroup(t *testing.T, owner session, name string, members ...session) api.Group {
	t.Helper()
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.user.ID
	}
	resp, err := ts.group.CreateGroup(context.Background(), authed(owner, &api.CreateGroupRequest{
		Name:      name,
		MemberIDs: ids,
	}))
	require.NoError(t, err)
	return resp.Msg.Group
}

func (ts *testServer) friendBalance(t *testing.T, s session, friend session) api.FriendBalance {
	t.Helper()
	resp, err := ts.balance.GetFriendBalance(context.Background(), authed(s, &api.GetFriendBalanceRequest{
		FriendID: friend.user.ID,
	}))
	require.NoError(t, err)
	return resp.Msg.Balance
}
