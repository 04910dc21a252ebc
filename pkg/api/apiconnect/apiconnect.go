// Package apiconnect wires the splitledger.v1 services to Connect.
//
// It follows the layout of protoc-gen-connect-go output, with the messages
// of package api encoded by api.JSONCodec.
package apiconnect

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/pkg/api"
)

// This is a compile-time assertion to ensure that this file and the connect
// package are compatible.
const _ = connect.IsAtLeastVersion1_13_0

const (
	// AuthServiceName is the fully-qualified name of the AuthService service.
	AuthServiceName = "splitledger.v1.AuthService"
	// SplitServiceName is the fully-qualified name of the SplitService service.
	SplitServiceName = "splitledger.v1.SplitService"
	// ExpenseServiceName is the fully-qualified name of the ExpenseService service.
	ExpenseServiceName = "splitledger.v1.ExpenseService"
	// GroupServiceName is the fully-qualified name of the GroupService service.
	GroupServiceName = "splitledger.v1.GroupService"
	// BalanceServiceName is the fully-qualified name of the BalanceService service.
	BalanceServiceName = "splitledger.v1.BalanceService"
)

// Procedure names, in the form /package.Service/Method.
const (
	AuthServiceRegisterProcedure              = "/splitledger.v1.AuthService/Register"
	AuthServiceLoginProcedure                 = "/splitledger.v1.AuthService/Login"
	AuthServiceGetCurrentUserProcedure        = "/splitledger.v1.AuthService/GetCurrentUser"
	SplitServiceComputeSplitProcedure         = "/splitledger.v1.SplitService/ComputeSplit"
	ExpenseServiceCreateExpenseProcedure      = "/splitledger.v1.ExpenseService/CreateExpense"
	ExpenseServiceUpdateExpenseProcedure      = "/splitledger.v1.ExpenseService/UpdateExpense"
	ExpenseServiceDeleteExpenseProcedure      = "/splitledger.v1.ExpenseService/DeleteExpense"
	ExpenseServiceGetExpenseProcedure         = "/splitledger.v1.ExpenseService/GetExpense"
	ExpenseServiceListExpensesProcedure       = "/splitledger.v1.ExpenseService/ListExpenses"
	ExpenseServiceSettleUpProcedure           = "/splitledger.v1.ExpenseService/SettleUp"
	GroupServiceCreateGroupProcedure          = "/splitledger.v1.GroupService/CreateGroup"
	GroupServiceGetGroupProcedure             = "/splitledger.v1.GroupService/GetGroup"
	GroupServiceListGroupsProcedure           = "/splitledger.v1.GroupService/ListGroups"
	GroupServiceAddMembersProcedure           = "/splitledger.v1.GroupService/AddMembers"
	BalanceServiceGetFriendBalanceProcedure   = "/splitledger.v1.BalanceService/GetFriendBalance"
	BalanceServiceListFriendBalancesProcedure = "/splitledger.v1.BalanceService/ListFriendBalances"
	BalanceServiceGetGroupBalanceProcedure    = "/splitledger.v1.BalanceService/GetGroupBalance"
)

func clientOptions(opts []connect.ClientOption) []connect.ClientOption {
	return append([]connect.ClientOption{connect.WithCodec(api.JSONCodec{})}, opts...)
}

func handlerOptions(opts []connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{connect.WithCodec(api.JSONCodec{})}, opts...)
}

// AuthServiceClient is a client for the splitledger.v1.AuthService service.
type AuthServiceClient interface {
	Register(context.Context, *connect.Request[api.RegisterRequest]) (*connect.Response[api.RegisterResponse], error)
	Login(context.Context, *connect.Request[api.LoginRequest]) (*connect.Response[api.LoginResponse], error)
	GetCurrentUser(context.Context, *connect.Request[api.GetCurrentUserRequest]) (*connect.Response[api.GetCurrentUserResponse], error)
}

// NewAuthServiceClient constructs a client for the splitledger.v1.AuthService service.
// baseURL is the server's root, e.g. http://localhost:8080.
func NewAuthServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) AuthServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &authServiceClient{
		register: connect.NewClient[api.RegisterRequest, api.RegisterResponse](
			httpClient,
			baseURL+AuthServiceRegisterProcedure,
			opts...,
		),
		login: connect.NewClient[api.LoginRequest, api.LoginResponse](
			httpClient,
			baseURL+AuthServiceLoginProcedure,
			opts...,
		),
		getCurrentUser: connect.NewClient[api.GetCurrentUserRequest, api.GetCurrentUserResponse](
			httpClient,
			baseURL+AuthServiceGetCurrentUserProcedure,
			opts...,
		),
	}
}

type authServiceClient struct {
	register       *connect.Client[api.RegisterRequest, api.RegisterResponse]
	login          *connect.Client[api.LoginRequest, api.LoginResponse]
	getCurrentUser *connect.Client[api.GetCurrentUserRequest, api.GetCurrentUserResponse]
}

func (c *authServiceClient) Register(ctx context.Context, req *connect.Request[api.RegisterRequest]) (*connect.Response[api.RegisterResponse], error) {
	return c.register.CallUnary(ctx, req)
}

func (c *authServiceClient) Login(ctx context.Context, req *connect.Request[api.LoginRequest]) (*connect.Response[api.LoginResponse], error) {
	return c.login.CallUnary(ctx, req)
}

func (c *authServiceClient) GetCurrentUser(ctx context.Context, req *connect.Request[api.GetCurrentUserRequest]) (*connect.Response[api.GetCurrentUserResponse], error) {
	return c.getCurrentUser.CallUnary(ctx, req)
}

// AuthServiceHandler is implemented by the splitledger.v1.AuthService service.
type AuthServiceHandler interface {
	Register(context.Context, *connect.Request[api.RegisterRequest]) (*connect.Response[api.RegisterResponse], error)
	Login(context.Context, *connect.Request[api.LoginRequest]) (*connect.Response[api.LoginResponse], error)
	GetCurrentUser(context.Context, *connect.Request[api.GetCurrentUserRequest]) (*connect.Response[api.GetCurrentUserResponse], error)
}

// NewAuthServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewAuthServiceHandler(svc AuthServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	registerHandler := connect.NewUnaryHandler(
		AuthServiceRegisterProcedure,
		svc.Register,
		opts...,
	)
	loginHandler := connect.NewUnaryHandler(
		AuthServiceLoginProcedure,
		svc.Login,
		opts...,
	)
	getCurrentUserHandler := connect.NewUnaryHandler(
		AuthServiceGetCurrentUserProcedure,
		svc.GetCurrentUser,
		opts...,
	)
	return "/splitledger.v1.AuthService/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case AuthServiceRegisterProcedure:
			registerHandler.ServeHTTP(w, r)
		case AuthServiceLoginProcedure:
			loginHandler.ServeHTTP(w, r)
		case AuthServiceGetCurrentUserProcedure:
			getCurrentUserHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// UnimplementedAuthServiceHandler returns CodeUnimplemented from all methods.
type UnimplementedAuthServiceHandler struct{}

func (UnimplementedAuthServiceHandler) Register(context.Context, *connect.Request[api.RegisterRequest]) (*connect.Response[api.RegisterResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitledger.v1.AuthService.Register is not implemented"))
}

func (UnimplementedAuthServiceHandler) Login(context.Context, *connect.Request[api.LoginRequest]) (*connect.Response[api.LoginResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitledger.v1.AuthService.Login is not implemented"))
}

func (UnimplementedAuthServiceHandler) GetCurrentUser(context.Context, *connect.Request[api.GetCurrentUserRequest]) (*connect.Response[api.GetCurrentUserResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitledger.v1.AuthService.GetCurrentUser is not implemented"))
}

// SplitServiceClient is a client for the splitledger.v1.SplitService service.
type SplitServiceClient interface {
	ComputeSplit(context.Context, *connect.Request[api.ComputeSplitRequest]) (*connect.Response[api.ComputeSplitResponse], error)
}

// NewSplitServiceClient constructs a client for the splitledger.v1.SplitService service.
// baseURL is the server's root, e.g. http://localhost:8080.
func NewSplitServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) SplitServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &splitServiceClient{
		computeSplit: connect.NewClient[api.ComputeSplitRequest, api.ComputeSplitResponse](
			httpClient,
			baseURL+SplitServiceComputeSplitProcedure,
			opts...,
		),
	}
}

type splitServiceClient struct {
	computeSplit *connect.Client[api.ComputeSplitRequest, api.ComputeSplitResponse]
}

func (c *splitServiceClient) ComputeSplit(ctx context.Context, req *connect.Request[api.ComputeSplitRequest]) (*connect.Response[api.ComputeSplitResponse], error) {
	return c.computeSplit.CallUnary(ctx, req)
}

// SplitServiceHandler is implemented by the splitledger.v1.SplitService service.
type SplitServiceHandler interface {
	ComputeSplit(context.Context, *connect.Request[api.ComputeSplitRequest]) (*connect.Response[api.ComputeSplitResponse], error)
}

// NewSplitServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewSplitServiceHandler(svc SplitServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	computeSplitHandler := connect.NewUnaryHandler(
		SplitServiceComputeSplitProcedure,
		svc.ComputeSplit,
		opts...,
	)
	return "/splitledger.v1.SplitService/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case SplitServiceComputeSplitProcedure:
			computeSplitHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// UnimplementedSplitServiceHandler returns CodeUnimplemented from all methods.
type UnimplementedSplitServiceHandler struct{}

func (UnimplementedSplitServiceHandler) ComputeSplit(context.Context, *connect.Request[api.ComputeSplitRequest]) (*connect.Response[api.ComputeSplitResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitledger.v1.SplitService.ComputeSplit is not implemented"))
}

// ExpenseServiceClient is a client for the splitledger.v1.ExpenseService service.
type ExpenseServiceClient interface {
	CreateExpense(context.Context, *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.CreateExpenseResponse], error)
	UpdateExpense(context.Context, *connect.Request[api.UpdateExpenseRequest]) (*connect.Response[api.UpdateExpenseResponse], error)
	DeleteExpense(context.Context, *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.DeleteExpenseResponse], error)
	GetExpense(context.Context, *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.GetExpenseResponse], error)
	ListExpenses(context.Context, *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error)
	SettleUp(context.Context, *connect.Request[api.SettleUpRequest]) (*connect.Response[api.SettleUpResponse], error)
}

// NewExpenseServiceClient constructs a client for the splitledger.v1.ExpenseService service.
// baseURL is the server's root, e.g. http://localhost:8080.
func NewExpenseServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) ExpenseServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &expenseServiceClient{
		createExpense: connect.NewClient[api.CreateExpenseRequest, api.CreateExpenseResponse](
			httpClient,
			baseURL+ExpenseServiceCreateExpenseProcedure,
			opts...,
		),
		updateExpense: connect.NewClient[api.UpdateExpenseRequest, api.UpdateExpenseResponse](
			httpClient,
			baseURL+ExpenseServiceUpdateExpenseProcedure,
			opts...,
		),
		deleteExpense: connect.NewClient[api.DeleteExpenseRequest, api.DeleteExpenseResponse](
			httpClient,
			baseURL+ExpenseServiceDeleteExpenseProcedure,
			opts...,
		),
		getExpense: connect.NewClient[api.GetExpenseRequest, api.GetExpenseResponse](
			httpClient,
			baseURL+ExpenseServiceGetExpenseProcedure,
			opts...,
		),
		listExpenses: connect.NewClient[api.ListExpensesRequest, api.ListExpensesResponse](
			httpClient,
			baseURL+ExpenseServiceListExpensesProcedure,
			opts...,
		),
		settleUp: connect.NewClient[api.SettleUpRequest, api.SettleUpResponse](
			httpClient,
			baseURL+ExpenseServiceSettleUpProcedure,
			opts...,
		),
	}
}

type expenseServiceClient struct {
	createExpense *connect.Client[api.CreateExpenseRequest, api.CreateExpenseResponse]
	updateExpense *connect.Client[api.UpdateExpenseRequest, api.UpdateExpenseResponse]
	deleteExpense *connect.Client[api.DeleteExpenseRequest, api.DeleteExpenseResponse]
	getExpense    *connect.Client[api.GetExpenseRequest, api.GetExpenseResponse]
	listExpenses  *connect.Client[api.ListExpensesRequest, api.ListExpensesResponse]
	settleUp      *connect.Client[api.SettleUpRequest, api.SettleUpResponse]
}

func (c *expenseServiceClient) CreateExpense(ctx context.Context, req *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.CreateExpenseResponse], error) {
	return c.createExpense.CallUnary(ctx, req)
}

func (c *expenseServiceClient) UpdateExpense(ctx context.Context, req *connect.Request[api.UpdateExpenseRequest]) (*connect.Response[api.UpdateExpenseResponse], error) {
	return c.updateExpense.CallUnary(ctx, req)
}

func (c *expenseServiceClient) DeleteExpense(ctx context.Context, req *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.DeleteExpenseResponse], error) {
	return c.deleteExpense.CallUnary(ctx, req)
}

func (c *expenseServiceClient) GetExpense(ctx context.Context, req *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.GetExpenseResponse], error) {
	return c.getExpense.CallUnary(ctx, req)
}

func (c *expenseServiceClient) ListExpenses(ctx context.Context, req *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error) {
	return c.listExpenses.CallUnary(ctx, req)
}

func (c *expenseServiceClient) SettleUp(ctx context.Context, req *connect.Request[api.SettleUpRequest]) (*connect.Response[api.SettleUpResponse], error) {
	return c.settleUp.CallUnary(ctx, req)
}

// ExpenseServiceHandler is implemented by the splitledger.v1.ExpenseService service.
type ExpenseServiceHandler interface {
	CreateExpense(context.Context, *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.CreateExpenseResponse], error)
	UpdateExpense(context.Context, *connect.Request[api.UpdateExpenseRequest]) (*connect.Response[api.UpdateExpenseResponse], error)
	DeleteExpense(context.Context, *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.DeleteExpenseResponse], error)
	GetExpense(context.Context, *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.GetExpenseResponse], error)
	ListExpenses(context.Context, *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error)
	SettleUp(context.Context, *connect.Request[api.SettleUpRequest]) (*connect.Response[api.SettleUpResponse], error)
}

// NewExpenseServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewExpenseServiceHandler(svc ExpenseServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	createExpenseHandler := connect.NewUnaryHandler(
		ExpenseServiceCreateExpenseProcedure,
		svc.CreateExpense,
		opts...,
	)
	updateExpenseHandler := connect.NewUnaryHandler(
		ExpenseServiceUpdateExpenseProcedure,
		svc.UpdateExpense,
		opts...,
	)
	deleteExpenseHandler := connect.NewUnaryHandler(
		ExpenseServiceDeleteExpenseProcedure,
		svc.DeleteExpense,
		opts...,
	)
	getExpenseHandler := connect.NewUnaryHandler(
		ExpenseServiceGetExpenseProcedure,
		svc.GetExpense,
		opts...,
	)
	listExpensesHandler := connect.NewUnaryHandler(
		ExpenseServiceListExpensesProcedure,
		svc.ListExpenses,
		opts...,
	)
	settleUpHandler := connect.NewUnaryHandler(
		ExpenseServiceSettleUpProcedure,
		svc.SettleUp,
		opts...,
	)
	return "/splitledger.v1.ExpenseService/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case ExpenseServiceCreateExpenseProcedure:
			createExpenseHandler.ServeHTTP(w, r)
		case ExpenseServiceUpdateExpenseProcedure:
			updateExpenseHandler.ServeHTTP(w, r)
		case ExpenseServiceDeleteExpenseProcedure:
			deleteExpenseHandler.ServeHTTP(w, r)
		case ExpenseServiceGetExpenseProcedure:
			getExpenseHandler.ServeHTTP(w, r)
		case ExpenseServiceListExpensesProcedure:
			listExpensesHandler.ServeHTTP(w, r)
		case ExpenseServiceSettleUpProcedure:
			settleUpHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// UnimplementedExpenseServiceHandler returns CodeUnimplemented from all methods.
type UnimplementedExpenseServiceHandler struct{}

func (UnimplementedExpenseServiceHandler) CreateExpense(context.Context, *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.CreateExpenseResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitledger.v1.ExpenseService.CreateExpense is not implemented"))
}

func (UnimplementedExpenseServiceHandler) UpdateExpense(context.Context, *connect.Request[api.UpdateExpenseRequest]) (*connect.Response[api.UpdateExpenseResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitledger.v1.ExpenseService.UpdateExpense is not implemented"))
}

func (UnimplementedExpenseServiceHandler) DeleteExpense(context.Context, *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.DeleteExpenseResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitledger.v1.ExpenseService.DeleteExpense is not implemented"))
}

func (UnimplementedExpenseServiceHandler) GetExpense(context.Context, *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.GetExpenseResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitledger.v1.ExpenseService.GetExpense is not implemented"))
}

func (UnimplementedExpenseServiceHandler) ListExpenses(context.Context, *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitledger.v1.ExpenseService.ListExpenses is not implemented"))
}

func (UnimplementedExpenseServiceHandler) SettleUp(context.Context, *connect.Request[api.SettleUpRequest]) (*connect.Response[api.SettleUpResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitledger.v1.ExpenseService.SettleUp is not implemented"))
}

// GroupServiceClient is a client for the splitledger.v1.GroupService service.
type GroupServiceClient interface {
	CreateGroup(context.Context, *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error)
	GetGroup(context.Context, *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error)
	ListGroups(context.Context, *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error)
	AddMembers(context.Context, *connect.Request[api.AddMembersRequest]) (*connect.Response[api.AddMembersResponse], error)
}

// NewGroupServiceClient constructs a client for the splitledger.v1.GroupService service.
// baseURL is the server's root, e.g. http://localhost:8080.
func NewGroupServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) GroupServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &groupServiceClient{
		createGroup: connect.NewClient[api.CreateGroupRequest, api.CreateGroupResponse](
			httpClient,
			baseURL+GroupServiceCreateGroupProcedure,
			opts...,
		),
		getGroup: connect.NewClient[api.GetGroupRequest, api.GetGroupResponse](
			httpClient,
			baseURL+GroupServiceGetGroupProcedure,
			opts...,
		),
		listGroups: connect.NewClient[api.ListGroupsRequest, api.ListGroupsResponse](
			httpClient,
			baseURL+GroupServiceListGroupsProcedure,
			opts...,
		),
		addMembers: connect.NewClient[api.AddMembersRequest, api.AddMembersResponse](
			httpClient,
			baseURL+GroupServiceAddMembersProcedure,
			opts...,
		),
	}
}

type groupServiceClient struct {
	createGroup *connect.Client[api.CreateGroupRequest, api.CreateGroupResponse]
	getGroup    *connect.Client[api.GetGroupRequest, api.GetGroupResponse]
	listGroups  *connect.Client[api.ListGroupsRequest, api.ListGroupsResponse]
	addMembers  *connect.Client[api.AddMembersRequest, api.AddMembersResponse]
}

func (c *groupServiceClient) CreateGroup(ctx context.Context, req *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error) {
	return c.createGroup.CallUnary(ctx, req)
}

func (c *groupServiceClient) GetGroup(ctx context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
	return c.getGroup.CallUnary(ctx, req)
}

func (c *groupServiceClient) ListGroups(ctx context.Context, req *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error) {
	return c.listGroups.CallUnary(ctx, req)
}

func (c *groupServiceClient) AddMembers(ctx context.Context, req *connect.Request[api.AddMembersRequest]) (*connect.Response[api.AddMembersResponse], error) {
	return c.addMembers.CallUnary(ctx, req)
}

// GroupServiceHandler is implemented by the splitledger.v1.GroupService service.
type GroupServiceHandler interface {
	CreateGroup(context.Context, *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error)
	GetGroup(context.Context, *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error)
	ListGroups(context.Context, *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error)
	AddMembers(context.Context, *connect.Request[api.AddMembersRequest]) (*connect.Response[api.AddMembersResponse], error)
}

// NewGroupServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewGroupServiceHandler(svc GroupServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	createGroupHandler := connect.NewUnaryHandler(
		GroupServiceCreateGroupProcedure,
		svc.CreateGroup,
		opts...,
	)
	getGroupHandler := connect.NewUnaryHandler(
		GroupServiceGetGroupProcedure,
		svc.GetGroup,
		opts...,
	)
	listGroupsHandler := connect.NewUnaryHandler(
		GroupServiceListGroupsProcedure,
		svc.ListGroups,
		opts...,
	)
	addMembersHandler := connect.NewUnaryHandler(
		GroupServiceAddMembersProcedure,
		svc.AddMembers,
		opts...,
	)
	return "/splitledger.v1.GroupService/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case GroupServiceCreateGroupProcedure:
			createGroupHandler.ServeHTTP(w, r)
		case GroupServiceGetGroupProcedure:
			getGroupHandler.ServeHTTP(w, r)
		case GroupServiceListGroupsProcedure:
			listGroupsHandler.ServeHTTP(w, r)
		case GroupServiceAddMembersProcedure:
			addMembersHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// UnimplementedGroupServiceHandler returns CodeUnimplemented from all methods.
type UnimplementedGroupServiceHandler struct{}

func (UnimplementedGroupServiceHandler) CreateGroup(context.Context, *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitledger.v1.GroupService.CreateGroup is not implemented"))
}

func (UnimplementedGroupServiceHandler) GetGroup(context.Context, *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitledger.v1.GroupService.GetGroup is not implemented"))
}

func (UnimplementedGroupServiceHandler) ListGroups(context.Context, *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitledger.v1.GroupService.ListGroups is not implemented"))
}

func (UnimplementedGroupServiceHandler) AddMembers(context.Context, *connect.Request[api.AddMembersRequest]) (*connect.Response[api.AddMembersResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitledger.v1.GroupService.AddMembers is not implemented"))
}

// BalanceServiceClient is a client for the splitledger.v1.BalanceService service.
type BalanceServiceClient interface {
	GetFriendBalance(context.Context, *connect.Request[api.GetFriendBalanceRequest]) (*connect.Response[api.GetFriendBalanceResponse], error)
	ListFriendBalances(context.Context, *connect.Request[api.ListFriendBalancesRequest]) (*connect.Response[api.ListFriendBalancesResponse], error)
	GetGroupBalance(context.Context, *connect.Request[api.GetGroupBalanceRequest]) (*connect.Response[api.GetGroupBalanceResponse], error)
}

// NewBalanceServiceClient constructs a client for the splitledger.v1.BalanceService service.
// baseURL is the server's root, e.g. http://localhost:8080.
func NewBalanceServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) BalanceServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &balanceServiceClient{
		getFriendBalance: connect.NewClient[api.GetFriendBalanceRequest, api.GetFriendBalanceResponse](
			httpClient,
			baseURL+BalanceServiceGetFriendBalanceProcedure,
			opts...,
		),
		listFriendBalances: connect.NewClient[api.ListFriendBalancesRequest, api.ListFriendBalancesResponse](
			httpClient,
			baseURL+BalanceServiceListFriendBalancesProcedure,
			opts...,
		),
		getGroupBalance: connect.NewClient[api.GetGroupBalanceRequest, api.GetGroupBalanceResponse](
			httpClient,
			baseURL+BalanceServiceGetGroupBalanceProcedure,
			opts...,
		),
	}
}

type balanceServiceClient struct {
	getFriendBalance   *connect.Client[api.GetFriendBalanceRequest, api.GetFriendBalanceResponse]
	listFriendBalances *connect.Client[api.ListFriendBalancesRequest, api.ListFriendBalancesResponse]
	getGroupBalance    *connect.Client[api.GetGroupBalanceRequest, api.GetGroupBalanceResponse]
}

func (c *balanceServiceClient) GetFriendBalance(ctx context.Context, req *connect.Request[api.GetFriendBalanceRequest]) (*connect.Response[api.GetFriendBalanceResponse], error) {
	return c.getFriendBalance.CallUnary(ctx, req)
}

func (c *balanceServiceClient) ListFriendBalances(ctx context.Context, req *connect.Request[api.ListFriendBalancesRequest]) (*connect.Response[api.ListFriendBalancesResponse], error) {
	return c.listFriendBalances.CallUnary(ctx, req)
}

func (c *balanceServiceClient) GetGroupBalance(ctx context.Context, req *connect.Request[api.GetGroupBalanceRequest]) (*connect.Response[api.GetGroupBalanceResponse], error) {
	return c.getGroupBalance.CallUnary(ctx, req)
}

// BalanceServiceHandler is implemented by the splitledger.v1.BalanceService service.
type BalanceServiceHandler interface {
	GetFriendBalance(context.Context, *connect.Request[api.GetFriendBalanceRequest]) (*connect.Response[api.GetFriendBalanceResponse], error)
	ListFriendBalances(context.Context, *connect.Request[api.ListFriendBalancesRequest]) (*connect.Response[api.ListFriendBalancesResponse], error)
	GetGroupBalance(context.Context, *connect.Request[api.GetGroupBalanceRequest]) (*connect.Response[api.GetGroupBalanceResponse], error)
}

// NewBalanceServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewBalanceServiceHandler(svc BalanceServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	getFriendBalanceHandler := connect.NewUnaryHandler(
		BalanceServiceGetFriendBalanceProcedure,
		svc.GetFriendBalance,
		opts...,
	)
	listFriendBalancesHandler := connect.NewUnaryHandler(
		BalanceServiceListFriendBalancesProcedure,
		svc.ListFriendBalances,
		opts...,
	)
	getGroupBalanceHandler := connect.NewUnaryHandler(
		BalanceServiceGetGroupBalanceProcedure,
		svc.GetGroupBalance,
		opts...,
	)
	return "/splitledger.v1.BalanceService/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case BalanceServiceGetFriendBalanceProcedure:
			getFriendBalanceHandler.ServeHTTP(w, r)
		case BalanceServiceListFriendBalancesProcedure:
			listFriendBalancesHandler.ServeHTTP(w, r)
		case BalanceServiceGetGroupBalanceProcedure:
			getGroupBalanceHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// UnimplementedBalanceServiceHandler returns CodeUnimplemented from all methods.
type UnimplementedBalanceServiceHandler struct{}

func (UnimplementedBalanceServiceHandler) GetFriendBalance(context.Context, *connect.Request[api.GetFriendBalanceRequest]) (*connect.Response[api.GetFriendBalanceResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitledger.v1.BalanceService.GetFriendBalance is not implemented"))
}

func (UnimplementedBalanceServiceHandler) ListFriendBalances(context.Context, *connect.Request[api.ListFriendBalancesRequest]) (*connect.Response[api.ListFriendBalancesResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitledger.v1.BalanceService.ListFriendBalances is not implemented"))
}

func (UnimplementedBalanceServiceHandler) GetGroupBalance(context.Context, *connect.Request[api.GetGroupBalanceRequest]) (*connect.Response[api.GetGroupBalanceResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitledger.v1.BalanceService.GetGroupBalance is not implemented"))
}
