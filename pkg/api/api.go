// Package api defines the splitledger.v1 RPC messages.
//
// Messages are plain structs exchanged as JSON over the Connect protocol;
// see package apiconnect for handlers and clients. Money is a float64 in
// currency units, rounded to cents by the server. Times are Unix
// milliseconds.
package api

import "encoding/json"

// JSONCodec is the Connect codec for the messages in this package. It
// registers under the name "json", so requests use Content-Type
// application/json.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// User is the public part of an account.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName"`
	CreatedAt   int64  `json:"createdAt,omitempty"`
}

// --- AuthService ---

type RegisterRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

type RegisterResponse struct {
	User      User   `json:"user"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User      User   `json:"user"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

type GetCurrentUserRequest struct{}

type GetCurrentUserResponse struct {
	User User `json:"user"`
}

// --- SplitService ---

// SplitParticipant is one row of a split form. SplitValue is the raw text
// the user typed: an amount, a percentage or a share count depending on
// the split method.
type SplitParticipant struct {
	UserID     string  `json:"userId"`
	Active     bool    `json:"active"`
	SplitValue string  `json:"splitValue,omitempty"`
	OwesAmount float64 `json:"owesAmount"`
}

type ComputeSplitRequest struct {
	TotalAmount  float64            `json:"totalAmount"`
	SplitMethod  string             `json:"splitMethod"`
	Participants []SplitParticipant `json:"participants"`
}

type ComputeSplitResponse struct {
	SplitMethod  string             `json:"splitMethod"`
	Participants []SplitParticipant `json:"participants"`
}

// --- ExpenseService ---

type Payment struct {
	UserID string  `json:"userId"`
	Amount float64 `json:"amount"`
}

type Share struct {
	UserID string  `json:"userId"`
	Amount float64 `json:"amount"`
}

type Expense struct {
	ID           string    `json:"id"`
	GroupID      string    `json:"groupId"`
	Type         string    `json:"type"`
	TotalAmount  float64   `json:"totalAmount"`
	PaidBy       []Payment `json:"paidBy"`
	Participants []Share   `json:"participants"`
	SplitMethod  string    `json:"splitMethod"`
	CreatedBy    string    `json:"createdBy"`
	Date         int64     `json:"date"`
	Memo         string    `json:"memo,omitempty"`
	ImageURLs    []string  `json:"imageUrls,omitempty"`
}

// ExpenseInput is the editable part of an expense. Participants are split
// with SplitMethod before the expense is stored.
type ExpenseInput struct {
	GroupID      string             `json:"groupId,omitempty"`
	Type         string             `json:"type,omitempty"`
	TotalAmount  float64            `json:"totalAmount"`
	PaidBy       []Payment          `json:"paidBy"`
	SplitMethod  string             `json:"splitMethod,omitempty"`
	Participants []SplitParticipant `json:"participants"`
	Date         int64              `json:"date,omitempty"`
	Memo         string             `json:"memo,omitempty"`
	ImageURLs    []string           `json:"imageUrls,omitempty"`
}

type CreateExpenseRequest struct {
	Expense ExpenseInput `json:"expense"`
}

type CreateExpenseResponse struct {
	Expense Expense `json:"expense"`
}

type UpdateExpenseRequest struct {
	ID      string       `json:"id"`
	Expense ExpenseInput `json:"expense"`
}

type UpdateExpenseResponse struct {
	Expense Expense `json:"expense"`
}

type DeleteExpenseRequest struct {
	ID string `json:"id"`
}

type DeleteExpenseResponse struct{}

type GetExpenseRequest struct {
	ID string `json:"id"`
}

type GetExpenseResponse struct {
	Expense Expense `json:"expense"`
}

// ListExpensesRequest selects a group's expenses when GroupID is set, the
// expenses shared with one friend when FriendID is set, and otherwise every
// expense of the caller.
type ListExpensesRequest struct {
	GroupID  string `json:"groupId,omitempty"`
	FriendID string `json:"friendId,omitempty"`
}

type ListExpensesResponse struct {
	Expenses []Expense `json:"expenses"`
}

// SettleUpRequest records a payment from the caller to FriendID. An empty
// GroupID settles outside any group.
type SettleUpRequest struct {
	FriendID string  `json:"friendId"`
	Amount   float64 `json:"amount"`
	GroupID  string  `json:"groupId,omitempty"`
	Memo     string  `json:"memo,omitempty"`
}

type SettleUpResponse struct {
	Payment Expense `json:"payment"`
}

// --- GroupService ---

type Group struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Members   []User `json:"members"`
	CreatedAt int64  `json:"createdAt"`
}

// CreateGroupRequest creates a group. The caller is always a member.
type CreateGroupRequest struct {
	Name      string   `json:"name"`
	MemberIDs []string `json:"memberIds,omitempty"`
}

type CreateGroupResponse struct {
	Group Group `json:"group"`
}

type GetGroupRequest struct {
	GroupID string `json:"groupId"`
}

type GetGroupResponse struct {
	Group Group `json:"group"`
}

type ListGroupsRequest struct{}

type ListGroupsResponse struct {
	Groups []Group `json:"groups"`
}

type AddMembersRequest struct {
	GroupID   string   `json:"groupId"`
	MemberIDs []string `json:"memberIds"`
}

type AddMembersResponse struct {
	Group Group `json:"group"`
}

// --- BalanceService ---

// BalanceEntry is one context contributing to a balance: a group, the
// non-group bucket, or a group member.
type BalanceEntry struct {
	ContextID string  `json:"contextId"`
	Label     string  `json:"label"`
	Amount    float64 `json:"amount"`
}

// FriendBalance is positive when the friend owes the caller.
type FriendBalance struct {
	Friend    User           `json:"friend"`
	Net       float64        `json:"net"`
	Breakdown []BalanceEntry `json:"breakdown"`
}

// GroupBalance is positive when the group owes the caller.
type GroupBalance struct {
	GroupID   string         `json:"groupId"`
	Name      string         `json:"name"`
	Net       float64        `json:"net"`
	Breakdown []BalanceEntry `json:"breakdown"`
}

type GetFriendBalanceRequest struct {
	FriendID string `json:"friendId"`
}

type GetFriendBalanceResponse struct {
	Balance FriendBalance `json:"balance"`
}

type ListFriendBalancesRequest struct {
	// IncludeSettled also returns friends with a zero balance.
	IncludeSettled bool `json:"includeSettled,omitempty"`
}

type ListFriendBalancesResponse struct {
	Balances   []FriendBalance `json:"balances"`
	TotalOwed  float64         `json:"totalOwed"`
	TotalOwing float64         `json:"totalOwing"`
}

type GetGroupBalanceRequest struct {
	GroupID string `json:"groupId"`
}

type GetGroupBalanceResponse struct {
	Balance GroupBalance `json:"balance"`
}
