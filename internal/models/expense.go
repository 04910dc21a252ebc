package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// NonGroupID is the reserved GroupID for direct friend-to-friend expenses.
const NonGroupID = "nonGroup"

// IsNonGroup reports whether groupID denotes a non-group expense.
func IsNonGroup(groupID string) bool {
	return groupID == "" || groupID == NonGroupID
}

// ExpenseType tags what kind of money movement an expense records.
type ExpenseType string

const (
	// ExpenseTypeExpense is a shared cost split among participants.
	ExpenseTypeExpense ExpenseType = "EXPENSE"
	// ExpenseTypePayment is a direct settle-up transfer between two users.
	ExpenseTypePayment ExpenseType = "PAYMENT"
	// ExpenseTypeUnknown is any tag that could not be parsed.
	ExpenseTypeUnknown ExpenseType = "UNKNOWN"
)

// ParseExpenseType maps a stored tag onto ExpenseType. Matching is
// case-insensitive and an empty tag means a plain expense.
func ParseExpenseType(s string) ExpenseType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(ExpenseTypeExpense):
		return ExpenseTypeExpense
	case string(ExpenseTypePayment):
		return ExpenseTypePayment
	default:
		return ExpenseTypeUnknown
	}
}

// SplitMethod selects how a total is divided among participants.
type SplitMethod string

const (
	// SplitEqually divides the total evenly among active participants.
	SplitEqually SplitMethod = "EQUALLY"
	// SplitUnequally takes each participant's exact amount from SplitValue.
	SplitUnequally SplitMethod = "UNEQUALLY"
	// SplitPercentages reads SplitValue as a percentage of the total.
	SplitPercentages SplitMethod = "PERCENTAGES"
	// SplitShares reads SplitValue as a share count weighting the total.
	SplitShares SplitMethod = "SHARES"
	// SplitUnknown is any method that could not be parsed. It splits nothing.
	SplitUnknown SplitMethod = "UNKNOWN"
)

// ParseSplitMethod maps a stored or user-supplied tag onto SplitMethod.
// An empty tag means an equal split.
func ParseSplitMethod(s string) SplitMethod {
	switch m := SplitMethod(strings.ToUpper(strings.TrimSpace(s))); m {
	case "":
		return SplitEqually
	case SplitEqually, SplitUnequally, SplitPercentages, SplitShares:
		return m
	default:
		return SplitUnknown
	}
}

// Payment is one payer's contribution to an expense.
type Payment struct {
	UserID string
	Amount float64
}

// Share is one participant's owed portion of an expense.
type Share struct {
	UserID string
	Amount float64
}

// Participant is the transient input of a split calculation.
type Participant struct {
	// UserID identifies the participant.
	UserID string

	// Active marks whether the participant takes part in this split.
	Active bool

	// SplitValue is the raw number the user entered: an exact amount,
	// a percentage (0-100) or a share count depending on the split method.
	SplitValue string

	// OwesAmount is the computed share, rounded to cents.
	OwesAmount float64
}

// Expense is a shared cost or settle-up payment.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// GroupID references a Group, or NonGroupID for friend-to-friend records.
	GroupID string

	// Type decides the balance semantics of the record.
	Type ExpenseType

	// TotalAmount is the full amount of the expense in currency units.
	TotalAmount float64

	// PaidBy lists who fronted money and how much, in entry order.
	PaidBy []Payment

	// Participants lists who is responsible for how much, in entry order.
	Participants []Share

	// SplitMethod records how Participants were computed. Informational only.
	SplitMethod SplitMethod

	CreatedByUID string
	Date         time.Time
	Memo         string
	ImageURLs    []string
}

// Involves reports whether userID appears as a payer or participant.
func (e Expense) Involves(userID string) bool {
	for _, p := range e.PaidBy {
		if p.UserID == userID {
			return true
		}
	}
	for _, s := range e.Participants {
		if s.UserID == userID {
			return true
		}
	}
	return false
}

// UserIDs returns every distinct user referenced by the expense, payers first.
func (e Expense) UserIDs() []string {
	seen := make(map[string]bool, len(e.PaidBy)+len(e.Participants))
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, p := range e.PaidBy {
		add(p.UserID)
	}
	for _, s := range e.Participants {
		add(s.UserID)
	}
	return ids
}

var (
	ErrNonPositiveTotal   = errors.New("total amount must be positive")
	ErrNoPayer            = errors.New("at least one payer is required")
	ErrNegativeAmount     = errors.New("amounts cannot be negative")
	ErrMissingUser        = errors.New("user id is required for every payer and participant")
	ErrUnknownExpenseType = errors.New("unknown expense type")
	ErrUnknownSplitMethod = errors.New("unknown split method")
	ErrPaymentShape       = errors.New("a payment needs exactly one payer and one different participant")
	ErrPaidMismatch       = errors.New("paid amounts must add up to the total")
	ErrOwedMismatch       = errors.New("participant shares must add up to the total")
)

// amountTolerance is how far paid and owed sums may drift from the total before
// Validate rejects an expense.
const amountTolerance = 0.01

// Validate checks an expense before it is persisted. The balance engine
// itself tolerates everything Validate rejects.
func (e Expense) Validate() error {
	if e.Type == ExpenseTypeUnknown {
		return ErrUnknownExpenseType
	}
	if e.SplitMethod == SplitUnknown {
		return ErrUnknownSplitMethod
	}
	if e.TotalAmount <= 0 {
		return ErrNonPositiveTotal
	}
	if len(e.PaidBy) == 0 {
		return ErrNoPayer
	}

	var paid float64
	for _, p := range e.PaidBy {
		if p.UserID == "" {
			return ErrMissingUser
		}
		if p.Amount < 0 {
			return ErrNegativeAmount
		}
		paid += p.Amount
	}
	var owed float64
	for _, s := range e.Participants {
		if s.UserID == "" {
			return ErrMissingUser
		}
		if s.Amount < 0 {
			return ErrNegativeAmount
		}
		owed += s.Amount
	}
	if math.Abs(paid-e.TotalAmount) > amountTolerance {
		return fmt.Errorf("%w: paid %.2f, total %.2f", ErrPaidMismatch, paid, e.TotalAmount)
	}
	if math.Abs(owed-e.TotalAmount) > amountTolerance {
		return fmt.Errorf("%w: owed %.2f, total %.2f", ErrOwedMismatch, owed, e.TotalAmount)
	}

	if e.Type == ExpenseTypePayment {
		if len(e.PaidBy) != 1 || len(e.Participants) != 1 || e.PaidBy[0].UserID == e.Participants[0].UserID {
			return ErrPaymentShape
		}
	}
	return nil
}
