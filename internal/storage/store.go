// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/splitledger/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Snapshot is a full, immutable view of every record touching one user.
// Consumers must not modify it.
type Snapshot struct {
	// Seq increases with every snapshot the store produces. A higher Seq
	// always reflects the same or a later database state.
	Seq uint64

	// UserID is the user the snapshot was taken for.
	UserID string

	// Expenses are all expenses involving the user, plus every expense of
	// the groups the user belongs to.
	Expenses []models.Expense

	// Groups are the groups the user belongs to.
	Groups []models.Group
}

// Subscription is a live registration returned by Feed.Subscribe.
type Subscription interface {
	// Unsubscribe stops further deliveries. It is safe to call more than once.
	Unsubscribe()
}

// Feed delivers snapshots whenever data touching a user changes.
type Feed interface {
	// Subscribe registers fn for userID. The current snapshot is delivered
	// before Subscribe returns; later ones follow every relevant write.
	// Deliveries may overlap; consumers resolve them by Seq.
	Subscribe(ctx context.Context, userID string, fn func(Snapshot)) (Subscription, error)
}

// ExpenseStore persists expenses.
type ExpenseStore interface {
	// CreateExpense persists a new expense. ID and Date are filled in if empty.
	CreateExpense(ctx context.Context, e *models.Expense) error

	// GetExpense retrieves an expense by ID. Returns ErrNotFound if missing.
	GetExpense(ctx context.Context, id string) (*models.Expense, error)

	// UpdateExpense replaces an existing expense. Returns ErrNotFound if missing.
	UpdateExpense(ctx context.Context, e *models.Expense) error

	// DeleteExpense removes an expense. Returns ErrNotFound if missing.
	DeleteExpense(ctx context.Context, id string) error

	// ListExpensesByGroup returns a group's expenses, newest first.
	ListExpensesByGroup(ctx context.Context, groupID string) ([]models.Expense, error)

	// ListExpensesForUser returns every expense the user takes part in, newest first.
	ListExpensesForUser(ctx context.Context, userID string) ([]models.Expense, error)
}

// GroupStore persists groups and their membership.
type GroupStore interface {
	CreateGroup(ctx context.Context, g *models.Group) error
	GetGroup(ctx context.Context, id string) (*models.Group, error)
	ListGroupsForUser(ctx context.Context, userID string) ([]models.Group, error)
	AddGroupMembers(ctx context.Context, groupID string, userIDs []string) error
}

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
}

// Store is everything the service layer needs from a storage backend.
// This abstraction allows swapping storage backends without changing the
// service layer.
type Store interface {
	ExpenseStore
	GroupStore
	UserStore
	Feed

	// Close releases any resources held by the store.
	Close() error
}
