package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

const expenseColumns = "id, group_id, expense_type, total_amount, split_method, created_by, date, memo"

// CreateExpense persists a new expense with its payers, participants and images.
func (s *SQLiteStore) CreateExpense(ctx context.Context, e *models.Expense) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Date.IsZero() {
		e.Date = time.Now()
	}
	if e.GroupID == "" {
		e.GroupID = models.NonGroupID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO expenses ("+expenseColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		e.ID, e.GroupID, string(e.Type), e.TotalAmount, string(e.SplitMethod),
		e.CreatedByUID, e.Date.UnixMilli(), e.Memo,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}
	if err := insertExpenseChildren(ctx, tx, e); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.hub.Publish(ctx, s.affectedUsers(ctx, e)...)
	return nil
}

// GetExpense retrieves an expense by ID.
func (s *SQLiteStore) GetExpense(ctx context.Context, id string) (*models.Expense, error) {
	expenses, err := s.queryExpenses(ctx, "SELECT "+expenseColumns+" FROM expenses WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(expenses) == 0 {
		return nil, fmt.Errorf("expense %s: %w", id, storage.ErrNotFound)
	}
	return &expenses[0], nil
}

// UpdateExpense replaces an existing expense, including its child rows.
func (s *SQLiteStore) UpdateExpense(ctx context.Context, e *models.Expense) error {
	previous, err := s.GetExpense(ctx, e.ID)
	if err != nil {
		return err
	}
	if e.GroupID == "" {
		e.GroupID = models.NonGroupID
	}
	if e.Date.IsZero() {
		e.Date = previous.Date
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE expenses SET group_id = ?, expense_type = ?, total_amount = ?, split_method = ?,
		 created_by = ?, date = ?, memo = ? WHERE id = ?`,
		e.GroupID, string(e.Type), e.TotalAmount, string(e.SplitMethod),
		e.CreatedByUID, e.Date.UnixMilli(), e.Memo, e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}

	for _, table := range []string{"expense_payers", "expense_participants", "expense_images"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE expense_id = ?", e.ID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	if err := insertExpenseChildren(ctx, tx, e); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	users := append(s.affectedUsers(ctx, previous), s.affectedUsers(ctx, e)...)
	s.hub.Publish(ctx, users...)
	return nil
}

// DeleteExpense removes an expense by ID.
func (s *SQLiteStore) DeleteExpense(ctx context.Context, id string) error {
	previous, err := s.GetExpense(ctx, id)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}

	s.hub.Publish(ctx, s.affectedUsers(ctx, previous)...)
	return nil
}

// ListExpensesByGroup retrieves all expenses of a group, newest first.
func (s *SQLiteStore) ListExpensesByGroup(ctx context.Context, groupID string) ([]models.Expense, error) {
	return s.queryExpenses(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE group_id = ? ORDER BY date DESC, id",
		groupID,
	)
}

// ListExpensesForUser retrieves every expense the user pays for or participates in.
func (s *SQLiteStore) ListExpensesForUser(ctx context.Context, userID string) ([]models.Expense, error) {
	return s.queryExpenses(ctx, `
		SELECT `+expenseColumns+` FROM expenses
		WHERE id IN (SELECT expense_id FROM expense_payers WHERE user_id = ?)
		   OR id IN (SELECT expense_id FROM expense_participants WHERE user_id = ?)
		ORDER BY date DESC, id`,
		userID, userID,
	)
}

// affectedUsers lists whose snapshots change when e changes: everyone on
// the expense plus, for group expenses, every member of the group.
func (s *SQLiteStore) affectedUsers(ctx context.Context, e *models.Expense) []string {
	users := e.UserIDs()
	if models.IsNonGroup(e.GroupID) {
		return users
	}
	group, err := s.GetGroup(ctx, e.GroupID)
	if err != nil {
		return users
	}
	return append(users, group.Members...)
}

func insertExpenseChildren(ctx context.Context, tx *sql.Tx, e *models.Expense) error {
	for i, p := range e.PaidBy {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO expense_payers (expense_id, position, user_id, amount) VALUES (?, ?, ?, ?)",
			e.ID, i, p.UserID, p.Amount,
		)
		if err != nil {
			return fmt.Errorf("failed to insert payer: %w", err)
		}
	}
	for i, share := range e.Participants {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO expense_participants (expense_id, position, user_id, amount) VALUES (?, ?, ?, ?)",
			e.ID, i, share.UserID, share.Amount,
		)
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}
	}
	for i, url := range e.ImageURLs {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO expense_images (expense_id, position, url) VALUES (?, ?, ?)",
			e.ID, i, url,
		)
		if err != nil {
			return fmt.Errorf("failed to insert image: %w", err)
		}
	}
	return nil
}

// queryExpenses runs a query selecting expenseColumns and loads the child
// rows of every result. The base rows are fully read before the child
// queries run, since the store holds a single connection.
func (s *SQLiteStore) queryExpenses(ctx context.Context, query string, args ...any) ([]models.Expense, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}

	var expenses []models.Expense
	for rows.Next() {
		var (
			e           models.Expense
			expenseType string
			splitMethod string
			date        int64
		)
		if err := rows.Scan(&e.ID, &e.GroupID, &expenseType, &e.TotalAmount, &splitMethod,
			&e.CreatedByUID, &date, &e.Memo); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		e.Type = models.ParseExpenseType(expenseType)
		e.SplitMethod = models.ParseSplitMethod(splitMethod)
		e.Date = time.UnixMilli(date)
		expenses = append(expenses, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	for i := range expenses {
		if err := s.loadExpenseChildren(ctx, &expenses[i]); err != nil {
			return nil, err
		}
	}
	return expenses, nil
}

func (s *SQLiteStore) loadExpenseChildren(ctx context.Context, e *models.Expense) error {
	payers, err := s.queryAmounts(ctx,
		"SELECT user_id, amount FROM expense_payers WHERE expense_id = ? ORDER BY position", e.ID)
	if err != nil {
		return fmt.Errorf("failed to get payers: %w", err)
	}
	for _, p := range payers {
		e.PaidBy = append(e.PaidBy, models.Payment{UserID: p.userID, Amount: p.amount})
	}

	shares, err := s.queryAmounts(ctx,
		"SELECT user_id, amount FROM expense_participants WHERE expense_id = ? ORDER BY position", e.ID)
	if err != nil {
		return fmt.Errorf("failed to get participants: %w", err)
	}
	for _, p := range shares {
		e.Participants = append(e.Participants, models.Share{UserID: p.userID, Amount: p.amount})
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT url FROM expense_images WHERE expense_id = ? ORDER BY position", e.ID)
	if err != nil {
		return fmt.Errorf("failed to get images: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return fmt.Errorf("failed to scan image: %w", err)
		}
		e.ImageURLs = append(e.ImageURLs, url)
	}
	return rows.Err()
}

type userAmount struct {
	userID string
	amount float64
}

func (s *SQLiteStore) queryAmounts(ctx context.Context, query, expenseID string) ([]userAmount, error) {
	rows, err := s.db.QueryContext(ctx, query, expenseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []userAmount
	for rows.Next() {
		var ua userAmount
		if err := rows.Scan(&ua.userID, &ua.amount); err != nil {
			return nil, err
		}
		out = append(out, ua)
	}
	return out, rows.Err()
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
