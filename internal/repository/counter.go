// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"gacha-bot/internal/model"
	"gacha-bot/internal/pkg/db"
)

// CounterTable describes a balance table keyed by (user_id, chat_id).
// Table and Column are compile-time identifiers, never user input.
type CounterTable struct {
	Table  string
	Column string
}

// Balance tables.
var (
	ClaimsTable    = CounterTable{Table: "claims", Column: "balance"}
	SpinsTable     = CounterTable{Table: "spins", Column: "count"}
	MegaspinsTable = CounterTable{Table: "megaspins", Column: "count"}
)

// CounterRepository reads and writes one balance table.
type CounterRepository struct {
	q     db.Querier
	table CounterTable
}

// NewCounterRepository creates a CounterRepository over q.
func NewCounterRepository(q db.Querier, table CounterTable) *CounterRepository {
	return &CounterRepository{q: q, table: table}
}

// WithTx returns a copy bound to tx.
func (r *CounterRepository) WithTx(tx pgx.Tx) *CounterRepository {
	return &CounterRepository{q: tx, table: r.table}
}

// Table returns the table description.
func (r *CounterRepository) Table() CounterTable {
	return r.table
}

// Ensure inserts the row with def if it does not exist. It reports whether a row was created.
func (r *CounterRepository) Ensure(ctx context.Context, key model.BalanceKey, def int64) (bool, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, chat_id, %s)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, chat_id) DO NOTHING
	`, r.table.Table, r.table.Column)

	tag, err := r.q.Exec(ctx, query, key.UserID, key.ChatID, def)
	if err != nil {
		return false, fmt.Errorf("failed to ensure %s row: %w", r.table.Table, err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetForUpdate reads the balance and locks the row until the transaction ends.
// Outside a transaction the lock is released immediately.
func (r *CounterRepository) GetForUpdate(ctx context.Context, key model.BalanceKey) (int64, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE user_id = $1 AND chat_id = $2
		FOR UPDATE
	`, r.table.Column, r.table.Table)

	var balance int64
	if err := r.q.QueryRow(ctx, query, key.UserID, key.ChatID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", r.table.Table, err)
	}
	return balance, nil
}

// Set overwrites one balance.
func (r *CounterRepository) Set(ctx context.Context, key model.BalanceKey, balance int64) error {
	query := fmt.Sprintf(`
		UPDATE %s SET %s = $3
		WHERE user_id = $1 AND chat_id = $2
	`, r.table.Table, r.table.Column)

	if _, err := r.q.Exec(ctx, query, key.UserID, key.ChatID, balance); err != nil {
		return fmt.Errorf("failed to set %s: %w", r.table.Table, err)
	}
	return nil
}

// SetAll overwrites every balance in the table and returns the number of rows changed.
func (r *CounterRepository) SetAll(ctx context.Context, balance int64) (int64, error) {
	query := fmt.Sprintf(`UPDATE %s SET %s = $1`, r.table.Table, r.table.Column)

	tag, err := r.q.Exec(ctx, query, balance)
	if err != nil {
		return 0, fmt.Errorf("failed to set all %s: %w", r.table.Table, err)
	}
	return tag.RowsAffected(), nil
}
