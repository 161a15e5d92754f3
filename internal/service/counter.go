// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"math"

	"github.com/jackc/pgx/v5"

	"gacha-bot/internal/model"
	"gacha-bot/internal/pkg/db"
	"gacha-bot/internal/repository"
)

// MaxBalance is the largest value a balance column (INTEGER) holds.
const MaxBalance = math.MaxInt32

// Balance errors.
var (
	ErrInvalidBalance  = errors.New("balance outside the allowed range")
	ErrBalanceOverflow = errors.New("balance would exceed the maximum")
)

// OpRecorder counts balance operations. *metrics.Metrics satisfies it.
type OpRecorder interface {
	BalanceOp(table, op, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) BalanceOp(string, string, string) {}

// CounterConfig parameterizes a keyed counter.
type CounterConfig struct {
	Table   repository.CounterTable
	Default int64
	Floor   int64
}

// Counter is a per-(user, chat) integer balance. Rows are materialized with
// the default on first access, and every operation locks the row for the
// duration of its transaction.
type Counter struct {
	db    db.TxBeginner
	repo  *repository.CounterRepository
	def   int64
	floor int64
	rec   OpRecorder
}

// NewCounter creates a Counter over pool.
func NewCounter(pool db.Conn, cfg CounterConfig, rec OpRecorder) *Counter {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Counter{
		db:    pool,
		repo:  repository.NewCounterRepository(pool, cfg.Table),
		def:   cfg.Default,
		floor: cfg.Floor,
		rec:   rec,
	}
}

// Default returns the balance materialized for absent rows.
func (c *Counter) Default() int64 {
	return c.def
}

// Get returns the balance, creating the row with the default if needed.
func (c *Counter) Get(ctx context.Context, key model.BalanceKey) (int64, error) {
	var balance int64
	err := db.WithTx(ctx, c.db, func(tx pgx.Tx) error {
		var err error
		balance, err = c.GetTx(ctx, tx, key)
		return err
	})
	return balance, err
}

// GetTx is Get inside an existing transaction.
func (c *Counter) GetTx(ctx context.Context, tx pgx.Tx, key model.BalanceKey) (int64, error) {
	balance, err := c.load(ctx, c.repo.WithTx(tx), key)
	if err != nil {
		return 0, err
	}
	c.rec.BalanceOp(c.table(), "get", "ok")
	return balance, nil
}

// Increment adds amount and returns the new balance. Non-positive amounts
// change nothing and return the current balance.
func (c *Counter) Increment(ctx context.Context, key model.BalanceKey, amount int64) (int64, error) {
	var balance int64
	err := db.WithTx(ctx, c.db, func(tx pgx.Tx) error {
		var err error
		balance, err = c.IncrementTx(ctx, tx, key, amount)
		return err
	})
	return balance, err
}

// IncrementTx is Increment inside an existing transaction.
func (c *Counter) IncrementTx(ctx context.Context, tx pgx.Tx, key model.BalanceKey, amount int64) (int64, error) {
	repo := c.repo.WithTx(tx)
	current, err := c.load(ctx, repo, key)
	if err != nil {
		return 0, err
	}
	next, err := applyIncrement(current, amount)
	if err != nil {
		c.rec.BalanceOp(c.table(), "increment", "overflow")
		return current, err
	}
	if next == current {
		c.rec.BalanceOp(c.table(), "increment", "noop")
		return current, nil
	}
	if err := repo.Set(ctx, key, next); err != nil {
		return 0, err
	}
	c.rec.BalanceOp(c.table(), "increment", "ok")
	return next, nil
}

// Decrement subtracts amount. When the balance would drop below the floor it
// returns ok=false and the unchanged balance; that is an outcome, not an error.
func (c *Counter) Decrement(ctx context.Context, key model.BalanceKey, amount int64) (balance int64, ok bool, err error) {
	err = db.WithTx(ctx, c.db, func(tx pgx.Tx) error {
		balance, ok, err = c.DecrementTx(ctx, tx, key, amount)
		return err
	})
	return balance, ok, err
}

// DecrementTx is Decrement inside an existing transaction.
func (c *Counter) DecrementTx(ctx context.Context, tx pgx.Tx, key model.BalanceKey, amount int64) (int64, bool, error) {
	repo := c.repo.WithTx(tx)
	current, err := c.load(ctx, repo, key)
	if err != nil {
		return 0, false, err
	}
	next, ok := applyDecrement(current, amount, c.floor)
	if !ok {
		c.rec.BalanceOp(c.table(), "decrement", "insufficient")
		return current, false, nil
	}
	if next != current {
		if err := repo.Set(ctx, key, next); err != nil {
			return 0, false, err
		}
	}
	c.rec.BalanceOp(c.table(), "decrement", "ok")
	return next, true, nil
}

// SetAll overwrites every existing balance and returns the number of rows changed.
// balance must lie between the floor and MaxBalance.
func (c *Counter) SetAll(ctx context.Context, balance int64) (int64, error) {
	if balance < c.floor || balance > MaxBalance {
		return 0, ErrInvalidBalance
	}
	var n int64
	err := db.WithTx(ctx, c.db, func(tx pgx.Tx) error {
		var err error
		n, err = c.repo.WithTx(tx).SetAll(ctx, balance)
		return err
	})
	if err != nil {
		return 0, err
	}
	c.rec.BalanceOp(c.table(), "set_all", "ok")
	return n, nil
}

func (c *Counter) load(ctx context.Context, repo *repository.CounterRepository, key model.BalanceKey) (int64, error) {
	if _, err := repo.Ensure(ctx, key, c.def); err != nil {
		return 0, err
	}
	return repo.GetForUpdate(ctx, key)
}

func (c *Counter) table() string {
	return c.repo.Table().Table
}

// applyIncrement returns the balance after adding amount; amount <= 0 is a no-op.
// A result above MaxBalance is rejected with ErrBalanceOverflow.
func applyIncrement(balance, amount int64) (int64, error) {
	if amount <= 0 {
		return balance, nil
	}
	if amount > MaxBalance-balance {
		return balance, ErrBalanceOverflow
	}
	return balance + amount, nil
}

// applyDecrement returns the balance after removing amount and whether the
// removal was allowed. amount <= 0 is an allowed no-op.
func applyDecrement(balance, amount, floor int64) (int64, bool) {
	if amount <= 0 {
		return balance, true
	}
	if balance-amount < floor {
		return balance, false
	}
	return balance - amount, true
}
