package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Direction of a step.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// Observer is notified after each step attempt.
type Observer func(revision, direction string, elapsed time.Duration, err error)

// Runner applies a ledger to a database.
type Runner struct {
	db       *sql.DB
	ledger   *Ledger
	opts     Options
	observer Observer
}

// NewRunner creates a Runner. observer may be nil.
func NewRunner(db *sql.DB, ledger *Ledger, opts Options, observer Observer) *Runner {
	return &Runner{db: db, ledger: ledger, opts: opts, observer: observer}
}

// Ledger returns the chain the runner applies.
func (r *Runner) Ledger() *Ledger {
	return r.ledger
}

// ensureVersionTable creates schema_revision if missing.
func (r *Runner) ensureVersionTable(ctx context.Context) error {
	const query = `CREATE TABLE IF NOT EXISTS schema_revision (version_num TEXT PRIMARY KEY)`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema_revision: %w", err)
	}
	return nil
}

// Current returns the last applied revision, or "" for an empty schema.
func (r *Runner) Current(ctx context.Context) (string, error) {
	if err := r.ensureVersionTable(ctx); err != nil {
		return "", err
	}
	var rev string
	err := r.db.QueryRowContext(ctx, `SELECT version_num FROM schema_revision LIMIT 1`).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read schema revision: %w", err)
	}
	return rev, nil
}

// Upgrade applies every step after the current revision up to target.
// target may be Head.
func (r *Runner) Upgrade(ctx context.Context, target string) error {
	current, err := r.Current(ctx)
	if err != nil {
		return err
	}
	path, err := r.ledger.UpgradePath(current, target)
	if err != nil {
		return err
	}
	if len(path) == 0 {
		log.Info().Str("revision", current).Msg("Schema is up to date")
		return nil
	}
	for _, st := range path {
		if err := r.apply(ctx, st, DirectionUp, st.Up, st.Revision); err != nil {
			return err
		}
	}
	return nil
}

// Downgrade reverts steps until target is the current revision. target may be Base.
func (r *Runner) Downgrade(ctx context.Context, target string) error {
	current, err := r.Current(ctx)
	if err != nil {
		return err
	}
	path, err := r.ledger.DowngradePath(current, target)
	if err != nil {
		return err
	}
	for _, st := range path {
		if err := r.apply(ctx, st, DirectionDown, st.Down, st.DownRevision); err != nil {
			return err
		}
	}
	return nil
}

// apply runs fn and moves the version row to next in one transaction.
func (r *Runner) apply(ctx context.Context, st Step, direction string, fn StepFunc, next string) (err error) {
	started := time.Now()
	defer func() {
		if r.observer != nil {
			r.observer(st.Revision, direction, time.Since(started), err)
		}
	}()

	logger := log.With().Str("revision", st.Revision).Str("direction", direction).Logger()
	logger.Info().Str("description", st.Description).Msg("Applying migration")

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("revision %s: begin: %w", st.Revision, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, &Scope{tx: tx, opts: r.opts}); err != nil {
		logger.Error().Err(err).Msg("Migration failed")
		return fmt.Errorf("revision %s %s: %w", st.Revision, direction, err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM schema_revision`); err != nil {
		return fmt.Errorf("revision %s: clear version: %w", st.Revision, err)
	}
	if next != "" {
		if _, err = tx.ExecContext(ctx, `INSERT INTO schema_revision (version_num) VALUES ($1)`, next); err != nil {
			return fmt.Errorf("revision %s: write version: %w", st.Revision, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("revision %s: commit: %w", st.Revision, err)
	}

	logger.Info().Dur("elapsed", time.Since(started)).Msg("Migration applied")
	return nil
}

// HistoryEntry is one revision with its applied state.
type HistoryEntry struct {
	Step    Step
	Applied bool
	Current bool
}

// History lists the chain from base to head, marking what is applied.
func (r *Runner) History(ctx context.Context) ([]HistoryEntry, error) {
	current, err := r.Current(ctx)
	if err != nil {
		return nil, err
	}
	applied, err := r.ledger.position(current)
	if err != nil {
		return nil, err
	}
	steps := r.ledger.Steps()
	out := make([]HistoryEntry, len(steps))
	for i, st := range steps {
		out[i] = HistoryEntry{Step: st, Applied: i < applied, Current: st.Revision == current}
	}
	return out, nil
}
