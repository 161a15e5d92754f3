package migrate

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execStep(rev, down, stmt string) Step {
	return Step{
		Revision:     rev,
		DownRevision: down,
		Description:  "test " + rev,
		Up: func(ctx context.Context, s *Scope) error {
			_, err := s.Exec(ctx, stmt)
			return err
		},
		Down: func(ctx context.Context, s *Scope) error {
			_, err := s.Exec(ctx, "DROP "+stmt)
			return err
		},
	}
}

func newMockRunner(t *testing.T, opts Options, steps ...Step) (*Runner, sqlmock.Sqlmock, *[]string) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	l, err := NewLedger(steps...)
	require.NoError(t, err)

	var observed []string
	r := NewRunner(db, l, opts, func(rev, dir string, _ time.Duration, err error) {
		entry := rev + ":" + dir
		if err != nil {
			entry += ":error"
		}
		observed = append(observed, entry)
	})
	return r, mock, &observed
}

func expectCurrent(mock sqlmock.Sqlmock, rev string) {
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_revision")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	rows := sqlmock.NewRows([]string{"version_num"})
	if rev != "" {
		rows.AddRow(rev)
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version_num FROM schema_revision")).WillReturnRows(rows)
}

func expectVersion(mock sqlmock.Sqlmock, rev string) {
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM schema_revision")).WillReturnResult(sqlmock.NewResult(0, 1))
	if rev != "" {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_revision")).
			WithArgs(rev).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
}

func TestRunner_UpgradeAppliesEachStepInItsOwnTransaction(t *testing.T) {
	r, mock, observed := newMockRunner(t, Options{},
		execStep("0001", "", "TABLE a"),
		execStep("0002", "0001", "TABLE b"),
	)

	expectCurrent(mock, "")
	mock.ExpectBegin()
	mock.ExpectExec("TABLE a").WillReturnResult(sqlmock.NewResult(0, 0))
	expectVersion(mock, "0001")
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("TABLE b").WillReturnResult(sqlmock.NewResult(0, 0))
	expectVersion(mock, "0002")
	mock.ExpectCommit()

	require.NoError(t, r.Upgrade(context.Background(), Head))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, []string{"0001:up", "0002:up"}, *observed)
}

func TestRunner_UpgradeSkipsAppliedSteps(t *testing.T) {
	r, mock, _ := newMockRunner(t, Options{},
		execStep("0001", "", "TABLE a"),
		execStep("0002", "0001", "TABLE b"),
	)

	expectCurrent(mock, "0001")
	mock.ExpectBegin()
	mock.ExpectExec("TABLE b").WillReturnResult(sqlmock.NewResult(0, 0))
	expectVersion(mock, "0002")
	mock.ExpectCommit()

	require.NoError(t, r.Upgrade(context.Background(), Head))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunner_UpgradeAtHeadIsNoop(t *testing.T) {
	r, mock, observed := newMockRunner(t, Options{}, execStep("0001", "", "TABLE a"))

	expectCurrent(mock, "0001")

	require.NoError(t, r.Upgrade(context.Background(), Head))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Empty(t, *observed)
}

func TestRunner_FailedStepRollsBackAndStops(t *testing.T) {
	r, mock, observed := newMockRunner(t, Options{},
		execStep("0001", "", "TABLE a"),
		execStep("0002", "0001", "TABLE b"),
	)
	boom := errors.New("syntax error")

	expectCurrent(mock, "")
	mock.ExpectBegin()
	mock.ExpectExec("TABLE a").WillReturnError(boom)
	mock.ExpectRollback()

	err := r.Upgrade(context.Background(), Head)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "revision 0001")
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, []string{"0001:up:error"}, *observed)
}

func TestRunner_DowngradeToBaseClearsVersion(t *testing.T) {
	r, mock, observed := newMockRunner(t, Options{},
		execStep("0001", "", "TABLE a"),
		execStep("0002", "0001", "TABLE b"),
	)

	expectCurrent(mock, "0002")
	mock.ExpectBegin()
	mock.ExpectExec("DROP TABLE b").WillReturnResult(sqlmock.NewResult(0, 0))
	expectVersion(mock, "0001")
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("DROP TABLE a").WillReturnResult(sqlmock.NewResult(0, 0))
	expectVersion(mock, "")
	mock.ExpectCommit()

	require.NoError(t, r.Downgrade(context.Background(), Base))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, []string{"0002:down", "0001:down"}, *observed)
}

func TestRunner_History(t *testing.T) {
	r, mock, _ := newMockRunner(t, Options{},
		execStep("0001", "", "TABLE a"),
		execStep("0002", "0001", "TABLE b"),
		execStep("0003", "0002", "TABLE c"),
	)

	expectCurrent(mock, "0002")

	h, err := r.History(context.Background())
	require.NoError(t, err)
	require.Len(t, h, 3)
	assert.True(t, h[0].Applied)
	assert.True(t, h[1].Applied)
	assert.True(t, h[1].Current)
	assert.False(t, h[2].Applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func newMockScope(t *testing.T, opts Options) (*Scope, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectBegin()
	tx, err := db.Begin()
	require.NoError(t, err)
	return &Scope{tx: tx, opts: opts}, mock
}

func TestClaimsPerChat_FailsFastWithoutDefaultChat(t *testing.T) {
	s, mock := newMockScope(t, Options{})

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM claims")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	err := rev0003ClaimsPerChat.Up(context.Background(), s)
	assert.ErrorIs(t, err, ErrMissingDefaultChat)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimsPerChat_EmptyTableNeedsNoDefault(t *testing.T) {
	s, mock := newMockScope(t, Options{})

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM claims")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE IF EXISTS _claims_new CASCADE")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE _claims_new")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO _claims_new (user_id, chat_id, balance)")).
		WithArgs("").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE claims")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE _claims_new RENAME TO claims")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE claims RENAME CONSTRAINT _claims_new_pkey TO claims_pkey")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX IF NOT EXISTS idx_claims_chat ON claims (chat_id)")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, rev0003ClaimsPerChat.Up(context.Background(), s))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimsPerChat_DowngradeCollapsesWithMax(t *testing.T) {
	s, mock := newMockScope(t, Options{})

	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE IF EXISTS _claims_new CASCADE")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE _claims_new")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("SELECT user_id, MAX(balance) FROM claims GROUP BY user_id")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE claims")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE _claims_new RENAME TO claims")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("RENAME CONSTRAINT _claims_new_pkey TO claims_pkey")).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, rev0003ClaimsPerChat.Down(context.Background(), s))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefaultChatFor(t *testing.T) {
	s, mock := newMockScope(t, Options{DefaultGroupChatID: "-100123"})

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE last_roll_time IS NOT NULL")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	chatID, err := s.DefaultChatFor(context.Background(), "users", "last_roll_time IS NOT NULL")
	require.NoError(t, err)
	assert.Equal(t, "-100123", chatID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
