package migrate

import (
	"bytes"
	"context"
	"database/sql"
	"image/jpeg"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gacha-bot/internal/pkg/testpg"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("pgx", testpg.Start(t))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestRunner(t *testing.T, db *sql.DB, opts Options) *Runner {
	t.Helper()
	l, err := NewDefaultLedger()
	require.NoError(t, err)
	return NewRunner(db, l, opts, nil)
}

// snapshotSchema captures column names, types and primary keys per table.
func snapshotSchema(t *testing.T, db *sql.DB) map[string][]string {
	t.Helper()
	out := make(map[string][]string)

	rows, err := db.Query(`
		SELECT table_name, column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name <> 'schema_revision'
		ORDER BY table_name, column_name`)
	require.NoError(t, err)
	for rows.Next() {
		var table, column, dataType string
		require.NoError(t, rows.Scan(&table, &column, &dataType))
		out[table] = append(out[table], column+" "+dataType)
	}
	require.NoError(t, rows.Err())
	rows.Close()

	rows, err = db.Query(`
		SELECT tc.table_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = current_schema()
			AND tc.table_name <> 'schema_revision'
		ORDER BY tc.table_name, kcu.ordinal_position`)
	require.NoError(t, err)
	for rows.Next() {
		var table, column string
		require.NoError(t, rows.Scan(&table, &column))
		out[table] = append(out[table], "pk "+column)
	}
	require.NoError(t, rows.Err())
	rows.Close()

	return out
}

func TestMigrations_EachStepRoundTrips(t *testing.T) {
	db := openTestDB(t)
	r := newTestRunner(t, db, Options{DefaultGroupChatID: "-100"})
	ctx := context.Background()

	prev := Base
	for _, st := range r.Ledger().Steps() {
		before := snapshotSchema(t, db)

		require.NoError(t, r.Upgrade(ctx, st.Revision), "upgrade %s", st.Revision)
		require.NoError(t, r.Downgrade(ctx, prev), "downgrade %s", st.Revision)
		assert.Equal(t, before, snapshotSchema(t, db), "schema after %s round trip", st.Revision)

		require.NoError(t, r.Upgrade(ctx, st.Revision))
		current, err := r.Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, st.Revision, current)
		prev = st.Revision
	}

	require.NoError(t, r.Downgrade(ctx, Base))
	assert.Empty(t, snapshotSchema(t, db))
}

func TestMigrations_RenameCardSeasonToSet(t *testing.T) {
	db := openTestDB(t)
	r := newTestRunner(t, db, Options{})
	ctx := context.Background()

	require.NoError(t, r.Upgrade(ctx, "0011"))
	_, err := db.Exec(`INSERT INTO cards (base_name, modifier, rarity, season_id)
		VALUES ('Alice', 'Shiny', 'Rare', 0), ('Bob', '', 'Epic', 7)`)
	require.NoError(t, err)

	require.NoError(t, r.Upgrade(ctx, "0012"))
	var setIDs []int64
	rows, err := db.Query(`SELECT set_id FROM cards ORDER BY id`)
	require.NoError(t, err)
	for rows.Next() {
		var id int64
		require.NoError(t, rows.Scan(&id))
		setIDs = append(setIDs, id)
	}
	rows.Close()
	assert.Equal(t, []int64{0, 7}, setIDs)

	require.NoError(t, r.Downgrade(ctx, "0011"))
	var seasonIDs []int64
	rows, err = db.Query(`SELECT season_id FROM cards ORDER BY id`)
	require.NoError(t, err)
	for rows.Next() {
		var id int64
		require.NoError(t, rows.Scan(&id))
		seasonIDs = append(seasonIDs, id)
	}
	rows.Close()
	assert.Equal(t, []int64{0, 7}, seasonIDs)

	var exists bool
	require.NoError(t, db.QueryRow(`SELECT EXISTS (SELECT 1 FROM information_schema.columns
		WHERE table_name = 'cards' AND column_name = 'set_id')`).Scan(&exists))
	assert.False(t, exists)
}

func TestMigrations_SeasonsBackfillSetsForForeignKey(t *testing.T) {
	db := openTestDB(t)
	r := newTestRunner(t, db, Options{})
	ctx := context.Background()

	require.NoError(t, r.Upgrade(ctx, "0012"))
	_, err := db.Exec(`INSERT INTO cards (base_name, rarity, set_id) VALUES ('Alice', 'Rare', 0), ('Bob', 'Epic', 7)`)
	require.NoError(t, err)

	require.NoError(t, r.Upgrade(ctx, "0013"))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sets WHERE season_id = 0 AND id IN (0, 7)`).Scan(&n))
	assert.Equal(t, 2, n)

	_, err = db.Exec(`INSERT INTO cards (base_name, rarity, set_id, season_id) VALUES ('Eve', 'Rare', 99, 3)`)
	assert.Error(t, err, "foreign key must reject unknown set")
}

func TestMigrations_ClaimsBackfillNeedsDefaultChat(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, newTestRunner(t, db, Options{}).Upgrade(ctx, "0002"))
	_, err := db.Exec(`INSERT INTO claims (user_id, balance) VALUES (1, 4), (2, 1)`)
	require.NoError(t, err)

	bare := newTestRunner(t, db, Options{})
	err = bare.Upgrade(ctx, "0003")
	assert.ErrorIs(t, err, ErrMissingDefaultChat)
	current, err := bare.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0002", current)

	configured := newTestRunner(t, db, Options{DefaultGroupChatID: "-100"})
	require.NoError(t, configured.Upgrade(ctx, "0003"))

	var chatID string
	var balance int
	require.NoError(t, db.QueryRow(`SELECT chat_id, balance FROM claims WHERE user_id = 1`).Scan(&chatID, &balance))
	assert.Equal(t, "-100", chatID)
	assert.Equal(t, 4, balance)

	_, err = db.Exec(`INSERT INTO claims (user_id, chat_id, balance) VALUES (1, '-200', 9)`)
	require.NoError(t, err)

	require.NoError(t, configured.Downgrade(ctx, "0002"))
	var rows int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM claims WHERE user_id = 1`).Scan(&rows))
	assert.Equal(t, 1, rows)
	require.NoError(t, db.QueryRow(`SELECT balance FROM claims WHERE user_id = 1`).Scan(&balance))
	assert.Equal(t, 9, balance)
}

func TestMigrations_FreshDatabaseNeedsNoDefaultChat(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, newTestRunner(t, db, Options{}).Upgrade(context.Background(), Head))
}

func TestMigrations_ThreadDowngradePrefersMain(t *testing.T) {
	db := openTestDB(t)
	r := newTestRunner(t, db, Options{})
	ctx := context.Background()

	require.NoError(t, r.Upgrade(ctx, "0005"))
	_, err := db.Exec(`INSERT INTO threads (chat_id, thread_id, type) VALUES ('-1', 10, 'trade'), ('-1', 20, 'main'), ('-2', 30, 'trade')`)
	require.NoError(t, err)

	require.NoError(t, r.Downgrade(ctx, "0004"))

	var threadID int64
	require.NoError(t, db.QueryRow(`SELECT thread_id FROM threads WHERE chat_id = '-1'`).Scan(&threadID))
	assert.Equal(t, int64(20), threadID)
	require.NoError(t, db.QueryRow(`SELECT thread_id FROM threads WHERE chat_id = '-2'`).Scan(&threadID))
	assert.Equal(t, int64(30), threadID)
}

func TestMigrations_UpdatedAtPrefersRollTime(t *testing.T) {
	db := openTestDB(t)
	r := newTestRunner(t, db, Options{})
	ctx := context.Background()

	require.NoError(t, r.Upgrade(ctx, "0009"))
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rolled := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	var rolledCard, plainCard int64
	require.NoError(t, db.QueryRow(`INSERT INTO cards (base_name, rarity, created_at) VALUES ('A', 'Rare', $1) RETURNING id`, created).Scan(&rolledCard))
	require.NoError(t, db.QueryRow(`INSERT INTO cards (base_name, rarity, created_at) VALUES ('B', 'Rare', $1) RETURNING id`, created).Scan(&plainCard))
	_, err := db.Exec(`INSERT INTO rolled_cards (original_card_id, rerolled_card_id, created_at) VALUES ($1, $1, $2)`, rolledCard, rolled)
	require.NoError(t, err)

	require.NoError(t, r.Upgrade(ctx, "0010"))

	var got time.Time
	require.NoError(t, db.QueryRow(`SELECT updated_at FROM cards WHERE id = $1`, rolledCard).Scan(&got))
	assert.True(t, got.Equal(rolled), "got %v", got)
	require.NoError(t, db.QueryRow(`SELECT updated_at FROM cards WHERE id = $1`, plainCard).Scan(&got))
	assert.True(t, got.Equal(created), "got %v", got)
}

func TestMigrations_ThumbnailsRegeneratedAndBadRowsSkipped(t *testing.T) {
	db := openTestDB(t)
	r := newTestRunner(t, db, Options{})
	ctx := context.Background()

	require.NoError(t, r.Upgrade(ctx, "0008"))
	var good, bad int64
	require.NoError(t, db.QueryRow(`INSERT INTO cards (base_name, rarity, image) VALUES ('A', 'Rare', $1) RETURNING id`, testPNG(t, 120, 120)).Scan(&good))
	require.NoError(t, db.QueryRow(`INSERT INTO cards (base_name, rarity, image) VALUES ('B', 'Rare', $1) RETURNING id`, []byte("garbage")).Scan(&bad))

	thumbWidth := func(id int64) (int, bool) {
		var thumb []byte
		require.NoError(t, db.QueryRow(`SELECT thumbnail FROM card_images WHERE card_id = $1`, id).Scan(&thumb))
		if thumb == nil {
			return 0, false
		}
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(thumb))
		require.NoError(t, err)
		return cfg.Width, true
	}

	require.NoError(t, r.Upgrade(ctx, "0009"))
	w, ok := thumbWidth(good)
	require.True(t, ok)
	assert.Equal(t, 40, w)
	_, ok = thumbWidth(bad)
	assert.False(t, ok)

	require.NoError(t, r.Upgrade(ctx, Head))
	w, _ = thumbWidth(good)
	assert.Equal(t, 30, w)

	require.NoError(t, r.Downgrade(ctx, "0021"))
	w, _ = thumbWidth(good)
	assert.Equal(t, 40, w)
}

func TestMigrations_UserRollsMoveToDefaultChat(t *testing.T) {
	db := openTestDB(t)
	r := newTestRunner(t, db, Options{DefaultGroupChatID: "-100"})
	ctx := context.Background()

	require.NoError(t, r.Upgrade(ctx, "0018"))
	last := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	_, err := db.Exec(`INSERT INTO users (user_id, username, last_roll_time) VALUES (1, 'alice', $1), (2, 'bob', NULL)`, last)
	require.NoError(t, err)

	require.NoError(t, r.Upgrade(ctx, "0019"))
	var chatID string
	var got time.Time
	require.NoError(t, db.QueryRow(`SELECT chat_id, last_roll_time FROM user_rolls WHERE user_id = 1`).Scan(&chatID, &got))
	assert.Equal(t, "-100", chatID)
	assert.True(t, got.Equal(last))

	later := last.Add(48 * time.Hour)
	_, err = db.Exec(`INSERT INTO user_rolls (user_id, chat_id, last_roll_time) VALUES (1, '-200', $1)`, later)
	require.NoError(t, err)

	require.NoError(t, r.Downgrade(ctx, "0018"))
	require.NoError(t, db.QueryRow(`SELECT last_roll_time FROM users WHERE user_id = 1`).Scan(&got))
	assert.True(t, got.Equal(later))
}
