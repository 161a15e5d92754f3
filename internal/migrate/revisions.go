package migrate

import (
	"context"
	"database/sql"
)

// Revisions returns the full schema chain from base to head.
func Revisions() []Step {
	return []Step{
		rev0001InitialSchema,
		rev0002Chats,
		rev0003ClaimsPerChat,
		rev0004Threads,
		rev0005ThreadTypes,
		rev0006RolledCards,
		rev0007RerollTracking,
		rev0008Spins,
		rev0009SplitCardImages,
		rev0010CardUpdatedAt,
		rev0011Sets,
		rev0012RenameCardSeasonToSet,
		rev0013Seasons,
		rev0014Characters,
		rev0015Events,
		rev0016Achievements,
		rev0017ModifierCounts,
		rev0018Megaspins,
		rev0019UserRolls,
		rev0020AdminUsers,
		rev0021Minigames,
		rev0022RescaleThumbnails,
	}
}

// NewDefaultLedger returns the validated chain of Revisions.
func NewDefaultLedger() (*Ledger, error) {
	return NewLedger(Revisions()...)
}

var rev0001InitialSchema = Step{
	Revision:    "0001",
	Description: "initial users, cards and claims",
	Up: func(ctx context.Context, s *Scope) error {
		if err := s.ExecAll(ctx,
			`CREATE TABLE users (
				user_id BIGINT PRIMARY KEY,
				username TEXT NOT NULL UNIQUE,
				display_name TEXT,
				profile_image BYTEA,
				last_roll_time TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE TABLE cards (
				id SERIAL PRIMARY KEY,
				base_name TEXT NOT NULL,
				modifier TEXT NOT NULL DEFAULT '',
				rarity TEXT NOT NULL,
				owner TEXT,
				user_id BIGINT,
				chat_id TEXT,
				image BYTEA,
				locked BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE TABLE claims (
				user_id BIGINT PRIMARY KEY,
				balance INTEGER NOT NULL DEFAULT 1
			)`,
		); err != nil {
			return err
		}
		if err := s.CreateIndex(ctx, "idx_cards_owner", "cards", "owner"); err != nil {
			return err
		}
		return s.CreateIndex(ctx, "idx_cards_user_chat", "cards", "user_id", "chat_id")
	},
	Down: func(ctx context.Context, s *Scope) error {
		for _, t := range []string{"claims", "cards", "users"} {
			if err := s.DropTableIfExists(ctx, t); err != nil {
				return err
			}
		}
		return nil
	},
}

var rev0002Chats = Step{
	Revision:     "0002",
	DownRevision: "0001",
	Description:  "chats table seeded from card chat ids",
	Up: func(ctx context.Context, s *Scope) error {
		return s.ExecAll(ctx,
			`CREATE TABLE chats (
				chat_id TEXT PRIMARY KEY,
				title TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`INSERT INTO chats (chat_id)
			SELECT DISTINCT chat_id FROM cards WHERE chat_id IS NOT NULL`,
		)
	},
	Down: func(ctx context.Context, s *Scope) error {
		return s.DropTableIfExists(ctx, "chats")
	},
}

// Claims move from one balance per user to one per (user, chat). Existing
// balances are assigned to the configured default group chat; downgrade keeps
// the highest balance per user.
var rev0003ClaimsPerChat = Step{
	Revision:     "0003",
	DownRevision: "0002",
	Description:  "claims keyed by user and chat",
	Up: func(ctx context.Context, s *Scope) error {
		chatID, err := s.DefaultChatFor(ctx, "claims", "")
		if err != nil {
			return err
		}
		if err := s.RebuildTable(ctx, Rebuild{
			Table: "claims",
			Columns: []string{
				"user_id BIGINT NOT NULL",
				"chat_id TEXT NOT NULL",
				"balance INTEGER NOT NULL DEFAULT 1",
			},
			PrimaryKey: []string{"user_id", "chat_id"},
			Insert:     []string{"user_id", "chat_id", "balance"},
			Select:     `SELECT user_id, $1::text, balance FROM claims`,
			Args:       []any{chatID},
		}); err != nil {
			return err
		}
		return s.CreateIndex(ctx, "idx_claims_chat", "claims", "chat_id")
	},
	Down: func(ctx context.Context, s *Scope) error {
		return s.RebuildTable(ctx, Rebuild{
			Table: "claims",
			Columns: []string{
				"user_id BIGINT NOT NULL",
				"balance INTEGER NOT NULL DEFAULT 1",
			},
			PrimaryKey: []string{"user_id"},
			Insert:     []string{"user_id", "balance"},
			Select:     `SELECT user_id, MAX(balance) FROM claims GROUP BY user_id`,
		})
	},
}

var rev0004Threads = Step{
	Revision:     "0004",
	DownRevision: "0003",
	Description:  "per-chat message thread binding",
	Up: func(ctx context.Context, s *Scope) error {
		return s.ExecAll(ctx, `CREATE TABLE threads (
			chat_id TEXT PRIMARY KEY,
			thread_id BIGINT NOT NULL
		)`)
	},
	Down: func(ctx context.Context, s *Scope) error {
		return s.DropTableIfExists(ctx, "threads")
	},
}

var rev0005ThreadTypes = Step{
	Revision:     "0005",
	DownRevision: "0004",
	Description:  "threads keyed by chat and type",
	Up: func(ctx context.Context, s *Scope) error {
		return s.RebuildTable(ctx, Rebuild{
			Table: "threads",
			Columns: []string{
				"chat_id TEXT NOT NULL",
				"thread_id BIGINT NOT NULL",
				"type TEXT NOT NULL DEFAULT 'main'",
			},
			PrimaryKey: []string{"chat_id", "type"},
			Insert:     []string{"chat_id", "thread_id", "type"},
			Select:     `SELECT chat_id, thread_id, 'main' FROM threads`,
		})
	},
	Down: func(ctx context.Context, s *Scope) error {
		// One row per chat survives, the main thread when there is one.
		return s.RebuildTable(ctx, Rebuild{
			Table: "threads",
			Columns: []string{
				"chat_id TEXT NOT NULL",
				"thread_id BIGINT NOT NULL",
			},
			PrimaryKey: []string{"chat_id"},
			Insert:     []string{"chat_id", "thread_id"},
			Select: `SELECT DISTINCT ON (chat_id) chat_id, thread_id FROM threads
				ORDER BY chat_id, (type = 'main') DESC, type`,
		})
	},
}

var rev0006RolledCards = Step{
	Revision:     "0006",
	DownRevision: "0005",
	Description:  "rolled card provenance",
	Up: func(ctx context.Context, s *Scope) error {
		return s.ExecAll(ctx, `CREATE TABLE rolled_cards (
			roll_id SERIAL PRIMARY KEY,
			card_id INTEGER NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
			original_roller_id BIGINT,
			rerolled BOOLEAN NOT NULL DEFAULT FALSE,
			being_rerolled BOOLEAN NOT NULL DEFAULT FALSE,
			attempted_by TEXT,
			is_locked BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	},
	Down: func(ctx context.Context, s *Scope) error {
		return s.DropTableIfExists(ctx, "rolled_cards")
	},
}

// The rolled card keeps its original id; rerolled_card_id points at the card
// currently standing for the roll and starts out equal to the original.
var rev0007RerollTracking = Step{
	Revision:     "0007",
	DownRevision: "0006",
	Description:  "track original and rerolled card ids",
	Up: func(ctx context.Context, s *Scope) error {
		if err := s.RenameColumn(ctx, "rolled_cards", "card_id", "original_card_id"); err != nil {
			return err
		}
		if err := s.AddColumn(ctx, "rolled_cards", "rerolled_card_id", "INTEGER REFERENCES cards(id) ON DELETE CASCADE"); err != nil {
			return err
		}
		if err := s.ExecAll(ctx,
			`UPDATE rolled_cards SET rerolled_card_id = original_card_id WHERE rerolled_card_id IS NULL`,
			`ALTER TABLE rolled_cards ALTER COLUMN rerolled_card_id SET NOT NULL`,
		); err != nil {
			return err
		}
		return s.CreateIndex(ctx, "idx_rolled_cards_rerolled", "rolled_cards", "rerolled_card_id")
	},
	Down: func(ctx context.Context, s *Scope) error {
		if err := s.DropIndex(ctx, "idx_rolled_cards_rerolled"); err != nil {
			return err
		}
		if err := s.DropColumn(ctx, "rolled_cards", "rerolled_card_id"); err != nil {
			return err
		}
		return s.RenameColumn(ctx, "rolled_cards", "original_card_id", "card_id")
	},
}

var rev0008Spins = Step{
	Revision:     "0008",
	DownRevision: "0007",
	Description:  "spin balances per user and chat",
	Up: func(ctx context.Context, s *Scope) error {
		return s.ExecAll(ctx, `CREATE TABLE spins (
			user_id BIGINT NOT NULL,
			chat_id TEXT NOT NULL,
			count INTEGER NOT NULL DEFAULT 10,
			refresh_timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, chat_id)
		)`)
	},
	Down: func(ctx context.Context, s *Scope) error {
		return s.DropTableIfExists(ctx, "spins")
	},
}

// Images move out of cards so card listings stop reading blobs. Thumbnails
// are derived at a third of the original size.
var rev0009SplitCardImages = Step{
	Revision:     "0009",
	DownRevision: "0008",
	Description:  "card images split into card_images with thumbnails",
	Up: func(ctx context.Context, s *Scope) error {
		if err := s.ExecAll(ctx,
			`CREATE TABLE card_images (
				card_id INTEGER PRIMARY KEY REFERENCES cards(id) ON DELETE CASCADE,
				image BYTEA,
				thumbnail BYTEA
			)`,
			`INSERT INTO card_images (card_id, image)
			SELECT id, image FROM cards WHERE image IS NOT NULL`,
		); err != nil {
			return err
		}
		if _, err := s.RegenerateThumbnails(ctx, 3); err != nil {
			return err
		}
		return s.DropColumn(ctx, "cards", "image")
	},
	Down: func(ctx context.Context, s *Scope) error {
		if err := s.AddColumn(ctx, "cards", "image", "BYTEA"); err != nil {
			return err
		}
		if _, err := s.Exec(ctx, `UPDATE cards c SET image = ci.image
			FROM card_images ci WHERE ci.card_id = c.id`); err != nil {
			return err
		}
		return s.DropTableIfExists(ctx, "card_images")
	},
}

// updated_at takes the latest roll that produced the card and falls back to
// the card's own creation time.
var rev0010CardUpdatedAt = Step{
	Revision:     "0010",
	DownRevision: "0009",
	Description:  "cards.updated_at backfilled from rolls",
	Up: func(ctx context.Context, s *Scope) error {
		if err := s.AddColumn(ctx, "cards", "updated_at", "TIMESTAMPTZ"); err != nil {
			return err
		}
		return s.ExecAll(ctx,
			`UPDATE cards c SET updated_at = COALESCE(
				(SELECT MAX(rc.created_at) FROM rolled_cards rc WHERE rc.rerolled_card_id = c.id),
				c.created_at
			)`,
			`ALTER TABLE cards ALTER COLUMN updated_at SET NOT NULL`,
			`ALTER TABLE cards ALTER COLUMN updated_at SET DEFAULT NOW()`,
		)
	},
	Down: func(ctx context.Context, s *Scope) error {
		return s.DropColumn(ctx, "cards", "updated_at")
	},
}

// UpgradeToHead applies every pending revision of the default chain.
func UpgradeToHead(ctx context.Context, db *sql.DB, opts Options, observer Observer) error {
	l, err := NewDefaultLedger()
	if err != nil {
		return err
	}
	return NewRunner(db, l, opts, observer).Upgrade(ctx, Head)
}
