package migrate

import "context"

var rev0011Sets = Step{
	Revision:     "0011",
	DownRevision: "0010",
	Description:  "sets table and card grouping column",
	Up: func(ctx context.Context, s *Scope) error {
		if err := s.ExecAll(ctx,
			`CREATE TABLE sets (
				id INTEGER PRIMARY KEY,
				name TEXT NOT NULL,
				source TEXT NOT NULL DEFAULT '',
				description TEXT,
				active BOOLEAN NOT NULL DEFAULT TRUE
			)`,
			`INSERT INTO sets (id, name, source) VALUES (0, 'Classic', 'legacy') ON CONFLICT DO NOTHING`,
		); err != nil {
			return err
		}
		// Named season_id at this point; it holds the set a card belongs to.
		return s.AddColumn(ctx, "cards", "season_id", "INTEGER NOT NULL DEFAULT 0")
	},
	Down: func(ctx context.Context, s *Scope) error {
		if err := s.DropColumn(ctx, "cards", "season_id"); err != nil {
			return err
		}
		return s.DropTableIfExists(ctx, "sets")
	},
}

var rev0012RenameCardSeasonToSet = Step{
	Revision:     "0012",
	DownRevision: "0011",
	Description:  "rename cards.season_id to set_id",
	Up: func(ctx context.Context, s *Scope) error {
		if err := s.RenameColumn(ctx, "cards", "season_id", "set_id"); err != nil {
			return err
		}
		return s.CreateIndex(ctx, "idx_cards_set", "cards", "set_id")
	},
	Down: func(ctx context.Context, s *Scope) error {
		if err := s.DropIndex(ctx, "idx_cards_set"); err != nil {
			return err
		}
		return s.RenameColumn(ctx, "cards", "set_id", "season_id")
	},
}

// Sets become (id, season_id). Existing sets and cards land in the classic
// season and every card's pair is guaranteed a set row before the foreign key
// is added.
var rev0013Seasons = Step{
	Revision:     "0013",
	DownRevision: "0012",
	Description:  "seasons: composite set identity and card foreign key",
	Up: func(ctx context.Context, s *Scope) error {
		if err := s.RebuildTable(ctx, Rebuild{
			Table: "sets",
			Columns: []string{
				"id INTEGER NOT NULL",
				"season_id INTEGER NOT NULL DEFAULT 0",
				"name TEXT NOT NULL",
				"source TEXT NOT NULL DEFAULT ''",
				"description TEXT",
				"active BOOLEAN NOT NULL DEFAULT TRUE",
			},
			PrimaryKey: []string{"id", "season_id"},
			Insert:     []string{"id", "season_id", "name", "source", "description", "active"},
			Select:     `SELECT id, 0, name, source, description, active FROM sets`,
		}); err != nil {
			return err
		}
		if err := s.AddColumn(ctx, "cards", "season_id", "INTEGER NOT NULL DEFAULT 0"); err != nil {
			return err
		}
		if err := s.ExecAll(ctx,
			`INSERT INTO sets (id, season_id, name, source)
			SELECT DISTINCT c.set_id, c.season_id, 'Set ' || c.set_id, 'backfill'
			FROM cards c
			LEFT JOIN sets st ON st.id = c.set_id AND st.season_id = c.season_id
			WHERE st.id IS NULL`,
			`ALTER TABLE cards ADD CONSTRAINT fk_cards_set
				FOREIGN KEY (set_id, season_id) REFERENCES sets (id, season_id)`,
		); err != nil {
			return err
		}
		return s.CreateIndex(ctx, "idx_cards_season", "cards", "season_id")
	},
	Down: func(ctx context.Context, s *Scope) error {
		if err := s.ExecAll(ctx, `ALTER TABLE cards DROP CONSTRAINT IF EXISTS fk_cards_set`); err != nil {
			return err
		}
		if err := s.DropIndex(ctx, "idx_cards_season"); err != nil {
			return err
		}
		if err := s.DropColumn(ctx, "cards", "season_id"); err != nil {
			return err
		}
		// Keeps the earliest season's row per set id.
		return s.RebuildTable(ctx, Rebuild{
			Table: "sets",
			Columns: []string{
				"id INTEGER NOT NULL",
				"name TEXT NOT NULL",
				"source TEXT NOT NULL DEFAULT ''",
				"description TEXT",
				"active BOOLEAN NOT NULL DEFAULT TRUE",
			},
			PrimaryKey: []string{"id"},
			Insert:     []string{"id", "name", "source", "description", "active"},
			Select: `SELECT DISTINCT ON (id) id, name, source, description, active FROM sets
				ORDER BY id, season_id`,
		})
	},
}

var rev0014Characters = Step{
	Revision:     "0014",
	DownRevision: "0013",
	Description:  "chat characters and card descriptions",
	Up: func(ctx context.Context, s *Scope) error {
		if err := s.ExecAll(ctx, `CREATE TABLE characters (
			id SERIAL PRIMARY KEY,
			chat_id TEXT NOT NULL,
			name TEXT NOT NULL,
			imageb64 TEXT NOT NULL DEFAULT ''
		)`); err != nil {
			return err
		}
		if err := s.CreateIndex(ctx, "idx_characters_chat", "characters", "chat_id"); err != nil {
			return err
		}
		return s.AddColumn(ctx, "cards", "description", "TEXT NOT NULL DEFAULT ''")
	},
	Down: func(ctx context.Context, s *Scope) error {
		if err := s.DropColumn(ctx, "cards", "description"); err != nil {
			return err
		}
		return s.DropTableIfExists(ctx, "characters")
	},
}

var rev0015Events = Step{
	Revision:     "0015",
	DownRevision: "0014",
	Description:  "append-only event log",
	Up: func(ctx context.Context, s *Scope) error {
		if err := s.ExecAll(ctx, `CREATE TABLE events (
			id BIGSERIAL PRIMARY KEY,
			event_type TEXT NOT NULL,
			outcome TEXT NOT NULL,
			user_id BIGINT NOT NULL,
			chat_id TEXT NOT NULL,
			card_id INTEGER,
			occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			payload JSONB
		)`); err != nil {
			return err
		}
		if err := s.CreateIndex(ctx, "idx_events_user_chat", "events", "user_id", "chat_id"); err != nil {
			return err
		}
		return s.CreateIndex(ctx, "idx_events_type_time", "events", "event_type", "occurred_at")
	},
	Down: func(ctx context.Context, s *Scope) error {
		return s.DropTableIfExists(ctx, "events")
	},
}

var rev0016Achievements = Step{
	Revision:     "0016",
	DownRevision: "0015",
	Description:  "achievements and unlocks",
	Up: func(ctx context.Context, s *Scope) error {
		return s.ExecAll(ctx,
			`CREATE TABLE achievements (
				id SERIAL PRIMARY KEY,
				slug TEXT NOT NULL UNIQUE,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				icon_b64 TEXT
			)`,
			`CREATE TABLE user_achievements (
				id SERIAL PRIMARY KEY,
				user_id BIGINT NOT NULL,
				achievement_id INTEGER NOT NULL REFERENCES achievements(id) ON DELETE CASCADE,
				unlocked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CONSTRAINT uq_user_achievement UNIQUE (user_id, achievement_id)
			)`,
		)
	},
	Down: func(ctx context.Context, s *Scope) error {
		if err := s.DropTableIfExists(ctx, "user_achievements"); err != nil {
			return err
		}
		return s.DropTableIfExists(ctx, "achievements")
	},
}

// Counts are aggregated once from existing cards and maintained incrementally afterwards.
var rev0017ModifierCounts = Step{
	Revision:     "0017",
	DownRevision: "0016",
	Description:  "incremental modifier counts",
	Up: func(ctx context.Context, s *Scope) error {
		return s.ExecAll(ctx,
			`CREATE TABLE modifier_counts (
				chat_id TEXT NOT NULL,
				season_id INTEGER NOT NULL,
				modifier TEXT NOT NULL,
				count INTEGER NOT NULL DEFAULT 0,
				PRIMARY KEY (chat_id, season_id, modifier)
			)`,
			`INSERT INTO modifier_counts (chat_id, season_id, modifier, count)
			SELECT chat_id, season_id, modifier, COUNT(*)
			FROM cards
			WHERE chat_id IS NOT NULL AND modifier <> ''
			GROUP BY chat_id, season_id, modifier`,
		)
	},
	Down: func(ctx context.Context, s *Scope) error {
		return s.DropTableIfExists(ctx, "modifier_counts")
	},
}

var rev0018Megaspins = Step{
	Revision:     "0018",
	DownRevision: "0017",
	Description:  "megaspin balances per user and chat",
	Up: func(ctx context.Context, s *Scope) error {
		return s.ExecAll(ctx, `CREATE TABLE megaspins (
			user_id BIGINT NOT NULL,
			chat_id TEXT NOT NULL,
			count INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, chat_id)
		)`)
	},
	Down: func(ctx context.Context, s *Scope) error {
		return s.DropTableIfExists(ctx, "megaspins")
	},
}

// Roll timestamps move from users to (user, chat). Existing timestamps belong
// to the default group chat; downgrade keeps the latest roll per user.
var rev0019UserRolls = Step{
	Revision:     "0019",
	DownRevision: "0018",
	Description:  "roll cooldowns per user and chat",
	Up: func(ctx context.Context, s *Scope) error {
		if err := s.ExecAll(ctx, `CREATE TABLE user_rolls (
			user_id BIGINT NOT NULL,
			chat_id TEXT NOT NULL,
			last_roll_time TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (user_id, chat_id)
		)`); err != nil {
			return err
		}
		chatID, err := s.DefaultChatFor(ctx, "users", "last_roll_time IS NOT NULL")
		if err != nil {
			return err
		}
		if chatID != "" {
			if _, err := s.Exec(ctx, `INSERT INTO user_rolls (user_id, chat_id, last_roll_time)
				SELECT user_id, $1::text, last_roll_time FROM users WHERE last_roll_time IS NOT NULL`, chatID); err != nil {
				return err
			}
		}
		return s.DropColumn(ctx, "users", "last_roll_time")
	},
	Down: func(ctx context.Context, s *Scope) error {
		if err := s.AddColumn(ctx, "users", "last_roll_time", "TIMESTAMPTZ"); err != nil {
			return err
		}
		if _, err := s.Exec(ctx, `UPDATE users u SET last_roll_time = r.latest
			FROM (SELECT user_id, MAX(last_roll_time) AS latest FROM user_rolls GROUP BY user_id) r
			WHERE r.user_id = u.user_id`); err != nil {
			return err
		}
		return s.DropTableIfExists(ctx, "user_rolls")
	},
}

var rev0020AdminUsers = Step{
	Revision:     "0020",
	DownRevision: "0019",
	Description:  "admin users and one-time codes",
	Up: func(ctx context.Context, s *Scope) error {
		if err := s.ExecAll(ctx,
			`CREATE TABLE admin_users (
				id SERIAL PRIMARY KEY,
				username TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL,
				telegram_user_id BIGINT NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE TABLE admin_otp_codes (
				challenge_id TEXT PRIMARY KEY,
				admin_id INTEGER NOT NULL REFERENCES admin_users(id) ON DELETE CASCADE,
				code_hash TEXT NOT NULL,
				attempts INTEGER NOT NULL DEFAULT 0,
				expires_at TIMESTAMPTZ NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
		); err != nil {
			return err
		}
		return s.CreateIndex(ctx, "idx_admin_otp_expires", "admin_otp_codes", "expires_at")
	},
	Down: func(ctx context.Context, s *Scope) error {
		if err := s.DropTableIfExists(ctx, "admin_otp_codes"); err != nil {
			return err
		}
		return s.DropTableIfExists(ctx, "admin_users")
	},
}

var rev0021Minigames = Step{
	Revision:     "0021",
	DownRevision: "0020",
	Description:  "minesweeper and ride-the-bus game state",
	Up: func(ctx context.Context, s *Scope) error {
		if err := s.ExecAll(ctx,
			`CREATE TABLE minesweeper_games (
				id SERIAL PRIMARY KEY,
				user_id BIGINT NOT NULL,
				chat_id TEXT NOT NULL,
				bet_card_id INTEGER REFERENCES cards(id) ON DELETE SET NULL,
				mine_positions TEXT NOT NULL,
				claim_point_positions TEXT NOT NULL DEFAULT '',
				revealed_cells TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT 'active',
				started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				last_updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE TABLE rtb_games (
				id SERIAL PRIMARY KEY,
				user_id BIGINT NOT NULL,
				chat_id TEXT NOT NULL,
				bet_amount INTEGER NOT NULL,
				card_ids TEXT NOT NULL,
				current_position INTEGER NOT NULL DEFAULT 0,
				current_multiplier INTEGER NOT NULL DEFAULT 1,
				status TEXT NOT NULL DEFAULT 'active',
				started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				last_updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
		); err != nil {
			return err
		}
		if err := s.CreateIndex(ctx, "idx_minesweeper_user_chat", "minesweeper_games", "user_id", "chat_id", "status"); err != nil {
			return err
		}
		return s.CreateIndex(ctx, "idx_rtb_user_chat", "rtb_games", "user_id", "chat_id", "status")
	},
	Down: func(ctx context.Context, s *Scope) error {
		if err := s.DropTableIfExists(ctx, "rtb_games"); err != nil {
			return err
		}
		return s.DropTableIfExists(ctx, "minesweeper_games")
	},
}

var rev0022RescaleThumbnails = Step{
	Revision:     "0022",
	DownRevision: "0021",
	Description:  "regenerate thumbnails at a quarter scale",
	Up: func(ctx context.Context, s *Scope) error {
		_, err := s.RegenerateThumbnails(ctx, 4)
		return err
	},
	Down: func(ctx context.Context, s *Scope) error {
		_, err := s.RegenerateThumbnails(ctx, 3)
		return err
	},
}
