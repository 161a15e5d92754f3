// Package model defines the data models for the gacha bot.
package model

import (
	"encoding/json"
	"time"
)

// BalanceKey identifies a per-chat balance row. Chat ids are stored as text
// so that both numeric Telegram ids and legacy string ids fit.
type BalanceKey struct {
	UserID int64
	ChatID string
}

// ClassicSeasonID is the season legacy cards are backfilled into.
const ClassicSeasonID = 0

// Card rarities, from most to least valuable.
const (
	RarityLegendary = "Legendary"
	RarityEpic      = "Epic"
	RarityRare      = "Rare"
	RarityCommon    = "Common"
)

// RarityRank orders rarities for display: Legendary < Epic < Rare < anything else.
func RarityRank(rarity string) int {
	switch rarity {
	case RarityLegendary:
		return 0
	case RarityEpic:
		return 1
	case RarityRare:
		return 2
	default:
		return 3
	}
}

// Card is a collectible owned by a user in a chat.
type Card struct {
	ID          int64     `db:"id" json:"id"`
	BaseName    string    `db:"base_name" json:"base_name"`
	Modifier    string    `db:"modifier" json:"modifier"`
	Rarity      string    `db:"rarity" json:"rarity"`
	Owner       *string   `db:"owner" json:"owner,omitempty"`
	UserID      *int64    `db:"user_id" json:"user_id,omitempty"`
	ChatID      string    `db:"chat_id" json:"chat_id"`
	SetID       int64     `db:"set_id" json:"set_id"`
	SeasonID    int64     `db:"season_id" json:"season_id"`
	Locked      bool      `db:"locked" json:"locked"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Title returns the display name of the card.
func (c *Card) Title() string {
	if c.Modifier == "" {
		return c.BaseName
	}
	return c.Modifier + " " + c.BaseName
}

// CardImage holds the full image and its thumbnail, stored apart from cards.
type CardImage struct {
	CardID    int64  `db:"card_id"`
	Image     []byte `db:"image"`
	Thumbnail []byte `db:"thumbnail"`
}

// RolledCard tracks where a freshly rolled card came from.
type RolledCard struct {
	RollID           int64     `db:"roll_id"`
	OriginalCardID   int64     `db:"original_card_id"`
	RerolledCardID   int64     `db:"rerolled_card_id"`
	OriginalRollerID int64     `db:"original_roller_id"`
	Rerolled         bool      `db:"rerolled"`
	BeingRerolled    bool      `db:"being_rerolled"`
	AttemptedBy      *string   `db:"attempted_by"`
	IsLocked         bool      `db:"is_locked"`
	CreatedAt        time.Time `db:"created_at"`
}

// User is a Telegram identity.
type User struct {
	UserID       int64     `db:"user_id" json:"user_id"`
	Username     string    `db:"username" json:"username"`
	DisplayName  *string   `db:"display_name" json:"display_name,omitempty"`
	ProfileImage []byte    `db:"profile_image" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Chat is a group the bot operates in.
type Chat struct {
	ChatID    string    `db:"chat_id"`
	Title     string    `db:"title"`
	CreatedAt time.Time `db:"created_at"`
}

// Thread types a chat can bind.
const (
	ThreadMain  = "main"
	ThreadTrade = "trade"
)

// Thread binds a message thread of a chat to a purpose.
type Thread struct {
	ChatID   string `db:"chat_id"`
	ThreadID int64  `db:"thread_id"`
	Type     string `db:"type"`
}

// Set is a sub-collection of cards inside a season.
type Set struct {
	ID          int64   `db:"id" json:"id"`
	SeasonID    int64   `db:"season_id" json:"season_id"`
	Name        string  `db:"name" json:"name"`
	Source      string  `db:"source" json:"source"`
	Description *string `db:"description" json:"description,omitempty"`
	Active      bool    `db:"active" json:"active"`
}

// Character is a base name cards of a chat can be rolled from.
type Character struct {
	ID       int64  `db:"id" json:"id"`
	ChatID   string `db:"chat_id" json:"chat_id"`
	Name     string `db:"name" json:"name"`
	ImageB64 string `db:"imageb64" json:"-"`
}

// Event is one append-only telemetry record.
type Event struct {
	ID        int64           `db:"id" json:"id"`
	EventType string          `db:"event_type" json:"event_type"`
	Outcome   string          `db:"outcome" json:"outcome"`
	UserID    int64           `db:"user_id" json:"user_id"`
	ChatID    string          `db:"chat_id" json:"chat_id"`
	CardID    *int64          `db:"card_id" json:"card_id,omitempty"`
	Timestamp time.Time       `db:"occurred_at" json:"timestamp"`
	Payload   json.RawMessage `db:"payload" json:"payload,omitempty"`
}

// Event types.
const (
	EventRoll   = "ROLL"
	EventClaim  = "CLAIM"
	EventBurn   = "BURN"
	EventLock   = "LOCK"
	EventSlots  = "SLOTS"
	EventSpend  = "SPEND"
	EventReward = "REWARD"
)

// Event outcomes.
const (
	OutcomeSuccess      = "SUCCESS"
	OutcomeInsufficient = "INSUFFICIENT"
	OutcomeWin          = "WIN"
	OutcomeLoss         = "LOSS"
	OutcomeDenied       = "DENIED"
)

// Achievement is an unlockable definition.
type Achievement struct {
	ID          int64  `db:"id" json:"id"`
	Slug        string `db:"slug" json:"slug"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
	Icon        string `db:"icon_b64" json:"icon,omitempty"`
}

// UserAchievement records that a user unlocked an achievement.
type UserAchievement struct {
	UserID        int64     `db:"user_id" json:"user_id"`
	AchievementID int64     `db:"achievement_id" json:"achievement_id"`
	UnlockedAt    time.Time `db:"unlocked_at" json:"unlocked_at"`
}

// ModifierCount is the running number of cards with one modifier in a chat and season.
type ModifierCount struct {
	ChatID   string `db:"chat_id"`
	SeasonID int64  `db:"season_id"`
	Modifier string `db:"modifier"`
	Count    int64  `db:"count"`
}

// AdminUser is an operator of the admin HTTP surface.
type AdminUser struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	TelegramID   int64     `db:"telegram_user_id" json:"telegram_user_id"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// UserRoll records when a user last rolled in a chat.
type UserRoll struct {
	UserID       int64     `db:"user_id"`
	ChatID       string    `db:"chat_id"`
	LastRollTime time.Time `db:"last_roll_time"`
}

// Profile is the aggregated view served to the miniapp.
type Profile struct {
	User         *User          `json:"user"`
	ChatID       string         `json:"chat_id"`
	Claims       int64          `json:"claim_balance"`
	Spins        int64          `json:"spin_balance"`
	Megaspins    int64          `json:"megaspin_balance"`
	CardCount    int64          `json:"card_count"`
	Achievements []*Achievement `json:"achievements"`
}
