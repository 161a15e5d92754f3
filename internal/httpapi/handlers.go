package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	lru "github.com/hashicorp/golang-lru"

	"gacha-bot/internal/model"
	"gacha-bot/internal/service"
	"gacha-bot/internal/token"
)

const (
	symbolCacheSize = 1024
	symbolCacheTTL  = time.Minute
)

// SymbolSource lists the reel art of a chat's slot machine.
type SymbolSource interface {
	Symbols(ctx context.Context, chatID string) ([]service.Symbol, error)
}

// ProfileSource aggregates a user's standing in a chat.
type ProfileSource interface {
	Profile(ctx context.Context, userID int64, chatID string) (*model.Profile, error)
}

// CardSource reads cards.
type CardSource interface {
	Get(ctx context.Context, cardID int64) (*model.Card, error)
	CollectionByUsername(ctx context.Context, username, query string) ([]*model.Card, error)
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type cachedSymbols struct {
	symbols   []service.Symbol
	fetchedAt time.Time
}

type handler struct {
	deps    *Dependencies
	symbols *lru.Cache
	now     func() time.Time
}

func newHandler(deps *Dependencies) *handler {
	cache, _ := lru.New(symbolCacheSize)
	return &handler{deps: deps, symbols: cache, now: time.Now}
}

// Healthz reports liveness and database reachability.
// GET /healthz
func (h *handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.deps.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.deps.Health.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SlotSymbols returns the chat's characters followed by rarity symbols.
// GET /chat/{chat_id}/slot-symbols
func (h *handler) SlotSymbols(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chat_id")

	if v, ok := h.symbols.Get(chatID); ok {
		entry := v.(cachedSymbols)
		if h.now().Sub(entry.fetchedAt) < symbolCacheTTL {
			writeJSON(w, http.StatusOK, map[string]any{"chat_id": chatID, "symbols": entry.symbols})
			return
		}
		h.symbols.Remove(chatID)
	}

	symbols, err := h.deps.Symbols.Symbols(r.Context(), chatID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.symbols.Add(chatID, cachedSymbols{symbols: symbols, fetchedAt: h.now()})
	writeJSON(w, http.StatusOK, map[string]any{"chat_id": chatID, "symbols": symbols})
}

// Profile returns balances, card count and achievements of a user in a chat.
// GET /user/{user_id}/profile?chat_id=
func (h *handler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	chatID := r.URL.Query().Get("chat_id")
	if chatID == "" {
		writeError(w, http.StatusBadRequest, "chat_id is required")
		return
	}

	profile, err := h.deps.Profiles.Profile(r.Context(), userID, chatID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// UserCards returns the cards owned by a username, optionally fuzzy filtered by q.
// GET /cards/{username}?q=
func (h *handler) UserCards(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	cards, err := h.deps.Cards.CollectionByUsername(r.Context(), username, r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]cardDTO, 0, len(cards))
	for _, c := range cards {
		out = append(out, toCardDTO(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"username": username, "cards": out})
}

// MiniappRoute decodes a miniapp start parameter.
// GET /miniapp/route?token=
func (h *handler) MiniappRoute(w http.ResponseWriter, r *http.Request) {
	route, err := token.DecodeRoute(r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, route)
}

// CreateDownloadToken issues a short-lived download token for a card.
// POST /downloads/token/card/{card_id}
func (h *handler) CreateDownloadToken(w http.ResponseWriter, r *http.Request) {
	cardID, ok := cardIDParam(w, r)
	if !ok {
		return
	}
	if _, err := h.deps.Cards.Get(r.Context(), cardID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	tok, expires := h.deps.Downloads.Issue(cardID)
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      tok,
		"expires_at": expires.UTC().Format(time.RFC3339),
	})
}

// DownloadCard serves a card image to the holder of a valid token.
// GET /downloads/card/{card_id}?token=
func (h *handler) DownloadCard(w http.ResponseWriter, r *http.Request) {
	cardID, ok := cardIDParam(w, r)
	if !ok {
		return
	}
	if !h.deps.Downloads.Validate(r.URL.Query().Get("token"), cardID) {
		writeError(w, http.StatusForbidden, "invalid or expired token")
		return
	}

	image, err := h.deps.Images.Image(r.Context(), cardID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Disposition", "attachment; filename=card_"+strconv.FormatInt(cardID, 10)+".jpg")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(image)
}

func cardIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "card_id"), 10, 64)
	if err != nil || id < 0 {
		writeError(w, http.StatusBadRequest, "invalid card id")
		return 0, false
	}
	return id, true
}

type cardDTO struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	BaseName string `json:"base_name"`
	Modifier string `json:"modifier"`
	Rarity   string `json:"rarity"`
	ChatID   string `json:"chat_id"`
	SetID    int64  `json:"set_id"`
	SeasonID int64  `json:"season_id"`
	Locked   bool   `json:"locked"`
}

func toCardDTO(c *model.Card) cardDTO {
	return cardDTO{
		ID:       c.ID,
		Title:    c.Title(),
		BaseName: c.BaseName,
		Modifier: c.Modifier,
		Rarity:   c.Rarity,
		ChatID:   c.ChatID,
		SetID:    c.SetID,
		SeasonID: c.SeasonID,
		Locked:   c.Locked,
	}
}
