package token

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
)

// MiniappPrefix marks miniapp route tokens.
const MiniappPrefix = "tma_"

// ErrInvalidRoute is returned for miniapp tokens that do not decode to a route.
var ErrInvalidRoute = errors.New("invalid miniapp route token")

// RouteKind is the screen a miniapp token opens.
type RouteKind string

// Route kinds.
const (
	RouteUser     RouteKind = "user"
	RouteUserChat RouteKind = "user_chat"
	RouteCard     RouteKind = "card"
	RouteCasino   RouteKind = "casino"
)

// Route is a decoded miniapp token. Only the fields of its kind are set.
// Miniapp tokens are obfuscated, not signed; they carry navigation context
// and must not be used for access control.
type Route struct {
	Kind   RouteKind `json:"kind"`
	UserID int64     `json:"user_id,omitempty"`
	ChatID string    `json:"chat_id,omitempty"`
	CardID int64     `json:"card_id,omitempty"`
}

// EncodeUserRoute returns a token for a user's profile.
func EncodeUserRoute(userID int64) string {
	return encodeRoute("u-" + strconv.FormatInt(userID, 10))
}

// EncodeUserChatRoute returns a token for a user's profile in one chat.
func EncodeUserChatRoute(userID int64, chatID string) string {
	return encodeRoute("uc-" + strconv.FormatInt(userID, 10) + "-" + chatID)
}

// EncodeCardRoute returns a token for one card.
func EncodeCardRoute(cardID int64) string {
	return encodeRoute("c-" + strconv.FormatInt(cardID, 10))
}

// EncodeCasinoRoute returns a token for a chat's slot machine.
func EncodeCasinoRoute(chatID string) string {
	return encodeRoute("casino-" + chatID)
}

// Encode returns the token for r.
func (r Route) Encode() (string, error) {
	switch r.Kind {
	case RouteUser:
		return EncodeUserRoute(r.UserID), nil
	case RouteUserChat:
		return EncodeUserChatRoute(r.UserID, r.ChatID), nil
	case RouteCard:
		return EncodeCardRoute(r.CardID), nil
	case RouteCasino:
		return EncodeCasinoRoute(r.ChatID), nil
	default:
		return "", ErrInvalidRoute
	}
}

func encodeRoute(payload string) string {
	return MiniappPrefix + base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// DecodeRoute parses a miniapp token.
func DecodeRoute(token string) (Route, error) {
	rest, ok := strings.CutPrefix(token, MiniappPrefix)
	if !ok {
		return Route{}, ErrInvalidRoute
	}
	raw, err := decodeBase64URL(rest)
	if err != nil {
		return Route{}, ErrInvalidRoute
	}
	payload := string(raw)

	// casino first: its chat id may itself contain dashes.
	if chat, ok := strings.CutPrefix(payload, "casino-"); ok {
		if chat == "" {
			return Route{}, ErrInvalidRoute
		}
		return Route{Kind: RouteCasino, ChatID: chat}, nil
	}

	parts := strings.SplitN(payload, "-", 3)
	switch {
	case parts[0] == "u" && len(parts) == 2:
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return Route{}, ErrInvalidRoute
		}
		return Route{Kind: RouteUser, UserID: id}, nil
	case parts[0] == "uc" && len(parts) == 3 && parts[2] != "":
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return Route{}, ErrInvalidRoute
		}
		return Route{Kind: RouteUserChat, UserID: id, ChatID: parts[2]}, nil
	case parts[0] == "c" && len(parts) == 2:
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return Route{}, ErrInvalidRoute
		}
		return Route{Kind: RouteCard, CardID: id}, nil
	default:
		return Route{}, ErrInvalidRoute
	}
}
