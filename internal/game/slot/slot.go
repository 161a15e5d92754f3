// Package slot decodes Telegram's slot machine dice and turns the reels into
// balance rewards.
package slot

import (
	"errors"
	"fmt"
)

// Reel symbols, in the order Telegram encodes them.
const (
	SymbolBAR   = 1
	SymbolGrape = 2
	SymbolLemon = 3
	SymbolSeven = 4
)

// SymbolNames maps reel symbols to their display text.
var SymbolNames = map[int]string{
	SymbolBAR:   "BAR",
	SymbolGrape: "🍇",
	SymbolLemon: "🍋",
	SymbolSeven: "7️⃣",
}

// ErrInvalidSlotValue is returned for dice values outside 1..64.
var ErrInvalidSlotValue = errors.New("slot value must be between 1 and 64")

// Reward is what a spin pays out.
type Reward int

// Rewards, from nothing to the jackpot.
const (
	RewardNone Reward = iota
	RewardClaim
	RewardMegaspin
)

func (r Reward) String() string {
	switch r {
	case RewardClaim:
		return "claim"
	case RewardMegaspin:
		return "megaspin"
	default:
		return "none"
	}
}

// Reels is a decoded spin.
type Reels struct {
	Left, Middle, Right int
}

// String renders the reels for a chat message.
func (r Reels) String() string {
	return fmt.Sprintf("%s %s %s", SymbolNames[r.Left], SymbolNames[r.Middle], SymbolNames[r.Right])
}

// Triple reports whether all three reels match.
func (r Reels) Triple() bool {
	return r.Left == r.Middle && r.Middle == r.Right
}

// Decode validates a dice value and decodes it.
func Decode(value int) (Reels, error) {
	if value < 1 || value > 64 {
		return Reels{}, ErrInvalidSlotValue
	}
	l, m, r := DecodeSlot(value)
	return Reels{Left: l, Middle: m, Right: r}, nil
}

// DecodeSlot decodes a slot value (1-64) into three symbols (1-4 each).
// value = left + (middle-1)*4 + (right-1)*16
func DecodeSlot(slotValue int) (left, middle, right int) {
	value := slotValue - 1
	left = (value % 4) + 1
	middle = ((value / 4) % 4) + 1
	right = (value / 16) + 1
	return left, middle, right
}

// EncodeSlot is the inverse of DecodeSlot.
func EncodeSlot(left, middle, right int) int {
	return left + (middle-1)*4 + (right-1)*16
}

// SpinReward is the reward of a regular spin: three sevens pay a megaspin,
// any other triple pays a claim point.
func SpinReward(r Reels) Reward {
	switch {
	case r.Triple() && r.Left == SymbolSeven:
		return RewardMegaspin
	case r.Triple():
		return RewardClaim
	default:
		return RewardNone
	}
}

// MegaspinClaims is the number of claim points a megaspin pays. A megaspin
// never loses: one point for no match, two for a pair, three for a triple
// and five for three sevens.
func MegaspinClaims(r Reels) int64 {
	switch {
	case r.Triple() && r.Left == SymbolSeven:
		return 5
	case r.Triple():
		return 3
	case r.Left == r.Middle || r.Middle == r.Right || r.Left == r.Right:
		return 2
	default:
		return 1
	}
}
