package slot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDecodeSlot(t *testing.T) {
	tests := []struct {
		name      string
		slotValue int
		wantLeft  int
		wantMid   int
		wantRight int
	}{
		{"value 1 (1,1,1)", 1, 1, 1, 1},
		{"value 22 (2,2,2)", 22, 2, 2, 2},
		{"value 43 (3,3,3)", 43, 3, 3, 3},
		{"value 64 (4,4,4)", 64, 4, 4, 4},
		{"value 2 (2,1,1)", 2, 2, 1, 1},
		{"value 5 (1,2,1)", 5, 1, 2, 1},
		{"value 17 (1,1,2)", 17, 1, 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			left, middle, right := DecodeSlot(tt.slotValue)
			assert.Equal(t, []int{tt.wantLeft, tt.wantMid, tt.wantRight}, []int{left, middle, right})
		})
	}
}

func TestDecode_RejectsOutOfRange(t *testing.T) {
	for _, v := range []int{0, -1, 65, 1000} {
		_, err := Decode(v)
		assert.ErrorIs(t, err, ErrInvalidSlotValue, "value %d", v)
	}
}

func TestSpinReward(t *testing.T) {
	tests := []struct {
		name  string
		value int
		want  Reward
	}{
		{"three sevens", 64, RewardMegaspin},
		{"three bars", 1, RewardClaim},
		{"three lemons", 43, RewardClaim},
		{"pair", 17, RewardNone},
		{"no match", EncodeSlot(1, 2, 3), RewardNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Decode(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, SpinReward(r))
		})
	}
}

func TestMegaspinClaims(t *testing.T) {
	assert.Equal(t, int64(5), MegaspinClaims(Reels{4, 4, 4}))
	assert.Equal(t, int64(3), MegaspinClaims(Reels{2, 2, 2}))
	assert.Equal(t, int64(2), MegaspinClaims(Reels{1, 3, 1}))
	assert.Equal(t, int64(1), MegaspinClaims(Reels{1, 2, 3}))
}

// TestDecodeEncodeRoundTripProperty checks that every dice value survives a
// decode/encode round trip with symbols in range.
func TestDecodeEncodeRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.IntRange(1, 64).Draw(t, "value")
		r, err := Decode(v)
		if err != nil {
			t.Fatalf("Decode(%d) failed: %v", v, err)
		}
		for _, s := range []int{r.Left, r.Middle, r.Right} {
			if s < SymbolBAR || s > SymbolSeven {
				t.Fatalf("Decode(%d) produced symbol %d out of range", v, s)
			}
		}
		if got := EncodeSlot(r.Left, r.Middle, r.Right); got != v {
			t.Fatalf("EncodeSlot(Decode(%d)) = %d", v, got)
		}
	})
}

// TestRewardOddsProperty checks that exactly four of 64 outcomes pay and only
// one of them pays a megaspin.
func TestRewardOddsProperty(t *testing.T) {
	counts := map[Reward]int{}
	for v := 1; v <= 64; v++ {
		r, _ := Decode(v)
		counts[SpinReward(r)]++
	}
	assert.Equal(t, 1, counts[RewardMegaspin])
	assert.Equal(t, 3, counts[RewardClaim])
	assert.Equal(t, 60, counts[RewardNone])
}
