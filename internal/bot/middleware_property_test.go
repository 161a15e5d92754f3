package bot

import (
	"sync"
	"testing"

	"pgregory.net/rapid"

	"gacha-bot/internal/config"
)

func TestAdminPermissionCheckProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		adminIDs := rapid.SliceOfN(rapid.Int64Range(1, 1_000_000_000), 1, 10).Draw(t, "adminIDs")
		cfg := &config.Config{Admin: config.AdminConfig{IDs: adminIDs}}
		userID := rapid.Int64Range(1, 1_000_000_000).Draw(t, "userID")

		expected := false
		for _, id := range adminIDs {
			if id == userID {
				expected = true
				break
			}
		}
		if got := cfg.IsAdmin(userID); got != expected {
			t.Fatalf("admin check mismatch: userID=%d, adminIDs=%v, expected=%v, got=%v",
				userID, adminIDs, expected, got)
		}

		known := adminIDs[rapid.IntRange(0, len(adminIDs)-1).Draw(t, "adminIndex")]
		if !cfg.IsAdmin(known) {
			t.Fatalf("known admin %d not recognized", known)
		}
	})
}

func TestWhitelistEnforcementProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		chatIDs := rapid.SliceOfN(rapid.Int64Range(-1_000_000_000, -1), 1, 10).Draw(t, "chatIDs")
		cfg := &config.Config{Whitelist: config.WhitelistConfig{Chats: chatIDs}}
		chatID := rapid.Int64Range(-1_000_000_000, -1).Draw(t, "chatID")

		expected := false
		for _, id := range chatIDs {
			if id == chatID {
				expected = true
				break
			}
		}
		if got := cfg.IsChatAllowed(chatID); got != expected {
			t.Fatalf("whitelist mismatch: chatID=%d, chats=%v, expected=%v, got=%v",
				chatID, chatIDs, expected, got)
		}
	})
}

func TestEmptyWhitelistAllowsAllChatsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := &config.Config{Whitelist: config.WhitelistConfig{Chats: []int64{}}}
		chatID := rapid.Int64Range(-1_000_000_000, -1).Draw(t, "chatID")
		if !cfg.IsChatAllowed(chatID) {
			t.Fatalf("with empty whitelist, chat %d should be allowed", chatID)
		}
	})
}

func TestPrivateAccessProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		access := NewPrivateAccess()
		allowed := rapid.SliceOfNDistinct(rapid.Int64Range(1, 1_000_000), 0, 20, rapid.ID[int64]).Draw(t, "allowed")
		set := make(map[int64]bool, len(allowed))
		for _, id := range allowed {
			access.Allow(id)
			set[id] = true
		}

		candidate := rapid.Int64Range(1, 1_000_000).Draw(t, "candidate")
		if access.Allowed(candidate) != set[candidate] {
			t.Fatalf("private access mismatch for %d", candidate)
		}
	})
}

func TestPrivateAccessConcurrent(t *testing.T) {
	access := NewPrivateAccess()
	var wg sync.WaitGroup
	for i := int64(1); i <= 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			access.Allow(id)
			_ = access.Allowed(id)
		}(i)
	}
	wg.Wait()

	for i := int64(1); i <= 50; i++ {
		if !access.Allowed(i) {
			t.Fatalf("user %d should be allowed", i)
		}
	}
}
