package handler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"gacha-bot/internal/model"
	"gacha-bot/internal/pkg/lock"
)

// replyRecorder is a tele.Context that only records replies.
type replyRecorder struct {
	tele.Context
	replies []string
}

func (r *replyRecorder) Reply(what interface{}, _ ...interface{}) error {
	r.replies = append(r.replies, what.(string))
	return nil
}

func TestWithUserLock_BusyUserIsToldToRetry(t *testing.T) {
	prev := userLockWait
	userLockWait = 20 * time.Millisecond
	t.Cleanup(func() { userLockWait = prev })

	locks := lock.New[model.BalanceKey]()
	key := model.BalanceKey{UserID: 7, ChatID: "-100"}
	ctx := context.Background()

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = locks.WithLockContext(ctx, key, time.Second, func() error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	var ran atomic.Bool
	rec := &replyRecorder{}
	err := withUserLock(ctx, rec, locks, key, func() error {
		ran.Store(true)
		return nil
	})
	require.NoError(t, err)
	assert.False(t, ran.Load())
	require.Len(t, rec.replies, 1)
	assert.Contains(t, rec.replies[0], "still running")

	close(release)
	assert.Eventually(t, func() bool {
		return withUserLock(ctx, &replyRecorder{}, locks, key, func() error {
			ran.Store(true)
			return nil
		}) == nil && ran.Load()
	}, time.Second, 5*time.Millisecond)
}

func TestWithUserLock_OtherChatNotBlocked(t *testing.T) {
	locks := lock.New[model.BalanceKey]()
	ctx := context.Background()
	a := model.BalanceKey{UserID: 7, ChatID: "-100"}
	b := model.BalanceKey{UserID: 7, ChatID: "-200"}

	err := withUserLock(ctx, &replyRecorder{}, locks, a, func() error {
		ran := false
		inner := withUserLock(ctx, &replyRecorder{}, locks, b, func() error {
			ran = true
			return nil
		})
		assert.True(t, ran)
		return inner
	})
	assert.NoError(t, err)
}
