package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"
)

type recordingAPI struct {
	to   tele.Recipient
	what interface{}
	err  error
}

func (r *recordingAPI) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	r.to, r.what = to, what
	if r.err != nil {
		return nil, r.err
	}
	return &tele.Message{}, nil
}

func TestOTPSender_SendsPrivateMessage(t *testing.T) {
	api := &recordingAPI{}
	sender := NewOTPSender(api)

	require.NoError(t, sender.SendOTP(context.Background(), 42, "123456"))
	assert.Equal(t, "42", api.to.Recipient())
	assert.Contains(t, api.what, "123456")
}

func TestOTPSender_PropagatesFailure(t *testing.T) {
	api := &recordingAPI{err: errors.New("bot was blocked by the user")}
	err := NewOTPSender(api).SendOTP(context.Background(), 42, "123456")
	assert.ErrorContains(t, err, "blocked")
}

func TestOTPSender_CancelledContext(t *testing.T) {
	api := &recordingAPI{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, NewOTPSender(api).SendOTP(ctx, 1, "000000"), context.Canceled)
	assert.Nil(t, api.to)
}

func TestDisabledSender(t *testing.T) {
	assert.ErrorIs(t, DisabledSender{}.SendOTP(context.Background(), 1, "x"), ErrBotDisabled)
}
