package bot

import (
	"context"
	"errors"
	"fmt"

	tele "gopkg.in/telebot.v3"
)

// ErrBotDisabled is returned by DisabledSender.
var ErrBotDisabled = errors.New("telegram bot is disabled")

// Sender is the part of the telebot API used to deliver codes.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// OTPSender delivers admin one-time codes as private Telegram messages.
type OTPSender struct {
	api Sender
}

// NewOTPSender creates an OTPSender sending through api.
func NewOTPSender(api Sender) *OTPSender {
	return &OTPSender{api: api}
}

// SendOTP sends code to the Telegram user telegramID.
func (s *OTPSender) SendOTP(ctx context.Context, telegramID int64, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text := fmt.Sprintf("🔐 Your admin login code is %s\nIt expires in a few minutes. Ignore this message if you did not try to log in.", code)
	if _, err := s.api.Send(&tele.User{ID: telegramID}, text); err != nil {
		return fmt.Errorf("failed to send code to %d: %w", telegramID, err)
	}
	return nil
}

// DisabledSender fails every delivery. It stands in when the bot is not running.
type DisabledSender struct{}

// SendOTP always returns ErrBotDisabled.
func (DisabledSender) SendOTP(context.Context, int64, string) error {
	return ErrBotDisabled
}
