package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"gacha-bot/internal/model"
	"gacha-bot/internal/pkg/db"
	"gacha-bot/internal/repository"
	"gacha-bot/internal/token"
)

// Admin authentication errors.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrOTPDelivery        = errors.New("failed to deliver one-time code")
	ErrInvalidOTP         = errors.New("invalid one-time code")
	ErrOTPExpired         = errors.New("one-time code expired")
	ErrTooManyAttempts    = errors.New("too many one-time code attempts")
	ErrUnauthorized       = errors.New("unauthorized")
)

// MaxOTPAttempts is the number of wrong codes after which a challenge is dropped.
const MaxOTPAttempts = 5

// OTPSender delivers a one-time code to an admin's Telegram account.
type OTPSender interface {
	SendOTP(ctx context.Context, telegramID int64, code string) error
}

// AdminAuthService implements the two-step admin login:
// password, then a one-time code delivered over Telegram, then a session token.
type AdminAuthService struct {
	repo     *repository.AdminRepository
	sender   OTPSender
	sessions *token.Sessions
	otpTTL   time.Duration
	now      func() time.Time
}

// NewAdminAuthService creates an AdminAuthService.
func NewAdminAuthService(pool db.Conn, sender OTPSender, sessions *token.Sessions, otpTTL time.Duration) *AdminAuthService {
	if otpTTL <= 0 {
		otpTTL = 5 * time.Minute
	}
	return &AdminAuthService{
		repo:     repository.NewAdminRepository(pool),
		sender:   sender,
		sessions: sessions,
		otpTTL:   otpTTL,
		now:      time.Now,
	}
}

// CreateAdmin stores an admin with a bcrypt password hash.
func (s *AdminAuthService) CreateAdmin(ctx context.Context, username, password string, telegramID int64) (*model.AdminUser, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return s.repo.Create(ctx, username, string(hash), telegramID)
}

// Login checks the password and sends a one-time code. It returns the
// challenge id even when delivery fails; the caller retries with ResendOTP.
func (s *AdminAuthService) Login(ctx context.Context, username, password string) (string, error) {
	admin, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrAdminNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if !admin.IsActive {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	code, hash, err := newOTP()
	if err != nil {
		return "", err
	}
	challengeID := uuid.NewString()
	if err := s.repo.CreateChallenge(ctx, &repository.OTPChallenge{
		ID:        challengeID,
		AdminID:   admin.ID,
		CodeHash:  hash,
		ExpiresAt: s.now().Add(s.otpTTL),
	}); err != nil {
		return "", err
	}

	return challengeID, s.deliver(ctx, admin, code)
}

// ResendOTP replaces the code of a pending challenge and sends it again,
// without asking for the password. The challenge keeps its expiry and
// failed attempts, so resending never outlives the original login.
func (s *AdminAuthService) ResendOTP(ctx context.Context, challengeID string) error {
	c, err := s.repo.GetChallenge(ctx, challengeID)
	if err != nil {
		if errors.Is(err, repository.ErrChallengeNotFound) {
			return ErrInvalidOTP
		}
		return err
	}
	if s.now().After(c.ExpiresAt) {
		_ = s.repo.DeleteChallenge(ctx, challengeID)
		return ErrOTPExpired
	}
	admin, err := s.repo.GetByID(ctx, c.AdminID)
	if err != nil {
		return err
	}

	code, hash, err := newOTP()
	if err != nil {
		return err
	}
	if err := s.repo.ReplaceCode(ctx, challengeID, hash); err != nil {
		return err
	}
	return s.deliver(ctx, admin, code)
}

// VerifyOTP exchanges a correct code for a session token.
func (s *AdminAuthService) VerifyOTP(ctx context.Context, challengeID, code string) (string, time.Time, error) {
	c, err := s.repo.GetChallenge(ctx, challengeID)
	if err != nil {
		if errors.Is(err, repository.ErrChallengeNotFound) {
			return "", time.Time{}, ErrInvalidOTP
		}
		return "", time.Time{}, err
	}
	if s.now().After(c.ExpiresAt) {
		_ = s.repo.DeleteChallenge(ctx, challengeID)
		return "", time.Time{}, ErrOTPExpired
	}

	if bcrypt.CompareHashAndPassword([]byte(c.CodeHash), []byte(code)) != nil {
		attempts, err := s.repo.IncrementAttempts(ctx, challengeID)
		if err != nil {
			return "", time.Time{}, err
		}
		if attempts >= MaxOTPAttempts {
			_ = s.repo.DeleteChallenge(ctx, challengeID)
			return "", time.Time{}, ErrTooManyAttempts
		}
		return "", time.Time{}, ErrInvalidOTP
	}

	if err := s.repo.DeleteChallenge(ctx, challengeID); err != nil {
		return "", time.Time{}, err
	}
	admin, err := s.repo.GetByID(ctx, c.AdminID)
	if err != nil {
		return "", time.Time{}, err
	}
	log.Info().Str("admin", admin.Username).Msg("Admin logged in")
	return s.sessions.Issue(admin.ID, admin.Username)
}

// Authenticate resolves a session token to an active admin.
func (s *AdminAuthService) Authenticate(ctx context.Context, sessionToken string) (*model.AdminUser, error) {
	claims, err := s.sessions.Parse(sessionToken)
	if err != nil {
		return nil, ErrUnauthorized
	}
	id, _ := claims.AdminID()
	admin, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAdminNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !admin.IsActive {
		return nil, ErrUnauthorized
	}
	return admin, nil
}

// PurgeExpired drops expired challenges.
func (s *AdminAuthService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.PurgeExpired(ctx, s.now())
}

func (s *AdminAuthService) deliver(ctx context.Context, admin *model.AdminUser, code string) error {
	if err := s.sender.SendOTP(ctx, admin.TelegramID, code); err != nil {
		log.Error().Err(err).Str("admin", admin.Username).Msg("Failed to deliver one-time code")
		return fmt.Errorf("%w: %v", ErrOTPDelivery, err)
	}
	return nil
}

// newOTP returns a six digit code and its bcrypt hash.
func newOTP() (string, string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", "", fmt.Errorf("failed to generate code: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64())
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("failed to hash code: %w", err)
	}
	return code, string(hash), nil
}
