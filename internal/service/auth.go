package service

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"backend/internal/mailer"
	"backend/internal/models"
	"backend/internal/repository"

	"go.uber.org/zap"
)

const resetTokenValidity = time.Hour

var (
	// ErrInvalidCredentials is returned for both unknown usernames and wrong
	// passwords so login responses cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrResetTokenInvalid  = errors.New("password reset token is invalid or expired")
	ErrPasswordTooShort   = errors.New("password is too short")
	ErrWrongPassword      = errors.New("current password is incorrect")
	// ErrMailSendFailed is only surfaced from the forgot-password flow; all
	// other notifications are best-effort.
	ErrMailSendFailed = errors.New("failed to send email")
)

// AuthService implements login, the password-reset token lifecycle and
// self-service password changes.
type AuthService struct {
	repo        repository.UserRepository
	tokens      *TokenService
	mail        mailer.Mailer
	logger      *zap.Logger
	frontendURL string
	minPassLen  int
	bcryptCost  int
}

func NewAuthService(repo repository.UserRepository, tokens *TokenService, mail mailer.Mailer, logger *zap.Logger, frontendURL string, minPasswordLength, bcryptCost int) *AuthService {
	return &AuthService{
		repo:        repo,
		tokens:      tokens,
		mail:        mail,
		logger:      logger,
		frontendURL: frontendURL,
		minPassLen:  minPasswordLength,
		bcryptCost:  bcryptCost,
	}
}

// Login verifies the credentials and issues an access and a refresh token.
func (s *AuthService) Login(username, password string) (*models.User, string, string, error) {
	user, err := s.repo.FindByUsername(username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, "", "", ErrInvalidCredentials
		}
		return nil, "", "", fmt.Errorf("failed to retrieve user: %w", err)
	}

	if !repository.VerifyPassword(user.PasswordHash, password) {
		return nil, "", "", ErrInvalidCredentials
	}

	accessToken, err := s.tokens.IssueAccessToken(user.ID)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to issue access token: %w", err)
	}
	refreshToken, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to issue refresh token: %w", err)
	}

	s.logger.Info("User logged in", zap.String("username", user.Username))
	return user, accessToken, refreshToken, nil
}

// Refresh exchanges a valid refresh token for a new access token.
func (s *AuthService) Refresh(refreshToken string) (string, error) {
	userID, err := s.tokens.Validate(refreshToken, TokenTypeRefresh)
	if err != nil {
		return "", err
	}
	// The account must still exist: a refresh token for a deleted user is
	// treated the same as a malformed one.
	if _, err := s.repo.FindByID(userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", ErrTokenMalformed
		}
		return "", fmt.Errorf("failed to retrieve user: %w", err)
	}
	return s.tokens.IssueAccessToken(userID)
}

// RequestPasswordReset issues a new reset token and mails the reset link.
// An unknown email returns nil so callers respond identically whether the
// account exists or not.
func (s *AuthService) RequestPasswordReset(email string) error {
	user, err := s.repo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.logger.Info("Password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("failed to retrieve user: %w", err)
	}

	token, err := generateResetToken()
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	// Overwrites any earlier token: at most one live reset token per user.
	expires := time.Now().Add(resetTokenValidity)
	if err := s.repo.SetResetToken(user.ID, token, expires); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.frontendURL, token)
	body := fmt.Sprintf(`<p>Hello %s,</p>
<p>A password reset was requested for your account.</p>
<p>Click the link below to reset your password:</p>
<a href="%s">%s</a>
<p>This link expires in 1 hour.</p>
<p>If you did not request a password reset, please ignore this email.</p>`,
		user.Name, resetURL, resetURL)

	// The token stays persisted even when delivery fails, so a retried
	// request keeps working once mail is back.
	if err := s.mail.Send(user.Email, "Password reset request", body); err != nil {
		return ErrMailSendFailed
	}
	return nil
}

// ResetPassword redeems a reset token. The token is cleared on success and
// cannot be reused.
func (s *AuthService) ResetPassword(token, newPassword string) error {
	if len(newPassword) < s.minPassLen {
		return ErrPasswordTooShort
	}

	user, err := s.repo.FindByResetToken(token)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrResetTokenInvalid
		}
		return fmt.Errorf("failed to retrieve user: %w", err)
	}

	hash, err := repository.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.repo.RedeemResetToken(user.ID, hash); err != nil {
		return fmt.Errorf("failed to redeem reset token: %w", err)
	}

	body := fmt.Sprintf(`<p>Hello %s,</p>
<p>Your password has been reset successfully.</p>
<p>If this was not you, please contact an administrator immediately.</p>`, user.Name)
	if err := s.mail.Send(user.Email, "Your password has been reset", body); err != nil {
		s.logger.Warn("Failed to send password reset confirmation", zap.Error(err))
	}

	s.logger.Info("Password reset", zap.String("username", user.Username))
	return nil
}

// ChangePassword changes the password of the authenticated user after
// re-verifying the current one.
func (s *AuthService) ChangePassword(userID int64, oldPassword, newPassword string) error {
	if len(newPassword) < s.minPassLen {
		return ErrPasswordTooShort
	}

	user, err := s.repo.FindByID(userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return repository.ErrUserNotFound
		}
		return fmt.Errorf("failed to retrieve user: %w", err)
	}

	if !repository.VerifyPassword(user.PasswordHash, oldPassword) {
		return ErrWrongPassword
	}

	hash, err := repository.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(user.ID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	body := fmt.Sprintf(`<p>Hello %s,</p>
<p>Your password has been changed successfully.</p>
<p>If this was not you, please contact an administrator immediately.</p>`, user.Name)
	if err := s.mail.Send(user.Email, "Your password has been changed", body); err != nil {
		s.logger.Warn("Failed to send password change notification", zap.Error(err))
	}

	s.logger.Info("Password changed", zap.String("username", user.Username))
	return nil
}

// generateResetToken returns an unguessable URL-safe token with 32 bytes of
// entropy.
func generateResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
