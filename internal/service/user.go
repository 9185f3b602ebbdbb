package service

import (
	"errors"
	"fmt"

	"backend/internal/mailer"
	"backend/internal/models"
	"backend/internal/repository"

	"go.uber.org/zap"
)

var (
	ErrInvalidRole = errors.New("role must be admin or user")
	// ErrFieldEmpty means a partial update supplied a required field as an
	// empty string. Omitting the field leaves it untouched; blanking it is
	// never allowed.
	ErrFieldEmpty = errors.New("name, username and email cannot be empty")
)

// CreateUserInput carries the fields for an administrator-created account.
type CreateUserInput struct {
	Name     string
	Username string
	Email    string
	Password string
	Role     string
}

// UserService implements the administrator-gated user directory plus the
// startup bootstrap account.
type UserService struct {
	repo       repository.UserRepository
	mail       mailer.Mailer
	logger     *zap.Logger
	minPassLen int
	bcryptCost int
}

func NewUserService(repo repository.UserRepository, mail mailer.Mailer, logger *zap.Logger, minPasswordLength, bcryptCost int) *UserService {
	return &UserService{
		repo:       repo,
		mail:       mail,
		logger:     logger,
		minPassLen: minPasswordLength,
		bcryptCost: bcryptCost,
	}
}

func (s *UserService) List() ([]models.User, error) {
	return s.repo.List()
}

func (s *UserService) Get(id int64) (*models.User, error) {
	return s.repo.FindByID(id)
}

// Create adds a new account and sends a best-effort welcome email.
func (s *UserService) Create(input CreateUserInput) (*models.User, error) {
	if input.Role == "" {
		input.Role = models.RoleUser
	}
	if !models.ValidRole(input.Role) {
		return nil, ErrInvalidRole
	}
	if len(input.Password) < s.minPassLen {
		return nil, ErrPasswordTooShort
	}

	hash, err := repository.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Name:         input.Name,
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         input.Role,
	}
	if err := s.repo.Create(user); err != nil {
		return nil, err
	}

	body := fmt.Sprintf(`<p>Hello %s,</p>
<p>Your account has been created.</p>
<p>Username: %s</p>
<p>Please log in with the password you were given.</p>`, user.Name, user.Username)
	if err := s.mail.Send(user.Email, "Your account has been created", body); err != nil {
		s.logger.Warn("Failed to send account creation email", zap.Error(err))
	}

	s.logger.Info("User created", zap.String("username", user.Username), zap.String("role", user.Role))
	return user, nil
}

// Update applies only the fields present in the partial update.
func (s *UserService) Update(id int64, update models.UserUpdate) (*models.User, error) {
	for _, field := range []*string{update.Name, update.Username, update.Email} {
		if field != nil && *field == "" {
			return nil, ErrFieldEmpty
		}
	}
	if update.Role != nil && !models.ValidRole(*update.Role) {
		return nil, ErrInvalidRole
	}
	return s.repo.Update(id, update)
}

func (s *UserService) Delete(id int64) error {
	if err := s.repo.Delete(id); err != nil {
		return err
	}
	s.logger.Info("User deleted", zap.Int64("id", id))
	return nil
}

// BootstrapAdmin creates the configured administrator account on first run.
// It is a no-op when any of the credentials are unset or the account already
// exists.
func (s *UserService) BootstrapAdmin(username, password, email string) error {
	if username == "" || password == "" || email == "" {
		s.logger.Warn("Bootstrap admin credentials not fully configured, skipping")
		return nil
	}

	if _, err := s.repo.FindByUsername(username); err == nil {
		s.logger.Info("Bootstrap admin already exists", zap.String("username", username))
		return nil
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return fmt.Errorf("failed to check bootstrap admin: %w", err)
	}

	hash, err := repository.HashPassword(password, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash bootstrap password: %w", err)
	}

	user := &models.User{
		Name:         "Default Admin",
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	}
	if err := s.repo.Create(user); err != nil {
		return fmt.Errorf("failed to create bootstrap admin: %w", err)
	}

	s.logger.Info("Bootstrap admin created", zap.String("username", username))
	return nil
}
