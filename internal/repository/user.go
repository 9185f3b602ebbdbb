package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"backend/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already exists")
	ErrEmailTaken    = errors.New("email already exists")
	ErrEmptyPassword = errors.New("password cannot be empty")
)

// HashPassword hashes the plaintext password with bcrypt. A cost of 0 falls
// back to bcrypt.DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext password against a stored bcrypt hash.
// It returns false, never an error, when either side is empty or the hash is
// not a valid bcrypt string.
func VerifyPassword(hashedPassword, password string) bool {
	if hashedPassword == "" || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

type UserRepository interface {
	FindByID(id int64) (*models.User, error)
	FindByUsername(username string) (*models.User, error)
	FindByEmail(email string) (*models.User, error)
	// FindByResetToken only matches tokens that have not expired yet.
	FindByResetToken(token string) (*models.User, error)
	List() ([]models.User, error)
	CountUsers() (int, error)
	Create(user *models.User) error
	Update(id int64, update models.UserUpdate) (*models.User, error)
	UpdatePassword(id int64, passwordHash string) error
	SetResetToken(id int64, token string, expires time.Time) error
	// RedeemResetToken replaces the password hash and clears the reset token
	// in a single transaction.
	RedeemResetToken(id int64, passwordHash string) error
	Delete(id int64) error
}

type userRepository struct {
	db  *sqlx.DB
	log *logrus.Logger
}

func NewUserRepository(db *sqlx.DB, log *logrus.Logger) UserRepository {
	return &userRepository{db: db, log: log}
}

const userColumns = `id, name, username, email, password_hash, role, reset_token, reset_token_expires, created_at, updated_at`

func (r *userRepository) FindByID(id int64) (*models.User, error) {
	return r.findOne(`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *userRepository) FindByUsername(username string) (*models.User, error) {
	return r.findOne(`SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *userRepository) FindByEmail(email string) (*models.User, error) {
	return r.findOne(`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *userRepository) FindByResetToken(token string) (*models.User, error) {
	return r.findOne(`SELECT `+userColumns+` FROM users WHERE reset_token = $1 AND reset_token_expires > NOW()`, token)
}

func (r *userRepository) findOne(query string, arg interface{}) (*models.User, error) {
	var user models.User
	err := r.db.Get(&user, query, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		r.log.Errorf("Failed to query user: %v", err)
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) List() ([]models.User, error) {
	users := []models.User{}
	err := r.db.Select(&users, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		r.log.Errorf("Failed to list users: %v", err)
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (r *userRepository) CountUsers() (int, error) {
	var count int
	if err := r.db.Get(&count, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

func (r *userRepository) Create(user *models.User) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Single query covering both unique fields so the caller can tell which
	// one conflicted.
	if err := checkConflict(tx, user.Username, user.Email, 0); err != nil {
		return err
	}

	query := `INSERT INTO users (name, username, email, password_hash, role, reset_token, reset_token_expires)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + userColumns
	err = tx.QueryRowx(query,
		user.Name, user.Username, user.Email, user.PasswordHash, user.Role,
		user.ResetToken, user.ResetTokenExpires).StructScan(user)
	if err != nil {
		r.log.Errorf("Failed to insert user: %v", err)
		return uniqueViolation(err, fmt.Errorf("failed to insert user: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *userRepository) Update(id int64, update models.UserUpdate) (*models.User, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if update.Username != nil || update.Email != nil {
		var username, email string
		if update.Username != nil {
			username = *update.Username
		}
		if update.Email != nil {
			email = *update.Email
		}
		if err := checkConflict(tx, username, email, id); err != nil {
			return nil, err
		}
	}

	setClauses := []string{}
	args := []interface{}{}
	appendSet := func(column string, value *string) {
		if value == nil {
			return
		}
		args = append(args, *value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	appendSet("name", update.Name)
	appendSet("username", update.Username)
	appendSet("email", update.Email)
	appendSet("role", update.Role)

	var user models.User
	if len(setClauses) == 0 {
		err = tx.Get(&user, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	} else {
		args = append(args, id)
		query := fmt.Sprintf(`UPDATE users SET %s, updated_at = NOW() WHERE id = $%d RETURNING %s`,
			strings.Join(setClauses, ", "), len(args), userColumns)
		err = tx.QueryRowx(query, args...).StructScan(&user)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		r.log.Errorf("Failed to update user %d: %v", id, err)
		return nil, uniqueViolation(err, fmt.Errorf("failed to update user: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &user, nil
}

func (r *userRepository) UpdatePassword(id int64, passwordHash string) error {
	return r.exec(`UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`, passwordHash, id)
}

func (r *userRepository) SetResetToken(id int64, token string, expires time.Time) error {
	return r.exec(`UPDATE users SET reset_token = $1, reset_token_expires = $2, updated_at = NOW() WHERE id = $3`, token, expires, id)
}

func (r *userRepository) RedeemResetToken(id int64, passwordHash string) error {
	return r.exec(`UPDATE users SET password_hash = $1, reset_token = NULL, reset_token_expires = NULL, updated_at = NOW() WHERE id = $2`, passwordHash, id)
}

func (r *userRepository) Delete(id int64) error {
	return r.exec(`DELETE FROM users WHERE id = $1`, id)
}

// exec runs a single-row mutation inside its own transaction and reports
// ErrUserNotFound when no row matched.
func (r *userRepository) exec(query string, args ...interface{}) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(query, args...)
	if err != nil {
		r.log.Errorf("Failed to execute mutation: %v", err)
		return fmt.Errorf("failed to execute mutation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// checkConflict looks for another user already holding the candidate
// username or email. excludeID skips the user's own row on updates.
func checkConflict(tx *sqlx.Tx, username, email string, excludeID int64) error {
	var existing struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	err := tx.Get(&existing,
		`SELECT username, email FROM users WHERE (username = $1 OR email = $2) AND id <> $3 LIMIT 1`,
		username, email, excludeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("failed to check uniqueness: %w", err)
	}
	if existing.Username == username {
		return ErrUsernameTaken
	}
	return ErrEmailTaken
}

// uniqueViolation maps a Postgres unique-constraint error raced past the
// pre-check onto the matching conflict sentinel.
func uniqueViolation(err error, fallback error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		if strings.Contains(pqErr.Constraint, "email") {
			return ErrEmailTaken
		}
		return ErrUsernameTaken
	}
	return fallback
}
