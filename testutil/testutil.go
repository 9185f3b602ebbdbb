// Package testutil provides in-memory collaborators for service and handler
// tests, mirroring the contracts of the Postgres repository and the SMTP
// mailer.
package testutil

import (
	"errors"
	"sync"
	"time"

	"backend/internal/models"
	"backend/internal/repository"
)

// MemoryUserRepository is an in-memory repository.UserRepository.
type MemoryUserRepository struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*models.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{nextID: 1, users: map[int64]*models.User{}}
}

func (r *MemoryUserRepository) FindByID(id int64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return copyUser(u), nil
	}
	return nil, repository.ErrUserNotFound
}

func (r *MemoryUserRepository) FindByUsername(username string) (*models.User, error) {
	return r.findBy(func(u *models.User) bool { return u.Username == username })
}

func (r *MemoryUserRepository) FindByEmail(email string) (*models.User, error) {
	return r.findBy(func(u *models.User) bool { return u.Email == email })
}

func (r *MemoryUserRepository) FindByResetToken(token string) (*models.User, error) {
	return r.findBy(func(u *models.User) bool {
		return u.ResetToken != nil && *u.ResetToken == token &&
			u.ResetTokenExpires != nil && u.ResetTokenExpires.After(time.Now())
	})
}

func (r *MemoryUserRepository) findBy(match func(*models.User) bool) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			return copyUser(u), nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *MemoryUserRepository) List() ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]models.User, 0, len(r.users))
	for id := int64(1); id < r.nextID; id++ {
		if u, ok := r.users[id]; ok {
			users = append(users, *copyUser(u))
		}
	}
	return users, nil
}

func (r *MemoryUserRepository) CountUsers() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users), nil
}

func (r *MemoryUserRepository) Create(user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return repository.ErrUsernameTaken
		}
		if u.Email == user.Email {
			return repository.ErrEmailTaken
		}
	}
	user.ID = r.nextID
	r.nextID++
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = copyUser(user)
	return nil
}

func (r *MemoryUserRepository) Update(id int64, update models.UserUpdate) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	for _, u := range r.users {
		if u.ID == id {
			continue
		}
		if update.Username != nil && u.Username == *update.Username {
			return nil, repository.ErrUsernameTaken
		}
		if update.Email != nil && u.Email == *update.Email {
			return nil, repository.ErrEmailTaken
		}
	}
	if update.Name != nil {
		user.Name = *update.Name
	}
	if update.Username != nil {
		user.Username = *update.Username
	}
	if update.Email != nil {
		user.Email = *update.Email
	}
	if update.Role != nil {
		user.Role = *update.Role
	}
	user.UpdatedAt = time.Now()
	return copyUser(user), nil
}

func (r *MemoryUserRepository) UpdatePassword(id int64, passwordHash string) error {
	return r.mutate(id, func(u *models.User) {
		u.PasswordHash = passwordHash
	})
}

func (r *MemoryUserRepository) SetResetToken(id int64, token string, expires time.Time) error {
	return r.mutate(id, func(u *models.User) {
		u.ResetToken = &token
		u.ResetTokenExpires = &expires
	})
}

func (r *MemoryUserRepository) RedeemResetToken(id int64, passwordHash string) error {
	return r.mutate(id, func(u *models.User) {
		u.PasswordHash = passwordHash
		u.ResetToken = nil
		u.ResetTokenExpires = nil
	})
}

func (r *MemoryUserRepository) Delete(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *MemoryUserRepository) mutate(id int64, fn func(*models.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	fn(user)
	user.UpdatedAt = time.Now()
	return nil
}

func copyUser(u *models.User) *models.User {
	clone := *u
	if u.ResetToken != nil {
		token := *u.ResetToken
		clone.ResetToken = &token
	}
	if u.ResetTokenExpires != nil {
		expires := *u.ResetTokenExpires
		clone.ResetTokenExpires = &expires
	}
	return &clone
}

// SentMail records one delivered message.
type SentMail struct {
	To      string
	Subject string
	Body    string
}

// RecordingMailer captures sent mail instead of delivering it. Set Fail to
// make every Send return an error.
type RecordingMailer struct {
	mu   sync.Mutex
	Fail bool
	Sent []SentMail
}

func NewRecordingMailer() *RecordingMailer {
	return &RecordingMailer{}
}

func (m *RecordingMailer) Send(to, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return errors.New("smtp unavailable")
	}
	m.Sent = append(m.Sent, SentMail{To: to, Subject: subject, Body: htmlBody})
	return nil
}

// LastSent returns the most recent message, or nil when nothing was sent.
func (m *RecordingMailer) LastSent() *SentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return nil
	}
	mail := m.Sent[len(m.Sent)-1]
	return &mail
}
