package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/isdelr/todo-api/internal/database"
	"github.com/isdelr/todo-api/internal/models"
)

// PasswordHasher hashes and verifies plaintext passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Check(password, hash string) bool
}

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Register(ctx context.Context, username, password string) (models.User, error)
	Authenticate(ctx context.Context, username, password string) (models.User, error)
}

// UserService stores user accounts. Usernames match case-sensitively.
type UserService struct {
	db     *sql.DB
	hasher PasswordHasher
}

// NewUserService creates a new UserService.
func NewUserService(db *sql.DB, hasher PasswordHasher) *UserService {
	return &UserService{db: db, hasher: hasher}
}

// FindByUsername returns the user with that name, or (nil, nil) if none exists.
func (s *UserService) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	row := s.db.QueryRowContext(ctx, "SELECT id, username, password_hash FROM users WHERE username = ?", username)
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return &user, nil
}

// Register creates a user with a hashed password. ErrDuplicateUser is
// returned when the name is taken, including when a concurrent registration
// wins the race to the UNIQUE constraint.
func (s *UserService) Register(ctx context.Context, username, password string) (models.User, error) {
	existing, err := s.FindByUsername(ctx, username)
	if err != nil {
		return models.User{}, err
	}
	if existing != nil {
		return models.User{}, ErrDuplicateUser
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	res, err := s.db.ExecContext(ctx, "INSERT INTO users (username, password_hash) VALUES (?, ?)", username, hash)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return models.User{}, ErrDuplicateUser
		}
		return models.User{}, fmt.Errorf("failed to insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.User{}, fmt.Errorf("failed to read user id: %w", err)
	}

	return models.User{ID: id, Username: username}, nil
}

// Authenticate verifies a user's credentials.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (models.User, error) {
	user, err := s.FindByUsername(ctx, username)
	if err != nil {
		return models.User{}, err
	}
	if user == nil || !s.hasher.Check(password, user.PasswordHash) {
		return models.User{}, ErrInvalidCredentials
	}

	// Don't send the password hash to the client
	user.PasswordHash = ""
	return *user, nil
}
