package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coreybb/rhymera/models"
	"github.com/google/uuid"
)

type UserRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewUserRepository(db *sql.DB, dialect Dialect) *UserRepository {
	return &UserRepository{db: db, dialect: dialect}
}

// CreateUser inserts a user. It returns models.ErrUsernameTaken or models.ErrEmailTaken when the
// username or email is already registered.
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	if user.Username == "" || user.Email == "" {
		return fmt.Errorf("username and email cannot be empty")
	}
	if user.HashedPassword == "" {
		return fmt.Errorf("hashed password cannot be empty")
	}

	if _, err := r.GetUserByUsername(ctx, user.Username); err == nil {
		return models.ErrUsernameTaken
	} else if !errors.Is(err, models.ErrUserNotFound) {
		return err
	}
	if exists, err := r.emailExists(ctx, user.Email); err != nil {
		return err
	} else if exists {
		return models.ErrEmailTaken
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.CreatedAt = user.CreatedAt.UTC().Truncate(time.Microsecond)

	query := rebind(r.dialect, `
		INSERT INTO users (id, username, email, full_name, hashed_password, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Username, user.Email, user.FullName, user.HashedPassword, toUnixMicro(user.CreatedAt),
	)
	if err != nil {
		// Lost a race with a concurrent registration.
		if isUniqueViolation(err) {
			if strings.Contains(err.Error(), "email") {
				return models.ErrEmailTaken
			}
			return models.ErrUsernameTaken
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by their ID.
func (r *UserRepository) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	return r.getUser(ctx, "id", userID)
}

func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getUser(ctx, "username", username)
}

func (r *UserRepository) emailExists(ctx context.Context, email string) (bool, error) {
	query := rebind(r.dialect, `SELECT COUNT(*) FROM users WHERE email = ?`)
	var count int
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check email %s: %w", email, err)
	}
	return count > 0, nil
}

// column is always a literal from this file.
func (r *UserRepository) getUser(ctx context.Context, column, value string) (*models.User, error) {
	query := rebind(r.dialect, `
		SELECT id, username, email, full_name, hashed_password, created_at
		FROM users
		WHERE `+column+` = ?
	`)

	var (
		user      models.User
		fullName  sql.NullString
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&user.ID, &user.Username, &user.Email, &fullName, &user.HashedPassword, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s=%s: %w", column, value, models.ErrUserNotFound)
		}
		return nil, fmt.Errorf("failed to get user by %s: %w", column, err)
	}
	if fullName.Valid {
		user.FullName = &fullName.String
	}
	user.CreatedAt = fromUnixMicro(createdAt)
	return &user, nil
}
