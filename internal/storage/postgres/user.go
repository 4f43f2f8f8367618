package postgres

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// User is a registered quiz author or player.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserUpdate holds the mutable user fields. Nil fields are left unchanged.
type UserUpdate struct {
	Username *string
	Email    *string
	Password *string
}

// ErrUserNotFound is returned when a user lookup yields no results.
var ErrUserNotFound = errors.New("user not found")

// ErrUserExists is returned when a username or email is already taken.
var ErrUserExists = errors.New("user already exists")

// ErrInvalidUser is returned when user fields fail validation.
var ErrInvalidUser = errors.New("invalid user")

// ErrInvalidCredentials is returned when authentication fails.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserRepository provides user persistence operations.
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a UserRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, email, password_hash, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// ValidateUser checks username, email and password constraints.
//
// Postcondition: Returns nil or an error wrapping ErrInvalidUser naming every violation.
func ValidateUser(username, email, password string) error {
	var errs []string
	if n := len(strings.TrimSpace(username)); n < 3 || n > 64 {
		errs = append(errs, "username must be 3-64 characters")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		errs = append(errs, fmt.Sprintf("email %q is not a valid address", email))
	}
	if len(password) < 8 || len(password) > 72 {
		errs = append(errs, "password must be 8-72 bytes")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidUser, strings.Join(errs, "; "))
	}
	return nil
}

// Add inserts a new user with a bcrypt-hashed password.
//
// Precondition: fields must pass ValidateUser.
// Postcondition: Returns the created User with ID and timestamps set,
// or ErrUserExists if the username or email is taken.
func (r *UserRepository) Add(ctx context.Context, username, email, password string) (User, error) {
	if err := ValidateUser(username, email, password); err != nil {
		return User{}, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return User{}, fmt.Errorf("hashing password: %w", err)
	}

	u, err := scanUser(r.db.QueryRow(ctx,
		`INSERT INTO users (id, username, email, password_hash)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns,
		uuid.New(), strings.TrimSpace(username), strings.ToLower(email), hash,
	))
	if err != nil {
		if isDuplicateKeyError(err) {
			return User{}, ErrUserExists
		}
		return User{}, fmt.Errorf("inserting user: %w", err)
	}
	return u, nil
}

// Exists reports whether a user with the given ID exists.
func (r *UserRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking user: %w", err)
	}
	return exists, nil
}

// Get retrieves a user by ID.
//
// Postcondition: Returns the User or ErrUserNotFound.
func (r *UserRepository) Get(ctx context.Context, id uuid.UUID) (User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

// GetByUsername retrieves a user by username.
//
// Postcondition: Returns the User or ErrUserNotFound.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

// List returns up to limit users ordered by username, skipping offset.
func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]User, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY username LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (User, error) {
		return scanUser(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scanning users: %w", err)
	}
	return users, nil
}

// Update applies the non-nil fields of upd to the user.
//
// Postcondition: Returns the updated User, ErrUserNotFound, ErrUserExists or
// an error wrapping ErrInvalidUser.
func (r *UserRepository) Update(ctx context.Context, id uuid.UUID, upd UserUpdate) (User, error) {
	current, err := r.Get(ctx, id)
	if err != nil {
		return User{}, err
	}

	username, email := current.Username, current.Email
	if upd.Username != nil {
		username = strings.TrimSpace(*upd.Username)
	}
	if upd.Email != nil {
		email = strings.ToLower(*upd.Email)
	}
	// Validate against a placeholder password when the password is unchanged.
	password := "unchanged"
	if upd.Password != nil {
		password = *upd.Password
	}
	if err := ValidateUser(username, email, password); err != nil {
		return User{}, err
	}

	hash := current.PasswordHash
	if upd.Password != nil {
		if hash, err = HashPassword(*upd.Password); err != nil {
			return User{}, fmt.Errorf("hashing password: %w", err)
		}
	}

	u, err := scanUser(r.db.QueryRow(ctx,
		`UPDATE users
		 SET username = $2, email = $3, password_hash = $4, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, username, email, hash,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		if isDuplicateKeyError(err) {
			return User{}, ErrUserExists
		}
		return User{}, fmt.Errorf("updating user: %w", err)
	}
	return u, nil
}

// Delete removes the user.
//
// Postcondition: Returns ErrUserNotFound if no row was deleted.
func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Authenticate verifies credentials and returns the matching user.
//
// Postcondition: Returns the User if credentials are valid, ErrUserNotFound
// if the username doesn't exist, or ErrInvalidCredentials if the password is wrong.
func (r *UserRepository) Authenticate(ctx context.Context, username, password string) (User, error) {
	u, err := r.GetByUsername(ctx, username)
	if err != nil {
		return User{}, err
	}
	if !CheckPassword(password, u.PasswordHash) {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// HashPassword creates a bcrypt hash of the given password.
//
// Precondition: password must be non-empty.
// Postcondition: Returns a bcrypt hash string.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash.
//
// Postcondition: Returns true if password matches the hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	// SQLSTATE 23505 is unique_violation
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
