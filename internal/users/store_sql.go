package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindsprint/internal/db"
)

type SQLStore struct {
	db   *sql.DB
	cost int
	now  func() time.Time
}

func NewSQLStore(dbh *sql.DB) *SQLStore {
	return &SQLStore{db: dbh, cost: bcrypt.DefaultCost, now: time.Now}
}

// WithHashCost sets the bcrypt cost for new hashes.
func (s *SQLStore) WithHashCost(cost int) *SQLStore {
	s.cost = cost
	return s
}

const userCols = `id,username,email,role,created_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	var created int64
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Role, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	u.CreatedAt = time.UnixMilli(created).UTC()
	return u, nil
}

func (s *SQLStore) Create(ctx context.Context, in NewUser) (User, error) {
	if err := in.normalize(); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return User{}, err
	}
	u := User{ID: in.ID, Username: in.Username, Email: in.Email, Role: in.Role,
		CreatedAt: s.now().UTC().Truncate(time.Millisecond)}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO users (id,username,email,password_hash,role,created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`, u.ID, u.Username, u.Email, string(hash), u.Role, u.CreatedAt.UnixMilli())
	if db.IsUniqueViolation(err) {
		return User{}, fmt.Errorf("%q: %w", u.Username, ErrUsernameTaken)
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id))
}

func (s *SQLStore) GetByUsername(ctx context.Context, username string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE username=$1`, username))
}

// Authenticate returns the user when password matches. Unknown users and wrong
// passwords produce the same error.
func (s *SQLStore) Authenticate(ctx context.Context, username, password string) (User, error) {
	var hash string
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+`,password_hash FROM users WHERE username=$1`, username)
	var u User
	var created int64
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Role, &created, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	u.CreatedAt = time.UnixMilli(created).UTC()
	return u, nil
}

func (s *SQLStore) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error {
	if newPassword == "" {
		return errors.Join(ErrInvalid, errors.New("new password required"))
	}
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE id=$1`, id).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(oldPassword)) != nil {
		return ErrInvalidCredentials
	}
	next, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE users SET password_hash=$1 WHERE id=$2`, string(next), id)
	return err
}

// List returns users ordered by username, optionally filtered by role.
func (s *SQLStore) List(ctx context.Context, role string) ([]User, error) {
	q := `SELECT ` + userCols + ` FROM users`
	args := []any{}
	if role != "" {
		q += ` WHERE role=$1`
		args = append(args, role)
	}
	rows, err := s.db.QueryContext(ctx, q+` ORDER BY username`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Upsert creates users that do not exist yet (by username) and updates those that
// do. Empty role, email and password fields keep the stored values. Demoting the
// last admin fails with ErrLastAdmin and rolls back the whole batch.
func (s *SQLStore) Upsert(ctx context.Context, in []NewUser) (inserted, updated int, err error) {
	type prepared struct {
		NewUser
		hash     string
		keepRole bool
	}
	rows := make([]prepared, 0, len(in))
	for i := range in {
		n := in[i]
		keepRole := strings.TrimSpace(n.Role) == ""
		pw := n.Password
		if pw == "" {
			n.Password = "-" // existing users may keep their password
		}
		if err := n.normalize(); err != nil {
			return 0, 0, fmt.Errorf("row %d: %w", i+1, err)
		}
		p := prepared{NewUser: n, keepRole: keepRole}
		if pw != "" {
			h, err := bcrypt.GenerateFromPassword([]byte(pw), s.cost)
			if err != nil {
				return 0, 0, err
			}
			p.hash = string(h)
		}
		rows = append(rows, p)
	}

	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, r := range rows {
			var id, role, email string
			err := tx.QueryRowContext(ctx, `SELECT id,role,email FROM users WHERE username=$1`, r.Username).
				Scan(&id, &role, &email)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				if r.hash == "" {
					return fmt.Errorf("%q: %w", r.Username, errors.Join(ErrInvalid, errors.New("password required for new user")))
				}
				if r.ID == "" {
					r.ID = uuid.NewString()
				}
				if _, err := tx.ExecContext(ctx, `INSERT INTO users (id,username,email,password_hash,role,created_at)
					VALUES ($1,$2,$3,$4,$5,$6)`, r.ID, r.Username, r.Email, r.hash, r.Role, s.now().UnixMilli()); err != nil {
					return err
				}
				inserted++
			case err != nil:
				return err
			default:
				if r.keepRole {
					r.Role = role
				}
				if r.Email == "" {
					r.Email = email
				}
				if role == RoleAdmin && r.Role != RoleAdmin {
					if err := ensureOtherAdmin(ctx, tx); err != nil {
						return fmt.Errorf("%q: %w", r.Username, err)
					}
				}
				if r.hash != "" {
					_, err = tx.ExecContext(ctx, `UPDATE users SET email=$1, role=$2, password_hash=$3 WHERE id=$4`, r.Email, r.Role, r.hash, id)
				} else {
					_, err = tx.ExecContext(ctx, `UPDATE users SET email=$1, role=$2 WHERE id=$3`, r.Email, r.Role, id)
				}
				if err != nil {
					return err
				}
				updated++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return inserted, updated, nil
}

// SetRole changes the role of the user matched by id or username. The last admin
// cannot be demoted.
func (s *SQLStore) SetRole(ctx context.Context, target, role string) (User, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	if role != RoleStudent && role != RoleAdmin {
		return User{}, errors.Join(ErrInvalid, errors.New("role must be student or admin"))
	}
	var out User
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		u, err := scanUser(tx.QueryRowContext(ctx,
			`SELECT `+userCols+` FROM users WHERE id=$1 OR username=$1`, target))
		if err != nil {
			return err
		}
		if u.Role == RoleAdmin && role != RoleAdmin {
			if err := ensureOtherAdmin(ctx, tx); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE users SET role=$1 WHERE id=$2`, role, u.ID); err != nil {
			return err
		}
		u.Role = role
		out = u
		return nil
	})
	return out, err
}

// ensureOtherAdmin fails with ErrLastAdmin unless more than one admin exists.
func ensureOtherAdmin(ctx context.Context, tx *sql.Tx) error {
	var admins int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE role=$1`, RoleAdmin).Scan(&admins); err != nil {
		return err
	}
	if admins <= 1 {
		return ErrLastAdmin
	}
	return nil
}
