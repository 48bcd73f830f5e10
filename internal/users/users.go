// Package users stores accounts and checks credentials.
package users

import (
	"errors"
	"strings"
	"time"
)

const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalid            = errors.New("invalid user")
	ErrLastAdmin          = errors.New("cannot demote the last admin")
)

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// NewUser is the input to Create. Role defaults to student.
type NewUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (n *NewUser) normalize() error {
	n.Username = strings.TrimSpace(n.Username)
	n.Email = strings.TrimSpace(n.Email)
	n.Role = strings.ToLower(strings.TrimSpace(n.Role))
	if n.Role == "" {
		n.Role = RoleStudent
	}
	switch {
	case n.Username == "":
		return errors.Join(ErrInvalid, errors.New("username required"))
	case n.Password == "":
		return errors.Join(ErrInvalid, errors.New("password required"))
	case n.Role != RoleStudent && n.Role != RoleAdmin:
		return errors.Join(ErrInvalid, errors.New("role must be student or admin"))
	}
	return nil
}
