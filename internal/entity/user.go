package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered account.
type User struct {
	bun.BaseModel `bun:"table:users"`

	ID               int64     `bun:",pk,autoincrement"`
	Username         string    `bun:"username"`
	Email            string    `bun:"email"`
	PasswordHash     string    `bun:"password_hash"`
	EmailVerified    bool      `bun:"email_verified"`
	VerificationCode string    `bun:"verification_code,nullzero"`
	Phone            string    `bun:"phone,nullzero"`
	Province         string    `bun:"province,nullzero"`
	PostalCode       string    `bun:"postal_code,nullzero"`
	Role             string    `bun:"role"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time `bun:"updated_at,nullzero"`
}

// IsAdmin reports whether the account has back-office privileges.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
