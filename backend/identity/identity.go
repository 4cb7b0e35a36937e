// Package identity talks to the external identity provider that owns user
// accounts, passwords and access tokens.
package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Provider is the subset of the identity provider's API this service uses.
type Provider interface {
	// CreateUser creates a confirmed account with administrative privileges.
	CreateUser(ctx context.Context, params CreateUserParams) (*User, error)
	// SignInWithPassword exchanges credentials for a session.
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	// GetUser resolves an access token to its user, or fails if the token is
	// invalid or expired.
	GetUser(ctx context.Context, accessToken string) (*User, error)
	// UpdateUserByID changes email and/or password of an account.
	UpdateUserByID(ctx context.Context, id uuid.UUID, params UpdateUserParams) (*User, error)
}

type User struct {
	ID           uuid.UUID              `json:"id"`
	Aud          string                 `json:"aud,omitempty"`
	Role         string                 `json:"role,omitempty"`
	Email        string                 `json:"email"`
	ConfirmedAt  *time.Time             `json:"confirmed_at,omitempty"`
	LastSignInAt *time.Time             `json:"last_sign_in_at,omitempty"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user"`
}

type CreateUserParams struct {
	Email        string                 `json:"email"`
	Password     string                 `json:"password"`
	EmailConfirm bool                   `json:"email_confirm"`
	UserMetadata map[string]interface{} `json:"user_metadata,omitempty"`
}

// UpdateUserParams fields left empty are not sent.
type UpdateUserParams struct {
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

// APIError is a failure reported by the provider itself (bad credentials,
// duplicate email, weak password...). Its Message is safe to show to users.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("identity provider: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("identity provider: %d: %s", e.Status, e.Message)
}
