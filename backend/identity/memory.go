package identity

import (
	"context"
	"crypto/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const memorySessionTTL = time.Hour

type memoryAccount struct {
	user         User
	passwordHash []byte
}

// MemoryProvider is a self-contained identity provider for local development
// and tests. Sessions are HS256 tokens signed with a per-process key.
type MemoryProvider struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*memoryAccount
	byEmail  map[string]uuid.UUID
	secret   []byte
	cost     int
	now      func() time.Time
}

func NewMemoryProvider() *MemoryProvider {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic(err)
	}
	return &MemoryProvider{
		accounts: make(map[uuid.UUID]*memoryAccount),
		byEmail:  make(map[string]uuid.UUID),
		secret:   secret,
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
	}
}

// WithBcryptCost lowers hashing cost; tests use bcrypt.MinCost.
func (m *MemoryProvider) WithBcryptCost(cost int) *MemoryProvider {
	m.cost = cost
	return m
}

// WithClock overrides the time source used for token issuing and checking.
func (m *MemoryProvider) WithClock(now func() time.Time) *MemoryProvider {
	m.now = now
	return m
}

func (m *MemoryProvider) CreateUser(ctx context.Context, params CreateUserParams) (*User, error) {
	email := normalizeEmail(params.Email)
	if email == "" {
		return nil, &APIError{Status: http.StatusBadRequest, Code: "validation_failed", Message: "Unable to validate email address: invalid format"}
	}
	if len(params.Password) < 6 {
		return nil, &APIError{Status: http.StatusUnprocessableEntity, Code: "weak_password", Message: "Password should be at least 6 characters."}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), m.cost)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byEmail[email]; exists {
		return nil, &APIError{Status: http.StatusUnprocessableEntity, Code: "email_exists", Message: "A user with this email address has already been registered"}
	}

	now := m.now().UTC()
	user := User{
		ID:           uuid.New(),
		Aud:          "authenticated",
		Role:         "authenticated",
		Email:        email,
		UserMetadata: params.UserMetadata,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if params.EmailConfirm {
		user.ConfirmedAt = &now
	}

	m.accounts[user.ID] = &memoryAccount{user: user, passwordHash: hash}
	m.byEmail[email] = user.ID

	out := user
	return &out, nil
}

func (m *MemoryProvider) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	invalid := &APIError{Status: http.StatusBadRequest, Code: "invalid_credentials", Message: "Invalid login credentials"}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, invalid
	}
	account := m.accounts[id]
	if err := bcrypt.CompareHashAndPassword(account.passwordHash, []byte(password)); err != nil {
		return nil, invalid
	}

	now := m.now().UTC()
	account.user.LastSignInAt = &now
	expiresAt := now.Add(memorySessionTTL)

	claims := jwt.RegisteredClaims{
		Subject:   id.String(),
		Audience:  jwt.ClaimStrings{"authenticated"},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, err
	}

	user := account.user
	return &Session{
		AccessToken:  token,
		TokenType:    "bearer",
		ExpiresIn:    int64(memorySessionTTL.Seconds()),
		ExpiresAt:    expiresAt.Unix(),
		RefreshToken: uuid.NewString(),
		User:         &user,
	}, nil
}

func (m *MemoryProvider) GetUser(ctx context.Context, accessToken string) (*User, error) {
	invalid := &APIError{Status: http.StatusUnauthorized, Code: "bad_jwt", Message: "invalid JWT: unable to parse or verify signature"}

	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if _, err := parser.ParseWithClaims(accessToken, &claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	}); err != nil {
		return nil, invalid
	}
	if !claims.VerifyExpiresAt(m.now(), true) {
		return nil, invalid
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, invalid
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	account, ok := m.accounts[id]
	if !ok {
		return nil, &APIError{Status: http.StatusForbidden, Code: "user_not_found", Message: "User from sub claim in JWT does not exist"}
	}
	user := account.user
	return &user, nil
}

func (m *MemoryProvider) UpdateUserByID(ctx context.Context, id uuid.UUID, params UpdateUserParams) (*User, error) {
	var hash []byte
	if params.Password != "" {
		if len(params.Password) < 6 {
			return nil, &APIError{Status: http.StatusUnprocessableEntity, Code: "weak_password", Message: "Password should be at least 6 characters."}
		}
		h, err := bcrypt.GenerateFromPassword([]byte(params.Password), m.cost)
		if err != nil {
			return nil, err
		}
		hash = h
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[id]
	if !ok {
		return nil, &APIError{Status: http.StatusNotFound, Code: "user_not_found", Message: "User not found"}
	}

	if params.Email != "" {
		email := normalizeEmail(params.Email)
		if other, exists := m.byEmail[email]; exists && other != id {
			return nil, &APIError{Status: http.StatusUnprocessableEntity, Code: "email_exists", Message: "A user with this email address has already been registered"}
		}
		delete(m.byEmail, account.user.Email)
		account.user.Email = email
		m.byEmail[email] = id
	}
	if hash != nil {
		account.passwordHash = hash
	}
	account.user.UpdatedAt = m.now().UTC()

	user := account.user
	return &user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
