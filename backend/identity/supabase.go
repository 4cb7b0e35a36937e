package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	auth "github.com/supabase-community/auth-go"
	"github.com/supabase-community/auth-go/types"
)

// maxErrorBody caps how much of a failed response is kept for parsing.
const maxErrorBody = 64 << 10

var requestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "identity_requests_total",
		Help: "Calls to the identity provider by operation and outcome",
	},
	[]string{"operation", "outcome"},
)

// SupabaseClient calls the auth API of a Supabase project. Public calls
// use the anon key; administrative calls use the service-role key.
type SupabaseClient struct {
	public    auth.Client
	admin     auth.Client
	transport http.RoundTripper
	timeout   time.Duration
}

func NewSupabaseClient(projectURL, anonKey, serviceRoleKey string, timeout time.Duration) *SupabaseClient {
	authURL := strings.TrimRight(projectURL, "/") + "/auth/v1"
	return &SupabaseClient{
		public:    auth.New("", anonKey).WithCustomAuthURL(authURL),
		admin:     auth.New("", serviceRoleKey).WithCustomAuthURL(authURL).WithToken(serviceRoleKey),
		transport: http.DefaultTransport,
		timeout:   timeout,
	}
}

func (s *SupabaseClient) CreateUser(ctx context.Context, params CreateUserParams) (*User, error) {
	var user *User
	err := s.call(ctx, "create_user", s.admin, func(c auth.Client) error {
		password := params.Password
		resp, err := c.AdminCreateUser(types.AdminCreateUserRequest{
			Email:        params.Email,
			Password:     &password,
			EmailConfirm: params.EmailConfirm,
			UserMetadata: params.UserMetadata,
		})
		if err != nil {
			return err
		}
		user = fromAuthUser(resp.User)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *SupabaseClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var session *Session
	err := s.call(ctx, "sign_in", s.public, func(c auth.Client) error {
		resp, err := c.Token(types.TokenRequest{
			GrantType: "password",
			Email:     email,
			Password:  password,
		})
		if err != nil {
			return err
		}
		session = &Session{
			AccessToken:  resp.AccessToken,
			TokenType:    resp.TokenType,
			ExpiresIn:    int64(resp.ExpiresIn),
			ExpiresAt:    resp.ExpiresAt,
			RefreshToken: resp.RefreshToken,
			User:         fromAuthUser(resp.User),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *SupabaseClient) GetUser(ctx context.Context, accessToken string) (*User, error) {
	var user *User
	err := s.call(ctx, "get_user", s.public.WithToken(accessToken), func(c auth.Client) error {
		resp, err := c.GetUser()
		if err != nil {
			return err
		}
		user = fromAuthUser(resp.User)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *SupabaseClient) UpdateUserByID(ctx context.Context, id uuid.UUID, params UpdateUserParams) (*User, error) {
	var user *User
	err := s.call(ctx, "update_user", s.admin, func(c auth.Client) error {
		resp, err := c.AdminUpdateUser(types.AdminUpdateUserRequest{
			UserID:   id,
			Email:    params.Email,
			Password: params.Password,
		})
		if err != nil {
			return err
		}
		user = fromAuthUser(resp.User)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// call runs fn against a copy of base bound to ctx. Rejections the provider
// explains with a 4xx JSON body become *APIError; everything else (outages,
// proxies, timeouts) is returned as a plain wrapped error.
func (s *SupabaseClient) call(ctx context.Context, op string, base auth.Client, fn func(auth.Client) error) (err error) {
	defer func() {
		requestsTotal.WithLabelValues(op, outcome(err)).Inc()
	}()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	rec := &responseRecorder{ctx: ctx, next: s.transport}
	err = fn(base.WithClient(http.Client{Transport: rec}))
	if err == nil {
		return nil
	}

	if rec.status >= 400 && rec.status < 500 {
		if apiErr := parseAPIError(rec.status, rec.body); apiErr != nil {
			return apiErr
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// responseRecorder attaches the caller's context to outgoing requests and
// keeps the status and body of the last failed response.
type responseRecorder struct {
	ctx    context.Context
	next   http.RoundTripper
	status int
	body   []byte
}

func (r *responseRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := r.next.RoundTrip(req.WithContext(r.ctx))
	if err != nil {
		return nil, err
	}

	r.status = resp.StatusCode
	if resp.StatusCode >= 300 {
		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		r.body = raw
		resp.Body = io.NopCloser(bytes.NewReader(raw))
	}
	return resp, nil
}

// errorBody covers the error shapes GoTrue has used across versions.
type errorBody struct {
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	Msg              string          `json:"msg"`
	Message          string          `json:"message"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

// parseAPIError returns nil when raw is not a JSON error object.
func parseAPIError(status int, raw []byte) *APIError {
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil
	}

	apiErr := &APIError{Status: status, Code: body.ErrorCode}
	if apiErr.Code == "" {
		apiErr.Code = body.Error
	}

	for _, candidate := range []string{body.Msg, body.Message, body.ErrorDescription, body.Error} {
		if candidate != "" {
			apiErr.Message = candidate
			break
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

func fromAuthUser(u types.User) *User {
	return &User{
		ID:           u.ID,
		Aud:          u.Aud,
		Role:         u.Role,
		Email:        u.Email,
		ConfirmedAt:  u.EmailConfirmedAt,
		LastSignInAt: u.LastSignInAt,
		UserMetadata: u.UserMetadata,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return "rejected"
	}
	return "error"
}
