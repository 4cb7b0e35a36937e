package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"lms/backend/config"
	"lms/backend/identity"
	"lms/backend/models"
	"lms/backend/repository"
	"lms/backend/services"
)

// countingStore records how many reads and writes reached storage.
type countingStore struct {
	repository.Store
	calls int32
}

func (s *countingStore) hit() { atomic.AddInt32(&s.calls, 1) }

func (s *countingStore) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	s.hit()
	return s.Store.GetProfile(ctx, id)
}

func (s *countingStore) FindProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	s.hit()
	return s.Store.FindProfile(ctx, id)
}

func (s *countingStore) ListEnrollments(ctx context.Context, id uuid.UUID) ([]models.Enrollment, error) {
	s.hit()
	return s.Store.ListEnrollments(ctx, id)
}

func (s *countingStore) ListEnrollmentsByRecentAccess(ctx context.Context, id uuid.UUID) ([]models.Enrollment, error) {
	s.hit()
	return s.Store.ListEnrollmentsByRecentAccess(ctx, id)
}

func (s *countingStore) ListCertificates(ctx context.Context, id uuid.UUID, limit int) ([]models.Certificate, error) {
	s.hit()
	return s.Store.ListCertificates(ctx, id, limit)
}

func (s *countingStore) UpsertProfileName(ctx context.Context, id uuid.UUID, first, last string) error {
	s.hit()
	return s.Store.UpsertProfileName(ctx, id, first, last)
}

func (s *countingStore) UpdateProfile(ctx context.Context, id uuid.UUID, upd models.ProfileUpdate) (*models.Profile, error) {
	s.hit()
	return s.Store.UpdateProfile(ctx, id, upd)
}

// brokenCertificates makes the certificate read fail.
type brokenCertificates struct {
	repository.Store
}

func (brokenCertificates) ListCertificates(context.Context, uuid.UUID, int) ([]models.Certificate, error) {
	return nil, errors.New("relation \"certificates\" does not exist")
}

type testEnv struct {
	app      *fiber.App
	memory   *repository.MemoryStore
	store    *countingStore
	identity *identity.MemoryProvider
}

func setup(t *testing.T, wrap func(repository.Store) repository.Store) *testEnv {
	t.Helper()
	return setupWithProvider(t, wrap, nil)
}

// setupWithProvider uses idp instead of a fresh in-memory provider when set.
func setupWithProvider(t *testing.T, wrap func(repository.Store) repository.Store, idp identity.Provider) *testEnv {
	t.Helper()

	memory := repository.NewMemoryStore()
	counting := &countingStore{Store: memory}
	var store repository.Store = counting
	if wrap != nil {
		store = wrap(store)
	}

	env := &testEnv{memory: memory, store: counting}
	if idp == nil {
		env.identity = identity.NewMemoryProvider().WithBcryptCost(bcrypt.MinCost)
		idp = env.identity
	}
	logger := zap.NewNop()
	cfg := &config.Config{CORSAllowOrigins: "*", RequestTimeout: 5 * time.Second}

	app := NewApp(cfg, logger)
	SetupRoutes(app, Dependencies{
		Store:    store,
		Identity: idp,
		Overview: services.NewOverviewService(store, logger, time.UTC),
		Logger:   logger,
	})

	env.app = app
	return env
}

func (e *testEnv) request(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]interface{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

// signup creates a learner and returns its id and an access token.
func (e *testEnv) signup(t *testing.T, email string) (uuid.UUID, string) {
	t.Helper()
	status, body := e.request(t, "POST", "/auth/signup", "", map[string]string{
		"email": email, "password": "secret1", "firstName": "Ann", "lastName": "Lee",
	})
	require.Equal(t, fiber.StatusOK, status, body)

	status, body = e.request(t, "POST", "/auth/login", "", map[string]string{"email": email, "password": "secret1"})
	require.Equal(t, fiber.StatusOK, status, body)

	user := body["user"].(map[string]interface{})
	session := body["session"].(map[string]interface{})
	return uuid.MustParse(user["id"].(string)), session["access_token"].(string)
}

func TestHealthAndMetrics(t *testing.T) {
	env := setup(t, nil)

	resp, err := env.app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(raw))

	resp, err = env.app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	raw, _ = io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), "http_requests_total")
}

func TestUserRoutesRequireAuthentication(t *testing.T) {
	env := setup(t, nil)

	routes := []struct{ method, path string }{
		{"GET", "/users/me/overview"},
		{"GET", "/users/me/courses"},
		{"GET", "/users/me/certificates"},
		{"GET", "/users/me/profile"},
		{"PATCH", "/users/me/profile"},
		{"PATCH", "/users/me/settings"},
	}

	for _, r := range routes {
		status, body := env.request(t, r.method, r.path, "", nil)
		assert.Equal(t, fiber.StatusUnauthorized, status, r.path)
		assert.Equal(t, "Missing Authorization header", body["error"], r.path)

		status, body = env.request(t, r.method, r.path, "not-a-jwt", nil)
		assert.Equal(t, fiber.StatusUnauthorized, status, r.path)
		assert.Equal(t, "Invalid or expired token", body["error"], r.path)
	}

	assert.Zero(t, atomic.LoadInt32(&env.store.calls), "no storage access without a valid token")
}

func TestForeignTokenIsRejected(t *testing.T) {
	env := setup(t, nil)
	other := setup(t, nil)
	_, token := other.signup(t, "ann@example.com")

	status, body := env.request(t, "GET", "/users/me/profile", token, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "Invalid or expired token", body["error"])
}

func TestSignup(t *testing.T) {
	env := setup(t, nil)

	status, body := env.request(t, "POST", "/auth/signup", "", map[string]string{
		"email": "ann@example.com", "password": "secret1", "firstName": "Ann",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "lastName is required", body["error"])

	status, body = env.request(t, "POST", "/auth/signup", "", map[string]string{
		"email": "ann@example.com", "password": "secret1", "firstName": "Ann", "lastName": "Lee",
	})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "User created successfully", body["message"])
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "ann@example.com", user["email"])
	assert.Equal(t, "Ann", user["user_metadata"].(map[string]interface{})["first_name"])

	profile, err := env.memory.GetProfile(context.Background(), uuid.MustParse(user["id"].(string)))
	require.NoError(t, err)
	assert.Equal(t, "Lee", *profile.LastName)

	status, body = env.request(t, "POST", "/auth/signup", "", map[string]string{
		"email": "ann@example.com", "password": "secret1", "firstName": "Ann", "lastName": "Lee",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "A user with this email address has already been registered", body["error"])
}

func TestLogin(t *testing.T) {
	env := setup(t, nil)
	env.signup(t, "ann@example.com")

	status, body := env.request(t, "POST", "/auth/login", "", map[string]string{"email": "ann@example.com"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "password is required", body["error"])

	status, body = env.request(t, "POST", "/auth/login", "", map[string]string{"email": "ann@example.com", "password": "wrong"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "Invalid login credentials", body["error"])

	status, body = env.request(t, "POST", "/auth/login", "", map[string]string{"email": "ann@example.com", "password": "secret1"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Login successful", body["message"])
	assert.NotEmpty(t, body["session"].(map[string]interface{})["access_token"])
	profile := body["profile"].(map[string]interface{})
	assert.Equal(t, "Ann", profile["first_name"])
	assert.Nil(t, profile["role"])
}

func TestOverview(t *testing.T) {
	env := setup(t, nil)
	userID, token := env.signup(t, "ann@example.com")

	now := time.Now().UTC()
	course := models.Course{ID: uuid.New(), Title: strPtr("Go Basics"), DurationMinutes: intPtr(120)}
	env.memory.PutCourse(course)
	env.memory.AddEnrollment(models.Enrollment{ID: uuid.New(), UserID: userID, CourseID: &course.ID, Progress: floatPtr(50), Status: strPtr(models.StatusInProgress), LastAccessedAt: &now})
	env.memory.AddEnrollment(models.Enrollment{ID: uuid.New(), UserID: userID, Status: strPtr(models.StatusCompleted)})
	env.memory.AddEnrollment(models.Enrollment{ID: uuid.New(), UserID: userID, Status: strPtr(models.StatusWishlist)})

	status, body := env.request(t, "GET", "/users/me/overview", token, nil)
	require.Equal(t, fiber.StatusOK, status, body)

	stats := body["stats"].(map[string]interface{})
	assert.Equal(t, 3.0, stats["enrolledCourses"])
	assert.Equal(t, 1.0, stats["completedCourses"])
	assert.Equal(t, 1.0, stats["learningHours"])
	assert.Equal(t, 1.0, stats["streak"])

	active := body["activeCourses"].([]interface{})
	assert.Len(t, active, 2)
	assert.Equal(t, "Go Basics", active[0].(map[string]interface{})["title"])

	recs := body["recommendations"].([]interface{})
	require.Len(t, recs, 1)
	assert.Equal(t, "Intermediate", recs[0].(map[string]interface{})["level"])

	profile := body["profile"].(map[string]interface{})
	assert.Equal(t, "Ann", profile["firstName"])
	assert.Equal(t, "TechZone LMS", profile["organization"])
}

func TestOverviewReadFailureIsASingle500(t *testing.T) {
	env := setup(t, func(s repository.Store) repository.Store { return brokenCertificates{Store: s} })
	_, token := env.signup(t, "ann@example.com")

	req := httptest.NewRequest("GET", "/users/me/overview", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)

	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Failed to load dashboard data"}`, string(raw))
}

func TestCoursesAndCertificates(t *testing.T) {
	env := setup(t, nil)
	userID, token := env.signup(t, "ann@example.com")

	older := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(48 * time.Hour)
	course := models.Course{ID: uuid.New(), Title: strPtr("SQL")}
	env.memory.PutCourse(course)
	env.memory.AddEnrollment(models.Enrollment{ID: uuid.New(), UserID: userID, CourseID: &course.ID, LastAccessedAt: &older})
	env.memory.AddEnrollment(models.Enrollment{ID: uuid.New(), UserID: userID, LastAccessedAt: &newer})
	env.memory.AddCertificate(models.Certificate{ID: uuid.New(), UserID: userID, CourseID: &course.ID, IssuedOn: &older, Grade: strPtr("A")})

	status, body := env.request(t, "GET", "/users/me/courses", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	courses := body["courses"].([]interface{})
	require.Len(t, courses, 2)
	first := courses[0].(map[string]interface{})
	assert.Equal(t, "Untitled course", first["title"])
	assert.Equal(t, "TechZone Mentor", first["instructor"])
	assert.Equal(t, 4.8, first["rating"])
	assert.Equal(t, "SQL", courses[1].(map[string]interface{})["title"])

	status, body = env.request(t, "GET", "/users/me/certificates", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	certs := body["certificates"].([]interface{})
	require.Len(t, certs, 1)
	cert := certs[0].(map[string]interface{})
	assert.Equal(t, "A", cert["grade"])
	assert.Equal(t, "SQL", cert["course"].(map[string]interface{})["title"])
}

func TestProfile(t *testing.T) {
	env := setup(t, nil)
	userID, token := env.signup(t, "ann@example.com")
	_, err := env.memory.UpdateProfile(context.Background(), userID, models.ProfileUpdate{AvatarURL: strPtr("https://cdn.example.com/a.png")})
	require.NoError(t, err)

	status, body := env.request(t, "GET", "/users/me/profile", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ann@example.com", body["email"], "falls back to the account email")
	assert.Equal(t, "Student", body["role"])
	assert.Equal(t, []interface{}{}, body["badges"])

	status, body = env.request(t, "PATCH", "/users/me/profile", token, map[string]interface{}{"role": "Admin"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "No profile fields to update", body["error"])

	status, body = env.request(t, "PATCH", "/users/me/profile", token, map[string]interface{}{"firstName": 42})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "firstName must be a string", body["error"])

	status, body = env.request(t, "PATCH", "/users/me/profile", token, map[string]interface{}{
		"firstName": "Anna", "role": "Admin", "avatarUrl": nil,
	})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Anna", body["firstName"])
	assert.Equal(t, "Lee", body["lastName"])
	assert.Equal(t, "Student", body["role"])
	assert.Nil(t, body["avatarUrl"])
	assert.Equal(t, userID.String(), body["id"])
}

func TestProfileMissingRow(t *testing.T) {
	env := setup(t, nil)
	user, err := env.identity.CreateUser(context.Background(), identity.CreateUserParams{Email: "bo@example.com", Password: "secret1"})
	require.NoError(t, err)
	session, err := env.identity.SignInWithPassword(context.Background(), "bo@example.com", "secret1")
	require.NoError(t, err)
	require.Equal(t, user.ID, session.User.ID)

	status, body := env.request(t, "GET", "/users/me/profile", session.AccessToken, nil)
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "Failed to load profile", body["error"])

	status, body = env.request(t, "PATCH", "/users/me/profile", session.AccessToken, map[string]interface{}{"firstName": "Bo"})
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "Failed to update profile", body["error"])
}

func TestSettings(t *testing.T) {
	env := setup(t, nil)
	env.signup(t, "bob@example.com")
	_, token := env.signup(t, "ann@example.com")

	status, body := env.request(t, "PATCH", "/users/me/settings", token, map[string]string{"email": "nope"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "email must be a valid email address", body["error"])

	status, body = env.request(t, "PATCH", "/users/me/settings", token, map[string]string{"email": "bob@example.com"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "A user with this email address has already been registered", body["error"])

	status, body = env.request(t, "PATCH", "/users/me/settings", token, map[string]string{
		"email": "ann.lee@example.com", "password": "secret2",
	})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Settings updated successfully", body["message"])

	status, _ = env.request(t, "POST", "/auth/login", "", map[string]string{"email": "ann.lee@example.com", "password": "secret2"})
	assert.Equal(t, fiber.StatusOK, status)
}

// gatewayDown stands in for an identity provider behind a failing proxy. Token
// checks succeed when userID is set; every other call gets a 502 HTML page.
func gatewayDown(t *testing.T, userID *uuid.UUID) *identity.SupabaseClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID != nil && r.Method == http.MethodGet && r.URL.Path == "/auth/v1/user" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"` + userID.String() + `","email":"ann@example.com"}`))
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html><body>502 Bad Gateway internal-host db-7</body></html>`))
	}))
	t.Cleanup(srv.Close)
	return identity.NewSupabaseClient(srv.URL, "anon", "service", 2*time.Second)
}

func unsignedToken(t *testing.T, sub uuid.UUID) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("not-the-provider-secret"))
	require.NoError(t, err)
	return token
}

func TestIdentityOutageIsAServerError(t *testing.T) {
	env := setupWithProvider(t, nil, gatewayDown(t, nil))

	status, body := env.request(t, "POST", "/auth/login", "", map[string]string{"email": "ann@example.com", "password": "secret1"})
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "Login failed", body["error"])

	status, body = env.request(t, "POST", "/auth/signup", "", map[string]string{
		"email": "ann@example.com", "password": "secret1", "firstName": "Ann", "lastName": "Lee",
	})
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "Signup failed", body["error"])

	status, body = env.request(t, "GET", "/users/me/overview", unsignedToken(t, uuid.New()), nil)
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "Auth check failed", body["error"])

	assert.Zero(t, atomic.LoadInt32(&env.store.calls))
}

func TestSettingsUpstreamFailureIsGeneric(t *testing.T) {
	userID := uuid.New()
	env := setupWithProvider(t, nil, gatewayDown(t, &userID))

	status, body := env.request(t, "PATCH", "/users/me/settings", unsignedToken(t, userID), map[string]string{"email": "new@example.com"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Failed to update settings", body["error"])
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func floatPtr(f float64) *float64 { return &f }
