package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"lms/backend/identity"
	"lms/backend/models"
	"lms/backend/repository"
	"lms/backend/utils"
)

type AuthController struct {
	Identity identity.Provider
	Store    repository.Store
	Logger   *zap.Logger
}

func NewAuthController(idp identity.Provider, store repository.Store, logger *zap.Logger) *AuthController {
	return &AuthController{Identity: idp, Store: store, Logger: logger}
}

type SignupRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type SignupResponse struct {
	Message string         `json:"message"`
	User    *identity.User `json:"user"`
}

type LoginResponse struct {
	Message string            `json:"message"`
	Session *identity.Session `json:"session"`
	User    *identity.User    `json:"user"`
	Profile *LoginProfile     `json:"profile"`
}

// LoginProfile is the profile row as stored, returned alongside the session.
type LoginProfile struct {
	FirstName    *string `json:"first_name"`
	LastName     *string `json:"last_name"`
	AvatarURL    *string `json:"avatar_url"`
	Role         *string `json:"role"`
	Organization *string `json:"organization"`
}

// [+] Signup godoc
// @Summary Register a new user
// @Description Creates a confirmed account at the identity provider and stores the learner's name
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SignupRequest true "Signup data"
// @Success 200 {object} SignupResponse
// @Failure 400 {object} utils.ErrorResponse
// @Failure 500 {object} utils.ErrorResponse
// @Router /auth/signup [post]
func (ac *AuthController) Signup(c *fiber.Ctx) error {
	var input SignupRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request body")
	}
	if msg := utils.Validate(input); msg != "" {
		return utils.BadRequest(c, msg)
	}

	user, err := ac.Identity.CreateUser(c.UserContext(), identity.CreateUserParams{
		Email:        input.Email,
		Password:     input.Password,
		EmailConfirm: true,
		UserMetadata: map[string]interface{}{
			"first_name": input.FirstName,
			"last_name":  input.LastName,
		},
	})
	if err != nil {
		var apiErr *identity.APIError
		if errors.As(err, &apiErr) {
			return utils.BadRequest(c, apiErr.Message)
		}
		ac.Logger.Error("signup failed", zap.Error(err))
		return utils.InternalServerError(c, "Signup failed")
	}

	// Not fatal: the account already exists.
	if err := ac.Store.UpsertProfileName(c.UserContext(), user.ID, input.FirstName, input.LastName); err != nil {
		ac.Logger.Error("profile upsert after signup failed",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
	}

	return c.JSON(SignupResponse{
		Message: "User created successfully",
		User:    user,
	})
}

// [+] Login godoc
// @Summary User login
// @Description Exchanges email and password for a session and returns the stored profile
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} utils.ErrorResponse
// @Failure 401 {object} utils.ErrorResponse
// @Failure 500 {object} utils.ErrorResponse
// @Router /auth/login [post]
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var input LoginRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request body")
	}
	if msg := utils.Validate(input); msg != "" {
		return utils.BadRequest(c, msg)
	}

	session, err := ac.Identity.SignInWithPassword(c.UserContext(), input.Email, input.Password)
	if err != nil {
		var apiErr *identity.APIError
		if errors.As(err, &apiErr) {
			return utils.Unauthorized(c, apiErr.Message)
		}
		ac.Logger.Error("login failed", zap.Error(err))
		return utils.InternalServerError(c, "Login failed")
	}

	resp := LoginResponse{
		Message: "Login successful",
		Session: session,
		User:    session.User,
	}

	if session.User != nil {
		profile, err := ac.Store.FindProfile(c.UserContext(), session.User.ID)
		if err != nil {
			ac.Logger.Error("profile fetch after login failed",
				zap.String("user_id", session.User.ID.String()),
				zap.Error(err),
			)
		}
		resp.Profile = loginProfile(profile)
	}

	return c.JSON(resp)
}

func loginProfile(p *models.Profile) *LoginProfile {
	if p == nil {
		return nil
	}
	return &LoginProfile{
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		AvatarURL:    p.AvatarURL,
		Role:         p.Role,
		Organization: p.Organization,
	}
}
