package controllers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"lms/backend/identity"
	"lms/backend/middleware"
	"lms/backend/models"
	"lms/backend/repository"
	"lms/backend/services"
	"lms/backend/utils"
)

type UserController struct {
	Store    repository.Store
	Identity identity.Provider
	Logger   *zap.Logger
}

func NewUserController(store repository.Store, idp identity.Provider, logger *zap.Logger) *UserController {
	return &UserController{Store: store, Identity: idp, Logger: logger}
}

// UpdateProfileRequest documents the accepted body. Absent keys are left
// untouched; "avatarUrl": null removes the avatar.
type UpdateProfileRequest struct {
	FirstName *string `json:"firstName" example:"Ann"`
	LastName  *string `json:"lastName" example:"Lee"`
	AvatarURL *string `json:"avatarUrl" example:"https://cdn.example.com/avatar.png"`
}

type UpdateSettingsRequest struct {
	Email    string `json:"email" validate:"omitempty,email" example:"user@example.com"`
	Password string `json:"password" validate:"omitempty,min=6" example:"newPassword123"`
}

// GetProfile godoc
// @Summary Get user profile
// @Description Returns authenticated user's profile data
// @Tags users
// @Produce json
// @Success 200 {object} services.ProfileView
// @Failure 401 {object} utils.ErrorResponse
// @Failure 500 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /users/me/profile [get]
func (uc *UserController) GetProfile(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	profile, err := uc.Store.GetProfile(c.UserContext(), user.ID)
	if err != nil {
		uc.Logger.Error("profile fetch failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		return utils.InternalServerError(c, "Failed to load profile")
	}

	return c.JSON(services.FormatProfile(user.ID, profile, user.Email))
}

// UpdateProfile godoc
// @Summary Update user profile
// @Description Updates name and avatar. Role and organization cannot be changed here.
// @Tags users
// @Accept json
// @Produce json
// @Param input body UpdateProfileRequest true "Profile update data"
// @Success 200 {object} services.UpdatedProfile
// @Failure 400 {object} utils.ErrorResponse
// @Failure 401 {object} utils.ErrorResponse
// @Failure 500 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /users/me/profile [patch]
func (uc *UserController) UpdateProfile(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	var body map[string]interface{}
	if err := c.BodyParser(&body); err != nil {
		return utils.BadRequest(c, "Invalid request body")
	}

	upd, err := profileUpdateFromBody(body)
	if err != nil {
		return utils.BadRequest(c, err.Error())
	}
	if upd.Empty() {
		return utils.BadRequest(c, "No profile fields to update")
	}

	profile, err := uc.Store.UpdateProfile(c.UserContext(), user.ID, upd)
	if err != nil {
		uc.Logger.Error("profile update failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		return utils.InternalServerError(c, "Failed to update profile")
	}

	return c.JSON(services.FormatUpdatedProfile(user.ID, profile))
}

// UpdateSettings godoc
// @Summary Update account settings
// @Description Changes email and/or password at the identity provider
// @Tags users
// @Accept json
// @Produce json
// @Param input body UpdateSettingsRequest true "New email and/or password"
// @Success 200 {object} utils.MessageResponse
// @Failure 400 {object} utils.ErrorResponse
// @Failure 401 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /users/me/settings [patch]
func (uc *UserController) UpdateSettings(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	var input UpdateSettingsRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request body")
	}
	if msg := utils.Validate(input); msg != "" {
		return utils.BadRequest(c, msg)
	}

	// Email and password go out as separate updates, email first.
	updates := make([]identity.UpdateUserParams, 0, 2)
	if input.Email != "" {
		updates = append(updates, identity.UpdateUserParams{Email: input.Email})
	}
	if input.Password != "" {
		updates = append(updates, identity.UpdateUserParams{Password: input.Password})
	}

	for _, params := range updates {
		if _, err := uc.Identity.UpdateUserByID(c.UserContext(), user.ID, params); err != nil {
			uc.Logger.Warn("settings update failed", zap.String("user_id", user.ID.String()), zap.Error(err))

			var apiErr *identity.APIError
			if errors.As(err, &apiErr) && apiErr.Message != "" {
				return utils.BadRequest(c, apiErr.Message)
			}
			return utils.BadRequest(c, "Failed to update settings")
		}
	}

	return utils.Message(c, "Settings updated successfully")
}

func profileUpdateFromBody(body map[string]interface{}) (models.ProfileUpdate, error) {
	var upd models.ProfileUpdate

	first, err := optionalString(body, "firstName")
	if err != nil {
		return upd, err
	}
	last, err := optionalString(body, "lastName")
	if err != nil {
		return upd, err
	}
	upd.FirstName = first
	upd.LastName = last

	if raw, ok := body["avatarUrl"]; ok {
		if raw == nil {
			upd.ClearAvatar = true
		} else {
			avatar, err := optionalString(body, "avatarUrl")
			if err != nil {
				return upd, err
			}
			if *avatar == "" {
				upd.ClearAvatar = true
			} else {
				upd.AvatarURL = avatar
			}
		}
	}
	return upd, nil
}

// optionalString reads key from a decoded JSON object. A missing key yields
// nil; an explicit null yields "".
func optionalString(body map[string]interface{}, key string) (*string, error) {
	raw, ok := body[key]
	if !ok {
		return nil, nil
	}
	if raw == nil {
		empty := ""
		return &empty, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("%s must be a string", key)
	}
	return &s, nil
}
