package controllers

import (
	"github.com/gofiber/fiber/v2"

	"lms/backend/middleware"
	"lms/backend/services"
	"lms/backend/utils"
)

type OverviewController struct {
	Overview *services.OverviewService
}

func NewOverviewController(overview *services.OverviewService) *OverviewController {
	return &OverviewController{Overview: overview}
}

// GetOverview godoc
// @Summary Learner dashboard
// @Description Profile, statistics, active courses, latest certificates and wishlist of the authenticated user
// @Tags users
// @Produce json
// @Success 200 {object} services.Overview
// @Failure 401 {object} utils.ErrorResponse
// @Failure 500 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /users/me/overview [get]
func (oc *OverviewController) GetOverview(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	// The service has already logged the failure.
	overview, err := oc.Overview.Build(c.UserContext(), user.ID)
	if err != nil {
		return utils.InternalServerError(c, "Failed to load dashboard data")
	}

	return c.JSON(overview)
}
