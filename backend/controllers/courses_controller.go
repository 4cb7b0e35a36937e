package controllers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"lms/backend/middleware"
	"lms/backend/repository"
	"lms/backend/services"
	"lms/backend/utils"
)

type CoursesController struct {
	Store  repository.Store
	Logger *zap.Logger
}

func NewCoursesController(store repository.Store, logger *zap.Logger) *CoursesController {
	return &CoursesController{Store: store, Logger: logger}
}

type CoursesResponse struct {
	Courses []services.CourseItem `json:"courses"`
}

type CertificatesResponse struct {
	Certificates []services.CertificateItem `json:"certificates"`
}

// GetUserCourses godoc
// @Summary Enrolled courses
// @Description All enrollments of the authenticated user, most recently accessed first
// @Tags courses
// @Produce json
// @Success 200 {object} CoursesResponse
// @Failure 401 {object} utils.ErrorResponse
// @Failure 500 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /users/me/courses [get]
func (cc *CoursesController) GetUserCourses(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	enrollments, err := cc.Store.ListEnrollmentsByRecentAccess(c.UserContext(), user.ID)
	if err != nil {
		cc.Logger.Error("courses fetch failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		return utils.InternalServerError(c, "Failed to load courses")
	}

	return c.JSON(CoursesResponse{Courses: services.FormatCourses(enrollments)})
}

// GetCertificates godoc
// @Summary Earned certificates
// @Description All certificates of the authenticated user, newest first
// @Tags courses
// @Produce json
// @Success 200 {object} CertificatesResponse
// @Failure 401 {object} utils.ErrorResponse
// @Failure 500 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /users/me/certificates [get]
func (cc *CoursesController) GetCertificates(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	certificates, err := cc.Store.ListCertificates(c.UserContext(), user.ID, 0)
	if err != nil {
		cc.Logger.Error("certificates fetch failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		return utils.InternalServerError(c, "Failed to load certificates")
	}

	return c.JSON(CertificatesResponse{Certificates: services.FormatCertificates(certificates)})
}
