package routes

import (
	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"lms/backend/config"
	"lms/backend/controllers"
	"lms/backend/identity"
	"lms/backend/middleware"
	"lms/backend/repository"
	"lms/backend/services"
	"lms/backend/utils"
)

// Dependencies are the collaborators shared by all handlers.
type Dependencies struct {
	Store    repository.Store
	Identity identity.Provider
	Overview *services.OverviewService
	Logger   *zap.Logger
}

// NewApp creates the fiber app with the common middleware chain, /health and /metrics.
func NewApp(cfg *config.Config, logger *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "lms-backend",
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		ErrorHandler:          utils.ErrorHandler(logger),
		DisableStartupMessage: true,
	})

	app.Use(requestid.New())
	app.Use(middleware.LoggingMiddleware(logger))
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSAllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PATCH,OPTIONS",
	}))
	app.Use(middleware.MetricsMiddleware())
	app.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	return app
}

func SetupRoutes(app *fiber.App, deps Dependencies) {
	// Auth routes
	authController := controllers.NewAuthController(deps.Identity, deps.Store, deps.Logger)
	auth := app.Group("/auth")
	auth.Post("/signup", authController.Signup)
	auth.Post("/login", authController.Login)

	// Middleware
	authMiddleware := middleware.AuthMiddleware(deps.Identity, deps.Logger)

	// User routes
	overviewController := controllers.NewOverviewController(deps.Overview)
	coursesController := controllers.NewCoursesController(deps.Store, deps.Logger)
	userController := controllers.NewUserController(deps.Store, deps.Identity, deps.Logger)

	me := app.Group("/users/me", authMiddleware)
	me.Get("/overview", overviewController.GetOverview)
	me.Get("/courses", coursesController.GetUserCourses)
	me.Get("/certificates", coursesController.GetCertificates)
	me.Get("/profile", userController.GetProfile)
	me.Patch("/profile", userController.UpdateProfile)
	me.Patch("/settings", userController.UpdateSettings)
}
