package router

import (
	"loyaltyStamp/internal/middleware"
	"loyaltyStamp/internal/rest"

	"github.com/labstack/echo/v4"
)

func SetupUserRoutes(api *echo.Group, handler *rest.UserHandler) {
	users := api.Group("/users")

	users.GET("/email-verification/:code", handler.VerifyEmail)
	users.POST("/register", handler.Register)
	users.POST("/login", handler.Login)

	users.PUT("/:id", handler.UpdateUser, middleware.AuthMiddleware(), middleware.SelfOrAdmin())
	users.GET("", handler.GetAllUsers, middleware.AuthMiddleware(), middleware.AdminOnly())
	users.GET("/:id", handler.GetUserByID, middleware.AuthMiddleware(), middleware.SelfOrAdmin())
	users.DELETE("/:id", handler.DeleteUser, middleware.AuthMiddleware(), middleware.AdminOnly())
}

func SetVisitsRoutes(api *echo.Group, handler *rest.VisitsHandler) {
	visits := api.Group("/visits", middleware.AuthMiddleware())
	visits.POST("/scan", handler.Scan)
	visits.GET("", handler.GetVisits)
	visits.POST("/:id/retry", handler.RetryVisit)
}

func SetBenefitsRoutes(api *echo.Group, handler *rest.BenefitsHandler) {
	benefits := api.Group("/benefits", middleware.AuthMiddleware())
	benefits.GET("", handler.GetBenefits)
	benefits.POST("/evaluate", handler.Evaluate)
	benefits.POST("/apply", handler.Apply, middleware.StaffOnly())
}

func SetRedemptionsRoutes(api *echo.Group, handler *rest.RedemptionsHandler) {
	redemptions := api.Group("/redemptions", middleware.AuthMiddleware())
	redemptions.POST("", handler.RequestCode)
	redemptions.POST("/renew", handler.RenewCode)
	redemptions.GET("", handler.GetSession)
	redemptions.DELETE("", handler.CancelSession)
	redemptions.POST("/confirm", handler.Confirm, middleware.StaffOnly())
}

func SetSyncRoutes(api *echo.Group, handler *rest.SyncHandler) {
	sync := api.Group("/sync", middleware.AuthMiddleware(), middleware.StaffOnly())
	sync.POST("/run", handler.RunSweep)
	sync.GET("/status", handler.GetStatus)
}

func SetCodesRoutes(api *echo.Group, handler *rest.CodesHandler) {
	codes := api.Group("/codes", middleware.AuthMiddleware(), middleware.StaffOnly())
	codes.POST("", handler.IssueCode)
}
