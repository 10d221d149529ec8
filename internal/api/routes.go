package api

import (
	"fitpanel/member-app/internal/domain"
	"fitpanel/member-app/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authService service.AuthService,
	lifecycleService service.LifecycleService,
	measurementService service.MeasurementService,
) {
	authHandler := NewAuthHandler(authService)
	accountHandler := NewAccountHandler(lifecycleService)
	measurementHandler := NewMeasurementHandler(measurementService, lifecycleService)
	planHandler := NewPlanHandler(lifecycleService)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/change-password", authHandler.ChangePassword)
		}
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			accountID, err := getAccountIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get account ID from token")
				return
			}
			role, _ := getRoleFromContext(c)
			c.JSON(http.StatusOK, gin.H{"accountId": accountID, "role": role})
		})

		// --- Plan catalog ---
		planGroup := protected.Group("/plans")
		{
			planGroup.GET("", planHandler.List)
			planGroup.POST("/:planId/reconcile", RoleMiddleware(domain.RoleTrainer), planHandler.Reconcile)
		}

		// --- Trainer accounts ---
		trainerGroup := protected.Group("/trainers")
		{
			trainerGroup.POST("", accountHandler.CreateTrainer)
			trainerGroup.GET("", accountHandler.GetTrainers)
			trainerGroup.GET("/:id", accountHandler.GetTrainer)
			trainerGroup.PUT("/:id", accountHandler.UpdateTrainer)
			trainerGroup.PUT("/:id/status", accountHandler.SetTrainerStatus)
			trainerGroup.DELETE("/:id", accountHandler.DeleteTrainer)
		}

		// --- Customer accounts: trainer-managed ---
		customerGroup := protected.Group("/customers")
		customerGroup.Use(RoleMiddleware(domain.RoleTrainer))
		{
			customerGroup.POST("", accountHandler.CreateCustomer)
			customerGroup.GET("", accountHandler.GetCustomersByTrainer)
			customerGroup.PUT("/:id", accountHandler.UpdateCustomer)
			customerGroup.PUT("/:id/status", accountHandler.SetCustomerStatus)
			customerGroup.DELETE("/:id", accountHandler.DeleteCustomer)

			customerGroup.GET("/:id/measurements", measurementHandler.List)
			customerGroup.POST("/:id/measurements", measurementHandler.Append)
			customerGroup.DELETE("/:id/measurements/:index", measurementHandler.DeleteAt)

			customerGroup.POST("/:id/plans", measurementHandler.UploadPlans)
		}

		// --- Cross-role operations ---
		protected.PUT("/accounts/:role/:id/plan", RoleMiddleware(domain.RoleTrainer), accountHandler.ChangePlan)
		protected.POST("/accounts/lookup", accountHandler.LookupByEmail)
	}
}
