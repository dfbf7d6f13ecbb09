package rest

import (
	"github.com/Dhoini/subscription-commerce/internal/api/rest/handlers"
	"github.com/Dhoini/subscription-commerce/internal/metrics"
	"github.com/Dhoini/subscription-commerce/internal/middleware"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers - обработчики, собранные контейнером приложения
type Handlers struct {
	Payment      *handlers.PaymentHandler
	Subscription *handlers.SubscriptionHandler
	User         *handlers.UserHandler
	Admin        *handlers.AdminHandler
	Plan         *handlers.PlanHandler
	Services     *handlers.ServicesHandler
	Auth         *middleware.JWTMiddleware
	// Ready - зависимости для /health/ready
	Ready map[string]handlers.Pinger
}

// SetupRouter настраивает маршрутизатор Gin с маршрутами и middleware
func SetupRouter(h Handlers, registry *prometheus.Registry, m metrics.CommerceMetrics, log *logger.Logger) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.HTTPMetrics(m))
	r.Use(gin.Recovery())

	r.GET("/health", handlers.HealthCheck)
	r.GET("/health/ready", handlers.Readiness(h.Ready))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	requireUser := h.Auth.RequireUser()
	requireAdmin := h.Auth.RequireAdmin()

	payment := r.Group("/payment")
	{
		payment.POST("/createOrder", h.Payment.CreateOrder)
		payment.POST("/verifyPayment", h.Payment.VerifyPayment)
	}

	subscription := r.Group("/subscription", requireUser)
	{
		subscription.POST("/user", h.Subscription.User)
		subscription.POST("/completed", h.Subscription.Completed)
		subscription.POST("/inprocess", h.Subscription.InProcess)
		subscription.POST("/cancel", h.Subscription.Cancel)
		subscription.POST("/renew", h.Subscription.Renew)
		subscription.POST("/update", h.Subscription.Update)
	}

	user := r.Group("/user")
	{
		user.POST("/sendOtp", h.User.SendOTP)
		user.POST("/verifyOtp", h.User.VerifyOTP)
		user.POST("/register", h.User.Register)
		user.POST("/login", h.User.Login)
		user.POST("/refreshToken", h.User.RefreshToken)
		user.POST("/logout", h.User.Logout)
		user.POST("/verifyToken", h.User.VerifyToken)
		user.POST("/googleSignIn", h.User.GoogleSignIn)
		user.POST("/forgotPassword", h.User.ForgotPassword)
		user.POST("/resetPassword", h.User.ResetPassword)
		user.POST("/getById", requireAdmin, h.User.GetByID)
		user.GET("/getAll", requireAdmin, h.User.GetAll)
	}

	admin := r.Group("/admin")
	{
		admin.POST("/login", h.Admin.Login)
		admin.POST("/forgotPassword", h.Admin.ForgotPassword)
		admin.POST("/resetPassword", h.Admin.ResetPassword)

		protected := admin.Group("", requireAdmin)
		protected.POST("/updatePassword", h.Admin.UpdatePassword)
		protected.POST("/tasks", h.Admin.Tasks)
		protected.POST("/updateStatus", h.Admin.UpdateStatus)
		protected.POST("/upsertSubscription", h.Admin.UpsertSubscription)
	}

	plan := r.Group("/plan")
	{
		plan.POST("/all", h.Plan.All)
		plan.POST("/getByPlanId", h.Plan.GetByPlanID)
		plan.POST("/getByName", h.Plan.GetByName)
		plan.POST("/getByServiceAndSubService", h.Plan.GetByServiceAndSubService)

		plan.POST("/create", requireAdmin, h.Plan.Create)
		plan.POST("/update", requireAdmin, h.Plan.Update)
		plan.POST("/delete", requireAdmin, h.Plan.Delete)
		plan.POST("/deletePricing", requireAdmin, h.Plan.DeletePricing)
	}

	services := r.Group("/services")
	{
		services.GET("/all", h.Services.All)
		services.POST("/getById", h.Services.GetByID)
		services.POST("/subservice/getById", h.Services.GetSubService)

		services.POST("/create", requireAdmin, h.Services.Create)
		services.POST("/:serviceId/subservice/create", requireAdmin, h.Services.AddSubService)
		services.POST("/update", requireAdmin, h.Services.Update)
	}

	return r
}
