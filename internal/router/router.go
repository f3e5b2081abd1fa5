package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/rcffuta/elib-api/internal/handler"
	"github.com/rcffuta/elib-api/internal/middleware"
	"github.com/rcffuta/elib-api/internal/models"
	"github.com/rcffuta/elib-api/internal/service"
	"github.com/rcffuta/elib-api/pkg/logger"
	corsmiddleware "github.com/rcffuta/elib-api/pkg/middleware/cors"
	"github.com/rcffuta/elib-api/pkg/middleware/ratelimit"
	reqidmiddleware "github.com/rcffuta/elib-api/pkg/middleware/requestid"
)

// Handlers groups every HTTP handler mounted by the router.
type Handlers struct {
	Auth      *handler.AuthHandler
	Library   *handler.LibraryHandler
	Courses   *handler.CourseHandler
	Materials *handler.MaterialHandler
	Analytics *handler.AnalyticsHandler
	Reports   *handler.ReportHandler
	Metrics   *handler.MetricsHandler
}

// Options configures route registration.
type Options struct {
	APIPrefix          string
	CookieName         string
	AllowedOrigins     []string
	EnableSwagger      bool
	DownloadsPerMinute int
	LoginPerMinute     int
}

// New builds the gin engine with middleware and all routes registered.
// Handlers left nil are not mounted.
func New(opts Options, logr *zap.Logger, metrics *service.MetricsService, tokens middleware.TokenValidator, h Handlers) *gin.Engine {
	if logr == nil {
		logr = zap.NewNop()
	}
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api/v1"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	if h.Metrics != nil {
		r.GET("/health", h.Metrics.Health)
		r.GET("/ready", h.Metrics.Ready)
		r.GET("/metrics", h.Metrics.Prometheus)
	}
	if opts.EnableSwagger {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(opts.APIPrefix)
	auth := middleware.JWT(tokens, opts.CookieName)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	if h.Auth != nil {
		loginLimiter := ratelimit.NewPerMinute(opts.LoginPerMinute)
		authGroup := api.Group("/auth")
		authGroup.POST("/login", loginLimiter.Middleware(nil), h.Auth.Login)
		authGroup.POST("/refresh", loginLimiter.Middleware(nil), h.Auth.Refresh)
		authGroup.POST("/logout", auth, h.Auth.Logout)
		authGroup.GET("/me", auth, h.Auth.Me)
	}

	if h.Library != nil {
		downloadLimiter := ratelimit.NewPerMinute(opts.DownloadsPerMinute)
		library := api.Group("/library", auth)
		library.GET("/dashboard", h.Library.Dashboard)
		library.GET("/courses/:id/materials", h.Library.CourseMaterials)
		library.POST("/materials/:id/download", downloadLimiter.Middleware(userOrIP), h.Library.Download)
	}

	admin := api.Group("/admin", auth, adminOnly)
	if h.Courses != nil {
		admin.GET("/courses", h.Courses.List)
		admin.GET("/courses/options", h.Courses.Options)
		admin.POST("/courses", h.Courses.Create)
		admin.DELETE("/courses/:id", h.Courses.Delete)
	}
	if h.Materials != nil {
		admin.POST("/materials", h.Materials.Create)
		admin.POST("/uploads/signature", h.Materials.UploadSignature)
	}
	if h.Analytics != nil {
		admin.GET("/stats", h.Analytics.Stats)
		admin.GET("/analytics", h.Analytics.Snapshot)
		admin.GET("/analytics/system", h.Analytics.System)
	}
	if h.Reports != nil {
		admin.GET("/reports", h.Reports.List)
		admin.POST("/reports", h.Reports.Generate)
		admin.GET("/reports/:id", h.Reports.Status)
		// The signed token authorises the download on its own.
		api.GET("/admin/reports/download/:token", h.Reports.Download)
	}

	return r
}

func userOrIP(c *gin.Context) string {
	if id := c.GetString(logger.UserIDKey); id != "" {
		return "user:" + id
	}
	return "ip:" + c.ClientIP()
}
