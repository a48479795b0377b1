package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lcs-classroom/backend/config"
	"lcs-classroom/backend/internal/api/handler"
	"lcs-classroom/backend/internal/api/middleware"
	"lcs-classroom/backend/internal/model"
	"lcs-classroom/backend/pkg/jwt"
	"lcs-classroom/backend/pkg/metrics"
	"lcs-classroom/backend/pkg/redis"
	"lcs-classroom/backend/pkg/validator"
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 可为 nil：黑名单与限流随之降级
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, m *metrics.Metrics, logger *zap.Logger) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)

	if err := validator.Register(); err != nil {
		return nil, err
	}

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics(m))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	if cfg.Server.MaxBodyBytes > 0 {
		r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))
	}

	// ── 健康检查 / 指标 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	adminOnly := middleware.RoleAuth(model.RoleAdmin)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证，按 IP 限流）
		auth := v1.Group("/auth")
		auth.Use(middleware.RateLimit(rdb, cfg.Server.RateLimit.Limit, cfg.Server.RateLimit.Window))
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
		}

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, rdb))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.GetCurrentUser)

			// 用户模块
			authorized.GET("/users", adminOnly, h.User.ListUsers)

			// 课程模块（静态路径先于 :id 注册）
			classes := authorized.Group("/classes")
			{
				classes.GET("", h.Class.List)
				classes.GET("/enrolled", h.Class.ListEnrolled)
				classes.GET("/calendar", h.Export.Calendar)
				classes.GET("/:id", h.Class.GetByID)
				classes.POST("", adminOnly, h.Class.Create)
				classes.PUT("/:id", adminOnly, h.Class.Update)
				classes.DELETE("/:id", adminOnly, h.Class.Delete)

				// 视频：查看由 AccessGate 判定，增删仅管理员
				classes.GET("/:id/videos", h.Video.ListByClass)
				classes.POST("/:id/videos", adminOnly, h.Video.Create)

				// 选课名单
				classes.GET("/:id/enrollments", adminOnly, h.Enrollment.ListForClass)
				classes.GET("/:id/enrollments/export", adminOnly, h.Export.ExportRoster)
			}

			authorized.DELETE("/videos/:id", adminOnly, h.Video.Delete)

			// 选课模块
			enrollments := authorized.Group("/enrollments")
			{
				enrollments.POST("", h.Enrollment.Request)
				enrollments.GET("/me", h.Enrollment.ListMine)
				enrollments.GET("/:userId/:classId", h.Enrollment.GetStatus) // 本人或管理员（Service 层鉴权）
				enrollments.PATCH("/:userId/:classId", adminOnly, h.Enrollment.UpdateStatus)
			}
		}
	}

	return r, nil
}
