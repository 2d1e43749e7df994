package handler

import (
	"net/http"

	"crowdfunding/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 配置路由
func SetupRouter(cfg *config.Config, h *Handler, gatherer prometheus.Gatherer) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	auth := AuthMiddleware([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer)
	limiter := NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)

	api := r.Group("/api/v1")
	{
		// 查询接口不需要鉴权，按 IP 限流
		query := api.Group("", limiter.Middleware())
		{
			query.GET("/project/detail", h.GetProject)
			query.GET("/account/balance", h.GetBalance)
		}

		// 状态迁移接口：先鉴权拿到调用者，再按调用者限流
		project := api.Group("/project", auth, limiter.Middleware())
		{
			project.POST("/initiate", h.InitiateProject)
			project.POST("/fund", h.FundProject)
			project.POST("/stop", h.StopProject)
		}

		account := api.Group("/account", auth, limiter.Middleware())
		{
			account.POST("/recharge", h.Recharge)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return r
}
