package server

import (
	"github.com/bingooyong/ops-scaffold-framework/firmware/internal/handler"
	"github.com/bingooyong/ops-scaffold-framework/firmware/internal/metrics"
	"github.com/bingooyong/ops-scaffold-framework/firmware/internal/middleware"
	"github.com/bingooyong/ops-scaffold-framework/firmware/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers 路由依赖的处理器
type Handlers struct {
	Firmware *handler.FirmwareHandler
	System   *handler.SystemHandler
}

// NewRouter 创建Gin引擎并注册中间件和路由
func NewRouter(h Handlers, maxMultipartMemory int64, log *zap.Logger) *gin.Engine {
	router := gin.New()
	if maxMultipartMemory > 0 {
		router.MaxMultipartMemory = maxMultipartMemory
	}

	// 全局中间件
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))
	router.Use(middleware.CORS())

	// 固件分发，设备端直接解析响应体
	router.POST("/upload", h.Firmware.Upload)
	router.GET("/latest", h.Firmware.Latest)
	router.GET("/history", h.Firmware.History)
	router.GET("/firmware", h.Firmware.List)

	// 运维
	router.GET("/health", h.System.Health)
	router.GET("/version", h.System.Version)
	router.GET("/metrics", metrics.Handler())

	router.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "route not found")
	})

	return router
}
