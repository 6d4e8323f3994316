package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/bingooyong/ops-scaffold-framework/firmware/internal/version"
	"github.com/bingooyong/ops-scaffold-framework/firmware/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ConnectionChecker 报告外部连接状态
type ConnectionChecker interface {
	IsConnected() bool
}

// HealthStatus 健康检查结果
type HealthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	MQTT     string `json:"mqtt"`
	Time     string `json:"time"`
}

// SystemHandler 系统处理器
type SystemHandler struct {
	db     *gorm.DB
	mqtt   ConnectionChecker
	logger *zap.Logger
}

// NewSystemHandler 创建系统处理器实例
func NewSystemHandler(db *gorm.DB, mqtt ConnectionChecker, logger *zap.Logger) *SystemHandler {
	return &SystemHandler{
		db:     db,
		mqtt:   mqtt,
		logger: logger,
	}
}

// Health 健康检查
// 数据库不可用时返回503；MQTT断开只降级，上传仍会写入失败历史
func (h *SystemHandler) Health(c *gin.Context) {
	status := HealthStatus{
		Status:   "ok",
		Database: "up",
		MQTT:     "connected",
		Time:     time.Now().Format(time.RFC3339),
	}

	if err := h.pingDatabase(c.Request.Context()); err != nil {
		h.logger.Warn("health check: database unavailable", zap.Error(err))
		status.Status = "unavailable"
		status.Database = "down"
	}

	if h.mqtt != nil && !h.mqtt.IsConnected() {
		status.MQTT = "disconnected"
		if status.Status == "ok" {
			status.Status = "degraded"
		}
	}

	code := http.StatusOK
	if status.Database == "down" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

// Version 构建信息
func (h *SystemHandler) Version(c *gin.Context) {
	response.Success(c, version.Get())
}

func (h *SystemHandler) pingDatabase(ctx context.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}
