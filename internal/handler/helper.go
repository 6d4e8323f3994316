package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// parseIntQuery 解析整数查询参数
func parseIntQuery(c *gin.Context, key string, defaultValue int) int {
	valueStr := c.Query(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// parseStringQuery 解析字符串查询参数
func parseStringQuery(c *gin.Context, key string, defaultValue string) string {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return defaultValue
	}
	return value
}

// normalizePage 规范化分页参数
func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
