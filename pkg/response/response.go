package response

import (
	stderrors "errors"
	"net/http"
	"time"

	"github.com/bingooyong/ops-scaffold-framework/firmware/pkg/errors"
	"github.com/gin-gonic/gin"
)

// Response API响应结构
// 错误响应额外携带 error 字段，兼容上传页面读取 errorData.error
type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Error     string      `json:"error,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// PageInfo 分页信息
type PageInfo struct {
	Page     int   `json:"page"`      // 当前页码
	PageSize int   `json:"page_size"` // 每页大小
	Total    int64 `json:"total"`     // 总记录数
	Pages    int   `json:"pages"`     // 总页数
}

// PageData 分页数据
type PageData struct {
	List     interface{} `json:"list"`
	PageInfo PageInfo    `json:"page_info"`
}

// Raw 返回不带包装的响应体
// 设备端固件客户端直接解析 /upload、/latest、/history 的原始结构
func Raw(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Success 返回成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:      0,
		Message:   "success",
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// Error 返回错误响应
func Error(c *gin.Context, err *errors.APIError) {
	c.JSON(err.GetHTTPStatus(), Response{
		Code:      int(err.Code),
		Message:   err.Message,
		Error:     err.Message,
		Data:      err.Details,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// FromError 将任意错误转换为响应，非 APIError 按 500 处理
func FromError(c *gin.Context, err error) {
	var apiErr *errors.APIError
	if stderrors.As(err, &apiErr) {
		Error(c, apiErr)
		return
	}
	InternalServerError(c, err.Error())
}

// ErrorWithMessage 返回带自定义消息的错误响应
func ErrorWithMessage(c *gin.Context, code errors.ErrorCode, message string) {
	err := errors.New(code, message)
	c.JSON(err.GetHTTPStatus(), Response{
		Code:      int(err.Code),
		Message:   err.Message,
		Error:     err.Message,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// BadRequest 返回400错误
func BadRequest(c *gin.Context, message string) {
	ErrorWithMessage(c, errors.ErrInvalidParams, message)
}

// NotFound 返回404错误
func NotFound(c *gin.Context, message string) {
	ErrorWithMessage(c, errors.ErrNotFound, message)
}

// InternalServerError 返回500错误
func InternalServerError(c *gin.Context, message string) {
	ErrorWithMessage(c, errors.ErrInternalServer, message)
}

// Page 返回分页响应
func Page(c *gin.Context, list interface{}, page, pageSize int, total int64) {
	pages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		pages++
	}

	Success(c, PageData{
		List: list,
		PageInfo: PageInfo{
			Page:     page,
			PageSize: pageSize,
			Total:    total,
			Pages:    pages,
		},
	})
}
