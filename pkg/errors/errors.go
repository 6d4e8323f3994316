package errors

import "fmt"

// ErrorCode 错误码
type ErrorCode int

const (
	// 0: 成功
	Success ErrorCode = 0

	// 1xxx: 客户端错误
	ErrInvalidParams     ErrorCode = 1001 // 参数错误
	ErrNotFound          ErrorCode = 1004 // 资源不存在
	ErrPayloadTooLarge   ErrorCode = 1010 // 请求体过大
	ErrTooManyRequests   ErrorCode = 1006 // 请求过多
	ErrMissingFile       ErrorCode = 1101 // 缺少固件文件
	ErrMissingVersion    ErrorCode = 1102 // 缺少版本号
	ErrInvalidIdentifier ErrorCode = 1103 // 版本号或类型包含非法字符
	ErrFieldTooLong      ErrorCode = 1104 // 字段超出长度限制

	// 4xxx: 固件业务错误
	ErrFirmwareNotFound      ErrorCode = 4001 // 固件不存在
	ErrFirmwareRecordFailed  ErrorCode = 4501 // 固件元数据写入失败
	ErrFirmwarePublishFailed ErrorCode = 4502 // 固件通知发布失败

	// 5xxx: 服务器内部错误
	ErrInternalServer ErrorCode = 5001 // 服务器内部错误
	ErrDatabase       ErrorCode = 5002 // 数据库错误
	ErrBlobStorage    ErrorCode = 5005 // 对象存储错误
	ErrCompression    ErrorCode = 5006 // 压缩错误
)

// APIError API错误
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"` // 详细错误信息（可选）
}

// Error 实现error接口
func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Is 按错误码比较，便于 errors.Is 匹配预定义错误
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New 创建API错误
func New(code ErrorCode, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装标准错误
func Wrap(code ErrorCode, message string, err error) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Details: err.Error(),
	}
}

// 预定义的错误
var (
	// 客户端错误
	ErrInvalidParamsMsg     = New(ErrInvalidParams, "invalid parameters")
	ErrNotFoundMsg          = New(ErrNotFound, "resource not found")
	ErrPayloadTooLargeMsg   = New(ErrPayloadTooLarge, "upload exceeds size limit")
	ErrMissingFileMsg       = New(ErrMissingFile, "no firmware file uploaded")
	ErrMissingVersionMsg    = New(ErrMissingVersion, "version is required")
	ErrInvalidIdentifierMsg = New(ErrInvalidIdentifier, "version, device_type, node_type and node_id must not contain path separators, '..', '+', '#' or NUL")
	ErrFieldTooLongMsg      = New(ErrFieldTooLong, "version and types are limited to 50 characters, node_id to 100, description to 4096")

	// 业务错误
	ErrFirmwareNotFoundMsg      = New(ErrFirmwareNotFound, "firmware not found")
	ErrFirmwareRecordFailedMsg  = New(ErrFirmwareRecordFailed, "firmware uploaded but metadata could not be recorded")
	ErrFirmwarePublishFailedMsg = New(ErrFirmwarePublishFailed, "firmware uploaded but update notification failed")

	// 服务器错误
	ErrInternalServerMsg = New(ErrInternalServer, "internal server error")
	ErrDatabaseMsg       = New(ErrDatabase, "database error")
	ErrBlobStorageMsg    = New(ErrBlobStorage, "object storage error")
	ErrCompressionMsg    = New(ErrCompression, "failed to compress firmware")
)

// GetHTTPStatus 获取HTTP状态码
func (e *APIError) GetHTTPStatus() int {
	switch {
	case e.Code >= 1000 && e.Code < 2000:
		switch e.Code {
		case ErrNotFound:
			return 404
		case ErrPayloadTooLarge:
			return 413
		case ErrTooManyRequests:
			return 429
		default:
			return 400
		}
	case e.Code >= 4000 && e.Code < 5000:
		switch {
		case e.Code == ErrFirmwareNotFound:
			return 404
		case e.Code >= 4500:
			// 下游失败，历史记录已写入
			return 500
		default:
			return 400
		}
	default:
		return 500
	}
}
