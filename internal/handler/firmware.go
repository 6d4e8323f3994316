package handler

import (
	stderrors "errors"
	"io"
	"net/http"

	"github.com/bingooyong/ops-scaffold-framework/firmware/internal/service"
	"github.com/bingooyong/ops-scaffold-framework/firmware/pkg/errors"
	"github.com/bingooyong/ops-scaffold-framework/firmware/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UploadResponse 上传成功响应
type UploadResponse struct {
	Message string `json:"message"`
	URL     string `json:"url"`
}

// FirmwareHandler 固件处理器
type FirmwareHandler struct {
	firmwareService service.FirmwareService
	maxUploadSize   int64
	logger          *zap.Logger
}

// NewFirmwareHandler 创建固件处理器实例
func NewFirmwareHandler(firmwareService service.FirmwareService, maxUploadSize int64, logger *zap.Logger) *FirmwareHandler {
	return &FirmwareHandler{
		firmwareService: firmwareService,
		maxUploadSize:   maxUploadSize,
		logger:          logger,
	}
}

// Upload 上传固件
// multipart 字段: file, version, device_type, node_type, node_id, description
func (h *FirmwareHandler) Upload(c *gin.Context) {
	if h.maxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)
	}

	req := &service.UploadRequest{}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			response.Error(c, errors.ErrPayloadTooLargeMsg)
			return
		}
		if !stderrors.Is(err, http.ErrMissingFile) && !stderrors.Is(err, http.ErrNotMultipart) {
			h.logger.Warn("failed to parse upload form", zap.Error(err))
		}
	} else {
		file, err := fileHeader.Open()
		if err != nil {
			response.FromError(c, errors.Wrap(errors.ErrInvalidParams, "failed to open uploaded file", err))
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			response.FromError(c, errors.Wrap(errors.ErrInvalidParams, "failed to read uploaded file", err))
			return
		}
		req.File = data
		req.FileName = fileHeader.Filename
	}

	req.Version = c.PostForm("version")
	req.DeviceType = c.PostForm("device_type")
	req.NodeType = c.PostForm("node_type")
	req.NodeID = c.PostForm("node_id")
	req.Description = c.PostForm("description")

	result, err := h.firmwareService.Upload(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Raw(c, UploadResponse{
		Message: "Firmware uploaded successfully",
		URL:     result.URL,
	})
}

// Latest 获取设备类型的最新固件
func (h *FirmwareHandler) Latest(c *gin.Context) {
	deviceType := parseStringQuery(c, "device_type", "")

	latest, err := h.firmwareService.GetLatestFirmware(c.Request.Context(), deviceType)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Raw(c, latest)
}

// History 获取最近的更新历史
func (h *FirmwareHandler) History(c *gin.Context) {
	nodeType := parseStringQuery(c, "node_type", "")

	histories, err := h.firmwareService.GetHistory(c.Request.Context(), nodeType)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Raw(c, histories)
}

// List 分页获取固件列表
func (h *FirmwareHandler) List(c *gin.Context) {
	page, pageSize := normalizePage(
		parseIntQuery(c, "page", 1),
		parseIntQuery(c, "page_size", 20),
	)
	deviceType := parseStringQuery(c, "device_type", "")

	firmwares, total, err := h.firmwareService.ListFirmware(c.Request.Context(), deviceType, page, pageSize)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Page(c, firmwares, page, pageSize, total)
}
