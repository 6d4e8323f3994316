package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bingooyong/ops-scaffold-framework/firmware/internal/metrics"
	"github.com/bingooyong/ops-scaffold-framework/firmware/internal/model"
	"github.com/bingooyong/ops-scaffold-framework/firmware/internal/notify"
	"github.com/bingooyong/ops-scaffold-framework/firmware/internal/repository"
	"github.com/bingooyong/ops-scaffold-framework/firmware/internal/storage"
	"github.com/bingooyong/ops-scaffold-framework/firmware/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// HistoryLimit 历史查询返回的最大条数
const HistoryLimit = 20

// Outcome 元数据写入与通知发布的结果
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeMetadataFailed
	OutcomeNotifyFailed
)

// String 实现 fmt.Stringer
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeMetadataFailed:
		return "metadata_failed"
	case OutcomeNotifyFailed:
		return "notify_failed"
	default:
		return "unknown"
	}
}

// Status 历史记录中的状态
func (o Outcome) Status() string {
	if o == OutcomeSuccess {
		return model.HistoryStatusSuccess
	}
	return model.HistoryStatusFailure
}

// FailedStage 历史记录中的失败阶段
func (o Outcome) FailedStage() string {
	switch o {
	case OutcomeMetadataFailed:
		return model.FailedStageMetadata
	case OutcomeNotifyFailed:
		return model.FailedStageNotify
	default:
		return ""
	}
}

// UploadRequest 固件上传请求
type UploadRequest struct {
	File        []byte // nil 表示未上传文件
	FileName    string
	Version     string
	DeviceType  string
	NodeType    string
	NodeID      string
	Description string
}

// UploadResult 固件上传结果
type UploadResult struct {
	Outcome  Outcome
	URL      string
	Firmware *model.Firmware
	History  *model.FirmwareHistory
}

// LatestFirmware 最新固件信息
type LatestFirmware struct {
	Version string `json:"version"`
	URL     string `json:"url"`
}

// FirmwareService 固件服务接口
type FirmwareService interface {
	// Upload 压缩、存储、记录并通知一次固件上传
	Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error)
	// GetLatestFirmware 获取设备类型的最新固件
	GetLatestFirmware(ctx context.Context, deviceType string) (*LatestFirmware, error)
	// GetHistory 获取最近的更新历史
	GetHistory(ctx context.Context, nodeType string) ([]*model.FirmwareHistory, error)
	// ListFirmware 分页获取固件列表
	ListFirmware(ctx context.Context, deviceType string, page, pageSize int) ([]*model.Firmware, int64, error)
}

// firmwareService 固件服务实现
type firmwareService struct {
	firmwareRepo repository.FirmwareRepository
	historyRepo  repository.FirmwareHistoryRepository
	blobStore    storage.BlobStore
	publisher    notify.Publisher
	topicPrefix  string
	logger       *zap.Logger
	now          func() time.Time
}

// NewFirmwareService 创建固件服务实例
func NewFirmwareService(
	firmwareRepo repository.FirmwareRepository,
	historyRepo repository.FirmwareHistoryRepository,
	blobStore storage.BlobStore,
	publisher notify.Publisher,
	topicPrefix string,
	logger *zap.Logger,
) FirmwareService {
	return &firmwareService{
		firmwareRepo: firmwareRepo,
		historyRepo:  historyRepo,
		blobStore:    blobStore,
		publisher:    publisher,
		topicPrefix:  topicPrefix,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Upload 处理一次固件上传
// 校验失败、压缩失败、对象存储失败时直接返回错误且不写历史；
// 元数据或通知失败时仍写入历史记录，并返回结果和错误
func (s *firmwareService) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	// 主题只在显式指定节点类型时增加一级
	topicNodeType := strings.TrimSpace(req.NodeType)
	if err := normalizeUploadRequest(req); err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("%s_v%s.gz", req.NodeType, req.Version)
	objectKey := fmt.Sprintf("node-%s/%s", req.NodeID, filename)

	log := s.logger.With(
		zap.String("device_type", req.DeviceType),
		zap.String("node_type", req.NodeType),
		zap.String("version", req.Version),
		zap.String("object_key", objectKey),
	)

	compressed, err := compressFirmware(req.FileName, req.File)
	if err != nil {
		log.Error("failed to compress firmware", zap.Error(err))
		return nil, errors.Wrap(errors.ErrCompression, "failed to compress firmware", err)
	}

	url, err := s.blobStore.Put(ctx, objectKey, compressed)
	if err != nil {
		log.Error("failed to upload firmware to object store", zap.Error(err))
		return nil, errors.Wrap(errors.ErrBlobStorage, "failed to upload firmware", err)
	}

	log.Info("firmware stored",
		zap.Int("raw_bytes", len(req.File)),
		zap.Int("compressed_bytes", len(compressed)))

	// 对象已写入，之后的记录与通知不随请求取消，保证历史记录写入
	// 发布由 MQTT 发布超时约束
	ctx = context.WithoutCancel(ctx)

	versionFrom := s.previousVersion(ctx, req.NodeType)

	uploadedAt := s.now()
	firmware := &model.Firmware{
		Filename:       filename,
		Version:        req.Version,
		DeviceType:     req.DeviceType,
		NodeType:       req.NodeType,
		Description:    req.Description,
		ObjectKey:      objectKey,
		URL:            url,
		FileSize:       int64(len(req.File)),
		CompressedSize: int64(len(compressed)),
		Checksum:       checksum(req.File),
		UploadDate:     uploadedAt,
	}

	outcome := s.recordAndNotify(ctx, firmware, topicNodeType, log)

	history := &model.FirmwareHistory{
		NodeType:    req.NodeType,
		DeviceType:  req.DeviceType,
		VersionFrom: versionFrom,
		VersionTo:   req.Version,
		Status:      outcome.Status(),
		FailedStage: outcome.FailedStage(),
		Description: req.Description,
		UpdateDate:  s.now(),
	}

	if err := s.historyRepo.Create(ctx, history); err != nil {
		log.Error("failed to record firmware history",
			zap.String("outcome", outcome.String()),
			zap.Error(err))
		metrics.Upload(req.DeviceType, outcome.String(), len(compressed))
		return nil, errors.Wrap(errors.ErrDatabase, "failed to record firmware history", err)
	}

	metrics.Upload(req.DeviceType, outcome.String(), len(compressed))

	result := &UploadResult{
		Outcome: outcome,
		URL:     url,
		History: history,
	}
	if outcome != OutcomeMetadataFailed {
		result.Firmware = firmware
	}

	switch outcome {
	case OutcomeMetadataFailed:
		return result, errors.ErrFirmwareRecordFailedMsg
	case OutcomeNotifyFailed:
		return result, errors.ErrFirmwarePublishFailedMsg
	}

	log.Info("firmware upload completed",
		zap.String("version_from", versionFrom),
		zap.Uint("history_id", history.ID))

	return result, nil
}

// recordAndNotify 写入固件记录并发布通知，失败不中断请求
func (s *firmwareService) recordAndNotify(ctx context.Context, firmware *model.Firmware, topicNodeType string, log *zap.Logger) Outcome {
	if err := s.firmwareRepo.Create(ctx, firmware); err != nil {
		log.Error("failed to record firmware metadata", zap.Error(err))
		return OutcomeMetadataFailed
	}

	notification := &notify.Notification{
		DeviceType: firmware.DeviceType,
		NodeType:   topicNodeType,
		Version:    firmware.Version,
		URL:        firmware.URL,
		Checksum:   firmware.Checksum,
		Timestamp:  firmware.UploadDate,
	}

	payload, err := notification.Encode()
	if err != nil {
		log.Error("failed to encode firmware notification", zap.Error(err))
		return OutcomeNotifyFailed
	}

	topic := notify.Topic(s.topicPrefix, firmware.DeviceType, topicNodeType)
	if err := s.publisher.Publish(ctx, topic, payload); err != nil {
		log.Error("failed to publish firmware notification",
			zap.String("topic", topic),
			zap.Error(err))
		return OutcomeNotifyFailed
	}

	log.Info("firmware notification published", zap.String("topic", topic))
	return OutcomeSuccess
}

// previousVersion 查询该节点类型上一次记录的目标版本
// 无记录返回空串；查询出错同样返回空串，历史记录仍需写入
func (s *firmwareService) previousVersion(ctx context.Context, nodeType string) string {
	last, err := s.historyRepo.GetLatestByNodeType(ctx, nodeType)
	if err != nil {
		if !stderrors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("failed to look up previous firmware version",
				zap.String("node_type", nodeType),
				zap.Error(err))
		}
		return ""
	}
	return last.VersionTo
}

// GetLatestFirmware 获取设备类型的最新固件
// 链接由对象键重新生成，生成失败时退回上传时保存的链接
func (s *firmwareService) GetLatestFirmware(ctx context.Context, deviceType string) (*LatestFirmware, error) {
	deviceType = strings.TrimSpace(deviceType)
	if deviceType == "" {
		deviceType = model.DefaultDeviceType
	}

	firmware, err := s.firmwareRepo.GetLatestByDeviceType(ctx, deviceType)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrFirmwareNotFoundMsg
		}
		s.logger.Error("failed to get latest firmware", zap.String("device_type", deviceType), zap.Error(err))
		return nil, errors.Wrap(errors.ErrDatabase, "database error", err)
	}

	url, err := s.blobStore.Link(ctx, firmware.ObjectKey)
	if err != nil {
		s.logger.Warn("failed to regenerate firmware link, using stored url",
			zap.String("object_key", firmware.ObjectKey),
			zap.Error(err))
		url = firmware.URL
	}

	return &LatestFirmware{
		Version: firmware.Version,
		URL:     url,
	}, nil
}

// GetHistory 获取最近的更新历史
func (s *firmwareService) GetHistory(ctx context.Context, nodeType string) ([]*model.FirmwareHistory, error) {
	histories, err := s.historyRepo.List(ctx, strings.TrimSpace(nodeType), HistoryLimit)
	if err != nil {
		s.logger.Error("failed to list firmware history", zap.String("node_type", nodeType), zap.Error(err))
		return nil, errors.Wrap(errors.ErrDatabase, "database error", err)
	}
	return histories, nil
}

// ListFirmware 分页获取固件列表
func (s *firmwareService) ListFirmware(ctx context.Context, deviceType string, page, pageSize int) ([]*model.Firmware, int64, error) {
	firmwares, total, err := s.firmwareRepo.List(ctx, strings.TrimSpace(deviceType), page, pageSize)
	if err != nil {
		s.logger.Error("failed to list firmware", zap.Error(err))
		return nil, 0, errors.Wrap(errors.ErrDatabase, "database error", err)
	}
	return firmwares, total, nil
}

// normalizeUploadRequest 校验请求并补全默认值
// 未指定节点类型时沿用设备类型，未指定节点ID时沿用节点类型
func normalizeUploadRequest(req *UploadRequest) error {
	if req.File == nil {
		return errors.ErrMissingFileMsg
	}

	req.Version = strings.TrimSpace(req.Version)
	if req.Version == "" {
		return errors.ErrMissingVersionMsg
	}

	req.DeviceType = strings.TrimSpace(req.DeviceType)
	if req.DeviceType == "" {
		req.DeviceType = model.DefaultDeviceType
	}

	req.NodeType = strings.TrimSpace(req.NodeType)
	if req.NodeType == "" {
		req.NodeType = req.DeviceType
	}

	req.NodeID = strings.TrimSpace(req.NodeID)
	if req.NodeID == "" {
		req.NodeID = req.NodeType
	}

	for _, v := range []string{req.Version, req.DeviceType, req.NodeType, req.NodeID} {
		// 路径分隔符会改变对象键，MQTT 通配符和 NUL 不能出现在发布主题中
		if strings.ContainsAny(v, "/\\+#\x00") || strings.Contains(v, "..") {
			return errors.ErrInvalidIdentifierMsg
		}
	}

	req.Description = strings.TrimSpace(req.Description)

	limits := []struct {
		value string
		max   int
	}{
		{req.Version, model.MaxVersionLength},
		{req.DeviceType, model.MaxTypeLength},
		{req.NodeType, model.MaxTypeLength},
		{req.NodeID, model.MaxNodeIDLength},
		{req.Description, model.MaxDescriptionLength},
	}
	for _, l := range limits {
		if utf8.RuneCountInString(l.value) > l.max {
			return errors.ErrFieldTooLongMsg
		}
	}

	return nil
}
