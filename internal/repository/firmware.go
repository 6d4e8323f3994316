package repository

import (
	"context"

	"github.com/bingooyong/ops-scaffold-framework/firmware/internal/model"
	"gorm.io/gorm"
)

// FirmwareRepository 固件元数据访问接口
type FirmwareRepository interface {
	// Create 写入固件记录
	Create(ctx context.Context, firmware *model.Firmware) error
	// GetLatestByDeviceType 获取设备类型最新上传的固件
	GetLatestByDeviceType(ctx context.Context, deviceType string) (*model.Firmware, error)
	// List 分页获取固件列表，deviceType 为空时不过滤
	List(ctx context.Context, deviceType string, page, pageSize int) ([]*model.Firmware, int64, error)
}

// firmwareRepository 固件元数据访问实现
type firmwareRepository struct {
	db *gorm.DB
}

// NewFirmwareRepository 创建固件元数据访问实例
func NewFirmwareRepository(db *gorm.DB) FirmwareRepository {
	return &firmwareRepository{db: db}
}

// Create 写入固件记录
func (r *firmwareRepository) Create(ctx context.Context, firmware *model.Firmware) error {
	return r.db.WithContext(ctx).Create(firmware).Error
}

// GetLatestByDeviceType 获取设备类型最新上传的固件
// 未找到时返回 gorm.ErrRecordNotFound
func (r *firmwareRepository) GetLatestByDeviceType(ctx context.Context, deviceType string) (*model.Firmware, error) {
	var firmware model.Firmware

	err := r.db.WithContext(ctx).
		Where("device_type = ?", deviceType).
		Order("upload_date DESC").
		Order("id DESC").
		First(&firmware).Error
	if err != nil {
		return nil, err
	}

	return &firmware, nil
}

// List 分页获取固件列表
func (r *firmwareRepository) List(ctx context.Context, deviceType string, page, pageSize int) ([]*model.Firmware, int64, error) {
	var firmwares []*model.Firmware
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Firmware{})
	if deviceType != "" {
		query = query.Where("device_type = ?", deviceType)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Offset(offset).
		Limit(pageSize).
		Order("upload_date DESC").
		Order("id DESC").
		Find(&firmwares).Error

	return firmwares, total, err
}
