package repository

import (
	"context"

	"github.com/bingooyong/ops-scaffold-framework/firmware/internal/model"
	"gorm.io/gorm"
)

// FirmwareHistoryRepository 固件更新历史访问接口
type FirmwareHistoryRepository interface {
	// Create 追加一条历史记录
	Create(ctx context.Context, history *model.FirmwareHistory) error
	// GetLatestByNodeType 获取节点类型最近一条历史记录
	GetLatestByNodeType(ctx context.Context, nodeType string) (*model.FirmwareHistory, error)
	// List 按时间倒序获取历史记录，nodeType 为空时不过滤
	List(ctx context.Context, nodeType string, limit int) ([]*model.FirmwareHistory, error)
}

// firmwareHistoryRepository 固件更新历史访问实现
type firmwareHistoryRepository struct {
	db *gorm.DB
}

// NewFirmwareHistoryRepository 创建固件更新历史访问实例
func NewFirmwareHistoryRepository(db *gorm.DB) FirmwareHistoryRepository {
	return &firmwareHistoryRepository{db: db}
}

// Create 追加一条历史记录
func (r *firmwareHistoryRepository) Create(ctx context.Context, history *model.FirmwareHistory) error {
	return r.db.WithContext(ctx).Create(history).Error
}

// GetLatestByNodeType 获取节点类型最近一条历史记录
// 同一时间戳按 id 倒序，未找到时返回 gorm.ErrRecordNotFound
func (r *firmwareHistoryRepository) GetLatestByNodeType(ctx context.Context, nodeType string) (*model.FirmwareHistory, error) {
	var history model.FirmwareHistory

	err := r.db.WithContext(ctx).
		Where("node_type = ?", nodeType).
		Order("update_date DESC").
		Order("id DESC").
		First(&history).Error
	if err != nil {
		return nil, err
	}

	return &history, nil
}

// List 按时间倒序获取历史记录
func (r *firmwareHistoryRepository) List(ctx context.Context, nodeType string, limit int) ([]*model.FirmwareHistory, error) {
	histories := make([]*model.FirmwareHistory, 0, limit)

	query := r.db.WithContext(ctx).Model(&model.FirmwareHistory{})
	if nodeType != "" {
		query = query.Where("node_type = ?", nodeType)
	}

	err := query.
		Order("update_date DESC").
		Order("id DESC").
		Limit(limit).
		Find(&histories).Error

	return histories, err
}
