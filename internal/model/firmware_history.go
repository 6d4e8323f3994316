package model

import (
	"time"
)

// 更新状态
const (
	HistoryStatusSuccess = "Success"
	HistoryStatusFailure = "Failure"
)

// 失败阶段
const (
	FailedStageMetadata = "metadata"
	FailedStageNotify   = "notify"
)

// FirmwareHistory 固件更新历史，每次上传尝试一行（无论成功失败）
type FirmwareHistory struct {
	ID uint `gorm:"primarykey" json:"id"`

	NodeType    string `gorm:"size:50;index:idx_node_update" json:"node_type"`
	DeviceType  string `gorm:"size:50;not null" json:"device_type"`
	VersionFrom string `gorm:"size:50" json:"version_from"` // 该节点类型上一次记录的版本，没有则为空
	VersionTo   string `gorm:"size:50;not null" json:"version_to"`

	Status      string `gorm:"size:20;not null" json:"status"` // Success, Failure
	FailedStage string `gorm:"size:20" json:"failed_stage,omitempty"`
	Description string `gorm:"type:text" json:"description"`

	UpdateDate time.Time `gorm:"not null;index:idx_node_update" json:"update_date"`
}

// TableName 指定表名
func (FirmwareHistory) TableName() string {
	return "firmware_histories"
}

// IsSuccess 是否更新成功
func (h *FirmwareHistory) IsSuccess() bool {
	return h.Status == HistoryStatusSuccess
}
