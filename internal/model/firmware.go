package model

import (
	"time"
)

// DefaultDeviceType 未指定设备类型时使用的硬件系列
const DefaultDeviceType = "esp32"

// 与列宽保持一致，按字符计数
const (
	MaxVersionLength     = 50   // version, version_from, version_to
	MaxTypeLength        = 50   // device_type, node_type
	MaxNodeIDLength      = 100  // 只出现在 object_key 中
	MaxDescriptionLength = 4096 // text 列
)

// Firmware 固件制品模型，每次成功上传一行
type Firmware struct {
	ID uint `gorm:"primarykey" json:"id"`

	Filename    string `gorm:"size:200;not null" json:"filename"` // {node_type}_v{version}.gz
	Version     string `gorm:"size:50;not null" json:"version"`   // 版本号，不做语义校验
	DeviceType  string `gorm:"size:50;not null;index:idx_device_upload" json:"device_type"`
	NodeType    string `gorm:"size:50;index" json:"node_type"`
	Description string `gorm:"type:text" json:"description"`

	ObjectKey string `gorm:"size:300;not null" json:"object_key"` // 对象存储中的键
	URL       string `gorm:"size:4096;not null" json:"url"`       // 上传时返回的链接，可能已过期

	FileSize       int64  `gorm:"not null" json:"file_size"`        // 原始字节数
	CompressedSize int64  `gorm:"not null" json:"compressed_size"`  // 压缩后字节数
	Checksum       string `gorm:"size:64;not null" json:"checksum"` // 原始文件 SHA-256

	UploadDate time.Time `gorm:"not null;index:idx_device_upload" json:"upload_date"`
}

// TableName 指定表名
func (Firmware) TableName() string {
	return "firmwares"
}
