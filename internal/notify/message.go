package notify

import (
	"encoding/json"
	"strings"
	"time"
)

// Notification 新固件通知内容
type Notification struct {
	DeviceType string    `json:"device_type"`
	NodeType   string    `json:"node_type,omitempty"`
	Version    string    `json:"version"`
	URL        string    `json:"url"`
	Checksum   string    `json:"checksum,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Encode 编码为消息负载
func (n *Notification) Encode() ([]byte, error) {
	return json.Marshal(n)
}

// Topic 构造通知主题
// 未指定节点类型时为 {prefix}/{device_type}，否则为 {prefix}/{device_type}/{node_type}
func Topic(prefix, deviceType, nodeType string) string {
	parts := []string{strings.TrimRight(prefix, "/"), deviceType}
	if nodeType != "" {
		parts = append(parts, nodeType)
	}
	return strings.Join(parts, "/")
}
