package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config 固件服务配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	Mode          string        `mapstructure:"mode"` // debug, release
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	MaxUploadSize int64         `mapstructure:"max_upload_size"` // 字节
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // mysql, sqlite
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// StorageConfig 对象存储配置
type StorageConfig struct {
	Backend       string        `mapstructure:"backend"` // s3, local
	Bucket        string        `mapstructure:"bucket"`
	Provider      string        `mapstructure:"provider"` // AWS, GCS, Minio ...
	Region        string        `mapstructure:"region"`
	Endpoint      string        `mapstructure:"endpoint"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	LocalRoot     string        `mapstructure:"local_root"`
	PublicBaseURL string        `mapstructure:"public_base_url"` // 后端不支持签名链接时使用
	LinkExpiry    time.Duration `mapstructure:"link_expiry"`
}

// MQTTConfig 消息通知配置
type MQTTConfig struct {
	Broker         string        `mapstructure:"broker"`
	Port           int           `mapstructure:"port"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	ClientIDPrefix string        `mapstructure:"client_id_prefix"`
	TopicPrefix    string        `mapstructure:"topic_prefix"`
	QoS            byte          `mapstructure:"qos"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
	KeepaliveCheck time.Duration `mapstructure:"keepalive_check"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"` // debug, info, warn, error
	OutputPath string `mapstructure:"output_path"`
	MaxSize    int    `mapstructure:"max_size"`    // MB
	MaxBackups int    `mapstructure:"max_backups"` // 保留的旧日志文件数
	MaxAge     int    `mapstructure:"max_age"`     // 天
	Compress   bool   `mapstructure:"compress"`
}

// envBindings 部署环境沿用的环境变量名
var envBindings = map[string]string{
	"server.port":        "PORT",
	"database.driver":    "DATABASE_DRIVER",
	"database.dsn":       "DATABASE_DSN",
	"storage.backend":    "STORAGE_BACKEND",
	"storage.bucket":     "BUCKET_NAME",
	"storage.region":     "S3_REGION",
	"storage.endpoint":   "S3_ENDPOINT",
	"storage.access_key": "S3_ACCESS_KEY",
	"storage.secret_key": "S3_SECRET_KEY",
	"mqtt.broker":        "MQTT_BROKER",
	"mqtt.port":          "MQTT_PORT",
	"mqtt.username":      "MQTT_USERNAME",
	"mqtt.password":      "MQTT_PASSWORD",
	"log.level":          "LOG_LEVEL",
}

// Load 加载配置文件，环境变量优先于文件
// 配置文件不存在时仅使用环境变量和默认值
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	setDefaults(config)

	if err := validate(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// setDefaults 设置默认值
func setDefaults(config *Config) {
	// Server默认值
	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 5050
	}
	if config.Server.Mode == "" {
		config.Server.Mode = "release"
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 60 * time.Second
	}
	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = 60 * time.Second
	}
	if config.Server.MaxUploadSize == 0 {
		config.Server.MaxUploadSize = 32 << 20
	}

	// Database默认值
	if config.Database.Driver == "" {
		config.Database.Driver = "mysql"
	}
	if config.Database.MaxIdleConns == 0 {
		config.Database.MaxIdleConns = 10
	}
	if config.Database.MaxOpenConns == 0 {
		config.Database.MaxOpenConns = 100
	}
	if config.Database.ConnMaxLifetime == 0 {
		config.Database.ConnMaxLifetime = time.Hour
	}
	if config.Database.LogLevel == "" {
		config.Database.LogLevel = "warn"
	}

	// Storage默认值
	if config.Storage.Backend == "" {
		config.Storage.Backend = "s3"
	}
	if config.Storage.Provider == "" {
		config.Storage.Provider = "AWS"
	}
	if config.Storage.LinkExpiry == 0 {
		config.Storage.LinkExpiry = 15 * time.Minute
	}

	// MQTT默认值
	if config.MQTT.Port == 0 {
		config.MQTT.Port = 1883
	}
	if config.MQTT.ClientIDPrefix == "" {
		config.MQTT.ClientIDPrefix = "firmware-server"
	}
	if config.MQTT.TopicPrefix == "" {
		config.MQTT.TopicPrefix = "firmware/update"
	}
	if config.MQTT.PublishTimeout == 0 {
		config.MQTT.PublishTimeout = 10 * time.Second
	}
	if config.MQTT.KeepaliveCheck == 0 {
		config.MQTT.KeepaliveCheck = 5 * time.Second
	}

	// Log默认值
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.OutputPath == "" {
		config.Log.OutputPath = "logs/firmware.log"
	}
	if config.Log.MaxSize == 0 {
		config.Log.MaxSize = 100
	}
	if config.Log.MaxBackups == 0 {
		config.Log.MaxBackups = 10
	}
	if config.Log.MaxAge == 0 {
		config.Log.MaxAge = 30
	}
}

// validate 验证配置
func validate(config *Config) error {
	validModes := map[string]bool{
		"debug":   true,
		"release": true,
		"test":    true,
	}
	if !validModes[config.Server.Mode] {
		return fmt.Errorf("invalid server mode: %s", config.Server.Mode)
	}

	switch config.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver: %s", config.Database.Driver)
	}
	if config.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}

	switch config.Storage.Backend {
	case "s3":
		if config.Storage.Bucket == "" {
			return fmt.Errorf("storage bucket is required for s3 backend")
		}
	case "local":
		if config.Storage.LocalRoot == "" {
			return fmt.Errorf("storage local_root is required for local backend")
		}
	default:
		return fmt.Errorf("unsupported storage backend: %s", config.Storage.Backend)
	}

	if config.MQTT.Broker == "" {
		return fmt.Errorf("mqtt broker is required")
	}
	if config.MQTT.QoS > 2 {
		return fmt.Errorf("invalid mqtt qos: %d", config.MQTT.QoS)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[config.Log.Level] {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}

	return nil
}

// Address 返回HTTP服务监听地址
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BrokerURL 返回MQTT broker地址
func (c *MQTTConfig) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.Broker, c.Port)
}
