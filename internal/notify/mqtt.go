package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bingooyong/ops-scaffold-framework/firmware/internal/config"
	"github.com/bingooyong/ops-scaffold-framework/firmware/internal/metrics"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var (
	ErrNotConnected   = errors.New("mqtt client not connected")
	ErrPublishTimeout = errors.New("mqtt publish timed out")
)

// Publisher 消息发布接口
type Publisher interface {
	// Publish 发布一条消息，断开时先尝试重连一次
	Publish(ctx context.Context, topic string, payload []byte) error
}

// MQTTPublisher 基于 MQTT 的通知发布器
// 持有单个长连接，由定时任务维护连接状态
type MQTTPublisher struct {
	client  mqtt.Client
	cfg     *config.MQTTConfig
	logger  *zap.Logger
	cron    *cron.Cron
	started bool

	// mu 串行化重连
	mu sync.Mutex
}

// NewMQTTPublisher 创建MQTT发布器
func NewMQTTPublisher(cfg *config.MQTTConfig, logger *zap.Logger) *MQTTPublisher {
	p := &MQTTPublisher{
		cfg:    cfg,
		logger: logger,
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL()).
		SetClientID(fmt.Sprintf("%s-%s", cfg.ClientIDPrefix, uuid.NewString()[:8])).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetCleanSession(true).
		SetKeepAlive(60 * time.Second).
		SetConnectTimeout(cfg.PublishTimeout).
		SetAutoReconnect(false).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = mqtt.NewClient(opts)
	return p
}

// newPublisherWithClient 使用已有客户端创建发布器
func newPublisherWithClient(client mqtt.Client, cfg *config.MQTTConfig, logger *zap.Logger) *MQTTPublisher {
	return &MQTTPublisher{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// Start 建立连接并启动连接维护任务
// 首次连接失败只记录日志，由维护任务继续重试
func (p *MQTTPublisher) Start() error {
	if p.started {
		return nil
	}

	if err := p.reconnect(); err != nil {
		p.logger.Warn("initial mqtt connect failed",
			zap.String("broker", p.cfg.BrokerURL()),
			zap.Error(err))
	}

	p.cron = cron.New(cron.WithChain(
		cron.Recover(cronLogger{p.logger}),
		cron.SkipIfStillRunning(cronLogger{p.logger}),
	))

	spec := fmt.Sprintf("@every %s", p.cfg.KeepaliveCheck)
	if _, err := p.cron.AddFunc(spec, p.maintain); err != nil {
		return fmt.Errorf("failed to schedule mqtt keepalive: %w", err)
	}

	p.cron.Start()
	p.started = true

	p.logger.Info("mqtt publisher started",
		zap.String("broker", p.cfg.BrokerURL()),
		zap.Duration("keepalive_check", p.cfg.KeepaliveCheck))

	return nil
}

// Stop 停止维护任务并断开连接
func (p *MQTTPublisher) Stop() {
	if !p.started {
		return
	}

	<-p.cron.Stop().Done()
	p.client.Disconnect(250)
	p.started = false
	metrics.SetMQTTConnected(false)

	p.logger.Info("mqtt publisher stopped")
}

// IsConnected 连接是否可用
func (p *MQTTPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Publish 发布一条消息
func (p *MQTTPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		p.logger.Info("mqtt disconnected, reconnecting before publish", zap.String("topic", topic))
		if err := p.reconnect(); err != nil {
			return fmt.Errorf("%w: %v", ErrNotConnected, err)
		}
	}

	token := p.client.Publish(topic, p.cfg.QoS, false, payload)
	if err := p.wait(ctx, token); err != nil {
		metrics.MQTTError("publish")
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.logger.Debug("mqtt message published",
		zap.String("topic", topic),
		zap.Int("bytes", len(payload)))

	return nil
}

// maintain 连接维护任务，断开时重连一次
func (p *MQTTPublisher) maintain() {
	connected := p.client.IsConnectionOpen()
	metrics.SetMQTTConnected(connected)
	if connected {
		return
	}

	if err := p.reconnect(); err != nil {
		p.logger.Warn("mqtt reconnect failed", zap.Error(err))
	}
}

// reconnect 单次连接尝试
func (p *MQTTPublisher) reconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client.IsConnectionOpen() {
		return nil
	}

	token := p.client.Connect()
	if err := p.wait(context.Background(), token); err != nil {
		metrics.MQTTError("connect")
		return err
	}

	metrics.SetMQTTConnected(true)
	return nil
}

// wait 等待令牌完成，受发布超时和上下文约束
func (p *MQTTPublisher) wait(ctx context.Context, token mqtt.Token) error {
	timer := time.NewTimer(p.cfg.PublishTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return ErrPublishTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *MQTTPublisher) onConnect(_ mqtt.Client) {
	metrics.SetMQTTConnected(true)
	p.logger.Info("connected to mqtt broker", zap.String("broker", p.cfg.BrokerURL()))
}

func (p *MQTTPublisher) onConnectionLost(_ mqtt.Client, err error) {
	metrics.SetMQTTConnected(false)
	p.logger.Warn("mqtt connection lost", zap.Error(err))
}

// cronLogger 将 cron 日志转到 zap
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
