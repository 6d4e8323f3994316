package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bingooyong/ops-scaffold-framework/firmware/internal/config"
	"github.com/bingooyong/ops-scaffold-framework/firmware/internal/handler"
	"github.com/bingooyong/ops-scaffold-framework/firmware/internal/model"
	"github.com/bingooyong/ops-scaffold-framework/firmware/internal/repository"
	"github.com/bingooyong/ops-scaffold-framework/firmware/internal/service"
	"github.com/bingooyong/ops-scaffold-framework/firmware/internal/storage"
	"github.com/bingooyong/ops-scaffold-framework/firmware/pkg/database"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const baseURL = "https://cdn.example.com/firmware"

// recordingPublisher 记录消息，可切换为失败
type recordingPublisher struct {
	mu     sync.Mutex
	fail   bool
	topics []string
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unreachable")
	}
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.fail
}

// RouterTestSuite 固件服务端到端测试套件
// SQLite 元数据库 + rclone 本地后端 + 内存发布器
type RouterTestSuite struct {
	suite.Suite
	db        *gorm.DB
	blobRoot  string
	publisher *recordingPublisher
	router    *gin.Engine
}

func (s *RouterTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()
	ctx := context.Background()

	db, err := database.Init(&config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      filepath.Join(s.T().TempDir(), "firmware.db"),
		LogLevel: "silent",
	}, log)
	s.Require().NoError(err)
	s.Require().NoError(database.AutoMigrate(db, log))

	s.blobRoot = s.T().TempDir()
	store, err := storage.NewRcloneStore(ctx, &config.StorageConfig{
		Backend:       "local",
		LocalRoot:     s.blobRoot,
		PublicBaseURL: baseURL,
		LinkExpiry:    15 * time.Minute,
	}, log)
	s.Require().NoError(err)

	s.publisher = &recordingPublisher{}
	svc := service.NewFirmwareService(
		repository.NewFirmwareRepository(db),
		repository.NewFirmwareHistoryRepository(db),
		store,
		s.publisher,
		"firmware/update",
		log,
	)

	s.db = db
	s.router = NewRouter(Handlers{
		Firmware: handler.NewFirmwareHandler(svc, 1<<20, log),
		System:   handler.NewSystemHandler(db, s.publisher, log),
	}, 1<<20, log)
}

func (s *RouterTestSuite) TearDownTest() {
	database.Close(s.db)
}

func (s *RouterTestSuite) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *RouterTestSuite) upload(fields map[string]string, file []byte) *httptest.ResponseRecorder {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if file != nil {
		part, err := w.CreateFormFile("file", "fw.bin")
		s.Require().NoError(err)
		_, err = part.Write(file)
		s.Require().NoError(err)
	}
	for k, v := range fields {
		s.Require().NoError(w.WriteField(k, v))
	}
	s.Require().NoError(w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return s.do(req)
}

func (s *RouterTestSuite) count(table string) int64 {
	var n int64
	s.db.Table(table).Count(&n)
	return n
}

func (s *RouterTestSuite) TestUploadLatestHistory() {
	for _, v := range []string{"2.2", "2.3"} {
		rec := s.upload(map[string]string{
			"version":     v,
			"device_type": "esp32",
			"node_type":   "gateway",
		}, []byte("firmware "+v))
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	}

	_, err := os.Stat(filepath.Join(s.blobRoot, "node-gateway", "gateway_v2.3.gz"))
	s.NoError(err)
	s.Equal([]string{"firmware/update/esp32/gateway", "firmware/update/esp32/gateway"}, s.publisher.topics)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/latest?device_type=esp32", nil))
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"version":"2.3","url":"`+baseURL+`/node-gateway/gateway_v2.3.gz"}`, rec.Body.String())

	rec = s.do(httptest.NewRequest(http.MethodGet, "/history?node_type=gateway", nil))
	s.Require().Equal(http.StatusOK, rec.Code)

	var histories []model.FirmwareHistory
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &histories))
	s.Require().Len(histories, 2)
	s.Equal("2.2", histories[0].VersionFrom)
	s.Equal("2.3", histories[0].VersionTo)
	s.Equal(model.HistoryStatusSuccess, histories[0].Status)
}

func (s *RouterTestSuite) TestUpload_NotifyFailureStillRecordsHistory() {
	s.publisher.fail = true

	rec := s.upload(map[string]string{"version": "1.0"}, []byte("fw"))
	s.Equal(http.StatusInternalServerError, rec.Code)

	s.Equal(int64(1), s.count("firmwares"))
	s.Equal(int64(1), s.count("firmware_histories"))

	var history model.FirmwareHistory
	s.Require().NoError(s.db.First(&history).Error)
	s.Equal(model.HistoryStatusFailure, history.Status)
	s.Equal(model.FailedStageNotify, history.FailedStage)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"degraded"`)
}

func (s *RouterTestSuite) TestUpload_MissingVersion() {
	rec := s.upload(map[string]string{"device_type": "esp32"}, []byte("fw"))
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(int64(0), s.count("firmwares"))
	s.Equal(int64(0), s.count("firmware_histories"))
}

func (s *RouterTestSuite) TestLatest_NotFound() {
	rec := s.do(httptest.NewRequest(http.MethodGet, "/latest", nil))
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *RouterTestSuite) TestOpsRoutes() {
	s.upload(map[string]string{"version": "1.0"}, []byte("fw"))

	rec := s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "firmware_uploads_total")

	rec = s.do(httptest.NewRequest(http.MethodGet, "/version", nil))
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))
	s.Equal(http.StatusNotFound, rec.Code)
	s.NotEmpty(rec.Header().Get("X-Request-ID"))
}

func TestRouterTestSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}
