package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bingooyong/ops-scaffold-framework/firmware/internal/config"
	"github.com/bingooyong/ops-scaffold-framework/firmware/internal/handler"
	"github.com/bingooyong/ops-scaffold-framework/firmware/internal/logger"
	"github.com/bingooyong/ops-scaffold-framework/firmware/internal/notify"
	"github.com/bingooyong/ops-scaffold-framework/firmware/internal/repository"
	"github.com/bingooyong/ops-scaffold-framework/firmware/internal/server"
	"github.com/bingooyong/ops-scaffold-framework/firmware/internal/service"
	"github.com/bingooyong/ops-scaffold-framework/firmware/internal/storage"
	"github.com/bingooyong/ops-scaffold-framework/firmware/internal/version"
	"github.com/bingooyong/ops-scaffold-framework/firmware/pkg/database"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	configFile  = flag.String("config", "configs/firmware.yaml", "配置文件路径")
	showVersion = flag.Bool("version", false, "显示版本信息")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get().String())
		return
	}

	// 1. 加载配置
	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	log, err := logger.Init(&cfg.Log)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	log.Info("Firmware server starting...",
		zap.String("version", version.Get().String()),
		zap.String("mode", cfg.Server.Mode),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. 初始化数据库
	db, err := database.Init(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to init database", zap.Error(err))
	}

	if err := database.AutoMigrate(db, log); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}

	// 4. 初始化对象存储
	storage.SetRcloneLogging(ctx, cfg.Log.Level)
	blobStore, err := storage.NewRcloneStore(ctx, &cfg.Storage, logger.Named("storage"))
	if err != nil {
		log.Fatal("Failed to init blob store", zap.Error(err))
	}

	// 5. 初始化MQTT发布器
	publisher := notify.NewMQTTPublisher(&cfg.MQTT, logger.Named("mqtt"))
	if err := publisher.Start(); err != nil {
		log.Fatal("Failed to start mqtt publisher", zap.Error(err))
	}

	// 6. 初始化Repository层
	firmwareRepo := repository.NewFirmwareRepository(db)
	historyRepo := repository.NewFirmwareHistoryRepository(db)

	// 7. 初始化Service层
	firmwareService := service.NewFirmwareService(
		firmwareRepo,
		historyRepo,
		blobStore,
		publisher,
		cfg.MQTT.TopicPrefix,
		logger.Named("firmware"),
	)

	// 8. 初始化Handler层
	firmwareHandler := handler.NewFirmwareHandler(firmwareService, cfg.Server.MaxUploadSize, log)
	systemHandler := handler.NewSystemHandler(db, publisher, log)

	// 9. 初始化Gin引擎
	gin.SetMode(cfg.Server.Mode)
	router := server.NewRouter(server.Handlers{
		Firmware: firmwareHandler,
		System:   systemHandler,
	}, cfg.Server.MaxUploadSize, log)

	// 10. 启动HTTP服务器
	httpAddr := cfg.Server.Address()
	httpServer := &http.Server{
		Addr:         httpAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 11. 等待信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Firmware server shutting down...")

	// 12. 优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}

	publisher.Stop()

	if err := database.Close(db); err != nil {
		log.Error("Database close failed", zap.Error(err))
	}

	log.Info("Firmware server stopped")
}
