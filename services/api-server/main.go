package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/freedkr/pricetree/internal/config"
	"github.com/freedkr/pricetree/internal/database"
	"github.com/freedkr/pricetree/internal/queue"
	"github.com/freedkr/pricetree/internal/storage"
	"github.com/freedkr/pricetree/services/api-server/handlers"
	"github.com/freedkr/pricetree/services/api-server/middleware"
)

type Server struct {
	config   *config.Config
	db       database.DatabaseInterface
	queue    queue.Client
	storage  storage.StorageInterface
	router   *gin.Engine
	handlers *handlers.Handlers
}

func main() {
	var configPath string
	if len(os.Args) > 2 && os.Args[1] == "-config" {
		configPath = os.Args[2]
	} else {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.LoadConfigForService(config.ServiceTypeAPIServer, configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	server, err := NewServer(cfg)
	if err != nil {
		log.Fatalf("创建服务器失败: %v", err)
	}

	if err := server.Start(); err != nil {
		log.Fatalf("启动服务器失败: %v", err)
	}
}

func NewServer(cfg *config.Config) (*Server, error) {
	gin.SetMode(cfg.APIServer.Mode)
	if cfg.App.Debug {
		gin.SetMode(gin.DebugMode)
	}

	log.Printf("正在初始化数据库连接: db=%s", cfg.Database.Database)
	dbConfig := &database.PostgreSQLConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		Database:        cfg.Database.Database,
		Username:        cfg.Database.Username,
		Password:        cfg.Database.Password,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}
	db, err := database.NewPostgreSQLDB(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("初始化数据库失败: %w", err)
	}

	ctx := context.Background()
	if err := db.CreateTables(ctx); err != nil {
		return nil, fmt.Errorf("创建数据库表失败: %w", err)
	}

	redisQueue, err := queue.NewRedisQueue(cfg.Queue)
	if err != nil {
		return nil, fmt.Errorf("初始化队列失败: %w", err)
	}

	storageConfig := &storage.MinIOConfig{
		Endpoint:        cfg.Storage.Endpoint,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		UseSSL:          cfg.Storage.UseSSL,
		BucketName:      cfg.Storage.BucketName,
		Region:          cfg.Storage.Region,
	}
	minioStorage, err := storage.NewMinIOStorage(storageConfig)
	if err != nil {
		return nil, fmt.Errorf("初始化存储失败: %w", err)
	}

	if err := minioStorage.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("确保存储桶失败: %w", err)
	}

	h := handlers.NewHandlers(db, redisQueue, minioStorage)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())

	server := &Server{
		config:   cfg,
		db:       db,
		queue:    redisQueue,
		storage:  minioStorage,
		router:   router,
		handlers: h,
	}

	server.setupRoutes()

	return server, nil
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")

	// 健康检查
	api.GET("/health", s.handlers.Health)
	api.GET("/ready", s.handlers.Ready)

	// 任务管理
	tasks := api.Group("/tasks")
	{
		tasks.GET("/:id", s.handlers.GetTask)
		tasks.GET("", s.handlers.ListTasks)
		tasks.DELETE("/:id", s.handlers.DeleteTask)
	}

	// 文件管理
	files := api.Group("/files")
	{
		files.POST("/upload", s.handlers.UploadFile)
		files.GET("/download", s.handlers.DownloadFile)
	}

	// 分类树
	trees := api.Group("/trees")
	{
		trees.POST("/build", s.handlers.BuildTree)
		trees.GET("/:task_id", s.handlers.GetTree)
		trees.GET("/:task_id/nodes/:code", s.handlers.GetNode)
		trees.GET("/:task_id/children/:code", s.handlers.GetChildren)
		trees.POST("/:task_id/rebalance", s.handlers.RebalanceNode)
		trees.POST("/:task_id/undo", s.handlers.UndoRebalance)
		trees.POST("/:task_id/export", s.handlers.ExportTree)
		trees.GET("/:task_id/watch", s.handlers.WatchTree)
	}

	// 持久化快照
	data := api.Group("/data")
	{
		data.GET("/versions/:task_id", s.handlers.GetTaskVersionHistory)
		data.GET("/categories", s.handlers.GetVersionCategories)
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.APIServer.Host, s.config.APIServer.Port)

	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.APIServer.Timeout,
		WriteTimeout: s.config.APIServer.Timeout,
	}

	go func() {
		log.Printf("API服务器启动在 %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("启动服务器失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("服务器关闭失败: %v", err)
		return err
	}

	if err := s.db.Close(); err != nil {
		log.Printf("关闭数据库失败: %v", err)
	}

	s.queue.Close()

	log.Println("服务器已关闭")
	return nil
}
