package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/freedkr/pricetree/internal/builder"
	"github.com/freedkr/pricetree/internal/config"
	"github.com/freedkr/pricetree/internal/database"
	"github.com/freedkr/pricetree/internal/model"
	"github.com/freedkr/pricetree/internal/parser"
	"github.com/freedkr/pricetree/internal/queue"
	"github.com/freedkr/pricetree/internal/storage"
)

// ImportWorker 权重表导入Worker
// 从队列消费导入任务：下载文件、解析、构建聚合树、持久化版本化快照
type ImportWorker struct {
	config      *config.Config
	db          database.DatabaseInterface
	queue       queue.Client
	storage     storage.StorageInterface
	excelParser *parser.ExcelParserImpl
	csvParser   *parser.CSVParserImpl
	builder     builder.TreeBuilder
}

func main() {
	var configPath string
	if len(os.Args) > 2 && os.Args[1] == "-config" {
		configPath = os.Args[2]
	} else {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.LoadConfigForService(config.ServiceTypeImportWorker, configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	worker, err := NewImportWorker(cfg)
	if err != nil {
		log.Fatalf("创建Worker失败: %v", err)
	}

	if err := worker.Start(); err != nil {
		log.Fatalf("启动Worker失败: %v", err)
	}
}

func NewImportWorker(cfg *config.Config) (*ImportWorker, error) {
	dbConfig := &database.PostgreSQLConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
	}
	db, err := database.NewPostgreSQLDB(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("初始化数据库失败: %w", err)
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

	parserConfig := &parser.ParserConfig{
		SheetName:     cfg.Parser.SheetName,
		StrictMode:    cfg.Parser.StrictMode,
		SkipEmptyRows: cfg.Parser.SkipEmptyRows,
		MaxRows:       cfg.Parser.MaxRows,
	}

	builderConfig := &builder.BuilderConfig{
		DepthMarker: cfg.Builder.DepthMarker,
	}

	return &ImportWorker{
		config:      cfg,
		db:          db,
		queue:       redisQueue,
		storage:     minioStorage,
		excelParser: parser.NewExcelParser(parserConfig),
		csvParser:   parser.NewCSVParser(nil),
		builder:     builder.NewTreeBuilder(builderConfig),
	}, nil
}

func (w *ImportWorker) Start() error {
	log.Println("导入Worker启动中...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go w.workLoop(ctx)

	log.Println("导入Worker已启动，等待任务...")

	<-quit
	log.Println("正在关闭导入Worker...")

	w.cleanup()

	log.Println("导入Worker已关闭")
	return nil
}

func (w *ImportWorker) workLoop(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second) // 每2秒检查一次队列
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processTask(ctx)
		}
	}
}

func (w *ImportWorker) processTask(ctx context.Context) {
	task, err := w.queue.DequeueTask(queue.QueueImport)
	if err != nil {
		log.Printf("获取任务失败: %v", err)
		return
	}

	if task == nil {
		// 队列为空，继续等待
		return
	}

	log.Printf("开始处理导入任务: %s", task.ID)
	w.queue.UpdateTaskStatus(task.ID, queue.StatusProcessing, "")

	batchID, err := w.handleImportTask(ctx, task)
	if err != nil {
		log.Printf("处理任务失败: %s, 错误: %v", task.ID, err)
		w.queue.UpdateTaskStatus(task.ID, queue.StatusFailed, err.Error())
		w.updateTaskInDB(ctx, task.ID, queue.StatusFailed, "", err.Error())
		return
	}

	log.Printf("任务处理完成: %s, 批次: %s", task.ID, batchID)
	w.queue.UpdateTaskResult(task.ID, batchID)
}

func (w *ImportWorker) handleImportTask(ctx context.Context, task *queue.Task) (string, error) {
	startTime := time.Now()

	taskRecord, err := w.db.GetTask(ctx, task.ID)
	if err != nil {
		return "", fmt.Errorf("获取任务记录失败: %w", err)
	}

	// 1. 解析权重表
	records, err := w.parseInput(ctx, taskRecord.InputPath)
	if err != nil {
		return "", err
	}
	log.Printf("成功解析 %d 条记录", len(records))

	// 2. 构建并聚合分类树
	tree, err := w.builder.BuildTree(ctx, records)
	if err != nil {
		return "", fmt.Errorf("构建分类树失败: %w", err)
	}

	nodeCount := len(tree.Root.ToFlat())
	log.Printf("成功构建分类树，共 %d 个节点", nodeCount)

	// 3. 校验不变量，问题只记录不中断导入
	if errors := w.builder.Validate(tree); errors != nil && errors.HasError() {
		log.Printf("警告：树校验发现 %d 个问题: %v", errors.Count(), errors)
	}

	// 4. 扁平化并持久化为版本化快照
	batchID := w.resolveBatchID(task, taskRecord)
	rows := database.FlattenTree(task.ID, tree)
	if err := w.db.BatchInsertCategoriesWithVersion(ctx, task.ID, batchID, rows); err != nil {
		return "", fmt.Errorf("保存树快照失败: %w", err)
	}
	log.Printf("树快照已保存，批次: %s", batchID)

	// 5. 更新任务记录
	processingTime := time.Since(startTime)
	taskRecord.Status = queue.StatusCompleted
	resultMap := map[string]interface{}{
		"status":          queue.StatusCompleted,
		"upload_batch_id": batchID,
		"node_count":      nodeCount,
	}
	resultJSON, _ := json.Marshal(resultMap)
	taskRecord.Result = datatypes.JSON(resultJSON)
	taskRecord.UploadBatchID = batchID
	taskRecord.UpdatedAt = time.Now()
	now := time.Now()
	taskRecord.ProcessedAt = &now

	if err := w.db.UpdateTask(ctx, taskRecord); err != nil {
		return "", fmt.Errorf("更新任务记录失败: %w", err)
	}

	// 6. 创建导入统计
	stats := &database.ImportStats{
		TaskID:           task.ID,
		TotalRecords:     len(records),
		ProcessedRecords: len(records),
		NodeCount:        nodeCount,
		ProcessingTimeMs: processingTime.Milliseconds(),
		CreatedAt:        time.Now(),
	}

	if err := w.db.CreateImportStats(ctx, stats); err != nil {
		log.Printf("警告：创建导入统计失败: %v", err) // 非致命错误
	}

	log.Printf("导入完成，耗时: %v", processingTime)
	return batchID, nil
}

// parseInput 下载输入文件并按扩展名选择解析器
func (w *ImportWorker) parseInput(ctx context.Context, inputPath string) ([]*model.PriceRecord, error) {
	inputReader, err := w.storage.DownloadFile(ctx, inputPath)
	if err != nil {
		return nil, fmt.Errorf("下载输入文件失败: %w", err)
	}
	defer inputReader.Close()

	ext := strings.ToLower(filepath.Ext(inputPath))
	if ext == ".csv" {
		return w.csvParser.Parse(ctx, inputReader)
	}

	// excelize按文件路径打开，先落临时文件
	tmpFile, err := os.CreateTemp("", "input_*"+ext)
	if err != nil {
		return nil, fmt.Errorf("创建临时文件失败: %w", err)
	}
	defer os.Remove(tmpFile.Name())
	defer tmpFile.Close()

	if _, err := tmpFile.ReadFrom(inputReader); err != nil {
		return nil, fmt.Errorf("复制文件失败: %w", err)
	}
	tmpFile.Close()

	log.Printf("解析Excel文件: %s", inputPath)
	return w.excelParser.ParseFile(ctx, tmpFile.Name())
}

// resolveBatchID 优先使用上传时生成的批次ID，保证任务记录与快照版本一致
func (w *ImportWorker) resolveBatchID(task *queue.Task, taskRecord *database.TaskRecord) string {
	if id, ok := task.Data["upload_batch_id"].(string); ok && id != "" {
		return id
	}
	if taskRecord.UploadBatchID != "" {
		return taskRecord.UploadBatchID
	}
	return uuid.New().String()
}

func (w *ImportWorker) updateTaskInDB(ctx context.Context, taskID string, status string, result, errorMsg string) {
	task, err := w.db.GetTask(ctx, taskID)
	if err != nil {
		log.Printf("获取任务记录失败: %v", err)
		return
	}

	task.Status = status
	task.UpdatedAt = time.Now()
	if status == queue.StatusCompleted || status == queue.StatusFailed {
		now := time.Now()
		task.ProcessedAt = &now
	}
	if result != "" {
		task.Result = datatypes.JSON(result)
	}
	if errorMsg != "" {
		task.ErrorMsg = errorMsg
	}

	if err := w.db.UpdateTask(ctx, task); err != nil {
		log.Printf("更新任务记录失败: %v", err)
	}
}

func (w *ImportWorker) cleanup() {
	if err := w.db.Close(); err != nil {
		log.Printf("关闭数据库失败: %v", err)
	}
	w.queue.Close()
}
