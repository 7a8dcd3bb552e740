// Package handlers API处理器
package handlers

import (
	"crypto/md5"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/freedkr/pricetree/internal/builder"
	"github.com/freedkr/pricetree/internal/database"
	"github.com/freedkr/pricetree/internal/model"
	"github.com/freedkr/pricetree/internal/queue"
	"github.com/freedkr/pricetree/internal/storage"
)

// 支持的上传文件类型
var uploadContentTypes = map[string]string{
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".xls":  "application/vnd.ms-excel",
	".csv":  "text/csv",
}

// Handlers API处理器
type Handlers struct {
	db      database.DatabaseInterface
	queue   queue.Client
	storage storage.StorageInterface
	store   *TreeStore
	hub     *Hub
	builder builder.TreeBuilder
}

// NewHandlers 创建处理器
func NewHandlers(db database.DatabaseInterface, queue queue.Client, storage storage.StorageInterface) *Handlers {
	return &Handlers{
		db:      db,
		queue:   queue,
		storage: storage,
		store:   NewTreeStore(),
		hub:     NewHub(),
		builder: builder.NewTreeBuilder(nil),
	}
}

// Health 健康检查
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
		"service":   "api-server",
	})
}

// Ready 就绪检查
func (h *Handlers) Ready(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.db.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "database not available",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// UploadFile 上传权重表并创建导入任务
func (h *Handlers) UploadFile(c *gin.Context) {
	ctx := c.Request.Context()

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的文件上传: " + err.Error()})
		return
	}
	defer file.Close()

	ext := filepath.Ext(header.Filename)
	contentType, ok := uploadContentTypes[ext]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "仅支持 .xlsx/.xls/.csv 文件"})
		return
	}

	fileID := uuid.New().String()
	taskID := uuid.New().String()

	// 计算MD5
	hash := md5.New()
	if _, err := io.Copy(hash, file); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "计算文件哈希失败"})
		return
	}
	md5Hash := fmt.Sprintf("%x", hash.Sum(nil))
	file.Seek(0, 0)

	objectName := fmt.Sprintf("uploads/%s/%s", fileID, header.Filename)

	if err := h.storage.UploadFile(ctx, objectName, file, header.Size, contentType); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "上传文件到存储失败: " + err.Error()})
		return
	}

	uploadBatchID := uuid.New().String()
	task := &database.TaskRecord{
		ID:            taskID,
		Type:          queue.TaskTypeImport,
		Status:        queue.StatusPending,
		InputPath:     objectName,
		Config:        datatypes.JSON([]byte(`{}`)),
		UploadBatchID: uploadBatchID,
	}

	if err := h.db.CreateTask(ctx, task); err != nil {
		h.storage.DeleteFile(ctx, objectName)
		log.Printf("CreateTask失败 - TaskID: %s, Error: %v", taskID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建任务失败"})
		return
	}

	fileRecord := &database.FileRecord{
		ID:           fileID,
		OriginalName: header.Filename,
		StoragePath:  objectName,
		FileSize:     header.Size,
		ContentType:  contentType,
		MD5Hash:      md5Hash,
		TaskID:       taskID,
		CreatedAt:    time.Now(),
	}

	if err := h.db.CreateFile(ctx, fileRecord); err != nil {
		h.storage.DeleteFile(ctx, objectName)
		h.db.DeleteTask(ctx, taskID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建文件记录失败"})
		return
	}

	importTask := &queue.Task{
		ID:         taskID,
		Type:       queue.TaskTypeImport,
		FileID:     fileID,
		FileName:   header.Filename,
		ObjectName: objectName,
		Status:     queue.StatusPending,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
		Data: map[string]interface{}{
			"upload_batch_id": uploadBatchID,
		},
	}

	if err := h.queue.EnqueueTaskWithContext(ctx, importTask); err != nil {
		h.storage.DeleteFile(ctx, objectName)
		h.db.DeleteTask(ctx, taskID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "导入任务入队失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"taskId":  taskID,
		"fileId":  fileID,
		"message": "文件已上传，导入任务已创建",
	})
}

// GetTask 获取任务
func (h *Handlers) GetTask(c *gin.Context) {
	taskID := c.Param("id")
	ctx := c.Request.Context()

	task, err := h.db.GetTask(ctx, taskID)
	if err != nil {
		log.Printf("GetTask失败 - TaskID: %s, Error: %v", taskID, err)
		c.JSON(http.StatusNotFound, gin.H{
			"error":  "任务不存在",
			"taskId": taskID,
		})
		return
	}

	c.JSON(http.StatusOK, task)
}

// ListTasks 列出任务
func (h *Handlers) ListTasks(c *gin.Context) {
	ctx := c.Request.Context()

	limit := 20
	offset := 0
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	tasks, err := h.db.ListTasks(ctx, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取任务列表失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks":  tasks,
		"limit":  limit,
		"offset": offset,
	})
}

// DeleteTask 删除任务
func (h *Handlers) DeleteTask(c *gin.Context) {
	taskID := c.Param("id")

	if err := h.db.DeleteTask(c.Request.Context(), taskID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除任务失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"task_id": taskID, "message": "任务已删除"})
}

// DownloadFile 下载文件
func (h *Handlers) DownloadFile(c *gin.Context) {
	objectName := c.Query("path")
	if objectName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 path 参数"})
		return
	}

	reader, err := h.storage.DownloadFile(c.Request.Context(), objectName)
	if err != nil {
		log.Printf("下载文件失败: %v", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "文件未找到或无法下载"})
		return
	}
	defer reader.Close()

	fileName := filepath.Base(objectName)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, fileName))
	c.Header("Content-Type", "application/octet-stream")

	if _, err := io.Copy(c.Writer, reader); err != nil {
		log.Printf("写入响应流失败: %v", err)
	}
}

// GetTaskVersionHistory 获取任务的快照版本历史
func (h *Handlers) GetTaskVersionHistory(c *gin.Context) {
	taskID := c.Param("task_id")
	if taskID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 task_id 参数"})
		return
	}

	versionHistory, err := h.db.GetCategoryVersionHistory(c.Request.Context(), taskID)
	if err != nil {
		log.Printf("获取任务 %s 的版本历史失败: %v", taskID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取版本历史失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task_id":  taskID,
		"versions": versionHistory,
	})
}

// GetVersionCategories 获取指定批次的扁平分类数据
func (h *Handlers) GetVersionCategories(c *gin.Context) {
	batchID := c.Query("batch_id")
	if batchID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 batch_id 参数"})
		return
	}

	rows, err := h.db.GetCategoriesByBatchID(c.Request.Context(), batchID)
	if err != nil {
		log.Printf("获取批次 %s 的分类数据失败: %v", batchID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取分类数据失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"batch_id":   batchID,
		"categories": rows,
		"count":      len(rows),
	})
}

// errStatus 将领域错误映射为HTTP状态码
func errStatus(err error) int {
	switch {
	case model.IsErrorType(err, model.ErrCodeNotFound):
		return http.StatusNotFound
	case model.IsErrorType(err, model.ErrCodeInvalidWeight),
		model.IsErrorType(err, model.ErrCodeInvalidInput),
		model.IsErrorType(err, model.ErrCodeValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
