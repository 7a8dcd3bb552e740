// Package queue 基于Redis的任务队列
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/freedkr/pricetree/internal/config"
)

// 任务类型
const (
	TaskTypeImport  = "import"  // 导入权重表并构建分类树
	TaskTypeRebuild = "rebuild" // 基于已有文件重新构建
)

// 队列名称
const (
	QueueImport  = "queue:import"
	QueueDefault = "queue:default"
)

// 任务状态
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// taskTTL 任务状态在Redis中的保留时间
const taskTTL = 24 * time.Hour

type Client interface {
	EnqueueTask(task *Task) error
	EnqueueTaskWithContext(ctx context.Context, task *Task) error
	DequeueTask(queueName string) (*Task, error)
	GetTaskStatus(taskID string) (*Task, error)
	UpdateTaskStatus(taskID string, status string, errorMsg string) error
	UpdateTaskResult(taskID string, uploadBatchID string) error
	Close()
}

// Task 导入任务
type Task struct {
	ID            string                 `json:"id"`
	Type          string                 `json:"type"`
	FileID        string                 `json:"file_id"`
	FileName      string                 `json:"file_name"`
	ObjectName    string                 `json:"object_name"`
	Status        string                 `json:"status"` // pending, processing, completed, failed
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
	Error         string                 `json:"error,omitempty"`
	UploadBatchID string                 `json:"upload_batch_id,omitempty"` // 构建完成后的快照版本
	Data          map[string]interface{} `json:"data,omitempty"`
}

type redisClient struct {
	client *redis.Client
	ctx    context.Context
}

func NewRedisQueue(qcfg config.QueueConfig) (Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     qcfg.Addr,
		Password: qcfg.Password,
		DB:       qcfg.DB,
	})
	ctx := context.Background()

	// 测试连接
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("连接Redis失败: %w", err)
	}

	return &redisClient{
		client: rdb,
		ctx:    ctx,
	}, nil
}

func (c *redisClient) EnqueueTask(task *Task) error {
	return c.EnqueueTaskWithContext(c.ctx, task)
}

func (c *redisClient) EnqueueTaskWithContext(ctx context.Context, task *Task) error {
	taskJSON, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("序列化任务失败: %w", err)
	}

	taskKey := taskKey(task.ID)
	if err := c.client.Set(ctx, taskKey, taskJSON, taskTTL).Err(); err != nil {
		return fmt.Errorf("保存任务状态失败: %w", err)
	}

	queueName := queueNameFor(task.Type)
	if err := c.client.LPush(ctx, queueName, task.ID).Err(); err != nil {
		return fmt.Errorf("任务入队失败: %w", err)
	}

	return nil
}

func (c *redisClient) DequeueTask(queueName string) (*Task, error) {
	// 阻塞式从队列获取任务ID
	result, err := c.client.BRPop(c.ctx, 5*time.Second, queueName).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // 没有任务
		}
		return nil, fmt.Errorf("任务出队失败: %w", err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("意外的Redis返回格式")
	}

	return c.GetTaskStatus(result[1])
}

func (c *redisClient) GetTaskStatus(taskID string) (*Task, error) {
	taskJSON, err := c.client.Get(c.ctx, taskKey(taskID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("任务不存在: %s", taskID)
		}
		return nil, fmt.Errorf("获取任务失败: %w", err)
	}

	var task Task
	if err := json.Unmarshal([]byte(taskJSON), &task); err != nil {
		return nil, fmt.Errorf("反序列化任务失败: %w", err)
	}

	return &task, nil
}

func (c *redisClient) UpdateTaskStatus(taskID string, status string, errorMsg string) error {
	task, err := c.GetTaskStatus(taskID)
	if err != nil {
		return err
	}

	task.Status = status
	task.UpdatedAt = time.Now()
	if errorMsg != "" {
		task.Error = errorMsg
	}

	return c.saveTask(task)
}

func (c *redisClient) UpdateTaskResult(taskID string, uploadBatchID string) error {
	task, err := c.GetTaskStatus(taskID)
	if err != nil {
		return err
	}

	task.Status = StatusCompleted
	task.UpdatedAt = time.Now()
	task.UploadBatchID = uploadBatchID

	return c.saveTask(task)
}

func (c *redisClient) saveTask(task *Task) error {
	taskJSON, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("序列化任务失败: %w", err)
	}

	if err := c.client.Set(c.ctx, taskKey(task.ID), taskJSON, taskTTL).Err(); err != nil {
		return fmt.Errorf("保存任务状态失败: %w", err)
	}

	return nil
}

func taskKey(taskID string) string {
	return fmt.Sprintf("task:%s", taskID)
}

func queueNameFor(taskType string) string {
	switch taskType {
	case TaskTypeImport, TaskTypeRebuild:
		return QueueImport
	default:
		return QueueDefault
	}
}

func (c *redisClient) Close() {
	c.client.Close()
}
