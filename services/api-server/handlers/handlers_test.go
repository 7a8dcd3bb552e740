package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freedkr/pricetree/internal/database"
	"github.com/freedkr/pricetree/internal/model"
	"github.com/freedkr/pricetree/internal/queue"
	"github.com/freedkr/pricetree/internal/storage"
)

// fakeDB 测试用数据库替身，按需覆盖接口方法
type fakeDB struct {
	database.DatabaseInterface
	pingErr error
	rows    []*database.CategoryRow
	rowsErr error
	tasks   map[string]*database.TaskRecord
}

func (f *fakeDB) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeDB) GetCurrentCategoriesByTaskID(ctx context.Context, taskID string) ([]*database.CategoryRow, error) {
	return f.rows, f.rowsErr
}

func (f *fakeDB) GetTask(ctx context.Context, taskID string) (*database.TaskRecord, error) {
	if task, ok := f.tasks[taskID]; ok {
		return task, nil
	}
	return nil, model.NewNotFoundError("任务不存在: " + taskID)
}

// fakeQueue 测试用队列替身
type fakeQueue struct {
	enqueued []*queue.Task
}

func (f *fakeQueue) EnqueueTask(task *queue.Task) error { return f.EnqueueTaskWithContext(context.Background(), task) }
func (f *fakeQueue) EnqueueTaskWithContext(ctx context.Context, task *queue.Task) error {
	f.enqueued = append(f.enqueued, task)
	return nil
}
func (f *fakeQueue) DequeueTask(queueName string) (*queue.Task, error)        { return nil, nil }
func (f *fakeQueue) GetTaskStatus(taskID string) (*queue.Task, error)         { return nil, nil }
func (f *fakeQueue) UpdateTaskStatus(taskID, status, errorMsg string) error   { return nil }
func (f *fakeQueue) UpdateTaskResult(taskID, uploadBatchID string) error      { return nil }
func (f *fakeQueue) Close()                                                   {}

// fakeStorage 测试用存储替身
type fakeStorage struct {
	uploaded map[string][]byte
}

func (f *fakeStorage) EnsureBucket(ctx context.Context) error { return nil }
func (f *fakeStorage) UploadFile(ctx context.Context, objectName string, reader io.Reader, objectSize int64, contentType string) error {
	data, _ := io.ReadAll(reader)
	if f.uploaded == nil {
		f.uploaded = make(map[string][]byte)
	}
	f.uploaded[objectName] = data
	return nil
}
func (f *fakeStorage) UploadJSON(ctx context.Context, objectName string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return f.UploadFile(ctx, objectName, bytes.NewReader(data), int64(len(data)), "application/json")
}
func (f *fakeStorage) DownloadFile(ctx context.Context, objectName string) (io.ReadCloser, error) {
	if data, ok := f.uploaded[objectName]; ok {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return nil, model.NewNotFoundError("文件不存在: " + objectName)
}
func (f *fakeStorage) DeleteFile(ctx context.Context, objectName string) error { return nil }
func (f *fakeStorage) GetFileInfo(ctx context.Context, objectName string) (*storage.FileInfo, error) {
	return nil, nil
}
func (f *fakeStorage) GeneratePresignedURL(ctx context.Context, objectName string, expires time.Duration) (string, error) {
	return "", nil
}
func (f *fakeStorage) ListFiles(ctx context.Context, prefix string) ([]*storage.FileInfo, error) {
	return nil, nil
}

func newTestRouter(db database.DatabaseInterface) (*gin.Engine, *Handlers) {
	gin.SetMode(gin.TestMode)

	h := NewHandlers(db, &fakeQueue{}, &fakeStorage{})

	router := gin.New()
	api := router.Group("/api/v1")
	api.GET("/health", h.Health)
	api.GET("/ready", h.Ready)
	trees := api.Group("/trees")
	{
		trees.POST("/build", h.BuildTree)
		trees.GET("/:task_id", h.GetTree)
		trees.GET("/:task_id/nodes/:code", h.GetNode)
		trees.GET("/:task_id/children/:code", h.GetChildren)
		trees.POST("/:task_id/rebalance", h.RebalanceNode)
		trees.POST("/:task_id/undo", h.UndoRebalance)
		trees.POST("/:task_id/export", h.ExportTree)
	}
	return router, h
}

func buildPayload() []byte {
	payload := map[string]interface{}{
		"task_id": "task-1",
		"records": []map[string]interface{}{
			{"code": "01", "name": "食品烟酒", "weight": "30"},
			{"code": "01.1", "name": "*粮食", "weight": "10", "periods": []string{"100", "105", "108", "110", "120"}},
			{"code": "01.2", "name": "*畜肉类", "weight": "20", "periods": []string{"100", "120", "130", "140", "150"}},
			{"code": "02", "name": "衣着", "weight": "15"},
		},
	}
	data, _ := json.Marshal(payload)
	return data
}

func doJSON(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(&fakeDB{})

	w := doJSON(router, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestReady_DatabaseDown(t *testing.T) {
	router, _ := newTestRouter(&fakeDB{pingErr: model.NewNotFoundError("db down")})

	w := doJSON(router, http.MethodGet, "/api/v1/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestBuildTree(t *testing.T) {
	router, h := newTestRouter(&fakeDB{})

	w := doJSON(router, http.MethodPost, "/api/v1/trees/build", buildPayload())
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		TaskID string `json:"task_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "task-1", resp.TaskID)

	tree := h.store.Get("task-1")
	require.NotNil(t, tree)
	assert.InDelta(t, 45, tree.Root.Weight, 1e-6)
	assert.InDelta(t, 140, tree.Find("01").IndexValues[model.PeriodCurrent], 1e-6)
}

func TestBuildTree_MissingRecords(t *testing.T) {
	router, _ := newTestRouter(&fakeDB{})

	w := doJSON(router, http.MethodPost, "/api/v1/trees/build", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetNode(t *testing.T) {
	router, _ := newTestRouter(&fakeDB{})

	require.Equal(t, http.StatusOK, doJSON(router, http.MethodPost, "/api/v1/trees/build", buildPayload()).Code)

	w := doJSON(router, http.MethodGet, "/api/v1/trees/task-1/nodes/01", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Code     string   `json:"code"`
		Weight   float64  `json:"weight"`
		Children []string `json:"children"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "01", resp.Code)
	assert.InDelta(t, 30, resp.Weight, 1e-6)
	assert.Equal(t, []string{"01.1", "01.2"}, resp.Children)
}

func TestGetNode_NotFound(t *testing.T) {
	router, _ := newTestRouter(&fakeDB{})

	require.Equal(t, http.StatusOK, doJSON(router, http.MethodPost, "/api/v1/trees/build", buildPayload()).Code)

	w := doJSON(router, http.MethodGet, "/api/v1/trees/task-1/nodes/99", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRebalanceNode(t *testing.T) {
	router, h := newTestRouter(&fakeDB{rowsErr: model.NewNotFoundError("no rows")})

	require.Equal(t, http.StatusOK, doJSON(router, http.MethodPost, "/api/v1/trees/build", buildPayload()).Code)
	before := h.store.Get("task-1")

	body := []byte(`{"code":"01","new_weight":60}`)
	w := doJSON(router, http.MethodPost, "/api/v1/trees/task-1/rebalance", body)
	require.Equal(t, http.StatusOK, w.Code)

	after := h.store.Get("task-1")
	assert.NotSame(t, before, after)
	assert.InDelta(t, 60, after.Find("01").Weight, 1e-6)
	assert.InDelta(t, 20, after.Find("01.1").Weight, 1e-6)
	// 旧快照不受影响
	assert.InDelta(t, 30, before.Find("01").Weight, 1e-6)
	assert.Equal(t, 1, h.store.History("task-1"))
}

func TestRebalanceNode_NegativeWeight(t *testing.T) {
	router, _ := newTestRouter(&fakeDB{rowsErr: model.NewNotFoundError("no rows")})

	require.Equal(t, http.StatusOK, doJSON(router, http.MethodPost, "/api/v1/trees/build", buildPayload()).Code)

	w := doJSON(router, http.MethodPost, "/api/v1/trees/task-1/rebalance", []byte(`{"code":"01","new_weight":-5}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRebalanceNode_UnknownCode(t *testing.T) {
	router, _ := newTestRouter(&fakeDB{rowsErr: model.NewNotFoundError("no rows")})

	require.Equal(t, http.StatusOK, doJSON(router, http.MethodPost, "/api/v1/trees/build", buildPayload()).Code)

	w := doJSON(router, http.MethodPost, "/api/v1/trees/task-1/rebalance", []byte(`{"code":"99.9","new_weight":10}`))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUndoRebalance(t *testing.T) {
	router, h := newTestRouter(&fakeDB{rowsErr: model.NewNotFoundError("no rows")})

	require.Equal(t, http.StatusOK, doJSON(router, http.MethodPost, "/api/v1/trees/build", buildPayload()).Code)
	require.Equal(t, http.StatusOK,
		doJSON(router, http.MethodPost, "/api/v1/trees/task-1/rebalance", []byte(`{"code":"01","new_weight":60}`)).Code)

	w := doJSON(router, http.MethodPost, "/api/v1/trees/task-1/undo", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 30, h.store.Get("task-1").Find("01").Weight, 1e-6)

	// 没有更多历史时返回冲突
	w = doJSON(router, http.MethodPost, "/api/v1/trees/task-1/undo", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetTree_FromDatabase(t *testing.T) {
	rows := []*database.CategoryRow{
		{Code: model.RootCode, Name: model.RootName, Weight: 30},
		{Code: "01", Name: "食品烟酒", Weight: 30, ParentCode: model.RootCode, ValueCurrent: 140},
	}
	router, _ := newTestRouter(&fakeDB{rows: rows})

	w := doJSON(router, http.MethodGet, "/api/v1/trees/task-db", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "食品烟酒")
}

func TestGetTree_NotFound(t *testing.T) {
	router, _ := newTestRouter(&fakeDB{rowsErr: model.NewNotFoundError("no rows")})

	w := doJSON(router, http.MethodGet, "/api/v1/trees/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportTree(t *testing.T) {
	router, h := newTestRouter(&fakeDB{})

	require.Equal(t, http.StatusOK, doJSON(router, http.MethodPost, "/api/v1/trees/build", buildPayload()).Code)

	w := doJSON(router, http.MethodPost, "/api/v1/trees/task-1/export", nil)
	require.Equal(t, http.StatusOK, w.Code)

	fs := h.storage.(*fakeStorage)
	require.Len(t, fs.uploaded, 1)
	for name, data := range fs.uploaded {
		assert.Contains(t, name, "exports/task-1/")
		assert.Contains(t, string(data), "总指数")
	}
}
