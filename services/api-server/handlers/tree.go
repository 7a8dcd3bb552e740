package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/freedkr/pricetree/internal/database"
	"github.com/freedkr/pricetree/internal/model"
)

// BuildTreeRequest 直接构建树请求
type BuildTreeRequest struct {
	TaskID  string               `json:"task_id"`
	Records []*model.PriceRecord `json:"records" binding:"required"`
}

// RebalanceRequest 权重编辑请求
type RebalanceRequest struct {
	Code      string   `json:"code" binding:"required"`
	NewWeight *float64 `json:"new_weight" binding:"required"`
}

// BuildTree 从记录列表构建并聚合树快照
// 构建结果进入内存仓库，可继续用树查询和权重编辑接口访问
func (h *Handlers) BuildTree(c *gin.Context) {
	var req BuildTreeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tree, err := h.builder.BuildTree(c.Request.Context(), req.Records)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	taskID := req.TaskID
	if taskID == "" {
		taskID = uuid.New().String()
	}
	h.store.Put(taskID, tree)
	h.hub.Broadcast(taskID, &TreeUpdateEvent{TaskID: taskID, Action: "import"})

	c.JSON(http.StatusOK, gin.H{
		"task_id": taskID,
		"tree":    tree,
	})
}

// GetTree 获取任务的当前树快照
func (h *Handlers) GetTree(c *gin.Context) {
	taskID := c.Param("task_id")

	tree, err := h.loadTree(c, taskID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "树快照不存在", "task_id": taskID})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task_id":   taskID,
		"tree":      tree,
		"revisions": h.store.History(taskID),
	})
}

// GetNode 按编码获取单个节点
func (h *Handlers) GetNode(c *gin.Context) {
	taskID := c.Param("task_id")
	code := c.Param("code")

	tree, err := h.loadTree(c, taskID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "树快照不存在", "task_id": taskID})
		return
	}

	node := tree.Find(code)
	if node == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "分类不存在", "code": code})
		return
	}

	// 不带子树返回，子节点只给编码列表
	childCodes := make([]string, 0, node.GetChildrenCount())
	for _, child := range node.Children {
		childCodes = append(childCodes, child.Code)
	}

	c.JSON(http.StatusOK, gin.H{
		"code":         node.Code,
		"name":         node.Name,
		"weight":       node.Weight,
		"index_values": node.IndexValues,
		"variation":    node.Variation,
		"depth":        node.Depth,
		"children":     childCodes,
	})
}

// GetChildren 获取节点的直接子节点
func (h *Handlers) GetChildren(c *gin.Context) {
	taskID := c.Param("task_id")
	code := c.Param("code")

	tree, err := h.loadTree(c, taskID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "树快照不存在", "task_id": taskID})
		return
	}

	node := tree.Find(code)
	if node == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "分类不存在", "code": code})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":     code,
		"children": node.Children,
		"count":    node.GetChildrenCount(),
	})
}

// RebalanceNode 对节点应用权重编辑，返回新快照的受影响节点
func (h *Handlers) RebalanceNode(c *gin.Context) {
	taskID := c.Param("task_id")

	var req RebalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 确保快照已加载
	if _, err := h.loadTree(c, taskID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "树快照不存在", "task_id": taskID})
		return
	}

	newTree, err := h.store.Rebalance(taskID, req.Code, *req.NewWeight)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	h.hub.Broadcast(taskID, &TreeUpdateEvent{
		TaskID:    taskID,
		Code:      req.Code,
		NewWeight: *req.NewWeight,
		Action:    "rebalance",
	})

	c.JSON(http.StatusOK, gin.H{
		"task_id":   taskID,
		"node":      newTree.Find(req.Code),
		"root":      newTree.Root,
		"revisions": h.store.History(taskID),
	})
}

// UndoRebalance 回退到上一个快照
func (h *Handlers) UndoRebalance(c *gin.Context) {
	taskID := c.Param("task_id")

	tree, ok := h.store.Undo(taskID)
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "没有可回退的快照", "task_id": taskID})
		return
	}

	h.hub.Broadcast(taskID, &TreeUpdateEvent{TaskID: taskID, Action: "undo"})

	c.JSON(http.StatusOK, gin.H{
		"task_id":   taskID,
		"root":      tree.Root,
		"revisions": h.store.History(taskID),
	})
}

// WatchTree 订阅任务的树更新事件（WebSocket）
func (h *Handlers) WatchTree(c *gin.Context) {
	taskID := c.Param("task_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket升级失败: %v", err)
		return
	}

	h.hub.Register(taskID, conn)

	// 读循环只用于感知客户端断开
	go func() {
		defer h.hub.Unregister(taskID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// ExportTree 将当前快照导出为JSON并存入对象存储
func (h *Handlers) ExportTree(c *gin.Context) {
	taskID := c.Param("task_id")

	tree, err := h.loadTree(c, taskID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "树快照不存在", "task_id": taskID})
		return
	}

	objectName := "exports/" + taskID + "/tree-" + uuid.New().String() + ".json"
	if err := h.storage.UploadJSON(c.Request.Context(), objectName, tree); err != nil {
		log.Printf("导出树快照失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "导出树快照失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task_id":     taskID,
		"object_name": objectName,
	})
}

// loadTree 获取任务的当前快照，内存未命中时从数据库当前版本重建
func (h *Handlers) loadTree(c *gin.Context, taskID string) (*model.Tree, error) {
	if tree := h.store.Get(taskID); tree != nil {
		return tree, nil
	}

	rows, err := h.db.GetCurrentCategoriesByTaskID(c.Request.Context(), taskID)
	if err != nil {
		return nil, err
	}
	tree := database.RebuildTree(rows)
	if tree == nil {
		return nil, model.NewNotFoundError("任务没有已持久化的树快照: " + taskID)
	}

	h.store.Put(taskID, tree)
	return tree, nil
}
