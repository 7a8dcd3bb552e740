package handlers

import (
	"sync"

	"github.com/freedkr/pricetree/internal/builder"
	"github.com/freedkr/pricetree/internal/model"
)

// TreeStore 内存中的树快照仓库
// 每个任务持有一个当前快照和编辑历史，快照不可变，编辑产生新快照
type TreeStore struct {
	mu         sync.RWMutex
	current    map[string]*model.Tree   // taskID -> 当前快照
	history    map[string][]*model.Tree // taskID -> 历史快照（最旧在前）
	rebalancer builder.TreeRebalancer
}

// NewTreeStore 创建树快照仓库
func NewTreeStore() *TreeStore {
	return &TreeStore{
		current:    make(map[string]*model.Tree),
		history:    make(map[string][]*model.Tree),
		rebalancer: builder.NewRebalancer(),
	}
}

// Get 获取任务的当前快照
func (s *TreeStore) Get(taskID string) *model.Tree {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current[taskID]
}

// Put 设置任务的当前快照（导入完成或缓存加载时调用）
func (s *TreeStore) Put(taskID string, tree *model.Tree) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.current[taskID]; ok {
		s.history[taskID] = append(s.history[taskID], prev)
	}
	s.current[taskID] = tree
}

// Rebalance 对当前快照应用权重编辑，成功后新快照成为当前版本
// 旧快照进入历史，正在读取旧快照的调用方不受影响
func (s *TreeStore) Rebalance(taskID, code string, newWeight float64) (*model.Tree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tree, ok := s.current[taskID]
	if !ok {
		return nil, model.NewNotFoundError("任务没有已加载的树快照: " + taskID)
	}

	newTree, err := s.rebalancer.Rebalance(tree, code, newWeight)
	if err != nil {
		return nil, err
	}

	s.history[taskID] = append(s.history[taskID], tree)
	s.current[taskID] = newTree
	return newTree, nil
}

// History 获取任务的历史快照数量
func (s *TreeStore) History(taskID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history[taskID])
}

// Undo 回退到上一个快照
func (s *TreeStore) Undo(taskID string) (*model.Tree, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hist := s.history[taskID]
	if len(hist) == 0 {
		return nil, false
	}

	prev := hist[len(hist)-1]
	s.history[taskID] = hist[:len(hist)-1]
	s.current[taskID] = prev
	return prev, true
}
