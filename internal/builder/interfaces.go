// Package builder 定义分类树构建相关接口
package builder

import (
	"context"

	"github.com/freedkr/pricetree/internal/model"
)

// TreeBuilder 分类树构建器接口
// 负责将扁平的PriceRecord记录构建成以合成根节点为顶的分类树
type TreeBuilder interface {
	// Build 构建分类树（只建结构和叶子数据，不做聚合）
	Build(ctx context.Context, records []*model.PriceRecord) (*model.Tree, error)

	// BuildTree 构建并聚合分类树，载入时调用一次
	BuildTree(ctx context.Context, records []*model.PriceRecord) (*model.Tree, error)

	// Validate 验证分类树的不变量
	Validate(tree *model.Tree) *model.ErrorList

	// GetName 获取构建器名称
	GetName() string

	// GetVersion 获取构建器版本
	GetVersion() string
}

// TreeAggregator 指数聚合器接口
// 自底向上为每个非叶子节点计算加权平均指数与涨跌幅
type TreeAggregator interface {
	// Aggregate 后序遍历聚合整棵树
	Aggregate(tree *model.Tree)
}

// TreeRebalancer 权重再平衡器接口
// 对单个节点应用权重编辑，返回新的一致树快照
type TreeRebalancer interface {
	// Rebalance 应用权重编辑
	Rebalance(tree *model.Tree, code string, newWeight float64) (*model.Tree, error)
}
