package builder

import (
	"github.com/freedkr/pricetree/internal/model"
)

// Aggregator 指数聚合器实现
// 自底向上为每个有子节点的节点（含合成根）计算加权平均指数与涨跌幅
type Aggregator struct{}

// NewAggregator 创建新的指数聚合器
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Aggregate 后序遍历聚合整棵树
// 叶子节点保持构建时计算的IndexValues与Variation，不被触碰
func (a *Aggregator) Aggregate(tree *model.Tree) {
	if tree == nil || tree.Root == nil {
		return
	}
	a.aggregateNode(tree.Root)
}

// aggregateNode 先聚合所有子树，再用子节点重算当前节点
func (a *Aggregator) aggregateNode(node *model.Category) {
	if node.IsLeaf() {
		return
	}

	for _, child := range node.Children {
		a.aggregateNode(child)
	}

	recomputeFromChildren(node)
}

// recomputeFromChildren 用子节点当前的权重与指数值重算节点的5个指数字段与涨跌幅
// 聚合器与再平衡器共用这一个实现，保证两条路径使用同一公式
//
// 对每个期次字段独立计算：
//
//	weightedSum = Σ(子节点值 × 子节点权重)，只统计该字段值非零的子节点
//	validWeight = 同一批子节点的权重之和
//	新值        = validWeight > 0 ? weightedSum/validWeight : 保留原值
func recomputeFromChildren(node *model.Category) {
	for field := 0; field < model.NumPeriods; field++ {
		var weightedSum, validWeight float64
		for _, child := range node.Children {
			if child.IndexValues[field] != 0 {
				weightedSum += child.IndexValues[field] * child.Weight
				validWeight += child.Weight
			}
		}
		if validWeight > 0 {
			node.IndexValues[field] = weightedSum / validWeight
		}
	}

	node.Variation = computeVariation(node.IndexValues)
}

// computeVariation 按固定公式从5个指数值推导涨跌幅
// 基期值为零时对应字段保留0，不做除法
func computeVariation(values [model.NumPeriods]float64) model.Variation {
	var v model.Variation

	if base := values[model.PeriodYearAgo]; base != 0 {
		v.Yearly = (values[model.PeriodCurrent] - base) / base * 100
	}
	if base := values[model.PeriodLastMonth]; base != 0 {
		v.Monthly = (values[model.PeriodCurrent] - base) / base * 100
	}
	if base := values[model.PeriodTrimesterAgo]; base != 0 {
		v.Trimester = (values[model.PeriodCurrent] - base) / base * 100
	}

	return v
}
