package builder

import (
	"fmt"

	"github.com/freedkr/pricetree/internal/model"
)

// Rebalancer 权重再平衡器实现
// 对任意节点应用一次权重编辑：按比例缩放其全部后代的权重，
// 重算该节点与所有祖先的指数与涨跌幅，返回新的一致树快照
type Rebalancer struct{}

// NewRebalancer 创建新的权重再平衡器
func NewRebalancer() *Rebalancer {
	return &Rebalancer{}
}

// Rebalance 应用权重编辑并返回新的树快照
//
// 契约：
//   - newWeight必须非负，负值返回INVALID_WEIGHT错误
//   - 编码不存在返回NOT_FOUND错误，输入树不受影响
//   - 目标节点有子节点时，scale = newWeight/子节点权重之和，递归作用于
//     整个子树的每一个权重，保持后代之间的比例；子节点权重之和为0时
//     无法定义缩放比例，后代权重保持不变（退化情形，不视为错误）
//   - 只有权重向下传播，子节点自身的指数值不会向下重算
//   - 从目标父节点到根的每个祖先：权重=子节点权重之和，指数与涨跌幅重算
//   - 旧快照保持有效：根到目标的路径被克隆，未触及的兄弟子树按引用共享，
//     被缩放的子树整体深拷贝
//   - 幂等：对同一(code, newWeight)连续调用两次与调用一次结果相同
func (r *Rebalancer) Rebalance(tree *model.Tree, code string, newWeight float64) (*model.Tree, error) {
	if newWeight < 0 {
		return nil, model.NewInvalidWeightError(code, newWeight)
	}
	if tree == nil || tree.Root == nil {
		return nil, model.NewNotFoundError(fmt.Sprintf("分类不存在: %s", code))
	}

	path := findPath(tree.Root, code)
	if path == nil {
		return nil, model.NewNotFoundError(fmt.Sprintf("分类不存在: %s", code))
	}

	// 克隆根到目标的路径，路径外的子树按引用共享
	clones := make([]*model.Category, len(path))
	for i, node := range path {
		clone := *node
		clone.Children = append([]*model.Category(nil), node.Children...)
		clones[i] = &clone

		if i > 0 {
			// 在父克隆的子节点列表中，将原节点指针替换为克隆
			for j, child := range clones[i-1].Children {
				if child == node {
					clones[i-1].Children[j] = &clone
					break
				}
			}
		}
	}
	target := clones[len(clones)-1]

	if !target.IsLeaf() {
		totalChildWeight := target.ChildWeightSum()
		if totalChildWeight > 0 {
			scale := newWeight / totalChildWeight
			for i, child := range target.Children {
				target.Children[i] = scaleSubtree(child, scale)
			}
		}
		// 用更新后的子节点重算目标自身的指数与涨跌幅
		recomputeFromChildren(target)
	}
	target.Weight = newWeight

	// 从目标父节点一路回溯到根
	for i := len(clones) - 2; i >= 0; i-- {
		ancestor := clones[i]
		ancestor.Weight = ancestor.ChildWeightSum()
		recomputeFromChildren(ancestor)
	}

	return &model.Tree{Root: clones[0]}, nil
}

// findPath 返回从当前节点到目标编码的节点路径，找不到返回nil
func findPath(node *model.Category, code string) []*model.Category {
	if node.Code == code {
		return []*model.Category{node}
	}

	for _, child := range node.Children {
		if sub := findPath(child, code); sub != nil {
			return append([]*model.Category{node}, sub...)
		}
	}
	return nil
}

// scaleSubtree 深拷贝子树并将其中每一个权重乘以scale
// 指数值与涨跌幅原样保留，不向下重算
func scaleSubtree(node *model.Category, scale float64) *model.Category {
	clone := *node
	clone.Weight = node.Weight * scale
	if node.Children != nil {
		clone.Children = make([]*model.Category, len(node.Children))
		for i, child := range node.Children {
			clone.Children[i] = scaleSubtree(child, scale)
		}
	}
	return &clone
}
