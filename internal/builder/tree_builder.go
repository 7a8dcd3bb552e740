// Package builder 实现分类树的构建、聚合与权重再平衡
package builder

import (
	"context"
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/freedkr/pricetree/internal/model"
)

// DefaultDepthMarker 名称中的嵌套标记前缀
// 带该前缀的分类Depth置1，前缀从展示名称中剥离；其余分类Depth为0
const DefaultDepthMarker = "*"

// weightSumTolerance 权重和不变量校验的浮点容差
const weightSumTolerance = 1e-6

// TreeBuilderImpl 分类树构建器实现
type TreeBuilderImpl struct {
	config *BuilderConfig
}

// BuilderConfig 构建器配置
type BuilderConfig struct {
	DepthMarker string `yaml:"depth_marker" json:"depth_marker"`
}

// NewTreeBuilder 创建新的分类树构建器
func NewTreeBuilder(config *BuilderConfig) *TreeBuilderImpl {
	if config == nil {
		config = &BuilderConfig{}
	}
	if config.DepthMarker == "" {
		config.DepthMarker = DefaultDepthMarker
	}

	return &TreeBuilderImpl{
		config: config,
	}
}

// Build 构建分类树
// 跳过编码缺失或为总计哨兵值的记录；数值字段防御性解析（失败按0处理）；
// 叶子节点的涨跌幅直接由自身5个读数推导；父节点按结构化编码查找，
// 不存在则作为孤儿直接挂在合成根节点下
func (b *TreeBuilderImpl) Build(ctx context.Context, records []*model.PriceRecord) (*model.Tree, error) {
	root := &model.Category{
		Code: model.RootCode,
		Name: model.RootName,
	}
	nodeMap := make(map[string]*model.Category)
	var ordered []*model.Category

	// 第一步：创建所有节点（重复编码保留首次出现）
	for _, record := range records {
		if record == nil || record.IsTotalRow() {
			continue
		}
		if _, exists := nodeMap[record.Code]; exists {
			log.Printf("警告：发现重复编码 '%s'，保留首次出现的记录", record.Code)
			continue
		}

		name := record.Name
		depth := 0
		if strings.HasPrefix(name, b.config.DepthMarker) {
			depth = 1
			name = strings.TrimSpace(strings.TrimPrefix(name, b.config.DepthMarker))
		}

		category := &model.Category{
			Code:   record.Code,
			Name:   name,
			Weight: parseNumber(record.Weight),
			Depth:  depth,
		}
		for i, raw := range record.Periods {
			category.IndexValues[i] = parseNumber(raw)
		}
		category.Variation = computeVariation(category.IndexValues)

		nodeMap[record.Code] = category
		ordered = append(ordered, category)

		// 检查上下文取消
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}

	// 第二步：按出现顺序建立父子关系，保证子节点顺序与源数据一致
	for _, node := range ordered {
		parentCode := node.GetParentCode()
		if parent, ok := nodeMap[parentCode]; ok && parentCode != "" {
			parent.AddChild(node)
		} else {
			root.AddChild(node)
		}
	}

	// 根节点权重 = 直接子节点权重之和
	root.Weight = root.ChildWeightSum()

	return &model.Tree{Root: root}, nil
}

// BuildTree 构建并聚合分类树
// 对应载入流程：扁平记录 -> 原始树 -> 聚合树（首次渲染用）
func (b *TreeBuilderImpl) BuildTree(ctx context.Context, records []*model.PriceRecord) (*model.Tree, error) {
	tree, err := b.Build(ctx, records)
	if err != nil {
		return nil, err
	}

	NewAggregator().Aggregate(tree)
	return tree, nil
}

// Validate 验证分类树的不变量
func (b *TreeBuilderImpl) Validate(tree *model.Tree) *model.ErrorList {
	errors := &model.ErrorList{}

	if tree == nil || tree.Root == nil {
		errors.Add(model.SimpleValidationError("分类树为空"))
		return errors
	}

	seen := make(map[string]bool)
	for _, child := range tree.Root.Children {
		b.validateCategory(child, seen, errors)
	}

	// 根节点权重和
	if math.Abs(tree.Root.Weight-tree.Root.ChildWeightSum()) > weightSumTolerance {
		errors.Add(model.NewValidationError("weight", tree.Root.Weight, "weight_sum",
			"根节点权重不等于子节点权重之和"))
	}

	if len(errors.Errors) == 0 {
		return nil
	}
	return errors
}

// validateCategory 验证单个分类
func (b *TreeBuilderImpl) validateCategory(category *model.Category, seen map[string]bool, errors *model.ErrorList) {
	if category.Code == "" {
		errors.Add(model.NewValidationError("code", "", "required", "分类编码不能为空"))
	} else if !b.isValidCode(category.Code) {
		errors.Add(model.NewValidationError("code", category.Code, "code_format", "无效的分类编码格式"))
	}

	if category.Name == "" {
		errors.Add(model.NewValidationError("name", "", "required", "分类名称不能为空"))
	}

	if category.Weight < 0 {
		errors.Add(model.NewValidationError("weight", category.Weight, "non_negative", "分类权重不能为负"))
	}

	// 编码唯一性
	if seen[category.Code] {
		errors.Add(model.NewHierarchyError(category.Code, "", "uniqueness", "编码重复"))
	}
	seen[category.Code] = true

	// 权重和不变量
	if len(category.Children) > 0 {
		if math.Abs(category.Weight-category.ChildWeightSum()) > weightSumTolerance {
			errors.Add(model.NewValidationError("weight", category.Weight, "weight_sum",
				"节点权重不等于子节点权重之和"))
		}
	}

	// 递归验证子分类
	for _, child := range category.Children {
		b.validateCategory(child, seen, errors)
	}
}

// isValidCode 验证编码格式：点号分隔的数字段
func (b *TreeBuilderImpl) isValidCode(code string) bool {
	if code == "" {
		return false
	}

	for _, char := range code {
		if !((char >= '0' && char <= '9') || char == '.') {
			return false
		}
	}

	// 不能以点号开始或结束
	if strings.HasPrefix(code, ".") || strings.HasSuffix(code, ".") {
		return false
	}

	// 不能有连续的点号
	if strings.Contains(code, "..") {
		return false
	}

	return true
}

// GetName 获取构建器名称
func (b *TreeBuilderImpl) GetName() string {
	return "TreeBuilder"
}

// GetVersion 获取构建器版本
func (b *TreeBuilderImpl) GetVersion() string {
	return "1.0.0"
}

// parseNumber 防御性解析数值字段
// 源数据中的小数可能使用逗号分隔；无法解析或缺失的值一律按0处理，从不报错
func parseNumber(raw string) float64 {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return 0
	}
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return value
}
