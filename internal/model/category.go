// Package model 定义核心数据模型
package model

// RootCode 合成根节点的固定编码
// 根节点不来自源数据，持有所有顶层分类
const RootCode = "index0"

// RootName 合成根节点的展示名称
const RootName = "总指数"

// NumPeriods 固定的历史期数
const NumPeriods = 5

// 期次索引常量（从最旧到最新）
const (
	PeriodYearAgo      = 0 // n-12，十二个月前
	PeriodTrimesterAgo = 1 // n-3，三个月前
	PeriodTwoMonthsAgo = 2 // n-2
	PeriodLastMonth    = 3 // n-1
	PeriodCurrent      = 4 // n，本期
)

// Variation 涨跌幅，由IndexValues按固定公式推导，不可独立设置
type Variation struct {
	// Monthly 环比涨跌幅（本期相对n-1）
	Monthly float64 `json:"monthly"`

	// Trimester 季度涨跌幅（本期相对n-3）
	Trimester float64 `json:"trimester"`

	// Yearly 同比涨跌幅（本期相对n-12）
	Yearly float64 `json:"yearly"`
}

// Category 价格指数分类结构体
// 表示分类层级中的一个节点，编码如 "01.2"，父编码为去掉最后一段的编码
type Category struct {
	// Code 分类编码，点号分隔的数字段，如 "01.2"，全树唯一
	Code string `json:"code" yaml:"code" validate:"required"`

	// Name 分类名称（展示用）
	Name string `json:"name" yaml:"name" validate:"required"`

	// Weight 权重（ponderation），非负；有子节点时等于子节点权重之和
	Weight float64 `json:"weight" yaml:"weight"`

	// IndexValues 5个固定期次的指数值，从最旧到最新
	IndexValues [NumPeriods]float64 `json:"index_values" yaml:"index_values"`

	// Variation 由IndexValues推导的涨跌幅
	Variation Variation `json:"variation" yaml:"variation"`

	// Depth 展示层级，0或1，由名称前缀标记推导
	// 注意：不是真实的树深度，源数据只区分两级，按原样保留该行为
	Depth int `json:"depth" yaml:"depth"`

	// Children 子分类列表，顺序与源数据中出现的顺序一致
	Children []*Category `json:"children,omitempty" yaml:"children,omitempty"`
}

// PriceRecord 扁平的源记录
// 数值字段保留原始字符串，由构建器做防御性解析（解析失败按0处理）
type PriceRecord struct {
	// Code 分类编码
	Code string `json:"code"`

	// Name 分类名称，可能携带层级标记前缀
	Name string `json:"name"`

	// Weight 权重的原始文本
	Weight string `json:"weight"`

	// Periods 5个期次指数读数的原始文本，从最旧到最新
	Periods [NumPeriods]string `json:"periods"`

	// RowIndex 原始数据行号（用于错误定位）
	RowIndex int `json:"row_index"`
}

// IsTotalRow 判断是否为应跳过的记录：编码缺失或为总计哨兵值
func (r *PriceRecord) IsTotalRow() bool {
	return r.Code == "" || r.Code == "0"
}

// Tree 聚合后的分类树快照
// 每次权重编辑都产生新的Tree值，旧快照保持有效
type Tree struct {
	Root *Category `json:"root"`
}

// Find 按编码查找节点（含根节点）
func (t *Tree) Find(code string) *Category {
	if t == nil || t.Root == nil {
		return nil
	}
	return t.Root.FindDescendant(code)
}

// GetParentCode 获取父级编码
// 例如："01.2.1" -> "01.2"
func (c *Category) GetParentCode() string {
	if c.Code == "" {
		return ""
	}

	lastDot := -1
	for i := len(c.Code) - 1; i >= 0; i-- {
		if c.Code[i] == '.' {
			lastDot = i
			break
		}
	}

	if lastDot == -1 {
		return "" // 没有父级
	}

	return c.Code[:lastDot]
}

// AddChild 添加子分类
func (c *Category) AddChild(child *Category) {
	if c.Children == nil {
		c.Children = make([]*Category, 0)
	}
	c.Children = append(c.Children, child)
}

// IsLeaf 是否为叶子节点
func (c *Category) IsLeaf() bool {
	return len(c.Children) == 0
}

// GetChildrenCount 获取子分类数量
func (c *Category) GetChildrenCount() int {
	if c.Children == nil {
		return 0
	}
	return len(c.Children)
}

// ChildWeightSum 直接子节点的权重之和
func (c *Category) ChildWeightSum() float64 {
	var sum float64
	for _, child := range c.Children {
		sum += child.Weight
	}
	return sum
}

// FindChild 根据编码查找直接子分类
func (c *Category) FindChild(code string) *Category {
	if c.Children == nil {
		return nil
	}

	for _, child := range c.Children {
		if child.Code == code {
			return child
		}
	}
	return nil
}

// FindDescendant 根据编码查找后代分类（递归，含自身）
func (c *Category) FindDescendant(code string) *Category {
	if c.Code == code {
		return c
	}

	if c.Children == nil {
		return nil
	}

	for _, child := range c.Children {
		if found := child.FindDescendant(code); found != nil {
			return found
		}
	}
	return nil
}

// Clone 深拷贝以当前节点为根的子树
func (c *Category) Clone() *Category {
	clone := *c
	if c.Children != nil {
		clone.Children = make([]*Category, len(c.Children))
		for i, child := range c.Children {
			clone.Children[i] = child.Clone()
		}
	}
	return &clone
}

// ToFlat 将层级结构转换为扁平列表（先根顺序）
func (c *Category) ToFlat() []*Category {
	var result []*Category
	result = append(result, c)

	if c.Children != nil {
		for _, child := range c.Children {
			result = append(result, child.ToFlat()...)
		}
	}

	return result
}
