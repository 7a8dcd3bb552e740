package database

import (
	"time"

	"github.com/freedkr/pricetree/internal/model"
)

// CategoryRow 对应于数据库中的 categories 表
// 树快照的扁平化持久形式，一行一个节点，编辑产生新批次而非原地更新
type CategoryRow struct {
	ID         uint    `gorm:"primarykey;autoIncrement"`
	TaskID     string  `gorm:"type:uuid;not null"`         // 任务ID，用于数据隔离
	Code       string  `gorm:"type:varchar(255);not null"` // 分类编码
	Name       string  `gorm:"type:varchar(255);not null"` // 分类名称
	Weight     float64 `gorm:"type:decimal(18,6);not null;default:0"`
	Depth      int     `gorm:"not null;default:0"`
	ParentCode string  `gorm:"type:varchar(255);index"` // 父级编码，顶层为空

	// 5个固定期次的指数值，从最旧到最新
	ValueYearAgo      float64 `gorm:"type:decimal(18,6);not null;default:0"`
	ValueTrimesterAgo float64 `gorm:"type:decimal(18,6);not null;default:0"`
	ValueTwoMonthsAgo float64 `gorm:"type:decimal(18,6);not null;default:0"`
	ValueLastMonth    float64 `gorm:"type:decimal(18,6);not null;default:0"`
	ValueCurrent      float64 `gorm:"type:decimal(18,6);not null;default:0"`

	// 推导的涨跌幅
	VarMonthly   float64 `gorm:"type:decimal(18,6);not null;default:0"`
	VarTrimester float64 `gorm:"type:decimal(18,6);not null;default:0"`
	VarYearly    float64 `gorm:"type:decimal(18,6);not null;default:0"`

	// 版本管理字段
	UploadBatchID   string    `gorm:"type:uuid;not null"`                                // 上传批次ID
	UploadTimestamp time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP"` // 上传时间戳
	IsCurrent       bool      `gorm:"type:boolean;not null;default:true;index"`          // 是否为当前版本

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (CategoryRow) TableName() string {
	return "pricetree.categories"
}

// CategoryVersion 版本历史信息
type CategoryVersion struct {
	UploadBatchID   string    `json:"upload_batch_id"`
	UploadTimestamp time.Time `json:"upload_timestamp"`
	RecordCount     int       `json:"record_count"`
	IsCurrent       bool      `json:"is_current"`
}

// FlattenTree 将树快照扁平化为数据库行（先根顺序）
func FlattenTree(taskID string, tree *model.Tree) []*CategoryRow {
	if tree == nil || tree.Root == nil {
		return nil
	}

	flat := tree.Root.ToFlat()
	rows := make([]*CategoryRow, 0, len(flat))
	for _, cat := range flat {
		parentCode := cat.GetParentCode()
		if cat.Code != model.RootCode && parentCode == "" {
			// 顶层分类挂在合成根下
			parentCode = model.RootCode
		}

		rows = append(rows, &CategoryRow{
			TaskID:            taskID,
			Code:              cat.Code,
			Name:              cat.Name,
			Weight:            cat.Weight,
			Depth:             cat.Depth,
			ParentCode:        parentCode,
			ValueYearAgo:      cat.IndexValues[model.PeriodYearAgo],
			ValueTrimesterAgo: cat.IndexValues[model.PeriodTrimesterAgo],
			ValueTwoMonthsAgo: cat.IndexValues[model.PeriodTwoMonthsAgo],
			ValueLastMonth:    cat.IndexValues[model.PeriodLastMonth],
			ValueCurrent:      cat.IndexValues[model.PeriodCurrent],
			VarMonthly:        cat.Variation.Monthly,
			VarTrimester:      cat.Variation.Trimester,
			VarYearly:         cat.Variation.Yearly,
		})
	}

	return rows
}

// ToCategory 将数据库行还原为模型节点（不含子节点）
func (r *CategoryRow) ToCategory() *model.Category {
	return &model.Category{
		Code:   r.Code,
		Name:   r.Name,
		Weight: r.Weight,
		Depth:  r.Depth,
		IndexValues: [model.NumPeriods]float64{
			r.ValueYearAgo,
			r.ValueTrimesterAgo,
			r.ValueTwoMonthsAgo,
			r.ValueLastMonth,
			r.ValueCurrent,
		},
		Variation: model.Variation{
			Monthly:   r.VarMonthly,
			Trimester: r.VarTrimester,
			Yearly:    r.VarYearly,
		},
	}
}

// RebuildTree 将一个批次的扁平行还原为树快照
// 行顺序即先根顺序，子节点顺序保持入库时的顺序
func RebuildTree(rows []*CategoryRow) *model.Tree {
	if len(rows) == 0 {
		return nil
	}

	nodes := make(map[string]*model.Category, len(rows))
	var root *model.Category
	for _, row := range rows {
		nodes[row.Code] = row.ToCategory()
		if row.Code == model.RootCode {
			root = nodes[row.Code]
		}
	}
	if root == nil {
		root = &model.Category{Code: model.RootCode, Name: model.RootName}
		nodes[model.RootCode] = root
	}

	for _, row := range rows {
		if row.Code == model.RootCode {
			continue
		}
		parent, ok := nodes[row.ParentCode]
		if !ok {
			parent = root
		}
		parent.AddChild(nodes[row.Code])
	}

	return &model.Tree{Root: root}
}
