// Package parser 定义解析器相关接口
package parser

import (
	"context"
	"io"

	"github.com/freedkr/pricetree/internal/model"
)

// Parser 通用解析器接口
// 所有解析器都必须实现此接口
type Parser interface {
	// Parse 从输入流解析数据
	Parse(ctx context.Context, input io.Reader) ([]*model.PriceRecord, error)

	// Validate 验证解析器配置
	Validate() error

	// GetName 获取解析器名称
	GetName() string

	// GetVersion 获取解析器版本
	GetVersion() string

	// GetSupportedFormats 获取支持的文件格式
	GetSupportedFormats() []string
}

// ExcelParser Excel专用解析器接口
// 继承Parser接口，添加Excel特定功能
type ExcelParser interface {
	Parser

	// ParseFile 解析Excel文件
	ParseFile(ctx context.Context, filepath string) ([]*model.PriceRecord, error)

	// ParseSheet 解析指定工作表
	ParseSheet(ctx context.Context, filepath, sheetName string) ([]*model.PriceRecord, error)

	// GetSheetNames 获取所有工作表名称
	GetSheetNames(filepath string) ([]string, error)

	// GetSheetInfo 获取工作表信息
	GetSheetInfo(filepath, sheetName string) (*SheetInfo, error)
}

// SheetInfo 工作表信息
type SheetInfo struct {
	Name      string `json:"name"`       // 工作表名称
	RowCount  int    `json:"row_count"`  // 行数
	ColCount  int    `json:"col_count"`  // 列数
	HasHeader bool   `json:"has_header"` // 是否有标题行
}

// ParseStats 解析统计
type ParseStats struct {
	TotalRows     int `json:"total_rows"`     // 总行数
	ProcessedRows int `json:"processed_rows"` // 处理的行数
	SkippedRows   int `json:"skipped_rows"`   // 跳过的行数
}
