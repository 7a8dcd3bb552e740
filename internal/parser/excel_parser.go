// Package parser 实现数据解析功能
package parser

import (
	"context"
	"fmt"
	"io"
	"log"
	"regexp"
	"strings"

	"github.com/freedkr/pricetree/internal/model"
	"github.com/xuri/excelize/v2"
)

// 数据列布局（0起始）：编码、名称、权重、5个期次指数
const (
	colCode   = 0
	colName   = 1
	colWeight = 2
	colPeriod = 3 // 第一个期次列，之后连续NumPeriods列
)

// reCode 匹配分类编码：点号分隔的数字段，或总计行的"0"
var reCode = regexp.MustCompile(`^\d+(\.\d+)*$`)

// ExcelParserImpl Excel解析器实现
type ExcelParserImpl struct {
	config *ParserConfig
	// reWhitespace 用于匹配一个或多个连续的空白字符（包括空格、制表符、换行符等）
	reWhitespace *regexp.Regexp
}

// ParserConfig 解析器配置
type ParserConfig struct {
	SheetName     string `yaml:"sheet_name" json:"sheet_name"`
	StrictMode    bool   `yaml:"strict_mode" json:"strict_mode"`
	SkipEmptyRows bool   `yaml:"skip_empty_rows" json:"skip_empty_rows"`
	MaxRows       int    `yaml:"max_rows" json:"max_rows"`
}

// NewExcelParser 创建新的Excel解析器
func NewExcelParser(config *ParserConfig) *ExcelParserImpl {
	if config == nil {
		config = &ParserConfig{
			SheetName:     "Sheet1",
			StrictMode:    false,
			SkipEmptyRows: true,
			MaxRows:       0, // 0表示不限制
		}
	}

	return &ExcelParserImpl{
		config:       config,
		reWhitespace: regexp.MustCompile(`\s+`),
	}
}

// Parse 解析输入数据
func (p *ExcelParserImpl) Parse(ctx context.Context, input io.Reader) ([]*model.PriceRecord, error) {
	f, err := excelize.OpenReader(input)
	if err != nil {
		return nil, model.NewFileError(model.ErrCodeFileReadError, "<stream>", "open", "打开Excel数据流失败", err)
	}
	defer f.Close()

	return p.parseWorkbook(ctx, f, p.config.SheetName)
}

// ParseFile 解析Excel文件
func (p *ExcelParserImpl) ParseFile(ctx context.Context, filePath string) ([]*model.PriceRecord, error) {
	return p.ParseSheet(ctx, filePath, p.config.SheetName)
}

// ParseSheet 解析指定工作表
func (p *ExcelParserImpl) ParseSheet(ctx context.Context, filePath, sheetName string) ([]*model.PriceRecord, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, model.NewFileError(model.ErrCodeFileReadError, filePath, "open", "打开Excel文件失败", err)
	}
	defer f.Close()

	return p.parseWorkbook(ctx, f, sheetName)
}

func (p *ExcelParserImpl) parseWorkbook(ctx context.Context, f *excelize.File, sheetName string) ([]*model.PriceRecord, error) {
	if sheetName == "" {
		sheetName = f.GetSheetName(0)
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, model.NewFileError(model.ErrCodeFileReadError, sheetName, "read_sheet", "读取工作表数据失败", err)
	}

	records, stats, err := p.extractRecords(ctx, rows)
	if err != nil {
		return nil, err
	}

	log.Printf("工作表 %s：共 %d 行，解析 %d 条记录，跳过 %d 行",
		sheetName, stats.TotalRows, stats.ProcessedRows, stats.SkippedRows)

	return records, nil
}

// extractRecords 逐行提取价格记录
// 数值字段按原始文本保留，由构建器做防御性解析
func (p *ExcelParserImpl) extractRecords(ctx context.Context, rows [][]string) ([]*model.PriceRecord, *ParseStats, error) {
	var records []*model.PriceRecord
	stats := &ParseStats{TotalRows: len(rows)}

	for i, row := range rows {
		if p.config.MaxRows > 0 && stats.ProcessedRows >= p.config.MaxRows {
			break
		}

		if p.isJunkRow(row) {
			stats.SkippedRows++
			continue
		}

		code := strings.TrimSpace(cellAt(row, colCode))
		if !reCode.MatchString(code) {
			if p.config.StrictMode {
				return nil, nil, model.NewParseError(i+1, code, "code",
					fmt.Sprintf("Excel第 %d 行编码格式无效: %q", i+1, code))
			}
			log.Printf("警告：跳过Excel第 %d 行，编码格式无效: %q", i+1, code)
			stats.SkippedRows++
			continue
		}

		record := &model.PriceRecord{
			Code:     code,
			Name:     p.normalizeName(cellAt(row, colName)),
			Weight:   strings.TrimSpace(cellAt(row, colWeight)),
			RowIndex: i + 1,
		}
		for j := 0; j < model.NumPeriods; j++ {
			record.Periods[j] = strings.TrimSpace(cellAt(row, colPeriod+j))
		}
		records = append(records, record)
		stats.ProcessedRows++

		// 检查上下文取消
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}
	}

	return records, stats, nil
}

// cellAt 安全读取单元格，越界返回空字符串
func cellAt(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return row[idx]
}

// isJunkRow 检查给定的Excel行是否为应被忽略的"垃圾行"
// 包括空行、表头行（如"代码"、"类别"）、续表标记或文档标题行
func (p *ExcelParserImpl) isJunkRow(row []string) bool {
	if len(row) == 0 {
		return true
	}

	firstCell := strings.TrimSpace(row[0])
	if firstCell == "代码" || firstCell == "编码" || firstCell == "类别" {
		return true
	}

	nonEmpty := false
	for _, cell := range row {
		cleanCell := p.reWhitespace.ReplaceAllString(cell, "")
		if cleanCell != "" {
			nonEmpty = true
		}
		if cleanCell == "续表" || strings.Contains(cleanCell, "价格指数") || strings.Contains(cleanCell, "权重表") {
			return true
		}
	}
	if !nonEmpty && p.config.SkipEmptyRows {
		return true
	}

	return false
}

// normalizeName 统一规范化名称字段，清理各种制表符和多余空格
// 保留开头的层级标记（如"*"），由构建器解释
func (p *ExcelParserImpl) normalizeName(name string) string {
	if name == "" {
		return ""
	}

	normalized := strings.ReplaceAll(name, " ", " ") // 不间断空格
	normalized = strings.ReplaceAll(normalized, "　", " ") // 中文全角空格
	normalized = p.reWhitespace.ReplaceAllString(normalized, " ")
	return strings.TrimSpace(normalized)
}

// GetSheetNames 获取所有工作表名称
func (p *ExcelParserImpl) GetSheetNames(filePath string) ([]string, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, model.NewFileError(model.ErrCodeFileReadError, filePath, "open", "打开Excel文件失败", err)
	}
	defer f.Close()

	return f.GetSheetList(), nil
}

// GetSheetInfo 获取工作表信息
func (p *ExcelParserImpl) GetSheetInfo(filePath, sheetName string) (*SheetInfo, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, model.NewFileError(model.ErrCodeFileReadError, filePath, "open", "打开Excel文件失败", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, model.NewFileError(model.ErrCodeFileReadError, sheetName, "read_sheet", "读取工作表数据失败", err)
	}

	info := &SheetInfo{Name: sheetName, RowCount: len(rows)}
	for _, row := range rows {
		if len(row) > info.ColCount {
			info.ColCount = len(row)
		}
	}
	if len(rows) > 0 && p.isJunkRow(rows[0]) {
		info.HasHeader = true
	}
	return info, nil
}

// Validate 验证解析器配置
func (p *ExcelParserImpl) Validate() error {
	if p.config.MaxRows < 0 {
		return model.NewValidationError("max_rows", p.config.MaxRows, "min=0", "最大行数不能为负")
	}
	return nil
}

// GetSupportedFormats 获取支持的格式
func (p *ExcelParserImpl) GetSupportedFormats() []string {
	return []string{"xlsx", "xls"}
}

// GetName 获取解析器名称
func (p *ExcelParserImpl) GetName() string {
	return "ExcelParser"
}

// GetVersion 获取解析器版本
func (p *ExcelParserImpl) GetVersion() string {
	return "1.0.0"
}
