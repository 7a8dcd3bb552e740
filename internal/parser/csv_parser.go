package parser

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"strings"

	"github.com/freedkr/pricetree/internal/model"
)

// CSVParserImpl CSV解析器实现
// 列布局与Excel解析器一致：编码、名称、权重、5个期次指数
type CSVParserImpl struct {
	config       *CSVConfig
	reWhitespace *regexp.Regexp
}

// CSVConfig CSV解析器配置
type CSVConfig struct {
	Comma      rune `yaml:"comma" json:"comma"`
	StrictMode bool `yaml:"strict_mode" json:"strict_mode"`
	MaxRows    int  `yaml:"max_rows" json:"max_rows"`
}

// NewCSVParser 创建新的CSV解析器
func NewCSVParser(config *CSVConfig) *CSVParserImpl {
	if config == nil {
		config = &CSVConfig{
			Comma:      ',',
			StrictMode: false,
			MaxRows:    0,
		}
	}

	return &CSVParserImpl{
		config:       config,
		reWhitespace: regexp.MustCompile(`\s+`),
	}
}

// Parse 从输入流解析CSV数据
func (p *CSVParserImpl) Parse(ctx context.Context, input io.Reader) ([]*model.PriceRecord, error) {
	reader := csv.NewReader(input)
	reader.Comma = p.config.Comma
	// 行内列数不定（表头行、续表行），逐行自行裁剪
	reader.FieldsPerRecord = -1

	var records []*model.PriceRecord
	rowIndex := 0
	processed := 0

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, model.NewFileError(model.ErrCodeFileReadError, "<stream>", "read", "读取CSV数据失败", err)
		}
		rowIndex++

		if p.config.MaxRows > 0 && processed >= p.config.MaxRows {
			break
		}

		code := strings.TrimSpace(cellAt(row, colCode))
		if !reCode.MatchString(code) {
			if p.config.StrictMode {
				return nil, model.NewParseError(rowIndex, code, "code",
					fmt.Sprintf("CSV第 %d 行编码格式无效: %q", rowIndex, code))
			}
			continue
		}

		record := &model.PriceRecord{
			Code:     code,
			Name:     strings.TrimSpace(p.reWhitespace.ReplaceAllString(cellAt(row, colName), " ")),
			Weight:   strings.TrimSpace(cellAt(row, colWeight)),
			RowIndex: rowIndex,
		}
		for j := 0; j < model.NumPeriods; j++ {
			record.Periods[j] = strings.TrimSpace(cellAt(row, colPeriod+j))
		}
		records = append(records, record)
		processed++
	}

	log.Printf("CSV数据：共 %d 行，解析 %d 条记录", rowIndex, processed)
	return records, nil
}

// ParseFile 解析CSV文件
func (p *CSVParserImpl) ParseFile(ctx context.Context, filePath string) ([]*model.PriceRecord, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, model.NewFileError(model.ErrCodeFileNotFound, filePath, "open", "打开CSV文件失败", err)
	}
	defer f.Close()

	return p.Parse(ctx, f)
}

// Validate 验证解析器配置
func (p *CSVParserImpl) Validate() error {
	if p.config.Comma == 0 {
		return model.NewValidationError("comma", p.config.Comma, "required", "分隔符不能为空")
	}
	return nil
}

// GetSupportedFormats 获取支持的格式
func (p *CSVParserImpl) GetSupportedFormats() []string {
	return []string{"csv"}
}

// GetName 获取解析器名称
func (p *CSVParserImpl) GetName() string {
	return "CSVParser"
}

// GetVersion 获取解析器版本
func (p *CSVParserImpl) GetVersion() string {
	return "1.0.0"
}
