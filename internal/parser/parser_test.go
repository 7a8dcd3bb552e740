package parser

import (
	"context"
	"reflect"
	"strings"
	"testing"
)

func TestNewExcelParser(t *testing.T) {
	// 测试使用默认配置
	parser := NewExcelParser(nil)
	if parser == nil {
		t.Fatal("Expected parser to be created")
	}
	if parser.config.SheetName != "Sheet1" {
		t.Errorf("Expected default sheet name 'Sheet1', got '%s'", parser.config.SheetName)
	}
	if parser.config.StrictMode {
		t.Error("Expected strict mode to be false by default")
	}

	// 测试使用自定义配置
	config := &ParserConfig{
		SheetName:     "CustomSheet",
		StrictMode:    true,
		SkipEmptyRows: false,
		MaxRows:       100,
	}
	parser = NewExcelParser(config)
	if parser.config.SheetName != "CustomSheet" {
		t.Errorf("Expected sheet name 'CustomSheet', got '%s'", parser.config.SheetName)
	}
	if !parser.config.StrictMode {
		t.Error("Expected strict mode to be true")
	}
}

func TestExcelParserImpl_GetName(t *testing.T) {
	parser := NewExcelParser(nil)
	if parser.GetName() != "ExcelParser" {
		t.Errorf("Expected name 'ExcelParser', got '%s'", parser.GetName())
	}
}

func TestExcelParserImpl_GetSupportedFormats(t *testing.T) {
	parser := NewExcelParser(nil)
	formats := parser.GetSupportedFormats()
	expected := []string{"xlsx", "xls"}

	if !reflect.DeepEqual(formats, expected) {
		t.Errorf("Expected formats %v, got %v", expected, formats)
	}
}

func TestExcelParserImpl_ExtractRecords(t *testing.T) {
	parser := NewExcelParser(nil)
	rows := [][]string{
		{"消费价格指数权重表", "", ""},
		{"代码", "类别", "权重", "n-12", "n-3", "n-2", "n-1", "n"},
		{"0", "总计", "100", "", "", "", "", ""},
		{"01", "食品烟酒", "30", "", "", "", "", ""},
		{"01.1", " *粮食 ", "10", "100", "105", "108", "110", "120"},
		{},
		{"续表", "", ""},
		{"abc", "无效编码行", "5"},
		{"02", "衣着"},
	}

	records, stats, err := parser.extractRecords(context.Background(), rows)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// 标题行、表头行、空行、续表行、无效编码行均被跳过
	if len(records) != 4 {
		t.Fatalf("Expected 4 records, got %d", len(records))
	}
	if stats.SkippedRows != 5 {
		t.Errorf("Expected 5 skipped rows, got %d", stats.SkippedRows)
	}

	// 总计行照常解析，由构建器决定跳过
	if records[0].Code != "0" || !records[0].IsTotalRow() {
		t.Errorf("Expected total row to be parsed, got %+v", records[0])
	}

	// 名称规范化但保留层级标记
	grain := records[2]
	if grain.Code != "01.1" {
		t.Fatalf("Expected record '01.1', got %q", grain.Code)
	}
	if grain.Name != "*粮食" {
		t.Errorf("Expected normalized name '*粮食', got %q", grain.Name)
	}
	if grain.Weight != "10" {
		t.Errorf("Expected raw weight '10', got %q", grain.Weight)
	}
	if grain.Periods != [5]string{"100", "105", "108", "110", "120"} {
		t.Errorf("Unexpected periods: %v", grain.Periods)
	}
	if grain.RowIndex != 5 {
		t.Errorf("Expected row index 5, got %d", grain.RowIndex)
	}

	// 缺失列补空字符串
	clothing := records[3]
	if clothing.Weight != "" || clothing.Periods != [5]string{} {
		t.Errorf("Expected empty fields for short row, got %+v", clothing)
	}
}

func TestExcelParserImpl_StrictMode(t *testing.T) {
	parser := NewExcelParser(&ParserConfig{SheetName: "Sheet1", StrictMode: true, SkipEmptyRows: true})
	rows := [][]string{
		{"01", "食品烟酒", "30"},
		{"abc", "无效编码行", "5"},
	}

	_, _, err := parser.extractRecords(context.Background(), rows)
	if err == nil {
		t.Fatal("Expected error in strict mode for invalid code")
	}
}

func TestExcelParserImpl_MaxRows(t *testing.T) {
	parser := NewExcelParser(&ParserConfig{SheetName: "Sheet1", MaxRows: 2, SkipEmptyRows: true})
	rows := [][]string{
		{"01", "食品烟酒", "30"},
		{"02", "衣着", "15"},
		{"03", "居住", "20"},
	}

	records, _, err := parser.extractRecords(context.Background(), rows)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("Expected 2 records with MaxRows=2, got %d", len(records))
	}
}

func TestCSVParserImpl_Parse(t *testing.T) {
	input := `消费价格指数权重表,,,,,,,
代码,类别,权重,n-12,n-3,n-2,n-1,n
0,总计,100,,,,,
01,食品烟酒,30,,,,,
01.1,粮食,10,100,105,108,110,120
01.2,畜肉类,20,100,120,130,140,150
`

	parser := NewCSVParser(nil)
	records, err := parser.Parse(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(records) != 4 {
		t.Fatalf("Expected 4 records, got %d", len(records))
	}
	if records[1].Code != "01" || records[1].Name != "食品烟酒" {
		t.Errorf("Unexpected record: %+v", records[1])
	}
	if records[3].Periods[4] != "150" {
		t.Errorf("Expected current period '150', got %q", records[3].Periods[4])
	}
}

func TestCSVParserImpl_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	parser := NewCSVParser(nil)
	_, err := parser.Parse(ctx, strings.NewReader("01,食品烟酒,30\n"))
	if err == nil {
		t.Fatal("Expected context cancellation error")
	}
}

func TestCSVParserImpl_GetSupportedFormats(t *testing.T) {
	parser := NewCSVParser(nil)
	if !reflect.DeepEqual(parser.GetSupportedFormats(), []string{"csv"}) {
		t.Errorf("Unexpected formats: %v", parser.GetSupportedFormats())
	}
}
