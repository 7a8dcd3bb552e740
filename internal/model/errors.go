// Package model 定义自定义错误类型
package model

import (
	"fmt"
	"strings"
	"time"
)

// ErrorCode 错误代码类型
type ErrorCode string

// 预定义错误代码
const (
	// 通用错误
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"

	// 文件操作错误
	ErrCodeFileNotFound  ErrorCode = "FILE_NOT_FOUND"
	ErrCodeFileReadError ErrorCode = "FILE_READ_ERROR"
	ErrCodeInvalidFormat ErrorCode = "INVALID_FORMAT"

	// 解析错误
	ErrCodeParseError ErrorCode = "PARSE_ERROR"

	// 验证错误
	ErrCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrCodeMissingField  ErrorCode = "MISSING_FIELD"
	ErrCodeInvalidWeight ErrorCode = "INVALID_WEIGHT"

	// 业务逻辑错误
	ErrCodeHierarchy ErrorCode = "HIERARCHY_ERROR"
	ErrCodeDuplicate ErrorCode = "DUPLICATE_ERROR"
)

// BaseError 基础错误结构
type BaseError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Error 实现error接口
func (e *BaseError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// GetCode 获取错误代码
func (e *BaseError) GetCode() ErrorCode {
	return e.Code
}

// ParseError 解析错误
type ParseError struct {
	BaseError
	Row     int    `json:"row"`
	Content string `json:"content"`
	Field   string `json:"field"`
}

// NewParseError 创建解析错误
func NewParseError(row int, content, field, message string) *ParseError {
	return &ParseError{
		BaseError: BaseError{
			Code:      ErrCodeParseError,
			Message:   message,
			Timestamp: time.Now(),
		},
		Row:     row,
		Content: content,
		Field:   field,
	}
}

// Error 实现error接口
func (e *ParseError) Error() string {
	return fmt.Sprintf("[%s] 行%d解析失败: %s (内容: '%s', 字段: %s)",
		e.Code, e.Row, e.Message, e.Content, e.Field)
}

// ValidationError 验证错误
type ValidationError struct {
	BaseError
	Field      string      `json:"field"`
	Value      interface{} `json:"value"`
	Constraint string      `json:"constraint"`
}

// NewValidationError 创建验证错误
func NewValidationError(field string, value interface{}, constraint, message string) *ValidationError {
	return &ValidationError{
		BaseError: BaseError{
			Code:      ErrCodeValidation,
			Message:   message,
			Timestamp: time.Now(),
		},
		Field:      field,
		Value:      value,
		Constraint: constraint,
	}
}

// Error 实现error接口
func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] 字段'%s'验证失败: %s (值: %v, 约束: %s)",
		e.Code, e.Field, e.Message, e.Value, e.Constraint)
}

// SystemError 系统错误
type SystemError struct {
	BaseError
	Component string `json:"component"`
	Operation string `json:"operation"`
	Cause     error  `json:"cause,omitempty"`
}

// NewSystemError 创建系统错误
func NewSystemError(component, operation, message string, cause error) *SystemError {
	return &SystemError{
		BaseError: BaseError{
			Code:      ErrCodeInternal,
			Message:   message,
			Timestamp: time.Now(),
		},
		Component: component,
		Operation: operation,
		Cause:     cause,
	}
}

// Error 实现error接口
func (e *SystemError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s.%s失败: %s (原因: %v)",
			e.Code, e.Component, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s.%s失败: %s",
		e.Code, e.Component, e.Operation, e.Message)
}

// Unwrap 返回原始错误
func (e *SystemError) Unwrap() error {
	return e.Cause
}

// FileError 文件操作错误
type FileError struct {
	BaseError
	FilePath  string `json:"file_path"`
	Operation string `json:"operation"`
	Cause     error  `json:"cause,omitempty"`
}

// NewFileError 创建文件错误
func NewFileError(code ErrorCode, filepath, operation, message string, cause error) *FileError {
	return &FileError{
		BaseError: BaseError{
			Code:      code,
			Message:   message,
			Timestamp: time.Now(),
		},
		FilePath:  filepath,
		Operation: operation,
		Cause:     cause,
	}
}

// Error 实现error接口
func (e *FileError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] 文件操作失败 %s('%s'): %s (原因: %v)",
			e.Code, e.Operation, e.FilePath, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] 文件操作失败 %s('%s'): %s",
		e.Code, e.Operation, e.FilePath, e.Message)
}

// Unwrap 返回原始错误
func (e *FileError) Unwrap() error {
	return e.Cause
}

// HierarchyError 层级结构错误
type HierarchyError struct {
	BaseError
	NodeCode   string `json:"node_code"`
	ParentCode string `json:"parent_code,omitempty"`
	Operation  string `json:"operation"`
}

// NewHierarchyError 创建层级结构错误
func NewHierarchyError(nodeCode, parentCode, operation, message string) *HierarchyError {
	return &HierarchyError{
		BaseError: BaseError{
			Code:      ErrCodeHierarchy,
			Message:   message,
			Timestamp: time.Now(),
		},
		NodeCode:   nodeCode,
		ParentCode: parentCode,
		Operation:  operation,
	}
}

// Error 实现error接口
func (e *HierarchyError) Error() string {
	if e.ParentCode != "" {
		return fmt.Sprintf("[%s] 层级结构错误 %s('%s' -> '%s'): %s",
			e.Code, e.Operation, e.NodeCode, e.ParentCode, e.Message)
	}
	return fmt.Sprintf("[%s] 层级结构错误 %s('%s'): %s",
		e.Code, e.Operation, e.NodeCode, e.Message)
}

// ErrorList 错误列表
type ErrorList struct {
	Errors []error `json:"errors"`
}

// NewErrorList 创建错误列表
func NewErrorList() *ErrorList {
	return &ErrorList{
		Errors: make([]error, 0),
	}
}

// Add 添加错误
func (el *ErrorList) Add(err error) {
	if err != nil {
		el.Errors = append(el.Errors, err)
	}
}

// HasError 是否有错误
func (el *ErrorList) HasError() bool {
	return len(el.Errors) > 0
}

// Count 错误数量
func (el *ErrorList) Count() int {
	return len(el.Errors)
}

// Error 实现error接口
func (el *ErrorList) Error() string {
	if len(el.Errors) == 0 {
		return ""
	}

	if len(el.Errors) == 1 {
		return el.Errors[0].Error()
	}

	var messages []string
	for _, err := range el.Errors {
		messages = append(messages, err.Error())
	}

	return fmt.Sprintf("发生了%d个错误: [%s]",
		len(el.Errors), strings.Join(messages, "; "))
}

// IsErrorType 检查错误是否为指定类型
func IsErrorType(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	switch e := err.(type) {
	case *BaseError:
		return e.Code == code
	case *ParseError:
		return e.Code == code
	case *ValidationError:
		return e.Code == code
	case *SystemError:
		return e.Code == code
	case *FileError:
		return e.Code == code
	case *HierarchyError:
		return e.Code == code
	}

	return false
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string) error {
	return &BaseError{
		Code:      ErrCodeNotFound,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewInvalidWeightError 创建非法权重错误
func NewInvalidWeightError(code string, weight float64) error {
	return &BaseError{
		Code:      ErrCodeInvalidWeight,
		Message:   fmt.Sprintf("分类'%s'的权重非法: %v（权重必须非负）", code, weight),
		Timestamp: time.Now(),
	}
}

// SimpleValidationError 创建简单验证错误
func SimpleValidationError(message string) error {
	return &BaseError{
		Code:      ErrCodeValidation,
		Message:   message,
		Timestamp: time.Now(),
	}
}
