package exporter

import (
	"encoding/json"
	"fmt"

	"github.com/hcpdigital/letter-ner-system/internal/ner"
)

// JSONExporter JSON格式导出器
// 默认只保留实体序列，即{"ents": [...]}形式
type JSONExporter struct {
	entsOnly bool // 只导出ents键
	indent   bool // 缩进输出
}

// JSONOption JSON导出器配置选项
type JSONOption func(*JSONExporter)

// WithFullDocument 导出完整的文档对象（含text键）而非仅实体序列
func WithFullDocument() JSONOption {
	return func(e *JSONExporter) {
		e.entsOnly = false
	}
}

// WithIndent 缩进输出JSON
func WithIndent() JSONOption {
	return func(e *JSONExporter) {
		e.indent = true
	}
}

// NewJSONExporter 创建JSON导出器
func NewJSONExporter(opts ...JSONOption) *JSONExporter {
	e := &JSONExporter{
		entsOnly: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export 将标注结果序列化为JSON
func (e *JSONExporter) Export(annotation *ner.Annotation) ([]byte, error) {
	if annotation == nil {
		return nil, fmt.Errorf("annotation cannot be nil")
	}

	var payload map[string]interface{}
	if e.entsOnly {
		payload = annotation.EntsMap()
	} else {
		payload = annotation.ToMap()
	}

	if e.indent {
		return json.MarshalIndent(payload, "", "  ")
	}
	return json.Marshal(payload)
}

// Format 返回导出格式
func (e *JSONExporter) Format() Format {
	return FormatJSON
}

// ContentType 返回HTTP响应的内容类型
func (e *JSONExporter) ContentType() string {
	return "application/json"
}

// FileExtension 返回导出文件的扩展名
func (e *JSONExporter) FileExtension() string {
	return ".json"
}
