package exporter

import (
	"fmt"

	"github.com/hcpdigital/letter-ner-system/internal/ner"
)

// Format 导出格式
type Format string

const (
	FormatJSON     Format = "json"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
	FormatPDF      Format = "pdf"
)

// Exporter 标注结果导出器接口
type Exporter interface {
	// Export 将标注结果序列化为目标格式
	Export(annotation *ner.Annotation) ([]byte, error)

	// Format 返回导出格式
	Format() Format

	// ContentType 返回HTTP响应的内容类型
	ContentType() string

	// FileExtension 返回导出文件的扩展名（含点）
	FileExtension() string
}

// ExporterFactory 导出器工厂，根据格式创建对应的导出器
type ExporterFactory struct{}

// NewExporterFactory 创建导出器工厂
func NewExporterFactory() *ExporterFactory {
	return &ExporterFactory{}
}

// GetExporter 根据格式获取对应的导出器
func (f *ExporterFactory) GetExporter(format Format) (Exporter, error) {
	switch format {
	case FormatJSON:
		return NewJSONExporter(), nil
	case FormatHTML:
		return NewHTMLExporter(), nil
	case FormatMarkdown:
		return NewMarkdownExporter(), nil
	case FormatPDF:
		return NewPDFExporter(), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// SupportedFormats 返回支持的导出格式
func SupportedFormats() []Format {
	return []Format{FormatJSON, FormatHTML, FormatMarkdown, FormatPDF}
}

// IsSupported 检查格式是否受支持
func IsSupported(format string) bool {
	for _, f := range SupportedFormats() {
		if string(f) == format {
			return true
		}
	}
	return false
}
