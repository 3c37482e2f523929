package exporter

import (
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"github.com/hcpdigital/letter-ner-system/internal/ner"
)

// MarkdownExporter Markdown报告导出器
// 生成带实体汇总表格的标注报告
type MarkdownExporter struct {
	renderHTML bool // 把生成的Markdown再渲染为HTML
}

// MarkdownOption Markdown导出器配置选项
type MarkdownOption func(*MarkdownExporter)

// WithHTMLRendering 把Markdown报告渲染为HTML后输出
func WithHTMLRendering() MarkdownOption {
	return func(e *MarkdownExporter) {
		e.renderHTML = true
	}
}

// NewMarkdownExporter 创建Markdown导出器
func NewMarkdownExporter(opts ...MarkdownOption) *MarkdownExporter {
	e := &MarkdownExporter{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export 生成Markdown格式的标注报告
func (e *MarkdownExporter) Export(annotation *ner.Annotation) ([]byte, error) {
	if annotation == nil {
		return nil, fmt.Errorf("annotation cannot be nil")
	}

	report := e.buildReport(annotation)

	if !e.renderHTML {
		return []byte(report), nil
	}

	// 创建Markdown解析器
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	mdParser := parser.NewWithExtensions(extensions)
	doc := mdParser.Parse([]byte(report))

	// 创建HTML渲染器
	htmlFlags := html.CommonFlags | html.HrefTargetBlank
	renderer := html.NewRenderer(html.RendererOptions{Flags: htmlFlags})

	return markdown.Render(doc, renderer), nil
}

// buildReport 构建Markdown报告文本
func (e *MarkdownExporter) buildReport(annotation *ner.Annotation) string {
	var sb strings.Builder

	title := annotation.Title
	if title == "" {
		title = "Named Entity Report"
	}
	sb.WriteString(fmt.Sprintf("# %s\n\n", title))

	if annotation.Model != "" {
		sb.WriteString(fmt.Sprintf("Model: `%s`\n\n", annotation.Model))
	}
	sb.WriteString(fmt.Sprintf("Entities found: %d\n\n", len(annotation.Ents)))

	if len(annotation.Ents) > 0 {
		sb.WriteString("| Text | Label | Description | Start | End |\n")
		sb.WriteString("| --- | --- | --- | --- | --- |\n")
		for _, ent := range annotation.Ents {
			text := ent.Text
			if text == "" {
				text = annotation.SpanText(ent)
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %d |\n",
				escapeTableCell(text), ent.Label, ner.Explain(ent.Label), ent.Start, ent.End))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Text\n\n")
	sb.WriteString(annotation.Text)
	sb.WriteString("\n")

	return sb.String()
}

// escapeTableCell 转义表格单元格中会破坏表格结构的字符
func escapeTableCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}

// Format 返回导出格式
func (e *MarkdownExporter) Format() Format {
	return FormatMarkdown
}

// ContentType 返回HTTP响应的内容类型
func (e *MarkdownExporter) ContentType() string {
	if e.renderHTML {
		return "text/html; charset=utf-8"
	}
	return "text/markdown; charset=utf-8"
}

// FileExtension 返回导出文件的扩展名
func (e *MarkdownExporter) FileExtension() string {
	if e.renderHTML {
		return ".html"
	}
	return ".md"
}
