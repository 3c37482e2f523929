package exporter

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/hcpdigital/letter-ner-system/internal/ner"
)

// 实体类别的高亮颜色，未列出的标签使用默认色
var entityColors = map[string]string{
	ner.LabelPerson:    "#aa9cfc",
	ner.LabelNorp:      "#c887fb",
	ner.LabelFac:       "#9cc9cc",
	ner.LabelOrg:       "#7aecec",
	ner.LabelGpe:       "#feca74",
	ner.LabelLoc:       "#ff9561",
	ner.LabelProduct:   "#bfeeb7",
	ner.LabelEvent:     "#ffeb80",
	ner.LabelWorkOfArt: "#f0d0ff",
	ner.LabelLaw:       "#ff8197",
	ner.LabelLanguage:  "#ff8197",
	ner.LabelDate:      "#bfe1d9",
	ner.LabelTime:      "#bfe1d9",
	ner.LabelPercent:   "#e4e7d2",
	ner.LabelMoney:     "#e4e7d2",
	ner.LabelQuantity:  "#e4e7d2",
	ner.LabelOrdinal:   "#e4e7d2",
	ner.LabelCardinal:  "#e4e7d2",
}

const defaultEntityColor = "#ddd"

// HTMLExporter HTML可视化导出器
// 生成带实体高亮的独立HTML页面
type HTMLExporter struct {
	page bool // 输出完整HTML页面而非片段
}

// HTMLOption HTML导出器配置选项
type HTMLOption func(*HTMLExporter)

// WithFragment 只输出HTML片段，不含html/body外层结构
func WithFragment() HTMLOption {
	return func(e *HTMLExporter) {
		e.page = false
	}
}

// NewHTMLExporter 创建HTML导出器，默认输出完整页面
func NewHTMLExporter(opts ...HTMLOption) *HTMLExporter {
	e := &HTMLExporter{
		page: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export 将标注结果渲染为带实体高亮的HTML
func (e *HTMLExporter) Export(annotation *ner.Annotation) ([]byte, error) {
	if annotation == nil {
		return nil, fmt.Errorf("annotation cannot be nil")
	}

	body := e.renderEntities(annotation)

	if !e.page {
		return []byte(body), nil
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("  <meta charset=\"utf-8\">\n")
	title := annotation.Title
	if title == "" {
		title = "Named Entities"
	}
	sb.WriteString(fmt.Sprintf("  <title>%s</title>\n", html.EscapeString(title)))
	sb.WriteString("  <style>\n")
	sb.WriteString("    body { font-size: 16px; font-family: -apple-system, \"Segoe UI\", Roboto, Helvetica, Arial, sans-serif; padding: 4rem 2rem; line-height: 2.5; direction: ltr; }\n")
	sb.WriteString("    mark { line-height: 1; border-radius: 0.35em; padding: 0.45em 0.6em; margin: 0 0.25em; }\n")
	sb.WriteString("    mark span { font-size: 0.8em; font-weight: bold; line-height: 1; border-radius: 0.35em; vertical-align: middle; margin-left: 0.5rem; }\n")
	sb.WriteString("  </style>\n</head>\n<body>\n")

	if annotation.Title != "" {
		sb.WriteString(fmt.Sprintf("  <h2>%s</h2>\n", html.EscapeString(annotation.Title)))
	}

	sb.WriteString("  <div class=\"entities\">")
	sb.WriteString(body)
	sb.WriteString("</div>\n</body>\n</html>\n")

	return []byte(sb.String()), nil
}

// renderEntities 按实体偏移把文本切分为普通片段和高亮片段
func (e *HTMLExporter) renderEntities(annotation *ner.Annotation) string {
	runes := []rune(annotation.Text)

	// 按起始偏移排序，保证渲染顺序正确
	ents := make([]ner.EntitySpan, len(annotation.Ents))
	copy(ents, annotation.Ents)
	sort.SliceStable(ents, func(i, j int) bool {
		return ents[i].Start < ents[j].Start
	})

	var sb strings.Builder
	cursor := 0
	for _, ent := range ents {
		// 跳过越界或与前一个实体重叠的span
		if ent.Start < cursor || ent.End > len(runes) || ent.Start > ent.End {
			continue
		}

		sb.WriteString(html.EscapeString(string(runes[cursor:ent.Start])))

		color, ok := entityColors[ent.Label]
		if !ok {
			color = defaultEntityColor
		}

		sb.WriteString(fmt.Sprintf("<mark style=\"background: %s;\">", color))
		sb.WriteString(html.EscapeString(string(runes[ent.Start:ent.End])))
		sb.WriteString(fmt.Sprintf("<span>%s</span>", html.EscapeString(ent.Label)))
		sb.WriteString("</mark>")

		cursor = ent.End
	}
	sb.WriteString(html.EscapeString(string(runes[cursor:])))

	return sb.String()
}

// Format 返回导出格式
func (e *HTMLExporter) Format() Format {
	return FormatHTML
}

// ContentType 返回HTTP响应的内容类型
func (e *HTMLExporter) ContentType() string {
	return "text/html; charset=utf-8"
}

// FileExtension 返回导出文件的扩展名
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}
