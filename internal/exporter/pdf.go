package exporter

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/hcpdigital/letter-ner-system/internal/ner"
)

// PDFExporter PDF报告导出器
type PDFExporter struct{}

// NewPDFExporter 创建PDF导出器
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Export 生成PDF格式的标注报告
func (e *PDFExporter) Export(annotation *ner.Annotation) ([]byte, error) {
	if annotation == nil {
		return nil, fmt.Errorf("annotation cannot be nil")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	// 标题
	title := annotation.Title
	if title == "" {
		title = "Named Entity Report"
	}
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, title, "", 1, "L", false, 0, "")
	pdf.Ln(2)

	// 元信息
	pdf.SetFont("Arial", "", 10)
	if annotation.Model != "" {
		pdf.CellFormat(0, 6, fmt.Sprintf("Model: %s", annotation.Model), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 6, fmt.Sprintf("Entities found: %d", len(annotation.Ents)), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	// 实体表格
	if len(annotation.Ents) > 0 {
		pdf.SetFont("Arial", "B", 10)
		pdf.SetFillColor(230, 230, 230)
		pdf.CellFormat(70, 8, "Text", "1", 0, "L", true, 0, "")
		pdf.CellFormat(35, 8, "Label", "1", 0, "L", true, 0, "")
		pdf.CellFormat(85, 8, "Description", "1", 1, "L", true, 0, "")

		pdf.SetFont("Arial", "", 10)
		for _, ent := range annotation.Ents {
			text := ent.Text
			if text == "" {
				text = annotation.SpanText(ent)
			}
			pdf.CellFormat(70, 8, truncate(text, 40), "1", 0, "L", false, 0, "")
			pdf.CellFormat(35, 8, ent.Label, "1", 0, "L", false, 0, "")
			pdf.CellFormat(85, 8, truncate(ner.Explain(ent.Label), 55), "1", 1, "L", false, 0, "")
		}
		pdf.Ln(4)
	}

	// 原文
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Text", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.MultiCell(0, 5, annotation.Text, "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate pdf: %v", err)
	}

	return buf.Bytes(), nil
}

// truncate 截断过长的单元格内容
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

// Format 返回导出格式
func (e *PDFExporter) Format() Format {
	return FormatPDF
}

// ContentType 返回HTTP响应的内容类型
func (e *PDFExporter) ContentType() string {
	return "application/pdf"
}

// FileExtension 返回导出文件的扩展名
func (e *PDFExporter) FileExtension() string {
	return ".pdf"
}
