package document

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
)

// Parser 信件文档解析器接口
// 负责将不同格式的信件文件解析为可标注的纯文本
type Parser interface {
	// Parse 解析信件文件，返回信件内容
	Parse(filePath string) (*Letter, error)

	// ParseReader 从Reader解析信件，返回信件内容
	// filename用于确定文件类型
	ParseReader(r io.Reader, filename string) (*Letter, error)
}

// ContentType 表示信件文件的内容类型
type ContentType string

const (
	// TEIXML TEI标记的XML信件类型
	TEIXML ContentType = "tei-xml"
	// PlainText 纯文本转录类型
	PlainText ContentType = "plaintext"
	// Unknown 未知类型
	Unknown ContentType = "unknown"
)

// ErrTranscriptionNotFound 信件中找不到转录正文时返回的错误
// 原始语料中每封信都应包含一个带type="transcription"属性的元素
var ErrTranscriptionNotFound = errors.New("transcription element not found in document")

// ParserFactory 解析器工厂函数，根据文件类型创建对应的解析器
func ParserFactory(filePath string) (Parser, error) {
	contentType := detectContentType(filePath)

	switch contentType {
	case TEIXML:
		return NewTEIParser(), nil
	case PlainText:
		return NewPlainTextParser(), nil
	default:
		return nil, errors.New("unsupported letter file type")
	}
}

// detectContentType 根据文件扩展名检测内容类型
func detectContentType(filePath string) ContentType {
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".xml", ".tei":
		return TEIXML
	case ".txt":
		return PlainText
	default:
		return Unknown
	}
}

// Letter 解析后的信件结构
type Letter struct {
	Transcription string            // 转录正文文本
	Title         string            // 信件标题（取自TEI头，可选）
	Source        string            // 源文件信息
	Meta          map[string]string // 元数据（可选，例如作者、日期等）
}
