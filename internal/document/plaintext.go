package document

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// PlainTextParser 纯文本转录解析器
// 用于已经脱去标记的信件转录文件
type PlainTextParser struct{}

// NewPlainTextParser 创建一个新的纯文本解析器
func NewPlainTextParser() Parser {
	return &PlainTextParser{}
}

// Parse 解析纯文本文件
func (p *PlainTextParser) Parse(filePath string) (*Letter, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open letter file: %w", err)
	}
	defer file.Close()

	return p.ParseReader(file, filePath)
}

// ParseReader 从Reader解析纯文本
func (p *PlainTextParser) ParseReader(r io.Reader, filename string) (*Letter, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read letter file: %w", err)
	}

	text := string(data)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("letter file is empty: %s", filename)
	}

	// 纯文本文件没有标记，整个内容即为转录正文
	// 标题使用去掉扩展名的文件名
	name := filepath.Base(filename)
	title := strings.TrimSuffix(name, filepath.Ext(name))

	return &Letter{
		Transcription: text,
		Title:         title,
		Source:        filename,
		Meta:          map[string]string{},
	}, nil
}
