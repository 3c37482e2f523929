package document

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

const (
	// 默认转录元素的属性名和属性值
	// 对应TEI信件中的<div type="transcription">元素
	defaultTranscriptionAttr  = "type"
	defaultTranscriptionValue = "transcription"

	// 默认文本编码
	defaultEncoding = "utf-8"
)

// TEIParser TEI标记的XML信件解析器
// 将信件XML解析为节点树，并提取转录正文
type TEIParser struct {
	encoding  string // 输入文本编码（IANA名称）
	attrKey   string // 转录元素的属性名
	attrValue string // 转录元素的属性值
}

// TEIOption TEI解析器配置选项
type TEIOption func(*TEIParser)

// WithEncoding 设置输入文本编码
func WithEncoding(name string) TEIOption {
	return func(p *TEIParser) {
		if name != "" {
			p.encoding = name
		}
	}
}

// WithTranscriptionAttr 设置转录元素的属性名和属性值
func WithTranscriptionAttr(key, value string) TEIOption {
	return func(p *TEIParser) {
		p.attrKey = key
		p.attrValue = value
	}
}

// NewTEIParser 创建一个新的TEI信件解析器
func NewTEIParser(opts ...TEIOption) Parser {
	p := &TEIParser{
		encoding:  defaultEncoding,
		attrKey:   defaultTranscriptionAttr,
		attrValue: defaultTranscriptionValue,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse 解析TEI信件文件并提取转录正文
func (p *TEIParser) Parse(filePath string) (*Letter, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open letter file: %w", err)
	}
	defer file.Close()

	letter, err := p.ParseReader(file, filePath)
	if err != nil {
		return nil, err
	}
	letter.Source = filePath
	return letter, nil
}

// ParseReader 从Reader解析TEI信件
func (p *TEIParser) ParseReader(r io.Reader, filename string) (*Letter, error) {
	decoded, err := decodeReader(r, p.encoding)
	if err != nil {
		return nil, err
	}

	root, err := html.Parse(decoded)
	if err != nil {
		return nil, fmt.Errorf("failed to parse letter XML: %w", err)
	}

	// 按属性查找转录元素
	node := FindByAttribute(root, p.attrKey, p.attrValue)
	if node == nil {
		return nil, ErrTranscriptionNotFound
	}

	letter := &Letter{
		Transcription: TextContent(node),
		Source:        filename,
		Meta:          map[string]string{},
	}

	// 信件标题取TEI头中第一个<title>元素的文本
	if title := findElement(root, "title"); title != nil {
		letter.Title = strings.TrimSpace(TextContent(title))
	}

	return letter, nil
}

// decodeReader 根据编码名称包装Reader进行解码
// 编码名称为空或utf-8时直接返回原始Reader
func decodeReader(r io.Reader, name string) (io.Reader, error) {
	if name == "" || strings.EqualFold(name, defaultEncoding) {
		return r, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("unsupported text encoding: %s", name)
	}

	return transform.NewReader(r, enc.NewDecoder()), nil
}

// FindByAttribute 在节点树中查找第一个带有指定属性键值对的元素
// 按文档顺序深度优先查找，找不到时返回nil
func FindByAttribute(n *html.Node, key, value string) *html.Node {
	if n.Type == html.ElementNode {
		for _, attr := range n.Attr {
			if attr.Key == key && attr.Val == value {
				return n
			}
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if result := FindByAttribute(c, key, value); result != nil {
			return result
		}
	}
	return nil
}

// findElement 查找第一个指定标签名的元素
func findElement(n *html.Node, tagName string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tagName {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if result := findElement(c, tagName); result != nil {
			return result
		}
	}
	return nil
}

// TextContent 按文档顺序拼接子树中所有文本节点的内容
// 不插入额外分隔符，嵌套元素的文本原样连接
func TextContent(n *html.Node) string {
	var sb strings.Builder
	collectText(n, &sb)
	return sb.String()
}

// collectText 递归收集文本节点内容
func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}
