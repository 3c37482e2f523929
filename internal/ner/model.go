package ner

import "time"

// EntitySpan 一个命名实体在文本中的范围
// 偏移量为字符（rune）偏移，由模型服务产出，起始偏移有序
type EntitySpan struct {
	Start int    `json:"start"`          // 起始字符偏移
	End   int    `json:"end"`            // 结束字符偏移（不含）
	Label string `json:"label"`          // 实体类别标签
	Text  string `json:"text,omitempty"` // 实体原文（冗余字段，便于人工检查）
}

// Annotation 一次标注的完整结果
// 对应模型服务返回的文档对象
type Annotation struct {
	Text       string       `json:"text"`            // 被标注的文本
	Ents       []EntitySpan `json:"ents"`            // 识别出的实体序列，按起始偏移排序
	Model      string       `json:"model,omitempty"` // 使用的模型名称
	Title      string       `json:"title,omitempty"` // 文档标题（可选，用于可视化）
	FinishTime time.Time    `json:"-"`               // 标注完成时间
}

// ToMap 将标注结果转换为键值映射
// 对应模型文档对象的完整JSON形式
func (a *Annotation) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"text": a.Text,
		"ents": a.Ents,
	}
}

// EntsMap 只保留实体序列的键值映射
// 导出时通常只需要ents这一个键
func (a *Annotation) EntsMap() map[string]interface{} {
	return map[string]interface{}{
		"ents": a.Ents,
	}
}

// SpanText 返回实体span在标注文本中的原文
// 按字符偏移切片，越界时返回空字符串
func (a *Annotation) SpanText(span EntitySpan) string {
	runes := []rune(a.Text)
	if span.Start < 0 || span.End > len(runes) || span.Start > span.End {
		return ""
	}
	return string(runes[span.Start:span.End])
}

// SpacyRequest 模型服务的标注请求结构
type SpacyRequest struct {
	Text    string   `json:"text"`              // 待标注文本
	Model   string   `json:"model,omitempty"`   // 模型名称
	Disable []string `json:"disable,omitempty"` // 要禁用的管线组件（如tagger、parser）
}

// SpacyResponse 模型服务的标注响应结构
type SpacyResponse struct {
	Text    string       `json:"text"`              // 标注文本
	Ents    []EntitySpan `json:"ents"`              // 实体序列
	Model   string       `json:"model"`             // 实际使用的模型
	Code    string       `json:"code,omitempty"`    // 错误码（如果有）
	Message string       `json:"message,omitempty"` // 错误消息（如果有）
}

// ModelMeta 模型元数据
// 对应模型服务的meta接口返回
type ModelMeta struct {
	Name        string             `json:"name"`        // 模型名称
	Lang        string             `json:"lang"`        // 语言代码
	Version     string             `json:"version"`     // 模型版本
	Description string             `json:"description"` // 模型描述
	Pipeline    []string           `json:"pipeline"`    // 管线组件列表
	Labels      []string           `json:"labels"`      // 支持的实体标签
	Accuracy    map[string]float64 `json:"accuracy"`    // 评估指标（ents_p/ents_r/ents_f等）
}

// Model 常用预训练模型名称
const (
	// ModelEnCoreWebSm 英语通用小型模型（默认）
	ModelEnCoreWebSm = "en_core_web_sm"
	// ModelEnCoreWebMd 英语通用中型模型
	ModelEnCoreWebMd = "en_core_web_md"
	// ModelEnCoreWebLg 英语通用大型模型
	ModelEnCoreWebLg = "en_core_web_lg"
)
