package document

import "strings"

// Rule 文本清洗规则
// 将一个字面子串全局替换为另一个子串
type Rule struct {
	Old string `json:"old" mapstructure:"old"` // 被替换的子串
	New string `json:"new" mapstructure:"new"` // 替换后的子串
}

// Normalizer 文本清洗器
// 按顺序对转录文本应用一组字面替换规则
// 信件手稿的书写习惯（如用"&"代替"and"）会降低预训练模型的识别质量，
// 清洗规则用于在标注前把这类写法改写为模型训练语料中的常见形式
type Normalizer struct {
	rules []Rule
}

// DefaultRules 返回默认清洗规则
// 唯一内置规则：把"& "替换为"and "
func DefaultRules() []Rule {
	return []Rule{
		{Old: "& ", New: "and "},
	}
}

// NewNormalizer 创建文本清洗器
// 不传规则时使用默认规则
func NewNormalizer(rules ...Rule) *Normalizer {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Normalizer{rules: rules}
}

// Normalize 对文本应用所有清洗规则
// 每条规则做一次全局替换，按规则顺序依次执行
func (n *Normalizer) Normalize(text string) string {
	for _, rule := range n.rules {
		text = strings.ReplaceAll(text, rule.Old, rule.New)
	}
	return text
}

// Rules 返回清洗器当前的规则列表
func (n *Normalizer) Rules() []Rule {
	return n.rules
}
