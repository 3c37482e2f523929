package ner

import (
	"context"
	"time"
)

// Client 命名实体识别客户端接口
// 预训练模型作为黑盒消费：输入文本，输出带标签的实体序列
type Client interface {
	// Annotate 对文本做命名实体标注
	Annotate(ctx context.Context, text string, options ...AnnotateOption) (*Annotation, error)

	// Meta 获取模型元数据
	Meta(ctx context.Context) (*ModelMeta, error)

	// Model 返回模型名称
	Model() string
}

// Config 模型客户端配置
type Config struct {
	BaseURL    string        // 模型服务基础URL
	Model      string        // 预训练模型名称
	Timeout    time.Duration // 请求超时时间
	MaxRetries int           // 最大重试次数
	Disable    []string      // 默认禁用的管线组件
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    DefaultEndpoint,
		Model:      ModelEnCoreWebSm, // 默认使用英语通用小型模型
		Timeout:    30 * time.Second,
		MaxRetries: 3,
	}
}

// Option 客户端配置选项函数类型
type Option func(*Config)

// WithBaseURL 设置模型服务基础URL
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithModel 设置预训练模型名称
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithTimeout 设置请求超时时间
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithMaxRetries 设置最大重试次数
func WithMaxRetries(retries int) Option {
	return func(c *Config) {
		c.MaxRetries = retries
	}
}

// WithDisabledComponents 设置默认禁用的管线组件
// 只需要实体识别时可以禁用tagger和parser以加快标注
func WithDisabledComponents(components ...string) Option {
	return func(c *Config) {
		c.Disable = components
	}
}

// NewConfig 创建一个新的配置并应用选项
func NewConfig(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// AnnotateOption 标注请求的选项
type AnnotateOption func(*AnnotateOptions)

// AnnotateOptions 标注请求的选项集合
type AnnotateOptions struct {
	Title   string   // 文档标题，随结果返回用于可视化
	Disable []string // 本次请求禁用的管线组件
}

// WithTitle 设置文档标题
func WithTitle(title string) AnnotateOption {
	return func(o *AnnotateOptions) {
		o.Title = title
	}
}

// WithDisable 设置本次请求禁用的管线组件
func WithDisable(components ...string) AnnotateOption {
	return func(o *AnnotateOptions) {
		o.Disable = components
	}
}

// Factory 模型客户端工厂函数类型
type Factory func(opts ...Option) (Client, error)

// 全局注册的模型客户端工厂函数
var clientFactories = make(map[string]Factory)

// RegisterClient 注册模型客户端工厂函数
func RegisterClient(name string, factory Factory) {
	clientFactories[name] = factory
}

// NewClient 根据名称创建模型客户端
func NewClient(name string, opts ...Option) (Client, error) {
	factory, exists := clientFactories[name]
	if !exists {
		return nil, NewNERError(
			ErrCodeInvalidRequest,
			"ner client type not registered: "+name)
	}
	return factory(opts...)
}
