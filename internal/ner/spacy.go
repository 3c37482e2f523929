package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultEndpoint 默认模型服务端点
	DefaultEndpoint = "http://localhost:8000/api/nlp"
)

// SpacyClient 基于spaCy模型服务的标注客户端实现
// 模型服务把预训练语言模型包装为HTTP接口
type SpacyClient struct {
	baseURL    string       // 模型服务基础URL
	model      string       // 模型名称
	httpClient *http.Client // HTTP客户端
	maxRetries int          // 最大重试次数
	disable    []string     // 默认禁用的管线组件
}

// NewSpacyClient 创建新的spaCy模型服务客户端
func NewSpacyClient(opts ...Option) (Client, error) {
	// 创建配置
	cfg := NewConfig(opts...)

	// 确定服务端点
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultEndpoint
	}

	// 创建HTTP客户端，设置超时
	httpClient := &http.Client{
		Timeout: cfg.Timeout,
	}

	client := &SpacyClient{
		baseURL:    baseURL,
		model:      cfg.Model,
		httpClient: httpClient,
		maxRetries: cfg.MaxRetries,
		disable:    cfg.Disable,
	}

	return client, nil
}

// Model 返回模型名称
func (c *SpacyClient) Model() string {
	return c.model
}

// Annotate 对文本做命名实体标注
func (c *SpacyClient) Annotate(ctx context.Context, text string, options ...AnnotateOption) (*Annotation, error) {
	if text == "" {
		return nil, NewNERError(ErrCodeEmptyText, ErrMsgEmptyText)
	}

	// 应用选项
	opts := &AnnotateOptions{}
	for _, opt := range options {
		opt(opts)
	}

	// 请求禁用的组件优先于客户端默认配置
	disable := opts.Disable
	if disable == nil {
		disable = c.disable
	}

	// 创建请求
	req := &SpacyRequest{
		Text:    text,
		Model:   c.model,
		Disable: disable,
	}

	// 发送请求
	resp, err := c.sendRequest(ctx, c.baseURL+"/annotate", req)
	if err != nil {
		return nil, err
	}

	// 解析响应
	return c.processResponse(resp, opts.Title)
}

// Meta 获取模型元数据
func (c *SpacyClient) Meta(ctx context.Context) (*ModelMeta, error) {
	url := fmt.Sprintf("%s/models/%s/meta", c.baseURL, c.model)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, NewNERError(ErrCodeInvalidRequest, fmt.Sprintf("failed to create request: %v", err))
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewNERError(ErrCodeNetworkError, fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewNERError(ErrCodeServerError, fmt.Sprintf("failed to read response: %v", err))
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, NewNERError(ErrCodeModelNotFound, ErrMsgModelNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, NewNERError(ErrCodeServerError,
			fmt.Sprintf("model server error (status %d): %s", resp.StatusCode, string(body)))
	}

	var meta ModelMeta
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, NewNERError(ErrCodeServerError, fmt.Sprintf("failed to parse meta response: %v", err))
	}

	return &meta, nil
}

// sendRequest 发送标注请求并解析响应
func (c *SpacyClient) sendRequest(ctx context.Context, url string, req *SpacyRequest) (*SpacyResponse, error) {
	// 将请求数据转换为JSON
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, NewNERError(ErrCodeInvalidRequest, fmt.Sprintf("failed to marshal request: %v", err))
	}

	// 使用重试机制发送请求
	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// 指数退避重试
			select {
			case <-ctx.Done():
				return nil, NewNERError(ErrCodeTimeout, ctx.Err().Error())
			case <-time.After(time.Duration(1<<attempt) * 100 * time.Millisecond):
				// 等待后继续
			}
		}

		// 每次重试都重新创建请求，请求体不能复用
		httpReq, reqErr := http.NewRequestWithContext(
			ctx,
			http.MethodPost,
			url,
			bytes.NewReader(jsonData),
		)
		if reqErr != nil {
			return nil, NewNERError(ErrCodeInvalidRequest, fmt.Sprintf("failed to create request: %v", reqErr))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")

		resp, err = c.httpClient.Do(httpReq)
		if err == nil && resp.StatusCode < 500 {
			// 成功或客户端错误，不需要重试
			break
		}

		if err != nil {
			lastErr = err
		} else if attempt < c.maxRetries {
			// 还会重试时关闭本次响应体；最后一次响应留给下方读取错误详情
			resp.Body.Close()
		}
	}

	if err != nil {
		return nil, NewNERError(ErrCodeNetworkError, fmt.Sprintf("request failed: %v", lastErr))
	}
	defer resp.Body.Close()

	// 读取响应体
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewNERError(ErrCodeServerError, fmt.Sprintf("failed to read response: %v", err))
	}

	// 检查HTTP状态码
	if resp.StatusCode != http.StatusOK {
		// 尝试解析错误响应
		var errResp struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil && errResp.Message != "" {
			if resp.StatusCode == http.StatusNotFound {
				return nil, NewNERError(ErrCodeModelNotFound,
					fmt.Sprintf("model server error: %s (%s)", errResp.Message, errResp.Code))
			}
			return nil, NewNERError(ErrCodeServerError,
				fmt.Sprintf("model server error: %s (%s)", errResp.Message, errResp.Code))
		}

		// 如果无法解析，返回原始错误
		return nil, NewNERError(ErrCodeServerError,
			fmt.Sprintf("model server error (status %d): %s", resp.StatusCode, string(body)))
	}

	// 解析JSON响应
	var spacyResp SpacyResponse
	if err := json.Unmarshal(body, &spacyResp); err != nil {
		return nil, NewNERError(ErrCodeServerError, fmt.Sprintf("failed to parse response: %v", err))
	}

	// 检查服务返回的错误
	if spacyResp.Code != "" {
		return nil, NewNERError(ErrCodeServerError,
			fmt.Sprintf("model server error: %s (%s)", spacyResp.Message, spacyResp.Code))
	}

	return &spacyResp, nil
}

// processResponse 处理模型服务的响应
func (c *SpacyClient) processResponse(resp *SpacyResponse, title string) (*Annotation, error) {
	annotation := &Annotation{
		Text:       resp.Text,
		Ents:       resp.Ents,
		Model:      resp.Model,
		Title:      title,
		FinishTime: time.Now(),
	}

	if annotation.Model == "" {
		annotation.Model = c.model
	}
	if annotation.Ents == nil {
		annotation.Ents = []EntitySpan{}
	}

	// 实体原文字段缺失时按偏移补全
	for i, span := range annotation.Ents {
		if span.Text == "" {
			annotation.Ents[i].Text = annotation.SpanText(span)
		}
	}

	return annotation, nil
}

// 在包初始化时注册spaCy客户端
func init() {
	RegisterClient("spacy", NewSpacyClient)
}
