package model

import (
	"time"

	"github.com/hcpdigital/letter-ner-system/internal/ner"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// LetterUploadResponse 信件上传响应
type LetterUploadResponse struct {
	LetterID string `json:"letter_id"` // 信件ID
	FileName string `json:"filename"`  // 文件名
	Status   string `json:"status"`    // 信件状态：uploaded、processing、completed、failed
}

// LetterStatusResponse 信件状态查询响应
type LetterStatusResponse struct {
	LetterID       string `json:"letter_id"`                 // 信件ID
	Status         string `json:"status"`                    // 处理状态
	Stage          string `json:"stage,omitempty"`           // 当前处理阶段
	FileName       string `json:"filename"`                  // 文件名
	Title          string `json:"title,omitempty"`           // 信件标题
	Error          string `json:"error,omitempty"`           // 错误信息（如果有）
	AnnotationRuns int    `json:"annotation_runs,omitempty"` // 标注运行数量
	CreatedAt      string `json:"created_at"`                // 创建时间
	UpdatedAt      string `json:"updated_at"`                // 更新时间
}

// LetterInfo 信件信息
type LetterInfo struct {
	LetterID   string    `json:"letter_id"`       // 信件ID
	FileName   string    `json:"filename"`        // 文件名
	Title      string    `json:"title,omitempty"` // 信件标题
	Status     string    `json:"status"`          // 状态
	Tags       string    `json:"tags,omitempty"`  // 标签
	UploadTime time.Time `json:"upload_time"`     // 上传时间
}

// LetterListResponse 信件列表响应
type LetterListResponse struct {
	Total    int64        `json:"total"`     // 总数量
	Page     int          `json:"page"`      // 当前页码
	PageSize int          `json:"page_size"` // 每页大小
	Letters  []LetterInfo `json:"letters"`   // 信件列表
}

// LetterDeleteResponse 信件删除响应
type LetterDeleteResponse struct {
	Success  bool   `json:"success"`   // 是否成功
	LetterID string `json:"letter_id"` // 信件ID
}

// AnnotateResponse 信件标注响应
type AnnotateResponse struct {
	LetterID    string `json:"letter_id"`         // 信件ID
	RunID       string `json:"run_id,omitempty"`  // 标注运行ID（同步模式）
	TaskID      string `json:"task_id,omitempty"` // 任务ID（异步模式）
	Status      string `json:"status"`            // 处理状态
	Model       string `json:"model,omitempty"`   // 使用的模型
	EntityCount int    `json:"entity_count"`      // 识别出的实体数量
	FromCache   bool   `json:"from_cache"`        // 结果是否来自缓存
}

// AnnotationRunInfo 标注运行信息
type AnnotationRunInfo struct {
	RunID       string           `json:"run_id"`                 // 标注运行ID
	LetterID    string           `json:"letter_id"`              // 信件ID
	Model       string           `json:"model"`                  // 使用的模型
	Status      string           `json:"status"`                 // 运行状态
	EntityCount int              `json:"entity_count"`           // 实体数量
	TextLength  int              `json:"text_length"`            // 文本字符数
	FromCache   bool             `json:"from_cache"`             // 是否来自缓存
	Ents        []ner.EntitySpan `json:"ents,omitempty"`         // 实体序列
	Text        string           `json:"text,omitempty"`         // 标注文本
	CreatedAt   string           `json:"created_at"`             // 创建时间
	CompletedAt string           `json:"completed_at,omitempty"` // 完成时间
}

// AnnotationRunListResponse 标注运行列表响应
type AnnotationRunListResponse struct {
	LetterID string              `json:"letter_id"` // 信件ID
	Total    int                 `json:"total"`     // 总数量
	Runs     []AnnotationRunInfo `json:"runs"`      // 标注运行列表
}

// LabelInfo 实体标签信息
type LabelInfo struct {
	Label       string `json:"label"`       // 标签名
	Description string `json:"description"` // 人类可读说明
}

// LabelListResponse 实体标签列表响应
type LabelListResponse struct {
	Model  string      `json:"model"`  // 模型名称
	Labels []LabelInfo `json:"labels"` // 标签列表
}

// ModelMetaResponse 模型元数据响应
type ModelMetaResponse struct {
	Name        string             `json:"name"`               // 模型名称
	Lang        string             `json:"lang"`               // 语言代码
	Version     string             `json:"version"`            // 模型版本
	Description string             `json:"description"`        // 模型描述
	Pipeline    []string           `json:"pipeline"`           // 管线组件列表
	Labels      []string           `json:"labels"`             // 支持的实体标签
	Accuracy    map[string]float64 `json:"accuracy,omitempty"` // 评估指标
}

// TaskStatusResponse 任务状态响应
type TaskStatusResponse struct {
	TaskID      string  `json:"task_id"`                // 任务ID
	Type        string  `json:"type"`                   // 任务类型
	LetterID    string  `json:"letter_id"`              // 信件ID
	Status      string  `json:"status"`                 // 任务状态
	Progress    float64 `json:"progress"`               // 处理进度（0-100）
	Error       string  `json:"error,omitempty"`        // 错误信息
	CreatedAt   string  `json:"created_at"`             // 创建时间
	CompletedAt string  `json:"completed_at,omitempty"` // 完成时间
}

// PaginationResponse 分页响应信息
type PaginationResponse struct {
	Total    int64 `json:"total"`     // 总记录数
	Page     int   `json:"page"`      // 当前页码
	PageSize int   `json:"page_size"` // 每页大小
}
