package taskqueue

import (
	"encoding/json"
	"time"
)

// TaskType 任务类型
type TaskType string

const (
	// TaskLetterParse 信件解析任务，提取转录文本
	TaskLetterParse TaskType = "letter_parse"
	// TaskAnnotateLetter 信件实体标注任务
	TaskAnnotateLetter TaskType = "annotate_letter"
	// TaskProcessComplete 信件处理完整流程任务（解析+规范化+标注）
	TaskProcessComplete TaskType = "process_complete"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	// StatusPending 等待处理
	StatusPending TaskStatus = "pending"
	// StatusProcessing 处理中
	StatusProcessing TaskStatus = "processing"
	// StatusCompleted 已完成
	StatusCompleted TaskStatus = "completed"
	// StatusFailed 处理失败
	StatusFailed TaskStatus = "failed"
)

// Task 任务基础结构
type Task struct {
	ID          string          `json:"id"`           // 任务唯一标识符
	Type        TaskType        `json:"type"`         // 任务类型
	LetterID    string          `json:"letter_id"`    // 关联的信件ID
	Status      TaskStatus      `json:"status"`       // 任务状态
	Payload     json.RawMessage `json:"payload"`      // 任务载荷数据，不同任务类型对应不同结构
	Result      json.RawMessage `json:"result"`       // 任务结果数据，不同任务类型对应不同结构
	Error       string          `json:"error"`        // 错误信息（如果处理失败）
	CreatedAt   time.Time       `json:"created_at"`   // 创建时间
	UpdatedAt   time.Time       `json:"updated_at"`   // 更新时间
	StartedAt   *time.Time      `json:"started_at"`   // 开始处理时间
	CompletedAt *time.Time      `json:"completed_at"` // 完成时间
	Attempts    int             `json:"attempts"`     // 尝试次数
	MaxRetries  int             `json:"max_retries"`  // 最大重试次数
}

// LetterParsePayload 信件解析任务载荷
type LetterParsePayload struct {
	FilePath string            `json:"file_path"` // 文件存储路径
	FileName string            `json:"file_name"` // 文件名
	FileType string            `json:"file_type"` // 文件类型
	Metadata map[string]string `json:"metadata"`  // 元数据
}

// LetterParseResult 信件解析任务结果
type LetterParseResult struct {
	Transcription string            `json:"transcription"` // 提取的转录文本
	Title         string            `json:"title"`         // 信件标题（如果有）
	Meta          map[string]string `json:"meta"`          // 提取的元数据
	Error         string            `json:"error"`         // 错误信息（如果有）
	Chars         int               `json:"chars"`         // 字符数
}

// AnnotatePayload 实体标注任务载荷
type AnnotatePayload struct {
	LetterID string `json:"letter_id"` // 信件ID
	Text     string `json:"text"`      // 规范化后的待标注文本
	Title    string `json:"title"`     // 信件标题
	Model    string `json:"model"`     // 模型名称
}

// AnnotateResult 实体标注任务结果
type AnnotateResult struct {
	LetterID    string `json:"letter_id"`    // 信件ID
	RunID       string `json:"run_id"`       // 标注运行ID
	Model       string `json:"model"`        // 使用的模型
	EntityCount int    `json:"entity_count"` // 识别出的实体数量
	TextLength  int    `json:"text_length"`  // 标注文本的字符数
	FromCache   bool   `json:"from_cache"`   // 结果是否来自缓存
	Error       string `json:"error"`        // 错误信息（如果有）
}

// ProcessCompletePayload 完整处理流程任务载荷
type ProcessCompletePayload struct {
	LetterID string            `json:"letter_id"` // 信件ID
	FilePath string            `json:"file_path"` // 文件路径
	FileName string            `json:"file_name"` // 文件名
	FileType string            `json:"file_type"` // 文件类型
	Model    string            `json:"model"`     // 模型名称
	Metadata map[string]string `json:"metadata"`  // 元数据
}

// ProcessCompleteResult 完整处理流程结果
type ProcessCompleteResult struct {
	LetterID       string `json:"letter_id"`       // 信件ID
	RunID          string `json:"run_id"`          // 标注运行ID
	ParseStatus    string `json:"parse_status"`    // 解析状态
	AnnotateStatus string `json:"annotate_status"` // 标注状态
	EntityCount    int    `json:"entity_count"`    // 实体数量
	TextLength     int    `json:"text_length"`     // 文本字符数
	Error          string `json:"error"`           // 错误信息（如果有）
}

// TaskCallback 任务回调信息
type TaskCallback struct {
	TaskID    string          `json:"task_id"`   // 任务ID
	LetterID  string          `json:"letter_id"` // 信件ID
	Status    TaskStatus      `json:"status"`    // 任务状态
	Type      TaskType        `json:"type"`      // 任务类型
	Result    json.RawMessage `json:"result"`    // 任务结果
	Error     string          `json:"error"`     // 错误信息
	Timestamp time.Time       `json:"timestamp"` // 回调时间戳
}
