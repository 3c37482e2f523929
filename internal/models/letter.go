package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LetterStatus 信件处理状态类型
type LetterStatus string

const (
	// LetterStatusUploaded 信件已上传，等待标注
	LetterStatusUploaded LetterStatus = "uploaded"
	// LetterStatusProcessing 信件标注中
	LetterStatusProcessing LetterStatus = "processing"
	// LetterStatusCompleted 信件标注完成
	LetterStatusCompleted LetterStatus = "completed"
	// LetterStatusFailed 信件标注失败
	LetterStatusFailed LetterStatus = "failed"
)

// ProcessStage 信件处理阶段
type ProcessStage string

const (
	// StageParsing 解析阶段，提取转录文本
	StageParsing ProcessStage = "parsing"
	// StageNormalizing 文本规范化阶段
	StageNormalizing ProcessStage = "normalizing"
	// StageAnnotating 实体标注阶段
	StageAnnotating ProcessStage = "annotating"
	// StageCompleted 处理完成
	StageCompleted ProcessStage = "completed"
)

// Letter 信件数据模型
// 用于存储上传信件文档的元数据信息
type Letter struct {
	ID            string         `gorm:"primaryKey"`         // 信件ID，主键
	FileName      string         `gorm:"not null"`           // 文件名
	FileType      string         `gorm:"not null"`           // 文件类型
	FilePath      string         `gorm:"not null"`           // 文件路径
	FileSize      int64          `gorm:"not null"`           // 文件大小（字节）
	Title         string         `gorm:"type:varchar(255)"`  // 信件标题，从文档头部提取
	Status        LetterStatus   `gorm:"not null;index"`     // 处理状态
	UploadedAt    time.Time      `gorm:"not null;index"`     // 上传时间
	ProcessedAt   *time.Time     `gorm:"index"`              // 处理完成时间
	UpdatedAt     time.Time      `gorm:"not null;index"`     // 更新时间
	Error         string         `gorm:"type:text"`          // 错误信息
	Tags          string         `gorm:"type:varchar(255)"`  // 标签，逗号分隔
	Metadata      datatypes.JSON `gorm:"type:json"`          // 元数据，JSON格式
	CurrentStage  ProcessStage   `gorm:"size:20"`            // 当前处理阶段
	CurrentTaskID string         `gorm:"size:50;index"`      // 当前关联的任务ID
	RetryCount    int            `gorm:"default:0"`          // 重试次数
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (l *Letter) BeforeCreate(tx *gorm.DB) (err error) {
	// 如果上传时间为零值，设置为当前时间
	if l.UploadedAt.IsZero() {
		l.UploadedAt = time.Now()
	}
	// 设置更新时间
	l.UpdatedAt = time.Now()
	return nil
}

// BeforeUpdate GORM的钩子函数，更新记录前自动设置更新时间
func (l *Letter) BeforeUpdate(tx *gorm.DB) (err error) {
	l.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (Letter) TableName() string {
	return "letters"
}

// AnnotationRun 标注运行数据模型
// 记录对一封信件的一次完整实体标注
type AnnotationRun struct {
	ID          string         `gorm:"primaryKey"`         // 标注运行ID，主键
	LetterID    string         `gorm:"not null;index"`     // 所属信件ID
	Model       string         `gorm:"not null;size:50"`   // 使用的模型名称
	Status      string         `gorm:"not null;size:20"`   // 运行状态
	Text        string         `gorm:"type:text"`          // 规范化后的标注文本
	Ents        datatypes.JSON `gorm:"type:json"`          // 实体序列，JSON格式
	EntityCount int            `gorm:"not null;default:0"` // 识别出的实体数量
	TextLength  int            `gorm:"not null;default:0"` // 标注文本的字符数
	CreatedAt   time.Time      `gorm:"not null;index"`     // 创建时间
	UpdatedAt   time.Time      `gorm:"not null"`           // 更新时间
	CompletedAt *time.Time     `gorm:""`                   // 完成时间
	Error       string         `gorm:"type:text"`          // 错误信息
	FromCache   bool           `gorm:"default:false"`      // 结果是否来自缓存
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (r *AnnotationRun) BeforeCreate(tx *gorm.DB) (err error) {
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	return nil
}

// BeforeUpdate GORM的钩子函数，更新记录前自动设置更新时间
func (r *AnnotationRun) BeforeUpdate(tx *gorm.DB) (err error) {
	r.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (AnnotationRun) TableName() string {
	return "annotation_runs"
}
