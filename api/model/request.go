package model

import (
	"mime/multipart"
	"time"
)

// PaginationRequest 分页请求参数
type PaginationRequest struct {
	Page     int `form:"page" json:"page" binding:"omitempty,min=1"`           // 当前页码，从1开始
	PageSize int `form:"page_size" json:"page_size" binding:"omitempty,min=1"` // 每页记录数
}

// GetPage 获取页码，默认为1
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页记录数，默认为10，最大为100
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 10
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// LetterUploadRequest 信件上传请求
type LetterUploadRequest struct {
	File     *multipart.FileHeader `form:"file" binding:"required,letterfile"`           // 信件文件
	Title    string                `form:"title" json:"title" binding:"omitempty"`       // 信件标题，不提供时从TEI头提取
	Tags     string                `form:"tags" json:"tags" binding:"omitempty"`         // 信件标签，逗号分隔
	Metadata map[string]string     `form:"metadata" json:"metadata" binding:"omitempty"` // 信件元数据
}

// LetterStatusRequest 信件状态查询请求
type LetterStatusRequest struct {
	ID string `uri:"id" binding:"required"` // 信件ID
}

// LetterListRequest 信件列表请求
type LetterListRequest struct {
	PaginationRequest
	StartTime *time.Time `form:"start_time" json:"start_time" binding:"omitempty"` // 上传时间范围起点
	EndTime   *time.Time `form:"end_time" json:"end_time" binding:"omitempty"`     // 上传时间范围终点
	Status    string     `form:"status" json:"status" binding:"omitempty"`         // 信件状态
	Tags      string     `form:"tags" json:"tags" binding:"omitempty"`             // 标签过滤
	Title     string     `form:"title" json:"title" binding:"omitempty"`           // 标题过滤
}

// LetterDeleteRequest 信件删除请求
type LetterDeleteRequest struct {
	ID string `uri:"id" binding:"required"` // 信件ID
}

// AnnotateRequest 信件标注请求
type AnnotateRequest struct {
	ID string `uri:"id" binding:"required"` // 信件ID
}

// AnnotationRunRequest 标注运行查询请求
type AnnotationRunRequest struct {
	ID string `uri:"id" binding:"required"` // 标注运行ID
}

// ExportRequest 标注结果导出请求
type ExportRequest struct {
	Format string `form:"format" json:"format" binding:"omitempty,oneof=json html markdown pdf"` // 导出格式
}

// TaskStatusRequest 任务状态查询请求
type TaskStatusRequest struct {
	ID string `uri:"id" binding:"required"` // 任务ID
}
