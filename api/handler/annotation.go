package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/hcpdigital/letter-ner-system/api/middleware"
	"github.com/hcpdigital/letter-ner-system/api/model"
	"github.com/hcpdigital/letter-ner-system/internal/exporter"
	"github.com/hcpdigital/letter-ner-system/internal/models"
	"github.com/hcpdigital/letter-ner-system/internal/ner"
	"github.com/hcpdigital/letter-ner-system/internal/services"
)

// AnnotationHandler 实体标注处理器
type AnnotationHandler struct {
	annotateService *services.AnnotateService // 标注服务
	logger          *logrus.Logger            // 日志记录器
}

// NewAnnotationHandler 创建标注处理器
func NewAnnotationHandler(svc *services.AnnotateService) *AnnotationHandler {
	return &AnnotationHandler{
		annotateService: svc,
		logger:          middleware.GetLogger(),
	}
}

// AnnotateLetter 触发信件实体标注
// POST /api/letters/:id/annotate
func (h *AnnotationHandler) AnnotateLetter(c *gin.Context) {
	var req model.AnnotateRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("信件ID不能为空", err.Error()))
		return
	}

	// 异步模式：创建任务并立即返回任务ID
	if h.annotateService.AsyncEnabled() {
		taskID, err := h.annotateService.AnnotateLetterAsync(c.Request.Context(), req.ID)
		if err != nil {
			h.handleAnnotateError(c, err)
			return
		}

		c.JSON(http.StatusAccepted, model.NewSuccessResponse(model.AnnotateResponse{
			LetterID: req.ID,
			TaskID:   taskID,
			Status:   string(models.LetterStatusProcessing),
		}))
		return
	}

	// 同步模式：执行完整的解析、规范化、标注流程
	run, err := h.annotateService.AnnotateLetter(c.Request.Context(), req.ID)
	if err != nil {
		h.handleAnnotateError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.AnnotateResponse{
		LetterID:    req.ID,
		RunID:       run.ID,
		Status:      string(models.LetterStatusCompleted),
		Model:       run.Model,
		EntityCount: run.EntityCount,
		FromCache:   run.FromCache,
	}))
}

// handleAnnotateError 根据错误类型返回相应的错误响应
func (h *AnnotationHandler) handleAnnotateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrLetterNotFound):
		middleware.HandleError(c, middleware.NewNotFoundError("信件不存在"))
	default:
		var nerErr ner.NERError
		if errors.As(err, &nerErr) {
			middleware.HandleError(c, middleware.NewBusinessError(
				"实体标注失败", nerErr.Error()))
			return
		}
		middleware.HandleError(c, middleware.NewInternalError("信件标注失败", err.Error()))
	}
}

// GetAnnotationRun 查询标注运行记录
// GET /api/annotations/:id
func (h *AnnotationHandler) GetAnnotationRun(c *gin.Context) {
	var req model.AnnotationRunRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("标注运行ID不能为空", err.Error()))
		return
	}

	run, err := h.annotateService.GetAnnotationRun(c.Request.Context(), req.ID)
	if err != nil {
		if errors.Is(err, models.ErrAnnotationRunNotFound) {
			middleware.HandleError(c, middleware.NewNotFoundError("标注运行不存在"))
			return
		}
		middleware.HandleError(c, middleware.NewInternalError("查询标注运行失败", err.Error()))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(annotationRunInfo(run, true)))
}

// ListAnnotationRuns 查询信件的标注运行列表
// GET /api/letters/:id/annotations
func (h *AnnotationHandler) ListAnnotationRuns(c *gin.Context) {
	var req model.LetterStatusRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("信件ID不能为空", err.Error()))
		return
	}

	runs, err := h.annotateService.GetAnnotationRuns(c.Request.Context(), req.ID)
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("查询标注运行列表失败", err.Error()))
		return
	}

	infos := make([]model.AnnotationRunInfo, 0, len(runs))
	for _, run := range runs {
		// 列表中不返回完整文本和实体，按需单独查询
		infos = append(infos, annotationRunInfo(run, false))
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.AnnotationRunListResponse{
		LetterID: req.ID,
		Total:    len(infos),
		Runs:     infos,
	}))
}

// ExportAnnotation 导出标注结果
// GET /api/annotations/:id/export?format=json|html|markdown|pdf
func (h *AnnotationHandler) ExportAnnotation(c *gin.Context) {
	var req model.AnnotationRunRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("标注运行ID不能为空", err.Error()))
		return
	}

	var query model.ExportRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleError(c, middleware.NewValidationError(
			"不支持的导出格式，可选json、html、markdown、pdf", err.Error()))
		return
	}

	// 默认导出JSON格式
	format := exporter.Format(query.Format)
	if query.Format == "" {
		format = exporter.FormatJSON
	}

	result, err := h.annotateService.ExportAnnotationRun(c.Request.Context(), req.ID, format)
	if err != nil {
		if errors.Is(err, models.ErrAnnotationRunNotFound) {
			middleware.HandleError(c, middleware.NewNotFoundError("标注运行不存在"))
			return
		}
		middleware.HandleError(c, middleware.NewInternalError("导出标注结果失败", err.Error()))
		return
	}

	h.logger.WithFields(logrus.Fields{
		"run_id":   req.ID,
		"format":   format,
		"filename": result.FileName,
	}).Info("Annotation export generated")

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

// GetLabels 查询模型支持的实体标签及说明
// GET /api/labels
func (h *AnnotationHandler) GetLabels(c *gin.Context) {
	labels := ner.Labels()

	infos := make([]model.LabelInfo, 0, len(labels))
	for _, label := range labels {
		infos = append(infos, model.LabelInfo{
			Label:       label,
			Description: ner.Explain(label),
		})
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.LabelListResponse{
		Model:  h.annotateService.GetNERClient().Model(),
		Labels: infos,
	}))
}

// GetModelMeta 查询模型元数据
// GET /api/model
func (h *AnnotationHandler) GetModelMeta(c *gin.Context) {
	meta, err := h.annotateService.GetNERClient().Meta(c.Request.Context())
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("查询模型元数据失败", err.Error()))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.ModelMetaResponse{
		Name:        meta.Name,
		Lang:        meta.Lang,
		Version:     meta.Version,
		Description: meta.Description,
		Pipeline:    meta.Pipeline,
		Labels:      meta.Labels,
		Accuracy:    meta.Accuracy,
	}))
}

// annotationRunInfo 将标注运行记录转换为响应结构
func annotationRunInfo(run *models.AnnotationRun, full bool) model.AnnotationRunInfo {
	info := model.AnnotationRunInfo{
		RunID:       run.ID,
		LetterID:    run.LetterID,
		Model:       run.Model,
		Status:      run.Status,
		EntityCount: run.EntityCount,
		TextLength:  run.TextLength,
		FromCache:   run.FromCache,
		CreatedAt:   run.CreatedAt.Format(time.RFC3339),
	}

	if run.CompletedAt != nil {
		info.CompletedAt = run.CompletedAt.Format(time.RFC3339)
	}

	if full {
		info.Text = run.Text
		var ents []ner.EntitySpan
		if len(run.Ents) > 0 {
			if err := json.Unmarshal(run.Ents, &ents); err == nil {
				info.Ents = ents
			}
		}
	}

	return info
}
