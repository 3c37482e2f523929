package handler

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hcpdigital/letter-ner-system/api/middleware"
	"github.com/hcpdigital/letter-ner-system/api/model"
	"github.com/hcpdigital/letter-ner-system/internal/models"
	"github.com/hcpdigital/letter-ner-system/internal/services"
	"github.com/hcpdigital/letter-ner-system/pkg/storage"
)

// 支持上传的信件文件类型
var validFileTypes = map[string]bool{
	".xml": true,
	".tei": true,
	".txt": true,
}

// LetterHandler 信件管理处理器
type LetterHandler struct {
	annotateService *services.AnnotateService // 标注服务
	fileStorage     storage.Storage           // 文件存储
	logger          *logrus.Logger            // 日志记录器
}

// NewLetterHandler 创建信件处理器
func NewLetterHandler(svc *services.AnnotateService, store storage.Storage) *LetterHandler {
	return &LetterHandler{
		annotateService: svc,
		fileStorage:     store,
		logger:          middleware.GetLogger(),
	}
}

// UploadLetter 处理信件上传请求
// POST /api/letters
func (h *LetterHandler) UploadLetter(c *gin.Context) {
	var req model.LetterUploadRequest
	if err := c.ShouldBind(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的信件上传请求", err.Error()))
		return
	}

	// 校验文件类型
	ext := strings.ToLower(filepath.Ext(req.File.Filename))
	if !validFileTypes[ext] {
		middleware.HandleError(c, middleware.NewValidationError(
			fmt.Sprintf("不支持的文件类型: %s，仅支持XML/TEI/TXT格式的信件", ext)))
		return
	}

	// 打开上传的文件
	file, err := req.File.Open()
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("无法读取上传的文件", err.Error()))
		return
	}
	defer file.Close()

	// 保存到文件存储
	fileInfo, err := h.fileStorage.Save(file, req.File.Filename)
	if err != nil {
		h.logger.WithError(err).Error("Failed to save uploaded letter file")
		middleware.HandleError(c, middleware.NewInternalError("信件文件保存失败", err.Error()))
		return
	}

	// 生成信件ID并登记状态
	letterID := uuid.New().String()
	statusManager := h.annotateService.GetStatusManager()
	if err := statusManager.MarkAsUploaded(c.Request.Context(), letterID,
		req.File.Filename, fileInfo.Path, req.File.Size); err != nil {
		h.logger.WithError(err).Error("Failed to register uploaded letter")
		middleware.HandleError(c, middleware.NewInternalError("信件记录创建失败", err.Error()))
		return
	}

	// 如果提供了标题，回写到信件记录
	if req.Title != "" {
		if err := h.annotateService.UpdateLetterTitle(c.Request.Context(), letterID, req.Title); err != nil {
			h.logger.WithError(err).Warn("Failed to update letter title")
		}
	}

	// 如果提供了标签，回写到信件记录
	if req.Tags != "" {
		if err := h.annotateService.UpdateLetterTags(c.Request.Context(), letterID, req.Tags); err != nil {
			h.logger.WithError(err).Warn("Failed to update letter tags")
		}
	}

	h.logger.WithFields(logrus.Fields{
		"letter_id": letterID,
		"filename":  req.File.Filename,
		"size":      req.File.Size,
	}).Info("Letter uploaded successfully")

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.LetterUploadResponse{
		LetterID: letterID,
		FileName: req.File.Filename,
		Status:   string(models.LetterStatusUploaded),
	}))
}

// GetLetterStatus 查询信件处理状态
// GET /api/letters/:id
func (h *LetterHandler) GetLetterStatus(c *gin.Context) {
	var req model.LetterStatusRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("信件ID不能为空", err.Error()))
		return
	}

	info, err := h.annotateService.GetLetterInfo(c.Request.Context(), req.ID)
	if err != nil {
		if errors.Is(err, models.ErrLetterNotFound) {
			middleware.HandleError(c, middleware.NewNotFoundError("信件不存在"))
			return
		}
		middleware.HandleError(c, middleware.NewInternalError("查询信件状态失败", err.Error()))
		return
	}

	resp := model.LetterStatusResponse{
		LetterID:  req.ID,
		Status:    asString(info["status"]),
		Stage:     asString(info["stage"]),
		FileName:  asString(info["filename"]),
		Title:     asString(info["title"]),
		Error:     asString(info["error"]),
		CreatedAt: asString(info["created_at"]),
		UpdatedAt: asString(info["updated_at"]),
	}
	if count, ok := info["annotation_runs"].(int); ok {
		resp.AnnotationRuns = count
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// ListLetters 查询信件列表
// GET /api/letters
func (h *LetterHandler) ListLetters(c *gin.Context) {
	var req model.LetterListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("列表查询参数无效", err.Error()))
		return
	}

	// 组装过滤条件
	filters := make(map[string]interface{})
	if req.Status != "" {
		filters["status"] = req.Status
	}
	if req.Tags != "" {
		filters["tags"] = req.Tags
	}
	if req.Title != "" {
		filters["title"] = req.Title
	}
	if req.StartTime != nil {
		filters["start_time"] = *req.StartTime
	}
	if req.EndTime != nil {
		filters["end_time"] = *req.EndTime
	}

	page := req.GetPage()
	pageSize := req.GetPageSize()
	offset := (page - 1) * pageSize

	letters, total, err := h.annotateService.ListLetters(c.Request.Context(), offset, pageSize, filters)
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("查询信件列表失败", err.Error()))
		return
	}

	infos := make([]model.LetterInfo, 0, len(letters))
	for _, letter := range letters {
		infos = append(infos, model.LetterInfo{
			LetterID:   letter.ID,
			FileName:   letter.FileName,
			Title:      letter.Title,
			Status:     string(letter.Status),
			Tags:       letter.Tags,
			UploadTime: letter.UploadedAt,
		})
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.LetterListResponse{
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Letters:  infos,
	}))
}

// DeleteLetter 删除信件
// DELETE /api/letters/:id
func (h *LetterHandler) DeleteLetter(c *gin.Context) {
	var req model.LetterDeleteRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("信件ID不能为空", err.Error()))
		return
	}

	if err := h.annotateService.DeleteLetter(c.Request.Context(), req.ID); err != nil {
		if errors.Is(err, models.ErrLetterNotFound) {
			middleware.HandleError(c, middleware.NewNotFoundError("信件不存在"))
			return
		}
		middleware.HandleError(c, middleware.NewInternalError("删除信件失败", err.Error()))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.LetterDeleteResponse{
		Success:  true,
		LetterID: req.ID,
	}))
}

// asString 安全地从map值中取字符串
func asString(v interface{}) string {
	if v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case models.LetterStatus:
		return string(s)
	case models.ProcessStage:
		return string(s)
	case time.Time:
		return s.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", s)
	}
}
