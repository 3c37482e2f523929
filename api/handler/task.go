package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/hcpdigital/letter-ner-system/api/middleware"
	"github.com/hcpdigital/letter-ner-system/api/model"
	"github.com/hcpdigital/letter-ner-system/pkg/taskqueue"
)

// TaskHandler 任务管理处理器
type TaskHandler struct {
	queue     taskqueue.Queue              // 任务队列
	processor *taskqueue.CallbackProcessor // 回调处理器
	logger    *logrus.Logger               // 日志记录器
}

// NewTaskHandler 创建任务处理器
func NewTaskHandler(queue taskqueue.Queue) *TaskHandler {
	logger := middleware.GetLogger()

	// 使用共享的回调处理器，保证与服务层注册的处理函数一致
	processor := taskqueue.GetSharedCallbackProcessor(queue, logger)

	return &TaskHandler{
		queue:     queue,
		processor: processor,
		logger:    logger,
	}
}

// HandleCallback 接收任务回调
// POST /api/tasks/callback
func (h *TaskHandler) HandleCallback(c *gin.Context) {
	var req taskqueue.CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("回调数据格式无效", err.Error()))
		return
	}

	if req.TaskID == "" {
		middleware.HandleError(c, middleware.NewValidationError("任务ID不能为空"))
		return
	}

	resp, err := h.processor.HandleCallback(c.Request.Context(), &req)
	if err != nil {
		h.logger.WithError(err).WithField("task_id", req.TaskID).Error("Failed to process task callback")
		if errors.Is(err, taskqueue.ErrTaskNotFound) {
			middleware.HandleError(c, middleware.NewNotFoundError("任务不存在"))
			return
		}
		middleware.HandleError(c, middleware.NewInternalError("回调处理失败", err.Error()))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// GetTaskStatus 查询任务状态
// GET /api/tasks/:id
func (h *TaskHandler) GetTaskStatus(c *gin.Context) {
	var req model.TaskStatusRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("任务ID不能为空", err.Error()))
		return
	}

	task, err := h.queue.GetTask(c.Request.Context(), req.ID)
	if err != nil {
		if errors.Is(err, taskqueue.ErrTaskNotFound) {
			middleware.HandleError(c, middleware.NewNotFoundError("任务不存在"))
			return
		}
		middleware.HandleError(c, middleware.NewInternalError("查询任务状态失败", err.Error()))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(taskStatusResponse(task)))
}

// GetLetterTasks 查询信件关联的任务列表
// GET /api/letters/:id/tasks
func (h *TaskHandler) GetLetterTasks(c *gin.Context) {
	var req model.LetterStatusRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("信件ID不能为空", err.Error()))
		return
	}

	tasks, err := h.queue.GetTasksByLetter(c.Request.Context(), req.ID)
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("查询信件任务列表失败", err.Error()))
		return
	}

	responses := make([]model.TaskStatusResponse, 0, len(tasks))
	for _, task := range tasks {
		responses = append(responses, taskStatusResponse(task))
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(responses))
}

// taskStatusResponse 将任务转换为状态响应结构
func taskStatusResponse(task *taskqueue.Task) model.TaskStatusResponse {
	info := taskqueue.NewTaskInfo(task)

	resp := model.TaskStatusResponse{
		TaskID:    info.ID,
		Type:      string(info.Type),
		LetterID:  info.LetterID,
		Status:    string(info.Status),
		Progress:  info.Progress,
		Error:     info.Error,
		CreatedAt: info.CreatedAt.Format(time.RFC3339),
	}

	if info.CompletedAt != nil {
		resp.CompletedAt = info.CompletedAt.Format(time.RFC3339)
	}

	return resp
}
