package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hcpdigital/letter-ner-system/internal/database"
	"github.com/hcpdigital/letter-ner-system/internal/repository"
	"github.com/hcpdigital/letter-ner-system/pkg/taskqueue"
)

// EnableAsyncProcessing 启用异步处理
func (s *AnnotateService) EnableAsyncProcessing(queue taskqueue.Queue) {
	s.asyncEnabled = true
	s.taskQueue = queue

	// 确保重要依赖已设置
	if s.statusManager == nil {
		s.logger.Warn("Status manager not set, creating default one")
		if s.repo == nil {
			s.repo = repository.NewLetterRepository()
		}
		s.statusManager = NewLetterStatusManager(s.repo, s.logger)
	}

	// 使用已有的数据库连接和新的队列创建新的仓储
	s.repo = repository.NewLetterRepositoryWithQueue(database.DB, queue)

	s.logger.Info("Async letter processing enabled")
}

// DisableAsyncProcessing 禁用异步处理
func (s *AnnotateService) DisableAsyncProcessing() {
	s.asyncEnabled = false
	s.logger.Info("Async letter processing disabled")
}

// WaitForTaskResult 等待任务完成并返回结果
func (s *AnnotateService) WaitForTaskResult(ctx context.Context, taskID string, timeout time.Duration) (*taskqueue.Task, error) {
	if !s.asyncEnabled || s.taskQueue == nil {
		return nil, fmt.Errorf("async processing not enabled or task queue not configured")
	}

	// 设置超时上下文
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// 等待任务完成
	task, err := s.taskQueue.WaitForTask(ctx, taskID, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for task: %w", err)
	}

	// 检查任务状态
	if task.Status == taskqueue.StatusFailed {
		return task, fmt.Errorf("task failed: %s", task.Error)
	}

	return task, nil
}

// GetLetterTasks 获取信件相关的任务列表
func (s *AnnotateService) GetLetterTasks(ctx context.Context, letterID string) ([]*taskqueue.Task, error) {
	if !s.asyncEnabled || s.taskQueue == nil {
		return nil, fmt.Errorf("async processing not enabled or task queue not configured")
	}

	return s.taskQueue.GetTasksByLetter(ctx, letterID)
}

// LetterTaskHandler 信件标注任务处理器
// 由工作者调用，在进程内执行完整的标注流程
type LetterTaskHandler struct {
	svc    *AnnotateService // 标注服务
	queue  taskqueue.Queue  // 任务队列，用于回写任务结果
	logger *logrus.Logger   // 日志记录器
}

// NewLetterTaskHandler 创建信件标注任务处理器
func NewLetterTaskHandler(svc *AnnotateService, queue taskqueue.Queue, logger *logrus.Logger) *LetterTaskHandler {
	if logger == nil {
		logger = logrus.New()
	}

	return &LetterTaskHandler{
		svc:    svc,
		queue:  queue,
		logger: logger,
	}
}

// GetTaskTypes 返回此处理器支持的任务类型
func (h *LetterTaskHandler) GetTaskTypes() []taskqueue.TaskType {
	return []taskqueue.TaskType{
		taskqueue.TaskProcessComplete,
		taskqueue.TaskAnnotateLetter,
	}
}

// ProcessTask 处理任务
func (h *LetterTaskHandler) ProcessTask(ctx context.Context, task *taskqueue.Task) error {
	h.logger.WithFields(logrus.Fields{
		"task_id":   task.ID,
		"task_type": task.Type,
		"letter_id": task.LetterID,
	}).Info("Processing letter task")

	switch task.Type {
	case taskqueue.TaskProcessComplete:
		return h.processComplete(ctx, task)
	case taskqueue.TaskAnnotateLetter:
		return h.annotateLetter(ctx, task)
	default:
		return fmt.Errorf("unsupported task type: %s", task.Type)
	}
}

// processComplete 执行完整的信件处理流程（解析+规范化+标注）
func (h *LetterTaskHandler) processComplete(ctx context.Context, task *taskqueue.Task) error {
	var payload taskqueue.ProcessCompletePayload
	if err := taskqueue.UnmarshalPayload(task.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal process complete payload: %w", err)
	}

	letterID := payload.LetterID
	if letterID == "" {
		letterID = task.LetterID
	}

	run, err := h.svc.annotateLetterSync(ctx, letterID)
	if err != nil {
		h.saveResult(ctx, task.ID, taskqueue.ProcessCompleteResult{
			LetterID:    letterID,
			ParseStatus: "failed",
			Error:       err.Error(),
		})
		return err
	}

	h.saveResult(ctx, task.ID, taskqueue.ProcessCompleteResult{
		LetterID:       letterID,
		RunID:          run.ID,
		ParseStatus:    "completed",
		AnnotateStatus: "completed",
		EntityCount:    run.EntityCount,
		TextLength:     run.TextLength,
	})

	return nil
}

// annotateLetter 执行实体标注任务
// 载荷中已带规范化后的文本时直接标注，否则走完整流程
func (h *LetterTaskHandler) annotateLetter(ctx context.Context, task *taskqueue.Task) error {
	var payload taskqueue.AnnotatePayload
	if err := taskqueue.UnmarshalPayload(task.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal annotate payload: %w", err)
	}

	letterID := payload.LetterID
	if letterID == "" {
		letterID = task.LetterID
	}

	if payload.Text == "" {
		// 没有预解析的文本，执行完整流程
		run, err := h.svc.annotateLetterSync(ctx, letterID)
		if err != nil {
			return err
		}
		h.saveResult(ctx, task.ID, taskqueue.AnnotateResult{
			LetterID:    letterID,
			RunID:       run.ID,
			Model:       run.Model,
			EntityCount: run.EntityCount,
			TextLength:  run.TextLength,
			FromCache:   run.FromCache,
		})
		return nil
	}

	// 直接标注载荷中的文本
	annotation, fromCache, err := h.svc.annotateText(ctx, payload.Text, payload.Title)
	if err != nil {
		h.svc.failLetter(ctx, letterID, fmt.Sprintf("failed to annotate text: %v", err))
		return err
	}

	run, err := h.svc.saveAnnotationRun(letterID, annotation, fromCache)
	if err != nil {
		h.svc.failLetter(ctx, letterID, fmt.Sprintf("failed to save annotation run: %v", err))
		return err
	}

	if err := h.svc.statusManager.MarkAsCompleted(ctx, letterID); err != nil {
		h.logger.WithError(err).Error("Failed to mark letter as completed")
	}

	h.saveResult(ctx, task.ID, taskqueue.AnnotateResult{
		LetterID:    letterID,
		RunID:       run.ID,
		Model:       run.Model,
		EntityCount: run.EntityCount,
		TextLength:  run.TextLength,
		FromCache:   fromCache,
	})

	return nil
}

// saveResult 将任务结果回写到队列
// 任务状态由工作者统一更新，这里只负责结果数据
func (h *LetterTaskHandler) saveResult(ctx context.Context, taskID string, result interface{}) {
	if h.queue == nil {
		return
	}

	if _, err := json.Marshal(result); err != nil {
		h.logger.WithError(err).Error("Failed to marshal task result")
		return
	}

	if err := h.queue.UpdateTaskStatus(ctx, taskID, taskqueue.StatusProcessing, result, ""); err != nil {
		h.logger.WithError(err).WithField("task_id", taskID).Warn("Failed to save task result")
	}
}
