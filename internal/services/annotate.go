package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/hcpdigital/letter-ner-system/internal/cache"
	"github.com/hcpdigital/letter-ner-system/internal/document"
	"github.com/hcpdigital/letter-ner-system/internal/exporter"
	"github.com/hcpdigital/letter-ner-system/internal/models"
	"github.com/hcpdigital/letter-ner-system/internal/ner"
	"github.com/hcpdigital/letter-ner-system/internal/repository"
	"github.com/hcpdigital/letter-ner-system/pkg/storage"
	"github.com/hcpdigital/letter-ner-system/pkg/taskqueue"
)

// AnnotateService 信件标注服务
// 负责协调信件解析、文本规范化、实体标注和结果持久化
type AnnotateService struct {
	storage       storage.Storage             // 信件文件存储
	artifacts     storage.Storage             // 导出产物存储（可选）
	normalizer    *document.Normalizer        // 文本规范化器
	nerClient     ner.Client                  // 实体标注模型客户端
	cache         cache.Cache                 // 标注结果缓存
	cacheTTL      time.Duration               // 缓存过期时间
	repo          repository.LetterRepository // 信件元数据存储
	statusManager *LetterStatusManager        // 信件状态管理器
	exporters     *exporter.ExporterFactory   // 导出器工厂
	taskQueue     taskqueue.Queue             // 任务队列
	asyncEnabled  bool                        // 是否启用异步处理
	timeout       time.Duration               // 处理超时时间
	logger        *logrus.Logger              // 日志记录器
}

// AnnotateOption 标注服务配置选项
type AnnotateOption func(*AnnotateService)

// NewAnnotateService 创建一个新的标注服务
func NewAnnotateService(
	store storage.Storage,
	normalizer *document.Normalizer,
	nerClient ner.Client,
	opts ...AnnotateOption,
) *AnnotateService {
	srv := &AnnotateService{
		storage:      store,
		normalizer:   normalizer,
		nerClient:    nerClient,
		exporters:    exporter.NewExporterFactory(),
		cacheTTL:     24 * time.Hour,  // 默认缓存一天
		timeout:      time.Minute * 5, // 默认超时时间
		logger:       logrus.New(),    // 默认日志记录器
		asyncEnabled: false,           // 默认不启用异步处理
	}

	// 应用配置选项
	for _, opt := range opts {
		opt(srv)
	}

	return srv
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) AnnotateOption {
	return func(s *AnnotateService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCache 设置标注结果缓存
func WithCache(c cache.Cache) AnnotateOption {
	return func(s *AnnotateService) {
		s.cache = c
	}
}

// WithCacheTTL 设置缓存过期时间
func WithCacheTTL(ttl time.Duration) AnnotateOption {
	return func(s *AnnotateService) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithLetterRepository 设置信件仓储
func WithLetterRepository(repo repository.LetterRepository) AnnotateOption {
	return func(s *AnnotateService) {
		s.repo = repo
	}
}

// WithStatusManager 设置状态管理器
func WithStatusManager(manager *LetterStatusManager) AnnotateOption {
	return func(s *AnnotateService) {
		s.statusManager = manager
	}
}

// WithTaskQueue 设置任务队列
func WithTaskQueue(queue taskqueue.Queue) AnnotateOption {
	return func(s *AnnotateService) {
		s.taskQueue = queue
		s.asyncEnabled = queue != nil
	}
}

// WithAsyncProcessing 设置是否启用异步处理
func WithAsyncProcessing(enabled bool) AnnotateOption {
	return func(s *AnnotateService) {
		s.asyncEnabled = enabled
	}
}

// WithTimeout 设置处理超时时间
func WithTimeout(timeout time.Duration) AnnotateOption {
	return func(s *AnnotateService) {
		s.timeout = timeout
	}
}

// WithArtifactStorage 设置导出产物存储
func WithArtifactStorage(store storage.Storage) AnnotateOption {
	return func(s *AnnotateService) {
		s.artifacts = store
	}
}

// Init 初始化标注服务
// 确保必要的依赖都已设置
func (s *AnnotateService) Init() error {
	if s.repo == nil {
		s.repo = repository.NewLetterRepository()
	}

	if s.statusManager == nil {
		s.statusManager = NewLetterStatusManager(s.repo, s.logger)
	}

	if s.normalizer == nil {
		s.normalizer = document.NewNormalizer()
	}

	return nil
}

// AnnotateLetter 对信件执行实体标注（解析、规范化、标注、入库）
func (s *AnnotateService) AnnotateLetter(ctx context.Context, letterID string) (*models.AnnotationRun, error) {
	// 确保初始化完成
	if err := s.Init(); err != nil {
		return nil, err
	}

	s.logger.WithField("letter_id", letterID).Info("Starting letter annotation")

	if letterID == "" {
		return nil, errors.New("letterID cannot be empty")
	}

	// 如果启用异步处理并且任务队列已配置，使用任务队列处理
	if s.asyncEnabled && s.taskQueue != nil {
		_, err := s.annotateLetterAsync(ctx, letterID)
		return nil, err
	}

	// 否则，使用同步方式处理
	return s.annotateLetterSync(ctx, letterID)
}

// AnnotateLetterAsync 异步标注信件，返回任务ID
func (s *AnnotateService) AnnotateLetterAsync(ctx context.Context, letterID string) (string, error) {
	if err := s.Init(); err != nil {
		return "", err
	}

	if !s.asyncEnabled || s.taskQueue == nil {
		return "", errors.New("async processing not enabled or task queue not configured")
	}

	return s.annotateLetterAsync(ctx, letterID)
}

// annotateLetterAsync 异步标注信件
// 将任务加入队列并立即返回任务ID
func (s *AnnotateService) annotateLetterAsync(ctx context.Context, letterID string) (string, error) {
	letter, err := s.statusManager.GetLetter(ctx, letterID)
	if err != nil {
		return "", fmt.Errorf("failed to get letter: %w", err)
	}

	s.logger.WithField("letter_id", letterID).Info("Enqueuing letter for async annotation")

	// 更新信件状态为处理中
	if err := s.statusManager.MarkAsProcessing(ctx, letterID); err != nil {
		s.logger.WithError(err).Error("Failed to mark letter as processing")
		// 继续处理，不中断
	}

	payload := taskqueue.ProcessCompletePayload{
		LetterID: letterID,
		FilePath: letter.FilePath,
		FileName: letter.FileName,
		FileType: letter.FileType,
		Model:    s.nerClient.Model(),
		Metadata: map[string]string{
			"source": "api",
		},
	}

	taskID, err := s.taskQueue.Enqueue(ctx, taskqueue.TaskProcessComplete, letterID, payload)
	if err != nil {
		s.failLetter(ctx, letterID, fmt.Sprintf("failed to create annotation task: %v", err))
		return "", fmt.Errorf("failed to create annotation task: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"letter_id": letterID,
		"task_id":   taskID,
	}).Info("Letter annotation task created successfully")

	return taskID, nil
}

// annotateLetterSync 同步标注信件
// 直接在当前进程中执行完整流程
func (s *AnnotateService) annotateLetterSync(ctx context.Context, letterID string) (*models.AnnotationRun, error) {
	// 设置上下文超时
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	letter, err := s.statusManager.GetLetter(ctx, letterID)
	if err != nil {
		return nil, fmt.Errorf("failed to get letter: %w", err)
	}

	// 更新信件状态为处理中
	if err := s.statusManager.MarkAsProcessing(ctx, letterID); err != nil {
		s.logger.WithError(err).Error("Failed to mark letter as processing")
		// 继续处理，不中断
	}

	// 解析信件，提取转录文本
	s.statusManager.UpdateStage(ctx, letterID, models.StageParsing)
	parsed, err := s.parseLetter(letter)
	if err != nil {
		s.failLetter(ctx, letterID, fmt.Sprintf("failed to parse letter: %v", err))
		return nil, fmt.Errorf("failed to parse letter: %w", err)
	}

	// 规范化文本
	s.statusManager.UpdateStage(ctx, letterID, models.StageNormalizing)
	normalized := s.normalizer.Normalize(parsed.Transcription)

	// 确定标注标题：优先使用数据库中的标题，其次使用解析出的标题
	title := letter.Title
	if title == "" {
		title = parsed.Title
	}

	// 执行标注
	s.statusManager.UpdateStage(ctx, letterID, models.StageAnnotating)
	annotation, fromCache, err := s.annotateText(ctx, normalized, title)
	if err != nil {
		s.failLetter(ctx, letterID, fmt.Sprintf("failed to annotate text: %v", err))
		return nil, fmt.Errorf("failed to annotate text: %w", err)
	}

	// 持久化标注运行记录
	run, err := s.saveAnnotationRun(letterID, annotation, fromCache)
	if err != nil {
		s.failLetter(ctx, letterID, fmt.Sprintf("failed to save annotation run: %v", err))
		return nil, fmt.Errorf("failed to save annotation run: %w", err)
	}

	// 如果解析出了标题而数据库中没有，回填
	if letter.Title == "" && parsed.Title != "" {
		letter.Title = parsed.Title
		if err := s.repo.Update(letter); err != nil {
			s.logger.WithError(err).Warn("Failed to backfill letter title")
		}
	}

	// 信件处理完成，更新状态
	if err := s.statusManager.MarkAsCompleted(ctx, letterID); err != nil {
		s.logger.WithError(err).Error("Failed to mark letter as completed")
		// 虽然状态更新失败，但标注成功，所以不返回错误
	}

	s.logger.WithFields(logrus.Fields{
		"letter_id":    letterID,
		"run_id":       run.ID,
		"entity_count": run.EntityCount,
		"from_cache":   fromCache,
	}).Info("Letter annotation completed successfully")

	return run, nil
}

// parseLetter 解析信件文件，提取转录文本
func (s *AnnotateService) parseLetter(letter *models.Letter) (*document.Letter, error) {
	s.logger.WithField("file_path", letter.FilePath).Debug("Parsing letter")

	// 从文件路径中提取存储ID
	fileID := filepath.Base(letter.FilePath)
	fileID = strings.TrimSuffix(fileID, filepath.Ext(fileID))

	// 尝试获取文件
	reader, err := s.storage.Get(fileID)
	if err != nil {
		s.logger.WithError(err).Debug("Failed to get file directly, trying with path")
		// 尝试将整个路径作为ID
		reader, err = s.storage.Get(letter.FilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to get file from storage: %w", err)
		}
	}
	defer reader.Close()

	// 创建解析器
	parser, err := document.ParserFactory(letter.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create parser: %w", err)
	}

	// 直接从reader解析信件
	parsed, err := parser.ParseReader(reader, letter.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse letter: %w", err)
	}

	return parsed, nil
}

// annotateText 标注文本，优先使用缓存结果
func (s *AnnotateService) annotateText(ctx context.Context, text string, title string) (*ner.Annotation, bool, error) {
	model := s.nerClient.Model()

	// 查询缓存
	if s.cache != nil {
		key := cache.AnnotationCacheKey(model, text)
		if cached, found, err := s.cache.Get(key); err == nil && found {
			var annotation ner.Annotation
			if err := json.Unmarshal([]byte(cached), &annotation); err == nil {
				s.logger.WithField("model", model).Debug("Annotation cache hit")
				annotation.Title = title
				return &annotation, true, nil
			}
			// 缓存内容损坏，删除后重新标注
			s.cache.Delete(key)
		}
	}

	// 调用模型服务标注
	annotation, err := s.nerClient.Annotate(ctx, text, ner.WithTitle(title))
	if err != nil {
		return nil, false, err
	}

	// 写入缓存
	if s.cache != nil {
		if data, err := json.Marshal(annotation); err == nil {
			key := cache.AnnotationCacheKey(model, text)
			if err := s.cache.Set(key, string(data), s.cacheTTL); err != nil {
				s.logger.WithError(err).Warn("Failed to cache annotation result")
			}
		}
	}

	return annotation, false, nil
}

// saveAnnotationRun 持久化标注运行记录
func (s *AnnotateService) saveAnnotationRun(letterID string, annotation *ner.Annotation, fromCache bool) (*models.AnnotationRun, error) {
	entsJSON, err := json.Marshal(annotation.Ents)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entities: %w", err)
	}

	now := time.Now()
	run := &models.AnnotationRun{
		ID:          uuid.New().String(),
		LetterID:    letterID,
		Model:       annotation.Model,
		Status:      "completed",
		Text:        annotation.Text,
		Ents:        datatypes.JSON(entsJSON),
		EntityCount: len(annotation.Ents),
		TextLength:  len([]rune(annotation.Text)),
		CompletedAt: &now,
		FromCache:   fromCache,
	}

	if err := s.repo.SaveAnnotationRun(run); err != nil {
		return nil, err
	}

	return run, nil
}

// GetAnnotationRun 获取标注运行记录
func (s *AnnotateService) GetAnnotationRun(ctx context.Context, runID string) (*models.AnnotationRun, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}
	return s.repo.GetAnnotationRun(runID)
}

// GetAnnotationRuns 获取信件的所有标注运行记录
func (s *AnnotateService) GetAnnotationRuns(ctx context.Context, letterID string) ([]*models.AnnotationRun, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}
	return s.repo.GetAnnotationRuns(letterID)
}

// GetLatestAnnotationRun 获取信件最近一次完成的标注运行
func (s *AnnotateService) GetLatestAnnotationRun(ctx context.Context, letterID string) (*models.AnnotationRun, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}
	return s.repo.GetLatestAnnotationRun(letterID)
}

// ExportResult 导出结果
type ExportResult struct {
	Data        []byte // 导出内容
	ContentType string // HTTP内容类型
	FileName    string // 建议的文件名
}

// ExportAnnotationRun 将标注运行导出为指定格式
func (s *AnnotateService) ExportAnnotationRun(ctx context.Context, runID string, format exporter.Format) (*ExportResult, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}

	// 获取标注运行记录
	run, err := s.repo.GetAnnotationRun(runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get annotation run: %w", err)
	}

	// 重建标注对象
	annotation, err := s.annotationFromRun(run)
	if err != nil {
		return nil, err
	}

	// 获取导出器并执行导出
	exp, err := s.exporters.GetExporter(format)
	if err != nil {
		return nil, err
	}

	data, err := exp.Export(annotation)
	if err != nil {
		return nil, fmt.Errorf("failed to export annotation: %w", err)
	}

	fileName := fmt.Sprintf("ent_viz_%s%s", run.ID, exp.FileExtension())

	// 如果配置了产物存储，保存一份导出副本
	if s.artifacts != nil {
		if _, err := s.artifacts.Save(strings.NewReader(string(data)), fileName); err != nil {
			s.logger.WithError(err).Warn("Failed to save export artifact")
		}
	}

	return &ExportResult{
		Data:        data,
		ContentType: exp.ContentType(),
		FileName:    fileName,
	}, nil
}

// annotationFromRun 从持久化记录重建标注对象
func (s *AnnotateService) annotationFromRun(run *models.AnnotationRun) (*ner.Annotation, error) {
	var ents []ner.EntitySpan
	if len(run.Ents) > 0 {
		if err := json.Unmarshal(run.Ents, &ents); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entities: %w", err)
		}
	}
	if ents == nil {
		ents = []ner.EntitySpan{}
	}

	// 标题从信件记录中取
	var title string
	if letter, err := s.repo.GetByID(run.LetterID); err == nil {
		title = letter.Title
	}

	return &ner.Annotation{
		Text:  run.Text,
		Ents:  ents,
		Model: run.Model,
		Title: title,
	}, nil
}

// DeleteLetter 删除信件及其相关数据
func (s *AnnotateService) DeleteLetter(ctx context.Context, letterID string) error {
	if err := s.Init(); err != nil {
		return err
	}

	s.logger.WithField("letter_id", letterID).Info("Deleting letter")

	// 1. 从存储中删除文件
	letter, err := s.statusManager.GetLetter(ctx, letterID)
	if err == nil && letter.FilePath != "" {
		fileID := filepath.Base(letter.FilePath)
		fileID = strings.TrimSuffix(fileID, filepath.Ext(fileID))
		if err := s.storage.Delete(fileID); err != nil {
			// 文件可能已被删除，记录错误但不中断流程
			s.logger.WithError(err).Warn("Failed to delete file from storage")
		}
	}

	// 2. 删除信件记录和标注运行
	if err := s.statusManager.DeleteLetter(ctx, letterID); err != nil {
		s.logger.WithError(err).Error("Failed to delete letter record")
		return fmt.Errorf("failed to delete letter record: %w", err)
	}

	s.logger.WithField("letter_id", letterID).Info("Letter deleted successfully")
	return nil
}

// GetLetterInfo 获取信件信息
func (s *AnnotateService) GetLetterInfo(ctx context.Context, letterID string) (map[string]interface{}, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}

	letter, err := s.statusManager.GetLetter(ctx, letterID)
	if err != nil {
		return nil, fmt.Errorf("failed to get letter: %w", err)
	}

	info := map[string]interface{}{
		"letter_id":  letter.ID,
		"filename":   letter.FileName,
		"title":      letter.Title,
		"status":     letter.Status,
		"created_at": letter.UploadedAt.Format(time.RFC3339),
		"updated_at": letter.UpdatedAt.Format(time.RFC3339),
		"size":       letter.FileSize,
	}

	if letter.CurrentStage != "" {
		info["stage"] = letter.CurrentStage
	}

	if letter.Error != "" {
		info["error"] = letter.Error
	}

	if letter.ProcessedAt != nil {
		info["processed_at"] = letter.ProcessedAt.Format(time.RFC3339)
	}

	if letter.Tags != "" {
		info["tags"] = letter.Tags
	}

	// 附加标注运行数量
	if count, err := s.repo.CountAnnotationRuns(letterID); err == nil {
		info["annotation_runs"] = count
	}

	return info, nil
}

// ListLetters 获取信件列表
func (s *AnnotateService) ListLetters(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Letter, int64, error) {
	if err := s.Init(); err != nil {
		return nil, 0, err
	}
	return s.statusManager.ListLetters(ctx, offset, limit, filters)
}

// UpdateLetterTags 更新信件标签
func (s *AnnotateService) UpdateLetterTags(ctx context.Context, letterID string, tags string) error {
	if err := s.Init(); err != nil {
		return err
	}

	letter, err := s.statusManager.GetLetter(ctx, letterID)
	if err != nil {
		return fmt.Errorf("failed to get letter: %w", err)
	}

	letter.Tags = tags
	return s.repo.Update(letter)
}

// UpdateLetterTitle 更新信件标题
func (s *AnnotateService) UpdateLetterTitle(ctx context.Context, letterID string, title string) error {
	if err := s.Init(); err != nil {
		return err
	}

	letter, err := s.statusManager.GetLetter(ctx, letterID)
	if err != nil {
		return fmt.Errorf("failed to get letter: %w", err)
	}

	letter.Title = title
	return s.repo.Update(letter)
}

// failLetter 将信件标记为失败状态
func (s *AnnotateService) failLetter(ctx context.Context, letterID string, errorMsg string) {
	if s.statusManager == nil {
		s.logger.Error("Cannot mark letter as failed: status manager not initialized")
		return
	}

	if err := s.statusManager.MarkAsFailed(ctx, letterID, errorMsg); err != nil {
		s.logger.WithFields(logrus.Fields{
			"letter_id": letterID,
			"error":     err,
		}).Error("Failed to mark letter as failed")
	}
}

// GetStatusManager 返回信件状态管理器实例
func (s *AnnotateService) GetStatusManager() *LetterStatusManager {
	return s.statusManager
}

// GetTaskQueue 返回任务队列实例
func (s *AnnotateService) GetTaskQueue() taskqueue.Queue {
	return s.taskQueue
}

// AsyncEnabled 返回是否启用了异步处理
func (s *AnnotateService) AsyncEnabled() bool {
	return s.asyncEnabled && s.taskQueue != nil
}

// GetNERClient 返回模型客户端实例
func (s *AnnotateService) GetNERClient() ner.Client {
	return s.nerClient
}
