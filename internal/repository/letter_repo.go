package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/hcpdigital/letter-ner-system/internal/database"
	"github.com/hcpdigital/letter-ner-system/internal/models"
	"github.com/hcpdigital/letter-ner-system/pkg/taskqueue"
)

// letterRepository 信件仓储实现
type letterRepository struct {
	db        *gorm.DB        // 数据库连接
	taskQueue taskqueue.Queue // 任务队列
	ctx       context.Context // 上下文，可用于事务或超时控制
}

// NewLetterRepository 创建信件仓储实例
func NewLetterRepository() LetterRepository {
	return &letterRepository{
		db:  database.MustDB(),
		ctx: context.Background(),
	}
}

// NewLetterRepositoryWithDB 使用指定的数据库连接创建信件仓储实例
func NewLetterRepositoryWithDB(db *gorm.DB) LetterRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &letterRepository{
		db:  db,
		ctx: context.Background(),
	}
}

// NewLetterRepositoryWithQueue 使用指定的数据库连接和任务队列创建信件仓储实例
func NewLetterRepositoryWithQueue(db *gorm.DB, queue taskqueue.Queue) LetterRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &letterRepository{
		db:        db,
		taskQueue: queue,
		ctx:       context.Background(),
	}
}

// Create 创建信件记录
func (r *letterRepository) Create(letter *models.Letter) error {
	if letter.ID == "" {
		return errors.New("letter ID cannot be empty")
	}

	return r.db.Create(letter).Error
}

// Update 更新信件记录
func (r *letterRepository) Update(letter *models.Letter) error {
	if letter.ID == "" {
		return errors.New("letter ID cannot be empty")
	}

	return r.db.Save(letter).Error
}

// GetByID 根据ID获取信件
func (r *letterRepository) GetByID(id string) (*models.Letter, error) {
	var letter models.Letter
	err := r.db.Where("id = ?", id).First(&letter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrLetterNotFound
		}
		return nil, err
	}
	return &letter, nil
}

// List 列出信件列表，支持分页和筛选
func (r *letterRepository) List(offset, limit int, filters map[string]interface{}) ([]*models.Letter, int64, error) {
	var letters []*models.Letter
	var total int64

	// 创建查询构造器
	query := r.db.Model(&models.Letter{})

	// 应用筛选条件
	if filters != nil {
		// 状态过滤
		if status, ok := filters["status"]; ok {
			switch s := status.(type) {
			case models.LetterStatus:
				query = query.Where("status = ?", string(s))
			case string:
				if s != "" {
					query = query.Where("status = ?", s)
				}
			}
		}

		// 标签过滤
		if tags, ok := filters["tags"].(string); ok && tags != "" {
			query = query.Where("tags LIKE ?", "%"+tags+"%")
		}

		// 时间范围过滤
		switch st := filters["start_time"].(type) {
		case time.Time:
			if !st.IsZero() {
				query = query.Where("uploaded_at >= ?", st)
			}
		case string:
			if st != "" {
				query = query.Where("uploaded_at >= ?", st)
			}
		}

		switch et := filters["end_time"].(type) {
		case time.Time:
			if !et.IsZero() {
				query = query.Where("uploaded_at <= ?", et)
			}
		case string:
			if et != "" {
				query = query.Where("uploaded_at <= ?", et)
			}
		}

		// 文件名过滤
		if fileName, ok := filters["file_name"].(string); ok && fileName != "" {
			query = query.Where("file_name LIKE ?", "%"+fileName+"%")
		}

		// 标题过滤
		if title, ok := filters["title"].(string); ok && title != "" {
			query = query.Where("title LIKE ?", "%"+title+"%")
		}
	}

	// 获取总数
	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	// 应用排序、分页并执行查询
	err = query.Order("uploaded_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&letters).Error

	if err != nil {
		return nil, 0, err
	}

	return letters, total, nil
}

// Delete 删除信件记录及其标注运行
func (r *letterRepository) Delete(id string) error {
	// 开启事务
	return r.db.Transaction(func(tx *gorm.DB) error {
		// 1. 删除标注运行记录
		if err := tx.Where("letter_id = ?", id).Delete(&models.AnnotationRun{}).Error; err != nil {
			return err
		}

		// 2. 删除信件记录
		if err := tx.Where("id = ?", id).Delete(&models.Letter{}).Error; err != nil {
			return err
		}

		// 3. 如果任务队列已初始化，尝试获取并删除相关任务
		if r.taskQueue != nil {
			ctx := r.getContext()
			tasks, err := r.taskQueue.GetTasksByLetter(ctx, id)
			if err == nil && len(tasks) > 0 {
				for _, task := range tasks {
					// 忽略错误，因为任务可能已经被删除
					_ = r.taskQueue.DeleteTask(ctx, task.ID)
				}
			}
		}

		return nil
	})
}

// UpdateStatus 更新信件状态
func (r *letterRepository) UpdateStatus(id string, status models.LetterStatus, errorMsg string) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}

	// 如果有错误消息，更新错误字段
	if errorMsg != "" {
		updates["error"] = errorMsg
	}

	// 如果状态是已完成或失败，设置处理完成时间
	if status == models.LetterStatusCompleted || status == models.LetterStatusFailed {
		now := time.Now()
		updates["processed_at"] = &now
	}

	return r.db.Model(&models.Letter{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdateStage 更新信件处理阶段
func (r *letterRepository) UpdateStage(id string, stage models.ProcessStage) error {
	return r.db.Model(&models.Letter{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"current_stage": stage,
			"updated_at":    time.Now(),
		}).Error
}

// SaveAnnotationRun 保存标注运行记录
func (r *letterRepository) SaveAnnotationRun(run *models.AnnotationRun) error {
	if run.ID == "" {
		return errors.New("annotation run ID cannot be empty")
	}
	return r.db.Create(run).Error
}

// UpdateAnnotationRun 更新标注运行记录
func (r *letterRepository) UpdateAnnotationRun(run *models.AnnotationRun) error {
	if run.ID == "" {
		return errors.New("annotation run ID cannot be empty")
	}
	return r.db.Save(run).Error
}

// GetAnnotationRun 根据ID获取标注运行记录
func (r *letterRepository) GetAnnotationRun(id string) (*models.AnnotationRun, error) {
	var run models.AnnotationRun
	err := r.db.Where("id = ?", id).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrAnnotationRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

// GetAnnotationRuns 获取信件的所有标注运行记录
func (r *letterRepository) GetAnnotationRuns(letterID string) ([]*models.AnnotationRun, error) {
	var runs []*models.AnnotationRun
	err := r.db.Where("letter_id = ?", letterID).
		Order("created_at DESC").
		Find(&runs).Error
	return runs, err
}

// GetLatestAnnotationRun 获取信件最近一次完成的标注运行
func (r *letterRepository) GetLatestAnnotationRun(letterID string) (*models.AnnotationRun, error) {
	var run models.AnnotationRun
	err := r.db.Where("letter_id = ? AND status = ?", letterID, "completed").
		Order("created_at DESC").
		First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrAnnotationRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

// CountAnnotationRuns 统计信件的标注运行数量
func (r *letterRepository) CountAnnotationRuns(letterID string) (int, error) {
	var count int64
	err := r.db.Model(&models.AnnotationRun{}).
		Where("letter_id = ?", letterID).
		Count(&count).Error
	return int(count), err
}

// DeleteAnnotationRuns 删除信件的所有标注运行记录
func (r *letterRepository) DeleteAnnotationRuns(letterID string) error {
	return r.db.Where("letter_id = ?", letterID).
		Delete(&models.AnnotationRun{}).Error
}

// WithContext 创建带有上下文的仓储
func (r *letterRepository) WithContext(ctx context.Context) LetterRepository {
	return &letterRepository{
		db:        r.db.WithContext(ctx),
		taskQueue: r.taskQueue,
		ctx:       ctx,
	}
}

// getContext 获取仓储的上下文，如果未设置则使用背景上下文
func (r *letterRepository) getContext() context.Context {
	if r.ctx != nil {
		return r.ctx
	}
	return context.Background()
}

// CreateTask 创建任务并关联到信件
func (r *letterRepository) CreateTask(ctx context.Context, taskType taskqueue.TaskType, letterID string, payload interface{}) (string, error) {
	if r.taskQueue == nil {
		return "", errors.New("task queue not initialized")
	}

	// 检查信件是否存在
	_, err := r.GetByID(letterID)
	if err != nil {
		return "", err
	}

	// 将任务加入队列
	taskID, err := r.taskQueue.Enqueue(ctx, taskType, letterID, payload)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	// 更新信件状态为处理中
	if err := r.UpdateStatus(letterID, models.LetterStatusProcessing, ""); err != nil {
		return taskID, fmt.Errorf("failed to update letter status: %w", err)
	}

	return taskID, nil
}
