package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hcpdigital/letter-ner-system/internal/models"
	"github.com/hcpdigital/letter-ner-system/internal/repository"
)

// LetterStatusManager 信件状态管理器
// 负责管理信件标注处理的生命周期状态
type LetterStatusManager struct {
	repo   repository.LetterRepository // 信件仓储接口
	logger *logrus.Logger              // 日志记录器
	mu     sync.Mutex                  // 互斥锁，保证状态转换的原子性
}

// NewLetterStatusManager 创建信件状态管理器
func NewLetterStatusManager(repo repository.LetterRepository, logger *logrus.Logger) *LetterStatusManager {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
	}

	return &LetterStatusManager{
		repo:   repo,
		logger: logger,
	}
}

// MarkAsUploaded 将信件标记为已上传状态
func (m *LetterStatusManager) MarkAsUploaded(ctx context.Context, letterID string, fileName string, filePath string, fileSize int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"letter_id": letterID,
		"filename":  fileName,
	}).Info("Marking letter as uploaded")

	// 创建新的信件记录
	letter := &models.Letter{
		ID:         letterID,
		FileName:   fileName,
		FileType:   getFileType(fileName),
		FilePath:   filePath,
		FileSize:   fileSize,
		Status:     models.LetterStatusUploaded,
		UploadedAt: time.Now(),
		UpdatedAt:  time.Now(),
	}

	// 保存到仓储
	return m.repo.Create(letter)
}

// MarkAsProcessing 将信件标记为处理中状态
func (m *LetterStatusManager) MarkAsProcessing(ctx context.Context, letterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 获取当前信件
	letter, err := m.repo.GetByID(letterID)
	if err != nil {
		return fmt.Errorf("failed to get letter: %w", err)
	}

	// 已完成或失败的信件允许重新标注
	if letter.Status == models.LetterStatusProcessing {
		return fmt.Errorf("letter %s is already being processed", letterID)
	}

	m.logger.WithField("letter_id", letterID).Info("Marking letter as processing")

	// 更新状态
	return m.repo.UpdateStatus(letterID, models.LetterStatusProcessing, "")
}

// MarkAsCompleted 将信件标记为处理完成状态
func (m *LetterStatusManager) MarkAsCompleted(ctx context.Context, letterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 获取当前信件
	letter, err := m.repo.GetByID(letterID)
	if err != nil {
		return fmt.Errorf("failed to get letter: %w", err)
	}

	// 检查状态转换的有效性
	if letter.Status != models.LetterStatusProcessing && letter.Status != models.LetterStatusUploaded {
		return fmt.Errorf("invalid state transition: letter %s is in %s state, expected %s or %s",
			letterID, letter.Status, models.LetterStatusProcessing, models.LetterStatusUploaded)
	}

	m.logger.WithField("letter_id", letterID).Info("Marking letter as completed")

	// 更新状态和处理阶段
	if err := m.repo.UpdateStatus(letterID, models.LetterStatusCompleted, ""); err != nil {
		return err
	}
	return m.repo.UpdateStage(letterID, models.StageCompleted)
}

// MarkAsFailed 将信件标记为处理失败状态
func (m *LetterStatusManager) MarkAsFailed(ctx context.Context, letterID string, errorMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 获取当前信件
	_, err := m.repo.GetByID(letterID)
	if err != nil {
		return fmt.Errorf("failed to get letter: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"letter_id": letterID,
		"error":     errorMsg,
	}).Error("Marking letter as failed")

	// 更新状态
	return m.repo.UpdateStatus(letterID, models.LetterStatusFailed, errorMsg)
}

// UpdateStage 更新信件处理阶段
func (m *LetterStatusManager) UpdateStage(ctx context.Context, letterID string, stage models.ProcessStage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"letter_id": letterID,
		"stage":     stage,
	}).Debug("Updating letter stage")

	return m.repo.UpdateStage(letterID, stage)
}

// GetStatus 获取信件当前状态
func (m *LetterStatusManager) GetStatus(ctx context.Context, letterID string) (models.LetterStatus, error) {
	letter, err := m.repo.GetByID(letterID)
	if err != nil {
		return "", fmt.Errorf("failed to get letter status: %w", err)
	}
	return letter.Status, nil
}

// GetLetter 获取完整的信件对象
func (m *LetterStatusManager) GetLetter(ctx context.Context, letterID string) (*models.Letter, error) {
	return m.repo.GetByID(letterID)
}

// ListLetters 获取信件列表
func (m *LetterStatusManager) ListLetters(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Letter, int64, error) {
	return m.repo.List(offset, limit, filters)
}

// DeleteLetter 删除信件状态记录
func (m *LetterStatusManager) DeleteLetter(ctx context.Context, letterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.WithField("letter_id", letterID).Info("Deleting letter status record")
	return m.repo.Delete(letterID)
}

// ValidateStateTransition 验证状态转换的有效性
func (m *LetterStatusManager) ValidateStateTransition(from, to models.LetterStatus) error {
	// 定义有效的状态转换
	validTransitions := map[models.LetterStatus][]models.LetterStatus{
		models.LetterStatusUploaded: {
			models.LetterStatusProcessing,
			models.LetterStatusCompleted, // 短信件可能直接完成
			models.LetterStatusFailed,    // 上传后可能立即失败
		},
		models.LetterStatusProcessing: {
			models.LetterStatusCompleted,
			models.LetterStatusFailed,
		},
		// 已完成或失败的信件允许重新标注
		models.LetterStatusCompleted: {models.LetterStatusProcessing},
		models.LetterStatusFailed:    {models.LetterStatusProcessing},
	}

	// 检查是否是有效转换
	for _, validTo := range validTransitions[from] {
		if validTo == to {
			return nil
		}
	}

	return errors.New("invalid state transition")
}

// getFileType 根据文件名获取文件类型
func getFileType(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	return strings.TrimPrefix(ext, ".")
}
