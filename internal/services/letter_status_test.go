package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hcpdigital/letter-ner-system/internal/database"
	"github.com/hcpdigital/letter-ner-system/internal/models"
	"github.com/hcpdigital/letter-ner-system/internal/repository"
)

// setupTestDB 创建测试数据库环境
func setupTestDB(t *testing.T) (*gorm.DB, func()) {
	// 使用唯一的内存数据库标识符
	dbName := fmt.Sprintf("file:memdb_services_%d?mode=memory", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	require.NoError(t, err, "Failed to connect to test database")

	// 运行迁移
	err = db.AutoMigrate(&models.Letter{}, &models.AnnotationRun{})
	require.NoError(t, err, "Failed to run migrations")

	// 保存原始DB引用并替换
	originalDB := database.DB
	database.DB = db

	cleanup := func() {
		database.DB = originalDB
	}

	return db, cleanup
}

// TestLetterStatusManager_BasicFlow 测试信件状态管理基本流程
func TestLetterStatusManager_BasicFlow(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewLetterRepository()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	statusManager := NewLetterStatusManager(repo, logger)

	ctx := context.Background()
	letterID := "test-letter-1"
	fileName := "letter_to_hooker.xml"
	filePath := "/path/to/letter_to_hooker.xml"
	fileSize := int64(2048)

	// 测试标记为已上传
	t.Run("mark as uploaded", func(t *testing.T) {
		err := statusManager.MarkAsUploaded(ctx, letterID, fileName, filePath, fileSize)
		require.NoError(t, err)

		// 验证状态
		status, err := statusManager.GetStatus(ctx, letterID)
		require.NoError(t, err)
		assert.Equal(t, models.LetterStatusUploaded, status)

		// 验证信件信息
		letter, err := statusManager.GetLetter(ctx, letterID)
		require.NoError(t, err)
		assert.Equal(t, letterID, letter.ID)
		assert.Equal(t, fileName, letter.FileName)
		assert.Equal(t, "xml", letter.FileType)
		assert.Equal(t, filePath, letter.FilePath)
		assert.Equal(t, fileSize, letter.FileSize)
	})

	// 测试标记为处理中
	t.Run("mark as processing", func(t *testing.T) {
		err := statusManager.MarkAsProcessing(ctx, letterID)
		require.NoError(t, err)

		status, err := statusManager.GetStatus(ctx, letterID)
		require.NoError(t, err)
		assert.Equal(t, models.LetterStatusProcessing, status)
	})

	// 测试更新处理阶段
	t.Run("update stage", func(t *testing.T) {
		err := statusManager.UpdateStage(ctx, letterID, models.StageAnnotating)
		require.NoError(t, err)

		letter, err := statusManager.GetLetter(ctx, letterID)
		require.NoError(t, err)
		assert.Equal(t, models.StageAnnotating, letter.CurrentStage)
	})

	// 测试标记为已完成
	t.Run("mark as completed", func(t *testing.T) {
		err := statusManager.MarkAsCompleted(ctx, letterID)
		require.NoError(t, err)

		letter, err := statusManager.GetLetter(ctx, letterID)
		require.NoError(t, err)
		assert.Equal(t, models.LetterStatusCompleted, letter.Status)
		assert.Equal(t, models.StageCompleted, letter.CurrentStage)
		assert.NotNil(t, letter.ProcessedAt)
	})

	// 已完成的信件允许重新标注
	t.Run("reprocess completed letter", func(t *testing.T) {
		err := statusManager.MarkAsProcessing(ctx, letterID)
		require.NoError(t, err)

		status, err := statusManager.GetStatus(ctx, letterID)
		require.NoError(t, err)
		assert.Equal(t, models.LetterStatusProcessing, status)
	})

	// 处理中的信件不允许再次进入处理中
	t.Run("reject double processing", func(t *testing.T) {
		err := statusManager.MarkAsProcessing(ctx, letterID)
		assert.Error(t, err)
	})
}

// TestLetterStatusManager_FailureFlow 测试失败状态处理
func TestLetterStatusManager_FailureFlow(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewLetterRepository()
	logger := logrus.New()
	statusManager := NewLetterStatusManager(repo, logger)

	ctx := context.Background()
	letterID := "test-letter-2"

	// 创建信件
	err := statusManager.MarkAsUploaded(ctx, letterID, "broken.xml", "/path/to/broken.xml", 1024)
	require.NoError(t, err)

	// 标记为处理中
	err = statusManager.MarkAsProcessing(ctx, letterID)
	require.NoError(t, err)

	// 标记为失败
	t.Run("mark as failed", func(t *testing.T) {
		errorMsg := "transcription element not found in document"
		err := statusManager.MarkAsFailed(ctx, letterID, errorMsg)
		require.NoError(t, err)

		// 验证状态和错误信息
		letter, err := statusManager.GetLetter(ctx, letterID)
		require.NoError(t, err)
		assert.Equal(t, models.LetterStatusFailed, letter.Status)
		assert.Equal(t, errorMsg, letter.Error)
		assert.NotNil(t, letter.ProcessedAt)
	})

	// 失败的信件允许重试
	t.Run("retry failed letter", func(t *testing.T) {
		err := statusManager.MarkAsProcessing(ctx, letterID)
		assert.NoError(t, err)
	})
}

// TestLetterStatusManager_StateTransitions 测试状态转换校验
func TestLetterStatusManager_StateTransitions(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewLetterRepository()
	logger := logrus.New()
	statusManager := NewLetterStatusManager(repo, logger)

	t.Run("validate state transitions", func(t *testing.T) {
		// 有效转换
		assert.NoError(t, statusManager.ValidateStateTransition(models.LetterStatusUploaded, models.LetterStatusProcessing))
		assert.NoError(t, statusManager.ValidateStateTransition(models.LetterStatusProcessing, models.LetterStatusCompleted))
		assert.NoError(t, statusManager.ValidateStateTransition(models.LetterStatusProcessing, models.LetterStatusFailed))
		// 已完成或失败的信件允许重新标注
		assert.NoError(t, statusManager.ValidateStateTransition(models.LetterStatusFailed, models.LetterStatusProcessing))
		assert.NoError(t, statusManager.ValidateStateTransition(models.LetterStatusCompleted, models.LetterStatusProcessing))

		// 无效转换
		assert.Error(t, statusManager.ValidateStateTransition(models.LetterStatusCompleted, models.LetterStatusUploaded))
		assert.Error(t, statusManager.ValidateStateTransition(models.LetterStatusFailed, models.LetterStatusCompleted))
	})
}

// TestLetterStatusManager_ListLetters 测试信件列表功能
func TestLetterStatusManager_ListLetters(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewLetterRepository()
	logger := logrus.New()
	statusManager := NewLetterStatusManager(repo, logger)

	ctx := context.Background()

	// 创建多封测试信件
	letters := []struct {
		ID     string
		Name   string
		Status models.LetterStatus
		Tags   string
	}{
		{"list-letter-1", "letter1.xml", models.LetterStatusUploaded, "hooker,kew"},
		{"list-letter-2", "letter2.xml", models.LetterStatusProcessing, "hooker"},
		{"list-letter-3", "letter3.xml", models.LetterStatusCompleted, "darwin"},
		{"list-letter-4", "letter4.xml", models.LetterStatusFailed, "hooker,kew"},
	}

	for _, l := range letters {
		err := statusManager.MarkAsUploaded(ctx, l.ID, l.Name, "/path/to/"+l.Name, 1024)
		require.NoError(t, err)

		if l.Status != models.LetterStatusUploaded {
			err = statusManager.MarkAsProcessing(ctx, l.ID)
			require.NoError(t, err)
		}

		if l.Status == models.LetterStatusCompleted {
			err = statusManager.MarkAsCompleted(ctx, l.ID)
			require.NoError(t, err)
		} else if l.Status == models.LetterStatusFailed {
			err = statusManager.MarkAsFailed(ctx, l.ID, "test error")
			require.NoError(t, err)
		}

		// 更新标签
		dbLetter, err := repo.GetByID(l.ID)
		require.NoError(t, err)
		dbLetter.Tags = l.Tags
		err = repo.Update(dbLetter)
		require.NoError(t, err)
	}

	// 测试列出所有信件
	t.Run("list all letters", func(t *testing.T) {
		letterList, total, err := statusManager.ListLetters(ctx, 0, 10, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(len(letters)), total)
		assert.Len(t, letterList, len(letters))
	})

	// 测试按状态筛选
	t.Run("filter by status", func(t *testing.T) {
		filters := map[string]interface{}{
			"status": string(models.LetterStatusCompleted),
		}
		letterList, total, err := statusManager.ListLetters(ctx, 0, 10, filters)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		if len(letterList) > 0 {
			assert.Equal(t, models.LetterStatusCompleted, letterList[0].Status)
		}
	})

	// 测试按标签筛选
	t.Run("filter by tags", func(t *testing.T) {
		filters := map[string]interface{}{
			"tags": "hooker",
		}
		_, total, err := statusManager.ListLetters(ctx, 0, 10, filters)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
	})
}

// TestLetterStatusManager_DeleteLetter 测试删除信件
func TestLetterStatusManager_DeleteLetter(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewLetterRepository()
	logger := logrus.New()
	statusManager := NewLetterStatusManager(repo, logger)

	ctx := context.Background()
	letterID := "test-delete-letter"

	// 创建测试信件
	err := statusManager.MarkAsUploaded(ctx, letterID, "delete_test.xml", "/path/to/delete_test.xml", 1024)
	require.NoError(t, err)

	// 确认信件存在
	_, err = statusManager.GetLetter(ctx, letterID)
	require.NoError(t, err)

	// 删除信件
	err = statusManager.DeleteLetter(ctx, letterID)
	require.NoError(t, err)

	// 验证信件已被删除
	_, err = statusManager.GetLetter(ctx, letterID)
	assert.ErrorIs(t, err, models.ErrLetterNotFound)
}
