package repository

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hcpdigital/letter-ner-system/internal/database"
	"github.com/hcpdigital/letter-ner-system/internal/models"
	"github.com/hcpdigital/letter-ner-system/internal/ner"
)

func setupTestDB(t *testing.T) (*gorm.DB, func()) {
	// 使用唯一的内存数据库标识符
	dbName := fmt.Sprintf("file:memdb_%d?mode=memory", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	require.NoError(t, err, "Failed to open in-memory database")

	// 运行迁移以创建所需的表
	err = db.AutoMigrate(&models.Letter{}, &models.AnnotationRun{})
	require.NoError(t, err, "Failed to run migrations")

	// 保存原始全局DB引用
	originalDB := database.DB

	// 替换全局DB为测试DB
	database.DB = db

	cleanup := func() {
		database.DB = originalDB
	}

	return db, cleanup
}

func newTestLetter(id string) *models.Letter {
	return &models.Letter{
		ID:       id,
		FileName: "letter.xml",
		FileType: "xml",
		FilePath: "/path/to/letter.xml",
		FileSize: 2048,
		Title:    "William Christy to William Hooker",
		Status:   models.LetterStatusUploaded,
		Tags:     "hooker,correspondence",
	}
}

func TestLetterRepository_Create(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewLetterRepository()

	letter := newTestLetter("test-letter-1")
	err := repo.Create(letter)
	assert.NoError(t, err, "Letter creation should succeed")

	// 验证信件已创建
	saved, err := repo.GetByID(letter.ID)
	assert.NoError(t, err, "Should be able to retrieve created letter")
	assert.Equal(t, letter.ID, saved.ID)
	assert.Equal(t, letter.FileName, saved.FileName)
	assert.Equal(t, letter.Status, saved.Status)
	assert.False(t, saved.UploadedAt.IsZero(), "UploadedAt should be set by hook")

	// 空ID创建应该失败
	err = repo.Create(&models.Letter{})
	assert.Error(t, err)
}

func TestLetterRepository_GetByIDNotFound(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewLetterRepository()

	_, err := repo.GetByID("non-existent")
	assert.ErrorIs(t, err, models.ErrLetterNotFound)
}

func TestLetterRepository_UpdateStatus(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewLetterRepository()

	letter := newTestLetter("test-letter-2")
	require.NoError(t, repo.Create(letter))

	// 更新为处理中
	err := repo.UpdateStatus(letter.ID, models.LetterStatusProcessing, "")
	assert.NoError(t, err)

	saved, err := repo.GetByID(letter.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LetterStatusProcessing, saved.Status)
	assert.Nil(t, saved.ProcessedAt)

	// 更新为失败，带错误消息
	err = repo.UpdateStatus(letter.ID, models.LetterStatusFailed, "transcription element not found")
	assert.NoError(t, err)

	saved, err = repo.GetByID(letter.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LetterStatusFailed, saved.Status)
	assert.Equal(t, "transcription element not found", saved.Error)
	assert.NotNil(t, saved.ProcessedAt, "ProcessedAt should be set on failure")
}

func TestLetterRepository_UpdateStage(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewLetterRepository()

	letter := newTestLetter("test-letter-3")
	require.NoError(t, repo.Create(letter))

	err := repo.UpdateStage(letter.ID, models.StageAnnotating)
	assert.NoError(t, err)

	saved, err := repo.GetByID(letter.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageAnnotating, saved.CurrentStage)
}

func TestLetterRepository_List(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewLetterRepository()

	// 创建多封信件
	for i := 1; i <= 5; i++ {
		letter := newTestLetter(fmt.Sprintf("list-letter-%d", i))
		if i > 3 {
			letter.Status = models.LetterStatusCompleted
		}
		require.NoError(t, repo.Create(letter))
	}

	// 无过滤条件
	letters, total, err := repo.List(0, 10, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, letters, 5)

	// 状态过滤
	letters, total, err = repo.List(0, 10, map[string]interface{}{
		"status": models.LetterStatusCompleted,
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(2), total)

	// 分页
	letters, total, err = repo.List(0, 2, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, letters, 2)
}

func TestLetterRepository_AnnotationRuns(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewLetterRepository()

	letter := newTestLetter("test-letter-4")
	require.NoError(t, repo.Create(letter))

	// 序列化实体序列
	ents := []ner.EntitySpan{
		{Start: 0, End: 15, Label: ner.LabelPerson, Text: "William Christy"},
		{Start: 36, End: 44, Label: ner.LabelGpe, Text: "Cheshire"},
	}
	entsJSON, err := json.Marshal(ents)
	require.NoError(t, err)

	run := &models.AnnotationRun{
		ID:          "run-1",
		LetterID:    letter.ID,
		Model:       ner.ModelEnCoreWebSm,
		Status:      "completed",
		Text:        "William Christy wrote a letter from Cheshire.",
		Ents:        datatypes.JSON(entsJSON),
		EntityCount: 2,
		TextLength:  45,
	}

	err = repo.SaveAnnotationRun(run)
	assert.NoError(t, err, "Annotation run creation should succeed")

	// 读取并验证实体序列完整保留
	saved, err := repo.GetAnnotationRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.LetterID, saved.LetterID)
	assert.Equal(t, 2, saved.EntityCount)

	var savedEnts []ner.EntitySpan
	err = json.Unmarshal(saved.Ents, &savedEnts)
	require.NoError(t, err)
	require.Len(t, savedEnts, 2)
	assert.Equal(t, ner.LabelPerson, savedEnts[0].Label)
	assert.Equal(t, "Cheshire", savedEnts[1].Text)

	// 最近一次完成的标注运行
	latest, err := repo.GetLatestAnnotationRun(letter.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, latest.ID)

	// 统计
	count, err := repo.CountAnnotationRuns(letter.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, count)

	// 删除信件应级联删除标注运行
	err = repo.Delete(letter.ID)
	assert.NoError(t, err)

	_, err = repo.GetAnnotationRun(run.ID)
	assert.ErrorIs(t, err, models.ErrAnnotationRunNotFound)
}

func TestLetterRepository_GetLatestAnnotationRunNotFound(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewLetterRepository()

	letter := newTestLetter("test-letter-5")
	require.NoError(t, repo.Create(letter))

	_, err := repo.GetLatestAnnotationRun(letter.ID)
	assert.ErrorIs(t, err, models.ErrAnnotationRunNotFound)
}
