package repository

import "github.com/hcpdigital/letter-ner-system/internal/models"

// LetterRepository 信件仓储接口
// 负责信件元数据和标注运行记录的存储和检索
type LetterRepository interface {
	// Create 创建信件记录
	Create(letter *models.Letter) error

	// Update 更新信件记录
	Update(letter *models.Letter) error

	// GetByID 根据ID获取信件
	GetByID(id string) (*models.Letter, error)

	// List 列出信件列表，支持分页和筛选
	List(offset, limit int, filters map[string]interface{}) ([]*models.Letter, int64, error)

	// Delete 删除信件
	Delete(id string) error

	// UpdateStatus 更新信件状态
	UpdateStatus(id string, status models.LetterStatus, errorMsg string) error

	// UpdateStage 更新信件处理阶段
	UpdateStage(id string, stage models.ProcessStage) error

	// SaveAnnotationRun 保存标注运行记录
	SaveAnnotationRun(run *models.AnnotationRun) error

	// UpdateAnnotationRun 更新标注运行记录
	UpdateAnnotationRun(run *models.AnnotationRun) error

	// GetAnnotationRun 根据ID获取标注运行记录
	GetAnnotationRun(id string) (*models.AnnotationRun, error)

	// GetAnnotationRuns 获取信件的所有标注运行记录
	GetAnnotationRuns(letterID string) ([]*models.AnnotationRun, error)

	// GetLatestAnnotationRun 获取信件最近一次完成的标注运行
	GetLatestAnnotationRun(letterID string) (*models.AnnotationRun, error)

	// CountAnnotationRuns 统计信件的标注运行数量
	CountAnnotationRuns(letterID string) (int, error)

	// DeleteAnnotationRuns 删除信件的所有标注运行记录
	DeleteAnnotationRuns(letterID string) error
}
