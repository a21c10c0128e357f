package storage

import "github.com/z-wentao/callflow/pkg/models"

// Store 任务存储接口
// 只做进程内的运行时状态，音频与分析产物一律存放在 API 指定的远端存储
type Store interface {
	// Save 保存任务
	Save(job *models.BatchJob) error

	// Get 获取任务
	Get(jobID string) (*models.BatchJob, error)

	// Update 更新任务（使用回调函数模式）
	Update(jobID string, updateFn func(*models.BatchJob)) error

	// List 列出所有任务
	List() ([]*models.BatchJob, error)

	// Delete 删除任务
	Delete(jobID string) error

	// Close 关闭存储
	Close() error
}
