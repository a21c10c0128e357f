package queue

import "github.com/z-wentao/callflow/pkg/models"

// Queue 任务队列接口
// 抽象出接口方便在内存队列和 RabbitMQ 之间切换
type Queue interface {
	// Enqueue 将任务加入队列
	Enqueue(job *models.BatchJob) error

	// Dequeue 从队列取出任务（阻塞）
	Dequeue() (*models.BatchJob, error)

	// Ack 确认消息（任务处理成功）
	Ack(job *models.BatchJob) error

	// Nack 拒绝消息（任务处理失败）
	// requeue: 是否重新入队
	Nack(job *models.BatchJob, requeue bool) error

	// Close 关闭队列
	Close() error
}
