package worker

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/z-wentao/callflow/pkg/config"
	"github.com/z-wentao/callflow/pkg/datalake"
	"github.com/z-wentao/callflow/pkg/models"
	"github.com/z-wentao/callflow/pkg/orchestrator"
	"github.com/z-wentao/callflow/pkg/queue"
	"github.com/z-wentao/callflow/pkg/sarvam"
	"github.com/z-wentao/callflow/pkg/storage"
)

// Worker 任务处理器
// 串行消费队列里的批量分析任务，一次只跑一个
type Worker struct {
	queue  queue.Queue
	store  *storage.JobStore
	api    *sarvam.Client
	cfg    *config.SarvamConfig
	ctx    context.Context
	cancel context.CancelFunc
}

// NewWorker 创建 Worker
func NewWorker(
	q queue.Queue,
	store *storage.JobStore,
	api *sarvam.Client,
	cfg *config.SarvamConfig,
) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		queue:  q,
		store:  store,
		api:    api,
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start 启动 Worker（在独立的 Goroutine 中运行）
func (w *Worker) Start() {
	go w.run()
}

// Stop 停止 Worker，并取消正在进行的轮询
func (w *Worker) Stop() {
	log.Println("正在停止 Worker...")
	w.cancel()
}

// run Worker 主循环
func (w *Worker) run() {
	log.Println("Worker 已启动，等待任务...")

	for {
		// 检查是否需要停止
		select {
		case <-w.ctx.Done():
			log.Println("Worker 已停止")
			return
		default:
		}

		// 从队列获取任务（阻塞）
		job, err := w.queue.Dequeue()
		if err != nil {
			select {
			case <-w.ctx.Done():
				log.Println("Worker 已停止")
				return
			default:
			}
			log.Printf("从队列获取任务失败: %v", err)
			time.Sleep(1 * time.Second)
			continue
		}

		// 处理任务
		w.processJob(job)
	}
}

// processJob 处理单个任务
func (w *Worker) processJob(msg *models.BatchJob) {
	log.Printf("%s", "\n"+strings.Repeat("=", 80))
	log.Printf("📝 开始处理任务: %s", msg.JobID)

	// 队列消息只携带元数据，音频字节以存储里的任务为准
	job, err := w.store.Get(msg.JobID)
	if err != nil {
		log.Printf("❌ 任务 %s 不在存储中，丢弃: %v", msg.JobID, err)
		w.queue.Nack(msg, false)
		return
	}
	log.Printf("📂 文件数: %d, 问题数: %d", len(job.Files), len(job.Questions))

	// 更新状态为处理中
	w.store.Update(job.JobID, func(j *models.BatchJob) {
		j.Status = models.StatusProcessing
	})

	// 每个任务用独立的存储客户端和编排器，互不串扰
	storageClient := datalake.NewClient(datalake.Location{}, w.cfg.UploadConcurrency)
	orch := orchestrator.New(w.api, storageClient, orchestrator.Options{
		Model:         w.cfg.Model,
		PollInterval:  time.Duration(w.cfg.PollInterval) * time.Second,
		StatusRetries: w.cfg.StatusRetries,
		OnState: func(s orchestrator.State) {
			w.store.Update(job.JobID, func(j *models.BatchJob) {
				j.Phase = string(s)
			})
		},
		OnInit: func(info *sarvam.JobInfo) {
			w.store.Update(job.JobID, func(j *models.BatchJob) {
				j.RemoteJobID = info.JobID
			})
		},
		OnUploads: func(outcomes []models.UploadOutcome) {
			w.store.Update(job.JobID, func(j *models.BatchJob) {
				j.Uploads = outcomes
			})
		},
	})

	// 任务整体超时，兼作取消信号：Worker 停止时轮询随之中止
	ctx, cancel := context.WithTimeout(w.ctx, time.Duration(w.cfg.JobTimeoutMinutes)*time.Minute)
	defer cancel()

	startTime := time.Now()
	results, err := orch.Run(ctx, orchestrator.Request{
		Files:           job.Files,
		WithDiarization: job.WithDiarization,
		NumSpeakers:     job.NumSpeakers,
		Questions:       job.Questions,
	})

	if err != nil {
		log.Printf("❌ 任务 %s 失败: %v", job.JobID, err)
		w.store.Update(job.JobID, func(j *models.BatchJob) {
			j.Status = models.StatusFailed
			j.Error = err.Error()
			j.CompletedAt = time.Now()
		})
		// 失败原因已经落到任务上，消息不再重投
		w.queue.Nack(msg, false)
		return
	}

	duration := time.Since(startTime)
	log.Printf("🎉 任务 %s 完成！", job.JobID)
	log.Printf("⏱️  总耗时: %.2f 秒 (%.2f 分钟)", duration.Seconds(), duration.Minutes())
	log.Printf("📄 结果文件数: %d", len(results))
	log.Printf("%s", strings.Repeat("=", 80)+"\n")

	w.store.Update(job.JobID, func(j *models.BatchJob) {
		j.Status = models.StatusCompleted
		j.Results = results
		j.CompletedAt = time.Now()
	})
	w.queue.Ack(msg)
}
