package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/z-wentao/callflow/pkg/config"
	"github.com/z-wentao/callflow/pkg/models"
	"github.com/z-wentao/callflow/pkg/queue"
	"github.com/z-wentao/callflow/pkg/sarvam"
	"github.com/z-wentao/callflow/pkg/storage"
	"github.com/z-wentao/callflow/pkg/worker"
)

// App 应用上下文
type App struct {
	config *config.Config
	queue  queue.Queue
	store  *storage.JobStore
	api    *sarvam.Client
	worker *worker.Worker
}

func main() {
	// 1. 加载配置
	cfg, err := config.LoadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("❌ 加载配置失败: %v", err)
	}
	log.Println("✓ 配置加载成功")

	// 2. 初始化组件
	app := &App{
		config: cfg,
		store:  storage.NewJobStore(),
	}

	// 3. 初始化队列（根据配置选择类型）
	switch cfg.Queue.Type {
	case "memory":
		app.queue = queue.NewMemoryQueue(cfg.Queue.BufferSize)
		log.Println("✓ 使用内存队列")
	case "rabbitmq":
		rq, err := queue.NewRabbitMQQueue(cfg.Queue.RabbitMQ.URL, cfg.Queue.RabbitMQ.QueueName, cfg.Queue.RabbitMQ.Prefetch)
		if err != nil {
			log.Fatalf("❌ 初始化 RabbitMQ 失败: %v", err)
		}
		app.queue = rq
		log.Println("✓ 使用 RabbitMQ 队列")
	default:
		log.Fatalf("❌ 不支持的队列类型: %s", cfg.Queue.Type)
	}

	// 4. 初始化 Sarvam API 客户端
	app.api = sarvam.NewClient(
		cfg.Sarvam.APIKey,
		cfg.Sarvam.BaseURL,
		time.Duration(cfg.Sarvam.HTTPTimeout)*time.Second,
	)
	log.Println("✓ Sarvam API 客户端初始化成功")

	// 5. 启动 Worker
	app.worker = worker.NewWorker(app.queue, app.store, app.api, &cfg.Sarvam)
	app.worker.Start()
	log.Println("✓ Worker 已启动")

	// 6. 启动 HTTP 服务器
	router := app.setupRouter()
	port := fmt.Sprintf(":%d", cfg.Server.Port)

	log.Printf("🚀 CallFlow 服务器启动在 http://localhost:%d", cfg.Server.Port)
	log.Printf("📝 配置信息:")
	log.Printf("   - 分析模型: %s", modelOrDefault(cfg.Sarvam.Model))
	log.Printf("   - 轮询间隔: %d 秒", cfg.Sarvam.PollInterval)
	log.Printf("   - 并发上传数: %d", cfg.Sarvam.UploadConcurrency)
	log.Printf("   - 队列类型: %s", cfg.Queue.Type)

	// 7. 优雅关闭
	go func() {
		if err := router.Run(port); err != nil {
			log.Fatalf("❌ 服务器启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 正在关闭服务器...")
	app.worker.Stop()
	app.queue.Close()
	log.Println("✓ 服务器已关闭")
}

func modelOrDefault(model string) string {
	if model == "" {
		return sarvam.DefaultModel
	}
	return model
}

// setupRouter 设置路由
func (app *App) setupRouter() *gin.Engine {
	r := gin.Default()

	// API 路由
	api := r.Group("/api")
	{
		api.GET("/ping", app.handlePing)
		api.POST("/batches", app.handleSubmitBatch)    // 提交批量分析任务
		api.GET("/batches/:job_id", app.handleGetBatch) // 获取任务状态和结果
		api.GET("/batches", app.handleListBatches)      // 列出所有任务
	}

	return r
}

// isValidAudioFormat 验证音频文件格式
// 通话分析 API 接受的格式：wav, mp3
func isValidAudioFormat(ext string) bool {
	validFormats := map[string]bool{
		".wav": true,
		".mp3": true,
	}

	// 转为小写比较
	ext = strings.ToLower(ext)
	return validFormats[ext]
}

// handlePing 健康检查
func (app *App) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
		"version": "0.1.0",
	})
}

// handleSubmitBatch 提交批量分析任务
// multipart 表单：audio（可多个）、questions（JSON 数组）、
// with_diarization、num_speakers
func (app *App) handleSubmitBatch(c *gin.Context) {
	// 1. 获取文件列表
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(400, gin.H{"error": "请求不是合法的 multipart 表单"})
		return
	}

	fileHeaders := form.File["audio"]
	if len(fileHeaders) == 0 {
		c.JSON(400, gin.H{"error": "请上传至少一个音频文件"})
		return
	}

	// 2. 解析问题列表
	var questions []models.Question
	if q := c.PostForm("questions"); q != "" {
		if err := json.Unmarshal([]byte(q), &questions); err != nil {
			c.JSON(400, gin.H{"error": "questions 字段不是合法的 JSON: " + err.Error()})
			return
		}
	}
	if len(questions) == 0 {
		c.JSON(400, gin.H{"error": "请至少提供一个问题"})
		return
	}

	// 3. 解析分析参数
	withDiarization := c.DefaultPostForm("with_diarization", "true") == "true"
	numSpeakers, err := strconv.Atoi(c.DefaultPostForm("num_speakers", "2"))
	if err != nil || numSpeakers < 1 {
		c.JSON(400, gin.H{"error": "num_speakers 必须是正整数"})
		return
	}

	// 4. 读入所有音频文件
	files := make([]models.AudioFile, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		ext := filepath.Ext(fh.Filename)
		if !isValidAudioFormat(ext) {
			c.JSON(400, gin.H{
				"error": fmt.Sprintf("不支持的文件格式 %s，支持: .wav, .mp3", ext),
			})
			return
		}

		if fh.Size > app.config.Server.MaxUploadSize {
			c.JSON(400, gin.H{
				"error": fmt.Sprintf("文件 %s 太大，最大 %.0f MB", fh.Filename, float64(app.config.Server.MaxUploadSize)/1024/1024),
			})
			return
		}

		f, err := fh.Open()
		if err != nil {
			c.JSON(500, gin.H{"error": "读取文件失败"})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(500, gin.H{"error": "读取文件失败"})
			return
		}

		files = append(files, models.AudioFile{Name: fh.Filename, Data: data})
	}

	// 5. 创建任务
	job := &models.BatchJob{
		JobID:           uuid.New().String(),
		Files:           files,
		WithDiarization: withDiarization,
		NumSpeakers:     numSpeakers,
		Questions:       questions,
		Status:          models.StatusPending,
		CreatedAt:       time.Now(),
	}

	// 6. 保存到存储
	if err := app.store.Save(job); err != nil {
		c.JSON(500, gin.H{"error": "保存任务失败"})
		return
	}

	// 7. 加入队列，由 Worker 异步处理
	if err := app.queue.Enqueue(job); err != nil {
		c.JSON(500, gin.H{"error": "任务加入队列失败"})
		return
	}

	log.Printf("✓ 任务已加入队列: %s (%d 个文件)", job.JobID, len(files))

	// 8. 返回结果
	c.JSON(200, gin.H{
		"job_id":  job.JobID,
		"files":   len(files),
		"status":  job.Status,
		"message": "提交成功，正在处理中...",
	})
}

// handleGetBatch 获取任务状态和结果
func (app *App) handleGetBatch(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := app.store.Get(jobID)
	if err != nil {
		c.JSON(404, gin.H{"error": "任务不存在"})
		return
	}

	c.JSON(200, job)
}

// handleListBatches 列出所有任务
func (app *App) handleListBatches(c *gin.Context) {
	jobs, err := app.store.List()
	if err != nil {
		c.JSON(500, gin.H{"error": "读取任务列表失败"})
		return
	}

	c.JSON(200, gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	})
}
