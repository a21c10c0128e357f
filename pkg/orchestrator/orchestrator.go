package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/z-wentao/callflow/pkg/datalake"
	"github.com/z-wentao/callflow/pkg/models"
	"github.com/z-wentao/callflow/pkg/sarvam"
)

// State 批处理状态机的状态
type State string

const (
	StateInit      State = "init"
	StateUploading State = "uploading"
	StateStarting  State = "starting"
	StatePolling   State = "polling"
	StateFetching  State = "fetching" // 远端已 Completed，正在取结果
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateAborted   State = "aborted"
)

// JobAPI 远端分析任务接口
type JobAPI interface {
	InitJob(ctx context.Context) (*sarvam.JobInfo, error)
	StartJob(ctx context.Context, jobID string, params sarvam.JobParameters) error
	GetJobStatus(ctx context.Context, jobID string) (*sarvam.JobStatus, error)
}

// Storage 存储客户端接口
type Storage interface {
	Bind(loc datalake.Location)
	Upload(ctx context.Context, files []models.AudioFile) []models.UploadOutcome
	List(ctx context.Context) ([]string, error)
	Download(ctx context.Context, name string) ([]byte, error)
}

// PhaseError 带阶段信息的失败
// 调用方据 State 区分「任务没跑起来」「任务跑了但失败」「任务完成但取不到结果」
type PhaseError struct {
	State State
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("[%s] %v", e.State, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// Request 一次批量分析请求，每次运行构造一次传入，不依赖任何共享可变状态
type Request struct {
	Files           []models.AudioFile
	WithDiarization bool
	NumSpeakers     int
	Questions       []models.Question
}

// Options 编排器配置
type Options struct {
	Model         string        // 留空使用默认模型
	PollInterval  time.Duration // 轮询间隔，<= 0 使用 10 秒
	StatusRetries int           // 状态查询连续失败的容忍次数，0 表示首次失败即中止

	// 以下回调均可选，用于外部跟踪进度
	OnState   func(State)
	OnInit    func(*sarvam.JobInfo)
	OnUploads func([]models.UploadOutcome)
}

// Orchestrator 批量分析编排器
// 把 初始化 → 上传 → 启动 → 轮询 → 取结果 串成一次完整运行；
// 同一实例同一时间只跑一个任务
type Orchestrator struct {
	api     JobAPI
	storage Storage
	opts    Options
}

// New 创建编排器
func New(api JobAPI, storage Storage, opts Options) *Orchestrator {
	if opts.Model == "" {
		opts.Model = sarvam.DefaultModel
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Second
	}
	return &Orchestrator{api: api, storage: storage, opts: opts}
}

// Run 执行一次完整的批量分析，返回按文件列表顺序解析出的结果
func (o *Orchestrator) Run(ctx context.Context, req Request) ([]models.AnalysisResult, error) {
	// 1. 初始化任务，拿到 job_id 和输入/输出存储位置
	o.setState(StateInit)
	info, err := o.api.InitJob(ctx)
	if err != nil {
		return nil, o.abort(StateInit, err)
	}
	if o.opts.OnInit != nil {
		o.opts.OnInit(info)
	}
	log.Printf("✓ 任务已初始化: %s", info.JobID)

	// 2. 上传输入文件
	o.setState(StateUploading)
	inputLoc, err := datalake.ParseLocation(info.InputStoragePath)
	if err != nil {
		return nil, o.abort(StateUploading, err)
	}
	o.storage.Bind(inputLoc)

	outcomes := o.storage.Upload(ctx, req.Files)
	if o.opts.OnUploads != nil {
		o.opts.OnUploads(outcomes)
	}

	succeeded := 0
	for _, out := range outcomes {
		if out.OK {
			succeeded++
		}
	}
	log.Printf("上传完成: %d/%d 成功", succeeded, len(req.Files))

	// 上传尽力而为：个别失败不阻断启动，远端任务自己会因缺文件报错；
	// 但一个都没传上去就没有启动的意义了
	if len(req.Files) > 0 && succeeded == 0 {
		return nil, o.abort(StateUploading, errors.New("所有文件上传失败"))
	}

	// 3. 启动任务
	o.setState(StateStarting)
	params := sarvam.JobParameters{
		Model:           o.opts.Model,
		WithDiarization: req.WithDiarization,
		NumSpeakers:     req.NumSpeakers,
		Questions:       filterQuestions(req.Questions),
	}
	if err := o.api.StartJob(ctx, info.JobID, params); err != nil {
		return nil, o.abort(StateStarting, err)
	}
	log.Printf("✓ 任务已启动: %s (model=%s, diarization=%v)", info.JobID, params.Model, params.WithDiarization)

	// 4. 轮询直到终态
	o.setState(StatePolling)
	jobState, err := o.poll(ctx, info.JobID)
	if err != nil {
		return nil, o.abort(StatePolling, err)
	}
	if jobState == sarvam.JobStateFailed {
		o.setState(StateFailed)
		return nil, &PhaseError{State: StateFailed, Err: errors.New("远端任务执行失败")}
	}

	// 5. 远端已完成，取回并解析结果
	o.setState(StateFetching)
	results, err := o.fetchResults(ctx, info.OutputStoragePath)
	if err != nil {
		return nil, o.abort(StateFetching, err)
	}

	o.setState(StateCompleted)
	log.Printf("🎉 任务 %s 完成，共 %d 个结果", info.JobID, len(results))
	return results, nil
}

// setState 记录状态变更
func (o *Orchestrator) setState(s State) {
	if o.opts.OnState != nil {
		o.opts.OnState(s)
	}
}

// abort 终止运行，保留出错时所处的阶段
func (o *Orchestrator) abort(s State, err error) error {
	o.setState(StateAborted)
	return &PhaseError{State: s, Err: err}
}

// poll 以固定间隔轮询任务状态，直到终态、取消或超出失败预算
// 状态检查严格串行，绝不并发；每次等待精确一个轮询间隔
func (o *Orchestrator) poll(ctx context.Context, jobID string) (string, error) {
	failures := 0
	for {
		status, err := o.api.GetJobStatus(ctx, jobID)
		if err != nil || status == nil {
			failures++
			if failures > o.opts.StatusRetries {
				if err != nil {
					return "", fmt.Errorf("查询任务状态失败: %w", err)
				}
				return "", fmt.Errorf("查询任务状态失败（连续 %d 次无有效响应）", failures)
			}
			log.Printf("⚠️ 查询任务状态失败，继续重试 (%d/%d)", failures, o.opts.StatusRetries)
		} else {
			failures = 0
			log.Printf("任务 %s 当前状态: %s", jobID, status.JobState)

			switch status.JobState {
			case sarvam.JobStateCompleted, sarvam.JobStateFailed:
				return status.JobState, nil
			}
			// 其余状态视为仍在运行，继续等
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(o.opts.PollInterval):
		}
	}
}

// fetchResults 绑定输出位置，下载并解析所有 .json 结果文件
// 个别文件解析失败跳过并记录，不拖垮其余结果
func (o *Orchestrator) fetchResults(ctx context.Context, outputPath string) ([]models.AnalysisResult, error) {
	outputLoc, err := datalake.ParseLocation(outputPath)
	if err != nil {
		return nil, err
	}
	o.storage.Bind(outputLoc)

	names, err := o.storage.List(ctx)
	if err != nil {
		return nil, err
	}

	var results []models.AnalysisResult
	for _, name := range names {
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := o.storage.Download(ctx, name)
		if err != nil {
			return nil, err
		}
		var r models.AnalysisResult
		if err := json.Unmarshal(data, &r); err != nil {
			log.Printf("⚠️ 结果文件 %s 解析失败，跳过: %v", name, err)
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

// filterQuestions 只保留有题干的问题（与前端空白问题行的约定一致）
func filterQuestions(questions []models.Question) []models.Question {
	filtered := make([]models.Question, 0, len(questions))
	for _, q := range questions {
		if q.Text != "" {
			filtered = append(filtered, q)
		}
	}
	return filtered
}
