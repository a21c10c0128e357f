package sarvam

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/z-wentao/callflow/pkg/models"
)

const (
	// DefaultBaseURL Sarvam 通话分析 API 基础地址
	DefaultBaseURL = "https://api.sarvam.ai/call-analytics"

	// DefaultModel 默认分析模型
	DefaultModel = "saaras:v2"
)

// 任务终态：到达后不再发生状态变化，其余状态值按不透明字符串处理
const (
	JobStateCompleted = "Completed"
	JobStateFailed    = "Failed"
)

// Client Sarvam 通话分析 API 客户端
// 所有请求统一携带 API-Subscription-Key 头
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient 创建 API 客户端
// baseURL 留空使用官方地址；timeout <= 0 使用 30 秒
func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// JobInfo 初始化任务的响应
type JobInfo struct {
	JobID             string `json:"job_id"`
	InputStoragePath  string `json:"input_storage_path"`
	OutputStoragePath string `json:"output_storage_path"`
}

// JobParameters 任务参数
// NumSpeakers 只在 WithDiarization 开启时有意义，但请求体中始终携带
type JobParameters struct {
	Model           string            `json:"model"`
	WithDiarization bool              `json:"with_diarization"`
	NumSpeakers     int               `json:"num_speakers"`
	Questions       []models.Question `json:"questions"`
}

// startJobRequest 启动任务的请求体
type startJobRequest struct {
	JobID         string        `json:"job_id"`
	JobParameters JobParameters `json:"job_parameters"`
}

// JobStatus 任务状态响应
type JobStatus struct {
	JobState string `json:"job_state"`
}

// InitError 初始化任务失败（非 202 响应），Body 保留服务端原始响应
type InitError struct {
	StatusCode int
	Body       string
}

func (e *InitError) Error() string {
	return fmt.Sprintf("初始化任务失败 (状态码 %d): %s", e.StatusCode, e.Body)
}

// StartError 启动任务失败（非 200 响应），Body 保留服务端原始响应
type StartError struct {
	StatusCode int
	Body       string
}

func (e *StartError) Error() string {
	return fmt.Sprintf("启动任务失败 (状态码 %d): %s", e.StatusCode, e.Body)
}

// InitJob 初始化批量分析任务
// 服务端以 202 表示受理，其余状态码一律视为硬失败，不重试
func (c *Client) InitJob(ctx context.Context) (*JobInfo, error) {
	url := c.baseURL + "/job/init"

	req, err := http.NewRequestWithContext(ctx, "POST", url, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("API-Subscription-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode != http.StatusAccepted {
		return nil, &InitError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var info JobInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	return &info, nil
}

// StartJob 以给定参数启动已初始化的任务，成功以 200 为准
func (c *Client) StartJob(ctx context.Context, jobID string, params JobParameters) error {
	url := c.baseURL + "/job"

	jsonData, err := json.Marshal(startJobRequest{
		JobID:         jobID,
		JobParameters: params,
	})
	if err != nil {
		return fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("API-Subscription-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &StartError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// GetJobStatus 查询任务状态
// 非 200 响应返回 (nil, nil)，由轮询方按自己的重试预算决定去留；
// 网络层错误原样返回
func (c *Client) GetJobStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	url := fmt.Sprintf("%s/job/%s/status", c.baseURL, jobID)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("API-Subscription-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var status JobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	return &status, nil
}
