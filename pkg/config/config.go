package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Config 应用配置
type Config struct {
	Sarvam SarvamConfig `yaml:"sarvam"`
	Queue  QueueConfig  `yaml:"queue"`
	Server ServerConfig `yaml:"server"`
}

// SarvamConfig Sarvam 通话分析 API 配置
type SarvamConfig struct {
	APIKey            string `yaml:"api_key"`
	BaseURL           string `yaml:"base_url"`             // 留空使用官方地址
	Model             string `yaml:"model"`                // 分析模型
	PollInterval      int    `yaml:"poll_interval_seconds"` // 轮询任务状态的间隔
	HTTPTimeout       int    `yaml:"http_timeout_seconds"`  // 单次 HTTP 请求超时
	StatusRetries     int    `yaml:"status_retries"`        // 状态查询连续失败的容忍次数，0 表示首次失败即中止
	UploadConcurrency int    `yaml:"upload_concurrency"`    // 并发上传文件数
	JobTimeoutMinutes int    `yaml:"job_timeout_minutes"`   // 单个批量任务的整体超时
}

// QueueConfig 队列配置
type QueueConfig struct {
	Type       string         `yaml:"type"`
	BufferSize int            `yaml:"buffer_size"`
	RabbitMQ   RabbitMQConfig `yaml:"rabbitmq"`
}

// RabbitMQConfig RabbitMQ 配置
type RabbitMQConfig struct {
	URL       string `yaml:"url"`
	QueueName string `yaml:"queue_name"`
	Prefetch  int    `yaml:"prefetch"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port          int   `yaml:"port"`
	MaxUploadSize int64 `yaml:"max_upload_size"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	// 读取配置文件
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %v", err)
	}

	// 解析 YAML
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %v", err)
	}

	// 验证配置
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %v", err)
	}

	return &config, nil
}

// Validate 验证配置并填充默认值
func (c *Config) Validate() error {
	if c.Sarvam.APIKey == "" || c.Sarvam.APIKey == "your-sarvam-api-key-here" {
		return fmt.Errorf("请在配置文件中设置有效的 Sarvam API Key")
	}

	if c.Sarvam.PollInterval <= 0 {
		c.Sarvam.PollInterval = 10 // 默认 10 秒轮询一次
	}

	if c.Sarvam.HTTPTimeout <= 0 {
		c.Sarvam.HTTPTimeout = 30
	}

	if c.Sarvam.StatusRetries < 0 {
		c.Sarvam.StatusRetries = 0
	}

	if c.Sarvam.UploadConcurrency <= 0 {
		c.Sarvam.UploadConcurrency = 3
	}

	if c.Sarvam.JobTimeoutMinutes <= 0 {
		c.Sarvam.JobTimeoutMinutes = 60
	}

	if c.Queue.Type == "" {
		c.Queue.Type = "memory"
	}

	if c.Queue.BufferSize <= 0 {
		c.Queue.BufferSize = 100
	}

	if c.Queue.RabbitMQ.Prefetch <= 0 {
		c.Queue.RabbitMQ.Prefetch = 3
	}

	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}

	if c.Server.MaxUploadSize <= 0 {
		c.Server.MaxUploadSize = 50 * 1024 * 1024 // 默认单文件最大 50 MB
	}

	return nil
}
