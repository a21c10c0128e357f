package models

import "time"

type BatchStatus string

const (
	StatusPending    BatchStatus = "pending"
	StatusProcessing BatchStatus = "processing"
	StatusCompleted  BatchStatus = "completed"
	StatusFailed     BatchStatus = "failed"
)

// AudioFile 待分析的音频文件（文件名 + 原始字节）
// 音频内容只在本进程内存中流转，不落本地磁盘
type AudioFile struct {
	Name string `json:"name"`
	Data []byte `json:"-"`
}

// UploadOutcome 单个文件的上传结果
// 上传是尽力而为的：单个文件失败不影响其他文件，也不阻断任务启动
type UploadOutcome struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Question 针对通话内容的提问
// Type 取值：short answer / long answer / boolean / enum / number
type Question struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Answer 远端对单个问题的回答
type Answer struct {
	Question  string `json:"question"`
	Response  string `json:"response"`
	Reasoning string `json:"reasoning"`
}

// AnalysisResult 单个结果文件解析出的分析结果
type AnalysisResult struct {
	Transcript         string   `json:"transcript"`
	DiarizedTranscript string   `json:"diarized_transcript,omitempty"`
	Answers            []Answer `json:"answers"`
}

// BatchJob 一次批量通话分析任务
type BatchJob struct {
	JobID           string           `json:"job_id"`
	Files           []AudioFile      `json:"files"`
	WithDiarization bool             `json:"with_diarization"`
	NumSpeakers     int              `json:"num_speakers"`
	Questions       []Question       `json:"questions"`
	Status          BatchStatus      `json:"status"`
	Phase           string           `json:"phase"`
	RemoteJobID     string           `json:"remote_job_id"`
	Uploads         []UploadOutcome  `json:"uploads"`
	Results         []AnalysisResult `json:"results"`
	Error           string           `json:"error"`
	CreatedAt       time.Time        `json:"created_at"`
	CompletedAt     time.Time        `json:"completed_at"`

	// RabbitMQ 相关（不序列化到 JSON）
	DeliveryTag      uint64 `json:"-"` // RabbitMQ delivery tag
	RabbitMQDelivery any    `json:"-"` // RabbitMQ delivery 对象（用于 Ack/Nack）
}
