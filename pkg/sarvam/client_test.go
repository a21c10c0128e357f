package sarvam

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/z-wentao/callflow/pkg/models"
)

func newTestClient(url string) *Client {
	return NewClient("test-key", url, 5*time.Second)
}

// TestInitJob 202 受理，返回任务 ID 和输入/输出存储路径
func TestInitJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/job/init" {
			t.Errorf("意外的请求: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("API-Subscription-Key"); got != "test-key" {
			t.Errorf("API-Subscription-Key = %q, want %q", got, "test-key")
		}
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{
			"job_id":              "J1",
			"input_storage_path":  "https://acct.blob.core.windows.net/fs/in?sas",
			"output_storage_path": "https://acct.blob.core.windows.net/fs/out?sas",
		})
	}))
	defer srv.Close()

	info, err := newTestClient(srv.URL).InitJob(context.Background())
	if err != nil {
		t.Fatalf("InitJob: %v", err)
	}
	if info.JobID != "J1" {
		t.Errorf("JobID = %q, want J1", info.JobID)
	}
	if info.InputStoragePath == "" || info.OutputStoragePath == "" {
		t.Errorf("存储路径不应为空: %+v", info)
	}
}

// TestInitJobNon202 200 也不算受理，错误里保留服务端原始响应
func TestInitJobNon202(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"detail":"unexpected"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).InitJob(context.Background())
	var initErr *InitError
	if !errors.As(err, &initErr) {
		t.Fatalf("err = %v, want *InitError", err)
	}
	if initErr.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", initErr.StatusCode)
	}
	if initErr.Body != `{"detail":"unexpected"}` {
		t.Errorf("Body = %q, 服务端响应未保留", initErr.Body)
	}
}

// TestStartJob 请求体结构和问题顺序
func TestStartJob(t *testing.T) {
	var captured startJobRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/job" {
			t.Errorf("意外的请求: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("解析请求体失败: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	params := JobParameters{
		Model:           DefaultModel,
		WithDiarization: true,
		NumSpeakers:     2,
		Questions: []models.Question{
			{ID: "q1", Text: "What is the issue?", Type: "short answer"},
			{ID: "q2", Text: "Was it resolved?", Type: "boolean"},
		},
	}
	if err := newTestClient(srv.URL).StartJob(context.Background(), "J1", params); err != nil {
		t.Fatalf("StartJob: %v", err)
	}

	if captured.JobID != "J1" {
		t.Errorf("job_id = %q, want J1", captured.JobID)
	}
	if captured.JobParameters.Model != "saaras:v2" {
		t.Errorf("model = %q, want saaras:v2", captured.JobParameters.Model)
	}
	if len(captured.JobParameters.Questions) != 2 || captured.JobParameters.Questions[0].ID != "q1" {
		t.Errorf("问题列表未按序透传: %+v", captured.JobParameters.Questions)
	}
}

// TestStartJobNon200
func TestStartJobNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("invalid params"))
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).StartJob(context.Background(), "J1", JobParameters{})
	var startErr *StartError
	if !errors.As(err, &startErr) {
		t.Fatalf("err = %v, want *StartError", err)
	}
	if startErr.Body != "invalid params" {
		t.Errorf("Body = %q, 服务端响应未保留", startErr.Body)
	}
}

// TestGetJobStatus 200 返回状态，非 200 返回 (nil, nil) 供轮询方决策
func TestGetJobStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/job/J1/status" {
			t.Errorf("意外的路径: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{"job_state": "Running"})
	}))
	defer srv.Close()

	status, err := newTestClient(srv.URL).GetJobStatus(context.Background(), "J1")
	if err != nil {
		t.Fatalf("GetJobStatus: %v", err)
	}
	if status == nil || status.JobState != "Running" {
		t.Fatalf("status = %+v, want Running", status)
	}
}

// TestGetJobStatusNon200
func TestGetJobStatusNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	status, err := newTestClient(srv.URL).GetJobStatus(context.Background(), "J1")
	if err != nil {
		t.Fatalf("非 200 不应返回错误, got %v", err)
	}
	if status != nil {
		t.Fatalf("status = %+v, want nil", status)
	}
}

// TestGetJobStatusTransportError 网络层错误原样返回
func TestGetJobStatusTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // 立即关掉，制造连接失败

	status, err := newTestClient(srv.URL).GetJobStatus(context.Background(), "J1")
	if err == nil {
		t.Fatal("连接失败应返回错误")
	}
	if status != nil {
		t.Fatalf("status = %+v, want nil", status)
	}
}
