package queue

import (
	"testing"

	"github.com/z-wentao/callflow/pkg/models"
)

// TestMemoryQueueFIFO 先进先出
func TestMemoryQueueFIFO(t *testing.T) {
	mq := NewMemoryQueue(10)

	for _, id := range []string{"j1", "j2", "j3"} {
		if err := mq.Enqueue(&models.BatchJob{JobID: id}); err != nil {
			t.Fatalf("Enqueue(%s): %v", id, err)
		}
	}

	for _, want := range []string{"j1", "j2", "j3"} {
		job, err := mq.Dequeue()
		if err != nil {
			t.Fatalf("Dequeue: %v", err)
		}
		if job.JobID != want {
			t.Errorf("JobID = %s, want %s", job.JobID, want)
		}
	}
}

// TestMemoryQueueFull 缓冲满了拒绝入队
func TestMemoryQueueFull(t *testing.T) {
	mq := NewMemoryQueue(1)

	if err := mq.Enqueue(&models.BatchJob{JobID: "j1"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := mq.Enqueue(&models.BatchJob{JobID: "j2"}); err == nil {
		t.Fatal("队列已满时 Enqueue 应报错")
	}
}

// TestMemoryQueueClose 关闭后 Dequeue 报错
func TestMemoryQueueClose(t *testing.T) {
	mq := NewMemoryQueue(1)
	if err := mq.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := mq.Dequeue(); err == nil {
		t.Fatal("关闭后 Dequeue 应报错")
	}
}

// TestMemoryQueueAckNack 内存队列的 Ack/Nack 是空操作
func TestMemoryQueueAckNack(t *testing.T) {
	mq := NewMemoryQueue(1)
	job := &models.BatchJob{JobID: "j1"}

	if err := mq.Ack(job); err != nil {
		t.Errorf("Ack: %v", err)
	}
	if err := mq.Nack(job, true); err != nil {
		t.Errorf("Nack: %v", err)
	}
}
