package tracking

import (
	"context"
	"sync"
)

type memoryQueue struct {
	mu      sync.Mutex
	records []map[string]interface{}
}

func newMemoryQueue() *memoryQueue {
	return &memoryQueue{}
}

func (q *memoryQueue) Push(_ context.Context, record map[string]interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.records = append(q.records, record)
	return nil
}

func (q *memoryQueue) Records() []map[string]interface{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]map[string]interface{}, len(q.records))
	copy(out, q.records)
	return out
}
