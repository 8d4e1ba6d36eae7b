package broker

import (
	"context"
	"fmt"
)

// DataLayerQueue is the append-only analytics layer backed by a Kafka topic.
// The tag-management runtime consumes the topic in order.
type DataLayerQueue struct {
	producer *Producer
}

// NewDataLayerQueue creates the queue on top of a producer for the layer topic
func NewDataLayerQueue(producer *Producer) *DataLayerQueue {
	return &DataLayerQueue{producer: producer}
}

// Push appends one record. Records of one event share the event id as key.
func (q *DataLayerQueue) Push(ctx context.Context, record map[string]interface{}) error {
	key := "datalayer"
	if id, ok := record["event_id"]; ok {
		key = fmt.Sprint(id)
	}
	return q.producer.PublishEvent(ctx, key, record)
}
