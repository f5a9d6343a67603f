package worker

import (
	"context"

	"github.com/example/bulksms/internal/kafka/consumer"
)

// NewRecordFromConsumer converts a consumer record, binding its commit.
func NewRecordFromConsumer(rec *consumer.Record) *Record {
	if rec == nil {
		return nil
	}
	return &Record{
		Topic:     rec.Topic,
		Partition: rec.Partition,
		Offset:    rec.Offset,
		Key:       rec.Key,
		Value:     rec.Value,
		Timestamp: rec.Timestamp,
		Headers:   rec.Headers,
		commit:    rec.Commit,
	}
}

// KafkaHandler returns a consumer.Handler delegating each record to engine.
func KafkaHandler(engine *Engine) consumer.Handler {
	return func(ctx context.Context, rec *consumer.Record) error {
		if engine == nil || rec == nil {
			return nil
		}
		return engine.HandleRecord(ctx, NewRecordFromConsumer(rec))
	}
}
