package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"heirloom/internal/platform/kafka"
	id "heirloom/pkg/domain"
	"heirloom/pkg/requestcontext"
)

// Event is the release trigger record. The key is the target person ID so
// every trigger for one person lands on one partition.
type Event struct {
	TargetPersonID id.PersonID `json:"target_person_id"`
	RequestedAt    time.Time   `json:"requested_at"`
	RequestID      string      `json:"request_id,omitempty"`
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Kafka publishes triggers to a topic consumed by Handler.
type Kafka struct {
	producer Producer
	topic    string
}

func NewKafka(producer Producer, topic string) *Kafka {
	return &Kafka{producer: producer, topic: topic}
}

func (k *Kafka) Trigger(ctx context.Context, target id.PersonID) error {
	value, err := json.Marshal(Event{
		TargetPersonID: target,
		RequestedAt:    requestcontext.Now(ctx).UTC(),
		RequestID:      requestcontext.RequestID(ctx),
	})
	if err != nil {
		return fmt.Errorf("encode release trigger: %w", err)
	}
	return k.producer.Publish(ctx, k.topic, []byte(target.String()), value)
}

// Handler runs the release for each consumed trigger. Returning an error
// leaves the record uncommitted so it is redelivered; that is reserved for
// infrastructure failures. Undecodable records are logged and dropped.
func Handler(runner Runner, logger *slog.Logger) kafka.Handler {
	return kafka.HandlerFunc(func(ctx context.Context, msg *kafka.Message) error {
		var event Event
		if err := json.Unmarshal(msg.Value, &event); err != nil || event.TargetPersonID.IsNil() {
			logger.ErrorContext(ctx, "dropping malformed release trigger",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
			)
			return nil
		}
		if event.RequestID != "" {
			ctx = requestcontext.WithRequestID(ctx, event.RequestID)
		}
		if retry, err := run(ctx, runner, event.TargetPersonID, logger); retry {
			return err
		}
		return nil
	})
}
