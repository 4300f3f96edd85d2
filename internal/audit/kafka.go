package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	dErrors "biomatch/pkg/domain-errors"
)

// DefaultTopic is where lifecycle events land unless overridden.
const DefaultTopic = "biomatch.audit.events"

// wireEvent is the published shape. IDs are serialized as canonical UUID
// strings so downstream consumers do not need our domain types.
type wireEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	TenantID   string    `json:"tenant_id"`
	SubjectID  string    `json:"subject_id,omitempty"`
	TemplateID string    `json:"template_id,omitempty"`
	Action     string    `json:"action"`
	Modality   string    `json:"modality,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	DeviceID   string    `json:"device_id,omitempty"`
}

// Kafka publishes lifecycle events to a Kafka topic, keyed by tenant so each
// tenant's trail stays ordered within a partition.
type Kafka struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafka dials the brokers and returns a publisher. Close releases the
// underlying client.
func NewKafka(brokers []string, topic string, logger *slog.Logger) (*Kafka, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "connect audit brokers")
	}
	return &Kafka{client: client, topic: topic, logger: logger}, nil
}

func (k *Kafka) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	wire := wireEvent{
		Timestamp: event.Timestamp,
		TenantID:  event.TenantID.String(),
		Action:    event.Action,
		Modality:  event.Modality,
		Reason:    event.Reason,
		DeviceID:  event.DeviceID,
	}
	if !event.SubjectID.IsNil() {
		wire.SubjectID = event.SubjectID.String()
	}
	if !event.TemplateID.IsNil() {
		wire.TemplateID = event.TemplateID.String()
	}

	payload, err := json.Marshal(wire)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "encode audit event")
	}

	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(wire.TenantID),
		Value: payload,
	}
	if err := k.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		k.logger.ErrorContext(ctx, "audit event publish failed",
			slog.String("action", event.Action),
			slog.String("tenant_id", wire.TenantID),
			slog.String("error", err.Error()),
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "publish audit event")
	}
	return nil
}

// Close flushes pending records and shuts the client down.
func (k *Kafka) Close() {
	k.client.Close()
}
