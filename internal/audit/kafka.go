package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"zonecore/internal/domain"
)

// Sink receives one committed transaction record.
type Sink interface {
	Publish(ctx context.Context, rec domain.Transaction) error
	Close()
}

// record is the wire shape of one audit event. The raw request/response
// payloads stay in the store; the stream carries the correlation fields
// consumers key on.
type record struct {
	Seq         int64     `json:"seq"`
	ServerTRID  string    `json:"svTRID"`
	ClientTRID  string    `json:"clTRID,omitempty"`
	RegistrarID string    `json:"registrar"`
	SessionID   string    `json:"session,omitempty"`
	Command     string    `json:"command"`
	Object      string    `json:"object,omitempty"`
	TargetID    string    `json:"target,omitempty"`
	ResultCode  int       `json:"code"`
	Success     bool      `json:"success"`
	Timestamp   time.Time `json:"ts"`
	LatencyMS   float64   `json:"latency_ms"`
}

// KafkaSink publishes records to a single topic, keyed by registrar so one
// registrar's stream stays ordered within a partition.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &KafkaSink{client: client, topic: topic}, nil
}

func (s *KafkaSink) Publish(ctx context.Context, rec domain.Transaction) error {
	payload, err := json.Marshal(record{
		Seq:         rec.Seq,
		ServerTRID:  rec.ServerTRID,
		ClientTRID:  rec.ClientTRID,
		RegistrarID: string(rec.RegistrarID),
		SessionID:   sessionID(rec),
		Command:     rec.Command,
		Object:      rec.Object,
		TargetID:    rec.TargetID,
		ResultCode:  rec.ResultCode,
		Success:     rec.Success,
		Timestamp:   rec.Timestamp,
		LatencyMS:   float64(rec.Latency) / float64(time.Millisecond),
	})
	if err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}
	res := s.client.ProduceSync(ctx, &kgo.Record{
		Topic: s.topic,
		Key:   []byte(rec.RegistrarID),
		Value: payload,
	})
	return res.FirstErr()
}

func (s *KafkaSink) Close() { s.client.Close() }

func sessionID(rec domain.Transaction) string {
	if rec.SessionID == uuid.Nil {
		return ""
	}
	return rec.SessionID.String()
}
