package position

import (
	"context"
	"cycle-nav-service/internal/domain"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaConfig selects the topic device fixes are published to.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// FixMessage is the JSON payload of one device fix.
type FixMessage struct {
	DeviceID  string    `json:"device_id"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Speed     *float64  `json:"speed,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
	Timestamp time.Time `json:"ts"`
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaSource streams the fixes of one device from a Kafka topic.
type KafkaSource struct {
	deviceID  string
	newReader func() messageReader
	log       *zap.Logger
}

// NewKafkaSource subscribes each caller with its own consumer group derived
// from cfg.GroupID and deviceID, starting at the newest offset.
func NewKafkaSource(cfg KafkaConfig, deviceID string, log *zap.Logger) (*KafkaSource, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka source: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka source: topic is empty")
	}
	if deviceID == "" {
		return nil, errors.New("kafka source: device id is empty")
	}

	newReader := func() messageReader {
		return kafkago.NewReader(kafkago.ReaderConfig{
			Brokers:     cfg.Brokers,
			Topic:       cfg.Topic,
			GroupID:     fmt.Sprintf("%s-%s", cfg.GroupID, deviceID),
			StartOffset: kafkago.LastOffset,
			MinBytes:    1,
			MaxBytes:    1 << 20,
			MaxWait:     500 * time.Millisecond,
		})
	}

	return &KafkaSource{
		deviceID:  deviceID,
		newReader: newReader,
		log:       log.With(zap.String("device_id", deviceID), zap.String("topic", cfg.Topic)),
	}, nil
}

func (k *KafkaSource) Subscribe(ctx context.Context) (<-chan domain.Position, error) {
	reader := k.newReader()
	out := make(chan domain.Position)

	go func() {
		defer close(out)
		defer func() {
			if err := reader.Close(); err != nil {
				k.log.Warn("close kafka reader", zap.Error(err))
			}
		}()

		for {
			msg, err := reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() == nil {
					k.log.Error("kafka fetch failed, position stream lost", zap.Error(err))
				}
				return
			}

			pos, ok := k.handleMessage(msg)

			if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				k.log.Warn("kafka commit failed", zap.Error(err), zap.Int64("offset", msg.Offset))
			}
			if !ok {
				continue
			}

			select {
			case <-ctx.Done():
				return
			case out <- pos:
			}
		}
	}()

	k.log.Info("kafka position subscription started")
	return out, nil
}

// handleMessage decodes a fix. Malformed messages and fixes of other
// devices are skipped.
func (k *KafkaSource) handleMessage(msg kafkago.Message) (domain.Position, bool) {
	if len(msg.Key) > 0 && string(msg.Key) != k.deviceID {
		return domain.Position{}, false
	}

	var fix FixMessage
	if err := json.Unmarshal(msg.Value, &fix); err != nil {
		k.log.Error("failed to parse position message",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return domain.Position{}, false
	}
	if fix.DeviceID != k.deviceID {
		return domain.Position{}, false
	}

	ts := fix.Timestamp
	if ts.IsZero() {
		ts = msg.Time
	}

	return domain.Position{
		Lat:       fix.Lat,
		Lon:       fix.Lon,
		Speed:     fix.Speed,
		Heading:   fix.Heading,
		Timestamp: ts,
	}, true
}
