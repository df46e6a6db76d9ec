package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/zlog"

	"github.com/yokitheyo/imageeditor/internal/config"
	"github.com/yokitheyo/imageeditor/internal/domain"
	"github.com/yokitheyo/imageeditor/internal/dto"
	"github.com/yokitheyo/imageeditor/internal/retry"
)

type Producer struct {
	client *wbfkafka.Producer
	topic  string
}

func NewProducer(cfg *config.KafkaConfig) *Producer {
	client := wbfkafka.NewProducer(cfg.Brokers, cfg.Topic)
	zlog.Logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Msg("Kafka producer initialized (wbf)")
	return &Producer{
		client: client,
		topic:  cfg.Topic,
	}
}

// Send publishes task keyed by image id, so batches for one image stay on one partition.
func (p *Producer) Send(ctx context.Context, task dto.TransformTask) error {
	data, err := encodeTask(task)
	if err != nil {
		return err
	}
	if err := p.client.SendWithRetry(ctx, retry.MessagingStrategy, []byte(task.ImageID), data); err != nil {
		zlog.Logger.Error().
			Err(err).
			Str("image_id", task.ImageID).
			Int64("version", task.Version).
			Msg("Failed to send Kafka message with retry")
		return fmt.Errorf("send transform task: %w", err)
	}
	zlog.Logger.Info().
		Str("image_id", task.ImageID).
		Int64("version", task.Version).
		Int("steps", len(task.Transformations)).
		Msg("Transform task sent to Kafka")
	return nil
}

func (p *Producer) PublishTransformTask(ctx context.Context, imageID string, version int64, steps []domain.Descriptor) error {
	return p.Send(ctx, dto.TransformTask{
		ImageID:         imageID,
		Version:         version,
		Transformations: steps,
	})
}

func (p *Producer) Close() error {
	if err := p.client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close Kafka producer")
		return err
	}
	zlog.Logger.Info().Msg("Kafka producer closed successfully")
	return nil
}

func encodeTask(task dto.TransformTask) ([]byte, error) {
	data, err := json.Marshal(task)
	if err != nil {
		zlog.Logger.Error().
			Err(err).
			Str("image_id", task.ImageID).
			Msg("Failed to marshal task")
		return nil, fmt.Errorf("marshal transform task: %w", err)
	}
	return data, nil
}
