package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/zlog"

	"github.com/yokitheyo/imageeditor/internal/config"
	"github.com/yokitheyo/imageeditor/internal/dto"
	"github.com/yokitheyo/imageeditor/internal/retry"
)

type MessageHandler func(ctx context.Context, task *dto.TransformTask) error

var errInvalidTask = errors.New("invalid transform task")

type Consumer struct {
	client  *wbfkafka.Consumer
	handler MessageHandler
	topic   string
}

func NewConsumer(cfg *config.KafkaConfig, handler MessageHandler) (*Consumer, error) {
	if handler == nil {
		return nil, fmt.Errorf("kafka consumer: nil handler")
	}
	client := wbfkafka.NewConsumer(cfg.Brokers, cfg.Topic, cfg.GroupID)

	zlog.Logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Str("group_id", cfg.GroupID).
		Msg("Kafka consumer initialized (WB)")

	return &Consumer{
		client:  client,
		handler: handler,
		topic:   cfg.Topic,
	}, nil
}

func (c *Consumer) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			zlog.Logger.Info().Msg("Kafka consumer stopped")
			return nil
		default:
			msg, err := c.client.FetchWithRetry(ctx, retry.MessagingStrategy)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				zlog.Logger.Error().Err(err).Msg("Failed to fetch Kafka message")
				time.Sleep(time.Second)
				continue
			}

			task, err := decodeTask(msg.Value)
			if err != nil {
				// a poison message would otherwise be redelivered forever
				zlog.Logger.Error().Err(err).Bytes("msg", msg.Value).Msg("Dropping undecodable message")
				if err := c.client.Commit(ctx, msg); err != nil {
					zlog.Logger.Error().Err(err).Msg("Failed to commit message")
				}
				continue
			}

			zlog.Logger.Info().
				Str("image_id", task.ImageID).
				Int64("version", task.Version).
				Int("steps", len(task.Transformations)).
				Msg("Received new Kafka task")

			if err := c.handler(ctx, task); err != nil {
				zlog.Logger.Error().
					Err(err).
					Str("image_id", task.ImageID).
					Msg("Task processing failed")
				continue
			}

			if err := c.client.Commit(ctx, msg); err != nil {
				zlog.Logger.Error().
					Err(err).
					Str("image_id", task.ImageID).
					Msg("Failed to commit message")
				continue
			}

			zlog.Logger.Info().
				Str("image_id", task.ImageID).
				Int64("version", task.Version).
				Msg("Task processed and committed successfully")
		}
	}
}

func (c *Consumer) Close() error {
	if err := c.client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close Kafka consumer")
		return err
	}
	zlog.Logger.Info().Msg("Kafka consumer closed successfully")
	return nil
}

func decodeTask(data []byte) (*dto.TransformTask, error) {
	var task dto.TransformTask
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}
	if task.ImageID == "" {
		return nil, fmt.Errorf("%w: empty image id", errInvalidTask)
	}
	if len(task.Transformations) == 0 {
		return nil, fmt.Errorf("%w: no transformations", errInvalidTask)
	}
	return &task, nil
}
