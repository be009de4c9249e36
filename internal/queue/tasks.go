package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"media-recommender/internal/logger"
	"media-recommender/models"
	"media-recommender/services"
)

const (
	TaskIngestContent = "ingest:content"
	TaskIngestAll     = "ingest:all"
)

type IngestPayload struct {
	ContentType string `json:"content_type"`
}

// Task creators
func NewIngestContentTask(t models.ContentType) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestPayload{ContentType: string(t)})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestContent,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Minute),
		asynq.Queue("low"),
	), nil
}

func NewIngestAllTask() (*asynq.Task, error) {
	return asynq.NewTask(
		TaskIngestAll,
		nil,
		asynq.MaxRetry(1),
		asynq.Timeout(2*time.Hour),
		asynq.Queue("low"),
	), nil
}

// Task handlers
type TaskProcessor struct {
	pipeline *services.IngestionPipeline
}

func NewTaskProcessor(pipeline *services.IngestionPipeline) *TaskProcessor {
	return &TaskProcessor{pipeline: pipeline}
}

func (p *TaskProcessor) HandleIngestContent(ctx context.Context, t *asynq.Task) error {
	var payload IngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	contentType := models.ContentType(payload.ContentType)
	if !contentType.Valid() {
		// Programmer error, retrying will not fix it.
		return fmt.Errorf("%v: %w", models.ErrUnknownContentType, asynq.SkipRetry)
	}

	logger.Info("Ingestion task started", "type", payload.ContentType)
	return p.pipeline.IngestType(ctx, contentType)
}

func (p *TaskProcessor) HandleIngestAll(ctx context.Context, t *asynq.Task) error {
	logger.Info("Full ingestion task started")
	p.pipeline.Run(ctx)
	return nil
}
