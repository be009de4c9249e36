package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"media-recommender/internal/ai"
	"media-recommender/internal/config"
	"media-recommender/internal/logger"
	"media-recommender/models"
)

// IngestionPipeline streams catalog records, embeds them in batches and
// upserts the vectors into the index. It is tuned for forward progress:
// transient failures back off and retry, persistently failing batches
// are eventually skipped, and a broken content type never aborts the
// rest of the run.
type IngestionPipeline struct {
	store    ContentStore
	vectors  VectorSearcher
	embedder Embedder

	chunkSize       int64
	retryWait       time.Duration
	maxAttempts     int
	batchRetryDelay time.Duration
	batchSkipAfter  int
	batchPause      time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

func NewIngestionPipeline(store ContentStore, vectors VectorSearcher, embedder Embedder, cfg *config.Config) *IngestionPipeline {
	return &IngestionPipeline{
		store:           store,
		vectors:         vectors,
		embedder:        embedder,
		chunkSize:       int64(cfg.IngestChunkSize),
		retryWait:       cfg.IngestRetryWait,
		maxAttempts:     cfg.IngestMaxAttempts,
		batchRetryDelay: cfg.IngestBatchRetryDelay,
		batchSkipAfter:  cfg.IngestBatchSkipAfter,
		batchPause:      cfg.IngestBatchPause,
		sleep:           sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run ingests every content type sequentially. One type is fully
// drained before the next starts, bounding concurrent load on the
// embedding service and the index. A failed type is logged and the run
// continues.
func (p *IngestionPipeline) Run(ctx context.Context) {
	for _, t := range models.AllContentTypes {
		if err := p.IngestType(ctx, t); err != nil {
			logger.Error("Ingestion failed for content type", "type", string(t), "error", err)
		}
	}
}

// IngestType drains one catalog collection through the
// embed-then-upsert loop. Batches are retried in place with a growing
// delay; after batchSkipAfter consecutive failures the batch is marked
// processed without ingesting and the cursor advances, so the run
// always terminates.
func (p *IngestionPipeline) IngestType(ctx context.Context, t models.ContentType) error {
	if !t.Valid() {
		return models.ErrUnknownContentType
	}

	logger.Info("Starting ingestion", "type", string(t))

	var skip int64
	processed := 0
	skipped := 0
	consecutiveFailures := 0

	for {
		chunk, err := p.store.StreamAll(ctx, t, skip, p.chunkSize)
		if err != nil {
			return fmt.Errorf("streaming %s records at offset %d: %w", t, skip, err)
		}
		if len(chunk) == 0 {
			break
		}

		if err := p.processBatch(ctx, t, chunk); err != nil {
			consecutiveFailures++
			if consecutiveFailures >= p.batchSkipAfter {
				logger.Error("Skipping batch after repeated failures",
					"type", string(t), "offset", skip, "failures", consecutiveFailures, "error", err)
				skipped += len(chunk)
				skip += int64(len(chunk))
				consecutiveFailures = 0
				continue
			}

			logger.Warn("Batch failed, will retry",
				"type", string(t), "offset", skip, "failures", consecutiveFailures, "error", err)
			if serr := p.sleep(ctx, p.batchRetryDelay*time.Duration(consecutiveFailures)); serr != nil {
				return serr
			}
			continue
		}

		consecutiveFailures = 0
		processed += len(chunk)
		skip += int64(len(chunk))

		// Fixed pause between successful batches to smooth request rate.
		if serr := p.sleep(ctx, p.batchPause); serr != nil {
			return serr
		}
	}

	logger.Info("Ingestion completed", "type", string(t), "processed", processed, "skipped", skipped)
	return nil
}

// processBatch embeds one chunk with a single batched call and upserts
// the resulting vectors with a single bulk call.
func (p *IngestionPipeline) processBatch(ctx context.Context, t models.ContentType, chunk []*models.ContentItem) error {
	texts := make([]string, len(chunk))
	for i, item := range chunk {
		texts[i] = BuildEmbeddingText(item)
	}

	var vectors [][]float32
	err := p.withRetry(ctx, "embed", func() error {
		var embErr error
		vectors, embErr = p.embedder.EmbedBatch(ctx, texts)
		return embErr
	})
	if err != nil {
		return err
	}
	if len(vectors) != len(chunk) {
		return fmt.Errorf("embedding batch returned %d vectors for %d records", len(vectors), len(chunk))
	}

	records := make([]models.VectorRecord, len(chunk))
	for i, item := range chunk {
		records[i] = models.VectorRecord{ID: item.ID, Type: t, Vector: vectors[i]}
	}

	return p.withRetry(ctx, "upsert", func() error {
		return p.vectors.Upsert(ctx, records)
	})
}

// withRetry applies the exponential back-off envelope to one external
// call. Rate-limit and timeout signals wait the same schedule as other
// errors; only the attempt cap ends the loop.
func (p *IngestionPipeline) withRetry(ctx context.Context, op string, call func() error) error {
	var err error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		err = call()
		if err == nil {
			return nil
		}

		if attempt == p.maxAttempts {
			break
		}

		wait := backoffWait(p.retryWait, attempt)
		if ai.IsTransient(err) {
			logger.Warn("Transient failure, backing off", "op", op, "attempt", attempt, "wait", wait.String(), "error", err)
		} else {
			logger.Warn("Call failed, backing off", "op", op, "attempt", attempt, "wait", wait.String(), "error", err)
		}
		if serr := p.sleep(ctx, wait); serr != nil {
			return serr
		}
	}
	return fmt.Errorf("%s exhausted %d attempts: %w", op, p.maxAttempts, err)
}

// backoffWait returns initial * 1.5^(attempt-1).
func backoffWait(initial time.Duration, attempt int) time.Duration {
	return time.Duration(float64(initial) * math.Pow(1.5, float64(attempt-1)))
}

// BuildEmbeddingText renders the type-specific embedding input for one
// record. Unknown types degrade to "title: description".
func BuildEmbeddingText(item *models.ContentItem) string {
	var b strings.Builder

	switch item.Type {
	case models.ContentTypeMovie:
		fmt.Fprintf(&b, "Movie: %s.", item.Title)
		writeAttr(&b, "Genres", item.Genres)
		writeAttr(&b, "Cast", item.Cast)
		writeAttr(&b, "Studios", item.Studios)
	case models.ContentTypeTV:
		fmt.Fprintf(&b, "TV series: %s.", item.Title)
		writeAttr(&b, "Genres", item.Genres)
		writeAttr(&b, "Cast", item.Cast)
		writeAttr(&b, "Networks", item.Networks)
	case models.ContentTypeAnime:
		fmt.Fprintf(&b, "Anime: %s.", item.Title)
		writeAttr(&b, "Genres", item.Genres)
		writeAttr(&b, "Studios", item.Studios)
	case models.ContentTypeGame:
		fmt.Fprintf(&b, "Game: %s.", item.Title)
		writeAttr(&b, "Genres", item.Genres)
		writeAttr(&b, "Platforms", item.Platforms)
		writeAttr(&b, "Publishers", item.Publishers)
		writeAttr(&b, "Developers", item.Developers)
	default:
		return fmt.Sprintf("%s: %s", item.Title, item.Description)
	}

	if item.Description != "" {
		fmt.Fprintf(&b, " %s", item.Description)
	}
	return b.String()
}

func writeAttr(b *strings.Builder, label string, values []string) {
	if len(values) == 0 {
		return
	}
	fmt.Fprintf(b, " %s: %s.", label, strings.Join(values, ", "))
}
