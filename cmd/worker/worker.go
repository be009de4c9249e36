package main

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/hibiken/asynq"

	"media-recommender/internal/ai"
	"media-recommender/internal/config"
	"media-recommender/internal/database"
	"media-recommender/internal/logger"
	"media-recommender/internal/queue"
	"media-recommender/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	// Initialize embedding client
	embedder, err := ai.NewEmbeddingClient(cfg.GeminiAPIKey, cfg.EmbeddingsModel, cfg.GeminiTier, cfg.VectorDimensions)
	if err != nil {
		log.Fatal("Failed to initialize embedding client:", err)
	}
	defer embedder.Close()

	repo := database.NewContentRepository(mongoClient, cfg.DBName)
	vectorIndex := database.NewVectorIndex(mongoClient, cfg.DBName, cfg.VectorCollection, cfg.VectorIndexName)
	pipeline := services.NewIngestionPipeline(repo, vectorIndex, embedder, cfg)

	// Redis options for Asynq
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	// Nightly full re-ingest keeps the vector index in sync with the
	// catalogs without an operator in the loop.
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.TagsUnique()
	if cfg.IngestCron != "" {
		_, err := scheduler.Cron(cfg.IngestCron).Tag("nightly-ingest").Do(func() {
			task, err := queue.NewIngestAllTask()
			if err != nil {
				logger.Error("Failed to build scheduled ingestion task", "error", err)
				return
			}
			if _, err := asynqClient.Enqueue(task); err != nil {
				logger.Error("Failed to enqueue scheduled ingestion task", "error", err)
			}
		})
		if err != nil {
			log.Fatal("Failed to schedule ingestion:", err)
		}
		scheduler.StartAsync()
		defer scheduler.Stop()
	}

	// Create Asynq server. Ingestion runs are heavy and serialized, so
	// concurrency stays low.
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	// Create mux and register handlers
	processor := queue.NewTaskProcessor(pipeline)
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIngestContent, processor.HandleIngestContent)
	mux.HandleFunc(queue.TaskIngestAll, processor.HandleIngestAll)

	logger.Info("Starting ingestion worker", "redis", redisOpt.Addr, "schedule", cfg.IngestCron)

	// Start the server
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
