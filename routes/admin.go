package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"media-recommender/internal/queue"
	"media-recommender/middleware"
	"media-recommender/models"
	"media-recommender/utils"
)

func SetupAdminRoutes(router *gin.Engine, asynqClient *asynq.Client, authMiddleware *middleware.AuthMiddleware) {
	admin := router.Group("/admin")
	admin.Use(authMiddleware.RequireAuth())

	// POST /admin/ingest enqueues a full re-ingest of every catalog.
	admin.POST("/ingest", func(c *gin.Context) {
		task, err := queue.NewIngestAllTask()
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to build ingestion task", nil)
			return
		}

		info, err := asynqClient.Enqueue(task)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to enqueue ingestion task", gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{"task_id": info.ID, "queue": info.Queue})
	})

	// POST /admin/ingest/:type enqueues one content type.
	admin.POST("/ingest/:type", func(c *gin.Context) {
		contentType := models.ContentType(c.Param("type"))
		if !contentType.Valid() {
			utils.RespondWithBadRequest(c, "Unknown content type", gin.H{"type": c.Param("type")})
			return
		}

		task, err := queue.NewIngestContentTask(contentType)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to build ingestion task", nil)
			return
		}

		info, err := asynqClient.Enqueue(task)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to enqueue ingestion task", gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{"task_id": info.ID, "queue": info.Queue, "type": string(contentType)})
	})
}
