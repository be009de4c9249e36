package routes

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"media-recommender/services"
	"media-recommender/utils"
)

func SetupRecommendationRoutes(router *gin.Engine, recommender *services.Recommender) {
	recs := router.Group("/recommendations")

	// GET /recommendations?user_id=<id>[,<id>...]&count=N
	// Only the first user id is honored; extra ids are accepted for
	// interface compatibility and ignored.
	recs.GET("", func(c *gin.Context) {
		rawIDs := c.Query("user_id")
		if rawIDs == "" {
			utils.RespondWithBadRequest(c, "user_id query parameter is required", nil)
			return
		}

		userIDs := []string{}
		for _, id := range strings.Split(rawIDs, ",") {
			if id = strings.TrimSpace(id); id != "" {
				userIDs = append(userIDs, id)
			}
		}
		if len(userIDs) == 0 {
			utils.RespondWithBadRequest(c, "user_id query parameter is required", nil)
			return
		}

		result := recommender.RecommendForUser(c.Request.Context(), userIDs, parseCount(c))
		c.JSON(http.StatusOK, gin.H{
			"user_id":         userIDs[0],
			"recommendations": result,
			"total":           result.Total(),
		})
	})

	// GET /recommendations/similar/:id?count=N
	recs.GET("/similar/:id", func(c *gin.Context) {
		itemID := c.Param("id")
		if itemID == "" {
			utils.RespondWithBadRequest(c, "item id is required", nil)
			return
		}

		result := recommender.RecommendByID(c.Request.Context(), itemID, parseCount(c))
		c.JSON(http.StatusOK, gin.H{
			"item_id":         itemID,
			"recommendations": result,
			"total":           result.Total(),
		})
	})
}

// parseCount reads the count query parameter; 0 lets the recommender
// apply its configured default.
func parseCount(c *gin.Context) int {
	raw := c.Query("count")
	if raw == "" {
		return 0
	}
	count, err := strconv.Atoi(raw)
	if err != nil || count < 0 {
		return 0
	}
	return count
}
