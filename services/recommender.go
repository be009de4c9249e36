package services

import (
	"context"
	"sync"

	"media-recommender/internal/logger"
	"media-recommender/models"
)

// ContentStore is the repository capability the recommendation and
// ingestion paths depend on. Implemented by database.ContentRepository;
// tests inject fakes.
type ContentStore interface {
	FindByID(ctx context.Context, id string, t models.ContentType) (*models.ContentItem, error)
	FindByTitleSubstring(ctx context.Context, pattern string, t models.ContentType, excludeID string, limit int64) ([]*models.ContentItem, error)
	FindManyByIDs(ctx context.Context, ids []string, t models.ContentType) ([]*models.ContentItem, error)
	StreamAll(ctx context.Context, t models.ContentType, skip, limit int64) ([]*models.ContentItem, error)
	JoinUserLists(ctx context.Context, userID string) (*models.UserProfile, error)
}

// VectorSearcher is the ANN capability. Implemented by
// database.VectorIndex.
type VectorSearcher interface {
	QueryByID(ctx context.Context, id string, topK int) ([]models.VectorMatch, error)
	QueryByVector(ctx context.Context, vector []float32, topK int) ([]models.VectorMatch, error)
	Upsert(ctx context.Context, records []models.VectorRecord) error
}

// Embedder turns texts into vectors, one batched call per invocation.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Recommender is the top-level recommendation entry point. Both public
// operations degrade to empty results instead of surfacing errors.
type Recommender struct {
	store       ContentStore
	profiles    *ProfileResolver
	aggregator  *Aggregator
	defaultTopK int
}

func NewRecommender(store ContentStore, vectors VectorSearcher, defaultTopK int) *Recommender {
	return &Recommender{
		store:       store,
		profiles:    NewProfileResolver(store),
		aggregator:  NewAggregator(store, vectors),
		defaultTopK: defaultTopK,
	}
}

// RecommendForUser builds per-type recommendation buckets for the first
// user id supplied. Only the first id is honored; batch requests are a
// documented no-op beyond it. A missing profile or an empty consumption
// history yields an empty result, not an error.
func (r *Recommender) RecommendForUser(ctx context.Context, userIDs []string, topK int) *models.RecommendationResult {
	result := &models.RecommendationResult{
		Movies:   []models.Candidate{},
		TVSeries: []models.Candidate{},
		Anime:    []models.Candidate{},
		Games:    []models.Candidate{},
		Combined: []models.Candidate{},
	}
	if topK <= 0 {
		topK = r.defaultTopK
	}
	if len(userIDs) == 0 {
		return result
	}

	profile, err := r.profiles.Resolve(ctx, userIDs[0])
	if err != nil {
		logger.Error("Profile resolution failed", "user_id", userIDs[0], "error", err)
		return result
	}
	if profile == nil || profile.Total() == 0 {
		logger.Debug("No consumption history for user", "user_id", userIDs[0])
		return result
	}

	// The four per-type aggregations are independent: shared input is
	// the read-only profile, and each goroutine writes its own bucket.
	var wg sync.WaitGroup
	for _, contentType := range models.AllContentTypes {
		wg.Add(1)
		go func(t models.ContentType) {
			defer wg.Done()
			result.SetBucket(t, r.recommendType(ctx, profile, t, topK))
		}(contentType)
	}
	wg.Wait()

	result.Flatten()
	return result
}

// recommendType runs one per-type aggregation. Any failure contributes
// an empty bucket so the other types still return.
func (r *Recommender) recommendType(ctx context.Context, profile *models.UserProfile, t models.ContentType, topK int) []models.Candidate {
	consumedIDs := profile.IDs(t)
	if len(consumedIDs) == 0 {
		return []models.Candidate{}
	}

	consumedItems, err := r.profiles.Hydrate(ctx, consumedIDs, t)
	if err != nil {
		logger.Error("Consumed-item hydration failed", "type", string(t), "error", err)
		return []models.Candidate{}
	}

	consumed := make(map[string]struct{}, len(consumedIDs))
	for _, id := range consumedIDs {
		consumed[id] = struct{}{}
	}
	for _, item := range consumedItems {
		consumed[item.ID] = struct{}{}
	}

	recs, err := r.aggregator.Recommend(ctx, t, consumedItems, consumed, topK)
	if err != nil {
		logger.Error("Aggregation failed", "type", string(t), "error", err)
		return []models.Candidate{}
	}
	return recs
}

// RecommendByID returns up to topK neighbors of an existing item from
// the vector index, excluding the item itself. Neighbors are bucketed
// by their stored content type and combined in canonical order, the
// same shape RecommendForUser produces. Failures yield an empty result.
func (r *Recommender) RecommendByID(ctx context.Context, itemID string, topK int) *models.RecommendationResult {
	result := &models.RecommendationResult{
		Movies:   []models.Candidate{},
		TVSeries: []models.Candidate{},
		Anime:    []models.Candidate{},
		Games:    []models.Candidate{},
		Combined: []models.Candidate{},
	}
	if topK <= 0 {
		topK = r.defaultTopK
	}

	matches, err := r.aggregator.vectors.QueryByID(ctx, itemID, topK+1)
	if err != nil {
		logger.Error("Vector query failed", "item_id", itemID, "error", err)
		return result
	}

	total := 0
	seen := map[string]struct{}{itemID: {}}
	for _, match := range matches {
		if total >= topK {
			break
		}
		if !match.Type.Valid() {
			logger.Debug("Skipping match with unknown type tag", "id", match.ID, "type", string(match.Type))
			continue
		}
		if _, dup := seen[match.ID]; dup {
			continue
		}
		seen[match.ID] = struct{}{}

		item, err := r.store.FindByID(ctx, match.ID, match.Type)
		if err != nil {
			logger.Debug("Skipping unresolvable match", "id", match.ID, "error", err)
			continue
		}
		result.SetBucket(match.Type, append(result.Bucket(match.Type), models.Candidate{
			ID:     match.ID,
			Type:   match.Type,
			Score:  match.Score,
			Source: models.SourceSimilarity,
			Item:   item,
		}))
		total++
	}

	result.Flatten()
	return result
}
