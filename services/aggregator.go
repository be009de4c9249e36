package services

import (
	"context"
	"sync"

	"media-recommender/internal/logger"
	"media-recommender/models"
)

// At most this many consumed items seed the similarity fallback.
const maxSimilaritySeeds = 3

// Aggregator blends sequel detection and vector similarity into one
// ranked, deduplicated, quota-bounded list per content type.
type Aggregator struct {
	store   ContentStore
	vectors VectorSearcher
	sequels *SequelDetector
}

func NewAggregator(store ContentStore, vectors VectorSearcher) *Aggregator {
	return &Aggregator{
		store:   store,
		vectors: vectors,
		sequels: NewSequelDetector(store),
	}
}

// Recommend fills one type bucket. Sequels take strict priority: when
// they already meet the quota, similarity search is skipped entirely.
// Otherwise similarity matches fill the remainder, filtered against the
// consumed set and the sequel picks.
func (a *Aggregator) Recommend(ctx context.Context, t models.ContentType, consumedItems []*models.ContentItem, consumed map[string]struct{}, perTypeCount int) ([]models.Candidate, error) {
	if !t.Valid() {
		return nil, models.ErrUnknownContentType
	}

	sequelRecs := a.sequels.Detect(ctx, consumedItems, consumed)
	if len(sequelRecs) >= perTypeCount {
		return sequelRecs[:perTypeCount], nil
	}

	remaining := perTypeCount - len(sequelRecs)
	similar := a.similarityRecs(ctx, t, consumedItems, consumed, sequelRecs, remaining)

	return append(sequelRecs, similar...), nil
}

// similarityRecs queries the vector index around up to three seed items
// (the first in profile order), concurrently across seeds. A failed
// seed query contributes an explicitly empty slice.
func (a *Aggregator) similarityRecs(ctx context.Context, t models.ContentType, consumedItems []*models.ContentItem, consumed map[string]struct{}, sequelRecs []models.Candidate, remaining int) []models.Candidate {
	if remaining <= 0 || len(consumedItems) == 0 {
		return nil
	}

	seeds := consumedItems
	if len(seeds) > maxSimilaritySeeds {
		seeds = seeds[:maxSimilaritySeeds]
	}

	// Over-fetch per seed for filtering headroom.
	perSeed := ((remaining + len(seeds) - 1) / len(seeds)) * 2

	matchesBySeed := make([][]models.VectorMatch, len(seeds))
	var wg sync.WaitGroup
	for i, seed := range seeds {
		wg.Add(1)
		go func(slot int, seedID string) {
			defer wg.Done()
			matches, err := a.vectors.QueryByID(ctx, seedID, perSeed)
			if err != nil {
				logger.Warn("Similarity seed query failed", "seed", seedID, "type", string(t), "error", err)
				matchesBySeed[slot] = nil
				return
			}
			matchesBySeed[slot] = matches
		}(i, seed.ID)
	}
	wg.Wait()

	excluded := make(map[string]struct{}, len(consumed)+len(sequelRecs))
	for id := range consumed {
		excluded[id] = struct{}{}
	}
	for _, rec := range sequelRecs {
		excluded[rec.ID] = struct{}{}
	}

	recs := make([]models.Candidate, 0, remaining)
	for _, matches := range matchesBySeed {
		for _, match := range matches {
			if len(recs) >= remaining {
				return recs
			}
			if match.Type != t {
				continue
			}
			if _, skip := excluded[match.ID]; skip {
				continue
			}
			excluded[match.ID] = struct{}{}

			item, err := a.store.FindByID(ctx, match.ID, match.Type)
			if err != nil {
				logger.Debug("Skipping unresolvable similarity match", "id", match.ID, "error", err)
				continue
			}
			recs = append(recs, models.Candidate{
				ID:     match.ID,
				Type:   t,
				Score:  match.Score,
				Source: models.SourceSimilarity,
				Item:   item,
			})
		}
	}
	return recs
}
