package services

import (
	"media-recommender/models"
)

const (
	// Every pair starts here; attribute overlap can only add.
	similarityBase = 0.5
	// Capped below 1.0 so an exact-duplicate sentinel stays distinguishable.
	similarityCap = 0.99
)

type attributeWeight struct {
	weight float64
	get    func(*models.ContentItem) []string
}

// Per-type attribute weight tables. Weights sum to 0.5 per type so the
// maximum reachable total (base + contributions) is 1.0 before capping.
var similarityWeights = map[models.ContentType][]attributeWeight{
	models.ContentTypeMovie: {
		{0.25, func(c *models.ContentItem) []string { return c.Genres }},
		{0.15, func(c *models.ContentItem) []string { return c.Cast }},
		{0.10, func(c *models.ContentItem) []string { return c.Studios }},
	},
	models.ContentTypeTV: {
		{0.25, func(c *models.ContentItem) []string { return c.Genres }},
		{0.15, func(c *models.ContentItem) []string { return c.Cast }},
		{0.10, func(c *models.ContentItem) []string { return c.Networks }},
	},
	models.ContentTypeAnime: {
		{0.25, func(c *models.ContentItem) []string { return c.Genres }},
		{0.15, func(c *models.ContentItem) []string { return c.Studios }},
		{0.10, func(c *models.ContentItem) []string { return c.Cast }},
	},
	models.ContentTypeGame: {
		{0.25, func(c *models.ContentItem) []string { return c.Genres }},
		{0.15, func(c *models.ContentItem) []string { return c.Platforms }},
		{0.10, func(c *models.ContentItem) []string {
			return append(append([]string{}, c.Publishers...), c.Developers...)
		}},
	},
}

// SimilarityScore computes a bounded metadata-similarity score between
// two items of the same type: base 0.5 plus a weighted Jaccard overlap
// per categorical attribute, capped at 0.99. Deterministic for a given
// input pair and symmetric under argument order.
func SimilarityScore(a, b *models.ContentItem) float64 {
	score := similarityBase
	for _, aw := range similarityWeights[a.Type] {
		score += jaccard(aw.get(a), aw.get(b)) * aw.weight
	}
	if score > similarityCap {
		score = similarityCap
	}
	return score
}

// jaccard returns |A∩B| / |A∪B| treating the slices as unordered sets,
// and 0 when either side is empty.
func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	setA := make(map[string]struct{}, len(a))
	for _, v := range a {
		setA[v] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, v := range b {
		setB[v] = struct{}{}
	}

	intersection := 0
	for v := range setA {
		if _, ok := setB[v]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
