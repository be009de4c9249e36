package services

import (
	"context"
	"errors"
	"testing"

	"media-recommender/models"
)

func TestRecommendForUserNoProfile(t *testing.T) {
	store := newFakeStore()
	store.profile = nil

	rec := NewRecommender(store, newFakeVectors(), 5)
	result := rec.RecommendForUser(context.Background(), []string{"u1"}, 5)

	if result == nil {
		t.Fatal("expected empty result, got nil")
	}
	if result.Total() != 0 || len(result.Combined) != 0 {
		t.Fatalf("expected empty result for missing profile, got %d candidates", result.Total())
	}
}

func TestRecommendForUserEmptyHistory(t *testing.T) {
	store := newFakeStore()
	store.profile = &models.UserProfile{
		UserID:  "u1",
		Watched: map[models.ContentType][]string{},
	}

	rec := NewRecommender(store, newFakeVectors(), 5)
	result := rec.RecommendForUser(context.Background(), []string{"u1"}, 5)
	if result.Total() != 0 {
		t.Fatalf("expected empty result for empty history, got %d candidates", result.Total())
	}
}

func TestRecommendForUserProfileLookupFailure(t *testing.T) {
	store := newFakeStore()
	store.joinErr = errors.New("profile store down")

	rec := NewRecommender(store, newFakeVectors(), 5)
	result := rec.RecommendForUser(context.Background(), []string{"u1"}, 5)
	if result.Total() != 0 {
		t.Fatalf("expected empty result when profile lookup fails, got %d", result.Total())
	}
}

// A user who has only watched "Rocky 2" gets "Rocky 3" as the top movie
// recommendation, sourced from sequel detection, before any similarity
// match.
func TestRecommendForUserSequelScenario(t *testing.T) {
	store := newFakeStore()
	rocky2 := movie("rocky2", []string{"Drama", "Sport"}, []string{"Stallone"}, nil)
	rocky2.Title = "Rocky 2"
	rocky3 := movie("rocky3", []string{"Drama", "Sport"}, []string{"Stallone"}, nil)
	rocky3.Title = "Rocky 3"
	unrelated := movie("heat", []string{"Crime"}, nil, nil)
	unrelated.Title = "Heat"
	store.add(rocky2, rocky3, unrelated)
	store.profile = &models.UserProfile{
		UserID:  "u1",
		Watched: map[models.ContentType][]string{models.ContentTypeMovie: {"rocky2"}},
	}

	vectors := newFakeVectors()
	vectors.byID["rocky2"] = []models.VectorMatch{
		{ID: "heat", Score: 0.7, Type: models.ContentTypeMovie},
	}

	rec := NewRecommender(store, vectors, 5)
	result := rec.RecommendForUser(context.Background(), []string{"u1"}, 5)

	if len(result.Movies) == 0 {
		t.Fatal("expected movie recommendations")
	}
	if result.Movies[0].ID != "rocky3" || result.Movies[0].Source != models.SourceSequel {
		t.Fatalf("expected rocky3 as top sequel candidate, got %+v", result.Movies[0])
	}

	// Other type buckets stay empty without failing the request.
	if len(result.TVSeries)+len(result.Anime)+len(result.Games) != 0 {
		t.Fatalf("unexpected candidates outside the movie bucket")
	}

	// Combined preserves bucket order and content.
	if len(result.Combined) != len(result.Movies) {
		t.Fatalf("combined length %d, movies %d", len(result.Combined), len(result.Movies))
	}
}

func TestRecommendForUserHonorsFirstIDOnly(t *testing.T) {
	store := newFakeStore()
	store.profile = nil

	rec := NewRecommender(store, newFakeVectors(), 5)
	result := rec.RecommendForUser(context.Background(), []string{"u1", "u2", "u3"}, 5)
	if result.Total() != 0 {
		t.Fatalf("expected empty result, got %d", result.Total())
	}
}

func TestRecommendForUserBucketInvariants(t *testing.T) {
	store := newFakeStore()
	source := movie("saga1", []string{"Action"}, nil, nil)
	source.Title = "Saga 1"
	store.add(source)
	for _, id := range []string{"saga2", "saga3", "saga4", "saga5"} {
		entry := movie(id, []string{"Action"}, nil, nil)
		entry.Title = "Saga " + id[len(id)-1:]
		store.add(entry)
	}
	store.profile = &models.UserProfile{
		UserID:  "u1",
		Watched: map[models.ContentType][]string{models.ContentTypeMovie: {"saga1"}},
	}

	rec := NewRecommender(store, newFakeVectors(), 5)
	topK := 2
	result := rec.RecommendForUser(context.Background(), []string{"u1"}, topK)

	if len(result.Movies) > topK {
		t.Fatalf("bucket exceeds topK: %d > %d", len(result.Movies), topK)
	}
	seen := make(map[string]struct{})
	for _, rec := range result.Movies {
		if rec.ID == "saga1" {
			t.Fatal("consumed id present in bucket")
		}
		if _, dup := seen[rec.ID]; dup {
			t.Fatalf("duplicate id %s in bucket", rec.ID)
		}
		seen[rec.ID] = struct{}{}
	}
}

// The vector index returns the queried item among its own neighbors;
// RecommendByID must drop it and respect topK.
func TestRecommendByIDExcludesSelf(t *testing.T) {
	store := newFakeStore()
	items := []string{"X", "a", "b", "c", "d", "e"}
	for _, id := range items {
		entry := movie(id, []string{"Action"}, nil, nil)
		entry.Title = "Item " + id
		store.add(entry)
	}

	vectors := newFakeVectors()
	vectors.byID["X"] = []models.VectorMatch{
		{ID: "X", Score: 1.0, Type: models.ContentTypeMovie},
		{ID: "a", Score: 0.9, Type: models.ContentTypeMovie},
		{ID: "b", Score: 0.8, Type: models.ContentTypeMovie},
		{ID: "c", Score: 0.7, Type: models.ContentTypeMovie},
		{ID: "d", Score: 0.6, Type: models.ContentTypeMovie},
		{ID: "e", Score: 0.5, Type: models.ContentTypeMovie},
	}

	rec := NewRecommender(store, vectors, 5)
	result := rec.RecommendByID(context.Background(), "X", 5)

	if result.Total() > 5 {
		t.Fatalf("expected at most 5 results, got %d", result.Total())
	}
	for _, cand := range result.Combined {
		if cand.ID == "X" {
			t.Fatal("queried item returned as its own recommendation")
		}
	}
	if len(result.Movies) != 5 {
		t.Fatalf("expected 5 movie results after self-exclusion, got %d", len(result.Movies))
	}
}

// Neighbors of mixed types land in their own buckets and the combined
// list follows canonical type order, not the raw index order.
func TestRecommendByIDBucketsByType(t *testing.T) {
	store := newFakeStore()
	source := movie("X", []string{"Action"}, nil, nil)
	source.Title = "Item X"
	m1 := movie("m1", []string{"Action"}, nil, nil)
	m1.Title = "Movie Neighbor"
	g1 := &models.ContentItem{ID: "g1", Type: models.ContentTypeGame, Title: "Game Neighbor"}
	store.add(source, m1, g1)

	vectors := newFakeVectors()
	vectors.byID["X"] = []models.VectorMatch{
		{ID: "g1", Score: 0.9, Type: models.ContentTypeGame},
		{ID: "m1", Score: 0.8, Type: models.ContentTypeMovie},
	}

	rec := NewRecommender(store, vectors, 5)
	result := rec.RecommendByID(context.Background(), "X", 5)

	if len(result.Movies) != 1 || result.Movies[0].ID != "m1" {
		t.Fatalf("movie bucket %+v, want m1", result.Movies)
	}
	if len(result.Games) != 1 || result.Games[0].ID != "g1" {
		t.Fatalf("game bucket %+v, want g1", result.Games)
	}
	if len(result.Combined) != 2 || result.Combined[0].ID != "m1" || result.Combined[1].ID != "g1" {
		t.Fatalf("combined order %+v, want movie before game", result.Combined)
	}
}

func TestRecommendByIDQueryFailure(t *testing.T) {
	vectors := newFakeVectors()
	vectors.queryErr["X"] = errors.New("index down")

	rec := NewRecommender(newFakeStore(), vectors, 5)
	result := rec.RecommendByID(context.Background(), "X", 5)
	if result.Total() != 0 || len(result.Combined) != 0 {
		t.Fatalf("expected empty result on query failure, got %d", result.Total())
	}
}
