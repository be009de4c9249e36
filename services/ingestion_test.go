package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"media-recommender/internal/config"
	"media-recommender/models"
)

func testIngestConfig() *config.Config {
	return &config.Config{
		IngestChunkSize:       2,
		IngestRetryWait:       10 * time.Millisecond,
		IngestMaxAttempts:     3,
		IngestBatchRetryDelay: 10 * time.Millisecond,
		IngestBatchSkipAfter:  5,
		IngestBatchPause:      0,
	}
}

// silence the sleeps and record what was requested
func recordSleeps(p *IngestionPipeline) *[]time.Duration {
	var waits []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return &waits
}

func TestBackoffWait(t *testing.T) {
	initial := 4400 * time.Millisecond
	wants := []time.Duration{
		4400 * time.Millisecond,
		6600 * time.Millisecond,
		9900 * time.Millisecond,
	}
	for i, want := range wants {
		if got := backoffWait(initial, i+1); got != want {
			t.Errorf("attempt %d: wait %v, want %v", i+1, got, want)
		}
	}
}

func TestIngestTypeHappyPath(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 5; i++ {
		item := movie(fmt.Sprintf("m%d", i), []string{"Action"}, nil, nil)
		item.Title = fmt.Sprintf("Movie %d", i)
		store.add(item)
	}

	vectors := newFakeVectors()
	embedder := &fakeEmbedder{}
	pipeline := NewIngestionPipeline(store, vectors, embedder, testIngestConfig())
	recordSleeps(pipeline)

	if err := pipeline.IngestType(context.Background(), models.ContentTypeMovie); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 5 records at chunk size 2: pages of 2, 2, 1.
	if embedder.calls != 3 {
		t.Fatalf("expected 3 batched embed calls, got %d", embedder.calls)
	}
	for _, size := range embedder.batchSizes {
		if size > 2 {
			t.Fatalf("batch size %d exceeds chunk size", size)
		}
	}
	if len(vectors.upserts) != 3 {
		t.Fatalf("expected 3 batched upserts, got %d", len(vectors.upserts))
	}

	total := 0
	for _, batch := range vectors.upserts {
		for _, rec := range batch {
			total++
			if rec.Type != models.ContentTypeMovie {
				t.Fatalf("record %s tagged %s", rec.ID, rec.Type)
			}
			if len(rec.Vector) == 0 {
				t.Fatalf("record %s has empty vector", rec.ID)
			}
		}
	}
	if total != 5 {
		t.Fatalf("expected 5 records upserted, got %d", total)
	}
}

func TestIngestTypeRetriesThenSucceeds(t *testing.T) {
	store := newFakeStore()
	item := movie("m0", []string{"Action"}, nil, nil)
	item.Title = "Movie 0"
	store.add(item)

	vectors := newFakeVectors()
	embedder := &fakeEmbedder{failFirst: 2}
	pipeline := NewIngestionPipeline(store, vectors, embedder, testIngestConfig())
	waits := recordSleeps(pipeline)

	if err := pipeline.IngestType(context.Background(), models.ContentTypeMovie); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if embedder.calls != 3 {
		t.Fatalf("expected 2 failures then success, got %d calls", embedder.calls)
	}
	if len(vectors.upserts) != 1 {
		t.Fatalf("expected 1 upsert after retries, got %d", len(vectors.upserts))
	}

	// The first two waits follow the back-off schedule.
	initial := testIngestConfig().IngestRetryWait
	if (*waits)[0] != backoffWait(initial, 1) || (*waits)[1] != backoffWait(initial, 2) {
		t.Fatalf("back-off waits %v do not follow the schedule", *waits)
	}
}

// A batch that keeps failing is skipped after 5 consecutive failures so
// ingestion always reaches the end of the collection.
func TestIngestTypeSkipsPoisonBatch(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 3; i++ {
		item := movie(fmt.Sprintf("m%d", i), []string{"Action"}, nil, nil)
		item.Title = fmt.Sprintf("Movie %d", i)
		store.add(item)
	}

	vectors := newFakeVectors()
	embedder := &fakeEmbedder{failAlways: true}
	pipeline := NewIngestionPipeline(store, vectors, embedder, testIngestConfig())
	recordSleeps(pipeline)

	if err := pipeline.IngestType(context.Background(), models.ContentTypeMovie); err != nil {
		t.Fatalf("run must complete despite poison batches, got %v", err)
	}
	if len(vectors.upserts) != 0 {
		t.Fatalf("no upserts expected when every batch fails")
	}

	// Each of the two pages fails 5 times before being skipped, with 3
	// embed attempts inside every failure.
	wantCalls := 2 * 5 * testIngestConfig().IngestMaxAttempts
	if embedder.calls != wantCalls {
		t.Fatalf("expected %d embed calls, got %d", wantCalls, embedder.calls)
	}
}

func TestIngestTypeRetriesFailedUpsert(t *testing.T) {
	store := newFakeStore()
	item := movie("m0", []string{"Action"}, nil, nil)
	item.Title = "Movie 0"
	store.add(item)

	vectors := newFakeVectors()
	vectors.upsertErrs = 1
	embedder := &fakeEmbedder{}
	pipeline := NewIngestionPipeline(store, vectors, embedder, testIngestConfig())
	recordSleeps(pipeline)

	if err := pipeline.IngestType(context.Background(), models.ContentTypeMovie); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors.upserts) != 1 {
		t.Fatalf("expected upsert to succeed on retry, got %d", len(vectors.upserts))
	}
}

func TestIngestTypeUnknownType(t *testing.T) {
	pipeline := NewIngestionPipeline(newFakeStore(), newFakeVectors(), &fakeEmbedder{}, testIngestConfig())
	if err := pipeline.IngestType(context.Background(), models.ContentType("vinyl")); err != models.ErrUnknownContentType {
		t.Fatalf("expected ErrUnknownContentType, got %v", err)
	}
}

func TestBuildEmbeddingText(t *testing.T) {
	m := &models.ContentItem{
		Type:        models.ContentTypeMovie,
		Title:       "Rocky",
		Genres:      []string{"Drama", "Sport"},
		Cast:        []string{"Sylvester Stallone"},
		Studios:     []string{"United Artists"},
		Description: "A small-time boxer gets a shot at the title.",
	}
	text := BuildEmbeddingText(m)
	for _, want := range []string{"Movie: Rocky.", "Drama, Sport", "Sylvester Stallone", "United Artists", "small-time boxer"} {
		if !strings.Contains(text, want) {
			t.Errorf("movie text missing %q: %s", want, text)
		}
	}

	g := &models.ContentItem{
		Type:       models.ContentTypeGame,
		Title:      "Hades",
		Genres:     []string{"Roguelike"},
		Platforms:  []string{"PC", "Switch"},
		Developers: []string{"Supergiant Games"},
	}
	text = BuildEmbeddingText(g)
	for _, want := range []string{"Game: Hades.", "PC, Switch", "Supergiant Games"} {
		if !strings.Contains(text, want) {
			t.Errorf("game text missing %q: %s", want, text)
		}
	}

	unknown := &models.ContentItem{
		Type:        models.ContentType("vinyl"),
		Title:       "Abbey Road",
		Description: "Classic album.",
	}
	if got := BuildEmbeddingText(unknown); got != "Abbey Road: Classic album." {
		t.Errorf("unknown type fallback wrong: %q", got)
	}
}
