package services

import (
	"context"
	"errors"
	"strings"

	"media-recommender/models"
)

var errFakeNotFound = errors.New("not found")

// fakeStore is an in-memory ContentStore.
type fakeStore struct {
	items   map[models.ContentType][]*models.ContentItem
	profile *models.UserProfile

	joinErr  error
	titleErr map[string]error // keyed by search pattern

	titleSearches []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		items:    make(map[models.ContentType][]*models.ContentItem),
		titleErr: make(map[string]error),
	}
}

func (s *fakeStore) add(items ...*models.ContentItem) {
	for _, item := range items {
		s.items[item.Type] = append(s.items[item.Type], item)
	}
}

func (s *fakeStore) FindByID(ctx context.Context, id string, t models.ContentType) (*models.ContentItem, error) {
	for _, item := range s.items[t] {
		if item.ID == id {
			return item, nil
		}
	}
	return nil, errFakeNotFound
}

func (s *fakeStore) FindByTitleSubstring(ctx context.Context, pattern string, t models.ContentType, excludeID string, limit int64) ([]*models.ContentItem, error) {
	s.titleSearches = append(s.titleSearches, pattern)
	if err, ok := s.titleErr[pattern]; ok {
		return nil, err
	}

	needle := strings.ToLower(pattern)
	var out []*models.ContentItem
	for _, item := range s.items[t] {
		if item.ID == excludeID {
			continue
		}
		match := false
		for _, title := range item.Titles() {
			if strings.Contains(strings.ToLower(title), needle) {
				match = true
				break
			}
		}
		if match {
			out = append(out, item)
		}
		if int64(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) FindManyByIDs(ctx context.Context, ids []string, t models.ContentType) ([]*models.ContentItem, error) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []*models.ContentItem
	for _, item := range s.items[t] {
		if _, ok := want[item.ID]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *fakeStore) StreamAll(ctx context.Context, t models.ContentType, skip, limit int64) ([]*models.ContentItem, error) {
	all := s.items[t]
	if skip >= int64(len(all)) {
		return nil, nil
	}
	end := skip + limit
	if end > int64(len(all)) {
		end = int64(len(all))
	}
	return all[skip:end], nil
}

func (s *fakeStore) JoinUserLists(ctx context.Context, userID string) (*models.UserProfile, error) {
	if s.joinErr != nil {
		return nil, s.joinErr
	}
	return s.profile, nil
}

// fakeVectors is an in-memory VectorSearcher.
type fakeVectors struct {
	byID     map[string][]models.VectorMatch
	queryErr map[string]error

	upserts    [][]models.VectorRecord
	upsertErrs int // fail this many Upsert calls before succeeding
}

func newFakeVectors() *fakeVectors {
	return &fakeVectors{
		byID:     make(map[string][]models.VectorMatch),
		queryErr: make(map[string]error),
	}
}

func (v *fakeVectors) QueryByID(ctx context.Context, id string, topK int) ([]models.VectorMatch, error) {
	if err, ok := v.queryErr[id]; ok {
		return nil, err
	}
	matches := v.byID[id]
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (v *fakeVectors) QueryByVector(ctx context.Context, vector []float32, topK int) ([]models.VectorMatch, error) {
	return nil, nil
}

func (v *fakeVectors) Upsert(ctx context.Context, records []models.VectorRecord) error {
	if v.upsertErrs > 0 {
		v.upsertErrs--
		return errors.New("upsert failed")
	}
	v.upserts = append(v.upserts, records)
	return nil
}

// fakeEmbedder returns fixed-width vectors and can fail a set number of
// calls first.
type fakeEmbedder struct {
	calls      int
	batchSizes []int
	failFirst  int
	failAlways bool
}

func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	e.batchSizes = append(e.batchSizes, len(texts))
	if e.failAlways || e.calls <= e.failFirst {
		return nil, errors.New("embedding unavailable")
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0, 0}
	}
	return vectors, nil
}
