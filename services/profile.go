package services

import (
	"context"

	"media-recommender/models"
)

// ProfileResolver loads a user's consumption history and hydrates the
// consumed ids into full catalog records.
type ProfileResolver struct {
	store ContentStore
}

func NewProfileResolver(store ContentStore) *ProfileResolver {
	return &ProfileResolver{store: store}
}

// Resolve fetches a fresh profile snapshot. (nil, nil) means the user
// has no profile document at all.
func (p *ProfileResolver) Resolve(ctx context.Context, userID string) (*models.UserProfile, error) {
	return p.store.JoinUserLists(ctx, userID)
}

// Hydrate loads the full records for a list of consumed ids in one
// batched query, preserving profile order. Ids that resolve under
// neither the native key nor the derived object-id form are dropped.
func (p *ProfileResolver) Hydrate(ctx context.Context, ids []string, t models.ContentType) ([]*models.ContentItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	found, err := p.store.FindManyByIDs(ctx, ids, t)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*models.ContentItem, len(found))
	for _, item := range found {
		byID[item.ID] = item
	}

	items := make([]*models.ContentItem, 0, len(ids))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			items = append(items, item)
		}
	}
	return items, nil
}
