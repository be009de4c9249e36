package database

import (
	"context"
	"errors"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"media-recommender/models"
)

// ErrNotFound is returned when an id resolves to no record under either
// id form. Callers treat it as "absent", never as a fatal condition.
var ErrNotFound = errors.New("content not found")

// ContentRepository provides access to the per-type catalog collections
// and the user profile store. All ids crossing this boundary are
// canonical strings; storage-format variability (raw string keys vs
// ObjectId keys) is absorbed here.
type ContentRepository struct {
	db *mongo.Database
}

func NewContentRepository(client *mongo.Client, dbName string) *ContentRepository {
	return &ContentRepository{db: client.Database(dbName)}
}

// contentDoc is the storage shape of a catalog record. The _id is
// decoded as-is because legacy records are keyed by ObjectId while
// imported ones carry raw string keys.
type contentDoc struct {
	ID           any      `bson:"_id"`
	Title        string   `bson:"title"`
	TitleEnglish string   `bson:"title_english"`
	TitleOrig    string   `bson:"title_original"`
	Genres       []string `bson:"genres"`
	Cast         []string `bson:"cast"`
	Studios      []string `bson:"studios"`
	Networks     []string `bson:"networks"`
	Platforms    []string `bson:"platforms"`
	Publishers   []string `bson:"publishers"`
	Developers   []string `bson:"developers"`
	Description  string   `bson:"description"`
}

func (d *contentDoc) toItem(t models.ContentType) *models.ContentItem {
	return &models.ContentItem{
		ID:           normalizeID(d.ID),
		Type:         t,
		Title:        d.Title,
		TitleEnglish: d.TitleEnglish,
		TitleOrig:    d.TitleOrig,
		Genres:       d.Genres,
		Cast:         d.Cast,
		Studios:      d.Studios,
		Networks:     d.Networks,
		Platforms:    d.Platforms,
		Publishers:   d.Publishers,
		Developers:   d.Developers,
		Description:  d.Description,
	}
}

// normalizeID collapses the two storage id forms into one canonical
// string.
func normalizeID(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case primitive.ObjectID:
		return v.Hex()
	default:
		return ""
	}
}

// idForms returns every storage form the given canonical id may appear
// under: the raw string itself and, when it parses as 24-byte hex, the
// derived ObjectId.
func idForms(id string) []any {
	forms := []any{id}
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		forms = append(forms, oid)
	}
	return forms
}

func (r *ContentRepository) collection(t models.ContentType) (*mongo.Collection, error) {
	name, err := t.Collection()
	if err != nil {
		return nil, err
	}
	return r.db.Collection(name), nil
}

// FindByID resolves one item, attempting both id forms in a single
// query. Returns ErrNotFound when neither form matches.
func (r *ContentRepository) FindByID(ctx context.Context, id string, t models.ContentType) (*models.ContentItem, error) {
	col, err := r.collection(t)
	if err != nil {
		return nil, err
	}

	var doc contentDoc
	err = col.FindOne(ctx, bson.M{"_id": bson.M{"$in": idForms(id)}}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toItem(t), nil
}

// FindByTitleSubstring returns up to limit items of the given type whose
// title (any variant) contains the pattern, case-insensitively. The
// pattern is treated as a literal substring: regex metacharacters are
// escaped before the query is built.
func (r *ContentRepository) FindByTitleSubstring(ctx context.Context, pattern string, t models.ContentType, excludeID string, limit int64) ([]*models.ContentItem, error) {
	col, err := r.collection(t)
	if err != nil {
		return nil, err
	}

	re := primitive.Regex{Pattern: regexp.QuoteMeta(pattern), Options: "i"}
	filter := bson.M{
		"$or": []bson.M{
			{"title": re},
			{"title_english": re},
			{"title_original": re},
		},
	}
	if excludeID != "" {
		filter["_id"] = bson.M{"$nin": idForms(excludeID)}
	}

	cursor, err := col.Find(ctx, filter, options.Find().SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	return decodeItems(ctx, cursor, t)
}

// FindManyByIDs hydrates a batch of items. Ids that resolve under
// neither form are silently absent from the result.
func (r *ContentRepository) FindManyByIDs(ctx context.Context, ids []string, t models.ContentType) ([]*models.ContentItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	col, err := r.collection(t)
	if err != nil {
		return nil, err
	}

	forms := make([]any, 0, len(ids)*2)
	for _, id := range ids {
		forms = append(forms, idForms(id)...)
	}

	cursor, err := col.Find(ctx, bson.M{"_id": bson.M{"$in": forms}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	return decodeItems(ctx, cursor, t)
}

// StreamAll returns one page of the collection in stable _id order.
// Calling with increasing skip values walks the whole collection; an
// empty page signals the end.
func (r *ContentRepository) StreamAll(ctx context.Context, t models.ContentType, skip, limit int64) ([]*models.ContentItem, error) {
	col, err := r.collection(t)
	if err != nil {
		return nil, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(skip).
		SetLimit(limit)

	cursor, err := col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	return decodeItems(ctx, cursor, t)
}

func decodeItems(ctx context.Context, cursor *mongo.Cursor, t models.ContentType) ([]*models.ContentItem, error) {
	var items []*models.ContentItem
	for cursor.Next(ctx) {
		var doc contentDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		items = append(items, doc.toItem(t))
	}
	return items, cursor.Err()
}

// userListsDoc is one joined per-type consumed list.
type userListsDoc struct {
	ContentType string `bson:"content_type"`
	ItemIDs     []any  `bson:"item_ids"`
}

// JoinUserLists loads a user's consumed-id lists across all content
// types with a single $lookup join. A missing per-type list yields an
// empty id set; a missing user yields (nil, nil).
func (r *ContentRepository) JoinUserLists(ctx context.Context, userID string) (*models.UserProfile, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": bson.M{"$in": idForms(userID)}}}},
		{{Key: "$lookup", Value: bson.M{
			"from": "user_lists",
			"let":  bson.M{"uid": bson.M{"$toString": "$_id"}},
			"pipeline": mongo.Pipeline{
				{{Key: "$match", Value: bson.M{"$expr": bson.M{"$eq": bson.A{"$user_id", "$$uid"}}}}},
			},
			"as": "lists",
		}}},
		{{Key: "$project", Value: bson.M{"lists": 1}}},
	}

	cursor, err := r.db.Collection("users").Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var joined struct {
		ID    any            `bson:"_id"`
		Lists []userListsDoc `bson:"lists"`
	}
	if !cursor.Next(ctx) {
		if err := cursor.Err(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if err := cursor.Decode(&joined); err != nil {
		return nil, err
	}

	profile := &models.UserProfile{
		UserID:  normalizeID(joined.ID),
		Watched: make(map[models.ContentType][]string, len(models.AllContentTypes)),
	}
	for _, list := range joined.Lists {
		t := models.ContentType(list.ContentType)
		if !t.Valid() {
			continue
		}
		ids := make([]string, 0, len(list.ItemIDs))
		for _, raw := range list.ItemIDs {
			if id := normalizeID(raw); id != "" {
				ids = append(ids, id)
			}
		}
		profile.Watched[t] = append(profile.Watched[t], ids...)
	}
	return profile, nil
}
