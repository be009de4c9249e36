package database

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"media-recommender/models"
)

// VectorIndex is the approximate-nearest-neighbor adapter, backed by an
// Atlas Vector Search index over the content_vectors collection. Every
// vector document carries a content_type tag so results can be filtered
// into the right bucket.
type VectorIndex struct {
	col       *mongo.Collection
	indexName string
}

func NewVectorIndex(client *mongo.Client, dbName, collection, indexName string) *VectorIndex {
	return &VectorIndex{
		col:       client.Database(dbName).Collection(collection),
		indexName: indexName,
	}
}

// QueryByID searches for the nearest neighbors of an item that already
// has a stored embedding. The stored vector is loaded by id and used as
// the query vector; the item itself will usually appear in the results
// and is the caller's to filter.
func (v *VectorIndex) QueryByID(ctx context.Context, id string, topK int) ([]models.VectorMatch, error) {
	var record models.VectorRecord
	err := v.col.FindOne(ctx, bson.M{"_id": bson.M{"$in": idForms(id)}}).Decode(&record)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v.QueryByVector(ctx, record.Vector, topK)
}

// QueryByVector runs a $vectorSearch over the index and returns
// (id, score, type) tuples ordered by similarity.
func (v *VectorIndex) QueryByVector(ctx context.Context, vector []float32, topK int) ([]models.VectorMatch, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.M{
			"index":         v.indexName,
			"path":          "vector",
			"queryVector":   vector,
			"numCandidates": topK * 10,
			"limit":         topK,
		}}},
		{{Key: "$project", Value: bson.M{
			"_id":          1,
			"content_type": 1,
			"score":        bson.M{"$meta": "vectorSearchScore"},
		}}},
	}

	cursor, err := v.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var matches []models.VectorMatch
	for cursor.Next(ctx) {
		var doc struct {
			ID          any     `bson:"_id"`
			ContentType string  `bson:"content_type"`
			Score       float64 `bson:"score"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		matches = append(matches, models.VectorMatch{
			ID:    normalizeID(doc.ID),
			Score: doc.Score,
			Type:  models.ContentType(doc.ContentType),
		})
	}
	return matches, cursor.Err()
}

// Upsert writes a batch of embedding records in one unordered bulk
// call. Re-ingesting an item replaces its vector.
func (v *VectorIndex) Upsert(ctx context.Context, records []models.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := make([]mongo.WriteModel, 0, len(records))
	for _, rec := range records {
		batch = append(batch, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": rec.ID}).
			SetReplacement(rec).
			SetUpsert(true))
	}

	_, err := v.col.BulkWrite(ctx, batch, options.BulkWrite().SetOrdered(false))
	return err
}
