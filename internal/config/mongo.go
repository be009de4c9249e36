package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Test connection
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	// Create indexes
	err = createIndexes(client, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

func createIndexes(client *mongo.Client, cfg *Config) error {
	db := client.Database(cfg.DBName)

	// Title indexes on each catalog collection back the sequel-detection
	// substring queries.
	titleIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "title", Value: 1}}},
		{Keys: bson.D{{Key: "title_english", Value: 1}}},
		{Keys: bson.D{{Key: "genres", Value: 1}}},
	}
	for _, name := range []string{"movies", "tv_series", "anime", "games"} {
		col := db.Collection(name)
		if _, err := col.Indexes().CreateMany(context.Background(), titleIndexes); err != nil {
			return err
		}
	}

	// user_lists is joined per user id on every recommendation request.
	listsCollection := db.Collection("user_lists")
	listIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "content_type", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := listsCollection.Indexes().CreateMany(context.Background(), listIndexes); err != nil {
		return err
	}

	// content_vectors is keyed by item id; the ANN index itself is an
	// Atlas Search index managed outside the driver.
	vectorsCollection := db.Collection(cfg.VectorCollection)
	vectorIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "content_type", Value: 1}}},
	}
	if _, err := vectorsCollection.Indexes().CreateMany(context.Background(), vectorIndexes); err != nil {
		return err
	}

	return nil
}
