package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// ConnectMongoDB opens a client with majority writes so an acknowledged no-show survives failover.
func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetAppName("accounts-consumer").
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetWriteConcern(writeconcern.Majority()).
		SetMaxPoolSize(20)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", database, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping %s: %w", database, err)
	}
	return client.Database(database), nil
}

type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection("customer_accounts"),
	}
}

func (m *MongoRepository) RecordNoShow(ctx context.Context, customerID, orderID string, at time.Time) (bool, error) {
	now := time.Now().UTC()

	// The $ne guard makes redelivered events match nothing; the upsert then collides on _id.
	filter := bson.M{
		"_id":            customerID,
		"no_show_orders": bson.M{"$ne": orderID},
	}
	update := bson.M{
		"$inc":         bson.M{"no_show_count": 1},
		"$push":        bson.M{"no_show_orders": orderID},
		"$max":         bson.M{"last_no_show_at": at.UTC()},
		"$set":         bson.M{"updated_at": now},
		"$setOnInsert": bson.M{"created_at": now},
	}
	opts := options.Update().SetUpsert(true)

	res, err := m.collection.UpdateOne(ctx, filter, update, opts)
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to record no-show: %w", err)
	}
	return res.ModifiedCount > 0 || res.UpsertedCount > 0, nil
}

func (m *MongoRepository) GetAccount(ctx context.Context, customerID string) (*Account, error) {
	var account Account
	err := m.collection.FindOne(ctx, bson.M{"_id": customerID}).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "no_show_count", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "last_no_show_at", Value: -1}},
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
