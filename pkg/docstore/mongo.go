package docstore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCollection stores documents natively. Documents must map their id to
// "_id", their version to "version" and their creation time to "createdAt".
type MongoCollection[T Entity] struct {
	coll       *mongo.Collection
	scopeField string
}

// NewMongoCollection wraps coll. scopeField names the bson field holding
// the scope and may be empty for unscoped documents.
func NewMongoCollection[T Entity](coll *mongo.Collection, scopeField string) *MongoCollection[T] {
	return &MongoCollection[T]{
		coll:       coll,
		scopeField: scopeField,
	}
}

// EnsureIndexes creates the scope index
func (c *MongoCollection[T]) EnsureIndexes(ctx context.Context) error {
	if c.scopeField == "" {
		return nil
	}
	_, err := c.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: c.scopeField, Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create %s index: %w", c.scopeField, err)
	}
	return nil
}

// Get loads a document by id
func (c *MongoCollection[T]) Get(ctx context.Context, id string) (T, error) {
	var doc T
	err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		var zero T
		return zero, ErrNotFound
	}
	if err != nil {
		var zero T
		return zero, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// Insert stores doc at version 1
func (c *MongoCollection[T]) Insert(ctx context.Context, doc T) error {
	prev := doc.GetVersion()
	doc.SetVersion(1)
	if _, err := c.coll.InsertOne(ctx, doc); err != nil {
		doc.SetVersion(prev)
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// Replace overwrites doc filtered on its id and current version
func (c *MongoCollection[T]) Replace(ctx context.Context, doc T) error {
	expected := doc.GetVersion()
	doc.SetVersion(expected + 1)

	result, err := c.coll.ReplaceOne(ctx, bson.M{"_id": doc.GetID(), "version": expected}, doc)
	if err != nil {
		doc.SetVersion(expected)
		return fmt.Errorf("failed to replace document: %w", err)
	}
	if result.MatchedCount == 0 {
		doc.SetVersion(expected)
		return c.missOrConflict(ctx, doc.GetID())
	}
	return nil
}

func (c *MongoCollection[T]) missOrConflict(ctx context.Context, id string) error {
	opts := options.FindOne().SetProjection(bson.M{"_id": 1})
	err := c.coll.FindOne(ctx, bson.M{"_id": id}, opts).Err()
	if err == mongo.ErrNoDocuments {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check document: %w", err)
	}
	return ErrConflict
}

// Delete removes a document
func (c *MongoCollection[T]) Delete(ctx context.Context, id string) error {
	result, err := c.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns documents in scope ordered by creation time
func (c *MongoCollection[T]) List(ctx context.Context, scope string) ([]T, error) {
	filter := bson.M{}
	if scope != "" {
		if c.scopeField == "" {
			return nil, fmt.Errorf("collection %s is not scoped", c.coll.Name())
		}
		filter[c.scopeField] = scope
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := c.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer cursor.Close(ctx)

	docs := make([]T, 0)
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode documents: %w", err)
	}
	return docs, nil
}

// DeleteScope removes every document in scope
func (c *MongoCollection[T]) DeleteScope(ctx context.Context, scope string) (int64, error) {
	if scope == "" || c.scopeField == "" {
		return 0, fmt.Errorf("scope is required")
	}
	result, err := c.coll.DeleteMany(ctx, bson.M{c.scopeField: scope})
	if err != nil {
		return 0, fmt.Errorf("failed to delete scope: %w", err)
	}
	return result.DeletedCount, nil
}
