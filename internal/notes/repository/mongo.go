package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/notekeeper/notekeeper/internal/notes"
)

// counterKey names the sequence document in the counters collection.
const counterKey = "notes"

// MongoRepo stores notes in a MongoDB collection. Note IDs come from a
// sequence document incremented with $inc, so they only ever grow; slug
// uniqueness is a unique index, so a conflicting InsertOne writes nothing.
type MongoRepo struct {
	col      *mongo.Collection
	counters *mongo.Collection
}

func NewMongoRepo(db *mongo.Database) *MongoRepo {
	return &MongoRepo{col: db.Collection("notes"), counters: db.Collection("counters")}
}

// EnsureIndexes creates the slug unique index and the per-author listing index.
func (m *MongoRepo) EnsureIndexes(ctx context.Context) error {
	_, err := m.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true).SetName("slug_unique")},
		{Keys: bson.D{{Key: "author", Value: 1}, {Key: "_id", Value: 1}}, Options: options.Index().SetName("author_id")},
	})
	if err != nil {
		return fmt.Errorf("ensure note indexes: %w", err)
	}
	return nil
}

func (m *MongoRepo) nextID(ctx context.Context) (int64, error) {
	var seq struct {
		Value int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := m.counters.FindOneAndUpdate(ctx, bson.M{"_id": counterKey}, bson.M{"$inc": bson.M{"seq": int64(1)}}, opts).Decode(&seq)
	if err != nil {
		return 0, fmt.Errorf("next note id: %w", err)
	}
	return seq.Value, nil
}

func (m *MongoRepo) Create(ctx context.Context, n *notes.Note) error {
	id, err := m.nextID(ctx)
	if err != nil {
		return err
	}
	doc := *n
	doc.ID = id
	doc.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	doc.UpdatedAt = doc.CreatedAt
	if _, err := m.col.InsertOne(ctx, &doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return &notes.DuplicateSlugError{Slug: n.Slug}
		}
		return fmt.Errorf("insert note: %w", err)
	}
	*n = doc
	return nil
}

func (m *MongoRepo) GetBySlug(ctx context.Context, slug string) (*notes.Note, error) {
	var n notes.Note
	if err := m.col.FindOne(ctx, bson.M{"slug": slug}).Decode(&n); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notes.ErrNotFound
		}
		return nil, fmt.Errorf("find note: %w", err)
	}
	return &n, nil
}

func (m *MongoRepo) ListByAuthor(ctx context.Context, author string) ([]*notes.Note, error) {
	cur, err := m.col.Find(ctx, bson.M{"author": author}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer cur.Close(ctx)
	out := []*notes.Note{}
	for cur.Next(ctx) {
		var n notes.Note
		if err := cur.Decode(&n); err != nil {
			return nil, fmt.Errorf("decode note: %w", err)
		}
		out = append(out, &n)
	}
	return out, cur.Err()
}

func (m *MongoRepo) Update(ctx context.Context, id int64, p notes.Patch) (*notes.Note, error) {
	set := bson.M{"updatedAt": time.Now().UTC().Truncate(time.Millisecond)}
	if p.Title != nil {
		set["title"] = *p.Title
	}
	if p.Text != nil {
		set["text"] = *p.Text
	}
	var n notes.Note
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := m.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&n); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notes.ErrNotFound
		}
		return nil, fmt.Errorf("update note: %w", err)
	}
	return &n, nil
}

func (m *MongoRepo) Delete(ctx context.Context, id int64) error {
	res, err := m.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if res.DeletedCount == 0 {
		return notes.ErrNotFound
	}
	return nil
}

func (m *MongoRepo) Count(ctx context.Context) (int64, error) {
	return m.col.CountDocuments(ctx, bson.M{})
}
