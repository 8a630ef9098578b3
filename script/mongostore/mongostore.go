// Package mongostore is the optional durable script.Registry backed by
// MongoDB, for deployments that run the engine's API behind multiple
// processes sharing one script catalog; the default remains
// script/filestore. It builds its collection's unique index on
// construction and upserts via a $set/$setOnInsert pair for idempotent
// creation.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/guideforge/engine/script"
	"github.com/guideforge/engine/step"
)

const (
	defaultCollection = "guideforge_scripts"
	defaultOpTimeout  = 5 * time.Second
)

// Options configures the Mongo-backed registry.
type Options struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

// Store is a script.Registry backed by a single MongoDB collection.
type Store struct {
	coll    *mongodriver.Collection
	timeout time.Duration
}

// New builds a Store, ensuring the unique index on script id exists.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongostore: client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("mongostore: database is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	coll := opts.Client.Database(opts.Database).Collection(collName)

	idxCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	index := mongodriver.IndexModel{
		Keys:    bson.D{{Key: "script_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := coll.Indexes().CreateOne(idxCtx, index); err != nil {
		return nil, fmt.Errorf("mongostore: ensure index: %w", err)
	}

	return &Store{coll: coll, timeout: timeout}, nil
}

type document struct {
	ScriptID    string      `bson:"script_id"`
	Title       string      `bson:"title"`
	BaseURL     string      `bson:"base_url"`
	Steps       []step.Step `bson:"steps"`
	Language    string      `bson:"language"`
	RecordVideo bool        `bson:"record_video"`
	Tags        []string    `bson:"tags,omitempty"`
	Path        string      `bson:"path"`
	UpdatedAt   time.Time   `bson:"updated_at"`
}

func toDocument(s script.Script) document {
	return document{
		ScriptID:    s.ID,
		Title:       s.Title,
		BaseURL:     s.BaseURL,
		Steps:       s.Steps,
		Language:    s.Language,
		RecordVideo: s.RecordVideo,
		Tags:        s.Tags,
		Path:        s.Path,
		UpdatedAt:   time.Now().UTC(),
	}
}

func (d document) toScript() script.Script {
	return script.Script{
		ID:          d.ScriptID,
		Title:       d.Title,
		BaseURL:     d.BaseURL,
		Steps:       d.Steps,
		Language:    d.Language,
		RecordVideo: d.RecordVideo,
		Tags:        d.Tags,
		Path:        d.Path,
	}
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Get implements script.Registry.
func (s *Store) Get(ctx context.Context, id string) (script.Script, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var doc document
	err := s.coll.FindOne(ctx, bson.M{"script_id": id}).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return script.Script{}, false, nil
	}
	if err != nil {
		return script.Script{}, false, fmt.Errorf("mongostore: find: %w", err)
	}
	return doc.toScript(), true, nil
}

// Put implements script.Registry, upserting by script id so a re-import
// under the same id replaces the document in place.
func (s *Store) Put(ctx context.Context, sc script.Script) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	doc := toDocument(sc)
	filter := bson.M{"script_id": sc.ID}
	update := bson.M{
		"$set": bson.M{
			"title":        doc.Title,
			"base_url":     doc.BaseURL,
			"steps":        doc.Steps,
			"language":     doc.Language,
			"record_video": doc.RecordVideo,
			"tags":         doc.Tags,
			"path":         doc.Path,
			"updated_at":   doc.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"script_id": doc.ScriptID,
		},
	}
	_, err := s.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongostore: upsert: %w", err)
	}
	return nil
}

// Delete implements script.Registry.
func (s *Store) Delete(ctx context.Context, id string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.coll.DeleteOne(ctx, bson.M{"script_id": id})
	if err != nil {
		return fmt.Errorf("mongostore: delete: %w", err)
	}
	return nil
}

// List implements script.Registry.
func (s *Store) List(ctx context.Context) ([]script.Script, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	cur, err := s.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("mongostore: find: %w", err)
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []script.Script
	for cur.Next(ctx) {
		var doc document
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongostore: decode: %w", err)
		}
		out = append(out, doc.toScript())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongostore: cursor: %w", err)
	}
	return out, nil
}
