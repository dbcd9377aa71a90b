// Package mongostore implements vfs.PersistenceBackend over MongoDB,
// adapted from the teacher's features/memory/mongo/clients/mongo client:
// same interface-wrapped-collection seam for testability, same
// context-timeout-per-operation discipline, same upsert-via-$setOnInsert
// pattern. Rewritten against mongo-driver/v2 import paths, which is what
// this module's go.mod actually declares (the teacher's own client.go
// imports v1 paths despite its go.mod requiring v2 — a pre-existing
// inconsistency this package does not carry forward).
package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"goa.design/clue/health"

	"goa.design/agentcore/vfs"
)

const (
	defaultCollection = "agent_files"
	defaultTimeout    = 5 * time.Second
	clientName        = "vfs-mongo"
)

// Options configures the store.
type Options struct {
	// Client is the already-connected Mongo client. Required.
	Client *mongodriver.Client
	// Database is the target database name. Required.
	Database string
	// Collection holds file documents. Defaults to "agent_files".
	Collection string
	// AgentID scopes every document to one agent's file namespace, since a
	// single collection is shared across agents. Required.
	AgentID string
	// Timeout bounds individual operations. Defaults to 5s.
	Timeout time.Duration
}

// Store is a vfs.PersistenceBackend and a health.Pinger.
type Store struct {
	mongo   *mongodriver.Client
	coll    collection
	agentID string
	timeout time.Duration
}

var _ vfs.PersistenceBackend = (*Store)(nil)
var _ health.Pinger = (*Store)(nil)

// New returns a Store backed by the provided MongoDB client, ensuring the
// (agent_id, path) uniqueness index exists.
func New(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	if opts.AgentID == "" {
		return nil, errors.New("agent id is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	mcoll := opts.Client.Database(opts.Database).Collection(collName)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	wrapper := mongoCollection{coll: mcoll}
	if err := ensureIndexes(ctx, wrapper); err != nil {
		return nil, err
	}
	return &Store{mongo: opts.Client, coll: wrapper, agentID: opts.AgentID, timeout: timeout}, nil
}

func (s *Store) Name() string { return clientName }

func (s *Store) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.mongo.Ping(ctx, readpref.Primary())
}

// OnWrite upserts the document for path with the latest content.
func (s *Store) OnWrite(ctx context.Context, path string, content []byte) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"agent_id": s.agentID, "path": path}
	update := bson.M{
		"$setOnInsert": bson.M{"agent_id": s.agentID, "path": path},
		"$set":         bson.M{"content": content, "updated_at": time.Now().UTC()},
	}
	_, err := s.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	return err
}

// OnRead fetches the content previously written for path.
func (s *Store) OnRead(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc fileDocument
	filter := bson.M{"agent_id": s.agentID, "path": path}
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, vfs.ErrNotFound
		}
		return nil, err
	}
	return doc.Content, nil
}

// OnDelete removes path's document.
func (s *Store) OnDelete(ctx context.Context, path string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	filter := bson.M{"agent_id": s.agentID, "path": path}
	_, err := s.coll.DeleteOne(ctx, filter)
	return err
}

// OnList returns every path persisted for this agent.
func (s *Store) OnList(ctx context.Context) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	cur, err := s.coll.Find(ctx, bson.M{"agent_id": s.agentID}, options.Find().SetProjection(bson.M{"path": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var paths []string
	for cur.Next(ctx) {
		var doc struct {
			Path string `bson:"path"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		paths = append(paths, doc.Path)
	}
	return paths, cur.Err()
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

type fileDocument struct {
	AgentID   string    `bson:"agent_id"`
	Path      string    `bson:"path"`
	Content   []byte    `bson:"content"`
	UpdatedAt time.Time `bson:"updated_at,omitempty"`
}

func ensureIndexes(ctx context.Context, coll collection) error {
	index := mongodriver.IndexModel{
		Keys:    bson.D{{Key: "agent_id", Value: 1}, {Key: "path", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	_, err := coll.Indexes().CreateOne(ctx, index)
	return err
}

// collection narrows *mongodriver.Collection to what this package exercises,
// so tests can substitute a fake without a live server.
type collection interface {
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) singleResult
	UpdateOne(ctx context.Context, filter, update any, opts ...options.Lister[options.UpdateOneOptions]) (*mongodriver.UpdateResult, error)
	DeleteOne(ctx context.Context, filter any, opts ...options.Lister[options.DeleteOneOptions]) (*mongodriver.DeleteResult, error)
	Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (cursor, error)
	Indexes() indexView
}

type indexView interface {
	CreateOne(ctx context.Context, model mongodriver.IndexModel, opts ...options.Lister[options.CreateIndexesOptions]) (string, error)
}

type singleResult interface {
	Decode(val any) error
}

type cursor interface {
	Next(ctx context.Context) bool
	Decode(val any) error
	Err() error
	Close(ctx context.Context) error
}

type mongoCollection struct {
	coll *mongodriver.Collection
}

func (c mongoCollection) FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) singleResult {
	return c.coll.FindOne(ctx, filter, opts...)
}

func (c mongoCollection) UpdateOne(ctx context.Context, filter, update any, opts ...options.Lister[options.UpdateOneOptions]) (*mongodriver.UpdateResult, error) {
	return c.coll.UpdateOne(ctx, filter, update, opts...)
}

func (c mongoCollection) DeleteOne(ctx context.Context, filter any, opts ...options.Lister[options.DeleteOneOptions]) (*mongodriver.DeleteResult, error) {
	return c.coll.DeleteOne(ctx, filter, opts...)
}

func (c mongoCollection) Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (cursor, error) {
	return c.coll.Find(ctx, filter, opts...)
}

func (c mongoCollection) Indexes() indexView {
	return mongoIndexView{view: c.coll.Indexes()}
}

type mongoIndexView struct {
	view mongodriver.IndexView
}

func (v mongoIndexView) CreateOne(ctx context.Context, model mongodriver.IndexModel, opts ...options.Lister[options.CreateIndexesOptions]) (string, error) {
	return v.view.CreateOne(ctx, model, opts...)
}
