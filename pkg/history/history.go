// Package history stores finished run records in MongoDB so results survive
// build-directory cleanups and can be compared across machines.
//
// The store is optional: connect only when RCXBENCH_MONGO_URI is set, and
// treat a nil *Store as "history disabled".
package history

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rcxbench/rcxbench/pkg/errors"
	"github.com/rcxbench/rcxbench/pkg/flow"
)

// EnvMongoURI selects the MongoDB instance for run history.
const EnvMongoURI = "RCXBENCH_MONGO_URI"

const (
	databaseName   = "rcxbench"
	collectionName = "runs"
	connectTimeout = 5 * time.Second
)

// StepRecord is one step of a stored run.
type StepRecord struct {
	Name       string             `bson:"name" json:"name"`
	Tool       string             `bson:"tool" json:"tool"`
	Task       string             `bson:"task" json:"task"`
	Cached     bool               `bson:"cached" json:"cached"`
	DurationMS int64              `bson:"duration_ms" json:"duration_ms"`
	Metrics    map[string]float64 `bson:"metrics,omitempty" json:"metrics,omitempty"`
}

// Record is a stored run.
type Record struct {
	RunID      string       `bson:"run_id" json:"run_id"`
	Design     string       `bson:"design" json:"design"`
	JobDir     string       `bson:"jobdir" json:"jobdir"`
	Steps      []StepRecord `bson:"steps" json:"steps"`
	DurationMS int64        `bson:"duration_ms" json:"duration_ms"`
	CreatedAt  time.Time    `bson:"created_at" json:"created_at"`
}

// FromResult converts a runner result into a record.
func FromResult(res *flow.Result) Record {
	rec := Record{
		RunID:      res.RunID,
		Design:     res.Design,
		JobDir:     res.JobDir,
		DurationMS: res.Duration.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}
	for _, sr := range res.Steps {
		rec.Steps = append(rec.Steps, StepRecord{
			Name:       sr.Step,
			Tool:       sr.Tool,
			Task:       sr.Task,
			Cached:     sr.Cached,
			DurationMS: sr.Duration.Milliseconds(),
			Metrics:    sr.Metrics,
		})
	}
	return rec
}

// Store is a MongoDB-backed run history.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *log.Logger
}

// Connect opens the store and verifies the connection with a ping.
func Connect(ctx context.Context, uri string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Default()
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "connect to history store")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "ping history store")
	}

	return &Store{
		client: client,
		coll:   client.Database(databaseName).Collection(collectionName),
		logger: logger,
	}, nil
}

// Insert stores one run record.
func (s *Store) Insert(ctx context.Context, rec Record) error {
	if _, err := s.coll.InsertOne(ctx, rec); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "insert run record")
	}
	s.logger.Debug("recorded run", "run_id", rec.RunID, "design", rec.Design)
	return nil
}

// Recent returns the newest n records.
func (s *Store) Recent(ctx context.Context, n int) ([]Record, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(n))
	cur, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "query run history")
	}
	defer cur.Close(ctx)

	var records []Record
	if err := cur.All(ctx, &records); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "decode run history")
	}
	return records, nil
}

// ForDesign returns the newest n records for one design.
func (s *Store) ForDesign(ctx context.Context, design string, n int) ([]Record, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(n))
	cur, err := s.coll.Find(ctx, bson.D{{Key: "design", Value: design}}, opts)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "query run history")
	}
	defer cur.Close(ctx)

	var records []Record
	if err := cur.All(ctx, &records); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "decode run history")
	}
	return records, nil
}

// Close disconnects from MongoDB.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
