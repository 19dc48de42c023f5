package realtime

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoTransport delivers per-table, per-row-filtered change events from
// MongoDB change streams. Each subscription owns one stream; the driver
// resumes streams across transient failures, and when a stream cannot be
// resumed the transport reopens it fresh and fires the reconnect hooks
// (events in the gap are the accepted staleness window).
// changeStream is the part of *mongo.ChangeStream the pump consumes.
type changeStream interface {
	Next(ctx context.Context) bool
	Decode(val interface{}) error
	Err() error
	Close(ctx context.Context) error
}

type watchFunc func(ctx context.Context, table string, pipeline mongo.Pipeline, opts *options.ChangeStreamOptions) (changeStream, error)

type MongoTransport struct {
	log     *zap.Logger
	backoff time.Duration
	maxWait time.Duration
	watch   watchFunc

	mu       sync.Mutex
	onReconn []func()
}

// NewMongoTransport builds a transport over the given database.
func NewMongoTransport(db *mongo.Database, backoff, maxWait time.Duration, log *zap.Logger) *MongoTransport {
	if log == nil {
		log = zap.NewNop()
	}
	return &MongoTransport{
		log:     log.Named("cdc"),
		backoff: backoff,
		maxWait: maxWait,
		watch: func(ctx context.Context, table string, pipeline mongo.Pipeline, opts *options.ChangeStreamOptions) (changeStream, error) {
			return db.Collection(table).Watch(ctx, pipeline, opts)
		},
	}
}

// OnReconnect registers a callback fired after a non-resumable stream is
// reopened.
func (t *MongoTransport) OnReconnect(cb func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onReconn = append(t.onReconn, cb)
}

func (t *MongoTransport) fireReconnect() {
	t.mu.Lock()
	cbs := make([]func(), len(t.onReconn))
	copy(cbs, t.onReconn)
	t.mu.Unlock()
	for _, cb := range cbs {
		cb()
	}
}

// Subscribe opens a filtered change stream on the subscription's table and
// pumps decoded events to the handler in delivery order.
func (t *MongoTransport) Subscribe(sub Subscription, h EventHandler) (CancelFunc, error) {
	ctx, cancel := context.WithCancel(context.Background())
	go t.run(ctx, sub, h)
	return CancelFunc(cancel), nil
}

// run keeps one stream alive until the subscription is cancelled. The
// reconnect hooks fire only when a previously established stream is
// reopened: the first open of a fresh subscription is ordinary setup, not a
// lost resume window.
func (t *MongoTransport) run(ctx context.Context, sub Subscription, h EventHandler) {
	wait := t.backoff
	established := false
	for ctx.Err() == nil {
		opened, err := t.pump(ctx, sub, h, established)
		if opened {
			established = true
			wait = t.backoff
		}
		if ctx.Err() != nil {
			return
		}
		t.log.Warn("change stream interrupted, reopening",
			zap.String("table", sub.Table),
			zap.Duration("backoff", wait),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		if wait *= 2; wait > t.maxWait {
			wait = t.maxWait
		}
	}
}

// changeDoc is the subset of the change stream document we decode.
type changeDoc struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID primitive.ObjectID `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument bson.M `bson:"fullDocument"`
}

func (t *MongoTransport) pump(ctx context.Context, sub Subscription, h EventHandler, reopened bool) (bool, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: t.matchStage(sub)}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	stream, err := t.watch(ctx, sub.Table, pipeline, opts)
	if err != nil {
		return false, err
	}
	defer stream.Close(context.Background())

	if reopened {
		// A fresh stream after losing an established one means the resume
		// window may have been lost; let the registry rebuild so no set
		// drifts out of scope.
		t.fireReconnect()
	}

	for stream.Next(ctx) {
		var doc changeDoc
		if err := stream.Decode(&doc); err != nil {
			t.log.Warn("change event decode failed",
				zap.String("table", sub.Table),
				zap.Error(err))
			continue
		}
		ev := decodeEvent(sub.Table, doc)
		if !sub.WantsType(ev.Type) {
			continue
		}
		h(ev)
	}
	return true, stream.Err()
}

// matchStage builds the server-side filter: operation type plus the rule's
// row predicate. Deletes carry no fullDocument, so the row filter matches
// documentKey for _id-scoped rules and is skipped otherwise (the handler's
// invalidation is idempotent, an occasional unmatched delete is harmless).
func (t *MongoTransport) matchStage(sub Subscription) bson.M {
	match := bson.M{}

	if len(sub.Events) > 0 {
		types := make([]string, len(sub.Events))
		for i, e := range sub.Events {
			types[i] = string(e)
		}
		match["operationType"] = bson.M{"$in": types}
	}

	if sub.Filter.Field == "_id" {
		match["documentKey._id"] = sub.Filter.Value
	} else {
		match["$or"] = bson.A{
			bson.M{"fullDocument." + sub.Filter.Field: sub.Filter.Value},
			bson.M{"fullDocument": bson.M{"$exists": false}},
		}
	}
	return match
}

func decodeEvent(table string, doc changeDoc) Event {
	ev := Event{
		Table:      table,
		DocumentID: doc.DocumentKey.ID,
		Fields:     map[string]primitive.ObjectID{"_id": doc.DocumentKey.ID},
	}
	switch doc.OperationType {
	case "insert":
		ev.Type = EventInsert
	case "delete":
		ev.Type = EventDelete
	default:
		ev.Type = EventUpdate
	}
	for k, v := range doc.FullDocument {
		if id, ok := v.(primitive.ObjectID); ok {
			ev.Fields[k] = id
		}
	}
	return ev
}
