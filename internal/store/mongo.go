package store

import (
	"context"
	"fmt"
	"time"

	"islatel/internal/config"
	"islatel/internal/domain"
	"islatel/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	collGuests    = "guests"
	collFollowUps = "followUps"

	opTimeout    = 10 * time.Second
	watchBackoff = time.Second
	watchMaxWait = 30 * time.Second
)

// listCollections is the dispatch table from list kind to collection name.
var listCollections = map[domain.ListKind]string{
	domain.ListProducts: "products",
	domain.ListChannels: "channels",
	domain.ListStaff:    "staff",
}

// Connect opens a client and verifies the connection with a ping.
func Connect(ctx context.Context, cfg config.StoreConfig) (*mongo.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to store: %w", err)
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	defer cancelPing()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping store: %w", err)
	}

	return client, nil
}

// Mongo adapts a MongoDB database to the RecordStore interface. Subscriptions
// reload and republish the FULL collection on every change-stream event; when
// change streams are unavailable the loop degrades to polling.
type Mongo struct {
	db     *mongo.Database
	logger *zerolog.Logger
}

func NewMongo(db *mongo.Database, logger *zerolog.Logger) *Mongo {
	return &Mongo{db: db, logger: logger}
}

type listDoc struct {
	ID   interface{} `bson:"_id,omitempty"`
	Name string      `bson:"name"`
}

func (s *Mongo) SubscribeGuests(ctx context.Context, onSnapshot func([]models.Guest), onError func(error)) {
	s.watch(ctx, collGuests, func(coll *mongo.Collection) error {
		guests, err := loadAll[models.Guest](ctx, coll)
		if err != nil {
			return err
		}
		onSnapshot(guests)
		return nil
	}, onError)
}

func (s *Mongo) SubscribeFollowUps(ctx context.Context, onSnapshot func([]models.FollowUp), onError func(error)) {
	s.watch(ctx, collFollowUps, func(coll *mongo.Collection) error {
		followUps, err := loadAll[models.FollowUp](ctx, coll)
		if err != nil {
			return err
		}
		onSnapshot(followUps)
		return nil
	}, onError)
}

func (s *Mongo) SubscribeList(ctx context.Context, kind domain.ListKind, onSnapshot func([]string), onError func(error)) {
	s.watch(ctx, listCollections[kind], func(coll *mongo.Collection) error {
		docs, err := loadAll[listDoc](ctx, coll)
		if err != nil {
			return err
		}
		values := make([]string, 0, len(docs))
		for _, d := range docs {
			values = append(values, d.Name)
		}
		onSnapshot(values)
		return nil
	}, onError)
}

func (s *Mongo) InsertGuest(ctx context.Context, guest *models.Guest) (string, error) {
	stored := *guest
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if _, err := s.db.Collection(collGuests).InsertOne(opCtx, stored); err != nil {
		return "", fmt.Errorf("insert guest: %w", err)
	}
	return stored.ID, nil
}

func (s *Mongo) UpdateGuest(ctx context.Context, id string, guest *models.Guest) error {
	stored := *guest
	stored.ID = id

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	// Upsert keeps journal replays idempotent.
	_, err := s.db.Collection(collGuests).ReplaceOne(
		opCtx,
		bson.M{"_id": id},
		stored,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("update guest %s: %w", id, err)
	}
	return nil
}

func (s *Mongo) DeleteGuest(ctx context.Context, id string) error {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if _, err := s.db.Collection(collGuests).DeleteOne(opCtx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete guest %s: %w", id, err)
	}
	return nil
}

func (s *Mongo) InsertFollowUp(ctx context.Context, fu *models.FollowUp) (string, error) {
	stored := *fu
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if _, err := s.db.Collection(collFollowUps).InsertOne(opCtx, stored); err != nil {
		return "", fmt.Errorf("insert follow-up: %w", err)
	}
	return stored.ID, nil
}

func (s *Mongo) UpdateFollowUp(ctx context.Context, id string, fu *models.FollowUp) error {
	stored := *fu
	stored.ID = id

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := s.db.Collection(collFollowUps).ReplaceOne(
		opCtx,
		bson.M{"_id": id},
		stored,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("update follow-up %s: %w", id, err)
	}
	return nil
}

func (s *Mongo) AddListValue(ctx context.Context, kind domain.ListKind, value string) error {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := s.db.Collection(listCollections[kind]).InsertOne(opCtx, listDoc{Name: value})
	if err != nil {
		return fmt.Errorf("add %s value: %w", kind, err)
	}
	return nil
}

// RemoveListValue lists the collection once to find the document carrying the
// value, then deletes it by id. List entries have no identity beyond their
// value, so the first match wins.
func (s *Mongo) RemoveListValue(ctx context.Context, kind domain.ListKind, value string) error {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	coll := s.db.Collection(listCollections[kind])
	docs, err := loadAll[listDoc](opCtx, coll)
	if err != nil {
		return fmt.Errorf("list %s: %w", kind, err)
	}

	for _, d := range docs {
		if d.Name == value {
			if _, err := coll.DeleteOne(opCtx, bson.M{"_id": d.ID}); err != nil {
				return fmt.Errorf("remove %s value: %w", kind, err)
			}
			return nil
		}
	}
	return ErrNotFound
}

func loadAll[T any](ctx context.Context, coll *mongo.Collection) ([]T, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	cursor, err := coll.Find(opCtx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(opCtx)

	var out []T
	if err := cursor.All(opCtx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// watch republishes the full collection on start and after every change
// event. Errors are reported and retried with capped backoff; the loop exits
// when ctx is cancelled.
func (s *Mongo) watch(ctx context.Context, name string, publish func(*mongo.Collection) error, onError func(error)) {
	go func() {
		coll := s.db.Collection(name)
		wait := watchBackoff

		for {
			if ctx.Err() != nil {
				return
			}

			if err := publish(coll); err != nil {
				onError(err)
				if !sleep(ctx, wait) {
					return
				}
				wait = nextWait(wait)
				continue
			}
			wait = watchBackoff

			stream, err := coll.Watch(ctx, mongo.Pipeline{})
			if err != nil {
				// No change streams on this deployment; poll instead.
				s.logger.Debug().Err(err).Str("collection", name).Msg("change stream unavailable, polling")
				if !sleep(ctx, watchMaxWait) {
					return
				}
				continue
			}

			for stream.Next(ctx) {
				if err := publish(coll); err != nil {
					onError(err)
				}
			}
			streamErr := stream.Err()
			_ = stream.Close(context.Background())

			if ctx.Err() != nil {
				return
			}
			if streamErr != nil {
				onError(streamErr)
			}
			if !sleep(ctx, wait) {
				return
			}
			wait = nextWait(wait)
		}
	}()
}

func nextWait(wait time.Duration) time.Duration {
	wait *= 2
	if wait > watchMaxWait {
		wait = watchMaxWait
	}
	return wait
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
