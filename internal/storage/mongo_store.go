package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig настройки подключения к MongoDB
type MongoConfig struct {
	URI        string // mongodb://localhost:27017
	Database   string
	Collection string
	Counters   string // Коллекция счётчиков для ID
}

// MongoStore хранит миры в коллекции MongoDB
type MongoStore struct {
	client      *mongo.Client
	collection  *mongo.Collection
	counterColl *mongo.Collection
}

type worldDoc struct {
	ID        uint32    `bson:"world_id"`
	Name      string    `bson:"name"`
	Data      []byte    `bson:"data"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// NewMongoStore подключается к MongoDB и создаёт индексы
func NewMongoStore(cfg MongoConfig) (*MongoStore, error) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "tileworld"
	}
	if cfg.Collection == "" {
		cfg.Collection = "worlds"
	}
	if cfg.Counters == "" {
		cfg.Counters = "counters"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}

	db := client.Database(cfg.Database)
	s := &MongoStore{
		client:      client,
		collection:  db.Collection(cfg.Collection),
		counterColl: db.Collection(cfg.Counters),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	nameIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("name_unique"),
	}
	idIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "world_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("worldid_unique"),
	}
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{nameIdx, idIdx})
	return err
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (Record, error) {
	var doc worldDoc
	err := s.collection.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Record{}, ErrWorldNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return Record{ID: doc.ID, Name: doc.Name, Data: doc.Data, UpdatedAt: doc.UpdatedAt}, nil
}

func (s *MongoStore) Get(ctx context.Context, name string) (Record, error) {
	return s.findOne(ctx, bson.M{"name": name})
}

func (s *MongoStore) GetByID(ctx context.Context, id uint32) (Record, error) {
	return s.findOne(ctx, bson.M{"world_id": id})
}

func (s *MongoStore) Put(ctx context.Context, rec Record) error {
	doc := worldDoc{ID: rec.ID, Name: rec.Name, Data: rec.Data, UpdatedAt: rec.UpdatedAt}
	_, err := s.collection.ReplaceOne(ctx, bson.M{"world_id": rec.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save world %s: %w", rec.Name, err)
	}
	return nil
}

// NextID атомарно увеличивает счётчик worldid
func (s *MongoStore) NextID(ctx context.Context) (uint32, error) {
	res := s.counterColl.FindOneAndUpdate(ctx,
		bson.M{"_id": "worldid"},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	if err := res.Decode(&doc); err != nil {
		return 0, err
	}
	return uint32(doc.Seq), nil
}

// Close закрывает соединение
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
