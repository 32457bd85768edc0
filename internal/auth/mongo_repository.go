package auth

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/annel0/tileworld/internal/world"
)

// MongoConfig параметры подключения хранилища учётных записей
type MongoConfig struct {
	URI        string // mongodb://localhost:27017
	Database   string
	Collection string
	Counters   string // Коллекция счётчиков для выдачи ID
}

// MongoUserRepo UserRepository поверх MongoDB
type MongoUserRepo struct {
	client      *mongo.Client
	collection  *mongo.Collection
	counterColl *mongo.Collection
}

type userDoc struct {
	UserID       int32     `bson:"user_id"`
	Username     string    `bson:"username"`
	Display      string    `bson:"display"`
	PasswordHash string    `bson:"password_hash"`
	Role         uint8     `bson:"role"`
	CreatedAt    time.Time `bson:"created_at"`
	LastLogin    time.Time `bson:"last_login"`
}

func (d *userDoc) user() *User {
	return &User{
		ID:           d.UserID,
		Username:     d.Display,
		PasswordHash: d.PasswordHash,
		Role:         world.Role(d.Role),
		CreatedAt:    d.CreatedAt,
		LastLogin:    d.LastLogin,
	}
}

// NewMongoUserRepo подключается к MongoDB и создаёт индексы
func NewMongoUserRepo(ctx context.Context, cfg MongoConfig) (*MongoUserRepo, error) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "tileworld"
	}
	if cfg.Collection == "" {
		cfg.Collection = "users"
	}
	if cfg.Counters == "" {
		cfg.Counters = "counters"
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	db := client.Database(cfg.Database)
	repo := &MongoUserRepo{
		client:      client,
		collection:  db.Collection(cfg.Collection),
		counterColl: db.Collection(cfg.Counters),
	}
	if err := repo.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return repo, nil
}

func (m *MongoUserRepo) ensureIndexes(ctx context.Context) error {
	usernameIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("username_unique"),
	}
	userIDIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("userid_unique"),
	}
	_, err := m.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{usernameIdx, userIDIdx})
	return err
}

func (m *MongoUserRepo) findOne(ctx context.Context, filter bson.M) (*User, error) {
	var doc userDoc
	err := m.collection.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.user(), nil
}

func (m *MongoUserRepo) GetUserByName(ctx context.Context, username string) (*User, error) {
	return m.findOne(ctx, bson.M{"username": normalize(username)})
}

func (m *MongoUserRepo) GetUserByID(ctx context.Context, id int32) (*User, error) {
	return m.findOne(ctx, bson.M{"user_id": id})
}

func (m *MongoUserRepo) CreateUser(ctx context.Context, username, passwordHash string, role world.Role) (*User, error) {
	id, err := m.nextSequence(ctx, "userid")
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	doc := userDoc{
		UserID:       id,
		Username:     normalize(username),
		Display:      username,
		PasswordHash: passwordHash,
		Role:         uint8(role),
		CreatedAt:    now,
		LastLogin:    now,
	}
	_, err = m.collection.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return nil, ErrUserExists
	}
	if err != nil {
		return nil, err
	}
	return doc.user(), nil
}

func (m *MongoUserRepo) TouchLogin(ctx context.Context, id int32, at time.Time) error {
	res, err := m.collection.UpdateOne(ctx, bson.M{"user_id": id}, bson.M{"$set": bson.M{"last_login": at.UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

// nextSequence атомарно увеличивает счётчик и возвращает новое значение
func (m *MongoUserRepo) nextSequence(ctx context.Context, name string) (int32, error) {
	res := m.counterColl.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	if err := res.Decode(&doc); err != nil {
		return 0, err
	}
	return int32(doc.Seq), nil
}

func (m *MongoUserRepo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
