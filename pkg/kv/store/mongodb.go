package store

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/datazip-inc/kvrdd/constants"
	"github.com/datazip-inc/kvrdd/types"
	"github.com/datazip-inc/kvrdd/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type MongoConfig struct {
	Hosts      []string `json:"hosts" validate:"required,min=1"`
	Username   string   `json:"username"`
	Password   string   `json:"password"`
	AuthDB     string   `json:"authdb"`
	ReplicaSet string   `json:"replica_set"`
	Srv        bool     `json:"srv"`
	Database   string   `json:"database" validate:"required"`
}

func (c *MongoConfig) URI() string {
	connectionPrefix := utils.Ternary(c.Srv, "mongodb+srv", "mongodb").(string)

	query := url.Values{}
	if c.AuthDB != "" {
		query.Set("authSource", c.AuthDB)
	}
	if c.ReplicaSet != "" {
		query.Set("replicaSet", c.ReplicaSet)
	}

	u := &url.URL{
		Scheme:   connectionPrefix,
		Host:     strings.Join(c.Hosts, ","),
		Path:     "/",
		RawQuery: query.Encode(),
	}
	if c.Username != "" {
		u.User = utils.Ternary(c.Password != "", url.UserPassword(c.Username, c.Password), url.User(c.Username)).(*url.Userinfo)
	}
	return u.String()
}

// Mongo keeps one collection per bucket, keyed by _id
type Mongo struct {
	client   *mongo.Client
	database *mongo.Database
}

type mongoDocument struct {
	Key          string           `bson:"_id"`
	ContentType  string           `bson:"content_type"`
	Value        []byte           `bson:"value"`
	Indexes      map[string]int64 `bson:"indexes,omitempty"`
	LastModified time.Time        `bson:"last_modified"`
}

func (d mongoDocument) toObject(bucket string) types.Object {
	return types.Object{
		Bucket:       bucket,
		Key:          d.Key,
		ContentType:  d.ContentType,
		Value:        d.Value,
		Indexes:      d.Indexes,
		LastModified: d.LastModified.UTC(),
	}
}

func NewMongo(ctx context.Context, config *MongoConfig) (*Mongo, error) {
	opts := options.Client().ApplyURI(config.URI()).SetConnectTimeout(constants.DefaultConnectTimeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %s", err)
	}
	return &Mongo{client: client, database: client.Database(config.Database)}, nil
}

func (m *Mongo) Type() constants.StoreType {
	return constants.MongoDB
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) Put(ctx context.Context, obj types.Object) error {
	for index := range obj.Indexes {
		if err := validateIndexName(index); err != nil {
			return err
		}
	}
	if obj.LastModified.IsZero() {
		obj.LastModified = time.Now().UTC()
	}

	doc := mongoDocument{
		Key:          obj.Key,
		ContentType:  obj.ContentType,
		Value:        obj.Value,
		Indexes:      obj.Indexes,
		LastModified: obj.LastModified,
	}
	_, err := m.database.Collection(obj.Bucket).ReplaceOne(ctx, bson.M{constants.MongoPrimaryID: obj.Key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert object[%s/%s]: %s", obj.Bucket, obj.Key, err)
	}
	return nil
}

func (m *Mongo) IndexRange(ctx context.Context, bucket, index string, from, to int64, fn ObjectFn) error {
	if err := validateIndexName(index); err != nil {
		return err
	}

	field := "indexes." + index
	filter := bson.D{{Key: field, Value: bson.D{{Key: "$gte", Value: from}, {Key: "$lte", Value: to}}}}
	opts := options.Find().SetSort(bson.D{{Key: field, Value: 1}, {Key: constants.MongoPrimaryID, Value: 1}})

	cursor, err := m.database.Collection(bucket).Find(ctx, filter, opts)
	if err != nil {
		return fmt.Errorf("failed to query index[%s] of bucket[%s]: %s", index, bucket, err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc mongoDocument
		if err := cursor.Decode(&doc); err != nil {
			return fmt.Errorf("failed to decode document of bucket[%s]: %s", bucket, err)
		}
		if err := fn(doc.toObject(bucket)); err != nil {
			return err
		}
	}
	return cursor.Err()
}

func (m *Mongo) Fetch(ctx context.Context, bucket string, keys []string, fn ObjectFn) error {
	if len(keys) == 0 {
		return nil
	}

	cursor, err := m.database.Collection(bucket).Find(ctx, bson.M{constants.MongoPrimaryID: bson.M{"$in": keys}})
	if err != nil {
		return fmt.Errorf("failed to fetch keys of bucket[%s]: %s", bucket, err)
	}
	var docs []mongoDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return fmt.Errorf("failed to decode documents of bucket[%s]: %s", bucket, err)
	}

	found := make(map[string]types.Object, len(docs))
	for _, doc := range docs {
		found[doc.Key] = doc.toObject(bucket)
	}
	return emitInOrder(keys, found, fn)
}

func (m *Mongo) ListKeys(ctx context.Context, bucket string) ([]string, error) {
	opts := options.Find().
		SetProjection(bson.M{constants.MongoPrimaryID: 1}).
		SetSort(bson.M{constants.MongoPrimaryID: 1})
	cursor, err := m.database.Collection(bucket).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys of bucket[%s]: %s", bucket, err)
	}
	defer cursor.Close(ctx)

	var keys []string
	for cursor.Next(ctx) {
		var doc struct {
			Key string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode key of bucket[%s]: %s", bucket, err)
		}
		keys = append(keys, doc.Key)
	}
	return keys, cursor.Err()
}

func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultConnectTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}
