package store

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/datazip-inc/kvrdd/constants"
	"github.com/datazip-inc/kvrdd/types"
	"github.com/datazip-inc/kvrdd/utils"
	"github.com/datazip-inc/kvrdd/utils/logger"
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS kv_objects (
	bucket        TEXT        NOT NULL,
	key           TEXT        NOT NULL,
	content_type  TEXT        NOT NULL DEFAULT '',
	value         BYTEA,
	last_modified TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (bucket, key)
);
CREATE TABLE IF NOT EXISTS kv_indexes (
	bucket     TEXT   NOT NULL,
	key        TEXT   NOT NULL,
	index_name TEXT   NOT NULL,
	int_value  BIGINT NOT NULL,
	PRIMARY KEY (bucket, key, index_name),
	FOREIGN KEY (bucket, key) REFERENCES kv_objects (bucket, key) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS kv_indexes_range ON kv_indexes (bucket, index_name, int_value);
`

const (
	tableObjects    = "kv_objects"
	tableIndexes    = "kv_indexes"
	colBucket       = "bucket"
	colKey          = "key"
	colContentType  = "content_type"
	colValue        = "value"
	colLastModified = "last_modified"
	colIndexName    = "index_name"
	colIntValue     = "int_value"
)

var postgresDialect = goqu.Dialect("postgres")

type PostgresConfig struct {
	Host           string `json:"host" validate:"required"`
	Port           int    `json:"port" validate:"required,gt=0,lte=65535"`
	Database       string `json:"database" validate:"required"`
	Username       string `json:"username" validate:"required"`
	Password       string `json:"password"`
	SSLMode        string `json:"ssl_mode" validate:"omitempty,oneof=disable require verify-ca verify-full"`
	MaxConnections int    `json:"max_connections" validate:"gte=0"`
}

func (c *PostgresConfig) URI() string {
	query := url.Values{}
	query.Set("sslmode", utils.Ternary(c.SSLMode == "", "disable", c.SSLMode).(string))

	u := &url.URL{
		Scheme:   "postgres",
		User:     utils.Ternary(c.Password != "", url.UserPassword(c.Username, c.Password), url.User(c.Username)).(*url.Userinfo),
		Host:     c.Host + ":" + strconv.Itoa(c.Port),
		Path:     "/" + c.Database,
		RawQuery: query.Encode(),
	}
	return u.String()
}

// Postgres stores objects in kv_objects and their indexes in kv_indexes
type Postgres struct {
	client *sqlx.DB
}

type objectRow struct {
	Bucket       string    `db:"bucket"`
	Key          string    `db:"key"`
	ContentType  string    `db:"content_type"`
	Value        []byte    `db:"value"`
	LastModified time.Time `db:"last_modified"`
}

type indexRow struct {
	Key       string `db:"key"`
	IndexName string `db:"index_name"`
	IntValue  int64  `db:"int_value"`
}

func NewPostgres(ctx context.Context, config *PostgresConfig) (*Postgres, error) {
	client, err := sqlx.Open("postgres", config.URI())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %s", err)
	}
	if config.MaxConnections > 0 {
		client.SetMaxOpenConns(config.MaxConnections)
	}

	if _, err := client.ExecContext(ctx, postgresSchema); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to create kv tables: %s", err)
	}
	return &Postgres{client: client}, nil
}

func (p *Postgres) Type() constants.StoreType {
	return constants.Postgres
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.client.PingContext(ctx)
}

func (p *Postgres) Put(ctx context.Context, obj types.Object) error {
	for index := range obj.Indexes {
		if err := validateIndexName(index); err != nil {
			return err
		}
	}
	if obj.LastModified.IsZero() {
		obj.LastModified = time.Now().UTC()
	}

	upsert := postgresDialect.Insert(tableObjects).Prepared(true).
		Rows(goqu.Record{
			colBucket:       obj.Bucket,
			colKey:          obj.Key,
			colContentType:  obj.ContentType,
			colValue:        obj.Value,
			colLastModified: obj.LastModified,
		}).
		OnConflict(goqu.DoUpdate(colBucket+", "+colKey, goqu.Record{
			colContentType:  goqu.L("EXCLUDED." + colContentType),
			colValue:        goqu.L("EXCLUDED." + colValue),
			colLastModified: goqu.L("EXCLUDED." + colLastModified),
		}))
	clearIndexes := postgresDialect.Delete(tableIndexes).Prepared(true).
		Where(goqu.Ex{colBucket: obj.Bucket, colKey: obj.Key})

	tx, err := p.client.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %s", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := execStatement(ctx, tx, upsert); err != nil {
		return fmt.Errorf("failed to upsert object[%s/%s]: %s", obj.Bucket, obj.Key, err)
	}
	if err := execStatement(ctx, tx, clearIndexes); err != nil {
		return fmt.Errorf("failed to clear indexes of object[%s/%s]: %s", obj.Bucket, obj.Key, err)
	}
	if len(obj.Indexes) > 0 {
		rows := make([]any, 0, len(obj.Indexes))
		for index, value := range obj.Indexes {
			rows = append(rows, goqu.Record{colBucket: obj.Bucket, colKey: obj.Key, colIndexName: index, colIntValue: value})
		}
		if err := execStatement(ctx, tx, postgresDialect.Insert(tableIndexes).Prepared(true).Rows(rows...)); err != nil {
			return fmt.Errorf("failed to insert indexes of object[%s/%s]: %s", obj.Bucket, obj.Key, err)
		}
	}
	return tx.Commit()
}

func (p *Postgres) IndexRange(ctx context.Context, bucket, index string, from, to int64, fn ObjectFn) error {
	if err := validateIndexName(index); err != nil {
		return err
	}

	query := postgresDialect.From(goqu.T(tableObjects).As("o")).
		Join(goqu.T(tableIndexes).As("i"), goqu.On(
			goqu.I("i."+colBucket).Eq(goqu.I("o."+colBucket)),
			goqu.I("i."+colKey).Eq(goqu.I("o."+colKey)),
		)).
		Select(goqu.I("o."+colBucket), goqu.I("o."+colKey), goqu.I("o."+colContentType), goqu.I("o."+colValue), goqu.I("o."+colLastModified)).
		Where(
			goqu.I("i."+colBucket).Eq(bucket),
			goqu.I("i."+colIndexName).Eq(index),
			goqu.I("i."+colIntValue).Between(goqu.Range(from, to)),
		).
		Order(goqu.I("i."+colIntValue).Asc(), goqu.I("o."+colKey).Asc())

	var rows []objectRow
	if err := p.selectPrepared(ctx, &rows, query); err != nil {
		return fmt.Errorf("failed to query index[%s] of bucket[%s]: %s", index, bucket, err)
	}

	objects, err := p.withIndexes(ctx, bucket, rows)
	if err != nil {
		return err
	}
	for _, obj := range objects {
		if err := fn(obj); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) Fetch(ctx context.Context, bucket string, keys []string, fn ObjectFn) error {
	if len(keys) == 0 {
		return nil
	}

	query := postgresDialect.From(tableObjects).
		Select(colBucket, colKey, colContentType, colValue, colLastModified).
		Where(goqu.C(colBucket).Eq(bucket), goqu.L(colKey+" = ANY(?)", pq.Array(keys)))

	var rows []objectRow
	if err := p.selectPrepared(ctx, &rows, query); err != nil {
		return fmt.Errorf("failed to fetch keys of bucket[%s]: %s", bucket, err)
	}

	objects, err := p.withIndexes(ctx, bucket, rows)
	if err != nil {
		return err
	}
	found := make(map[string]types.Object, len(objects))
	for _, obj := range objects {
		found[obj.Key] = obj
	}
	return emitInOrder(keys, found, fn)
}

func (p *Postgres) ListKeys(ctx context.Context, bucket string) ([]string, error) {
	query := postgresDialect.From(tableObjects).
		Select(colKey).
		Where(goqu.C(colBucket).Eq(bucket)).
		Order(goqu.C(colKey).Asc())

	var keys []string
	if err := p.selectPrepared(ctx, &keys, query); err != nil {
		return nil, fmt.Errorf("failed to list keys of bucket[%s]: %s", bucket, err)
	}
	return keys, nil
}

func (p *Postgres) Close() error {
	return p.client.Close()
}

// withIndexes loads the indexes of rows and converts them to objects
func (p *Postgres) withIndexes(ctx context.Context, bucket string, rows []objectRow) ([]types.Object, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, row.Key)
	}

	query := postgresDialect.From(tableIndexes).
		Select(colKey, colIndexName, colIntValue).
		Where(goqu.C(colBucket).Eq(bucket), goqu.L(colKey+" = ANY(?)", pq.Array(keys)))

	var indexes []indexRow
	if err := p.selectPrepared(ctx, &indexes, query); err != nil {
		return nil, fmt.Errorf("failed to load indexes of bucket[%s]: %s", bucket, err)
	}

	byKey := make(map[string]map[string]int64)
	for _, index := range indexes {
		if byKey[index.Key] == nil {
			byKey[index.Key] = make(map[string]int64)
		}
		byKey[index.Key][index.IndexName] = index.IntValue
	}

	objects := make([]types.Object, 0, len(rows))
	for _, row := range rows {
		objects = append(objects, types.Object{
			Bucket:       row.Bucket,
			Key:          row.Key,
			ContentType:  row.ContentType,
			Value:        row.Value,
			Indexes:      byKey[row.Key],
			LastModified: row.LastModified.UTC(),
		})
	}
	logger.Debugf("postgres: loaded %d objects of bucket[%s]", len(objects), bucket)
	return objects, nil
}

func (p *Postgres) selectPrepared(ctx context.Context, dest any, query *goqu.SelectDataset) error {
	sqlQuery, args, err := query.Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build query: %s", err)
	}
	return p.client.SelectContext(ctx, dest, sqlQuery, args...)
}

type statement interface {
	ToSQL() (string, []any, error)
}

func execStatement(ctx context.Context, tx *sqlx.Tx, stmt statement) error {
	sqlQuery, args, err := stmt.ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build statement: %s", err)
	}
	_, err = tx.ExecContext(ctx, sqlQuery, args...)
	return err
}
