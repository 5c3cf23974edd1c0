package orm

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoPort implements Port over go.mongodb.org/mongo-driver, compiling the
// shared predicate tree to bson.M via CompileMongo instead of hand-rolling
// filters per call site.
type MongoPort struct {
	database *mongo.Database
}

// NewMongoPort wraps an already-connected *mongo.Database.
func NewMongoPort(database *mongo.Database) *MongoPort {
	return &MongoPort{database: database}
}

func (p *MongoPort) coll(table string) *mongo.Collection { return p.database.Collection(table) }

func (p *MongoPort) FindFirst(ctx context.Context, table string, opts FindFirstOptions) (Row, error) {
	filter := CompileMongo(resolveWhere(opts.Where))
	var row bson.M
	err := p.coll(table).FindOne(ctx, filter).Decode(&row)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("orm: findFirst %s: %w", table, err)
	}
	return Row(row), nil
}

func (p *MongoPort) FindMany(ctx context.Context, table string, opts FindManyOptions) ([]Row, error) {
	filter := CompileMongo(resolveWhere(opts.Where))
	findOpts := options.Find()
	if len(opts.OrderBy) > 0 {
		sort := bson.D{}
		for _, o := range opts.OrderBy {
			dir := 1
			if o.Desc {
				dir = -1
			}
			sort = append(sort, bson.E{Key: o.Column, Value: dir})
		}
		findOpts.SetSort(sort)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	cursor, err := p.coll(table).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("orm: findMany %s: %w", table, err)
	}
	defer cursor.Close(ctx)
	var result []Row
	for cursor.Next(ctx) {
		var row bson.M
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("orm: findMany %s: decode: %w", table, err)
		}
		result = append(result, Row(row))
	}
	return result, cursor.Err()
}

func (p *MongoPort) Create(ctx context.Context, table string, values Row) (Row, error) {
	doc := bson.M(values)
	res, err := p.coll(table).InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("orm: create %s: %w", table, err)
	}
	doc["_id"] = res.InsertedID
	return Row(doc), nil
}

func (p *MongoPort) UpdateMany(ctx context.Context, table string, opts UpdateManyOptions) (int64, error) {
	filter := CompileMongo(resolveWhere(opts.Where))
	update := bson.M{"$set": bson.M(opts.Set)}
	res, err := p.coll(table).UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("orm: updateMany %s: %w", table, err)
	}
	return res.ModifiedCount, nil
}

func (p *MongoPort) DeleteMany(ctx context.Context, table string, opts DeleteManyOptions) (int64, error) {
	filter := CompileMongo(resolveWhere(opts.Where))
	res, err := p.coll(table).DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("orm: deleteMany %s: %w", table, err)
	}
	return res.DeletedCount, nil
}

func (p *MongoPort) Count(ctx context.Context, table string, opts CountOptions) (int64, error) {
	filter := CompileMongo(resolveWhere(opts.Where))
	count, err := p.coll(table).CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("orm: count %s: %w", table, err)
	}
	return count, nil
}

func (p *MongoPort) Upsert(ctx context.Context, table string, opts UpsertOptions) (Row, error) {
	return GenericUpsert(ctx, p, table, opts)
}
