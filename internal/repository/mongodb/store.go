package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mamadbah2/fieldtrack/internal/docstore"
)

// Store implements docstore.Store on MongoDB. Documents use the provider
// generated hex ObjectID as a string _id.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

// NewStore connects to MongoDB and verifies the connection.
func NewStore(ctx context.Context, uri string, dbName string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &Store{
		client: client,
		db:     client.Database(dbName),
		logger: logger,
	}, nil
}

// Database exposes the underlying database handle.
func (s *Store) Database() *mongo.Database {
	return s.db
}

// EnsureIndexes creates the indexes backing every query the services issue.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		docstore.Farmers: {
			{Keys: bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}},
			{Keys: bson.D{{Key: "crops.id", Value: 1}}},
		},
		docstore.Visits: {
			{Keys: bson.D{{Key: "farmerId", Value: 1}, {Key: "date", Value: -1}}},
			{Keys: bson.D{{Key: "crop.id", Value: 1}, {Key: "date", Value: -1}}},
		},
		docstore.Purchases: {
			{Keys: bson.D{{Key: "farmerId", Value: 1}, {Key: "date", Value: -1}}},
			{Keys: bson.D{{Key: "crop.id", Value: 1}, {Key: "date", Value: -1}}},
		},
		docstore.Crops: {
			{Keys: bson.D{{Key: "name", Value: 1}}},
		},
		docstore.Users: {
			{Keys: bson.D{{Key: "phone", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}

	for collection, models := range specs {
		if _, err := s.db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", collection, err)
		}
	}

	s.logger.Info("mongodb indexes ensured")
	return nil
}

func (s *Store) Create(ctx context.Context, collection string, doc docstore.Document) (string, error) {
	id := primitive.NewObjectID().Hex()

	record := bson.M{}
	for k, v := range doc {
		record[k] = v
	}
	record["_id"] = id

	if _, err := s.db.Collection(collection).InsertOne(ctx, record); err != nil {
		return "", fmt.Errorf("failed to insert into %s: %w", collection, err)
	}
	return id, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	var m bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s/%s: %w", collection, id, err)
	}

	delete(m, "_id")
	return docstore.Normalize(docstore.Document(m)), nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Document) error {
	set := bson.M{}
	for k, v := range fields {
		if k == "_id" {
			continue
		}
		set[k] = v
	}

	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	return nil
}

func (s *Store) Increment(ctx context.Context, collection, id string, deltas map[string]float64) error {
	inc := bson.M{}
	for k, v := range deltas {
		inc[k] = v
	}

	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": inc})
	if err != nil {
		return fmt.Errorf("failed to increment %s/%s: %w", collection, id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, q docstore.Query) (docstore.Page, error) {
	filter, err := buildFilter(q)
	if err != nil {
		return docstore.Page{}, err
	}

	direction := 1
	if q.Descending {
		direction = -1
	}
	orderField := q.OrderField()

	sort := bson.D{}
	if orderField != "" {
		sort = append(sort, bson.E{Key: orderField, Value: direction})
	}
	sort = append(sort, bson.E{Key: "_id", Value: direction})

	findOptions := options.Find().SetSort(sort)
	if q.Limit > 0 {
		// one extra record tells whether another page exists
		findOptions.SetLimit(int64(q.Limit) + 1)
	}

	cur, err := s.db.Collection(q.Collection).Find(ctx, filter, findOptions)
	if err != nil {
		return docstore.Page{}, fmt.Errorf("failed to query %s: %w", q.Collection, err)
	}
	defer func() { _ = cur.Close(ctx) }()

	var page docstore.Page
	for cur.Next(ctx) {
		if q.Limit > 0 && len(page.Docs) == q.Limit {
			page.HasMore = true
			break
		}

		var m bson.M
		if err := cur.Decode(&m); err != nil {
			return docstore.Page{}, fmt.Errorf("failed to decode %s record: %w", q.Collection, err)
		}
		id, _ := m["_id"].(string)
		delete(m, "_id")
		page.Docs = append(page.Docs, docstore.Snapshot{ID: id, Data: docstore.Normalize(docstore.Document(m))})
	}
	if err := cur.Err(); err != nil {
		return docstore.Page{}, fmt.Errorf("failed to iterate %s: %w", q.Collection, err)
	}

	if n := len(page.Docs); n > 0 {
		last := page.Docs[n-1]
		var orderValue any
		if orderField != "" {
			orderValue = last.Data[orderField]
		}
		if page.Next, err = docstore.NewCursor(orderValue, last.ID); err != nil {
			return docstore.Page{}, err
		}
	}

	return page, nil
}

// Close closes the MongoDB connection.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func buildFilter(q docstore.Query) (bson.D, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var clauses bson.A
	if q.Where != nil {
		clauses = append(clauses, bson.M{q.Where.Field: q.Where.Value})
	}

	if q.Range != nil {
		bounds := bson.M{}
		if q.Range.Start != nil {
			bounds["$gte"] = q.Range.Start
		}
		if q.Range.End != nil {
			bounds["$lt"] = q.Range.End
		}
		if len(bounds) > 0 {
			clauses = append(clauses, bson.M{q.Range.Field: bounds})
		}
	}

	if q.After != "" {
		value, id, err := q.After.Decode()
		if err != nil {
			return nil, err
		}

		cmp := "$gt"
		if q.Descending {
			cmp = "$lt"
		}

		orderField := q.OrderField()
		if orderField == "" {
			clauses = append(clauses, bson.M{"_id": bson.M{cmp: id}})
		} else {
			clauses = append(clauses, bson.M{"$or": bson.A{
				bson.M{orderField: bson.M{cmp: value}},
				bson.M{orderField: value, "_id": bson.M{cmp: id}},
			}})
		}
	}

	switch len(clauses) {
	case 0:
		return bson.D{}, nil
	case 1:
		m := clauses[0].(bson.M)
		filter := bson.D{}
		for k, v := range m {
			filter = append(filter, bson.E{Key: k, Value: v})
		}
		return filter, nil
	default:
		return bson.D{{Key: "$and", Value: clauses}}, nil
	}
}
