package weather

import (
	"context"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/mongodb/mongodb-dc-topology/pkg/util"
)

var (
	// ErrNoHealthyRouter is returned when no router of the cluster passes its health probe.
	ErrNoHealthyRouter = errors.New("no routers online")

	// ErrNotFound is returned when no record can be found.
	ErrNotFound = errors.New("no weather record found")
)

// Endpoint is a router as seen by clients.
type Endpoint struct {
	Name string
	URL  string
}

// RouterLocator finds a router to send queries to.
type RouterLocator interface {
	// HealthyRouter returns the first router that passes its health probe, or ErrNoHealthyRouter.
	HealthyRouter(ctx context.Context) (Endpoint, error)
}

// InsertResult identifies the inserted record and the router that served the insert.
type InsertResult struct {
	Router string `json:"router"`
	ID     string `json:"_id"`
}

// NearestPipeline finds the record closest to the point, preferring the newest record among those equally close.
func NearestPipeline(lon, lat float64) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.D{
			{Key: "near", Value: bson.D{{Key: "type", Value: pointType}, {Key: "coordinates", Value: bson.A{lon, lat}}}},
			{Key: "key", Value: util.GeolocationField},
			{Key: "spherical", Value: true},
			{Key: "distanceField", Value: util.DistanceField},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: util.DistanceField, Value: 1}, {Key: util.TimestampField, Value: -1}}}},
		{{Key: "$limit", Value: 1}},
	}
}

// RoutedStore reads and writes weather records through a healthy router. Connections are kept per router URL so
// that switching routers after a failure does not drop the connections to the others.
type RoutedStore struct {
	routers    RouterLocator
	database   string
	collection string
	timeout    time.Duration
	clients    *lru.Cache[string, *mongo.Client]
	log        *zap.SugaredLogger
}

// NewRoutedStore creates a store keeping at most cacheSize router connections open.
func NewRoutedStore(routers RouterLocator, cacheSize int, timeout time.Duration, log *zap.SugaredLogger) (*RoutedStore, error) {
	clients, err := lru.NewWithEvict[string, *mongo.Client](cacheSize, func(url string, c *mongo.Client) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.Disconnect(ctx); err != nil {
			log.Debugw("Failed to disconnect from router", "url", url, "error", err)
		}
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to create router connection cache: %w", err)
	}
	return &RoutedStore{
		routers:    routers,
		database:   util.WeatherDatabase,
		collection: util.WeatherCollection,
		timeout:    timeout,
		clients:    clients,
		log:        log,
	}, nil
}

// WithNamespace directs the store to another collection.
func (s *RoutedStore) WithNamespace(database, collection string) *RoutedStore {
	s.database = database
	s.collection = collection
	return s
}

func (s *RoutedStore) client(ctx context.Context) (*mongo.Client, Endpoint, error) {
	ep, err := s.routers.HealthyRouter(ctx)
	if err != nil {
		return nil, Endpoint{}, err
	}
	if c, ok := s.clients.Get(ep.URL); ok {
		return c, ep, nil
	}
	opts := options.Client().
		ApplyURI(ep.URL).
		SetAppName("weather-api").
		SetTimeout(s.timeout).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
	c, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, Endpoint{}, xerrors.Errorf("failed to connect to router %s: %w", ep.Name, err)
	}
	s.clients.Add(ep.URL, c)
	return c, ep, nil
}

// Nearest returns the newest record of the station closest to the point, with its distance in meters.
func (s *RoutedStore) Nearest(ctx context.Context, lon, lat float64) (Record, error) {
	if err := ValidateCoordinates(lon, lat); err != nil {
		return Record{}, err
	}
	c, ep, err := s.client(ctx)
	if err != nil {
		return Record{}, err
	}
	coll := c.Database(s.database).Collection(s.collection, options.Collection().SetReadPreference(readpref.PrimaryPreferred()))
	cursor, err := coll.Aggregate(ctx, NearestPipeline(lon, lat))
	if err != nil {
		return Record{}, xerrors.Errorf("nearest query through %s failed: %w", ep.Name, err)
	}
	defer cursor.Close(ctx)

	if !cursor.Next(ctx) {
		if err := cursor.Err(); err != nil {
			return Record{}, xerrors.Errorf("nearest query through %s failed: %w", ep.Name, err)
		}
		return Record{}, ErrNotFound
	}
	var rec Record
	if err := cursor.Decode(&rec); err != nil {
		return Record{}, xerrors.Errorf("failed to decode weather record: %w", err)
	}
	s.log.Debugw("Nearest record found", "router", ep.Name, "lon", lon, "lat", lat)
	return rec, nil
}

// Insert validates and stores the record.
func (s *RoutedStore) Insert(ctx context.Context, rec Record) (InsertResult, error) {
	if err := rec.Validate(); err != nil {
		return InsertResult{}, err
	}
	c, ep, err := s.client(ctx)
	if err != nil {
		return InsertResult{}, err
	}
	res, err := c.Database(s.database).Collection(s.collection).InsertOne(ctx, rec.ForInsert())
	if err != nil {
		return InsertResult{}, xerrors.Errorf("insert through %s failed: %w", ep.Name, err)
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return InsertResult{}, xerrors.Errorf("unexpected id type %T", res.InsertedID)
	}
	return InsertResult{Router: ep.Name, ID: id.Hex()}, nil
}

// Delete removes the records with the ids given and returns how many were removed.
func (s *RoutedStore) Delete(ctx context.Context, ids []string) (int64, error) {
	oids := make(bson.A, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return 0, xerrors.Errorf("invalid record id %q: %w", id, ErrInvalidRecord)
		}
		oids = append(oids, oid)
	}
	c, ep, err := s.client(ctx)
	if err != nil {
		return 0, err
	}
	res, err := c.Database(s.database).Collection(s.collection).DeleteMany(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: oids}}}})
	if err != nil {
		return 0, xerrors.Errorf("delete through %s failed: %w", ep.Name, err)
	}
	return res.DeletedCount, nil
}

// Close disconnects from every router.
func (s *RoutedStore) Close() {
	s.clients.Purge()
}
