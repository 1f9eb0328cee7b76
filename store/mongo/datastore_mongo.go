// Copyright 2024 Northern.tech AS
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package mongo

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/mendersoftware/go-lib-micro/config"
	"github.com/mendersoftware/go-lib-micro/log"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mopts "go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	dconfig "github.com/thumbworx/fleetconnect/config"
	"github.com/thumbworx/fleetconnect/model"
	"github.com/thumbworx/fleetconnect/store"
)

const (
	// PositionsCollectionName refers to the name of the collection of stored positions
	PositionsCollectionName = "positions"

	errCodeDuplicateKey = 11000
)

// SetupDataStore returns the mongo data store and optionally runs migrations
func SetupDataStore(ctx context.Context, c config.Reader, automigrate bool) (*DataStoreMongo, error) {
	dbClient, err := NewClient(ctx, c)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to db")
	}
	dbName := c.GetString(dconfig.SettingDbName)
	err = Migrate(ctx, dbName, DbVersion, dbClient, automigrate)
	if err != nil {
		disconnectClient(ctx, dbClient)
		return nil, errors.Wrap(err, "failed to run migrations")
	}
	return NewDataStoreWithClient(dbClient, c), nil
}

func disconnectClient(parentCtx context.Context, client *mongo.Client) {
	ctx, cancel := context.WithTimeout(parentCtx, 1*time.Second)
	defer cancel()
	_ = client.Disconnect(ctx)
}

// NewClient returns a mongo client
func NewClient(ctx context.Context, c config.Reader) (*mongo.Client, error) {

	clientOptions := mopts.Client()
	mongoURL := c.GetString(dconfig.SettingMongo)
	if !strings.Contains(mongoURL, "://") {
		return nil, errors.Errorf("Invalid mongoURL %q: missing schema.",
			mongoURL)
	}
	clientOptions.ApplyURI(mongoURL)

	username := c.GetString(dconfig.SettingDbUsername)
	if username != "" {
		credentials := mopts.Credential{
			Username: username,
		}
		password := c.GetString(dconfig.SettingDbPassword)
		if password != "" {
			credentials.Password = password
			credentials.PasswordSet = true
		}
		clientOptions.SetAuth(credentials)
	}

	if c.GetBool(dconfig.SettingDbSSL) {
		tlsConfig := &tls.Config{}
		tlsConfig.InsecureSkipVerify = c.GetBool(dconfig.SettingDbSSLSkipVerify)
		clientOptions.SetTLSConfig(tlsConfig)
	}

	// Acknowledge writes once they are committed to the journal.
	clientOptions.SetWriteConcern(writeconcern.New(
		writeconcern.W(1), writeconcern.J(true),
	))

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to connect to mongo server")
	}

	// Validate connection
	if err = client.Ping(ctx, nil); err != nil {
		disconnectClient(context.Background(), client)
		return nil, errors.Wrap(err, "Error reaching mongo server")
	}

	return client, nil
}

// DataStoreMongo is the data storage service
type DataStoreMongo struct {
	// client holds the reference to the client used to communicate with the
	// mongodb server.
	client *mongo.Client
	// dbName contains the name of the positions database.
	dbName string
}

var _ store.DataStore = (*DataStoreMongo)(nil)

// NewDataStoreWithClient initializes a DataStore object
func NewDataStoreWithClient(client *mongo.Client, c config.Reader) *DataStoreMongo {
	dbName := c.GetString(dconfig.SettingDbName)
	if dbName == "" {
		dbName = DbName
	}

	return &DataStoreMongo{
		client: client,
		dbName: dbName,
	}
}

func (db *DataStoreMongo) positions() *mongo.Collection {
	return db.client.Database(db.dbName).Collection(PositionsCollectionName)
}

func storageError(err error, op string) error {
	return errors.Wrapf(store.ErrStorage, "mongo: %s: %s", op, err)
}

// Ping verifies the connection to the database
func (db *DataStoreMongo) Ping(ctx context.Context) error {
	res := db.client.Database(db.dbName).RunCommand(ctx, bson.M{"ping": 1})
	if err := res.Err(); err != nil {
		return storageError(err, "ping")
	}
	return nil
}

// UpsertPositions inserts every valid position not stored yet. Existing
// documents are never modified.
func (db *DataStoreMongo) UpsertPositions(
	ctx context.Context,
	positions []model.Position,
) error {
	valid := store.ValidPositions(ctx, positions)
	if len(valid) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, len(valid))
	for i, p := range valid {
		p.DeviceTime = p.DeviceTime.UTC()
		models[i] = mongo.NewUpdateOneModel().
			SetFilter(bson.D{
				{Key: "device_id", Value: p.DeviceID},
				{Key: "device_time", Value: p.DeviceTime},
			}).
			SetUpdate(bson.D{{Key: "$setOnInsert", Value: p}}).
			SetUpsert(true)
	}
	res, err := db.positions().BulkWrite(ctx, models,
		mopts.BulkWrite().SetOrdered(false))
	if err != nil && !onlyDuplicateKeys(err) {
		return storageError(err, "upsert positions")
	}
	if res != nil {
		log.FromContext(ctx).Debugf("mongo: stored %d new positions out of %d",
			res.UpsertedCount, len(valid))
	}
	return nil
}

// onlyDuplicateKeys reports whether err is a bulk write failure caused
// exclusively by concurrent inserts of the same position.
func onlyDuplicateKeys(err error) bool {
	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) {
		return false
	}
	if bwe.WriteConcernError != nil || len(bwe.WriteErrors) == 0 {
		return false
	}
	for _, we := range bwe.WriteErrors {
		if we.Code != errCodeDuplicateKey {
			return false
		}
	}
	return true
}

var latestSort = bson.D{
	{Key: "device_time", Value: -1},
	{Key: "_id", Value: 1},
}

// LatestPositions returns up to limit positions, newest first
func (db *DataStoreMongo) LatestPositions(
	ctx context.Context,
	limit int,
) ([]model.Position, error) {
	if limit <= 0 {
		return []model.Position{}, nil
	}
	findOpts := mopts.Find().
		SetSort(latestSort).
		SetLimit(int64(limit))
	cur, err := db.positions().Find(ctx, bson.D{}, findOpts)
	if err != nil {
		return nil, storageError(err, "find latest positions")
	}
	positions := []model.Position{}
	if err := cur.All(ctx, &positions); err != nil {
		return nil, storageError(err, "decode latest positions")
	}
	return positions, nil
}

// LatestPerDevice returns the newest position of each device
func (db *DataStoreMongo) LatestPerDevice(ctx context.Context) ([]model.Position, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$sort", Value: latestSort}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$device_id"},
			{Key: "doc", Value: bson.D{{Key: "$first", Value: "$$ROOT"}}},
		}}},
		{{Key: "$replaceRoot", Value: bson.D{{Key: "newRoot", Value: "$doc"}}}},
		{{Key: "$sort", Value: latestSort}},
	}
	cur, err := db.positions().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, storageError(err, "aggregate latest per device")
	}
	positions := []model.Position{}
	if err := cur.All(ctx, &positions); err != nil {
		return nil, storageError(err, "decode latest per device")
	}
	return positions, nil
}

// CountPositions returns the number of stored positions
func (db *DataStoreMongo) CountPositions(ctx context.Context) (int64, error) {
	n, err := db.positions().CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, storageError(err, "count positions")
	}
	return n, nil
}

// Close disconnects the client
func (db *DataStoreMongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.client.Disconnect(ctx)
}

func (db *DataStoreMongo) dropDatabase() error {
	ctx := context.Background()
	err := db.client.Database(db.dbName).Drop(ctx)
	return err
}
