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

package postgres

import (
	"context"
	"time"

	"github.com/mendersoftware/go-lib-micro/log"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/thumbworx/fleetconnect/model"
	"github.com/thumbworx/fleetconnect/store"
)

// TableName is the table holding the stored positions
const TableName = "positions"

const latestPerDeviceQuery = `SELECT * FROM (
	SELECT DISTINCT ON (device_id) *
	FROM ` + TableName + `
	ORDER BY device_id, device_time DESC, id ASC
) latest
ORDER BY device_time DESC, id ASC`

// positionRow is the table layout; id follows insertion order.
type positionRow struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	DeviceID   string    `gorm:"not null;uniqueIndex:idx_positions_device_time,priority:1"`
	Latitude   float64   `gorm:"not null"`
	Longitude  float64   `gorm:"not null"`
	Speed      float64   `gorm:"not null;default:0"`
	DeviceTime time.Time `gorm:"type:timestamptz;not null;uniqueIndex:idx_positions_device_time,priority:2;index:idx_positions_latest,sort:desc"`
	Attributes string    `gorm:"type:text;not null;default:'{}'"`
}

func (positionRow) TableName() string {
	return TableName
}

func rowFromPosition(p model.Position) positionRow {
	return positionRow{
		DeviceID:   p.DeviceID,
		Latitude:   p.Latitude,
		Longitude:  p.Longitude,
		Speed:      p.Speed,
		DeviceTime: p.DeviceTime.UTC(),
		Attributes: p.MarshalAttributes(),
	}
}

func (r positionRow) position() model.Position {
	return model.Position{
		DeviceID:   r.DeviceID,
		Latitude:   r.Latitude,
		Longitude:  r.Longitude,
		Speed:      r.Speed,
		DeviceTime: r.DeviceTime.UTC(),
		Attributes: model.UnmarshalAttributes(r.Attributes),
	}
}

func positionsOf(rows []positionRow) []model.Position {
	positions := make([]model.Position, len(rows))
	for i, r := range rows {
		positions[i] = r.position()
	}
	return positions
}

func storageError(err error, op string) error {
	return errors.Wrapf(store.ErrStorage, "postgres: %s: %s", op, err)
}

// DataStorePostgres is the PostgreSQL store.DataStore
type DataStorePostgres struct {
	db *gorm.DB
}

var _ store.DataStore = (*DataStorePostgres)(nil)

// NewDataStore opens the database at dsn and optionally creates the
// positions table and its indexes.
func NewDataStore(ctx context.Context, dsn string, automigrate bool) (*DataStorePostgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to postgres")
	}
	ds := NewDataStoreWithDB(db)
	if err := ds.Ping(ctx); err != nil {
		ds.Close()
		return nil, err
	}
	if automigrate {
		if err := ds.Migrate(ctx); err != nil {
			ds.Close()
			return nil, err
		}
	}
	return ds, nil
}

// NewDataStoreWithDB wraps an open gorm connection
func NewDataStoreWithDB(db *gorm.DB) *DataStorePostgres {
	return &DataStorePostgres{db: db}
}

// Migrate creates or updates the positions table
func (ds *DataStorePostgres) Migrate(ctx context.Context) error {
	if err := ds.db.WithContext(ctx).AutoMigrate(&positionRow{}); err != nil {
		return errors.Wrap(err, "failed to migrate positions table")
	}
	log.FromContext(ctx).Infof("postgres: table %s is up to date", TableName)
	return nil
}

func (ds *DataStorePostgres) Ping(ctx context.Context) error {
	sqlDB, err := ds.db.DB()
	if err != nil {
		return storageError(err, "ping")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return storageError(err, "ping")
	}
	return nil
}

// UpsertPositions inserts the valid positions, leaving rows with the same
// device and device time untouched.
func (ds *DataStorePostgres) UpsertPositions(
	ctx context.Context,
	positions []model.Position,
) error {
	valid := store.ValidPositions(ctx, positions)
	if len(valid) == 0 {
		return nil
	}
	rows := make([]positionRow, len(valid))
	for i, p := range valid {
		rows[i] = rowFromPosition(p)
	}
	res := ds.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows)
	if res.Error != nil {
		return storageError(res.Error, "upsert positions")
	}
	log.FromContext(ctx).Debugf("postgres: stored %d new positions out of %d",
		res.RowsAffected, len(valid))
	return nil
}

func (ds *DataStorePostgres) LatestPositions(
	ctx context.Context,
	limit int,
) ([]model.Position, error) {
	if limit <= 0 {
		return []model.Position{}, nil
	}
	var rows []positionRow
	err := ds.db.WithContext(ctx).
		Order("device_time DESC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, storageError(err, "find latest positions")
	}
	return positionsOf(rows), nil
}

func (ds *DataStorePostgres) LatestPerDevice(ctx context.Context) ([]model.Position, error) {
	var rows []positionRow
	if err := ds.db.WithContext(ctx).Raw(latestPerDeviceQuery).Scan(&rows).Error; err != nil {
		return nil, storageError(err, "find latest per device")
	}
	return positionsOf(rows), nil
}

func (ds *DataStorePostgres) CountPositions(ctx context.Context) (int64, error) {
	var n int64
	if err := ds.db.WithContext(ctx).Model(&positionRow{}).Count(&n).Error; err != nil {
		return 0, storageError(err, "count positions")
	}
	return n, nil
}

func (ds *DataStorePostgres) Close() error {
	sqlDB, err := ds.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
