// Package recorder persists combined telemetry samples to the flight
// recorder database.
package recorder

import (
	"context"
	"errors"
	"time"

	"github.com/groundlink-io/groundlink/pkg/store"
	"github.com/groundlink-io/groundlink/pkg/telemetry"
)

// ErrNilPool is returned by NewRecorder when no pool is supplied.
var ErrNilPool = errors.New("pool cannot be nil")

const createTableSQL = `
CREATE TABLE IF NOT EXISTS telemetry (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	recorded_at   TEXT    NOT NULL,
	time_boot_ms  INTEGER NOT NULL,
	x             REAL    NOT NULL,
	y             REAL    NOT NULL,
	z             REAL    NOT NULL,
	vx            REAL    NOT NULL,
	vy            REAL    NOT NULL,
	vz            REAL    NOT NULL,
	roll          REAL    NOT NULL,
	pitch         REAL    NOT NULL,
	yaw           REAL    NOT NULL
)`

const insertSQL = `
INSERT INTO telemetry
	(recorded_at, time_boot_ms, x, y, z, vx, vy, vz, roll, pitch, yaw)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Recorder writes telemetry samples to the store.
type Recorder struct {
	pool *store.Pool
}

// NewRecorder creates a recorder and ensures the telemetry table exists.
func NewRecorder(pool *store.Pool) (*Recorder, error) {
	if pool == nil {
		return nil, ErrNilPool
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		return nil, err
	}
	return &Recorder{pool: pool}, nil
}

// Record inserts one telemetry sample.
func (r *Recorder) Record(ctx context.Context, data telemetry.Data) error {
	_, err := r.pool.Exec(ctx, insertSQL,
		time.Now().UTC().Format(time.RFC3339Nano),
		data.TimeBootMS,
		data.X, data.Y, data.Z,
		data.VX, data.VY, data.VZ,
		data.Roll, data.Pitch, data.Yaw,
	)
	return err
}

// Count returns the number of recorded samples.
func (r *Recorder) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM telemetry").Scan(&n)
	return n, err
}
