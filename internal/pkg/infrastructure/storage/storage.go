package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Config struct {
	host     string
	user     string
	password string
	port     string
	dbname   string
	sslmode  string
}

func (c Config) ConnStr() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", c.user, c.password, c.host, c.port, c.dbname, c.sslmode)
}

func NewConfig(host, user, password, port, dbname, sslmode string) Config {
	return Config{
		host:     host,
		user:     user,
		password: password,
		port:     port,
		dbname:   dbname,
		sslmode:  sslmode,
	}
}

func NewPool(ctx context.Context, config Config) (*pgxpool.Pool, error) {
	p, err := pgxpool.New(ctx, config.ConnStr())
	if err != nil {
		return nil, err
	}

	err = p.Ping(ctx)
	if err != nil {
		return nil, err
	}

	return p, nil
}

var (
	ErrNoRows        = errors.New("no rows in result set")
	ErrQueryRow      = errors.New("could not execute query")
	ErrStoreFailed   = errors.New("could not store data")
	ErrNoID          = errors.New("data contains no id")
	ErrAlreadyExists = errors.New("already exists")
)

type Storage struct {
	pool *pgxpool.Pool
}

func NewWithPool(pool *pgxpool.Pool) *Storage {
	return &Storage{pool: pool}
}

func New(ctx context.Context, config Config) (*Storage, error) {
	pool, err := NewPool(ctx, config)
	if err != nil {
		return nil, err
	}

	return &Storage{pool: pool}, nil
}

func (s *Storage) Initialize(ctx context.Context) error {
	return s.createTables(ctx)
}

func (s *Storage) createTables(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS vehicles (
			vehicle_id	TEXT 	NOT NULL,
			make		TEXT	NOT NULL DEFAULT '',
			model		TEXT	NOT NULL DEFAULT '',
			year		INTEGER	NOT NULL DEFAULT 0,
			created_on	TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (vehicle_id)
		);`,
		`CREATE TABLE IF NOT EXISTS telemetry (
			vehicle_id	TEXT	NOT NULL REFERENCES vehicles (vehicle_id),
			ts		TIMESTAMPTZ NOT NULL,
			speed		DOUBLE PRECISION NOT NULL,
			rpm		DOUBLE PRECISION NOT NULL,
			throttle	DOUBLE PRECISION NOT NULL,
			brake		DOUBLE PRECISION NOT NULL,
			engine_temp	DOUBLE PRECISION NOT NULL,
			fuel_level	DOUBLE PRECISION NOT NULL,
			latitude	DOUBLE PRECISION NOT NULL,
			longitude	DOUBLE PRECISION NOT NULL,
			odometer	DOUBLE PRECISION NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS telemetry_vehicle_ts_idx ON telemetry (vehicle_id, ts DESC);`,
		`CREATE TABLE IF NOT EXISTS faults (
			fault_id	TEXT	NOT NULL,
			vehicle_id	TEXT	NOT NULL REFERENCES vehicles (vehicle_id),
			ts		TIMESTAMPTZ NOT NULL,
			fault_code	TEXT	NOT NULL,
			description	TEXT	NOT NULL DEFAULT '',
			severity	TEXT	NOT NULL CHECK (severity IN ('LOW','MEDIUM','HIGH')),
			resolved	BOOLEAN	NOT NULL DEFAULT FALSE,
			resolved_on	TIMESTAMPTZ NULL,
			PRIMARY KEY (fault_id)
		);`,
		`CREATE INDEX IF NOT EXISTS faults_vehicle_idx ON faults (vehicle_id);`,
		`CREATE INDEX IF NOT EXISTS faults_resolved_idx ON faults (resolved);`,
		`CREATE TABLE IF NOT EXISTS anomalies (
			anomaly_id	TEXT	NOT NULL,
			vehicle_id	TEXT	NOT NULL REFERENCES vehicles (vehicle_id),
			ts		TIMESTAMPTZ NOT NULL,
			anomaly_type	TEXT	NOT NULL,
			description	TEXT	NOT NULL DEFAULT '',
			confidence	DOUBLE PRECISION NOT NULL DEFAULT 0,
			snapshot	JSONB	NULL,
			PRIMARY KEY (anomaly_id)
		);`,
		`CREATE INDEX IF NOT EXISTS anomalies_vehicle_ts_idx ON anomalies (vehicle_id, ts DESC);`,
	}

	for _, stmt := range ddl {
		_, err := s.pool.Exec(ctx, stmt)
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *Storage) Close() {
	s.pool.Close()
}
