package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Kunal6688/PestDetect/internal/models"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseTelemetry stores sensor time series and pest findings for
// long-range analytics. Other event types are ignored.
type ClickHouseTelemetry struct {
	conn driver.Conn
}

const (
	createSensorReadingsSQL = `
		CREATE TABLE IF NOT EXISTS sensor_readings (
			timestamp DateTime64(3),
			name      LowCardinality(String),
			type      LowCardinality(String),
			value     Float64,
			unit      String
		) ENGINE = MergeTree()
		ORDER BY (name, timestamp)
	`

	createPestFindingsSQL = `
		CREATE TABLE IF NOT EXISTS pest_findings (
			timestamp    DateTime64(3),
			detection_id String,
			image_ref    String,
			class_name   LowCardinality(String),
			confidence   Float64
		) ENGINE = MergeTree()
		ORDER BY (class_name, timestamp)
	`

	insertSensorReadingSQL = `
		INSERT INTO sensor_readings (timestamp, name, type, value, unit)
		VALUES (?, ?, ?, ?, ?)
	`

	insertPestFindingSQL = `
		INSERT INTO pest_findings (timestamp, detection_id, image_ref, class_name, confidence)
		VALUES (?, ?, ?, ?, ?)
	`
)

// NewClickHouseTelemetry connects, pings and creates the tables.
func NewClickHouseTelemetry(ctx context.Context, addr, database, username, password string) (*ClickHouseTelemetry, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	t := newClickHouseTelemetry(conn)
	if err := t.InitSchema(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return t, nil
}

func newClickHouseTelemetry(conn driver.Conn) *ClickHouseTelemetry {
	return &ClickHouseTelemetry{conn: conn}
}

func (t *ClickHouseTelemetry) InitSchema(ctx context.Context) error {
	for _, stmt := range []string{createSensorReadingsSQL, createPestFindingsSQL} {
		if err := t.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create clickhouse table: %w", err)
		}
	}
	return nil
}

func (t *ClickHouseTelemetry) Name() string { return "clickhouse" }

func (t *ClickHouseTelemetry) Write(ctx context.Context, e models.Event) error {
	switch {
	case e.Sensor != nil:
		r := e.Sensor
		if !r.OK() {
			return nil
		}
		if err := t.conn.Exec(ctx, insertSensorReadingSQL, r.Timestamp, r.Name, r.Type, *r.Value, r.Unit); err != nil {
			return fmt.Errorf("insert sensor reading %s: %w", r.Name, err)
		}
	case e.Detection != nil && !e.Detection.Failed:
		d := e.Detection
		for _, f := range d.Findings {
			if err := t.conn.Exec(ctx, insertPestFindingSQL, d.Timestamp, d.ID, d.ImageRef, f.ClassName, f.Confidence); err != nil {
				return fmt.Errorf("insert finding of detection %s: %w", d.ID, err)
			}
		}
	}
	return nil
}

func (t *ClickHouseTelemetry) Close() error {
	if err := t.conn.Close(); err != nil {
		return fmt.Errorf("close clickhouse connection: %w", err)
	}
	return nil
}
