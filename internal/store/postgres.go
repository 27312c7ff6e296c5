package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"garden-bridge/internal/payload"
)

// Postgres stores events in PostgreSQL (or TimescaleDB) through a pgx pool.
// The tables mirror the SQLite layout; pumpSpeed becomes pump_speed.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects a small pool and pings it.
func OpenPostgres(ctx context.Context, url string) (*Postgres, error) {
	if url == "" {
		return nil, errors.New("postgres store: empty connection URL")
	}
	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	// Messages arrive one at a time; a couple of connections is plenty.
	poolCfg.MaxConns = 4
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) Init(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sensor_data (
		id               BIGSERIAL PRIMARY KEY,
		timestamp        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		device_timestamp BIGINT,
		temperature      DOUBLE PRECISION,
		humidity         DOUBLE PRECISION,
		rain_analog      BIGINT,
		rain_digital     BIGINT,
		is_raining       BOOLEAN,
		rssi             BIGINT
	);

	CREATE TABLE IF NOT EXISTS device_state (
		id               BIGSERIAL PRIMARY KEY,
		timestamp        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		device_timestamp BIGINT,
		light            TEXT,
		pump             TEXT,
		pump_speed       BIGINT,
		rssi             BIGINT
	);

	CREATE TABLE IF NOT EXISTS device_online (
		id               BIGSERIAL PRIMARY KEY,
		timestamp        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		device_timestamp BIGINT,
		online           BOOLEAN,
		device_id        TEXT,
		firmware         TEXT,
		rssi             BIGINT
	);

	CREATE TABLE IF NOT EXISTS commands (
		id            BIGSERIAL PRIMARY KEY,
		timestamp     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		command_type  TEXT,
		command_value TEXT,
		source        TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_sensor_data_timestamp ON sensor_data(timestamp);
	CREATE INDEX IF NOT EXISTS idx_device_online_timestamp ON device_online(timestamp);
	`
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (p *Postgres) exec(ctx context.Context, table, query string, args ...any) error {
	if _, err := p.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

func (p *Postgres) InsertSensorReading(ctx context.Context, receivedAt time.Time, r payload.SensorReading) error {
	return p.exec(ctx, TableSensor, `
		INSERT INTO sensor_data (timestamp, device_timestamp, temperature, humidity, rain_analog, rain_digital, is_raining, rssi)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, receivedAt.UTC(), r.DeviceTimestamp, r.Temperature, r.Humidity, r.RainAnalog, r.RainDigital, r.IsRaining, r.RSSI)
}

func (p *Postgres) InsertDeviceState(ctx context.Context, receivedAt time.Time, s payload.DeviceState) error {
	return p.exec(ctx, TableState, `
		INSERT INTO device_state (timestamp, device_timestamp, light, pump, pump_speed, rssi)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, receivedAt.UTC(), s.DeviceTimestamp, s.Light, s.Pump, s.PumpSpeed, s.RSSI)
}

func (p *Postgres) InsertOnlineEvent(ctx context.Context, receivedAt time.Time, o payload.OnlineStatus) error {
	return p.exec(ctx, TableOnline, `
		INSERT INTO device_online (timestamp, device_timestamp, online, device_id, firmware, rssi)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, receivedAt.UTC(), o.DeviceTimestamp, o.Online, o.DeviceID, o.Firmware, o.RSSI)
}

func (p *Postgres) InsertCommand(ctx context.Context, receivedAt time.Time, c payload.Command) error {
	return p.exec(ctx, TableCommands, `
		INSERT INTO commands (timestamp, command_type, command_value, source)
		VALUES ($1, $2, $3, $4)
	`, receivedAt.UTC(), string(c.Type), c.Value, c.Source)
}

func (p *Postgres) LatestSensorReadings(ctx context.Context, limit int) ([]SensorRow, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, timestamp, device_timestamp, temperature, humidity, rain_analog, rain_digital, is_raining, rssi
		FROM sensor_data
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sensor_data: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (SensorRow, error) {
		var r SensorRow
		err := row.Scan(&r.ID, &r.ReceivedAt, &r.DeviceTimestamp, &r.Temperature, &r.Humidity,
			&r.RainAnalog, &r.RainDigital, &r.IsRaining, &r.RSSI)
		return r, err
	})
}

func (p *Postgres) LatestDeviceStates(ctx context.Context, limit int) ([]StateRow, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, timestamp, device_timestamp, light, pump, pump_speed, rssi
		FROM device_state
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query device_state: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (StateRow, error) {
		var r StateRow
		err := row.Scan(&r.ID, &r.ReceivedAt, &r.DeviceTimestamp, &r.Light, &r.Pump, &r.PumpSpeed, &r.RSSI)
		return r, err
	})
}

func (p *Postgres) LatestOnlineEvents(ctx context.Context, limit int) ([]OnlineRow, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, timestamp, device_timestamp, online, device_id, firmware, rssi
		FROM device_online
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query device_online: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (OnlineRow, error) {
		var r OnlineRow
		err := row.Scan(&r.ID, &r.ReceivedAt, &r.DeviceTimestamp, &r.Online, &r.DeviceID, &r.Firmware, &r.RSSI)
		return r, err
	})
}

func (p *Postgres) LatestCommands(ctx context.Context, limit int) ([]CommandRow, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, timestamp, COALESCE(command_type, ''), command_value, COALESCE(source, '')
		FROM commands
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query commands: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (CommandRow, error) {
		var (
			r       CommandRow
			cmdType string
		)
		err := row.Scan(&r.ID, &r.ReceivedAt, &cmdType, &r.Value, &r.Source)
		r.Type = payload.CommandType(cmdType)
		return r, err
	})
}

func (p *Postgres) Stats(ctx context.Context, now time.Time) (Stats, error) {
	var st Stats
	cutoff := now.Add(-StatsWindow).UTC()

	err := p.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM sensor_data),
			(SELECT COUNT(*) FROM device_state),
			(SELECT COUNT(*) FROM device_online),
			(SELECT COUNT(*) FROM commands)
	`).Scan(&st.SensorCount, &st.StateCount, &st.OnlineCount, &st.CommandCount)
	if err != nil {
		return st, fmt.Errorf("count tables: %w", err)
	}

	var w WindowStats
	err = p.pool.QueryRow(ctx, `
		SELECT COUNT(*), AVG(temperature), MIN(temperature), MAX(temperature), AVG(humidity),
			COUNT(*) FILTER (WHERE is_raining)
		FROM sensor_data
		WHERE timestamp > $1
	`, cutoff).Scan(&w.Readings, &w.AvgTemperature, &w.MinTemperature, &w.MaxTemperature, &w.AvgHumidity, &w.RainEvents)
	if err != nil {
		return st, fmt.Errorf("aggregate sensor_data: %w", err)
	}
	if w.Readings > 0 {
		st.Window = &w
	}

	var total, online int64
	err = p.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE online)
		FROM device_online
		WHERE timestamp > $1
	`, cutoff).Scan(&total, &online)
	if err != nil {
		return st, fmt.Errorf("aggregate device_online: %w", err)
	}
	st.Uptime = uptimePercent(online, total)
	return st, nil
}
