package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"garden-bridge/internal/payload"

	_ "modernc.org/sqlite"
)

// sqliteTimeLayout matches CURRENT_TIMESTAMP so files written by older
// loggers compare correctly.
const sqliteTimeLayout = "2006-01-02 15:04:05"

// SQLite stores events in a local database file. Every operation opens the
// file, does its work and closes it again; cross-process safety is left to
// SQLite's own file locking.
type SQLite struct {
	path string
}

// NewSQLite returns a store for the database file at path. The file is
// created on first use.
func NewSQLite(path string) *SQLite {
	return &SQLite{path: path}
}

// Close is a no-op: no connection outlives a single call.
func (s *SQLite) Close() error {
	return nil
}

func (s *SQLite) dsn() string {
	// Wait on a locked file instead of failing at once when the viewer and
	// the logger touch it together.
	sep := "?"
	if strings.Contains(s.path, "?") {
		sep = "&"
	}
	return s.path + sep + "_pragma=busy_timeout(5000)"
}

// withDB opens the database, runs fn and always closes it.
func (s *SQLite) withDB(ctx context.Context, fn func(*sql.DB) error) error {
	db, err := sql.Open("sqlite", s.dsn())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("open database %s: %w", s.path, err)
	}
	return fn(db)
}

// Init creates the four tables.
func (s *SQLite) Init(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sensor_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		device_timestamp INTEGER,
		temperature REAL,
		humidity REAL,
		rain_analog INTEGER,
		rain_digital INTEGER,
		is_raining BOOLEAN,
		rssi INTEGER
	);

	CREATE TABLE IF NOT EXISTS device_state (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		device_timestamp INTEGER,
		light TEXT,
		pump TEXT,
		pumpSpeed INTEGER,
		rssi INTEGER
	);

	CREATE TABLE IF NOT EXISTS device_online (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		device_timestamp INTEGER,
		online BOOLEAN,
		device_id TEXT,
		firmware TEXT,
		rssi INTEGER
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		command_type TEXT,
		command_value TEXT,
		source TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_sensor_data_timestamp ON sensor_data(timestamp);
	CREATE INDEX IF NOT EXISTS idx_device_online_timestamp ON device_online(timestamp);
	`
	return s.withDB(ctx, func(db *sql.DB) error {
		// WAL lets the viewer read while the logger writes. The setting sticks
		// to the file.
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			return fmt.Errorf("enable WAL: %w", err)
		}
		if _, err := db.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		return nil
	})
}

func (s *SQLite) exec(ctx context.Context, table, query string, args ...any) error {
	return s.withDB(ctx, func(db *sql.DB) error {
		if _, err := db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
		return nil
	})
}

func (s *SQLite) InsertSensorReading(ctx context.Context, receivedAt time.Time, r payload.SensorReading) error {
	return s.exec(ctx, TableSensor, `
		INSERT INTO sensor_data (timestamp, device_timestamp, temperature, humidity, rain_analog, rain_digital, is_raining, rssi)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, sqliteTime(receivedAt), r.DeviceTimestamp, r.Temperature, r.Humidity, r.RainAnalog, r.RainDigital, r.IsRaining, r.RSSI)
}

func (s *SQLite) InsertDeviceState(ctx context.Context, receivedAt time.Time, st payload.DeviceState) error {
	return s.exec(ctx, TableState, `
		INSERT INTO device_state (timestamp, device_timestamp, light, pump, pumpSpeed, rssi)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sqliteTime(receivedAt), st.DeviceTimestamp, st.Light, st.Pump, st.PumpSpeed, st.RSSI)
}

func (s *SQLite) InsertOnlineEvent(ctx context.Context, receivedAt time.Time, o payload.OnlineStatus) error {
	return s.exec(ctx, TableOnline, `
		INSERT INTO device_online (timestamp, device_timestamp, online, device_id, firmware, rssi)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sqliteTime(receivedAt), o.DeviceTimestamp, o.Online, o.DeviceID, o.Firmware, o.RSSI)
}

func (s *SQLite) InsertCommand(ctx context.Context, receivedAt time.Time, c payload.Command) error {
	return s.exec(ctx, TableCommands, `
		INSERT INTO commands (timestamp, command_type, command_value, source)
		VALUES (?, ?, ?, ?)
	`, sqliteTime(receivedAt), string(c.Type), c.Value, c.Source)
}

func (s *SQLite) LatestSensorReadings(ctx context.Context, limit int) ([]SensorRow, error) {
	var out []SensorRow
	err := s.withDB(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `
			SELECT id, timestamp, device_timestamp, temperature, humidity, rain_analog, rain_digital, is_raining, rssi
			FROM sensor_data
			ORDER BY id DESC
			LIMIT ?
		`, limit)
		if err != nil {
			return fmt.Errorf("query sensor_data: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				r  SensorRow
				ts any
			)
			if err := rows.Scan(&r.ID, &ts, &r.DeviceTimestamp, &r.Temperature, &r.Humidity,
				&r.RainAnalog, &r.RainDigital, &r.IsRaining, &r.RSSI); err != nil {
				return fmt.Errorf("scan sensor_data: %w", err)
			}
			if r.ReceivedAt, err = parseSQLiteTime(ts); err != nil {
				return fmt.Errorf("sensor_data row %d: %w", r.ID, err)
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}

func (s *SQLite) LatestDeviceStates(ctx context.Context, limit int) ([]StateRow, error) {
	var out []StateRow
	err := s.withDB(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `
			SELECT id, timestamp, device_timestamp, light, pump, pumpSpeed, rssi
			FROM device_state
			ORDER BY id DESC
			LIMIT ?
		`, limit)
		if err != nil {
			return fmt.Errorf("query device_state: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				r  StateRow
				ts any
			)
			if err := rows.Scan(&r.ID, &ts, &r.DeviceTimestamp, &r.Light, &r.Pump, &r.PumpSpeed, &r.RSSI); err != nil {
				return fmt.Errorf("scan device_state: %w", err)
			}
			if r.ReceivedAt, err = parseSQLiteTime(ts); err != nil {
				return fmt.Errorf("device_state row %d: %w", r.ID, err)
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}

func (s *SQLite) LatestOnlineEvents(ctx context.Context, limit int) ([]OnlineRow, error) {
	var out []OnlineRow
	err := s.withDB(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `
			SELECT id, timestamp, device_timestamp, online, device_id, firmware, rssi
			FROM device_online
			ORDER BY id DESC
			LIMIT ?
		`, limit)
		if err != nil {
			return fmt.Errorf("query device_online: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				r  OnlineRow
				ts any
			)
			if err := rows.Scan(&r.ID, &ts, &r.DeviceTimestamp, &r.Online, &r.DeviceID, &r.Firmware, &r.RSSI); err != nil {
				return fmt.Errorf("scan device_online: %w", err)
			}
			if r.ReceivedAt, err = parseSQLiteTime(ts); err != nil {
				return fmt.Errorf("device_online row %d: %w", r.ID, err)
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}

func (s *SQLite) LatestCommands(ctx context.Context, limit int) ([]CommandRow, error) {
	var out []CommandRow
	err := s.withDB(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `
			SELECT id, timestamp, command_type, command_value, source
			FROM commands
			ORDER BY id DESC
			LIMIT ?
		`, limit)
		if err != nil {
			return fmt.Errorf("query commands: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				r       CommandRow
				ts      any
				cmdType sql.NullString
				source  sql.NullString
			)
			if err := rows.Scan(&r.ID, &ts, &cmdType, &r.Value, &source); err != nil {
				return fmt.Errorf("scan commands: %w", err)
			}
			if r.ReceivedAt, err = parseSQLiteTime(ts); err != nil {
				return fmt.Errorf("commands row %d: %w", r.ID, err)
			}
			r.Type = payload.CommandType(cmdType.String)
			r.Source = source.String
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}

func (s *SQLite) Stats(ctx context.Context, now time.Time) (Stats, error) {
	var st Stats
	cutoff := sqliteTime(now.Add(-StatsWindow))

	err := s.withDB(ctx, func(db *sql.DB) error {
		counts := []struct {
			table string
			dest  *int64
		}{
			{TableSensor, &st.SensorCount},
			{TableState, &st.StateCount},
			{TableOnline, &st.OnlineCount},
			{TableCommands, &st.CommandCount},
		}
		for _, c := range counts {
			// Table names come from the constant list above.
			if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dest); err != nil {
				return fmt.Errorf("count %s: %w", c.table, err)
			}
		}

		var w WindowStats
		err := db.QueryRowContext(ctx, `
			SELECT COUNT(*), AVG(temperature), MIN(temperature), MAX(temperature), AVG(humidity),
				COALESCE(SUM(CASE WHEN is_raining = 1 THEN 1 ELSE 0 END), 0)
			FROM sensor_data
			WHERE timestamp > ?
		`, cutoff).Scan(&w.Readings, &w.AvgTemperature, &w.MinTemperature, &w.MaxTemperature, &w.AvgHumidity, &w.RainEvents)
		if err != nil {
			return fmt.Errorf("aggregate sensor_data: %w", err)
		}
		if w.Readings > 0 {
			st.Window = &w
		}

		var total, online int64
		err = db.QueryRowContext(ctx, `
			SELECT COUNT(*), COALESCE(SUM(CASE WHEN online = 1 THEN 1 ELSE 0 END), 0)
			FROM device_online
			WHERE timestamp > ?
		`, cutoff).Scan(&total, &online)
		if err != nil {
			return fmt.Errorf("aggregate device_online: %w", err)
		}
		st.Uptime = uptimePercent(online, total)
		return nil
	})
	return st, err
}

func sqliteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

// parseSQLiteTime accepts the receipt column however the driver hands it
// back: DATETIME columns may already arrive as time.Time.
func parseSQLiteTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return x.UTC(), nil
	case string:
		return parseTimeText(x)
	case []byte:
		return parseTimeText(string(x))
	default:
		return time.Time{}, fmt.Errorf("unexpected timestamp type %T", v)
	}
}

func parseTimeText(s string) (time.Time, error) {
	for _, layout := range []string{sqliteTimeLayout, time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", s)
}
