package store

import (
	"database/sql"
	"fmt"
	"math"
	"sync"
	"time"

	"vantage/internal/models"
)

// Retention windows per tier. Daily rows are kept forever.
const (
	rawRetention    = 24 * time.Hour
	hourlyRetention = 30 * 24 * time.Hour
)

// Time key formats used in the tables. All keys are UTC.
const (
	hourKeyFormat = "2006-01-02T15:00:00Z"
	dateKeyFormat = "2006-01-02"
)

// TimeSeriesStore is the tiered metrics store: raw samples roll up into
// hourly rows, hourly rows into daily rows, each tier evicted on its own
// window. The embedded engine is effectively single-writer, so all writes
// serialize through one mutex; rollup and evict touch only closed windows and
// are idempotent, safe to run in any order or concurrently with Append.
type TimeSeriesStore struct {
	mu sync.Mutex
	db *sql.DB
}

func NewTimeSeriesStore(db *sql.DB) *TimeSeriesStore {
	return &TimeSeriesStore{db: db}
}

// RawSample is one persisted snapshot row with the scalars derived at write
// time.
type RawSample struct {
	ServerID    string    `json:"server_id"`
	Timestamp   time.Time `json:"timestamp"`
	CPUUsage    float64   `json:"cpu_usage"`
	MemoryUsage float64   `json:"memory_usage"`
	DiskUsage   float64   `json:"disk_usage"`
	NetRx       uint64    `json:"net_rx"`
	NetTx       uint64    `json:"net_tx"`
	Load1       float64   `json:"load_1"`
	Load5       float64   `json:"load_5"`
	Load15      float64   `json:"load_15"`
	PingMs      *float64  `json:"ping_ms,omitempty"`
}

// HourlyRollup is a statistical summary of one server-hour.
type HourlyRollup struct {
	ServerID    string    `json:"server_id"`
	HourStart   time.Time `json:"hour_start"`
	CPUAvg      float64   `json:"cpu_avg"`
	CPUMax      float64   `json:"cpu_max"`
	MemoryAvg   float64   `json:"memory_avg"`
	MemoryMax   float64   `json:"memory_max"`
	DiskAvg     float64   `json:"disk_avg"`
	NetRxTotal  uint64    `json:"net_rx_total"`
	NetTxTotal  uint64    `json:"net_tx_total"`
	PingAvg     *float64  `json:"ping_avg,omitempty"`
	SampleCount int       `json:"sample_count"`
}

// DailyRollup is a statistical summary of one server-day.
type DailyRollup struct {
	ServerID      string   `json:"server_id"`
	Date          string   `json:"date"`
	CPUAvg        float64  `json:"cpu_avg"`
	CPUMax        float64  `json:"cpu_max"`
	MemoryAvg     float64  `json:"memory_avg"`
	MemoryMax     float64  `json:"memory_max"`
	DiskAvg       float64  `json:"disk_avg"`
	NetRxTotal    uint64   `json:"net_rx_total"`
	NetTxTotal    uint64   `json:"net_tx_total"`
	UptimePercent float64  `json:"uptime_percent"`
	PingAvg       *float64 `json:"ping_avg,omitempty"`
	SampleCount   int      `json:"sample_count"`
}

// Append writes one raw row for a snapshot. The dashboard scalars (disk
// usage from the first physical disk, mean ping latency across answering
// targets) are derived here, at write time.
func (s *TimeSeriesStore) Append(serverID string, snap *models.Snapshot) error {
	var diskUsage float64
	if len(snap.Disks) > 0 {
		diskUsage = snap.Disks[0].UsagePercent
	}

	var pingMs *float64
	if mean, ok := snap.Ping.MeanPingLatency(); ok {
		pingMs = &mean
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO metrics_raw (server_id, timestamp, cpu_usage, memory_usage, disk_usage, net_rx, net_tx, load_1, load_5, load_15, ping_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		serverID,
		snap.Timestamp.UTC().Format(time.RFC3339),
		snap.CPU.Usage,
		snap.Memory.UsagePercent,
		diskUsage,
		counterValue(snap.Network.TotalRx),
		counterValue(snap.Network.TotalTx),
		snap.LoadAverage.One,
		snap.LoadAverage.Five,
		snap.LoadAverage.Fifteen,
		pingMs,
	)
	if err != nil {
		return fmt.Errorf("append raw sample: %w", err)
	}
	return nil
}

// counterValue narrows a cumulative byte counter to the INTEGER column type,
// clamping instead of wrapping negative past MaxInt64.
func counterValue(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

// RollupHourly aggregates the raw rows of the hour ending at asOf into one
// hourly row per server. Gauges get avg/max, the monotonic byte counters get
// max-minus-min (correct while no counter reset falls inside the window),
// plus a sample count. The upsert on (server_id, hour_start) makes repeated
// invocation for the same hour a no-op in effect.
func (s *TimeSeriesStore) RollupHourly(asOf time.Time) error {
	hourStart := asOf.UTC().Add(-time.Hour).Truncate(time.Hour)

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO metrics_hourly
		   (server_id, hour_start, cpu_avg, cpu_max, memory_avg, memory_max, disk_avg, net_rx_total, net_tx_total, ping_avg, sample_count)
		 SELECT
		   server_id,
		   strftime('%Y-%m-%dT%H:00:00Z', timestamp) AS hour,
		   AVG(cpu_usage),
		   MAX(cpu_usage),
		   AVG(memory_usage),
		   MAX(memory_usage),
		   AVG(disk_usage),
		   MAX(net_rx) - MIN(net_rx),
		   MAX(net_tx) - MIN(net_tx),
		   AVG(ping_ms),
		   COUNT(*)
		 FROM metrics_raw
		 WHERE timestamp >= ? AND timestamp < ?
		 GROUP BY server_id, hour`,
		hourStart.Format(time.RFC3339),
		hourStart.Add(time.Hour).Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("hourly rollup: %w", err)
	}
	return nil
}

// RollupDaily aggregates the hourly rows of the day containing asOf-24h into
// one daily row per server. The uptime percentage is a coverage proxy: hours
// with at least one hourly row, over 24.
func (s *TimeSeriesStore) RollupDaily(asOf time.Time) error {
	day := asOf.UTC().Add(-24 * time.Hour).Format(dateKeyFormat)

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO metrics_daily
		   (server_id, date, cpu_avg, cpu_max, memory_avg, memory_max, disk_avg, net_rx_total, net_tx_total, uptime_percent, ping_avg, sample_count)
		 SELECT
		   server_id,
		   date(hour_start) AS day,
		   AVG(cpu_avg),
		   MAX(cpu_max),
		   AVG(memory_avg),
		   MAX(memory_max),
		   AVG(disk_avg),
		   SUM(net_rx_total),
		   SUM(net_tx_total),
		   COUNT(*) * 100.0 / 24.0,
		   AVG(ping_avg),
		   SUM(sample_count)
		 FROM metrics_hourly
		 WHERE date(hour_start) = ?
		 GROUP BY server_id, day`,
		day,
	)
	if err != nil {
		return fmt.Errorf("daily rollup: %w", err)
	}
	return nil
}

// Evict deletes raw rows older than 24 hours and hourly rows older than 30
// days. Daily rows are never deleted.
func (s *TimeSeriesStore) Evict() error {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(
		`DELETE FROM metrics_raw WHERE timestamp < ?`,
		now.Add(-rawRetention).Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("evict raw tier: %w", err)
	}
	if _, err := s.db.Exec(
		`DELETE FROM metrics_hourly WHERE hour_start < ?`,
		now.Add(-hourlyRetention).Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("evict hourly tier: %w", err)
	}
	return nil
}

// RawSince returns a server's raw samples at or after since, oldest first.
func (s *TimeSeriesStore) RawSince(serverID string, since time.Time) ([]RawSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(
		`SELECT server_id, timestamp, cpu_usage, memory_usage, disk_usage, net_rx, net_tx, load_1, load_5, load_15, ping_ms
		 FROM metrics_raw
		 WHERE server_id = ? AND timestamp >= ?
		 ORDER BY timestamp`,
		serverID, since.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RawSample
	for rows.Next() {
		var r RawSample
		var ts string
		var netRx, netTx int64
		if err := rows.Scan(&r.ServerID, &ts, &r.CPUUsage, &r.MemoryUsage, &r.DiskUsage, &netRx, &netTx, &r.Load1, &r.Load5, &r.Load15, &r.PingMs); err != nil {
			return nil, err
		}
		r.Timestamp, _ = time.Parse(time.RFC3339, ts)
		r.NetRx, r.NetTx = uint64(netRx), uint64(netTx)
		out = append(out, r)
	}
	return out, rows.Err()
}

// HourlySince returns a server's hourly rollups starting at or after since,
// oldest first.
func (s *TimeSeriesStore) HourlySince(serverID string, since time.Time) ([]HourlyRollup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(
		`SELECT server_id, hour_start, cpu_avg, cpu_max, memory_avg, memory_max, disk_avg, net_rx_total, net_tx_total, ping_avg, sample_count
		 FROM metrics_hourly
		 WHERE server_id = ? AND hour_start >= ?
		 ORDER BY hour_start`,
		serverID, since.UTC().Format(hourKeyFormat),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HourlyRollup
	for rows.Next() {
		var h HourlyRollup
		var hour string
		var netRx, netTx int64
		if err := rows.Scan(&h.ServerID, &hour, &h.CPUAvg, &h.CPUMax, &h.MemoryAvg, &h.MemoryMax, &h.DiskAvg, &netRx, &netTx, &h.PingAvg, &h.SampleCount); err != nil {
			return nil, err
		}
		h.HourStart, _ = time.Parse(time.RFC3339, hour)
		h.NetRxTotal, h.NetTxTotal = uint64(netRx), uint64(netTx)
		out = append(out, h)
	}
	return out, rows.Err()
}

// DailySince returns a server's daily rollups for dates at or after since,
// oldest first.
func (s *TimeSeriesStore) DailySince(serverID string, since time.Time) ([]DailyRollup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(
		`SELECT server_id, date, cpu_avg, cpu_max, memory_avg, memory_max, disk_avg, net_rx_total, net_tx_total, uptime_percent, ping_avg, sample_count
		 FROM metrics_daily
		 WHERE server_id = ? AND date >= ?
		 ORDER BY date`,
		serverID, since.UTC().Format(dateKeyFormat),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DailyRollup
	for rows.Next() {
		var d DailyRollup
		var netRx, netTx int64
		if err := rows.Scan(&d.ServerID, &d.Date, &d.CPUAvg, &d.CPUMax, &d.MemoryAvg, &d.MemoryMax, &d.DiskAvg, &netRx, &netTx, &d.UptimePercent, &d.PingAvg, &d.SampleCount); err != nil {
			return nil, err
		}
		d.NetRxTotal, d.NetTxTotal = uint64(netRx), uint64(netTx)
		out = append(out, d)
	}
	return out, rows.Err()
}
