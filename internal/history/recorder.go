package history

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-heatbridge/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-heatbridge/internal/neohub"
)

// timeLayout is the storage format for sample timestamps.
// RFC3339 in UTC sorts lexicographically, so the (device, sampled_at)
// index serves range queries directly.
const timeLayout = time.RFC3339

// defaultQueryLimit caps History results when the caller passes limit <= 0.
const defaultQueryLimit = 1000

// hoursPerDay converts retention days to a time.Duration multiplier.
const hoursPerDay = 24

// Sample is one recorded temperature reading for a device.
type Sample struct {
	Device      string    `json:"device"`
	SampledAt   time.Time `json:"sampled_at"`
	CurrentTemp float64   `json:"current_temp"`
	TargetTemp  float64   `json:"target_temp"`

	// FloorTemp is nil when the device has no floor probe.
	FloorTemp *float64 `json:"floor_temp,omitempty"`

	Heating bool `json:"heating"`
}

// Logger is the minimal logging interface the recorder needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Recorder persists per-device temperature samples to SQLite.
//
// One row is written per thermostat per poll cycle. Plugs and repeaters
// carry no temperature data and are skipped. Offline devices are skipped
// too: the hub repeats their last known reading, which would flatten
// gaps that should be visible in the history.
type Recorder struct {
	db            *database.DB
	retentionDays int
	logger        Logger
}

// NewRecorder creates a recorder writing to the given database.
//
// The database must already be migrated; the recorder assumes the
// temperature_samples table exists.
func NewRecorder(db *database.DB, retentionDays int) *Recorder {
	return &Recorder{
		db:            db,
		retentionDays: retentionDays,
		logger:        noopLogger{},
	}
}

// SetLogger replaces the recorder's logger. Not safe to call concurrently
// with Record; set it during startup.
func (r *Recorder) SetLogger(l Logger) {
	if l != nil {
		r.logger = l
	}
}

// Record writes one sample per online thermostat in the snapshot.
//
// All rows for a snapshot are written in a single transaction so a poll
// cycle appears atomically in the history. Returns the number of samples
// written.
func (r *Recorder) Record(ctx context.Context, snap *neohub.Snapshot) (int, error) {
	if snap == nil || len(snap.Devices) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	now := time.Now().UTC().Format(timeLayout)
	written := 0

	for _, dev := range snap.Devices {
		if !neohub.IsThermostat(dev.DeviceType) {
			continue
		}
		if !dev.Online {
			r.logger.Debug("history: skipping offline device", "device", dev.Name)
			continue
		}

		var floor interface{}
		if dev.FloorTemperature > 0 {
			floor = dev.FloorTemperature
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO temperature_samples
				(device, sampled_at, current_temp, target_temp, floor_temp, heating)
			VALUES (?, ?, ?, ?, ?, ?)`,
			dev.Name, now, dev.CurrentTemperature, dev.TargetTemperature, floor, boolInt(dev.HeatOn),
		); err != nil {
			return 0, fmt.Errorf("history: inserting sample for %q: %w", dev.Name, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("history: committing samples: %w", err)
	}
	return written, nil
}

// History returns samples for a device within [since, until], oldest first.
//
// A zero until means "now". limit <= 0 applies the default cap.
func (r *Recorder) History(ctx context.Context, device string, since, until time.Time, limit int) ([]Sample, error) {
	if until.IsZero() {
		until = time.Now().UTC()
	}
	if until.Before(since) {
		return nil, ErrInvalidRange
	}
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT device, sampled_at, current_temp, target_temp, floor_temp, heating
		FROM temperature_samples
		WHERE device = ? AND sampled_at >= ? AND sampled_at <= ?
		ORDER BY sampled_at ASC
		LIMIT ?`,
		device, since.UTC().Format(timeLayout), until.UTC().Format(timeLayout), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history: querying samples: %w", err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		var sampledAt string
		var floor *float64
		var heating int
		if err := rows.Scan(&s.Device, &sampledAt, &s.CurrentTemp, &s.TargetTemp, &floor, &heating); err != nil {
			return nil, fmt.Errorf("history: scanning sample: %w", err)
		}
		s.SampledAt, err = time.Parse(timeLayout, sampledAt)
		if err != nil {
			return nil, fmt.Errorf("history: parsing timestamp %q: %w", sampledAt, err)
		}
		s.FloorTemp = floor
		s.Heating = heating != 0
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterating samples: %w", err)
	}
	return samples, nil
}

// Devices returns the distinct device names present in the history.
func (r *Recorder) Devices(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT DISTINCT device FROM temperature_samples ORDER BY device",
	)
	if err != nil {
		return nil, fmt.Errorf("history: querying devices: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("history: scanning device: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterating devices: %w", err)
	}
	return names, nil
}

// Prune deletes samples older than the configured retention window.
//
// Returns the number of rows removed. Retention of zero or less disables
// pruning.
func (r *Recorder) Prune(ctx context.Context) (int64, error) {
	if r.retentionDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().UTC().Add(-time.Duration(r.retentionDays) * hoursPerDay * time.Hour)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM temperature_samples WHERE sampled_at < ?",
		cutoff.Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("history: pruning samples: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("history: reading prune count: %w", err)
	}
	if removed > 0 {
		r.logger.Debug("history: pruned samples", "removed", removed, "retention_days", r.retentionDays)
	}
	return removed, nil
}

// RunPruner prunes on the given interval until ctx is cancelled.
//
// Intended to run in its own goroutine alongside the poll loop. An
// immediate prune runs at startup to catch up after downtime.
func (r *Recorder) RunPruner(ctx context.Context, interval time.Duration) {
	if _, err := r.Prune(ctx); err != nil {
		r.logger.Warn("history: startup prune failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Prune(ctx); err != nil {
				r.logger.Warn("history: prune failed", "error", err)
			}
		}
	}
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
