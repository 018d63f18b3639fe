// Package influx exports pin samples and alerts to InfluxDB, or to a gzip
// line-protocol backup file when the server cannot be reached.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"

	"github.com/masterblaster1999/Nebula4X-sub001/internal/watch"
)

const (
	MeasurementPin   = "watch_pin"
	MeasurementAlert = "watch_alert"
)

type Config struct {
	URL        string
	Token      string
	Org        string
	Bucket     string
	BackupPath string
}

// Manager handles the InfluxDB connection and writes. It implements the
// watchboard sink contract.
type Manager struct {
	cfg    Config
	log    zerolog.Logger
	now    func() time.Time
	client influxdb2.Client
	writer influxdb2_api.WriteAPI

	mu           sync.Mutex
	backupFile   *os.File
	backupWriter *gzip.Writer
	valid        bool
}

func NewManager(cfg Config, log zerolog.Logger) *Manager {
	return &Manager{
		cfg: cfg,
		log: log.With().Str("component", "influx").Logger(),
		now: time.Now,
	}
}

// Connect pings the server. When it is unreachable and a backup path is set,
// points go to the backup file instead; without one Connect fails.
func (m *Manager) Connect(ctx context.Context) error {
	if m.cfg.URL == "" {
		return errors.New("influx: empty url")
	}
	m.client = influxdb2.NewClientWithOptions(m.cfg.URL, m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000))

	running, err := m.client.Ping(ctx)
	if err == nil && running {
		m.mu.Lock()
		m.valid = true
		m.mu.Unlock()
		m.writer = m.client.WriteAPI(m.cfg.Org, m.cfg.Bucket)
		go func(errorsCh <-chan error) {
			for writeErr := range errorsCh {
				m.log.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).Msg("error sending data to InfluxDB")
			}
		}(m.writer.Errors())
		m.log.Info().Str("url", m.cfg.URL).Str("bucket", m.cfg.Bucket).Msg("InfluxDB client initialized")
		return nil
	}

	if m.cfg.BackupPath == "" {
		return fmt.Errorf("influx: ping %s failed: %v", m.cfg.URL, err)
	}
	m.log.Warn().Str("backup_path", m.cfg.BackupPath).Msg("InfluxDB unreachable, writing to backup file")
	return m.openBackup()
}

func (m *Manager) openBackup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backupWriter != nil {
		return nil
	}
	f, err := os.OpenFile(m.cfg.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("influx: backup file: %w", err)
	}
	m.backupFile = f
	m.backupWriter = gzip.NewWriter(f)
	return nil
}

// WritePoint sends point to InfluxDB or appends it to the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.valid {
		m.writer.WritePoint(point)
		return nil
	}
	if m.backupWriter == nil {
		return errors.New("influx: client not initialized and backup writer not available")
	}
	line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.backupWriter.Write([]byte(line)); err != nil {
		return fmt.Errorf("influx: backup write: %w", err)
	}
	return nil
}

// SamplePoint renders one pin evaluation.
func SamplePoint(pin watch.Pin, res watch.Result, day int64, hour int, ts time.Time) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(MeasurementPin).
		AddTag("pin_id", fmt.Sprint(pin.ID)).
		AddTag("label", pin.DisplayLabel()).
		AddTag("op", pinOp(pin)).
		AddField("ok", res.OK).
		AddField("numeric", res.Numeric).
		AddField("display", res.Display).
		AddField("day", day).
		AddField("hour", hour).
		SetTime(ts)
	if res.Numeric {
		p.AddField("value", res.Value)
	}
	if res.IsQuery {
		p.AddField("match_count", res.MatchCount)
		p.AddField("nodes_visited", res.NodesVisited)
	}
	return p
}

func AlertPoint(a watch.Alert, ts time.Time) *influxdb2_write.Point {
	return influxdb2_write.NewPointWithMeasurement(MeasurementAlert).
		AddTag("pin_id", fmt.Sprint(a.PinID)).
		AddTag("level", a.Level.String()).
		AddTag("mode", a.Mode.String()).
		AddField("seq", a.Seq&^watch.SeqBase).
		AddField("message", a.Message).
		AddField("day", a.Day).
		AddField("hour", a.Hour).
		SetTime(ts)
}

func pinOp(p watch.Pin) string {
	if !p.IsQuery {
		return "value"
	}
	return p.Op.String()
}

func (m *Manager) Sample(pin watch.Pin, res watch.Result, day int64, hour int) error {
	return m.WritePoint(SamplePoint(pin, res, day, hour, m.now()))
}

func (m *Manager) Emit(a watch.Alert) error {
	return m.WritePoint(AlertPoint(a, m.now()))
}

// Close flushes pending points and releases the client and backup file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writer != nil {
		m.writer.Flush()
	}
	if m.client != nil {
		m.client.Close()
	}
	var err error
	if m.backupWriter != nil {
		err = m.backupWriter.Close()
		_ = m.backupFile.Close()
		m.backupWriter = nil
		m.backupFile = nil
	}
	m.valid = false
	return err
}
