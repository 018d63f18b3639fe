package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/masterblaster1999/Nebula4X-sub001/internal/watch"
)

var (
	ErrClosed     = errors.New("indexdb: closed")
	ErrNoRevision = errors.New("indexdb: revision not found")
)

const schemaVersion = "1"

// SQLiteIndex stores world revisions, the alert inbox and detector baselines.
// All writes go through one goroutine; reads use the shared connection.
type SQLiteIndex struct {
	db  *sql.DB
	log zerolog.Logger

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once
	mu   sync.RWMutex

	closed atomic.Bool

	dropAlertTotal atomic.Uint64
	lostAlertTotal atomic.Uint64
}

type Option func(*SQLiteIndex)

// WithLogger routes writer errors to log.
func WithLogger(log zerolog.Logger) Option {
	return func(s *SQLiteIndex) { s.log = log.With().Str("component", "indexdb").Logger() }
}

type reqKind int

const (
	reqRevision reqKind = iota + 1
	reqAlert
	reqBaselines
	reqFlush
)

type req struct {
	kind reqKind

	revision  revisionRow
	alert     watch.Alert
	baselines *watch.State

	done chan result
}

type result struct {
	rev     Revision
	changed bool
	err     error
}

type revisionRow struct {
	Day  int64
	Hour int
	Raw  []byte
}

// Revision describes one stored world body.
type Revision struct {
	Rev        int64     `json:"rev"`
	UUID       string    `json:"uuid"`
	Day        int64     `json:"day"`
	Hour       int       `json:"hour"`
	Digest     string    `json:"digest"`
	Size       int       `json:"size"`
	RecordedAt time.Time `json:"recorded_at"`
}

type Stats struct {
	DropAlertTotal uint64 `json:"drop_alert_total"`
	// LostAlertTotal counts queued alerts discarded by a rolled back batch.
	LostAlertTotal uint64 `json:"lost_alert_total"`
	QueueDepth     int    `json:"queue_depth"`
	QueueCapacity  int    `json:"queue_capacity"`
}

func OpenSQLite(path string, opts ...Option) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db:  db,
		log: zerolog.Nop(),
		ch:  make(chan req, 4096),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS revisions (
			rev INTEGER PRIMARY KEY AUTOINCREMENT,
			uuid TEXT NOT NULL UNIQUE,
			day INTEGER NOT NULL,
			hour INTEGER NOT NULL,
			digest TEXT NOT NULL,
			size INTEGER NOT NULL,
			blob BLOB NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_revisions_digest ON revisions(digest);`,
		`CREATE TABLE IF NOT EXISTS alerts (
			n INTEGER PRIMARY KEY,
			day INTEGER NOT NULL,
			hour INTEGER NOT NULL,
			level TEXT NOT NULL,
			pin_id INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_pin ON alerts(pin_id, n);`,
		`CREATE TABLE IF NOT EXISTS baselines (
			pin_id INTEGER PRIMARY KEY,
			raw_json TEXT NOT NULL
		);`,
		`INSERT OR IGNORE INTO meta(key,value) VALUES('schema_version','` + schemaVersion + `');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed.Store(true)
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		DropAlertTotal: s.dropAlertTotal.Load(),
		LostAlertTotal: s.lostAlertTotal.Load(),
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
	}
}

// send enqueues r and waits for the writer's answer.
func (s *SQLiteIndex) send(ctx context.Context, r req) result {
	r.done = make(chan result, 1)
	s.mu.RLock()
	if s.closed.Load() {
		s.mu.RUnlock()
		return result{err: ErrClosed}
	}
	select {
	case s.ch <- r:
		s.mu.RUnlock()
	case <-ctx.Done():
		s.mu.RUnlock()
		return result{err: ctx.Err()}
	}
	select {
	case res := <-r.done:
		return res
	case <-ctx.Done():
		return result{err: ctx.Err()}
	}
}

// RecordRevision stores raw as a new revision unless its digest equals the
// latest stored one. It returns the latest revision and whether it is new.
func (s *SQLiteIndex) RecordRevision(ctx context.Context, day int64, hour int, raw []byte) (Revision, bool, error) {
	if s == nil {
		return Revision{}, false, ErrClosed
	}
	res := s.send(ctx, req{kind: reqRevision, revision: revisionRow{Day: day, Hour: hour, Raw: raw}})
	return res.rev, res.changed, res.err
}

// RecordAlert queues an inbox row. Alerts are dropped when the writer falls
// behind; the JSONL alert log remains complete.
func (s *SQLiteIndex) RecordAlert(a watch.Alert) error {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAlert, alert: a}:
	default:
		s.dropAlertTotal.Add(1)
	}
	return nil
}

// Emit and Sample let the index act as a watchboard sink.
func (s *SQLiteIndex) Emit(a watch.Alert) error { return s.RecordAlert(a) }

func (s *SQLiteIndex) Sample(watch.Pin, watch.Result, int64, int) error { return nil }

// SaveBaselines replaces the stored detector state with st.
func (s *SQLiteIndex) SaveBaselines(ctx context.Context, st *watch.State) error {
	if s == nil || st == nil {
		return nil
	}
	return s.send(ctx, req{kind: reqBaselines, baselines: st.Clone()}).err
}

// Flush commits everything queued so far.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.send(ctx, req{kind: reqFlush}).err
}

func (s *SQLiteIndex) LoadRevision(ctx context.Context, rev int64) (Revision, []byte, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT rev,uuid,day,hour,digest,size,recorded_at,blob FROM revisions WHERE rev=?`, rev)
	var r Revision
	var recorded string
	var blob []byte
	if err := row.Scan(&r.Rev, &r.UUID, &r.Day, &r.Hour, &r.Digest, &r.Size, &recorded, &blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, nil, fmt.Errorf("%w: %d", ErrNoRevision, rev)
		}
		return r, nil, err
	}
	r.RecordedAt, _ = time.Parse(time.RFC3339Nano, recorded)
	raw, err := decompressLZ4(blob)
	if err != nil {
		return r, nil, err
	}
	if got := Digest(raw); got != r.Digest {
		return r, nil, fmt.Errorf("revision %d: digest mismatch", rev)
	}
	return r, raw, nil
}

// ListRevisions returns revisions in [from, to], oldest first. to <= 0 means
// no upper bound.
func (s *SQLiteIndex) ListRevisions(ctx context.Context, from, to int64) ([]Revision, error) {
	if to <= 0 {
		to = 1<<63 - 1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT rev,uuid,day,hour,digest,size,recorded_at FROM revisions WHERE rev>=? AND rev<=? ORDER BY rev`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Revision
	for rows.Next() {
		var r Revision
		var recorded string
		if err := rows.Scan(&r.Rev, &r.UUID, &r.Day, &r.Hour, &r.Digest, &r.Size, &recorded); err != nil {
			return nil, err
		}
		r.RecordedAt, _ = time.Parse(time.RFC3339Nano, recorded)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListAlerts returns inbox alerts with a sequence number above sinceSeq,
// oldest first. limit <= 0 means 100.
func (s *SQLiteIndex) ListAlerts(ctx context.Context, limit int, sinceSeq uint64) ([]watch.Alert, error) {
	if limit <= 0 {
		limit = 100
	}
	since := int64(sinceSeq &^ watch.SeqBase)
	if sinceSeq == 0 {
		since = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT raw_json FROM alerts WHERE n>? ORDER BY n LIMIT ?`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []watch.Alert
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var a watch.Alert
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// LastAlertSeq is the highest stored alert sequence, or 0 for an empty inbox.
func (s *SQLiteIndex) LastAlertSeq(ctx context.Context) (uint64, error) {
	var n sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(n) FROM alerts`).Scan(&n); err != nil {
		return 0, err
	}
	if !n.Valid {
		return 0, nil
	}
	return watch.SeqBase | uint64(n.Int64), nil
}

// LoadBaselines restores the detector state saved by SaveBaselines. An empty
// database yields a fresh state.
func (s *SQLiteIndex) LoadBaselines(ctx context.Context) (*watch.State, error) {
	st := watch.NewState()
	if v, ok, err := s.meta(ctx, "watch_last_tick"); err != nil {
		return nil, err
	} else if ok {
		st.LastTick, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok, err := s.meta(ctx, "watch_next_seq"); err != nil {
		return nil, err
	} else if ok {
		st.NextSeq, _ = strconv.ParseUint(v, 10, 64)
	}
	if v, ok, err := s.meta(ctx, "watch_world_id"); err != nil {
		return nil, err
	} else if ok {
		st.WorldID = v
	}

	rows, err := s.db.QueryContext(ctx, `SELECT pin_id,raw_json FROM baselines ORDER BY pin_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		var b watch.Baseline
		if err := json.Unmarshal([]byte(raw), &b); err != nil {
			return nil, fmt.Errorf("baseline %d: %w", id, err)
		}
		st.Pins[uint64(id)] = &b
	}
	return st, rows.Err()
}

func (s *SQLiteIndex) meta(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key=?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	return v, err == nil, err
}

func (s *SQLiteIndex) latestDigest() string {
	var d string
	_ = s.db.QueryRow(`SELECT digest FROM revisions ORDER BY rev DESC LIMIT 1`).Scan(&d)
	return d
}

func (s *SQLiteIndex) latestRevision(tx *sql.Tx) (Revision, error) {
	var r Revision
	var recorded string
	err := tx.QueryRow(`SELECT rev,uuid,day,hour,digest,size,recorded_at FROM revisions ORDER BY rev DESC LIMIT 1`).
		Scan(&r.Rev, &r.UUID, &r.Day, &r.Hour, &r.Digest, &r.Size, &recorded)
	r.RecordedAt, _ = time.Parse(time.RFC3339Nano, recorded)
	return r, err
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()
	lastDigest := s.latestDigest()

	var (
		tx            *sql.Tx
		opCount       int
		pendingAlerts int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second
	)

	begin := func() error {
		if tx != nil {
			return nil
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		tx = txx
		opCount = 0
		pendingAlerts = 0
		lastCommit = time.Now()
		return nil
	}
	commit := func() error {
		if tx == nil {
			return nil
		}
		err := tx.Commit()
		if err != nil {
			s.loseAlerts(pendingAlerts, err)
		}
		tx = nil
		opCount = 0
		pendingAlerts = 0
		lastCommit = time.Now()
		return err
	}
	rollback := func(cause error) {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.loseAlerts(pendingAlerts, cause)
		tx = nil
		opCount = 0
		pendingAlerts = 0
		lastCommit = time.Now()
	}
	// Commit when the queue drains so readers on the shared connection never
	// wait for long.
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if len(s.ch) == 0 || opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			_ = commit()
		}
	}
	reply := func(r req, res result) {
		if r.done != nil {
			r.done <- res
		}
	}

	for r := range s.ch {
		if err := begin(); err != nil {
			reply(r, result{err: err})
			time.Sleep(50 * time.Millisecond)
			continue
		}
		switch r.kind {
		case reqRevision:
			row := r.revision
			digest := Digest(row.Raw)
			if digest == lastDigest {
				cur, err := s.latestRevision(tx)
				reply(r, result{rev: cur, err: err})
				break
			}
			blob, err := compressLZ4(row.Raw)
			if err != nil {
				reply(r, result{err: err})
				break
			}
			rev := Revision{
				UUID:       uuid.NewString(),
				Day:        row.Day,
				Hour:       row.Hour,
				Digest:     digest,
				Size:       len(row.Raw),
				RecordedAt: time.Now().UTC(),
			}
			res, err := tx.Exec(`INSERT INTO revisions(uuid,day,hour,digest,size,blob,recorded_at) VALUES(?,?,?,?,?,?,?)`,
				rev.UUID, rev.Day, rev.Hour, rev.Digest, rev.Size, blob, rev.RecordedAt.Format(time.RFC3339Nano))
			if err != nil {
				rollback(err)
				reply(r, result{err: err})
				continue
			}
			rev.Rev, _ = res.LastInsertId()
			if err := commit(); err != nil {
				reply(r, result{err: err})
				continue
			}
			lastDigest = digest
			reply(r, result{rev: rev, changed: true})
			continue

		case reqAlert:
			a := r.alert
			raw, _ := json.Marshal(a)
			pendingAlerts++
			if _, err := tx.Exec(`INSERT OR REPLACE INTO alerts(n,day,hour,level,pin_id,raw_json) VALUES(?,?,?,?,?,?)`,
				int64(a.Seq&^watch.SeqBase), a.Day, a.Hour, a.Level.String(), int64(a.PinID), string(raw)); err != nil {
				rollback(err)
				continue
			}
			opCount++

		case reqBaselines:
			if err := writeBaselines(tx, r.baselines); err != nil {
				rollback(err)
				reply(r, result{err: err})
				continue
			}
			reply(r, result{err: commit()})
			continue

		case reqFlush:
			reply(r, result{err: commit()})
			continue
		}
		flushIfNeeded()
	}

	_ = commit()
}

func (s *SQLiteIndex) loseAlerts(n int, cause error) {
	if n <= 0 {
		return
	}
	s.lostAlertTotal.Add(uint64(n))
	s.log.Error().Err(cause).Int("alerts", n).Msg("alert batch rolled back")
}

func writeBaselines(tx *sql.Tx, st *watch.State) error {
	if _, err := tx.Exec(`DELETE FROM baselines`); err != nil {
		return err
	}
	for id, b := range st.Pins {
		if b == nil {
			continue
		}
		raw, err := json.Marshal(b)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT INTO baselines(pin_id,raw_json) VALUES(?,?)`, int64(id), string(raw)); err != nil {
			return err
		}
	}
	kv := map[string]string{
		"watch_last_tick": strconv.FormatInt(st.LastTick, 10),
		"watch_next_seq":  strconv.FormatUint(st.NextSeq, 10),
		"watch_world_id":  st.WorldID,
	}
	for k, v := range kv {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`, k, v); err != nil {
			return err
		}
	}
	return nil
}
