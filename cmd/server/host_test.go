package main

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/rs/zerolog"

	"github.com/masterblaster1999/Nebula4X-sub001/internal/persistence/indexdb"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/sim/tuning"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/transport/httpapi"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/watch"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/watchboard"
)

const hostPins = `
[[pin]]
id = 1
label = "Bodies"
path = "/bodies/*"
is_query = true
op = "count"

[pin.alert]
enabled = true
mode = "any_change"
level = "info"
cooldown_seconds = 0
`

func worldJSON(day int, bodies string) string {
	return `{"date":{"day":` + strconv.Itoa(day) + `,"hour":0},"bodies":{` + bodies + `}}`
}

type countSink struct{ alerts []watch.Alert }

func (s *countSink) Emit(a watch.Alert) error {
	s.alerts = append(s.alerts, a)
	return nil
}

func (s *countSink) Sample(watch.Pin, watch.Result, int64, int) error { return nil }

func newHost(t *testing.T, idx *indexdb.SQLiteIndex) (*host, *countSink) {
	t.Helper()
	f, err := watchboard.ParsePins([]byte(hostPins))
	if err != nil {
		t.Fatalf("ParsePins: %v", err)
	}
	board := watchboard.New(f, zerolog.Nop(), nil)
	sink := &countSink{}
	board.AddSink(sink)
	return &host{log: zerolog.Nop(), store: &httpapi.Store{}, board: board, idx: idx}, sink
}

func writeWorld(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestHostLoadRecordsAndObserves(t *testing.T) {
	dir := t.TempDir()
	idx, err := indexdb.OpenSQLite(filepath.Join(dir, "index.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	h, sink := newHost(t, idx)
	ctx := context.Background()
	path := filepath.Join(dir, "world.json")

	writeWorld(t, path, worldJSON(1, `"1":{"id":1,"name":"Earth"}`))
	if err := h.load(ctx, path); err != nil {
		t.Fatalf("load: %v", err)
	}
	cur := h.store.Load()
	if cur == nil || cur.Revision.Rev != 1 || cur.Snap.Header.Day != 1 {
		t.Fatalf("current=%+v", cur)
	}

	// Same bytes: no new revision, no detector run.
	if err := h.load(ctx, path); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if h.store.Load().Revision.Rev != 1 {
		t.Fatalf("rev=%d want=1", h.store.Load().Revision.Rev)
	}

	writeWorld(t, path, worldJSON(2, `"1":{"id":1,"name":"Earth"},"2":{"id":2,"name":"Mars"}`))
	if err := h.load(ctx, path); err != nil {
		t.Fatalf("load 2: %v", err)
	}
	if h.store.Load().Revision.Rev != 2 {
		t.Fatalf("rev=%d want=2", h.store.Load().Revision.Rev)
	}
	if len(sink.alerts) != 1 || sink.alerts[0].PinID != 1 {
		t.Fatalf("alerts=%+v", sink.alerts)
	}

	writeWorld(t, path, `{"date":`)
	if err := h.load(ctx, path); err == nil {
		t.Fatalf("expected error for truncated snapshot")
	}
	if h.store.Load().Revision.Rev != 2 {
		t.Fatalf("bad snapshot replaced current")
	}
}

func TestHostRestoreContinuesSequence(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "index.sqlite")
	path := filepath.Join(dir, "world.json")
	ctx := context.Background()

	idx, err := indexdb.OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	h, _ := newHost(t, idx)
	h.board.AddSink(idx)
	writeWorld(t, path, worldJSON(1, `"1":{"id":1}`))
	_ = h.load(ctx, path)
	writeWorld(t, path, worldJSON(2, `"1":{"id":1},"2":{"id":2}`))
	_ = h.load(ctx, path)
	h.shutdown(ctx)
	first, err := idx.LastAlertSeq(ctx)
	if err != nil || first == 0 {
		t.Fatalf("last seq=%x err=%v", first, err)
	}
	_ = idx.Close()

	idx, err = indexdb.OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()
	h, sink := newHost(t, idx)
	if err := h.restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	writeWorld(t, path, worldJSON(3, `"1":{"id":1}`))
	if err := h.load(ctx, path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(sink.alerts) != 1 || sink.alerts[0].Seq <= first {
		t.Fatalf("alerts=%+v first=%x", sink.alerts, first)
	}
}

func TestHostWithoutIndex(t *testing.T) {
	dir := t.TempDir()
	h, _ := newHost(t, nil)
	path := filepath.Join(dir, "world.json")
	writeWorld(t, path, worldJSON(4, `"1":{"id":1}`))
	if err := h.load(context.Background(), path); err != nil {
		t.Fatalf("load: %v", err)
	}
	cur := h.store.Load()
	if cur.Revision.Rev != 0 || cur.Revision.Digest != indexdb.Digest(cur.Snap.Raw) {
		t.Fatalf("revision=%+v", cur.Revision)
	}
	if err := h.restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	h.shutdown(context.Background())
}

func TestLoadTuning(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "tuning.yaml")
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(good, []byte("docking_range_mkm: 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("seconds_per_day: -1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadTuning(filepath.Join(dir, "missing.yaml"), zerolog.Nop())
	if err != nil || cfg != tuning.Defaults() {
		t.Fatalf("missing: cfg=%+v err=%v", cfg, err)
	}
	cfg, err = loadTuning(good, zerolog.Nop())
	if err != nil || cfg.DockingRangeMkm != 5 {
		t.Fatalf("good: cfg=%+v err=%v", cfg, err)
	}
	if _, err := loadTuning(bad, zerolog.Nop()); err == nil {
		t.Fatalf("bad: expected error")
	}
}
