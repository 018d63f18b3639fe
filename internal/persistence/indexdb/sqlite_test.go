package indexdb

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/masterblaster1999/Nebula4X-sub001/internal/watch"
)

func openTest(t *testing.T) (*SQLiteIndex, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx, path
}

func TestRecordRevisionDedupesByDigest(t *testing.T) {
	ctx := context.Background()
	idx, _ := openTest(t)

	a := []byte(`{"date":{"day":1,"hour":0}}`)
	b := []byte(`{"date":{"day":2,"hour":0}}`)

	r1, changed, err := idx.RecordRevision(ctx, 1, 0, a)
	if err != nil || !changed || r1.Rev != 1 {
		t.Fatalf("first: rev=%+v changed=%v err=%v", r1, changed, err)
	}
	r2, changed, err := idx.RecordRevision(ctx, 1, 0, a)
	if err != nil || changed || r2.Rev != 1 || r2.UUID != r1.UUID {
		t.Fatalf("dup: rev=%+v changed=%v err=%v", r2, changed, err)
	}
	r3, changed, err := idx.RecordRevision(ctx, 2, 0, b)
	if err != nil || !changed || r3.Rev != 2 {
		t.Fatalf("second: rev=%+v changed=%v err=%v", r3, changed, err)
	}
	if r3.Digest != Digest(b) || r3.Size != len(b) {
		t.Fatalf("digest/size mismatch: %+v", r3)
	}

	got, raw, err := idx.LoadRevision(ctx, 1)
	if err != nil {
		t.Fatalf("LoadRevision: %v", err)
	}
	if string(raw) != string(a) || got.Day != 1 {
		t.Fatalf("raw=%s rev=%+v", raw, got)
	}
	if _, _, err := idx.LoadRevision(ctx, 99); err == nil {
		t.Fatalf("expected missing revision error")
	}

	revs, err := idx.ListRevisions(ctx, 2, 0)
	if err != nil || len(revs) != 1 || revs[0].Rev != 2 {
		t.Fatalf("ListRevisions=%+v err=%v", revs, err)
	}
}

func TestRevisionDigestSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.sqlite")
	raw := []byte(`{"date":{"day":5}}`)

	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, _, err := idx.RecordRevision(ctx, 5, 0, raw); err != nil {
		t.Fatalf("record: %v", err)
	}
	_ = idx.Close()

	idx, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()
	r, changed, err := idx.RecordRevision(ctx, 5, 0, raw)
	if err != nil || changed || r.Rev != 1 {
		t.Fatalf("rev=%+v changed=%v err=%v", r, changed, err)
	}
}

func TestAlertsInbox(t *testing.T) {
	ctx := context.Background()
	idx, _ := openTest(t)

	for i := uint64(0); i < 5; i++ {
		a := watch.Alert{Seq: watch.SeqBase | i, Day: int64(i), PinID: 3, Level: watch.LevelWarn, Message: "m"}
		if err := idx.RecordAlert(a); err != nil {
			t.Fatalf("RecordAlert: %v", err)
		}
	}
	if err := idx.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	all, err := idx.ListAlerts(ctx, 0, 0)
	if err != nil || len(all) != 5 {
		t.Fatalf("len=%d err=%v want=5", len(all), err)
	}
	if all[0].Seq != watch.SeqBase || all[4].Day != 4 || all[0].Level != watch.LevelWarn {
		t.Fatalf("order/content: %+v", all)
	}

	page, err := idx.ListAlerts(ctx, 2, watch.SeqBase|1)
	if err != nil || len(page) != 2 || page[0].Seq != watch.SeqBase|2 || page[1].Seq != watch.SeqBase|3 {
		t.Fatalf("page=%+v err=%v", page, err)
	}

	last, err := idx.LastAlertSeq(ctx)
	if err != nil || last != watch.SeqBase|4 {
		t.Fatalf("last=%x err=%v", last, err)
	}
}

func TestBaselinesRoundTrip(t *testing.T) {
	ctx := context.Background()
	idx, _ := openTest(t)

	empty, err := idx.LoadBaselines(ctx)
	if err != nil || empty.LastTick != -1 || len(empty.Pins) != 0 {
		t.Fatalf("empty=%+v err=%v", empty, err)
	}

	st := watch.NewState()
	st.LastTick = 48
	st.NextSeq = 9
	fired := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	st.Pins[7] = &watch.Baseline{Path: "/ships/1/fuel_tons", AlertEnabled: true, HasLast: true, LastNumeric: true, LastValue: 42.5, LastDisplay: "42.5", LastTick: 48, LastFire: fired}
	if err := idx.SaveBaselines(ctx, st); err != nil {
		t.Fatalf("SaveBaselines: %v", err)
	}

	// Saving a smaller state replaces the previous rows.
	st2 := watch.NewState()
	st2.LastTick = 49
	st2.NextSeq = 10
	st2.WorldID = "campaign-7"
	st2.Pins[8] = &watch.Baseline{Path: "/x", LastTick: 49}
	st2.Pins[7] = st.Pins[7]
	delete(st2.Pins, 8)
	if err := idx.SaveBaselines(ctx, st2); err != nil {
		t.Fatalf("SaveBaselines: %v", err)
	}

	got, err := idx.LoadBaselines(ctx)
	if err != nil {
		t.Fatalf("LoadBaselines: %v", err)
	}
	if got.LastTick != 49 || got.NextSeq != 10 || got.WorldID != "campaign-7" || len(got.Pins) != 1 {
		t.Fatalf("got=%+v", got)
	}
	b := got.Pins[7]
	if b == nil || b.LastValue != 42.5 || !b.LastFire.Equal(fired) || b.Path != "/ships/1/fuel_tons" {
		t.Fatalf("baseline=%+v", b)
	}
}

func TestQueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqFlush}

	_ = s.RecordAlert(watch.Alert{Seq: watch.SeqBase | 1})
	_ = s.RecordAlert(watch.Alert{Seq: watch.SeqBase | 2})

	st := s.Stats()
	if st.DropAlertTotal != 2 {
		t.Fatalf("DropAlertTotal=%d want=2", st.DropAlertTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestClosedIndexRejectsWrites(t *testing.T) {
	idx, _ := openTest(t)
	_ = idx.Close()
	if _, _, err := idx.RecordRevision(context.Background(), 1, 0, []byte("{}")); err != ErrClosed {
		t.Fatalf("err=%v want=%v", err, ErrClosed)
	}
	if err := idx.RecordAlert(watch.Alert{}); err != nil {
		t.Fatalf("RecordAlert after close: %v", err)
	}
}

func TestRolledBackBatchCountsLostAlerts(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.sqlite"), WithLogger(zerolog.New(&logs)))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer idx.Close()

	if _, err := idx.db.ExecContext(ctx, `CREATE TRIGGER reject_pin_99 BEFORE INSERT ON alerts
		WHEN NEW.pin_id = 99 BEGIN SELECT RAISE(ABORT, 'rejected'); END;`); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	// Hold the only connection so both alerts land in one writer batch.
	hold, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	_ = idx.RecordAlert(watch.Alert{Seq: watch.SeqBase | 1, PinID: 1, Level: watch.LevelInfo})
	_ = idx.RecordAlert(watch.Alert{Seq: watch.SeqBase | 2, PinID: 99, Level: watch.LevelInfo})
	_ = hold.Rollback()

	if err := idx.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := idx.Stats().LostAlertTotal; got != 2 {
		t.Fatalf("LostAlertTotal=%d want=2", got)
	}
	stored, err := idx.ListAlerts(ctx, 10, 0)
	if err != nil || len(stored) != 0 {
		t.Fatalf("stored=%+v err=%v", stored, err)
	}
	if !strings.Contains(logs.String(), "alert batch rolled back") {
		t.Fatalf("logs=%q", logs.String())
	}
}
