package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/masterblaster1999/Nebula4X-sub001/internal/persistence/indexdb"
	persistlog "github.com/masterblaster1999/Nebula4X-sub001/internal/persistence/log"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/persistence/snapshot"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/watch"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/watchboard"
)

func main() {
	var (
		dbPath   = flag.String("db", "./data/index/n4x.sqlite", "index database")
		pinsPath = flag.String("pins", "./configs/watchboard.toml", "pin file to evaluate")
		fromRev  = flag.Int64("from", 0, "first revision (inclusive, optional)")
		toRev    = flag.Int64("to", 0, "last revision (inclusive, optional)")
		alertLog = flag.String("alert_log", "", "print an alerts-*.jsonl.zst file instead of replaying")
		verbose  = flag.Bool("v", false, "log every revision")
	)
	flag.Parse()

	if *alertLog != "" {
		alerts, err := persistlog.ReadAlerts(*alertLog)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read alert log:", err)
			os.Exit(1)
		}
		for _, a := range alerts {
			printAlert(os.Stdout, 0, a)
		}
		fmt.Printf("alerts=%d\n", len(alerts))
		return
	}

	pins, err := watchboard.LoadPins(*pinsPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load pins:", err)
		os.Exit(1)
	}
	lvl := zerolog.WarnLevel
	if *verbose {
		lvl = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).Level(lvl).With().Timestamp().Logger()

	idx, err := indexdb.OpenSQLite(*dbPath, indexdb.WithLogger(logger))
	if err != nil {
		fmt.Fprintln(os.Stderr, "open index:", err)
		os.Exit(1)
	}
	defer idx.Close()

	st, err := replay(context.Background(), idx, pins, *fromRev, *toRev, os.Stdout, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: revisions=%d alerts=%d\n", st.revisions, st.alerts)
}

type replayStats struct {
	revisions int
	alerts    int
}

// replay feeds stored revisions through a fresh board in order. Cooldowns
// are wall-clock based, so they are disabled to keep the output a function
// of the revisions alone.
func replay(ctx context.Context, idx *indexdb.SQLiteIndex, pins watchboard.File, from, to int64, out io.Writer, log zerolog.Logger) (replayStats, error) {
	var st replayStats
	for i := range pins.Pins {
		pins.Pins[i].Alert.CooldownSeconds = 0
	}
	board := watchboard.New(pins, log, nil)

	revs, err := idx.ListRevisions(ctx, from, to)
	if err != nil {
		return st, err
	}
	for _, rev := range revs {
		_, raw, err := idx.LoadRevision(ctx, rev.Rev)
		if err != nil {
			return st, fmt.Errorf("revision %d: %w", rev.Rev, err)
		}
		snap, err := snapshot.Decode(raw)
		if err != nil {
			return st, fmt.Errorf("revision %d: %w", rev.Rev, err)
		}
		st.revisions++
		log.Debug().Int64("rev", rev.Rev).Int64("day", rev.Day).Int("hour", rev.Hour).Msg("revision")

		for _, a := range board.Observe(ctx, snap.Doc, snap.Header.Day, snap.Header.Hour, "") {
			printAlert(out, rev.Rev, a)
			st.alerts++
		}
	}
	return st, nil
}

func printAlert(w io.Writer, rev int64, a watch.Alert) {
	fmt.Fprintf(w, "rev=%d day=%d hour=%02d seq=%d level=%s pin=%d %s\n",
		rev, a.Day, a.Hour, a.Seq&^watch.SeqBase, a.Level, a.PinID, a.Message)
}
