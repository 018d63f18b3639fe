package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/masterblaster1999/Nebula4X-sub001/internal/persistence/indexdb"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/persistence/snapshot"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/sim/tuning"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/snapwatch"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/transport/httpapi"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/watchboard"
)

// loadTuning reads path, falling back to defaults when the file is absent.
func loadTuning(path string, log zerolog.Logger) (tuning.SimConfig, error) {
	cfg, err := tuning.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Info().Str("path", path).Msg("tuning not found; using defaults")
		return tuning.Defaults(), nil
	}
	return cfg, err
}

// host ties a snapshot source to the board: every load records a revision,
// publishes the document to the API and runs the detector once.
type host struct {
	log   zerolog.Logger
	store *httpapi.Store
	board *watchboard.Board
	idx   *indexdb.SQLiteIndex // nil with -disable_db
}

func (h *host) load(ctx context.Context, path string) error {
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return fmt.Errorf("read snapshot %s: %w", path, err)
	}
	cur := &httpapi.Current{Path: path, Snap: snap, LoadedAt: time.Now()}

	changed := true
	if h.idx != nil {
		rev, ch, err := h.idx.RecordRevision(ctx, snap.Header.Day, snap.Header.Hour, snap.Raw)
		if err != nil {
			h.log.Warn().Err(err).Str("path", path).Msg("record revision")
			cur.Revision = indexdb.Revision{Day: snap.Header.Day, Hour: snap.Header.Hour, Digest: indexdb.Digest(snap.Raw), Size: len(snap.Raw)}
		} else {
			cur.Revision, changed = rev, ch
		}
	} else {
		cur.Revision = indexdb.Revision{Day: snap.Header.Day, Hour: snap.Header.Hour, Digest: indexdb.Digest(snap.Raw), Size: len(snap.Raw)}
		if prev := h.store.Load(); prev != nil && prev.Revision.Digest == cur.Revision.Digest {
			changed = false
		}
	}
	h.store.Set(cur)

	if !changed {
		h.log.Debug().Str("path", filepath.Base(path)).Str("digest", cur.Revision.Digest).Msg("snapshot unchanged")
		return nil
	}

	alerts := h.board.Observe(ctx, snap.Doc, snap.Header.Day, snap.Header.Hour, snap.Header.WorldID)
	h.log.Info().
		Str("path", filepath.Base(path)).
		Int64("day", snap.Header.Day).
		Int("hour", snap.Header.Hour).
		Int64("rev", cur.Revision.Rev).
		Int("alerts", len(alerts)).
		Msg("snapshot loaded")

	if h.idx != nil {
		if err := h.idx.SaveBaselines(ctx, h.board.State()); err != nil {
			h.log.Warn().Err(err).Msg("save baselines")
		}
	}
	return nil
}

// follow reloads every snapshot the watcher reports until ctx is done.
func (h *host) follow(ctx context.Context, w *snapwatch.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-w.Reloads:
			if !ok {
				return
			}
			if err := h.load(ctx, r.Path); err != nil {
				// Writers that truncate before writing can be caught mid-file;
				// the next write triggers another reload.
				h.log.Warn().Err(err).Msg("reload")
			}
		}
	}
}

// restore seeds the board from the index so alerts keep their baselines and
// sequence numbers across restarts.
func (h *host) restore(ctx context.Context) error {
	if h.idx == nil {
		return nil
	}
	st, err := h.idx.LoadBaselines(ctx)
	if err != nil {
		return fmt.Errorf("load baselines: %w", err)
	}
	if st != nil {
		h.board.Restore(st)
	}
	last, err := h.idx.LastAlertSeq(ctx)
	if err != nil {
		return fmt.Errorf("last alert seq: %w", err)
	}
	h.board.EnsureSeqAfter(last)
	return nil
}

func (h *host) shutdown(ctx context.Context) {
	if h.idx == nil {
		return
	}
	if err := h.idx.SaveBaselines(ctx, h.board.State()); err != nil {
		h.log.Warn().Err(err).Msg("save baselines")
	}
	if err := h.idx.Flush(ctx); err != nil {
		h.log.Warn().Err(err).Msg("flush index")
	}
}
