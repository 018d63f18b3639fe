package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/masterblaster1999/Nebula4X-sub001/internal/influx"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/persistence/indexdb"
	persistlog "github.com/masterblaster1999/Nebula4X-sub001/internal/persistence/log"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/persistence/snapshot"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/snapwatch"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/telemetry"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/transport/httpapi"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/transport/ws"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/watchboard"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		pinsPath   = flag.String("pins", "", "path to watchboard.toml (default: <configs>/watchboard.toml)")
		snapPath   = flag.String("snapshot", "", "snapshot file to load (default: latest in <data>/snapshots)")
		watchSnaps = flag.Bool("watch", true, "reload when the snapshot changes on disk")
		disableDB  = flag.Bool("disable_db", false, "disable the revision/alert index")

		logLevel  = flag.String("log_level", "info", "log level (trace, debug, info, warn, error)")
		logPretty = flag.Bool("log_pretty", false, "human readable console logs")

		loopbackOnly = flag.Bool("loopback_only", false, "serve the API to loopback clients only")

		influxURL    = flag.String("influx_url", "", "InfluxDB url (empty disables pin samples)")
		influxToken  = flag.String("influx_token", "", "InfluxDB token (or set N4X_INFLUX_TOKEN)")
		influxOrg    = flag.String("influx_org", "nebula4x", "InfluxDB organization")
		influxBucket = flag.String("influx_bucket", "watchboard", "InfluxDB bucket")
	)
	flag.Parse()

	logger := newLogger(*logLevel, *logPretty)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := loadTuning(tp, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("path", tp).Msg("load tuning")
	}

	pp := strings.TrimSpace(*pinsPath)
	if pp == "" {
		pp = filepath.Join(*configDir, "watchboard.toml")
	}
	pins, err := watchboard.LoadPins(pp)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Fatal().Err(err).Str("path", pp).Msg("load pins")
		}
		logger.Info().Str("path", pp).Msg("no pin file; watchboard is empty")
	}

	metrics, err := telemetry.New()
	if err != nil {
		logger.Fatal().Err(err).Msg("telemetry")
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index", "n4x.sqlite"), indexdb.WithLogger(logger))
		if err != nil {
			logger.Fatal().Err(err).Msg("open index")
		}
		defer idx.Close()
	}

	ctx, cancel := signalContext()
	defer cancel()

	board := watchboard.New(pins, logger, metrics)
	h := &host{log: logger, store: &httpapi.Store{}, board: board, idx: idx}
	if err := h.restore(ctx); err != nil {
		logger.Fatal().Err(err).Msg("restore watch state")
	}

	alertLog := persistlog.NewAlertLogger(*dataDir)
	defer alertLog.Close()
	hub := ws.NewServer(backlogOf(idx), logger)

	if idx != nil {
		board.AddSink(idx)
	}
	board.AddSink(alertLog)
	board.AddSink(hub)

	if u := strings.TrimSpace(*influxURL); u != "" {
		token := *influxToken
		if token == "" {
			token = os.Getenv("N4X_INFLUX_TOKEN")
		}
		im := influx.NewManager(influx.Config{
			URL:        u,
			Token:      token,
			Org:        *influxOrg,
			Bucket:     *influxBucket,
			BackupPath: filepath.Join(*dataDir, "influx", "watchboard.lp.gz"),
		}, logger)
		_ = os.MkdirAll(filepath.Join(*dataDir, "influx"), 0o755)
		if err := im.Connect(ctx); err != nil {
			logger.Warn().Err(err).Msg("influx disabled")
		} else {
			defer im.Close()
			board.AddSink(im)
		}
	}

	// Snapshot source: an explicit file, otherwise the newest file in the
	// snapshots directory.
	snapDir := filepath.Join(*dataDir, "snapshots")
	watchTarget := snapDir
	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad != "" {
		watchTarget = snapshotToLoad
	} else {
		_ = os.MkdirAll(snapDir, 0o755)
		latest, err := snapshot.LatestSnapshot(snapDir)
		switch {
		case err == nil:
			snapshotToLoad = latest
		case errors.Is(err, snapshot.ErrNoSnapshot):
			logger.Info().Str("dir", snapDir).Msg("no snapshot yet; waiting for the game to write one")
		default:
			logger.Fatal().Err(err).Msg("find latest snapshot")
		}
	}
	if snapshotToLoad != "" {
		if err := h.load(ctx, snapshotToLoad); err != nil {
			logger.Fatal().Err(err).Msg("load snapshot")
		}
	}

	if *watchSnaps {
		w, err := snapwatch.New(watchTarget, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("snapshot watcher")
		}
		if err := w.Start(); err != nil {
			logger.Fatal().Err(err).Str("target", watchTarget).Msg("snapshot watcher")
		}
		defer w.Stop()
		go h.follow(ctx, w)
	}

	api := httpapi.New(httpapi.Config{Tuning: tune, LoopbackOnly: *loopbackOnly}, h.store, board, inboxOf(idx), metrics, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		writeMetrics(rw, h.store.Load(), hub, idx)
	})
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(board.State())
	})
	if envBool("N4X_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	api.Register(mux)
	mux.HandleFunc("/v1/alerts/ws", hub.Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info().Str("addr", *addr).Int("pins", len(pins.Pins)).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("ListenAndServe")
	}

	ctx3, cancel3 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel3()
	h.shutdown(ctx3)
	logger.Info().Msg("stopped")
}

func newLogger(level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }

	out := zerolog.New(os.Stdout)
	if pretty {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	return out.Level(lvl).With().Timestamp().Str("app", "n4x-server").Logger()
}

// The index is optional; typed nils must not leak into the interfaces.
func backlogOf(idx *indexdb.SQLiteIndex) ws.Backlog {
	if idx == nil {
		return nil
	}
	return idx
}

func inboxOf(idx *indexdb.SQLiteIndex) httpapi.Inbox {
	if idx == nil {
		return nil
	}
	return idx
}

func writeMetrics(rw http.ResponseWriter, cur *httpapi.Current, hub *ws.Server, idx *indexdb.SQLiteIndex) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

	var day int64
	var rev int64
	if cur != nil {
		day, rev = cur.Snap.Header.Day, cur.Revision.Rev
	}
	fmt.Fprintf(rw, "# HELP n4x_world_day Day of the loaded snapshot.\n")
	fmt.Fprintf(rw, "# TYPE n4x_world_day gauge\n")
	fmt.Fprintf(rw, "n4x_world_day %d\n", day)

	fmt.Fprintf(rw, "# HELP n4x_revision Current document revision.\n")
	fmt.Fprintf(rw, "# TYPE n4x_revision gauge\n")
	fmt.Fprintf(rw, "n4x_revision %d\n", rev)

	fmt.Fprintf(rw, "# HELP n4x_ws_sessions Connected alert stream sessions.\n")
	fmt.Fprintf(rw, "# TYPE n4x_ws_sessions gauge\n")
	fmt.Fprintf(rw, "n4x_ws_sessions %d\n", hub.Sessions())

	fmt.Fprintf(rw, "# HELP n4x_ws_dropped_total Alerts dropped for slow sessions.\n")
	fmt.Fprintf(rw, "# TYPE n4x_ws_dropped_total counter\n")
	fmt.Fprintf(rw, "n4x_ws_dropped_total %d\n", hub.Dropped())

	if idx == nil {
		return
	}
	s := idx.Stats()
	fmt.Fprintf(rw, "# HELP n4x_index_queue_depth Index writer backlog.\n")
	fmt.Fprintf(rw, "# TYPE n4x_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "n4x_index_queue_depth %d\n", s.QueueDepth)
	fmt.Fprintf(rw, "n4x_index_queue_capacity %d\n", s.QueueCapacity)

	fmt.Fprintf(rw, "# HELP n4x_index_alert_dropped_total Alerts dropped because the index queue was full.\n")
	fmt.Fprintf(rw, "# TYPE n4x_index_alert_dropped_total counter\n")
	fmt.Fprintf(rw, "n4x_index_alert_dropped_total %d\n", s.DropAlertTotal)

	fmt.Fprintf(rw, "# HELP n4x_index_alert_lost_total Queued alerts discarded by a rolled back batch.\n")
	fmt.Fprintf(rw, "# TYPE n4x_index_alert_lost_total counter\n")
	fmt.Fprintf(rw, "n4x_index_alert_lost_total %d\n", s.LostAlertTotal)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func envBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
