// Package httpapi serves the read-only JSON API over the loaded world.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/masterblaster1999/Nebula4X-sub001/internal/jsonptr"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/protocol"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/sim/planner"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/sim/terraform"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/sim/tuning"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/sim/world"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/telemetry"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/watch"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/watchboard"
)

const maxBodyBytes = 1 << 20

const (
	limiterIdle  = 10 * time.Minute
	limiterSweep = time.Minute
	maxLimiters  = 10000
)

// Inbox serves stored alerts. A nil Inbox disables /v1/alerts.
type Inbox interface {
	ListAlerts(ctx context.Context, limit int, sinceSeq uint64) ([]watch.Alert, error)
	LastAlertSeq(ctx context.Context) (uint64, error)
}

type Config struct {
	Tuning tuning.SimConfig
	// LoopbackOnly rejects requests that do not come from a loopback address.
	LoopbackOnly bool
	// RatePerSecond and Burst size the per-IP limiter; zero means 10 and 20.
	RatePerSecond float64
	Burst         int
}

type Server struct {
	cfg     Config
	store   *Store
	board   *watchboard.Board
	inbox   Inbox
	metrics *telemetry.Metrics
	log     zerolog.Logger

	now       func() time.Time
	limMu     sync.Mutex
	limiters  map[string]*ipLimiter
	lastSweep time.Time
}

type ipLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

func New(cfg Config, store *Store, board *watchboard.Board, inbox Inbox, metrics *telemetry.Metrics, log zerolog.Logger) *Server {
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 20
	}
	return &Server{
		cfg:      cfg,
		store:    store,
		board:    board,
		inbox:    inbox,
		metrics:  metrics,
		log:      log.With().Str("component", "httpapi").Logger(),
		now:      time.Now,
		limiters: map[string]*ipLimiter{},
	}
}

// Register mounts the API routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.Handle("GET /v1/status", s.wrap(s.handleStatus))
	mux.Handle("GET /v1/resolve", s.wrap(s.handleResolve))
	mux.Handle("GET /v1/query", s.wrap(s.handleQuery))
	mux.Handle("GET /v1/complete", s.wrap(s.handleComplete))
	mux.Handle("POST /v1/plan", s.wrap(s.handlePlan))
	mux.Handle("GET /v1/terraform", s.wrap(s.handleTerraform))
	mux.Handle("GET /v1/watch", s.wrap(s.handleWatch))
	mux.Handle("GET /v1/alerts", s.wrap(s.handleAlerts))
}

// Handler returns a mux with only the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

func (s *Server) limiter(ip string) *rate.Limiter {
	s.limMu.Lock()
	defer s.limMu.Unlock()
	now := s.now()
	if now.Sub(s.lastSweep) >= limiterSweep {
		s.sweepLimiters(now)
	}
	l, ok := s.limiters[ip]
	if !ok {
		if len(s.limiters) >= maxLimiters {
			s.sweepLimiters(now)
			if len(s.limiters) >= maxLimiters {
				s.evictOldestLimiter()
			}
		}
		l = &ipLimiter{lim: rate.NewLimiter(rate.Limit(s.cfg.RatePerSecond), s.cfg.Burst)}
		s.limiters[ip] = l
	}
	l.seen = now
	return l.lim
}

// sweepLimiters drops limiters idle for limiterIdle. Caller holds limMu.
func (s *Server) sweepLimiters(now time.Time) {
	s.lastSweep = now
	for ip, l := range s.limiters {
		if now.Sub(l.seen) >= limiterIdle {
			delete(s.limiters, ip)
		}
	}
}

func (s *Server) evictOldestLimiter() {
	var oldest string
	var at time.Time
	for ip, l := range s.limiters {
		if oldest == "" || l.seen.Before(at) {
			oldest, at = ip, l.seen
		}
	}
	delete(s.limiters, oldest)
}

func (s *Server) wrap(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		host := remoteHost(r.RemoteAddr)
		if s.cfg.LoopbackOnly && !isLoopback(host) {
			writeError(rw, http.StatusForbidden, protocol.ErrBadRequest, "forbidden")
			return
		}
		if !s.limiter(host).Allow() {
			writeError(rw, http.StatusTooManyRequests, protocol.ErrRateLimit, "rate limit")
			return
		}
		h(rw, r)
	})
}

func (s *Server) current(rw http.ResponseWriter) *Current {
	c := s.store.Load()
	if c == nil {
		writeError(rw, http.StatusServiceUnavailable, protocol.ErrUnavailable, "no snapshot loaded")
	}
	return c
}

func (s *Server) handleStatus(rw http.ResponseWriter, r *http.Request) {
	resp := protocol.StatusResponse{ProtocolVersion: protocol.Version}
	if c := s.store.Load(); c != nil {
		resp.Snapshot = c.Path
		resp.WorldID = c.Snap.Header.WorldID
		resp.Day = c.Snap.Header.Day
		resp.Hour = c.Snap.Header.Hour
		resp.Revision = c.Revision.Rev
		resp.Digest = c.Revision.Digest
	}
	if s.board != nil {
		resp.Pins = len(s.board.Pins())
	}
	if s.inbox != nil {
		if seq, err := s.inbox.LastAlertSeq(r.Context()); err == nil {
			resp.LastAlertSeq = seq
		}
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (s *Server) handleResolve(rw http.ResponseWriter, r *http.Request) {
	c := s.current(rw)
	if c == nil {
		return
	}
	path := r.URL.Query().Get("path")
	resp := protocol.ResolveResponse{Path: path}
	v, err := jsonptr.Resolve(c.Snap.Doc, path, true)
	s.metrics.QueryServed(r.Context(), "resolve", 0)
	if err != nil {
		resp.Error = err.Error()
		writeJSON(rw, http.StatusNotFound, resp)
		return
	}
	resp.Found = true
	resp.Value = v
	writeJSON(rw, http.StatusOK, resp)
}

func (s *Server) handleQuery(rw http.ResponseWriter, r *http.Request) {
	c := s.current(rw)
	if c == nil {
		return
	}
	q := r.URL.Query()
	pattern := q.Get("pattern")
	maxMatches, maxNodes := watch.ClampQueryCaps(
		intParam(q.Get("max_matches"), 1000),
		intParam(q.Get("max_nodes"), 200000),
	)
	opts := jsonptr.QueryOptions{AcceptRootSlash: true, MaxMatches: maxMatches, MaxNodes: maxNodes}
	matches, st, err := jsonptr.Query(c.Snap.Doc, pattern, opts)
	s.metrics.QueryServed(r.Context(), "query", st.NodesVisited)
	resp := protocol.QueryResponse{Pattern: pattern, Matches: matches, Stats: st}
	if resp.Matches == nil {
		resp.Matches = []jsonptr.Match{}
	}
	if err != nil {
		resp.Error = err.Error()
		status := http.StatusBadRequest
		if errors.Is(err, jsonptr.ErrGlobIndex) {
			status = http.StatusOK
		}
		writeJSON(rw, status, resp)
		return
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (s *Server) handleComplete(rw http.ResponseWriter, r *http.Request) {
	c := s.current(rw)
	if c == nil {
		return
	}
	q := r.URL.Query()
	opts := jsonptr.DefaultSuggestOptions()
	opts.MaxSuggestions = intParam(q.Get("max"), opts.MaxSuggestions)
	opts.CaseSensitive = boolParam(q.Get("case"))
	input := q.Get("input")
	out := jsonptr.Suggest(c.Snap.Doc, input, opts)
	if out == nil {
		out = []string{}
	}
	s.metrics.QueryServed(r.Context(), "complete", 0)
	writeJSON(rw, http.StatusOK, protocol.CompleteResponse{Input: input, Suggestions: out})
}

func (s *Server) handlePlan(rw http.ResponseWriter, r *http.Request) {
	c := s.current(rw)
	if c == nil {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
		return
	}
	var generic any
	if err := json.Unmarshal(body, &generic); err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
		return
	}
	if err := protocol.Validate(protocol.SchemaPlanRequest, generic); err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
		return
	}
	opts := planner.DefaultOptions()
	req := protocol.PlanRequest{Options: &opts}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
		return
	}

	st := c.Snap.World
	if _, ok := st.Ships[req.ShipID]; !ok {
		writeError(rw, http.StatusNotFound, protocol.ErrInvalidTarget, "unknown ship "+strconv.FormatUint(uint64(req.ShipID), 10))
		return
	}
	var plan planner.OrderPlan
	if req.Orders != nil {
		plan = planner.Plan(st, s.cfg.Tuning, req.ShipID, *req.Orders, opts)
	} else {
		plan = planner.PlanShip(st, s.cfg.Tuning, req.ShipID, opts)
	}
	s.metrics.PlanComputed(r.Context(), plan.OK, plan.TruncatedReason)
	writeJSON(rw, http.StatusOK, plan)
}

func (s *Server) handleTerraform(rw http.ResponseWriter, r *http.Request) {
	c := s.current(rw)
	if c == nil {
		return
	}
	q := r.URL.Query()
	id, err := strconv.ParseUint(q.Get("body_id"), 10, 64)
	if err != nil || id == 0 {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "body_id must be a positive integer")
		return
	}
	if _, ok := c.Snap.World.Bodies[world.ID(id)]; !ok {
		writeError(rw, http.StatusNotFound, protocol.ErrInvalidTarget, "unknown body "+q.Get("body_id"))
		return
	}
	opts := terraform.Options{
		MaxDays:            intParam(q.Get("max_days"), terraform.DefaultMaxDays),
		IgnoreMineralCosts: boolParam(q.Get("ignore_minerals")),
	}
	sched := terraform.Forecast(c.Snap.World, s.cfg.Tuning, world.ID(id), opts)
	s.metrics.ForecastComputed(r.Context(), sched.Complete)
	writeJSON(rw, http.StatusOK, sched)
}

func (s *Server) handleWatch(rw http.ResponseWriter, r *http.Request) {
	c := s.current(rw)
	if c == nil {
		return
	}
	if s.board == nil {
		writeError(rw, http.StatusServiceUnavailable, protocol.ErrUnavailable, "no pins loaded")
		return
	}
	resp := protocol.WatchResponse{Day: c.Snap.Header.Day, Hour: c.Snap.Header.Hour, Results: []protocol.PinResultRecord{}}
	for _, pr := range s.board.Evaluate(c.Snap.Doc) {
		resp.Results = append(resp.Results, protocol.PinResultRecord{
			PinID:  pr.Pin.ID,
			Label:  pr.Pin.DisplayLabel(),
			Result: pr.Result,
		})
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (s *Server) handleAlerts(rw http.ResponseWriter, r *http.Request) {
	if s.inbox == nil {
		writeError(rw, http.StatusServiceUnavailable, protocol.ErrUnavailable, "alert inbox disabled")
		return
	}
	q := r.URL.Query()
	var since uint64
	if v := q.Get("since"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "since must be an alert sequence number")
			return
		}
		since = n
	}
	alerts, err := s.inbox.ListAlerts(r.Context(), intParam(q.Get("limit"), 100), since)
	if err != nil {
		s.log.Error().Err(err).Msg("list alerts")
		writeError(rw, http.StatusInternalServerError, protocol.ErrInternal, "list alerts failed")
		return
	}
	resp := protocol.AlertsResponse{Alerts: make([]protocol.AlertMsg, 0, len(alerts))}
	for _, a := range alerts {
		resp.Alerts = append(resp.Alerts, protocol.NewAlertMsg(a))
	}
	writeJSON(rw, http.StatusOK, resp)
}

func intParam(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func boolParam(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, code, msg string) {
	writeJSON(rw, status, protocol.NewErrorMsg(code, msg))
}

func remoteHost(remoteAddr string) string {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	return strings.TrimSuffix(host, "]")
}

func isLoopback(host string) bool {
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
