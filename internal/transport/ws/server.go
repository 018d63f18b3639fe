package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/masterblaster1999/Nebula4X-sub001/internal/protocol"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/watch"
)

const (
	sessionQueue = 32
	backlogLimit = 256
	writeWait    = 5 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
)

// Backlog serves alerts a reconnecting client missed.
type Backlog interface {
	ListAlerts(ctx context.Context, limit int, sinceSeq uint64) ([]watch.Alert, error)
}

// Server is the alert stream hub. Every session has its own bounded queue;
// a session that cannot keep up loses alerts instead of stalling the board.
type Server struct {
	log     zerolog.Logger
	backlog Backlog

	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*session

	dropped atomic.Uint64
	writers atomic.Int64
}

type session struct {
	id       string
	minLevel watch.Level
	out      chan watch.Alert
}

func NewServer(backlog Backlog, log zerolog.Logger) *Server {
	return &Server{
		log:      log.With().Str("component", "ws").Logger(),
		backlog:  backlog,
		sessions: map[string]*session{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Emit queues a to every session whose level filter admits it.
func (s *Server) Emit(a watch.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if a.Level < sess.minLevel {
			continue
		}
		select {
		case sess.out <- a:
		default:
			s.dropped.Add(1)
		}
	}
	return nil
}

func (s *Server) Sample(watch.Pin, watch.Result, int64, int) error { return nil }

func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Dropped counts alerts discarded because a session queue was full.
func (s *Server) Dropped() uint64 { return s.dropped.Load() }

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sub, ok := s.handshake(conn)
		if !ok {
			return
		}

		sess := &session{id: uuid.NewString(), minLevel: sub.MinLevel, out: make(chan watch.Alert, sessionQueue)}
		s.mu.Lock()
		s.sessions[sess.id] = sess
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.sessions, sess.id)
			s.mu.Unlock()
		}()
		log := s.log.With().Str("session", sess.id).Logger()
		log.Debug().Str("min_level", sess.minLevel.String()).Msg("subscribed")

		if err := writeJSON(conn, protocol.SubscribedMsg{
			Type:            protocol.TypeSubscribed,
			ProtocolVersion: protocol.Version,
			SessionID:       sess.id,
			MinLevel:        sess.minLevel.String(),
		}); err != nil {
			return
		}

		// Replay the inbox before live alerts; live alerts already covered by
		// the replay are skipped by sequence.
		var replayed uint64
		if sub.SinceSeq != 0 && s.backlog != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			alerts, err := s.backlog.ListAlerts(ctx, backlogLimit, sub.SinceSeq)
			cancel()
			if err != nil {
				log.Warn().Err(err).Msg("backlog")
			}
			for _, a := range alerts {
				if a.Level < sess.minLevel {
					continue
				}
				if err := writeJSON(conn, protocol.NewAlertMsg(a)); err != nil {
					return
				}
				replayed = max(replayed, a.Seq)
			}
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// The writer is joined before the deferred Close runs.
		writerDone := make(chan struct{})
		s.writers.Add(1)
		go func() {
			defer close(writerDone)
			defer s.writers.Add(-1)
			// Unblock the reader when the writer gives up first.
			defer func() { _ = conn.SetReadDeadline(time.Now()) }()
			ticker := time.NewTicker(pingPeriod)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case a := <-sess.out:
					if replayed != 0 && a.Seq <= replayed {
						continue
					}
					if err := writeJSON(conn, protocol.NewAlertMsg(a)); err != nil {
						cancel()
						return
					}
				case <-ticker.C:
					if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop: clients only send control frames after subscribing.
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		cancel()
		<-writerDone
		log.Debug().Msg("closed")
	}
}

func (s *Server) handshake(conn *websocket.Conn) (protocol.SubscribeMsg, bool) {
	var sub protocol.SubscribeMsg
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return sub, false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeSubscribe {
		reject(conn, protocol.ErrProtoBadRequest, "expected SUBSCRIBE")
		return sub, false
	}
	if err := json.Unmarshal(msg, &sub); err != nil {
		reject(conn, protocol.ErrProtoBadRequest, err.Error())
		return sub, false
	}
	if sub.ProtocolVersion != protocol.Version {
		reject(conn, protocol.ErrProtoVersion, "bad protocol_version")
		return sub, false
	}
	return sub, true
}

func reject(conn *websocket.Conn, code, msg string) {
	_ = writeJSON(conn, protocol.NewErrorMsg(code, msg))
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, msg), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, b)
}
