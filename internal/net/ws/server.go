// Package ws carries protocol messages over websockets. The host side
// upgrades connections and feeds tries into the tick loop; the client side
// dials the host and surfaces confirmations on a channel.
package ws

import (
	"context"
	"log"
	nethttp "net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/ThePuug/closed-economy/internal/event"
	"github.com/ThePuug/closed-economy/internal/net/intake"
	"github.com/ThePuug/closed-economy/internal/net/proto"
	"github.com/ThePuug/closed-economy/internal/sim"
	"github.com/ThePuug/closed-economy/internal/telemetry"
	"github.com/ThePuug/closed-economy/logging"
	"github.com/ThePuug/closed-economy/logging/lifecycle"
	"github.com/ThePuug/closed-economy/logging/protocol"
)

const (
	defaultWriteWait = 10 * time.Second

	DropMalformed   = "malformed"
	DropRateLimited = "rate_limited"

	sessionsMetricKey = "ws_sessions"
	droppedMetricKey  = "ws_messages_dropped_total"
	sentMetricKey     = "ws_messages_sent_total"
)

// Enqueuer accepts commands for the host loop. sim.Loop satisfies it.
type Enqueuer interface {
	Enqueue(cmd sim.Command) (bool, string)
}

type subscriberConn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type subscriber struct {
	mu      sync.Mutex
	conn    subscriberConn
	limiter *rate.Limiter
	remote  string
	// joined is set once the session's connection_init has been sent; only
	// joined sessions receive broadcasts.
	joined bool
}

func (s *subscriber) write(data []byte, wait time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(wait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// ServerConfig tunes the host transport.
type ServerConfig struct {
	Logger    *log.Logger
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	// RateLimit is the sustained number of tries per second accepted from one
	// connection. Zero disables limiting.
	RateLimit float64
	Burst     int
	WriteWait time.Duration
	// NewTID overrides session identifier generation.
	NewTID func() event.TID
}

// Server upgrades websocket connections for the host and implements the
// authority transmitter over them.
type Server struct {
	loop      Enqueuer
	logger    *log.Logger
	publisher logging.Publisher
	metrics   telemetry.Metrics
	upgrader  websocket.Upgrader
	rateLimit float64
	burst     int
	writeWait time.Duration
	newTID    func() event.TID

	mu          sync.Mutex
	subscribers map[event.TID]*subscriber
}

func NewServer(loop Enqueuer, cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	writeWait := cfg.WriteWait
	if writeWait <= 0 {
		writeWait = defaultWriteWait
	}
	newTID := cfg.NewTID
	if newTID == nil {
		newTID = func() event.TID { return event.TID(uuid.NewString()) }
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Server{
		loop:      loop,
		logger:    logger,
		publisher: publisher,
		metrics:   metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *nethttp.Request) bool {
				return true
			},
		},
		rateLimit:   cfg.RateLimit,
		burst:       burst,
		writeWait:   writeWait,
		newTID:      newTID,
		subscribers: make(map[event.TID]*subscriber),
	}
}

// Handle upgrades the request and serves the connection until it closes.
func (s *Server) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}
	tid := s.newTID()
	sub := &subscriber{conn: conn, remote: r.RemoteAddr}
	if s.rateLimit > 0 {
		sub.limiter = rate.NewLimiter(rate.Limit(s.rateLimit), s.burst)
	}
	s.register(tid, sub)
	lifecycle.SessionJoined(r.Context(), s.publisher, logging.SessionRef(string(tid)), lifecycle.SessionJoinedPayload{Remote: r.RemoteAddr})

	s.serve(tid, sub, conn)
}

func (s *Server) serve(tid event.TID, sub *subscriber, conn *websocket.Conn) {
	ctx := context.Background()
	reason := "closed"
	defer func() {
		s.unregister(tid)
		conn.Close()
		if ok, dropReason := s.loop.Enqueue(sim.NewDisconnect(tid, reason)); !ok {
			s.logger.Printf("failed to stage disconnect for %s: %s", tid, dropReason)
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				reason = "error"
				s.logger.Printf("read failed for %s: %v", tid, err)
			}
			return
		}

		msg, err := proto.Decode(payload)
		if err != nil {
			s.logger.Printf("discarding malformed message from %s: %v", tid, err)
			s.drop(ctx, tid, DropMalformed)
			continue
		}
		cmd, ok, rejectReason := intake.StageTry(intake.CommandContext{Now: time.Now}, tid, msg)
		if !ok {
			s.drop(ctx, tid, rejectReason)
			continue
		}
		if sub.limiter != nil && !sub.limiter.Allow() {
			s.drop(ctx, tid, DropRateLimited)
			continue
		}
		if ok, dropReason := s.loop.Enqueue(cmd); !ok {
			s.drop(ctx, tid, dropReason)
		}
	}
}

func (s *Server) drop(ctx context.Context, tid event.TID, reason string) {
	s.metrics.Add(droppedMetricKey, 1)
	protocol.MessageDropped(ctx, s.publisher, logging.SessionRef(string(tid)), protocol.DropPayload{Reason: reason})
}

func (s *Server) register(tid event.TID, sub *subscriber) {
	s.mu.Lock()
	s.subscribers[tid] = sub
	count := len(s.subscribers)
	s.mu.Unlock()
	s.metrics.Store(sessionsMetricKey, uint64(count))
}

func (s *Server) unregister(tid event.TID) {
	s.mu.Lock()
	delete(s.subscribers, tid)
	count := len(s.subscribers)
	s.mu.Unlock()
	s.metrics.Store(sessionsMetricKey, uint64(count))
}

// Sessions reports the number of connected sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

// Transmit delivers a confirmation to tid, or to every joined session when
// broadcast is set. A failed write closes the connection; its reader then
// stages the disconnect.
func (s *Server) Transmit(tid event.TID, evt event.Event, seq event.Seq, broadcast bool) {
	data, err := proto.EncodeDo(tid, evt, seq, broadcast)
	if err != nil {
		s.logger.Printf("failed to encode %s for %s: %v", evt.Kind, tid, err)
		return
	}

	s.mu.Lock()
	targets := make(map[event.TID]*subscriber)
	if broadcast {
		for id, sub := range s.subscribers {
			if sub.joined {
				targets[id] = sub
			}
		}
	} else if sub, ok := s.subscribers[tid]; ok {
		if evt.Kind == event.ConnectionInit {
			sub.joined = true
		}
		targets[tid] = sub
	}
	s.mu.Unlock()

	for id, sub := range targets {
		if err := sub.write(data, s.writeWait); err != nil {
			s.logger.Printf("failed to send %s to %s: %v", evt.Kind, id, err)
			sub.conn.Close()
			continue
		}
		s.metrics.Add(sentMetricKey, 1)
	}
}

// Close closes every connection.
func (s *Server) Close() {
	s.mu.Lock()
	subs := make([]*subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.mu.Unlock()
	for _, sub := range subs {
		sub.mu.Lock()
		sub.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "host shutting down"))
		sub.mu.Unlock()
		sub.conn.Close()
	}
}
