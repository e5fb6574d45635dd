// Package bridge exposes entities to remote reasoning engines over websocket.
// A client says hello with an entity name, then receives every commit of that
// entity's fact tree and sends proposed actions back between ticks.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/zeusync/inputlink/internal/core/events/bus"
	"github.com/zeusync/inputlink/internal/core/facts"
	"github.com/zeusync/inputlink/internal/core/observability/log"
	"github.com/zeusync/inputlink/internal/core/systems/physics"
	"github.com/zeusync/inputlink/internal/core/world"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
)

// Engine is the part of the engine the bridge drives.
type Engine interface {
	EntityID(name string) (string, bool)
	Propose(id string, action world.ProposedAction) error
	Snapshot(id string) (*facts.Snapshot, bool)
	AddOrUpdateWaypoint(id, name string, target physics.Vec3) error
	RemoveWaypoint(id, name string) (bool, error)
}

type Options struct {
	Addr string
	Path string
	// SendSnapshots streams whole snapshots instead of change batches.
	SendSnapshots bool
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	entity string
}

type Server struct {
	engine Engine
	bus    bus.EventBus
	log    log.Log
	opts   Options
	schema *jsonschema.Schema

	upgrader websocket.Upgrader
	httpSrv  *http.Server

	mu      sync.Mutex
	clients map[*client]struct{}
	subs    []bus.Subscription
}

func NewServer(engine Engine, b bus.EventBus, opts Options, l log.Log) (*Server, error) {
	if l == nil {
		l = log.NewNop()
	}
	if opts.Path == "" {
		opts.Path = "/ws"
	}
	schema, err := compileClientSchema()
	if err != nil {
		return nil, err
	}
	s := &Server{
		engine: engine,
		bus:    b,
		log:    l.Named("bridge"),
		opts:   opts,
		schema: schema,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}

	for typ, handler := range map[string]bus.EventHandler{
		bus.TypeFactsCommitted: s.onCommit,
		bus.TypeTickCompleted:  s.onTick,
	} {
		sub, err := b.Subscribe(typ, handler)
		if err != nil {
			return nil, fmt.Errorf("bridge subscribe %s: %w", typ, err)
		}
		s.subs = append(s.subs, sub)
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.opts.Path, s.handleWebSocket)
	return mux
}

// ListenAndServe serves until ctx is done, then shuts down and drops every
// client.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpSrv = &http.Server{Addr: s.opts.Addr, Handler: s.Handler()}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("bridge listening", log.String("addr", s.opts.Addr), log.String("path", s.opts.Path))
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("bridge: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	err := s.httpSrv.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close drops every client and detaches from the bus.
func (s *Server) Close() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c.conn)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Cancel()
	}
	for _, conn := range conns {
		_ = conn.Close()
	}
}

// Clients is the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", log.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	s.log.Info("client connected", log.String("remote", conn.RemoteAddr().String()))

	go s.writePump(c)
	s.readPump(c)
}

func (s *Server) readPump(c *client) {
	defer s.unregister(c)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		frame, err := decodeFrame(s.schema, raw)
		if err != nil {
			s.reply(c, ServerFrame{Type: FrameError, Error: err.Error()})
			continue
		}
		if err := s.handle(c, frame); err != nil {
			s.reply(c, ServerFrame{Type: FrameError, Error: err.Error()})
			continue
		}
		if frame.Type != FrameHello {
			s.reply(c, ServerFrame{Type: FrameAck})
		}
	}
}

func (s *Server) writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			s.log.Debug("client write failed", log.Error(err))
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()
	s.log.Info("client disconnected", log.String("remote", c.conn.RemoteAddr().String()))
}

func (s *Server) handle(c *client, f ClientFrame) error {
	if f.Type == FrameHello {
		id, ok := s.engine.EntityID(f.Entity)
		if !ok {
			return fmt.Errorf("unknown entity %q", f.Entity)
		}
		snap, ok := s.engine.Snapshot(id)
		if !ok {
			return fmt.Errorf("entity %q was removed", f.Entity)
		}
		s.mu.Lock()
		c.entity = id
		s.mu.Unlock()
		s.reply(c, ServerFrame{Type: FrameWelcome, Entity: id, Version: snap.Version, Snapshot: snap})
		return nil
	}

	s.mu.Lock()
	id := c.entity
	s.mu.Unlock()
	if id == "" {
		return errors.New("hello required")
	}

	switch f.Type {
	case FrameAction:
		return s.engine.Propose(id, *f.Action)
	case FrameWaypoint:
		return s.engine.AddOrUpdateWaypoint(id, f.Name, *f.Target)
	case FrameRemoveWaypoint:
		_, err := s.engine.RemoveWaypoint(id, f.Name)
		return err
	default:
		return fmt.Errorf("%w: type %q", ErrInvalidFrame, f.Type)
	}
}

func (s *Server) onCommit(ev bus.Event) error {
	batch, ok := ev.Data().(facts.Batch)
	if !ok {
		return nil
	}
	frame := ServerFrame{Type: FrameCommit, Entity: batch.Source, Version: batch.Version, Changes: batch.Changes}
	if s.opts.SendSnapshots {
		frame = ServerFrame{Type: FrameSnapshot, Entity: batch.Source, Version: batch.Version, Snapshot: batch.Snapshot}
	}
	s.broadcast(frame, func(c *client) bool { return c.entity == batch.Source })
	return nil
}

func (s *Server) onTick(ev bus.Event) error {
	report, ok := ev.Data().(bus.TickReport)
	if !ok {
		return nil
	}
	s.broadcast(ServerFrame{Type: FrameTick, Tick: report.Tick}, func(c *client) bool { return c.entity != "" })
	return nil
}

func (s *Server) reply(c *client, f ServerFrame) {
	s.broadcast(f, func(other *client) bool { return other == c })
}

// broadcast queues f on every matching client. A client whose buffer is full
// loses the frame.
func (s *Server) broadcast(f ServerFrame, match func(*client) bool) {
	msg, err := json.Marshal(f)
	if err != nil {
		s.log.Error("frame encode failed", log.String("type", f.Type), log.Error(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		if !match(c) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			s.log.Warn("client send buffer full, frame dropped", log.String("type", f.Type))
		}
	}
}
