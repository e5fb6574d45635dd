// Package client is a Go SDK for remote reasoning engines driving an entity
// through the websocket bridge.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/inputlink/internal/bridge"
	"github.com/zeusync/inputlink/internal/core/facts"
	"github.com/zeusync/inputlink/internal/core/observability/log"
	"github.com/zeusync/inputlink/internal/core/systems/physics"
	"github.com/zeusync/inputlink/internal/core/world"
)

// Client is one bridge connection bound to a single entity.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	// Entity state, fixed by the welcome frame
	entityID string
	welcome  *facts.Snapshot

	// Frame handlers
	frameHandlers map[string][]FrameHandler
	eventHandlers map[EventType][]EventHandler
	handlerMutex  sync.RWMutex

	frames chan bridge.ServerFrame

	// Lifecycle
	connected int32 // atomic bool
	closed    int32 // atomic bool

	config Config
	logger log.Log

	workerGroup sync.WaitGroup
}

type Config struct {
	// ServerURL is the websocket endpoint, e.g. ws://localhost:8080/ws.
	ServerURL      string
	Entity         string
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration

	// MessageBufferSize bounds Frames(); a slow reader loses frames.
	MessageBufferSize int

	LogLevel log.Level
}

func DefaultClientConfig() Config {
	return Config{
		ServerURL:         "ws://localhost:8080/ws",
		ConnectTimeout:    10 * time.Second,
		WriteTimeout:      5 * time.Second,
		MessageBufferSize: 256,
		LogLevel:          log.LevelInfo,
	}
}

// FrameHandler is called from the receive loop for every frame of its type.
type FrameHandler func(frame bridge.ServerFrame) error

type EventHandler func(event Event) error

type EventType string

const (
	EventTypeConnected    EventType = "connected"
	EventTypeDisconnected EventType = "disconnected"
	EventTypeError        EventType = "error"
)

type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      map[string]any
	Error     error
}

func NewClient(config Config) (*Client, error) {
	if config.ServerURL == "" || config.Entity == "" {
		return nil, ErrInvalidConfig
	}
	def := DefaultClientConfig()
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = def.ConnectTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = def.WriteTimeout
	}
	if config.MessageBufferSize <= 0 {
		config.MessageBufferSize = def.MessageBufferSize
	}

	c := &Client{
		frameHandlers: make(map[string][]FrameHandler),
		eventHandlers: make(map[EventType][]EventHandler),
		frames:        make(chan bridge.ServerFrame, config.MessageBufferSize),
		config:        config,
		logger:        log.New(config.LogLevel).With(log.String("component", "client"), log.Entity(config.Entity)),
	}
	return c, nil
}

// Connect dials the bridge, says hello and waits for the welcome. Frames that
// arrive before the welcome are queued on Frames().
func (c *Client) Connect(ctx context.Context) error {
	if atomic.LoadInt32(&c.closed) == 1 {
		return ErrClientClosed
	}
	if !atomic.CompareAndSwapInt32(&c.connected, 0, 1) {
		return ErrAlreadyConnected
	}

	connectCtx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(connectCtx, c.config.ServerURL, nil)
	if err != nil {
		atomic.StoreInt32(&c.connected, 0)
		c.logger.Error("dial failed", log.String("url", c.config.ServerURL), log.Error(err))
		return err
	}
	c.conn = conn

	if err := c.hello(connectCtx); err != nil {
		atomic.StoreInt32(&c.connected, 0)
		_ = conn.Close()
		return err
	}

	c.logger.Info("connected", log.String("entity_id", c.entityID))
	c.startWorkers()
	c.emitEvent(Event{
		Type:      EventTypeConnected,
		Timestamp: time.Now(),
		Data:      map[string]any{"entity_id": c.entityID, "url": c.config.ServerURL},
	})
	return nil
}

func (c *Client) hello(ctx context.Context) error {
	if err := c.write(bridge.ClientFrame{Type: bridge.FrameHello, Entity: c.config.Entity}); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(deadline)
		defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()
	}
	for {
		frame, err := c.read()
		if err != nil {
			var ne interface{ Timeout() bool }
			if errors.As(err, &ne) && ne.Timeout() {
				return ErrConnectionTimeout
			}
			return err
		}
		switch frame.Type {
		case bridge.FrameWelcome:
			c.entityID = frame.Entity
			c.welcome = frame.Snapshot
			return nil
		case bridge.FrameError:
			return fmt.Errorf("%w: %s", ErrRejected, frame.Error)
		default:
			c.enqueue(frame)
		}
	}
}

// Disconnect closes the connection and waits for the receive loop.
func (c *Client) Disconnect() error {
	if !atomic.CompareAndSwapInt32(&c.connected, 1, 0) {
		return ErrNotConnected
	}
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.config.WriteTimeout))
	c.writeMu.Unlock()
	_ = c.conn.Close()
	c.stopWorkers()

	c.emitEvent(Event{Type: EventTypeDisconnected, Timestamp: time.Now()})
	c.logger.Info("disconnected")
	return nil
}

// Close disconnects if needed and closes Frames().
func (c *Client) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	if atomic.LoadInt32(&c.connected) == 1 {
		_ = c.Disconnect()
	}
	c.stopWorkers()
	close(c.frames)
	return nil
}

// Propose queues an action for the entity's next tick.
func (c *Client) Propose(action world.ProposedAction) error {
	return c.send(bridge.ClientFrame{Type: bridge.FrameAction, Action: &action})
}

func (c *Client) AddWaypoint(name string, target physics.Vec3) error {
	return c.send(bridge.ClientFrame{Type: bridge.FrameWaypoint, Name: name, Target: &target})
}

func (c *Client) RemoveWaypoint(name string) error {
	return c.send(bridge.ClientFrame{Type: bridge.FrameRemoveWaypoint, Name: name})
}

// OnFrame registers a handler for a server frame type.
func (c *Client) OnFrame(frameType string, handler FrameHandler) {
	c.handlerMutex.Lock()
	defer c.handlerMutex.Unlock()
	c.frameHandlers[frameType] = append(c.frameHandlers[frameType], handler)
}

func (c *Client) OnEvent(eventType EventType, handler EventHandler) {
	c.handlerMutex.Lock()
	defer c.handlerMutex.Unlock()
	c.eventHandlers[eventType] = append(c.eventHandlers[eventType], handler)
}

// Frames delivers every server frame after the welcome. It is closed by Close.
func (c *Client) Frames() <-chan bridge.ServerFrame {
	return c.frames
}

// EntityID is the engine's id for the bound entity, set once connected.
func (c *Client) EntityID() string {
	return c.entityID
}

// Welcome is the snapshot the server sent on hello.
func (c *Client) Welcome() *facts.Snapshot {
	return c.welcome
}

func (c *Client) IsConnected() bool {
	return atomic.LoadInt32(&c.connected) == 1
}

func (c *Client) IsClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

func (c *Client) send(frame bridge.ClientFrame) error {
	if atomic.LoadInt32(&c.closed) == 1 {
		return ErrClientClosed
	}
	if atomic.LoadInt32(&c.connected) == 0 {
		return ErrNotConnected
	}
	return c.write(frame)
}

func (c *Client) write(frame bridge.ClientFrame) error {
	raw, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, raw)
}

func (c *Client) read() (bridge.ServerFrame, error) {
	var frame bridge.ServerFrame
	_, raw, err := c.conn.ReadMessage()
	if err != nil {
		return frame, err
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		return frame, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	return frame, nil
}

func (c *Client) startWorkers() {
	c.workerGroup.Add(1)
	go func() {
		defer c.workerGroup.Done()
		c.frameReceiver()
	}()
}

func (c *Client) stopWorkers() {
	c.workerGroup.Wait()
}

func (c *Client) frameReceiver() {
	c.logger.Debug("frame receiver started")
	defer c.logger.Debug("frame receiver stopped")

	for {
		frame, err := c.read()
		if errors.Is(err, ErrInvalidMessage) {
			c.logger.Warn("dropping undecodable frame", log.Error(err))
			continue
		}
		if err != nil {
			if atomic.CompareAndSwapInt32(&c.connected, 1, 0) {
				c.logger.Warn("connection lost", log.Error(err))
				_ = c.conn.Close()
				c.emitEvent(Event{Type: EventTypeDisconnected, Timestamp: time.Now(), Error: err})
			}
			return
		}
		c.handleFrame(frame)
	}
}

func (c *Client) handleFrame(frame bridge.ServerFrame) {
	c.handlerMutex.RLock()
	handlers := c.frameHandlers[frame.Type]
	c.handlerMutex.RUnlock()

	for _, h := range handlers {
		if err := h(frame); err != nil {
			c.logger.Error("frame handler error", log.String("type", frame.Type), log.Error(err))
		}
	}
	if frame.Type == bridge.FrameError {
		c.emitEvent(Event{Type: EventTypeError, Timestamp: time.Now(), Error: fmt.Errorf("%w: %s", ErrRejected, frame.Error)})
	}
	c.enqueue(frame)
}

func (c *Client) enqueue(frame bridge.ServerFrame) {
	select {
	case c.frames <- frame:
	default:
		c.logger.Warn("frame buffer full, dropping", log.String("type", frame.Type))
	}
}

func (c *Client) emitEvent(event Event) {
	c.handlerMutex.RLock()
	handlers := c.eventHandlers[event.Type]
	c.handlerMutex.RUnlock()

	for _, handler := range handlers {
		go func(h EventHandler) {
			if err := h(event); err != nil {
				c.logger.Error("event handler error", log.Error(err))
			}
		}(handler)
	}
}
