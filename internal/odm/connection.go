package odm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"docmapper/internal/logging"
)

// ErrNotConnected is returned by operations issued before Connect succeeds or
// after Close.
var ErrNotConnected = errors.New("odm: connection is not established")

// State is the lifecycle state of a Connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Event names emitted by a Connection.
type Event string

const (
	EventConnected Event = "connected"
	EventError     Event = "error"
)

// Listener receives connection events. err is nil for EventConnected.
type Listener func(err error)

// Option configures a Connection.
type Option func(*Connection)

// WithLogger sets the logger used for connection and model operations.
func WithLogger(logger *logrus.Entry) Option {
	return func(c *Connection) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock replaces the timestamp source used for createdAt/updatedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Connection) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDCoercion selects the id coercion mode for models on this connection.
func WithIDCoercion(mode IDCoercion) Option {
	return func(c *Connection) {
		c.coercion = mode
	}
}

// Connection wraps the driver connect lifecycle. Models are bound to one
// Connection and resolve collection handles through it.
type Connection struct {
	dial     Dialer
	id       string
	logger   *logrus.Entry
	now      func() time.Time
	coercion IDCoercion

	mu        sync.RWMutex
	state     State
	db        Database
	listeners map[Event][]Listener
}

// NewConnection creates a disconnected Connection that uses dial on Connect.
func NewConnection(dial Dialer, opts ...Option) *Connection {
	c := &Connection{
		dial:      dial,
		id:        uuid.NewString(),
		now:       defaultNow,
		listeners: make(map[Event][]Listener),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.Logger()
	}
	c.logger = c.logger.WithField("connection_id", c.id)
	return c
}

func defaultNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// ID returns the identifier attached to this connection's log entries.
func (c *Connection) ID() string {
	return c.id
}

// State reports the current lifecycle state.
func (c *Connection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IDCoercion reports the configured id coercion mode.
func (c *Connection) IDCoercion() IDCoercion {
	return c.coercion
}

// On subscribes fn to event.
func (c *Connection) On(event Event, fn Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners[event] = append(c.listeners[event], fn)
}

// Connect runs the dialer. On success the state becomes connected; on failure
// it returns to disconnected and the dial error is returned. In both cases the
// matching event is emitted asynchronously after Connect has returned control.
func (c *Connection) Connect(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if c.dial == nil {
		return errors.New("odm: dialer is required")
	}

	c.mu.Lock()
	c.state = StateConnecting
	c.mu.Unlock()

	db, err := c.dial(ctx)

	c.mu.Lock()
	if err != nil {
		c.state = StateDisconnected
		c.db = nil
	} else {
		c.state = StateConnected
		c.db = db
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.WithField("event", "odm_connect_error").WithError(err).Error("connection failed")
		c.emit(EventError, err)
		return err
	}

	c.logger.WithField("event", "odm_connected").Info("connection established")
	c.emit(EventConnected, nil)
	return nil
}

// Database returns the connected database handle.
func (c *Connection) Database() (Database, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateConnected || c.db == nil {
		return nil, ErrNotConnected
	}
	return c.db, nil
}

// Collection returns the handle for a physical collection name.
func (c *Connection) Collection(name string) (Collection, error) {
	db, err := c.Database()
	if err != nil {
		return nil, err
	}
	return db.Collection(name), nil
}

// Ping checks the driver when the database handle supports it.
func (c *Connection) Ping(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	db, err := c.Database()
	if err != nil {
		return err
	}
	if p, ok := db.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close disconnects the driver when supported and resets the state.
func (c *Connection) Close(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	c.mu.Lock()
	db := c.db
	c.db = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if d, ok := db.(disconnecter); ok {
		return d.Disconnect(ctx)
	}
	return nil
}

func (c *Connection) emit(event Event, err error) {
	go func() {
		c.mu.RLock()
		listeners := make([]Listener, len(c.listeners[event]))
		copy(listeners, c.listeners[event])
		c.mu.RUnlock()

		for _, fn := range listeners {
			fn(err)
		}
	}()
}
