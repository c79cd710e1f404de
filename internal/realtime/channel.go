package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/samirrijal/eggtrail/internal/core/domain"
	"github.com/samirrijal/eggtrail/internal/pkg/metrics"
)

var (
	// ErrNotConnected is returned by sends while the channel is not connected.
	ErrNotConnected = errors.New("sync channel not connected")
	// ErrMaxRetriesExceeded is reported once the retry budget is spent.
	ErrMaxRetriesExceeded = errors.New("sync channel: max reconnect attempts reached")
	// ErrManualDisconnect is returned by RetryConnection after Disconnect.
	ErrManualDisconnect = errors.New("sync channel: manually disconnected")
)

// Timer is a pending delayed call.
type Timer interface {
	Stop() bool
}

// Options configures a Channel.
type Options struct {
	URL        string
	WorkerName string

	InitialBackoff time.Duration // default 1s
	MaxBackoff     time.Duration // default 60s
	MaxAttempts    int           // default 10
	DialTimeout    time.Duration // default 10s

	Dialer Dialer
	Logger *slog.Logger

	// AfterFunc schedules reconnects; defaults to time.AfterFunc.
	// f must run on another goroutine, never inside AfterFunc itself.
	AfterFunc func(d time.Duration, f func()) Timer
}

func (o *Options) setDefaults() {
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = time.Second
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 60 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 10
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 10 * time.Second
	}
	if o.Dialer == nil {
		o.Dialer = NewWebSocketDialer(o.DialTimeout, nil)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.AfterFunc == nil {
		o.AfterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
}

// Channel is a sync connection that reconnects with exponential backoff
// after unexpected drops. A Channel has a single owner; state changes only
// through its own methods and transport callbacks.
type Channel struct {
	opts Options
	log  *slog.Logger

	mu       sync.Mutex
	state    State
	conn     Conn
	gen      uint64 // bumped on every open; stale read loops are ignored
	farmID   string
	workerID string
	attempts int
	manual   bool
	timer    Timer
	backoff  *backoff.ExponentialBackOff

	writeMu sync.Mutex

	obsMu     sync.Mutex
	observers map[int]Observer
	nextObsID int
}

// NewChannel creates a disconnected Channel.
func NewChannel(opts Options) *Channel {
	opts.setDefaults()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.InitialBackoff
	b.MaxInterval = opts.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	return &Channel{
		opts:      opts,
		log:       opts.Logger.With("component", "sync_channel"),
		state:     Disconnected,
		backoff:   b,
		observers: make(map[int]Observer),
	}
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the number of reconnect attempts since the last successful open.
func (c *Channel) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Subscribe registers an observer and returns a function that removes it.
func (c *Channel) Subscribe(o Observer) func() {
	c.obsMu.Lock()
	id := c.nextObsID
	c.nextObsID++
	c.observers[id] = o
	c.obsMu.Unlock()

	return func() {
		c.obsMu.Lock()
		delete(c.observers, id)
		c.obsMu.Unlock()
	}
}

func (c *Channel) snapshotObservers() []Observer {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	out := make([]Observer, 0, len(c.observers))
	for _, o := range c.observers {
		out = append(out, o)
	}
	return out
}

func (c *Channel) emitState(s State) {
	metrics.SyncChannelState.Set(float64(s))
	for _, o := range c.snapshotObservers() {
		o.OnState(s)
	}
}

func (c *Channel) emitEvent(e domain.Event) {
	for _, o := range c.snapshotObservers() {
		o.OnEvent(e)
	}
}

func (c *Channel) emitError(err error) {
	for _, o := range c.snapshotObservers() {
		o.OnError(err)
	}
}

// Connect opens the channel for a farm group. It is a no-op when already
// connected or while a dial is in flight.
func (c *Channel) Connect(ctx context.Context, farmID, workerID string) error {
	c.mu.Lock()
	if c.state == Connected || c.state == Connecting {
		c.mu.Unlock()
		return nil
	}
	c.farmID = farmID
	c.workerID = workerID
	c.manual = false
	c.attempts = 0
	c.backoff.Reset()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	return c.open(ctx)
}

// reconnect is the timer callback for a scheduled retry.
func (c *Channel) reconnect() {
	c.mu.Lock()
	c.timer = nil
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.DialTimeout)
	defer cancel()
	_ = c.open(ctx)
}

func (c *Channel) open(ctx context.Context) error {
	c.mu.Lock()
	if c.manual {
		c.mu.Unlock()
		return ErrManualDisconnect
	}
	c.gen++
	gen := c.gen
	c.state = Connecting
	c.mu.Unlock()
	c.emitState(Connecting)

	conn, err := c.opts.Dialer.Dial(ctx, c.opts.URL)

	c.mu.Lock()
	if c.manual || c.gen != gen {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return ErrManualDisconnect
	}
	if err != nil {
		c.state = Error
		c.mu.Unlock()

		c.log.Warn("sync channel open failed", "url", c.opts.URL, "error", err)
		c.emitState(Error)
		c.emitError(err)
		_ = c.RetryConnection()
		return err
	}

	c.conn = conn
	c.attempts = 0
	c.backoff.Reset()
	c.state = Connected
	farmID, workerID := c.farmID, c.workerID
	c.mu.Unlock()

	c.log.Info("sync channel connected", "url", c.opts.URL, "farm_id", farmID, "worker_id", workerID)
	c.emitState(Connected)

	go c.readLoop(conn, gen)

	if err := c.JoinFarm(farmID, workerID); err != nil {
		c.emitError(fmt.Errorf("join farm %s: %w", farmID, err))
	}
	return nil
}

func (c *Channel) readLoop(conn Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleDrop(gen, err)
			return
		}

		var e domain.Event
		if err := json.Unmarshal(data, &e); err != nil {
			c.log.Debug("sync channel: undecodable message", "error", err)
			continue
		}
		if !inboundEvents[e.Name] {
			c.log.Debug("sync channel: ignoring event", "event", e.Name)
			continue
		}
		c.emitEvent(e)
	}
}

// handleDrop runs when the transport read fails.
func (c *Channel) handleDrop(gen uint64, cause error) {
	c.mu.Lock()
	if gen != c.gen || c.manual {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.state = Reconnecting
	c.mu.Unlock()

	c.log.Warn("sync channel dropped", "error", cause)
	c.emitState(Reconnecting)
	_ = c.RetryConnection()
}

// RetryConnection schedules the next reconnect after the backoff delay.
// It refuses after Disconnect and reports ErrMaxRetriesExceeded once the
// attempt budget is spent; Connect must be called again to resume.
func (c *Channel) RetryConnection() error {
	c.mu.Lock()
	if c.manual {
		c.mu.Unlock()
		return ErrManualDisconnect
	}
	if c.attempts >= c.opts.MaxAttempts {
		c.state = Error
		c.mu.Unlock()

		c.log.Error("sync channel giving up", "attempts", c.opts.MaxAttempts)
		c.emitState(Error)
		c.emitError(ErrMaxRetriesExceeded)
		return ErrMaxRetriesExceeded
	}

	c.attempts++
	attempt := c.attempts
	delay := c.backoff.NextBackOff()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = c.opts.AfterFunc(delay, c.reconnect)
	c.mu.Unlock()

	metrics.SyncReconnectAttempts.Inc()
	c.log.Info("sync channel reconnect scheduled", "attempt", attempt, "delay", delay.String())
	return nil
}

// Disconnect closes the channel and suppresses automatic reconnects until
// the next Connect.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.manual = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	conn := c.conn
	c.conn = nil
	changed := c.state != Disconnected
	c.state = Disconnected
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if changed {
		c.log.Info("sync channel disconnected")
		c.emitState(Disconnected)
	}
}

// send writes a named event. Nothing is queued while disconnected.
func (c *Channel) send(name string, payload any) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == Connected && conn != nil
	c.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}

	msg, err := domain.EncodeEvent(name, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(textMessage, msg); err != nil {
		return fmt.Errorf("send %s: %w", name, err)
	}
	return nil
}

func (c *Channel) ids() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.farmID, c.workerID
}

// SendLocation reports the worker's position.
func (c *Channel) SendLocation(lat, lon float64, ts time.Time) error {
	farmID, workerID := c.ids()
	return c.send(domain.EventLocationUpdate, domain.LocationUpdate{
		FarmID:    farmID,
		WorkerID:  workerID,
		Lat:       lat,
		Lon:       lon,
		Timestamp: ts.UTC(),
	})
}

// SendHealth reports a flock health status.
func (c *Channel) SendHealth(status, notes string) error {
	farmID, workerID := c.ids()
	return c.send(domain.EventHealthUpdate, domain.HealthUpdate{
		FarmID:    farmID,
		WorkerID:  workerID,
		Status:    status,
		Notes:     notes,
		Timestamp: time.Now().UTC(),
	})
}

// JoinFarm joins a farm group.
func (c *Channel) JoinFarm(farmID, workerID string) error {
	return c.send(domain.EventJoinFarm, domain.Membership{
		FarmID:     farmID,
		WorkerID:   workerID,
		WorkerName: c.opts.WorkerName,
	})
}

// LeaveFarm leaves a farm group.
func (c *Channel) LeaveFarm(farmID, workerID string) error {
	return c.send(domain.EventLeaveFarm, domain.Membership{
		FarmID:     farmID,
		WorkerID:   workerID,
		WorkerName: c.opts.WorkerName,
	})
}
