/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package eventstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dlmanager/dlmctl/pkg/auth"
	"github.com/dlmanager/dlmctl/pkg/config"
	"github.com/dlmanager/dlmctl/pkg/credentials"
	"github.com/dlmanager/dlmctl/pkg/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const closeWriteTimeout = time.Second

// CredentialRefresher is consulted before every dial. It returns current unchanged unless it is
// about to expire, in which case it exchanges it for a fresh one.
type CredentialRefresher interface {
	Refresh(ctx context.Context, current credentials.Credential) (credentials.Credential, error)
}

// Timer is a pending reconnect. Stop reports whether it prevented the callback from running.
type Timer interface {
	Stop() bool
}

// Option configures a Client
type Option func(*Client)

// WithDialer replaces the WebSocket dialer
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithNotifier sets the sink for user-facing notices
func WithNotifier(n Notifier) Option {
	return func(c *Client) { c.notifier = n }
}

// WithScheduler replaces time.AfterFunc for reconnect scheduling
func WithScheduler(afterFunc func(time.Duration, func()) Timer) Option {
	return func(c *Client) { c.afterFunc = afterFunc }
}

// WithGiveUpHandler registers fn to be called when a scheduled reconnect fails with an error that
// is not retried (no credential, authentication failure). The client stays Disconnected.
func WithGiveUpHandler(fn func(error)) Option {
	return func(c *Client) { c.giveUp = fn }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// Client keeps one authenticated event stream open and fans its events out to consumers.
//
// connectMu serializes connect attempts so that at most one transport is open. mu guards the
// connection state. Every connection instance gets a generation number; readers, heartbeats and
// timers belonging to an older generation are no-ops.
type Client struct {
	cfg        *config.Config
	logger     *zap.Logger
	store      credentials.Store
	refresher  CredentialRefresher
	dialer     Dialer
	notifier   Notifier
	dispatcher *Dispatcher
	backoff    Backoff
	afterFunc  func(time.Duration, func()) Timer
	now        func() time.Time
	giveUp     func(error)

	baseCtx    context.Context
	cancelBase context.CancelFunc

	connectMu sync.Mutex

	mu             sync.Mutex
	state          State
	generation     uint64
	attempt        int
	conn           Conn
	connectionID   string
	heartbeatStop  chan struct{}
	reconnectTimer Timer
	stopped        bool

	wg sync.WaitGroup
}

// attemptResult is the result of one connect attempt, acted upon after the locks are released
type attemptResult struct {
	gen    uint64
	conn   Conn
	connID string
	events []Envelope
	err    error
}

// NewClient creates a disconnected client
func NewClient(cfg *config.Config, logger *zap.Logger, store credentials.Store,
	refresher CredentialRefresher, opts ...Option) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		refresher:  refresher,
		dialer:     NewWebSocketDialer(cfg.Server.RequestTimeout, cfg.Server.InsecureSkipVerify, logger),
		notifier:   NewLogNotifier(logger),
		dispatcher: NewDispatcher(logger),
		backoff:    NewBackoff(cfg.Stream.ReconnectBase),
		afterFunc: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
		now:        time.Now,
		baseCtx:    ctx,
		cancelBase: cancel,
		state:      Disconnected,
		attempt:    1,
	}
	for _, opt := range opts {
		opt(c)
	}
	setStateGauge(Disconnected)
	return c
}

// Subscribe registers consumer for category. Consumers are invoked in registration order.
func (c *Client) Subscribe(category Category, consumer Consumer) {
	c.dispatcher.Subscribe(category, consumer)
}

// SubscribeFunc registers fn for category
func (c *Client) SubscribeFunc(category Category, fn func(Envelope) error) {
	c.dispatcher.Subscribe(category, ConsumerFunc(fn))
}

// State returns the current connection state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether a connection is open
func (c *Client) IsConnected() bool {
	return c.State() == Connected
}

// ConnectionID returns the id of the open connection, empty when disconnected
func (c *Client) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectionID
}

// Connect opens the event stream, replacing any existing connection.
//
// It returns credentials.ErrCredentialAbsent when nobody is signed in and an error wrapping
// auth.ErrAuthFailure when the credential could not be refreshed; neither is retried. A dial
// failure returns an error wrapping ErrTransport and schedules a reconnect. When Close runs
// while the dial is in flight the new connection is discarded and ErrConnectCancelled returned.
func (c *Client) Connect(ctx context.Context) error {
	c.connectMu.Lock()
	res := c.establish(ctx, 0, false)
	c.connectMu.Unlock()

	c.activate(res)
	return res.err
}

// Close closes the connection with code 1000 and cancels any pending reconnect
func (c *Client) Close() error {
	c.mu.Lock()
	c.generation++
	c.cancelReconnectLocked()
	env, hadConn, err := c.teardownLocked(websocket.CloseNormalClosure, "client closing connection")
	c.setStateLocked(Disconnected)
	c.mu.Unlock()

	if hadConn {
		c.logger.Info("Event stream closed")
		c.dispatch(env)
	}
	return err
}

// Stop closes the client for good and waits for its goroutines to exit
func (c *Client) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()

	if err := c.Close(); err != nil {
		c.logger.Debug("Error closing connection during stop", zap.Error(err))
	}
	c.cancelBase()
	c.wg.Wait()
}

// establish runs one connect attempt. gen and fromTimer identify a reconnect timer; such an
// attempt is dropped when the timer is no longer the current one.
func (c *Client) establish(ctx context.Context, gen uint64, fromTimer bool) attemptResult {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return attemptResult{err: ErrClientStopped}
	}
	if fromTimer {
		if gen != c.generation || c.state != Reconnecting {
			c.mu.Unlock()
			c.logger.Debug("Ignoring stale reconnect timer", zap.Uint64("generation", gen))
			return attemptResult{}
		}
		c.reconnectTimer = nil
	} else {
		c.cancelReconnectLocked()
	}

	c.generation++
	gen = c.generation

	var events []Envelope
	if env, ok, _ := c.teardownLocked(websocket.CloseNormalClosure, "reconnecting"); ok {
		events = append(events, env)
	}

	cred, ok := c.store.Get()
	if !ok {
		c.setStateLocked(Disconnected)
		c.mu.Unlock()

		metrics.StreamConnectAttemptsTotal.WithLabelValues("absent").Inc()
		c.logger.Warn("Not connecting event stream: no credential stored")
		c.notifier.Notify(Notice{
			Level:   LevelWarning,
			Title:   "Not signed in",
			Message: "Sign in to receive live download updates",
		})
		return attemptResult{gen: gen, events: events, err: credentials.ErrCredentialAbsent}
	}
	c.setStateLocked(Connecting)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Server.RequestTimeout)
	defer cancel()

	// The refresher decides whether cred is close enough to expiry to be replaced
	if c.refresher != nil {
		fresh, err := c.refresher.Refresh(ctx, cred)
		if err != nil {
			return c.refreshFailed(gen, events, err)
		}
		cred = fresh
	}

	c.logger.Info("Connecting event stream",
		zap.String("host", c.cfg.Stream.Host),
		zap.Int("port", c.cfg.Stream.Port),
		zap.String("path", c.cfg.Stream.Path))
	conn, err := c.dialer.Dial(ctx, c.cfg.StreamURL(cred.Token))

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || gen != c.generation {
		if conn != nil {
			_ = conn.Close()
		}
		res := attemptResult{gen: gen, events: events, err: ErrConnectCancelled}
		if c.stopped {
			res.err = ErrClientStopped
		}
		return res
	}

	if err != nil {
		err = fmt.Errorf("%w: %w", ErrTransport, err)
		metrics.StreamConnectAttemptsTotal.WithLabelValues("failure").Inc()
		at := c.now()
		events = append(events,
			errorEnvelope(err, "", at),
			disconnectEnvelope(websocket.CloseAbnormalClosure, "", "", at))
		c.scheduleReconnectLocked(gen)
		return attemptResult{gen: gen, events: events, err: err}
	}

	c.conn = conn
	c.connectionID = uuid.NewString()
	c.attempt = 1
	c.setStateLocked(Connected)
	metrics.StreamConnectAttemptsTotal.WithLabelValues("success").Inc()
	c.logger.Info("Event stream connected", zap.String("connection_id", c.connectionID))

	events = append(events, connectEnvelope(c.connectionID, c.now()))
	return attemptResult{gen: gen, conn: conn, connID: c.connectionID, events: events}
}

func (c *Client) refreshFailed(gen uint64, events []Envelope, err error) attemptResult {
	if !errors.Is(err, auth.ErrAuthFailure) {
		err = fmt.Errorf("%w: %w", auth.ErrAuthFailure, err)
	}
	if auth.IsCredentialRejectedError(err) {
		if clearErr := c.store.Clear(); clearErr != nil {
			c.logger.Warn("Failed to clear rejected credential", zap.Error(clearErr))
		}
	}

	c.mu.Lock()
	if gen == c.generation {
		c.setStateLocked(Disconnected)
	}
	c.mu.Unlock()

	metrics.StreamConnectAttemptsTotal.WithLabelValues("auth_failure").Inc()
	c.logger.Error("Not connecting event stream: credential refresh failed", zap.Error(err))
	c.notifier.Notify(Notice{
		Level:   LevelError,
		Title:   "Authentication failed",
		Message: "Sign in again to receive live download updates",
	})
	return attemptResult{gen: gen, events: events, err: err}
}

// activate delivers the attempt's events and, for a connection that is still current, starts
// its reader and heartbeat. The reader starts only after connect consumers ran.
func (c *Client) activate(res attemptResult) {
	c.dispatch(res.events...)
	if res.conn == nil {
		return
	}

	c.mu.Lock()
	if c.stopped || res.gen != c.generation || c.conn != res.conn {
		c.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	c.heartbeatStop = stop
	c.wg.Add(2)
	go c.heartbeat(res.gen, c.cfg.Stream.HeartbeatInterval, stop)
	go c.readLoop(res.gen, res.conn, res.connID)
	c.mu.Unlock()

	c.notifier.Notify(Notice{
		Level:   LevelSuccess,
		Title:   "Connected",
		Message: "Live download updates enabled",
	})
}

func (c *Client) readLoop(gen uint64, conn Conn, connID string) {
	defer c.wg.Done()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(gen, err)
			return
		}
		if !c.isCurrent(gen) {
			return
		}
		c.handleMessage(msgType, data, connID)
	}
}

func (c *Client) isCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.generation && !c.stopped
}

func (c *Client) handleMessage(msgType int, data []byte, connID string) {
	if msgType != websocket.TextMessage {
		c.logger.Debug("Ignoring non-text frame", zap.Int("message_type", msgType))
		return
	}

	var frame Frame
	err := json.Unmarshal(data, &frame)
	if err == nil && frame.Type == "" {
		err = errors.New("missing type")
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrDecode, err)
		metrics.StreamDecodeErrorsTotal.Inc()
		c.logger.Warn("Dropping malformed frame", zap.Int("size", len(data)), zap.Error(err))
		return
	}

	switch {
	case frame.Type == CategoryPong:
		metrics.StreamHeartbeatsTotal.WithLabelValues("pong").Inc()
		c.logger.Debug("Heartbeat acknowledged", zap.String("connection_id", connID))
		return
	case frame.Type == CategoryPing || frame.Type.Synthetic():
		c.logger.Debug("Ignoring reserved frame type", zap.String("type", string(frame.Type)))
		return
	case !c.dispatcher.HasSubscribers(frame.Type):
		c.logger.Debug("Ignoring frame without consumers", zap.String("type", string(frame.Type)))
		return
	}

	metrics.StreamEventsReceivedTotal.WithLabelValues(string(frame.Type)).Inc()
	c.dispatch(Envelope{
		Category:     frame.Type,
		Payload:      frame.Payload,
		ConnectionID: connID,
		ReceivedAt:   c.now(),
	})
}

// handleDisconnect reacts to the reader of generation gen losing its connection
func (c *Client) handleDisconnect(gen uint64, err error) {
	c.mu.Lock()
	if c.stopped || gen != c.generation {
		c.mu.Unlock()
		return
	}

	c.stopHeartbeatLocked()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	connID := c.connectionID
	c.conn = nil
	c.connectionID = ""

	code := websocket.CloseAbnormalClosure
	reason := ""
	var transportErr error
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		code, reason = closeErr.Code, closeErr.Text
		if code == websocket.CloseAbnormalClosure {
			transportErr = fmt.Errorf("%w: %w", ErrTransport, err)
		}
	} else {
		transportErr = fmt.Errorf("%w: %w", ErrTransport, err)
	}

	now := c.now()
	var events []Envelope
	var notice *Notice
	if code == websocket.CloseNormalClosure {
		c.setStateLocked(Disconnected)
		c.logger.Info("Event stream closed by server", zap.String("reason", reason))
		events = append(events, disconnectEnvelope(code, reason, connID, now))
	} else {
		c.logger.Warn("Event stream connection lost",
			zap.Int("close_code", code),
			zap.String("reason", reason),
			zap.Error(err))
		if transportErr != nil {
			events = append(events, errorEnvelope(transportErr, connID, now))
		}
		events = append(events, disconnectEnvelope(code, reason, connID, now))
		delay := c.scheduleReconnectLocked(gen)
		notice = &Notice{
			Level:   LevelWarning,
			Title:   "Connection lost",
			Message: fmt.Sprintf("Live updates interrupted, reconnecting in %s", delay),
		}
	}
	c.mu.Unlock()

	c.dispatch(events...)
	if notice != nil {
		c.notifier.Notify(*notice)
	}
}

func (c *Client) scheduleReconnectLocked(gen uint64) time.Duration {
	delay := c.backoff.NextDelay(c.attempt)
	c.attempt++
	c.setStateLocked(Reconnecting)

	c.wg.Add(1)
	c.reconnectTimer = c.afterFunc(delay, func() { c.fireReconnect(gen) })

	metrics.StreamReconnectsTotal.Inc()
	metrics.StreamReconnectDelaySeconds.Observe(delay.Seconds())
	c.logger.Info("Reconnect scheduled",
		zap.Duration("delay", delay),
		zap.Int("next_attempt", c.attempt))
	return delay
}

func (c *Client) cancelReconnectLocked() {
	if c.reconnectTimer == nil {
		return
	}
	if c.reconnectTimer.Stop() {
		c.wg.Done()
		c.logger.Debug("Pending reconnect cancelled")
	}
	c.reconnectTimer = nil
}

func (c *Client) fireReconnect(gen uint64) {
	defer c.wg.Done()

	c.connectMu.Lock()
	res := c.establish(c.baseCtx, gen, true)
	c.connectMu.Unlock()

	c.activate(res)
	switch {
	case res.err == nil, errors.Is(res.err, ErrTransport), errors.Is(res.err, ErrConnectCancelled):
		return
	case errors.Is(res.err, ErrClientStopped):
		c.logger.Debug("Reconnect skipped, client stopped")
		return
	}
	c.logger.Warn("Reconnect abandoned", zap.Error(res.err))
	if c.giveUp != nil {
		c.giveUp(res.err)
	}
}

// teardownLocked closes the current transport, if any, and returns its disconnect event
func (c *Client) teardownLocked(code int, reason string) (Envelope, bool, error) {
	c.stopHeartbeatLocked()
	if c.conn == nil {
		return Envelope{}, false, nil
	}

	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))
	err := c.conn.Close()

	env := disconnectEnvelope(code, reason, c.connectionID, c.now())
	c.conn = nil
	c.connectionID = ""
	return env, true, err
}

func (c *Client) stopHeartbeatLocked() {
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
}

func (c *Client) setStateLocked(s State) {
	if c.state != s {
		c.logger.Info("Connection state changed",
			zap.String("from", c.state.String()),
			zap.String("to", s.String()))
	}
	c.state = s
	setStateGauge(s)
}

func (c *Client) dispatch(events ...Envelope) {
	for _, env := range events {
		// Consumer failures are logged and counted by the dispatcher
		_ = c.dispatcher.Dispatch(env)
	}
}

func setStateGauge(s State) {
	for _, st := range allStates {
		v := 0.0
		if st == s {
			v = 1
		}
		metrics.StreamConnectionState.WithLabelValues(st.String()).Set(v)
	}
}
