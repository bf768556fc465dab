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
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dlmanager/dlmctl/pkg/auth"
	"github.com/dlmanager/dlmctl/pkg/config"
	"github.com/dlmanager/dlmctl/pkg/credentials"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRead struct {
	msgType int
	data    []byte
	err     error
}

type fakeConn struct {
	incoming  chan fakeRead
	done      chan struct{}
	closeOnce sync.Once

	mu          sync.Mutex
	writes      [][]byte
	closeFrames [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		incoming: make(chan fakeRead, 16),
		done:     make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case r := <-f.incoming:
		return r.msgType, r.data, r.err
	case <-f.done:
		return 0, nil, errors.New("use of closed network connection")
	}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, data)
	return nil
}

func (f *fakeConn) WriteControl(_ int, data []byte, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeFrames = append(f.closeFrames, data)
	return nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.done) })
	return nil
}

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

func (f *fakeConn) sendText(data string) {
	f.incoming <- fakeRead{msgType: websocket.TextMessage, data: []byte(data)}
}

func (f *fakeConn) sendClose(code int, text string) {
	f.incoming <- fakeRead{err: &websocket.CloseError{Code: code, Text: text}}
}

func (f *fakeConn) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

type fakeDialer struct {
	mu       sync.Mutex
	urls     []string
	conns    []*fakeConn
	failWith error

	// When hold is set, Dial signals entered and blocks until hold is closed
	hold    chan struct{}
	entered chan struct{}
}

func (d *fakeDialer) Dial(_ context.Context, url string) (Conn, error) {
	d.mu.Lock()
	hold, entered := d.hold, d.entered
	d.mu.Unlock()
	if hold != nil {
		entered <- struct{}{}
		<-hold
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	if d.failWith != nil {
		return nil, d.failWith
	}
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) setFailure(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failWith = err
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) lastConn() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[len(d.conns)-1]
}

func (d *fakeDialer) openConns() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.conns {
		if !c.isClosed() {
			n++
		}
	}
	return n
}

type fakeTimer struct {
	delay time.Duration
	fn    func()

	mu      sync.Mutex
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (t *fakeTimer) Fire() {
	t.mu.Lock()
	if t.stopped || t.fired {
		t.mu.Unlock()
		return
	}
	t.fired = true
	t.mu.Unlock()
	t.fn()
}

func (t *fakeTimer) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{delay: d, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *fakeScheduler) last() *fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timers[len(s.timers)-1]
}

// fakeRefresher applies the default window and counts the exchanges it performs
type fakeRefresher struct {
	mu        sync.Mutex
	consulted int
	calls     int
	fresh     credentials.Credential
	err       error
}

func (r *fakeRefresher) Refresh(_ context.Context, current credentials.Credential) (credentials.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consulted++
	if !current.NeedsRefresh(time.Now(), credentials.DefaultRefreshWindow) {
		return current, nil
	}
	r.calls++
	return r.fresh, r.err
}

func (r *fakeRefresher) consultCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.consulted
}

func (r *fakeRefresher) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type recorder struct {
	mu     sync.Mutex
	events []Envelope
}

func (r *recorder) OnEvent(env Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, env)
	return nil
}

func (r *recorder) byCategory(c Category) []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Envelope
	for _, env := range r.events {
		if env.Category == c {
			out = append(out, env)
		}
	}
	return out
}

func (r *recorder) categories() []Category {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Category, 0, len(r.events))
	for _, env := range r.events {
		out = append(out, env.Category)
	}
	return out
}

type harness struct {
	client    *Client
	dialer    *fakeDialer
	scheduler *fakeScheduler
	store     *credentials.MemoryStore
	refresher *fakeRefresher
	events    *recorder

	noticeMu sync.Mutex
	notices  []Notice
}

func (h *harness) noticeLog() []Notice {
	h.noticeMu.Lock()
	defer h.noticeMu.Unlock()
	return append([]Notice(nil), h.notices...)
}

func mintToken(t *testing.T, ttl time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": "admin", "exp": time.Now().Add(ttl).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func storeToken(t *testing.T, store credentials.Store, ttl time.Duration) credentials.Credential {
	t.Helper()
	cred, err := credentials.Parse(mintToken(t, ttl))
	require.NoError(t, err)
	require.NoError(t, store.Set(cred))
	return cred
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Storage.Type = config.StorageTypeMemory
	cfg.Stream.HeartbeatInterval = time.Hour
	return cfg
}

func newHarness(t *testing.T, cfg *config.Config, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		dialer:    &fakeDialer{},
		scheduler: &fakeScheduler{},
		store:     credentials.NewMemoryStore(),
		refresher: &fakeRefresher{},
		events:    &recorder{},
	}
	notifier := NotifierFunc(func(n Notice) {
		h.noticeMu.Lock()
		defer h.noticeMu.Unlock()
		h.notices = append(h.notices, n)
	})

	opts = append([]Option{
		WithDialer(h.dialer),
		WithNotifier(notifier),
		WithScheduler(h.scheduler.AfterFunc),
	}, opts...)
	h.client = NewClient(cfg, zap.NewNop(), h.store, h.refresher, opts...)
	for _, c := range []Category{CategoryConnect, CategoryError, CategoryDisconnect, CategoryDownloads} {
		h.client.Subscribe(c, h.events)
	}
	t.Cleanup(h.client.Stop)
	return h
}

func TestClient_ConnectWithoutCredential(t *testing.T) {
	h := newHarness(t, testConfig())

	err := h.client.Connect(context.Background())

	assert.ErrorIs(t, err, credentials.ErrCredentialAbsent)
	assert.Equal(t, Disconnected, h.client.State())
	assert.Zero(t, h.dialer.dials())
	assert.Zero(t, h.scheduler.count())
	notices := h.noticeLog()
	require.Len(t, notices, 1)
	assert.Equal(t, LevelWarning, notices[0].Level)
}

func TestClient_ConnectDispatchesEvents(t *testing.T) {
	h := newHarness(t, testConfig())
	cred := storeToken(t, h.store, time.Hour)

	require.NoError(t, h.client.Connect(context.Background()))

	assert.Equal(t, Connected, h.client.State())
	assert.True(t, h.client.IsConnected())
	assert.NotEmpty(t, h.client.ConnectionID())
	require.Equal(t, 1, h.dialer.dials())
	assert.Contains(t, h.dialer.urls[0], "/ws?token="+cred.Token)

	connects := h.events.byCategory(CategoryConnect)
	require.Len(t, connects, 1)
	assert.Equal(t, h.client.ConnectionID(), connects[0].ConnectionID)

	h.dialer.lastConn().sendText(`{"type":"downloads","payload":{"task_id":"t1","progress":42}}`)
	require.Eventually(t, func() bool {
		return len(h.events.byCategory(CategoryDownloads)) == 1
	}, time.Second, 5*time.Millisecond)

	env := h.events.byCategory(CategoryDownloads)[0]
	assert.JSONEq(t, `{"task_id":"t1","progress":42}`, string(env.Payload))
	assert.Equal(t, []Category{CategoryConnect, CategoryDownloads}, h.events.categories())
}

func TestClient_RefreshWindow(t *testing.T) {
	tests := []struct {
		name      string
		ttl       time.Duration
		wantCalls int
	}{
		{name: "Expires well outside window", ttl: 10 * time.Minute, wantCalls: 0},
		{name: "Expires inside window", ttl: 2 * time.Minute, wantCalls: 1},
		{name: "Already expired", ttl: -time.Minute, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testConfig())
			storeToken(t, h.store, tt.ttl)
			fresh, err := credentials.Parse(mintToken(t, time.Hour))
			require.NoError(t, err)
			h.refresher.fresh = fresh

			require.NoError(t, h.client.Connect(context.Background()))

			assert.Equal(t, 1, h.refresher.consultCount())
			assert.Equal(t, tt.wantCalls, h.refresher.callCount())
			if tt.wantCalls > 0 {
				assert.Contains(t, h.dialer.urls[0], fresh.Token)
			}
		})
	}
}

func TestClient_RefreshFailureIsNotRetried(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCleared bool
	}{
		{
			name:        "Credential rejected",
			err:         fmt.Errorf("%w: %w", auth.ErrAuthFailure, auth.ErrCredentialRejected),
			wantCleared: true,
		},
		{
			name:        "Server unreachable",
			err:         errors.New("connection refused"),
			wantCleared: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testConfig())
			storeToken(t, h.store, time.Minute)
			h.refresher.err = tt.err

			err := h.client.Connect(context.Background())

			require.Error(t, err)
			assert.True(t, auth.IsAuthFailureError(err))
			assert.Equal(t, Disconnected, h.client.State())
			assert.Zero(t, h.dialer.dials())
			assert.Zero(t, h.scheduler.count())

			_, ok := h.store.Get()
			assert.Equal(t, !tt.wantCleared, ok)
		})
	}
}

func TestClient_NormalCloseDoesNotReconnect(t *testing.T) {
	h := newHarness(t, testConfig())
	storeToken(t, h.store, time.Hour)
	require.NoError(t, h.client.Connect(context.Background()))

	h.dialer.lastConn().sendClose(websocket.CloseNormalClosure, "bye")

	require.Eventually(t, func() bool {
		return h.client.State() == Disconnected
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, h.scheduler.count())
	assert.Empty(t, h.events.byCategory(CategoryError))

	disconnects := h.events.byCategory(CategoryDisconnect)
	require.Len(t, disconnects, 1)
	assert.Equal(t, websocket.CloseNormalClosure, disconnects[0].CloseCode)
	assert.Equal(t, "bye", disconnects[0].CloseReason)
}

func TestClient_AbnormalCloseSchedulesReconnect(t *testing.T) {
	tests := []struct {
		name      string
		code      int
		wantError bool
	}{
		{name: "Going away", code: websocket.CloseGoingAway, wantError: false},
		{name: "Policy violation", code: websocket.ClosePolicyViolation, wantError: false},
		{name: "Abnormal closure", code: websocket.CloseAbnormalClosure, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testConfig())
			storeToken(t, h.store, time.Hour)
			require.NoError(t, h.client.Connect(context.Background()))

			h.dialer.lastConn().sendClose(tt.code, "")

			require.Eventually(t, func() bool {
				return h.client.State() == Reconnecting
			}, time.Second, 5*time.Millisecond)
			require.Equal(t, 1, h.scheduler.count())
			assert.Equal(t, 5*time.Second, h.scheduler.last().delay)

			disconnects := h.events.byCategory(CategoryDisconnect)
			require.Len(t, disconnects, 1)
			assert.Equal(t, tt.code, disconnects[0].CloseCode)

			errs := h.events.byCategory(CategoryError)
			if tt.wantError {
				require.Len(t, errs, 1)
				assert.True(t, IsTransportError(errs[0].Err))
			} else {
				assert.Empty(t, errs)
			}
		})
	}
}

func TestClient_ReadErrorIsReportedAsAbnormalClosure(t *testing.T) {
	h := newHarness(t, testConfig())
	storeToken(t, h.store, time.Hour)
	require.NoError(t, h.client.Connect(context.Background()))

	h.dialer.lastConn().incoming <- fakeRead{err: errors.New("connection reset by peer")}

	require.Eventually(t, func() bool {
		return len(h.events.byCategory(CategoryDisconnect)) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, websocket.CloseAbnormalClosure, h.events.byCategory(CategoryDisconnect)[0].CloseCode)
	require.Len(t, h.events.byCategory(CategoryError), 1)
	assert.Equal(t, Reconnecting, h.client.State())
}

func TestClient_BackoffSequenceAndReset(t *testing.T) {
	h := newHarness(t, testConfig())
	storeToken(t, h.store, time.Hour)
	h.dialer.setFailure(errors.New("connection refused"))

	err := h.client.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
	assert.Equal(t, Reconnecting, h.client.State())

	want := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second, 30 * time.Second, 30 * time.Second, 30 * time.Second}
	for i, delay := range want {
		require.Equal(t, i+1, h.scheduler.count())
		assert.Equal(t, delay, h.scheduler.last().delay, "attempt %d", i+1)
		if i < len(want)-1 {
			h.scheduler.last().Fire()
		}
	}
	assert.Len(t, h.events.byCategory(CategoryError), len(want))
	assert.Len(t, h.events.byCategory(CategoryDisconnect), len(want))

	h.dialer.setFailure(nil)
	h.scheduler.last().Fire()
	require.Equal(t, Connected, h.client.State())

	h.dialer.lastConn().sendClose(websocket.CloseGoingAway, "restart")
	require.Eventually(t, func() bool {
		return h.scheduler.count() == len(want)+1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 5*time.Second, h.scheduler.last().delay)
}

func TestClient_DoubleConnectKeepsOneTransport(t *testing.T) {
	h := newHarness(t, testConfig())
	storeToken(t, h.store, time.Hour)

	require.NoError(t, h.client.Connect(context.Background()))
	first := h.dialer.lastConn()
	require.NoError(t, h.client.Connect(context.Background()))

	assert.Equal(t, 2, h.dialer.dials())
	assert.True(t, first.isClosed())
	assert.Equal(t, 1, h.dialer.openConns())
	require.Len(t, first.closeFrames, 1)
	assert.Equal(t, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "reconnecting"), first.closeFrames[0])
	assert.Equal(t, Connected, h.client.State())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.client.Connect(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, 6, h.dialer.dials())
	assert.Equal(t, 1, h.dialer.openConns())
}

func TestClient_CloseCancelsPendingReconnect(t *testing.T) {
	h := newHarness(t, testConfig())
	storeToken(t, h.store, time.Hour)
	h.dialer.setFailure(errors.New("connection refused"))

	require.Error(t, h.client.Connect(context.Background()))
	require.Equal(t, 1, h.scheduler.count())
	pending := h.scheduler.last()

	require.NoError(t, h.client.Close())

	assert.True(t, pending.isStopped())
	assert.Equal(t, Disconnected, h.client.State())

	pending.Fire()
	assert.Equal(t, 1, h.dialer.dials())
}

func TestClient_StaleTimerIsIgnored(t *testing.T) {
	h := newHarness(t, testConfig())
	storeToken(t, h.store, time.Hour)
	h.dialer.setFailure(errors.New("connection refused"))

	require.Error(t, h.client.Connect(context.Background()))
	stale := h.scheduler.last()

	// Simulate the timer firing concurrently with a manual reconnect
	stale.mu.Lock()
	stale.fired = true
	stale.mu.Unlock()

	h.dialer.setFailure(nil)
	require.NoError(t, h.client.Connect(context.Background()))
	require.Equal(t, 2, h.dialer.dials())

	stale.fn()
	assert.Equal(t, 2, h.dialer.dials())
	assert.Equal(t, Connected, h.client.State())
}

func TestClient_CloseDuringDialCancelsConnect(t *testing.T) {
	h := newHarness(t, testConfig())
	storeToken(t, h.store, time.Hour)
	h.dialer.hold = make(chan struct{})
	h.dialer.entered = make(chan struct{}, 1)

	result := make(chan error, 1)
	go func() { result <- h.client.Connect(context.Background()) }()

	<-h.dialer.entered
	require.NoError(t, h.client.Close())
	close(h.dialer.hold)

	err := <-result
	assert.ErrorIs(t, err, ErrConnectCancelled)
	assert.Equal(t, Disconnected, h.client.State())
	assert.Equal(t, 1, h.dialer.dials())
	assert.Zero(t, h.dialer.openConns())
	assert.Empty(t, h.events.byCategory(CategoryConnect))
	assert.Zero(t, h.scheduler.count())
}

func TestClient_ReconnectGiveUp(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, h *harness)
		check   func(t *testing.T, err error)
	}{
		{
			name:    "Credential removed",
			prepare: func(t *testing.T, h *harness) { require.NoError(t, h.store.Clear()) },
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, credentials.ErrCredentialAbsent)
			},
		},
		{
			name: "Refresh rejected",
			prepare: func(t *testing.T, h *harness) {
				storeToken(t, h.store, time.Minute)
				h.refresher.err = fmt.Errorf("%w: %w", auth.ErrAuthFailure, auth.ErrCredentialRejected)
			},
			check: func(t *testing.T, err error) {
				assert.True(t, auth.IsAuthFailureError(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gaveUp := make(chan error, 1)
			h := newHarness(t, testConfig(), WithGiveUpHandler(func(err error) { gaveUp <- err }))
			storeToken(t, h.store, time.Hour)
			require.NoError(t, h.client.Connect(context.Background()))

			h.dialer.lastConn().sendClose(websocket.CloseGoingAway, "")
			require.Eventually(t, func() bool {
				return h.client.State() == Reconnecting
			}, time.Second, 5*time.Millisecond)

			tt.prepare(t, h)
			h.scheduler.last().Fire()

			select {
			case err := <-gaveUp:
				tt.check(t, err)
			case <-time.After(time.Second):
				t.Fatal("give-up handler was not called")
			}
			assert.Equal(t, Disconnected, h.client.State())
			assert.Equal(t, 1, h.scheduler.count())
			assert.Equal(t, 1, h.dialer.dials())
		})
	}

	t.Run("Transport failures keep retrying", func(t *testing.T) {
		called := false
		h := newHarness(t, testConfig(), WithGiveUpHandler(func(error) { called = true }))
		storeToken(t, h.store, time.Hour)
		h.dialer.setFailure(errors.New("connection refused"))

		require.Error(t, h.client.Connect(context.Background()))
		h.scheduler.last().Fire()

		assert.Equal(t, 2, h.scheduler.count())
		assert.False(t, called)
	})
}

func TestClient_CloseNotifiesDisconnect(t *testing.T) {
	h := newHarness(t, testConfig())
	storeToken(t, h.store, time.Hour)
	require.NoError(t, h.client.Connect(context.Background()))
	conn := h.dialer.lastConn()

	require.NoError(t, h.client.Close())

	assert.Equal(t, Disconnected, h.client.State())
	assert.Empty(t, h.client.ConnectionID())
	assert.True(t, conn.isClosed())
	require.Len(t, conn.closeFrames, 1)
	assert.Equal(t, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closing connection"), conn.closeFrames[0])

	disconnects := h.events.byCategory(CategoryDisconnect)
	require.Len(t, disconnects, 1)
	assert.Equal(t, websocket.CloseNormalClosure, disconnects[0].CloseCode)
	assert.Zero(t, h.scheduler.count())

	// Closing an idle client emits nothing
	require.NoError(t, h.client.Close())
	assert.Len(t, h.events.byCategory(CategoryDisconnect), 1)
}

func TestClient_StopRejectsConnect(t *testing.T) {
	h := newHarness(t, testConfig())
	storeToken(t, h.store, time.Hour)
	require.NoError(t, h.client.Connect(context.Background()))

	h.client.Stop()

	assert.Equal(t, Disconnected, h.client.State())
	assert.ErrorIs(t, h.client.Connect(context.Background()), ErrClientStopped)
	assert.Equal(t, 1, h.dialer.dials())
}

func TestClient_IgnoresMalformedAndReservedFrames(t *testing.T) {
	h := newHarness(t, testConfig())
	storeToken(t, h.store, time.Hour)
	require.NoError(t, h.client.Connect(context.Background()))
	conn := h.dialer.lastConn()

	conn.sendText(`not json`)
	conn.sendText(`{"payload":{}}`)
	conn.sendText(`{"type":"connect"}`)
	conn.sendText(`{"type":"disconnect"}`)
	conn.sendText(`{"type":"pong"}`)
	conn.sendText(`{"type":"unknown","payload":1}`)
	conn.incoming <- fakeRead{msgType: websocket.BinaryMessage, data: []byte(`{"type":"downloads"}`)}
	conn.sendText(`{"type":"downloads","payload":{"task_id":"t2"}}`)

	require.Eventually(t, func() bool {
		return len(h.events.byCategory(CategoryDownloads)) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Len(t, h.events.byCategory(CategoryConnect), 1)
	assert.Empty(t, h.events.byCategory(CategoryDisconnect))
	assert.Equal(t, Connected, h.client.State())
}

func TestClient_ConsumerFailureDoesNotStopReader(t *testing.T) {
	h := newHarness(t, testConfig())
	storeToken(t, h.store, time.Hour)
	h.client.SubscribeFunc(CategoryDownloads, func(Envelope) error {
		panic("consumer bug")
	})
	require.NoError(t, h.client.Connect(context.Background()))
	conn := h.dialer.lastConn()

	conn.sendText(`{"type":"downloads","payload":1}`)
	conn.sendText(`{"type":"downloads","payload":2}`)

	require.Eventually(t, func() bool {
		return len(h.events.byCategory(CategoryDownloads)) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, Connected, h.client.State())
}

func TestClient_HeartbeatSendsPing(t *testing.T) {
	cfg := testConfig()
	cfg.Stream.HeartbeatInterval = 10 * time.Millisecond
	h := newHarness(t, cfg)
	storeToken(t, h.store, time.Hour)
	require.NoError(t, h.client.Connect(context.Background()))
	conn := h.dialer.lastConn()

	require.Eventually(t, func() bool {
		return conn.writeCount() >= 2
	}, time.Second, 5*time.Millisecond)

	conn.mu.Lock()
	assert.JSONEq(t, `{"type":"ping"}`, string(conn.writes[0]))
	conn.mu.Unlock()

	require.NoError(t, h.client.Close())
	n := conn.writeCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, conn.writeCount())
}

func TestClient_HeartbeatSkipsStaleConnection(t *testing.T) {
	h := newHarness(t, testConfig())
	storeToken(t, h.store, time.Hour)

	require.NoError(t, h.client.Connect(context.Background()))
	first := h.dialer.lastConn()
	h.client.mu.Lock()
	firstGen := h.client.generation
	h.client.mu.Unlock()

	require.NoError(t, h.client.Connect(context.Background()))
	second := h.dialer.lastConn()
	h.client.mu.Lock()
	secondGen := h.client.generation
	h.client.mu.Unlock()

	h.client.sendPing(firstGen)
	assert.Zero(t, first.writeCount())
	assert.Zero(t, second.writeCount())

	h.client.sendPing(secondGen)
	assert.Equal(t, 1, second.writeCount())

	require.NoError(t, h.client.Close())
	h.client.sendPing(secondGen)
	assert.Equal(t, 1, second.writeCount())
	assert.Zero(t, first.writeCount())
}

func TestClient_ConnectionLossNotifiesUser(t *testing.T) {
	h := newHarness(t, testConfig())
	storeToken(t, h.store, time.Hour)
	require.NoError(t, h.client.Connect(context.Background()))

	h.dialer.lastConn().sendClose(websocket.CloseGoingAway, "restart")

	require.Eventually(t, func() bool {
		return len(h.noticeLog()) == 2
	}, time.Second, 5*time.Millisecond)
	notices := h.noticeLog()
	assert.Equal(t, LevelSuccess, notices[0].Level)
	assert.Equal(t, LevelWarning, notices[1].Level)
	assert.Equal(t, "Connection lost", notices[1].Title)
	assert.Contains(t, notices[1].Message, "reconnecting in 5s")

	h.scheduler.last().Fire()
	require.Equal(t, Connected, h.client.State())
	require.Len(t, h.noticeLog(), 3)

	h.dialer.lastConn().sendClose(websocket.CloseNormalClosure, "bye")
	require.Eventually(t, func() bool {
		return h.client.State() == Disconnected
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, h.noticeLog(), 3)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "connecting", Connecting.String())
	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "reconnecting", Reconnecting.String())
	assert.Equal(t, "unknown", State(42).String())
}
